//go:build !wasm
// +build !wasm

package gorm

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	sa "github.com/repairloader/siteauth"
	"github.com/repairloader/siteauth/forum"
)

// ForumStore implements forum.Store using GORM
type ForumStore struct {
	db *gorm.DB
}

func NewForumStore(db *gorm.DB) *ForumStore {
	return &ForumStore{db: db}
}

func upsertBySlug(columns ...string) clause.OnConflict {
	return clause.OnConflict{
		Columns:   []clause.Column{{Name: "slug"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}
}

func newIDIfEmpty(id string) string {
	if id == "" {
		return sa.NewID()
	}
	return id
}

// idForSlug reads back the id the row ended up with.  On conflict the
// existing row keeps its id, not the one we tried to insert.
func idForSlug(db *gorm.DB, model any, slug string) (string, error) {
	var ids []string
	if err := db.Model(model).Where("slug = ?", slug).Limit(1).Pluck("id", &ids).Error; err != nil {
		return "", err
	}
	if len(ids) == 0 {
		return "", fmt.Errorf("row for slug %q not found after upsert", slug)
	}
	return ids[0], nil
}

func (s *ForumStore) UpsertCategory(ctx context.Context, c *forum.Category) error {
	model := &CategoryModel{ID: newIDIfEmpty(c.ID), Slug: c.Slug, Name: c.Name, Desc: c.Desc, Icon: c.Icon, Order: c.Order}
	db := s.db.WithContext(ctx)
	if err := db.Clauses(upsertBySlug("name", "description", "icon", "sort_order")).Create(model).Error; err != nil {
		return err
	}
	id, err := idForSlug(db, &CategoryModel{}, c.Slug)
	if err != nil {
		return err
	}
	c.ID = id
	return nil
}

func (s *ForumStore) UpsertTag(ctx context.Context, t *forum.Tag) error {
	model := &TagModel{ID: newIDIfEmpty(t.ID), Slug: t.Slug, Name: t.Name}
	db := s.db.WithContext(ctx)
	if err := db.Clauses(upsertBySlug("name")).Create(model).Error; err != nil {
		return err
	}
	id, err := idForSlug(db, &TagModel{}, t.Slug)
	if err != nil {
		return err
	}
	t.ID = id
	return nil
}

func (s *ForumStore) UpsertTool(ctx context.Context, t *forum.Tool) error {
	model := &ToolModel{ID: newIDIfEmpty(t.ID), Slug: t.Slug, Name: t.Name, Desc: t.Desc, Category: t.Category, Icon: t.Icon, Order: t.Order}
	db := s.db.WithContext(ctx)
	if err := db.Clauses(upsertBySlug("name", "description", "category", "icon", "sort_order")).Create(model).Error; err != nil {
		return err
	}
	id, err := idForSlug(db, &ToolModel{}, t.Slug)
	if err != nil {
		return err
	}
	t.ID = id
	return nil
}

func (s *ForumStore) ListCategories(ctx context.Context) ([]*forum.CategorySummary, error) {
	db := s.db.WithContext(ctx)
	var models []CategoryModel
	if err := db.Order("sort_order").Find(&models).Error; err != nil {
		return nil, err
	}

	var counts []struct {
		CategoryID string
		Count      int64
	}
	if err := db.Model(&ThreadModel{}).Select("category_id, count(*) as count").Group("category_id").Scan(&counts).Error; err != nil {
		return nil, err
	}
	countByCategory := make(map[string]int64, len(counts))
	for _, c := range counts {
		countByCategory[c.CategoryID] = c.Count
	}

	out := make([]*forum.CategorySummary, len(models))
	var latest []ThreadModel
	for i := range models {
		summary := &forum.CategorySummary{Category: *models[i].ToCategory(), ThreadCount: countByCategory[models[i].ID]}
		out[i] = summary
		if summary.ThreadCount == 0 {
			continue
		}
		var t ThreadModel
		err := db.Where("category_id = ?", models[i].ID).Order("created_at desc").First(&t).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		} else if err != nil {
			return nil, err
		}
		latest = append(latest, t)
	}

	summaries, err := s.summarize(ctx, latest)
	if err != nil {
		return nil, err
	}
	for _, ts := range summaries {
		for _, cs := range out {
			if cs.ID == ts.CategoryID {
				cs.LatestThread = ts
			}
		}
	}
	return out, nil
}

func (s *ForumStore) ListTags(ctx context.Context) ([]*forum.Tag, error) {
	var models []TagModel
	if err := s.db.WithContext(ctx).Order("name").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]*forum.Tag, len(models))
	for i, m := range models {
		out[i] = &forum.Tag{ID: m.ID, Slug: m.Slug, Name: m.Name}
	}
	return out, nil
}

func (s *ForumStore) ListTools(ctx context.Context) ([]*forum.Tool, error) {
	var models []ToolModel
	if err := s.db.WithContext(ctx).Order("sort_order").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]*forum.Tool, len(models))
	for i := range models {
		out[i] = models[i].ToTool()
	}
	return out, nil
}

func (s *ForumStore) CountThreads(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&ThreadModel{}).Count(&n).Error
	return n, err
}

func (s *ForumStore) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&UserModel{}).Count(&n).Error
	return n, err
}

func (s *ForumStore) RecentThreads(ctx context.Context, limit int) ([]*forum.ThreadSummary, error) {
	if limit <= 0 {
		limit = 5
	}
	var threads []ThreadModel
	if err := s.db.WithContext(ctx).Order("created_at desc").Limit(limit).Find(&threads).Error; err != nil {
		return nil, err
	}
	return s.summarize(ctx, threads)
}

// summarize attaches author, category and post count to threads, keeping their order
func (s *ForumStore) summarize(ctx context.Context, threads []ThreadModel) ([]*forum.ThreadSummary, error) {
	if len(threads) == 0 {
		return nil, nil
	}
	db := s.db.WithContext(ctx)
	var threadIDs, authorIDs, categoryIDs []string
	for _, t := range threads {
		threadIDs = append(threadIDs, t.ID)
		authorIDs = append(authorIDs, t.AuthorID)
		categoryIDs = append(categoryIDs, t.CategoryID)
	}

	var users []UserModel
	if err := db.Where("id IN ?", authorIDs).Find(&users).Error; err != nil {
		return nil, err
	}
	authors := make(map[string]*forum.Author, len(users))
	for _, u := range users {
		authors[u.ID] = &forum.Author{ID: u.ID, Name: u.Name, Handle: deref(u.Handle), Image: u.Image}
	}

	var categories []CategoryModel
	if err := db.Where("id IN ?", categoryIDs).Find(&categories).Error; err != nil {
		return nil, err
	}
	categoryByID := make(map[string]*forum.Category, len(categories))
	for i := range categories {
		categoryByID[categories[i].ID] = categories[i].ToCategory()
	}

	var counts []struct {
		ThreadID string
		Count    int64
	}
	if err := db.Model(&PostModel{}).Select("thread_id, count(*) as count").Where("thread_id IN ?", threadIDs).Group("thread_id").Scan(&counts).Error; err != nil {
		return nil, err
	}
	postCounts := make(map[string]int64, len(counts))
	for _, c := range counts {
		postCounts[c.ThreadID] = c.Count
	}

	out := make([]*forum.ThreadSummary, len(threads))
	for i := range threads {
		out[i] = &forum.ThreadSummary{
			Thread:    threads[i].ToThread(),
			Author:    authors[threads[i].AuthorID],
			Category:  categoryByID[threads[i].CategoryID],
			PostCount: postCounts[threads[i].ID],
		}
	}
	return out, nil
}
