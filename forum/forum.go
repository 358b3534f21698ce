// Package forum holds the read-only catalog the site pages display: forum
// categories, threads, tags and the diagnostic tools list.
package forum

import (
	"context"
	"time"
)

type Category struct {
	ID    string `json:"id"`
	Slug  string `json:"slug"`
	Name  string `json:"name"`
	Desc  string `json:"desc"`
	Icon  string `json:"icon"`
	Order int    `json:"order"`
}

type Tag struct {
	ID   string `json:"id"`
	Slug string `json:"slug"`
	Name string `json:"name"`
}

type Tool struct {
	ID       string `json:"id"`
	Slug     string `json:"slug"`
	Name     string `json:"name"`
	Desc     string `json:"desc"`
	Category string `json:"category"`
	Icon     string `json:"icon"`
	Order    int    `json:"order"`
}

type Thread struct {
	ID         string    `json:"id"`
	Slug       string    `json:"slug"`
	Title      string    `json:"title"`
	CategoryID string    `json:"category_id"`
	AuthorID   string    `json:"author_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Post struct {
	ID        string    `json:"id"`
	ThreadID  string    `json:"thread_id"`
	AuthorID  string    `json:"author_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Author is the public part of a user shown next to threads
type Author struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Handle string `json:"handle"`
	Image  string `json:"image"`
}

// DisplayName prefers the handle, then the name
func (a *Author) DisplayName() string {
	if a == nil {
		return "Unknown"
	}
	if a.Handle != "" {
		return a.Handle
	}
	if a.Name != "" {
		return a.Name
	}
	return "Anonymous"
}

type ThreadSummary struct {
	Thread
	Author    *Author   `json:"author,omitempty"`
	Category  *Category `json:"category,omitempty"`
	PostCount int64     `json:"post_count"`
}

type CategorySummary struct {
	Category
	ThreadCount  int64          `json:"thread_count"`
	LatestThread *ThreadSummary `json:"latest_thread,omitempty"`
}

// Store is what the pages read.  Upserts are keyed by slug.
type Store interface {
	UpsertCategory(ctx context.Context, c *Category) error
	UpsertTag(ctx context.Context, t *Tag) error
	UpsertTool(ctx context.Context, t *Tool) error

	// ListCategories returns categories by Order, each with its thread count and latest thread
	ListCategories(ctx context.Context) ([]*CategorySummary, error)
	ListTags(ctx context.Context) ([]*Tag, error)
	ListTools(ctx context.Context) ([]*Tool, error)

	CountThreads(ctx context.Context) (int64, error)
	CountUsers(ctx context.Context) (int64, error)

	// RecentThreads returns the newest threads with author, category and post count
	RecentThreads(ctx context.Context, limit int) ([]*ThreadSummary, error)
}
