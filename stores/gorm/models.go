//go:build !wasm
// +build !wasm

package gorm

import (
	"time"

	sa "github.com/repairloader/siteauth"
	"github.com/repairloader/siteauth/forum"
)

// UserModel is the GORM model for users.  Email and handle are nullable so
// that the unique indexes allow any number of users without one.
type UserModel struct {
	ID            string  `gorm:"primaryKey;size:64"`
	Email         *string `gorm:"size:255;uniqueIndex"`
	PasswordHash  string  `gorm:"size:128"`
	Name          string  `gorm:"size:255"`
	Handle        *string `gorm:"size:32;uniqueIndex"`
	Role          string  `gorm:"size:16;default:user"`
	Image         string  `gorm:"size:1024"`
	EmailVerified *time.Time
	CreatedAt     time.Time `gorm:"autoCreateTime"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

func (UserModel) TableName() string {
	return "users"
}

func (m *UserModel) ToUser() *sa.User {
	return &sa.User{
		ID:            m.ID,
		Email:         deref(m.Email),
		PasswordHash:  m.PasswordHash,
		Name:          m.Name,
		Handle:        deref(m.Handle),
		Role:          sa.ParseRole(m.Role),
		Image:         m.Image,
		EmailVerified: m.EmailVerified,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func UserToModel(u *sa.User) *UserModel {
	return &UserModel{
		ID:            u.ID,
		Email:         nullable(sa.NormalizeEmail(u.Email)),
		PasswordHash:  u.PasswordHash,
		Name:          u.Name,
		Handle:        nullable(u.Handle),
		Role:          string(sa.ParseRole(string(u.Role))),
		Image:         u.Image,
		EmailVerified: u.EmailVerified,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

// AccountModel is the GORM model for linked provider accounts
type AccountModel struct {
	Provider          string `gorm:"primaryKey;size:32"`
	ProviderAccountID string `gorm:"primaryKey;size:255"`
	UserID            string `gorm:"size:64;index"`
	Type              string `gorm:"size:16"`
	AccessToken       string `gorm:"type:text"`
	RefreshToken      string `gorm:"type:text"`
	TokenType         string `gorm:"size:32"`
	Scope             string `gorm:"size:512"`
	ExpiresAt         time.Time
	CreatedAt         time.Time `gorm:"autoCreateTime"`
}

func (AccountModel) TableName() string {
	return "accounts"
}

func (m *AccountModel) ToAccount() *sa.Account {
	return &sa.Account{
		UserID:            m.UserID,
		Type:              m.Type,
		Provider:          m.Provider,
		ProviderAccountID: m.ProviderAccountID,
		AccessToken:       m.AccessToken,
		RefreshToken:      m.RefreshToken,
		TokenType:         m.TokenType,
		Scope:             m.Scope,
		ExpiresAt:         m.ExpiresAt,
		CreatedAt:         m.CreatedAt,
	}
}

func AccountToModel(a *sa.Account) *AccountModel {
	return &AccountModel{
		Provider:          a.Provider,
		ProviderAccountID: a.ProviderAccountID,
		UserID:            a.UserID,
		Type:              a.Type,
		AccessToken:       a.AccessToken,
		RefreshToken:      a.RefreshToken,
		TokenType:         a.TokenType,
		Scope:             a.Scope,
		ExpiresAt:         a.ExpiresAt,
		CreatedAt:         a.CreatedAt,
	}
}

// SessionModel is the GORM model for persisted sessions
type SessionModel struct {
	SessionToken string    `gorm:"primaryKey;size:128"`
	UserID       string    `gorm:"size:64;index"`
	Expires      time.Time `gorm:"index"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
}

func (SessionModel) TableName() string {
	return "sessions"
}

func (m *SessionModel) ToSession() *sa.Session {
	return &sa.Session{
		SessionToken: m.SessionToken,
		UserID:       m.UserID,
		Expires:      m.Expires,
		CreatedAt:    m.CreatedAt,
	}
}

// VerificationTokenModel is the GORM model for magic link tokens
type VerificationTokenModel struct {
	Identifier string    `gorm:"primaryKey;size:255"`
	TokenHash  string    `gorm:"primaryKey;size:64"`
	Expires    time.Time `gorm:"index"`
}

func (VerificationTokenModel) TableName() string {
	return "verification_tokens"
}

// CategoryModel is the GORM model for forum categories
type CategoryModel struct {
	ID    string `gorm:"primaryKey;size:64"`
	Slug  string `gorm:"size:64;uniqueIndex"`
	Name  string `gorm:"size:255"`
	Desc  string `gorm:"column:description;size:1024"`
	Icon  string `gorm:"size:64"`
	Order int    `gorm:"column:sort_order;index"`
}

func (CategoryModel) TableName() string {
	return "categories"
}

func (m *CategoryModel) ToCategory() *forum.Category {
	return &forum.Category{ID: m.ID, Slug: m.Slug, Name: m.Name, Desc: m.Desc, Icon: m.Icon, Order: m.Order}
}

// ThreadModel is the GORM model for forum threads
type ThreadModel struct {
	ID         string    `gorm:"primaryKey;size:64"`
	Slug       string    `gorm:"size:255;uniqueIndex"`
	Title      string    `gorm:"size:255"`
	CategoryID string    `gorm:"size:64;index"`
	AuthorID   string    `gorm:"size:64;index"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime"`
}

func (ThreadModel) TableName() string {
	return "threads"
}

func (m *ThreadModel) ToThread() forum.Thread {
	return forum.Thread{
		ID:         m.ID,
		Slug:       m.Slug,
		Title:      m.Title,
		CategoryID: m.CategoryID,
		AuthorID:   m.AuthorID,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

// PostModel is the GORM model for thread posts
type PostModel struct {
	ID        string    `gorm:"primaryKey;size:64"`
	ThreadID  string    `gorm:"size:64;index"`
	AuthorID  string    `gorm:"size:64;index"`
	Body      string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (PostModel) TableName() string {
	return "posts"
}

// TagModel is the GORM model for thread tags
type TagModel struct {
	ID   string `gorm:"primaryKey;size:64"`
	Slug string `gorm:"size:64;uniqueIndex"`
	Name string `gorm:"size:255"`
}

func (TagModel) TableName() string {
	return "tags"
}

// ToolModel is the GORM model for the diagnostic tools list
type ToolModel struct {
	ID       string `gorm:"primaryKey;size:64"`
	Slug     string `gorm:"size:64;uniqueIndex"`
	Name     string `gorm:"size:255"`
	Desc     string `gorm:"column:description;size:1024"`
	Category string `gorm:"size:64"`
	Icon     string `gorm:"size:64"`
	Order    int    `gorm:"column:sort_order;index"`
}

func (ToolModel) TableName() string {
	return "tools"
}

func (m *ToolModel) ToTool() *forum.Tool {
	return &forum.Tool{ID: m.ID, Slug: m.Slug, Name: m.Name, Desc: m.Desc, Category: m.Category, Icon: m.Icon, Order: m.Order}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
