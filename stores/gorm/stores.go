//go:build !wasm
// +build !wasm

package gorm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	sa "github.com/repairloader/siteauth"
)

// AutoMigrate runs database migrations for the identity and forum tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&UserModel{},
		&AccountModel{},
		&SessionModel{},
		&VerificationTokenModel{},
		&CategoryModel{},
		&ThreadModel{},
		&PostModel{},
		&TagModel{},
		&ToolModel{},
	)
}

// IdentityStore implements sa.IdentityStore using GORM
type IdentityStore struct {
	db *gorm.DB
}

func NewIdentityStore(db *gorm.DB) *IdentityStore {
	return &IdentityStore{db: db}
}

// =============================================================================
// UserStore
// =============================================================================

func (s *IdentityStore) GetUserByID(ctx context.Context, id string) (*sa.User, error) {
	return s.findUser(ctx, "id = ?", id)
}

func (s *IdentityStore) GetUserByEmail(ctx context.Context, email string) (*sa.User, error) {
	return s.findUser(ctx, "email = ?", sa.NormalizeEmail(email))
}

func (s *IdentityStore) GetUserByHandle(ctx context.Context, handle string) (*sa.User, error) {
	return s.findUser(ctx, "handle = ?", handle)
}

func (s *IdentityStore) findUser(ctx context.Context, query string, arg string) (*sa.User, error) {
	if arg == "" {
		return nil, sa.ErrUserNotFound
	}
	var model UserModel
	if err := s.db.WithContext(ctx).First(&model, query, arg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, sa.ErrUserNotFound
		}
		return nil, err
	}
	return model.ToUser(), nil
}

func (s *IdentityStore) CreateUser(ctx context.Context, user *sa.User) error {
	model := UserToModel(user)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if model.Email != nil {
			if err := tx.Model(&UserModel{}).Where("email = ?", *model.Email).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return sa.ErrEmailExists
			}
		}
		if model.Handle != nil {
			if err := tx.Model(&UserModel{}).Where("handle = ?", *model.Handle).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return sa.ErrHandleTaken
			}
		}
		return tx.Create(model).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// lost a race with a concurrent insert
		return s.duplicateError(ctx, user, err)
	}
	if err != nil {
		return err
	}
	user.CreatedAt = model.CreatedAt
	user.UpdatedAt = model.UpdatedAt
	return nil
}

func (s *IdentityStore) UpdateUser(ctx context.Context, user *sa.User) error {
	model := UserToModel(user)
	result := s.db.WithContext(ctx).Model(&UserModel{ID: model.ID}).Select("*").Omit("created_at").Updates(model)
	if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
		return s.duplicateError(ctx, user, result.Error)
	}
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return sa.ErrUserNotFound
	}
	return nil
}

// duplicateError works out which unique index rejected a write of user
func (s *IdentityStore) duplicateError(ctx context.Context, user *sa.User, err error) error {
	if other, lookupErr := s.GetUserByEmail(ctx, user.Email); lookupErr == nil && other.ID != user.ID {
		return sa.ErrEmailExists
	}
	if other, lookupErr := s.GetUserByHandle(ctx, user.Handle); lookupErr == nil && other.ID != user.ID {
		return sa.ErrHandleTaken
	}
	return fmt.Errorf("writing user %s: %w", user.ID, err)
}

// =============================================================================
// AccountStore
// =============================================================================

func (s *IdentityStore) GetAccount(ctx context.Context, provider, providerAccountID string) (*sa.Account, error) {
	var model AccountModel
	err := s.db.WithContext(ctx).First(&model, "provider = ? AND provider_account_id = ?", provider, providerAccountID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, sa.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return model.ToAccount(), nil
}

func (s *IdentityStore) LinkAccount(ctx context.Context, account *sa.Account) error {
	model := AccountToModel(account)
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "provider"}, {Name: "provider_account_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"user_id", "type", "access_token", "refresh_token", "token_type", "scope", "expires_at",
		}),
	}).Create(model).Error
}

func (s *IdentityStore) GetUserAccounts(ctx context.Context, userID string) ([]*sa.Account, error) {
	var models []AccountModel
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at").Find(&models).Error; err != nil {
		return nil, err
	}
	accounts := make([]*sa.Account, len(models))
	for i := range models {
		accounts[i] = models[i].ToAccount()
	}
	return accounts, nil
}

// =============================================================================
// SessionStore
// =============================================================================

func (s *IdentityStore) CreateSession(ctx context.Context, session *sa.Session) error {
	return s.db.WithContext(ctx).Create(&SessionModel{
		SessionToken: session.SessionToken,
		UserID:       session.UserID,
		Expires:      session.Expires,
		CreatedAt:    session.CreatedAt,
	}).Error
}

func (s *IdentityStore) GetSessionAndUser(ctx context.Context, sessionToken string) (*sa.Session, *sa.User, error) {
	db := s.db.WithContext(ctx)
	var session SessionModel
	if err := db.First(&session, "session_token = ?", sessionToken).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, sa.ErrSessionNotFound
		}
		return nil, nil, err
	}
	var user UserModel
	if err := db.First(&user, "id = ?", session.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, sa.ErrSessionNotFound
		}
		return nil, nil, err
	}
	return session.ToSession(), user.ToUser(), nil
}

func (s *IdentityStore) DeleteSession(ctx context.Context, sessionToken string) error {
	return s.db.WithContext(ctx).Where("session_token = ?", sessionToken).Delete(&SessionModel{}).Error
}

func (s *IdentityStore) DeleteUserSessions(ctx context.Context, userID string) error {
	return s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&SessionModel{}).Error
}

func (s *IdentityStore) DeleteExpiredSessions(ctx context.Context) error {
	return s.db.WithContext(ctx).Where("expires < ?", time.Now()).Delete(&SessionModel{}).Error
}

// =============================================================================
// VerificationTokenStore
// =============================================================================

func (s *IdentityStore) CreateVerificationToken(ctx context.Context, token *sa.VerificationToken) error {
	return s.db.WithContext(ctx).Create(&VerificationTokenModel{
		Identifier: token.Identifier,
		TokenHash:  token.TokenHash,
		Expires:    token.Expires,
	}).Error
}

func (s *IdentityStore) UseVerificationToken(ctx context.Context, identifier, tokenHash string) (*sa.VerificationToken, error) {
	var model VerificationTokenModel
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&model, "identifier = ? AND token_hash = ?", identifier, tokenHash).Error; err != nil {
			return err
		}
		result := tx.Where("identifier = ? AND token_hash = ?", identifier, tokenHash).Delete(&VerificationTokenModel{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			// used by a concurrent request
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, sa.ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("using verification token: %w", err)
	}
	return &sa.VerificationToken{
		Identifier: model.Identifier,
		TokenHash:  model.TokenHash,
		Expires:    model.Expires,
	}, nil
}
