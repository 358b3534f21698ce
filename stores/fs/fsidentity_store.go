package fs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	sa "github.com/repairloader/siteauth"
)

// FSIdentityStore implements siteauth.IdentityStore with one JSON file per record.
//
// # File Structure
//
//	{StoragePath}/
//	├── users/<id>.json
//	├── emails/<hash of email>.json       # {"user_id": ...}
//	├── handles/<hash of handle>.json     # {"user_id": ...}
//	├── accounts/<hash of provider+id>.json
//	├── sessions/<session token>.json
//	└── verification/<hash of email>-<token hash>.json
//
// A mutex serializes writes within one process.  Meant for development and
// tests, not for several processes sharing a directory.
type FSIdentityStore struct {
	StoragePath string
	mu          sync.Mutex
}

func NewFSIdentityStore(storagePath string) *FSIdentityStore {
	return &FSIdentityStore{StoragePath: storagePath}
}

type indexEntry struct {
	UserID string `json:"user_id"`
}

// =============================================================================
// UserStore
// =============================================================================

func (s *FSIdentityStore) userPath(id string) string {
	return filepath.Join(s.StoragePath, "users", filepath.Base(id)+".json")
}

func (s *FSIdentityStore) emailPath(email string) string {
	return filepath.Join(s.StoragePath, "emails", safeName(sa.NormalizeEmail(email))+".json")
}

func (s *FSIdentityStore) handlePath(handle string) string {
	return filepath.Join(s.StoragePath, "handles", safeName(handle)+".json")
}

func (s *FSIdentityStore) GetUserByID(ctx context.Context, id string) (*sa.User, error) {
	if id == "" {
		return nil, sa.ErrUserNotFound
	}
	var user sa.User
	if err := readJSONFile(s.userPath(id), &user); err != nil {
		if os.IsNotExist(err) {
			return nil, sa.ErrUserNotFound
		}
		return nil, fmt.Errorf("reading user %s: %w", id, err)
	}
	return &user, nil
}

func (s *FSIdentityStore) GetUserByEmail(ctx context.Context, email string) (*sa.User, error) {
	if sa.NormalizeEmail(email) == "" {
		return nil, sa.ErrUserNotFound
	}
	return s.userFromIndex(ctx, s.emailPath(email))
}

func (s *FSIdentityStore) GetUserByHandle(ctx context.Context, handle string) (*sa.User, error) {
	if handle == "" {
		return nil, sa.ErrUserNotFound
	}
	return s.userFromIndex(ctx, s.handlePath(handle))
}

func (s *FSIdentityStore) userFromIndex(ctx context.Context, path string) (*sa.User, error) {
	var entry indexEntry
	if err := readJSONFile(path, &entry); err != nil {
		if os.IsNotExist(err) {
			return nil, sa.ErrUserNotFound
		}
		return nil, err
	}
	return s.GetUserByID(ctx, entry.UserID)
}

func (s *FSIdentityStore) CreateUser(ctx context.Context, user *sa.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user.Email = sa.NormalizeEmail(user.Email)
	if _, err := s.GetUserByEmail(ctx, user.Email); err == nil {
		return sa.ErrEmailExists
	} else if !errors.Is(err, sa.ErrUserNotFound) {
		return err
	}
	if _, err := s.GetUserByHandle(ctx, user.Handle); err == nil {
		return sa.ErrHandleTaken
	} else if !errors.Is(err, sa.ErrUserNotFound) {
		return err
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = user.CreatedAt
	}
	return s.writeUser(user, nil)
}

func (s *FSIdentityStore) UpdateUser(ctx context.Context, user *sa.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, err := s.GetUserByID(ctx, user.ID)
	if err != nil {
		return err
	}
	user.Email = sa.NormalizeEmail(user.Email)
	if user.Email != old.Email {
		if other, err := s.GetUserByEmail(ctx, user.Email); err == nil && other.ID != user.ID {
			return sa.ErrEmailExists
		}
	}
	if user.Handle != old.Handle {
		if other, err := s.GetUserByHandle(ctx, user.Handle); err == nil && other.ID != user.ID {
			return sa.ErrHandleTaken
		}
	}
	user.UpdatedAt = time.Now()
	return s.writeUser(user, old)
}

// writeUser saves the user and moves its email and handle index entries
func (s *FSIdentityStore) writeUser(user, old *sa.User) error {
	if err := writeJSONFile(s.userPath(user.ID), user); err != nil {
		return err
	}
	entry := indexEntry{UserID: user.ID}
	if user.Email != "" {
		if err := writeJSONFile(s.emailPath(user.Email), entry); err != nil {
			return err
		}
	}
	if user.Handle != "" {
		if err := writeJSONFile(s.handlePath(user.Handle), entry); err != nil {
			return err
		}
	}
	if old != nil && old.Email != "" && old.Email != user.Email {
		if err := removeFile(s.emailPath(old.Email)); err != nil {
			return err
		}
	}
	if old != nil && old.Handle != "" && old.Handle != user.Handle {
		if err := removeFile(s.handlePath(old.Handle)); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// AccountStore
// =============================================================================

func (s *FSIdentityStore) accountPath(provider, providerAccountID string) string {
	return filepath.Join(s.StoragePath, "accounts", safeName(provider+":"+providerAccountID)+".json")
}

func (s *FSIdentityStore) GetAccount(ctx context.Context, provider, providerAccountID string) (*sa.Account, error) {
	var account sa.Account
	if err := readJSONFile(s.accountPath(provider, providerAccountID), &account); err != nil {
		if os.IsNotExist(err) {
			return nil, sa.ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (s *FSIdentityStore) LinkAccount(ctx context.Context, account *sa.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, err := s.GetAccount(ctx, account.Provider, account.ProviderAccountID); err == nil {
		account.CreatedAt = existing.CreatedAt
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now()
	}
	return writeJSONFile(s.accountPath(account.Provider, account.ProviderAccountID), account)
}

func (s *FSIdentityStore) GetUserAccounts(ctx context.Context, userID string) ([]*sa.Account, error) {
	files, err := listJSON(filepath.Join(s.StoragePath, "accounts"))
	if err != nil {
		return nil, err
	}
	var out []*sa.Account
	for _, f := range files {
		var account sa.Account
		if err := readJSONFile(f, &account); err != nil {
			continue
		}
		if account.UserID == userID {
			out = append(out, &account)
		}
	}
	return out, nil
}

// =============================================================================
// SessionStore
// =============================================================================

func (s *FSIdentityStore) sessionPath(token string) string {
	return filepath.Join(s.StoragePath, "sessions", filepath.Base(token)+".json")
}

func (s *FSIdentityStore) CreateSession(ctx context.Context, session *sa.Session) error {
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}
	return writeJSONFile(s.sessionPath(session.SessionToken), session)
}

func (s *FSIdentityStore) GetSessionAndUser(ctx context.Context, sessionToken string) (*sa.Session, *sa.User, error) {
	if sessionToken == "" {
		return nil, nil, sa.ErrSessionNotFound
	}
	var session sa.Session
	if err := readJSONFile(s.sessionPath(sessionToken), &session); err != nil {
		if os.IsNotExist(err) {
			return nil, nil, sa.ErrSessionNotFound
		}
		return nil, nil, err
	}
	user, err := s.GetUserByID(ctx, session.UserID)
	if errors.Is(err, sa.ErrUserNotFound) {
		return nil, nil, sa.ErrSessionNotFound
	} else if err != nil {
		return nil, nil, err
	}
	return &session, user, nil
}

func (s *FSIdentityStore) DeleteSession(ctx context.Context, sessionToken string) error {
	return removeFile(s.sessionPath(sessionToken))
}

func (s *FSIdentityStore) DeleteUserSessions(ctx context.Context, userID string) error {
	return s.deleteSessionsWhere(func(session *sa.Session) bool { return session.UserID == userID })
}

func (s *FSIdentityStore) DeleteExpiredSessions(ctx context.Context) error {
	return s.deleteSessionsWhere(func(session *sa.Session) bool { return session.IsExpired() })
}

func (s *FSIdentityStore) deleteSessionsWhere(match func(*sa.Session) bool) error {
	files, err := listJSON(filepath.Join(s.StoragePath, "sessions"))
	if err != nil {
		return err
	}
	for _, f := range files {
		var session sa.Session
		if err := readJSONFile(f, &session); err != nil {
			continue
		}
		if match(&session) {
			if err := removeFile(f); err != nil {
				return err
			}
		}
	}
	return nil
}

// =============================================================================
// VerificationTokenStore
// =============================================================================

func (s *FSIdentityStore) verificationPath(identifier, tokenHash string) string {
	name := safeName(identifier) + "-" + filepath.Base(tokenHash) + ".json"
	return filepath.Join(s.StoragePath, "verification", name)
}

func (s *FSIdentityStore) CreateVerificationToken(ctx context.Context, token *sa.VerificationToken) error {
	return writeJSONFile(s.verificationPath(token.Identifier, token.TokenHash), token)
}

func (s *FSIdentityStore) UseVerificationToken(ctx context.Context, identifier, tokenHash string) (*sa.VerificationToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.verificationPath(identifier, tokenHash)
	var token sa.VerificationToken
	if err := readJSONFile(path, &token); err != nil {
		if os.IsNotExist(err) {
			return nil, sa.ErrTokenNotFound
		}
		return nil, err
	}
	if err := removeFile(path); err != nil {
		return nil, err
	}
	return &token, nil
}
