//go:build !wasm
// +build !wasm

package gae

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/datastore"
	"google.golang.org/api/iterator"

	sa "github.com/repairloader/siteauth"
)

// Kind constants for Datastore entities
const (
	KindUser              = "User"
	KindUserEmail         = "UserEmail"
	KindHandle            = "Handle"
	KindAccount           = "Account"
	KindSession           = "Session"
	KindVerificationToken = "VerificationToken"
)

// IdentityStore implements siteauth.IdentityStore using Google Cloud Datastore
type IdentityStore struct {
	client    *datastore.Client
	namespace string
}

// NewIdentityStore creates a new Datastore-backed IdentityStore
func NewIdentityStore(client *datastore.Client, namespace string) *IdentityStore {
	return &IdentityStore{client: client, namespace: namespace}
}

func (s *IdentityStore) namespacedKey(kind, name string) *datastore.Key {
	key := datastore.NameKey(kind, name, nil)
	key.Namespace = s.namespace
	return key
}

func (s *IdentityStore) query(kind string) *datastore.Query {
	q := datastore.NewQuery(kind)
	if s.namespace != "" {
		q = q.Namespace(s.namespace)
	}
	return q
}

// ============================================================================
// UserStore
// ============================================================================

func (s *IdentityStore) GetUserByID(ctx context.Context, id string) (*sa.User, error) {
	if id == "" {
		return nil, sa.ErrUserNotFound
	}
	var entity UserEntity
	if err := s.client.Get(ctx, s.namespacedKey(KindUser, id), &entity); err != nil {
		if err == datastore.ErrNoSuchEntity {
			return nil, sa.ErrUserNotFound
		}
		return nil, err
	}
	return entity.ToUser(), nil
}

func (s *IdentityStore) GetUserByEmail(ctx context.Context, email string) (*sa.User, error) {
	email = sa.NormalizeEmail(email)
	if email == "" {
		return nil, sa.ErrUserNotFound
	}
	return s.userFromUnique(ctx, s.namespacedKey(KindUserEmail, email))
}

func (s *IdentityStore) GetUserByHandle(ctx context.Context, handle string) (*sa.User, error) {
	if handle == "" {
		return nil, sa.ErrUserNotFound
	}
	return s.userFromUnique(ctx, s.namespacedKey(KindHandle, handle))
}

func (s *IdentityStore) userFromUnique(ctx context.Context, key *datastore.Key) (*sa.User, error) {
	var entry UniqueEntity
	if err := s.client.Get(ctx, key, &entry); err != nil {
		if err == datastore.ErrNoSuchEntity {
			return nil, sa.ErrUserNotFound
		}
		return nil, err
	}
	return s.GetUserByID(ctx, entry.UserID)
}

// CreateUser writes the user and its email/handle reservations in one transaction
func (s *IdentityStore) CreateUser(ctx context.Context, user *sa.User) error {
	user.Email = sa.NormalizeEmail(user.Email)
	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		if err := s.reserve(tx, KindUserEmail, user.Email, user.ID, sa.ErrEmailExists); err != nil {
			return err
		}
		if err := s.reserve(tx, KindHandle, user.Handle, user.ID, sa.ErrHandleTaken); err != nil {
			return err
		}
		key := s.namespacedKey(KindUser, user.ID)
		_, err := tx.Put(key, UserToEntity(user, key))
		return err
	})
	return err
}

// UpdateUser rewrites the user, moving email/handle reservations when they change
func (s *IdentityStore) UpdateUser(ctx context.Context, user *sa.User) error {
	user.Email = sa.NormalizeEmail(user.Email)
	user.UpdatedAt = time.Now()

	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		key := s.namespacedKey(KindUser, user.ID)
		var existing UserEntity
		if err := tx.Get(key, &existing); err != nil {
			if err == datastore.ErrNoSuchEntity {
				return sa.ErrUserNotFound
			}
			return err
		}
		if existing.Email != user.Email {
			if err := s.reserve(tx, KindUserEmail, user.Email, user.ID, sa.ErrEmailExists); err != nil {
				return err
			}
			if err := s.release(tx, KindUserEmail, existing.Email); err != nil {
				return err
			}
		}
		if existing.Handle != user.Handle {
			if err := s.reserve(tx, KindHandle, user.Handle, user.ID, sa.ErrHandleTaken); err != nil {
				return err
			}
			if err := s.release(tx, KindHandle, existing.Handle); err != nil {
				return err
			}
		}
		entity := UserToEntity(user, key)
		entity.CreatedAt = existing.CreatedAt
		entity.Version = existing.Version + 1
		_, err := tx.Put(key, entity)
		return err
	})
	return err
}

// reserve claims name for userID, failing with conflict if another user holds it
func (s *IdentityStore) reserve(tx *datastore.Transaction, kind, name, userID string, conflict error) error {
	if name == "" {
		return nil
	}
	key := s.namespacedKey(kind, name)
	var entry UniqueEntity
	err := tx.Get(key, &entry)
	if err == nil && entry.UserID != userID {
		return conflict
	}
	if err != nil && err != datastore.ErrNoSuchEntity {
		return err
	}
	_, err = tx.Put(key, &UniqueEntity{Key: key, UserID: userID, CreatedAt: time.Now()})
	return err
}

func (s *IdentityStore) release(tx *datastore.Transaction, kind, name string) error {
	if name == "" {
		return nil
	}
	return tx.Delete(s.namespacedKey(kind, name))
}

// ============================================================================
// AccountStore
// ============================================================================

func (s *IdentityStore) accountKeyName(provider, providerAccountID string) string {
	return provider + ":" + providerAccountID
}

func (s *IdentityStore) GetAccount(ctx context.Context, provider, providerAccountID string) (*sa.Account, error) {
	key := s.namespacedKey(KindAccount, s.accountKeyName(provider, providerAccountID))
	var entity AccountEntity
	if err := s.client.Get(ctx, key, &entity); err != nil {
		if err == datastore.ErrNoSuchEntity {
			return nil, sa.ErrAccountNotFound
		}
		return nil, err
	}
	return entity.ToAccount(), nil
}

func (s *IdentityStore) LinkAccount(ctx context.Context, account *sa.Account) error {
	key := s.namespacedKey(KindAccount, s.accountKeyName(account.Provider, account.ProviderAccountID))
	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var existing AccountEntity
		err := tx.Get(key, &existing)
		if err != nil && err != datastore.ErrNoSuchEntity {
			return err
		}
		if err == nil {
			account.CreatedAt = existing.CreatedAt
		} else if account.CreatedAt.IsZero() {
			account.CreatedAt = time.Now()
		}
		_, err = tx.Put(key, AccountToEntity(account, key))
		return err
	})
	return err
}

func (s *IdentityStore) GetUserAccounts(ctx context.Context, userID string) ([]*sa.Account, error) {
	query := s.query(KindAccount).FilterField("user_id", "=", userID)

	var accounts []*sa.Account
	it := s.client.Run(ctx, query)
	for {
		var entity AccountEntity
		_, err := it.Next(&entity)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, entity.ToAccount())
	}
	return accounts, nil
}

// ============================================================================
// SessionStore
// ============================================================================

func (s *IdentityStore) CreateSession(ctx context.Context, session *sa.Session) error {
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}
	key := s.namespacedKey(KindSession, session.SessionToken)
	_, err := s.client.Put(ctx, key, &SessionEntity{
		Key:       key,
		UserID:    session.UserID,
		Expires:   session.Expires,
		CreatedAt: session.CreatedAt,
	})
	return err
}

func (s *IdentityStore) GetSessionAndUser(ctx context.Context, sessionToken string) (*sa.Session, *sa.User, error) {
	if sessionToken == "" {
		return nil, nil, sa.ErrSessionNotFound
	}
	var entity SessionEntity
	if err := s.client.Get(ctx, s.namespacedKey(KindSession, sessionToken), &entity); err != nil {
		if err == datastore.ErrNoSuchEntity {
			return nil, nil, sa.ErrSessionNotFound
		}
		return nil, nil, err
	}
	user, err := s.GetUserByID(ctx, entity.UserID)
	if errors.Is(err, sa.ErrUserNotFound) {
		return nil, nil, sa.ErrSessionNotFound
	} else if err != nil {
		return nil, nil, err
	}
	return &sa.Session{
		SessionToken: sessionToken,
		UserID:       entity.UserID,
		Expires:      entity.Expires,
		CreatedAt:    entity.CreatedAt,
	}, user, nil
}

func (s *IdentityStore) DeleteSession(ctx context.Context, sessionToken string) error {
	return s.client.Delete(ctx, s.namespacedKey(KindSession, sessionToken))
}

func (s *IdentityStore) DeleteUserSessions(ctx context.Context, userID string) error {
	return s.deleteKeys(ctx, s.query(KindSession).FilterField("user_id", "=", userID).KeysOnly())
}

func (s *IdentityStore) DeleteExpiredSessions(ctx context.Context) error {
	return s.deleteKeys(ctx, s.query(KindSession).FilterField("expires", "<", time.Now()).KeysOnly())
}

func (s *IdentityStore) deleteKeys(ctx context.Context, query *datastore.Query) error {
	keys, err := s.client.GetAll(ctx, query, nil)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return s.client.DeleteMulti(ctx, keys)
}

// ============================================================================
// VerificationTokenStore
// ============================================================================

func (s *IdentityStore) verificationKey(identifier, tokenHash string) *datastore.Key {
	return s.namespacedKey(KindVerificationToken, identifier+":"+tokenHash)
}

func (s *IdentityStore) CreateVerificationToken(ctx context.Context, token *sa.VerificationToken) error {
	key := s.verificationKey(token.Identifier, token.TokenHash)
	_, err := s.client.Put(ctx, key, &VerificationTokenEntity{
		Key:        key,
		Identifier: token.Identifier,
		TokenHash:  token.TokenHash,
		Expires:    token.Expires,
	})
	return err
}

// UseVerificationToken reads and deletes the token in one transaction
func (s *IdentityStore) UseVerificationToken(ctx context.Context, identifier, tokenHash string) (*sa.VerificationToken, error) {
	key := s.verificationKey(identifier, tokenHash)
	var entity VerificationTokenEntity
	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		if err := tx.Get(key, &entity); err != nil {
			if err == datastore.ErrNoSuchEntity {
				return sa.ErrTokenNotFound
			}
			return err
		}
		return tx.Delete(key)
	})
	if err != nil {
		if errors.Is(err, sa.ErrTokenNotFound) {
			return nil, sa.ErrTokenNotFound
		}
		return nil, fmt.Errorf("using verification token: %w", err)
	}
	return &sa.VerificationToken{
		Identifier: entity.Identifier,
		TokenHash:  entity.TokenHash,
		Expires:    entity.Expires,
	}, nil
}
