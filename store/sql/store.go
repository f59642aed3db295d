// Package sqlstore persists users, sessions and tokens with bun.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"

	auth "github.com/goliatone/go-auth-service"
	"github.com/goliatone/go-auth-service/exception"
)

// Store implements auth.Storage on a bun database.
type Store struct {
	db       *bun.DB
	policies *auth.Policies
	hasher   auth.PasswordHasher
	users    Users
}

type Option func(*Store)

func WithHasher(hasher auth.PasswordHasher) Option {
	return func(s *Store) {
		if hasher != nil {
			s.hasher = hasher
		}
	}
}

func New(db *bun.DB, policies *auth.Policies, opts ...Option) *Store {
	s := &Store{
		db:       db,
		policies: policies,
		hasher:   auth.HMACHasher{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.users = NewUsersRepository(db, s.hasher)
	return s
}

// DB returns the underlying database.
func (s *Store) DB() *bun.DB {
	return s.db
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "sqlite ping failed")
	}
	return nil
}

func (s *Store) Sessions(now time.Time) auth.SessionDao {
	return &sessionDao{db: s.db, policy: s.policies.Session, now: now}
}

func (s *Store) Tokens(now time.Time) auth.TokenDao {
	return &tokenDao{db: s.db, policies: s.policies, now: now}
}

func (s *Store) Users() auth.UserDao {
	return s.users
}

type sessionDao struct {
	db     bun.IDB
	policy auth.CredentialPolicy
	now    time.Time
}

func (d *sessionDao) Create(ctx context.Context, userID string) (*auth.Session, error) {
	key, err := auth.NewCredentialKey()
	if err != nil {
		return nil, err
	}
	id, err := d.policy.Cipher.Encrypt(key)
	if err != nil {
		return nil, err
	}

	rec := &sessionRecord{
		LookupKey:    key,
		UserID:       userID,
		LastModified: toMillis(d.now),
		Expires:      toMillis(d.now.Add(d.policy.Timeout)),
	}
	if _, err := d.db.NewInsert().Model(rec).Exec(ctx); err != nil {
		return nil, exception.Internal(err, "failed to persist session")
	}
	return rec.toSession(id), nil
}

func (d *sessionDao) ByID(ctx context.Context, id string) (*auth.Session, error) {
	key, ok := d.policy.Cipher.Decrypt(id)
	if !ok {
		return nil, nil
	}

	rec := &sessionRecord{}
	err := d.db.NewUpdate().
		Model(rec).
		Set("last_modified = ?", toMillis(d.now)).
		Set("expires = ?", toMillis(d.now.Add(d.policy.Timeout))).
		Where("lookup_key = ?", key).
		Where("expires > ?", toMillis(d.now)).
		Returning("*").
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, exception.Internal(err, "failed to extend session")
	}
	if rec.LookupKey == "" {
		return nil, nil
	}
	return rec.toSession(id), nil
}

func (d *sessionDao) Remove(ctx context.Context, id string) error {
	key, ok := d.policy.Cipher.Decrypt(id)
	if !ok {
		return nil
	}
	_, err := d.db.NewDelete().
		Model((*sessionRecord)(nil)).
		Where("lookup_key = ?", key).
		Exec(ctx)
	if err != nil {
		return exception.Internal(err, "failed to remove session")
	}
	return nil
}

type tokenDao struct {
	db       *bun.DB
	policies *auth.Policies
	now      time.Time
}

func (d *tokenDao) Create(ctx context.Context, userID, category string) (*auth.Token, error) {
	policy, ok := d.policies.Token(category)
	if !ok {
		return nil, auth.ErrUnknownCategory(category)
	}
	key, err := auth.NewCredentialKey()
	if err != nil {
		return nil, err
	}
	id, err := policy.Cipher.Encrypt(key)
	if err != nil {
		return nil, err
	}

	rec := &tokenRecord{
		LookupKey:    key,
		UserID:       userID,
		Category:     category,
		LastModified: toMillis(d.now),
		Expires:      toMillis(d.now.Add(policy.Timeout)),
	}

	err = d.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewDelete().
			Model((*tokenRecord)(nil)).
			Where("user_id = ?", userID).
			Where("category = ?", category).
			Exec(ctx)
		if err != nil {
			return err
		}
		_, err = tx.NewInsert().Model(rec).Exec(ctx)
		return err
	})
	if err != nil {
		return nil, exception.Internal(err, "failed to persist token")
	}
	return rec.toToken(id), nil
}

func (d *tokenDao) ByID(ctx context.Context, id, category string) (*auth.Token, error) {
	policy, ok := d.policies.Token(category)
	if !ok {
		return nil, nil
	}
	key, ok := policy.Cipher.Decrypt(id)
	if !ok {
		return nil, nil
	}

	rec := &tokenRecord{}
	err := d.db.NewUpdate().
		Model(rec).
		Set("last_modified = ?", toMillis(d.now)).
		Set("expires = ?", toMillis(d.now.Add(policy.Timeout))).
		Where("lookup_key = ?", key).
		Where("category = ?", category).
		Where("expires > ?", toMillis(d.now)).
		Returning("*").
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, exception.Internal(err, "failed to extend token")
	}
	if rec.LookupKey == "" {
		return nil, nil
	}
	return rec.toToken(id), nil
}

func (d *tokenDao) Remove(ctx context.Context, id, category string) error {
	policy, ok := d.policies.Token(category)
	if !ok {
		return nil
	}
	key, ok := policy.Cipher.Decrypt(id)
	if !ok {
		return nil
	}
	_, err := d.db.NewDelete().
		Model((*tokenRecord)(nil)).
		Where("lookup_key = ?", key).
		Exec(ctx)
	if err != nil {
		return exception.Internal(err, "failed to remove token")
	}
	return nil
}

// Consume deletes the live token in the same statement that reads it, so
// only one caller can win a given token.
func (d *tokenDao) Consume(ctx context.Context, id, category string) (*auth.Token, error) {
	policy, ok := d.policies.Token(category)
	if !ok {
		return nil, nil
	}
	key, ok := policy.Cipher.Decrypt(id)
	if !ok {
		return nil, nil
	}

	rec := &tokenRecord{}
	err := d.db.NewDelete().
		Model(rec).
		Where("lookup_key = ?", key).
		Where("category = ?", category).
		Where("expires > ?", toMillis(d.now)).
		Returning("*").
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, exception.Internal(err, "failed to consume token")
	}
	if rec.LookupKey == "" {
		return nil, nil
	}
	return rec.toToken(id), nil
}

var _ auth.Storage = (*Store)(nil)
