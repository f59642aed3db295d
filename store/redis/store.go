// Package redisstore keeps sessions and tokens in Redis. Users are served by
// another backend through auth.CombineStorage.
//
// Every key is wrapped in the hash tag {prefix}, so the whole store lives in
// one cluster slot. The token scripts derive the owner index and replaced
// token keys from stored values; they stay valid on Redis Cluster only
// because those keys share that slot.
package redisstore

import (
	"context"
	"errors"
	"strconv"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/redis/go-redis/v9"

	auth "github.com/goliatone/go-auth-service"
	"github.com/goliatone/go-auth-service/exception"
)

const defaultPrefix = "authsvc"

// Records are hashes with user_id, category, last_modified and expires
// (unix millis). Logical expiry is the stored expires field; the Redis TTL
// only bounds retention.
var extendScript = redis.NewScript(`
local rec = redis.call('HMGET', KEYS[1], 'user_id', 'category', 'expires')
if not rec[1] then
  return false
end
if tonumber(rec[3]) <= tonumber(ARGV[1]) then
  return false
end
if ARGV[3] ~= '' and rec[2] ~= ARGV[3] then
  return false
end
redis.call('HSET', KEYS[1], 'last_modified', ARGV[1], 'expires', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[4])
return {rec[1], rec[2]}
`)

// KEYS[1] owner index, KEYS[2] new token. ARGV: token key prefix, raw key,
// user id, category, now, expires, ttl.
var issueScript = redis.NewScript(`
local previous = redis.call('GET', KEYS[1])
if previous then
  redis.call('DEL', ARGV[1] .. previous)
end
redis.call('HSET', KEYS[2], 'user_id', ARGV[3], 'category', ARGV[4], 'last_modified', ARGV[5], 'expires', ARGV[6])
redis.call('PEXPIRE', KEYS[2], ARGV[7])
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[7])
return 1
`)

// KEYS[1] token. ARGV: owner index prefix, raw key.
var revokeScript = redis.NewScript(`
local rec = redis.call('HMGET', KEYS[1], 'user_id', 'category')
redis.call('DEL', KEYS[1])
if rec[1] then
  local owner = ARGV[1] .. rec[2] .. ':' .. rec[1]
  if redis.call('GET', owner) == ARGV[2] then
    redis.call('DEL', owner)
  end
end
return 1
`)

// KEYS[1] token. ARGV: now, category, owner index prefix, raw key. Returns
// user_id, last_modified and expires of the removed live token.
var consumeScript = redis.NewScript(`
local rec = redis.call('HMGET', KEYS[1], 'user_id', 'category', 'last_modified', 'expires')
if not rec[1] or rec[2] ~= ARGV[2] then
  return false
end
redis.call('DEL', KEYS[1])
local owner = ARGV[3] .. rec[2] .. ':' .. rec[1]
if redis.call('GET', owner) == ARGV[4] then
  redis.call('DEL', owner)
end
if tonumber(rec[4]) <= tonumber(ARGV[1]) then
  return false
end
return {rec[1], rec[3], rec[4]}
`)

// Store implements auth.CredentialBackend on a Redis client.
type Store struct {
	client   redis.UniversalClient
	policies *auth.Policies
	prefix   string
}

type Option func(*Store)

// WithPrefix namespaces every key written by the store.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

func New(client redis.UniversalClient, policies *auth.Policies, opts ...Option) *Store {
	s := &Store{
		client:   client,
		policies: policies,
		prefix:   defaultPrefix,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// NewClient builds a client from the storage configuration.
func NewClient(cfg auth.StorageConfig) redis.UniversalClient {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "redis ping failed")
	}
	return nil
}

func (s *Store) Sessions(now time.Time) auth.SessionDao {
	return &sessionDao{store: s, now: now}
}

func (s *Store) Tokens(now time.Time) auth.TokenDao {
	return &tokenDao{store: s, now: now}
}

func (s *Store) slot() string {
	return "{" + s.prefix + "}"
}

func (s *Store) sessionKey(key string) string {
	return s.slot() + ":session:" + key
}

func (s *Store) tokenPrefix() string {
	return s.slot() + ":token:"
}

func (s *Store) ownerPrefix() string {
	return s.slot() + ":owner:"
}

func (s *Store) ownerKey(userID, category string) string {
	return s.ownerPrefix() + category + ":" + userID
}

type sessionDao struct {
	store *Store
	now   time.Time
}

func (d *sessionDao) Create(ctx context.Context, userID string) (*auth.Session, error) {
	policy := d.store.policies.Session
	key, err := auth.NewCredentialKey()
	if err != nil {
		return nil, err
	}
	id, err := policy.Cipher.Encrypt(key)
	if err != nil {
		return nil, err
	}

	expires := d.now.Add(policy.Timeout)
	rk := d.store.sessionKey(key)
	_, err = d.store.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, rk,
			"user_id", userID,
			"category", "",
			"last_modified", d.now.UnixMilli(),
			"expires", expires.UnixMilli(),
		)
		p.PExpire(ctx, rk, policy.Timeout)
		return nil
	})
	if err != nil {
		return nil, exception.Internal(err, "failed to persist session")
	}

	return &auth.Session{
		ID:           id,
		UserID:       userID,
		LastModified: d.now,
		Expires:      expires,
	}, nil
}

func (d *sessionDao) ByID(ctx context.Context, id string) (*auth.Session, error) {
	policy := d.store.policies.Session
	key, ok := policy.Cipher.Decrypt(id)
	if !ok {
		return nil, nil
	}
	userID, _, found, err := extend(ctx, d.store.client, d.store.sessionKey(key), d.now, policy.Timeout, "")
	if err != nil {
		return nil, exception.Internal(err, "failed to extend session")
	}
	if !found {
		return nil, nil
	}
	return &auth.Session{
		ID:           id,
		UserID:       userID,
		LastModified: d.now,
		Expires:      d.now.Add(policy.Timeout),
	}, nil
}

func (d *sessionDao) Remove(ctx context.Context, id string) error {
	key, ok := d.store.policies.Session.Cipher.Decrypt(id)
	if !ok {
		return nil
	}
	if err := d.store.client.Del(ctx, d.store.sessionKey(key)).Err(); err != nil {
		return exception.Internal(err, "failed to remove session")
	}
	return nil
}

type tokenDao struct {
	store *Store
	now   time.Time
}

func (d *tokenDao) Create(ctx context.Context, userID, category string) (*auth.Token, error) {
	policy, ok := d.store.policies.Token(category)
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

	expires := d.now.Add(policy.Timeout)
	keys := []string{d.store.ownerKey(userID, category), d.store.tokenPrefix() + key}
	err = issueScript.Run(ctx, d.store.client, keys,
		d.store.tokenPrefix(),
		key,
		userID,
		category,
		d.now.UnixMilli(),
		expires.UnixMilli(),
		ttlMillis(policy.Timeout),
	).Err()
	if err != nil {
		return nil, exception.Internal(err, "failed to persist token")
	}

	return &auth.Token{
		ID:           id,
		UserID:       userID,
		Category:     category,
		LastModified: d.now,
		Expires:      expires,
	}, nil
}

func (d *tokenDao) ByID(ctx context.Context, id, category string) (*auth.Token, error) {
	policy, ok := d.store.policies.Token(category)
	if !ok {
		return nil, nil
	}
	key, ok := policy.Cipher.Decrypt(id)
	if !ok {
		return nil, nil
	}
	userID, _, found, err := extend(ctx, d.store.client, d.store.tokenPrefix()+key, d.now, policy.Timeout, category)
	if err != nil {
		return nil, exception.Internal(err, "failed to extend token")
	}
	if !found {
		return nil, nil
	}
	return &auth.Token{
		ID:           id,
		UserID:       userID,
		Category:     category,
		LastModified: d.now,
		Expires:      d.now.Add(policy.Timeout),
	}, nil
}

func (d *tokenDao) Remove(ctx context.Context, id, category string) error {
	policy, ok := d.store.policies.Token(category)
	if !ok {
		return nil
	}
	key, ok := policy.Cipher.Decrypt(id)
	if !ok {
		return nil
	}
	err := revokeScript.Run(ctx, d.store.client, []string{d.store.tokenPrefix() + key},
		d.store.ownerPrefix(),
		key,
	).Err()
	if err != nil {
		return exception.Internal(err, "failed to remove token")
	}
	return nil
}

func (d *tokenDao) Consume(ctx context.Context, id, category string) (*auth.Token, error) {
	policy, ok := d.store.policies.Token(category)
	if !ok {
		return nil, nil
	}
	key, ok := policy.Cipher.Decrypt(id)
	if !ok {
		return nil, nil
	}
	res, err := consumeScript.Run(ctx, d.store.client, []string{d.store.tokenPrefix() + key},
		d.now.UnixMilli(),
		category,
		d.store.ownerPrefix(),
		key,
	).StringSlice()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, exception.Internal(err, "failed to consume token")
	}
	if len(res) != 3 {
		return nil, goerrors.New("unexpected script reply", goerrors.CategoryInternal).
			WithMetadata(map[string]any{"len": len(res)})
	}
	lastModified, err := strconv.ParseInt(res[1], 10, 64)
	if err != nil {
		return nil, exception.Internal(err, "malformed token record")
	}
	expires, err := strconv.ParseInt(res[2], 10, 64)
	if err != nil {
		return nil, exception.Internal(err, "malformed token record")
	}
	return &auth.Token{
		ID:           id,
		UserID:       res[0],
		Category:     category,
		LastModified: time.UnixMilli(lastModified).UTC(),
		Expires:      time.UnixMilli(expires).UTC(),
	}, nil
}

func extend(ctx context.Context, client redis.Scripter, key string, now time.Time, timeout time.Duration, category string) (string, string, bool, error) {
	res, err := extendScript.Run(ctx, client, []string{key},
		now.UnixMilli(),
		now.Add(timeout).UnixMilli(),
		category,
		ttlMillis(timeout),
	).StringSlice()
	if errors.Is(err, redis.Nil) {
		return "", "", false, nil
	}
	if err != nil {
		return "", "", false, err
	}
	if len(res) != 2 {
		return "", "", false, goerrors.New("unexpected script reply", goerrors.CategoryInternal).
			WithMetadata(map[string]any{"len": len(res)})
	}
	return res[0], res[1], true, nil
}

func ttlMillis(d time.Duration) int64 {
	if ms := d.Milliseconds(); ms > 0 {
		return ms
	}
	return 1
}

var _ auth.CredentialBackend = (*Store)(nil)
