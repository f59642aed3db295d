// Package memory is an in-process credential and user store. It backs the
// memory storage driver and the service tests.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	auth "github.com/goliatone/go-auth-service"
	"github.com/goliatone/go-auth-service/exception"
)

type record struct {
	key          string
	userID       string
	category     string
	lastModified time.Time
	expires      time.Time
}

type ownerKey struct {
	userID   string
	category string
}

// Store keeps every record behind one mutex, which makes each lookup and
// extension atomic.
type Store struct {
	mu       sync.Mutex
	policies *auth.Policies
	hasher   auth.PasswordHasher
	clock    func() time.Time

	sessions map[string]*record
	tokens   map[string]*record
	owners   map[ownerKey]string
	users    map[uuid.UUID]*auth.User
	emails   map[string]uuid.UUID
}

type Option func(*Store)

func WithHasher(hasher auth.PasswordHasher) Option {
	return func(s *Store) {
		if hasher != nil {
			s.hasher = hasher
		}
	}
}

// WithClock sets the clock used for user timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func New(policies *auth.Policies, opts ...Option) *Store {
	s := &Store{
		policies: policies,
		hasher:   auth.HMACHasher{},
		clock:    time.Now,
		sessions: make(map[string]*record),
		tokens:   make(map[string]*record),
		owners:   make(map[ownerKey]string),
		users:    make(map[uuid.UUID]*auth.User),
		emails:   make(map[string]uuid.UUID),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *Store) Sessions(now time.Time) auth.SessionDao {
	return &sessionDao{store: s, now: now}
}

func (s *Store) Tokens(now time.Time) auth.TokenDao {
	return &tokenDao{store: s, now: now}
}

func (s *Store) Users() auth.UserDao {
	return &userDao{store: s}
}

// Sweep drops every credential that expired at or before now and returns how
// many were removed.
func (s *Store) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, rec := range s.sessions {
		if !rec.expires.After(now) {
			delete(s.sessions, key)
			removed++
		}
	}
	for key, rec := range s.tokens {
		if !rec.expires.After(now) {
			s.dropToken(key, rec)
			removed++
		}
	}
	return removed
}

func (s *Store) dropToken(key string, rec *record) {
	delete(s.tokens, key)
	owner := ownerKey{userID: rec.userID, category: rec.category}
	if s.owners[owner] == key {
		delete(s.owners, owner)
	}
}

type sessionDao struct {
	store *Store
	now   time.Time
}

func (d *sessionDao) Create(_ context.Context, userID string) (*auth.Session, error) {
	policy := d.store.policies.Session
	key, err := auth.NewCredentialKey()
	if err != nil {
		return nil, err
	}
	id, err := policy.Cipher.Encrypt(key)
	if err != nil {
		return nil, err
	}

	rec := &record{
		key:          key,
		userID:       userID,
		lastModified: d.now,
		expires:      d.now.Add(policy.Timeout),
	}

	d.store.mu.Lock()
	d.store.sessions[key] = rec
	d.store.mu.Unlock()

	return toSession(id, rec), nil
}

func (d *sessionDao) ByID(_ context.Context, id string) (*auth.Session, error) {
	policy := d.store.policies.Session
	key, ok := policy.Cipher.Decrypt(id)
	if !ok {
		return nil, nil
	}

	d.store.mu.Lock()
	defer d.store.mu.Unlock()

	rec, ok := d.store.sessions[key]
	if !ok {
		return nil, nil
	}
	if !rec.expires.After(d.now) {
		delete(d.store.sessions, key)
		return nil, nil
	}
	rec.lastModified = d.now
	rec.expires = d.now.Add(policy.Timeout)
	return toSession(id, rec), nil
}

func (d *sessionDao) Remove(_ context.Context, id string) error {
	key, ok := d.store.policies.Session.Cipher.Decrypt(id)
	if !ok {
		return nil
	}
	d.store.mu.Lock()
	delete(d.store.sessions, key)
	d.store.mu.Unlock()
	return nil
}

type tokenDao struct {
	store *Store
	now   time.Time
}

func (d *tokenDao) Create(_ context.Context, userID, category string) (*auth.Token, error) {
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

	rec := &record{
		key:          key,
		userID:       userID,
		category:     category,
		lastModified: d.now,
		expires:      d.now.Add(policy.Timeout),
	}
	owner := ownerKey{userID: userID, category: category}

	d.store.mu.Lock()
	if previous, ok := d.store.owners[owner]; ok {
		delete(d.store.tokens, previous)
	}
	d.store.tokens[key] = rec
	d.store.owners[owner] = key
	d.store.mu.Unlock()

	return toToken(id, rec), nil
}

func (d *tokenDao) ByID(_ context.Context, id, category string) (*auth.Token, error) {
	policy, ok := d.store.policies.Token(category)
	if !ok {
		return nil, nil
	}
	key, ok := policy.Cipher.Decrypt(id)
	if !ok {
		return nil, nil
	}

	d.store.mu.Lock()
	defer d.store.mu.Unlock()

	rec, ok := d.store.tokens[key]
	if !ok || rec.category != category {
		return nil, nil
	}
	if !rec.expires.After(d.now) {
		d.store.dropToken(key, rec)
		return nil, nil
	}
	rec.lastModified = d.now
	rec.expires = d.now.Add(policy.Timeout)
	return toToken(id, rec), nil
}

func (d *tokenDao) Remove(_ context.Context, id, category string) error {
	policy, ok := d.store.policies.Token(category)
	if !ok {
		return nil
	}
	key, ok := policy.Cipher.Decrypt(id)
	if !ok {
		return nil
	}

	d.store.mu.Lock()
	defer d.store.mu.Unlock()
	if rec, ok := d.store.tokens[key]; ok {
		d.store.dropToken(key, rec)
	}
	return nil
}

func (d *tokenDao) Consume(_ context.Context, id, category string) (*auth.Token, error) {
	policy, ok := d.store.policies.Token(category)
	if !ok {
		return nil, nil
	}
	key, ok := policy.Cipher.Decrypt(id)
	if !ok {
		return nil, nil
	}

	d.store.mu.Lock()
	defer d.store.mu.Unlock()

	rec, ok := d.store.tokens[key]
	if !ok || rec.category != category {
		return nil, nil
	}
	d.store.dropToken(key, rec)
	if !rec.expires.After(d.now) {
		return nil, nil
	}
	return toToken(id, rec), nil
}

type userDao struct {
	store *Store
}

func (d *userDao) Add(_ context.Context, user *auth.User, password string) (*auth.User, error) {
	if user == nil {
		return nil, exception.NewInvalidArgument(exception.KeyParameterRequired, map[string]string{"paramName": "user"})
	}
	digest, salt, err := d.store.hasher.Hash(password)
	if err != nil {
		return nil, exception.Internal(err, "failed to hash password")
	}

	stored := *user
	if stored.ID == uuid.Nil {
		stored.ID = uuid.New()
	}
	stored.Email = strings.TrimSpace(stored.Email)
	stored.PasswordDigest = digest
	stored.PasswordSalt = salt
	created := d.store.clock()
	stored.CreatedAt = &created

	d.store.mu.Lock()
	defer d.store.mu.Unlock()

	if _, exists := d.store.emails[stored.Email]; exists {
		return nil, exception.NewDuplicate(exception.KeyEmailExists, map[string]string{"email": stored.Email})
	}
	if _, exists := d.store.users[stored.ID]; exists {
		return nil, exception.NewDuplicate(exception.KeyEmailExists, map[string]string{"email": stored.Email})
	}
	d.store.users[stored.ID] = &stored
	d.store.emails[stored.Email] = stored.ID

	out := stored
	return &out, nil
}

func (d *userDao) ByID(_ context.Context, id string) (*auth.User, error) {
	uid, ok := auth.ParseUserID(id)
	if !ok {
		return nil, nil
	}
	d.store.mu.Lock()
	defer d.store.mu.Unlock()
	return cloneUser(d.store.users[uid]), nil
}

func (d *userDao) ByEmail(_ context.Context, email string) (*auth.User, error) {
	d.store.mu.Lock()
	defer d.store.mu.Unlock()
	uid, ok := d.store.emails[email]
	if !ok {
		return nil, nil
	}
	return cloneUser(d.store.users[uid]), nil
}

func (d *userDao) Validate(_ context.Context, id string) error {
	uid, ok := auth.ParseUserID(id)
	if !ok {
		return nil
	}
	d.store.mu.Lock()
	defer d.store.mu.Unlock()
	if u, ok := d.store.users[uid]; ok {
		u.Validated = true
		updated := d.store.clock()
		u.UpdatedAt = &updated
	}
	return nil
}

func (d *userDao) Password(_ context.Context, id, password string) error {
	uid, ok := auth.ParseUserID(id)
	if !ok {
		return nil
	}
	digest, salt, err := d.store.hasher.Hash(password)
	if err != nil {
		return exception.Internal(err, "failed to hash password")
	}
	d.store.mu.Lock()
	defer d.store.mu.Unlock()
	if u, ok := d.store.users[uid]; ok {
		u.PasswordDigest = digest
		u.PasswordSalt = salt
		updated := d.store.clock()
		u.UpdatedAt = &updated
	}
	return nil
}

func (d *userDao) Match(ctx context.Context, email, password string) (*auth.User, error) {
	user, err := d.ByEmail(ctx, email)
	if err != nil || user == nil {
		return nil, err
	}
	if !d.store.hasher.Compare(password, user.PasswordDigest, user.PasswordSalt) {
		return nil, nil
	}
	return user, nil
}

func cloneUser(u *auth.User) *auth.User {
	if u == nil {
		return nil
	}
	out := *u
	return &out
}

func toSession(id string, rec *record) *auth.Session {
	return &auth.Session{
		ID:           id,
		UserID:       rec.userID,
		LastModified: rec.lastModified,
		Expires:      rec.expires,
	}
}

func toToken(id string, rec *record) *auth.Token {
	return &auth.Token{
		ID:           id,
		UserID:       rec.userID,
		Category:     rec.category,
		LastModified: rec.lastModified,
		Expires:      rec.expires,
	}
}

var _ auth.Storage = (*Store)(nil)
