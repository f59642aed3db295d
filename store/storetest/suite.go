// Package storetest holds the behaviour every storage backend must share.
// Backend packages run it from their own tests.
package storetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-auth-service"
	"github.com/goliatone/go-auth-service/exception"
)

// Timeout is the credential timeout used by Policies.
const Timeout = time.Minute

// T0 is a millisecond aligned reference instant.
var T0 = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

// Factory returns an empty storage backend built on policies.
type Factory func(t *testing.T, policies *auth.Policies) auth.Storage

// Config returns a valid configuration with short test timeouts.
func Config() auth.Config {
	cfg := auth.DefaultConfig()
	cfg.Session = auth.CredentialConfig{Timeout: int(Timeout / time.Second), Secret: "session-secret"}
	cfg.Tokens = map[string]auth.CredentialConfig{
		auth.CategoryPassword: {Timeout: int(Timeout / time.Second), Secret: "password-secret"},
		auth.CategoryEmail:    {Timeout: int(Timeout / time.Second), Secret: "email-secret"},
	}
	return cfg
}

// Policies builds credential policies from Config.
func Policies(t *testing.T) *auth.Policies {
	t.Helper()
	p, err := auth.NewPolicies(Config())
	require.NoError(t, err)
	return p
}

// Run executes the full suite against factory.
func Run(t *testing.T, factory Factory) {
	t.Run("session sliding expiry", func(t *testing.T) { testSessionSlidingExpiry(t, factory) })
	t.Run("session expires without lookups", func(t *testing.T) { testSessionExpires(t, factory) })
	t.Run("session remove", func(t *testing.T) { testSessionRemove(t, factory) })
	t.Run("session malformed ids", func(t *testing.T) { testSessionMalformed(t, factory) })
	t.Run("session concurrent lookups", func(t *testing.T) { testSessionConcurrent(t, factory) })
	t.Run("token single use", func(t *testing.T) { testTokenSingleUse(t, factory) })
	t.Run("token one per owner", func(t *testing.T) { testTokenOnePerOwner(t, factory) })
	t.Run("token category is matched", func(t *testing.T) { testTokenCategory(t, factory) })
	t.Run("token expiry", func(t *testing.T) { testTokenExpiry(t, factory) })
	t.Run("token consume", func(t *testing.T) { testTokenConsume(t, factory) })
	t.Run("token consumed once under contention", func(t *testing.T) { testTokenConsumeConcurrent(t, factory) })
	t.Run("users", func(t *testing.T) { testUsers(t, factory) })
}

func testSessionSlidingExpiry(t *testing.T, factory Factory) {
	ctx := context.Background()
	store := factory(t, Policies(t))
	userID := uuid.NewString()

	created, err := store.Sessions(T0).Create(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, userID, created.UserID)
	assert.True(t, created.LastModified.Equal(T0))
	assert.True(t, created.Expires.Equal(T0.Add(Timeout)))
	assert.True(t, auth.IsHex(created.ID))

	t1 := T0.Add(Timeout - time.Second)
	found, err := store.Sessions(t1).ByID(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, userID, found.UserID)
	assert.True(t, found.LastModified.Equal(t1))
	assert.True(t, found.Expires.Equal(t1.Add(Timeout)))

	// past the original expiry but inside the extended one
	t2 := T0.Add(Timeout + time.Second)
	found, err = store.Sessions(t2).ByID(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.True(t, found.Expires.Equal(t2.Add(Timeout)))
}

func testSessionExpires(t *testing.T, factory Factory) {
	ctx := context.Background()
	store := factory(t, Policies(t))

	created, err := store.Sessions(T0).Create(ctx, uuid.NewString())
	require.NoError(t, err)

	found, err := store.Sessions(T0.Add(Timeout + time.Second)).ByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Nil(t, found)

	// expiry is exclusive
	other, err := store.Sessions(T0).Create(ctx, uuid.NewString())
	require.NoError(t, err)
	found, err = store.Sessions(T0.Add(Timeout)).ByID(ctx, other.ID)
	require.NoError(t, err)
	assert.Nil(t, found)
}

func testSessionRemove(t *testing.T, factory Factory) {
	ctx := context.Background()
	store := factory(t, Policies(t))

	created, err := store.Sessions(T0).Create(ctx, uuid.NewString())
	require.NoError(t, err)

	require.NoError(t, store.Sessions(T0).Remove(ctx, created.ID))
	require.NoError(t, store.Sessions(T0).Remove(ctx, created.ID))

	found, err := store.Sessions(T0).ByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Nil(t, found)
}

func testSessionMalformed(t *testing.T, factory Factory) {
	ctx := context.Background()
	store := factory(t, Policies(t))

	for _, id := range []string{"", "zz", "abcdef", "00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff"} {
		found, err := store.Sessions(T0).ByID(ctx, id)
		require.NoError(t, err, id)
		assert.Nil(t, found, id)
		require.NoError(t, store.Sessions(T0).Remove(ctx, id), id)
	}

	// a token id never opens as a session
	token, err := store.Tokens(T0).Create(ctx, uuid.NewString(), auth.CategoryPassword)
	require.NoError(t, err)
	found, err := store.Sessions(T0).ByID(ctx, token.ID)
	require.NoError(t, err)
	assert.Nil(t, found)
}

func testSessionConcurrent(t *testing.T, factory Factory) {
	ctx := context.Background()
	store := factory(t, Policies(t))

	created, err := store.Sessions(T0).Create(ctx, uuid.NewString())
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	misses := make(chan struct{}, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			now := T0.Add(time.Duration(i) * time.Second)
			found, err := store.Sessions(now).ByID(ctx, created.ID)
			if err != nil {
				errs <- err
				return
			}
			if found == nil {
				misses <- struct{}{}
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	close(misses)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Empty(t, misses)
}

func testTokenSingleUse(t *testing.T, factory Factory) {
	ctx := context.Background()
	store := factory(t, Policies(t))
	userID := uuid.NewString()

	token, err := store.Tokens(T0).Create(ctx, userID, auth.CategoryPassword)
	require.NoError(t, err)
	assert.Equal(t, auth.CategoryPassword, token.Category)
	assert.True(t, token.Expires.Equal(T0.Add(Timeout)))

	found, err := store.Tokens(T0).ByID(ctx, token.ID, auth.CategoryPassword)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, userID, found.UserID)

	require.NoError(t, store.Tokens(T0).Remove(ctx, token.ID, auth.CategoryPassword))

	found, err = store.Tokens(T0).ByID(ctx, token.ID, auth.CategoryPassword)
	require.NoError(t, err)
	assert.Nil(t, found)
}

func testTokenOnePerOwner(t *testing.T, factory Factory) {
	ctx := context.Background()
	store := factory(t, Policies(t))
	userID := uuid.NewString()

	first, err := store.Tokens(T0).Create(ctx, userID, auth.CategoryPassword)
	require.NoError(t, err)
	emailToken, err := store.Tokens(T0).Create(ctx, userID, auth.CategoryEmail)
	require.NoError(t, err)
	second, err := store.Tokens(T0).Create(ctx, userID, auth.CategoryPassword)
	require.NoError(t, err)

	found, err := store.Tokens(T0).ByID(ctx, first.ID, auth.CategoryPassword)
	require.NoError(t, err)
	assert.Nil(t, found, "older token of the same category is replaced")

	found, err = store.Tokens(T0).ByID(ctx, second.ID, auth.CategoryPassword)
	require.NoError(t, err)
	assert.NotNil(t, found)

	found, err = store.Tokens(T0).ByID(ctx, emailToken.ID, auth.CategoryEmail)
	require.NoError(t, err)
	assert.NotNil(t, found, "other categories are untouched")
}

func testTokenCategory(t *testing.T, factory Factory) {
	ctx := context.Background()
	store := factory(t, Policies(t))

	token, err := store.Tokens(T0).Create(ctx, uuid.NewString(), auth.CategoryPassword)
	require.NoError(t, err)

	found, err := store.Tokens(T0).ByID(ctx, token.ID, auth.CategoryEmail)
	require.NoError(t, err)
	assert.Nil(t, found)

	found, err = store.Tokens(T0).ByID(ctx, token.ID, "unknown")
	require.NoError(t, err)
	assert.Nil(t, found)

	_, err = store.Tokens(T0).Create(ctx, uuid.NewString(), "unknown")
	require.Error(t, err)
	assert.True(t, exception.Is(err, exception.InvalidArgument, exception.KeyUnknownCategory))
}

func testTokenExpiry(t *testing.T, factory Factory) {
	ctx := context.Background()
	store := factory(t, Policies(t))

	token, err := store.Tokens(T0).Create(ctx, uuid.NewString(), auth.CategoryEmail)
	require.NoError(t, err)

	found, err := store.Tokens(T0.Add(Timeout + time.Second)).ByID(ctx, token.ID, auth.CategoryEmail)
	require.NoError(t, err)
	assert.Nil(t, found)
}

func testTokenConsume(t *testing.T, factory Factory) {
	ctx := context.Background()
	store := factory(t, Policies(t))
	userID := uuid.NewString()

	token, err := store.Tokens(T0).Create(ctx, userID, auth.CategoryPassword)
	require.NoError(t, err)

	// a category mismatch leaves the token in place
	spent, err := store.Tokens(T0).Consume(ctx, token.ID, auth.CategoryEmail)
	require.NoError(t, err)
	assert.Nil(t, spent)

	spent, err = store.Tokens(T0).Consume(ctx, token.ID, auth.CategoryPassword)
	require.NoError(t, err)
	require.NotNil(t, spent)
	assert.Equal(t, token.ID, spent.ID)
	assert.Equal(t, userID, spent.UserID)
	assert.Equal(t, auth.CategoryPassword, spent.Category)
	assert.True(t, spent.Expires.Equal(T0.Add(Timeout)))

	spent, err = store.Tokens(T0).Consume(ctx, token.ID, auth.CategoryPassword)
	require.NoError(t, err)
	assert.Nil(t, spent)

	found, err := store.Tokens(T0).ByID(ctx, token.ID, auth.CategoryPassword)
	require.NoError(t, err)
	assert.Nil(t, found)

	expired, err := store.Tokens(T0).Create(ctx, userID, auth.CategoryEmail)
	require.NoError(t, err)
	spent, err = store.Tokens(T0.Add(Timeout)).Consume(ctx, expired.ID, auth.CategoryEmail)
	require.NoError(t, err)
	assert.Nil(t, spent)

	spent, err = store.Tokens(T0).Consume(ctx, "deadbeef", auth.CategoryEmail)
	require.NoError(t, err)
	assert.Nil(t, spent)
}

func testTokenConsumeConcurrent(t *testing.T, factory Factory) {
	ctx := context.Background()
	store := factory(t, Policies(t))

	token, err := store.Tokens(T0).Create(ctx, uuid.NewString(), auth.CategoryPassword)
	require.NoError(t, err)

	const callers = 8
	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		wins  = make(chan *auth.Token, callers)
		errs  = make(chan error, callers)
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			spent, err := store.Tokens(T0).Consume(ctx, token.ID, auth.CategoryPassword)
			if err != nil {
				errs <- err
				return
			}
			if spent != nil {
				wins <- spent
			}
		}()
	}
	close(start)
	wg.Wait()
	close(wins)
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Len(t, wins, 1)
}

func testUsers(t *testing.T, factory Factory) {
	ctx := context.Background()
	store := factory(t, Policies(t))
	users := store.Users()

	added, err := users.Add(ctx, &auth.User{Email: "a@b.com"}, "abcdef")
	require.NoError(t, err)
	require.NotNil(t, added)
	assert.NotEqual(t, uuid.Nil, added.ID)
	assert.Equal(t, "a@b.com", added.Email)
	assert.False(t, added.Validated)
	assert.NotEmpty(t, added.PasswordDigest)
	assert.NotEqual(t, "abcdef", added.PasswordDigest)

	_, err = users.Add(ctx, &auth.User{Email: "a@b.com"}, "other1")
	require.Error(t, err)
	assert.True(t, exception.Is(err, exception.Duplicate, exception.KeyEmailExists))

	byID, err := users.ByID(ctx, added.ID.String())
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, "a@b.com", byID.Email)

	missing, err := users.ByID(ctx, "not-a-uuid")
	require.NoError(t, err)
	assert.Nil(t, missing)

	missing, err = users.ByID(ctx, uuid.NewString())
	require.NoError(t, err)
	assert.Nil(t, missing)

	missing, err = users.ByEmail(ctx, "x@y.com")
	require.NoError(t, err)
	assert.Nil(t, missing)

	matched, err := users.Match(ctx, "a@b.com", "abcdef")
	require.NoError(t, err)
	require.NotNil(t, matched)
	assert.Equal(t, added.ID, matched.ID)

	matched, err = users.Match(ctx, "a@b.com", "wrong!")
	require.NoError(t, err)
	assert.Nil(t, matched)

	matched, err = users.Match(ctx, "nobody@b.com", "abcdef")
	require.NoError(t, err)
	assert.Nil(t, matched)

	require.NoError(t, users.Password(ctx, added.ID.String(), "newpass1"))
	matched, err = users.Match(ctx, "a@b.com", "abcdef")
	require.NoError(t, err)
	assert.Nil(t, matched)
	matched, err = users.Match(ctx, "a@b.com", "newpass1")
	require.NoError(t, err)
	assert.NotNil(t, matched)

	require.NoError(t, users.Validate(ctx, added.ID.String()))
	byEmail, err := users.ByEmail(ctx, "a@b.com")
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	assert.True(t, byEmail.Validated)
}
