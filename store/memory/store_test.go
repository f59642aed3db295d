package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-auth-service"
	"github.com/goliatone/go-auth-service/store/memory"
	"github.com/goliatone/go-auth-service/store/storetest"
)

func TestStore_Conformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T, policies *auth.Policies) auth.Storage {
		return memory.New(policies)
	})
}

func TestStore_ConformanceWithBcrypt(t *testing.T) {
	storetest.Run(t, func(t *testing.T, policies *auth.Policies) auth.Storage {
		return memory.New(policies, memory.WithHasher(auth.BcryptHasher{Cost: 4}))
	})
}

func TestStore_Sweep(t *testing.T) {
	ctx := context.Background()
	store := memory.New(storetest.Policies(t))

	_, err := store.Sessions(storetest.T0).Create(ctx, uuid.NewString())
	require.NoError(t, err)
	token, err := store.Tokens(storetest.T0).Create(ctx, uuid.NewString(), auth.CategoryEmail)
	require.NoError(t, err)
	live, err := store.Sessions(storetest.T0.Add(storetest.Timeout)).Create(ctx, uuid.NewString())
	require.NoError(t, err)

	removed := store.Sweep(storetest.T0.Add(storetest.Timeout + time.Second))
	assert.Equal(t, 2, removed)

	found, err := store.Tokens(storetest.T0).ByID(ctx, token.ID, auth.CategoryEmail)
	require.NoError(t, err)
	assert.Nil(t, found)

	still, err := store.Sessions(storetest.T0.Add(storetest.Timeout+time.Second)).ByID(ctx, live.ID)
	require.NoError(t, err)
	assert.NotNil(t, still)
}

func TestStore_UsersAreCopies(t *testing.T) {
	ctx := context.Background()
	store := memory.New(storetest.Policies(t))

	added, err := store.Users().Add(ctx, &auth.User{Email: "a@b.com"}, "abcdef")
	require.NoError(t, err)
	added.Email = "mutated@b.com"

	found, err := store.Users().ByID(ctx, added.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", found.Email)
}
