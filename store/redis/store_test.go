package redisstore_test

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-auth-service"
	"github.com/goliatone/go-auth-service/store/memory"
	redisstore "github.com/goliatone/go-auth-service/store/redis"
	"github.com/goliatone/go-auth-service/store/storetest"
)

func newClient(t *testing.T) redis.UniversalClient {
	t.Helper()

	addr := os.Getenv("AUTHSVC_REDIS_ADDR")
	if addr == "" {
		t.Skip("AUTHSVC_REDIS_ADDR not set")
	}
	client := redisstore.NewClient(auth.StorageConfig{RedisAddr: addr})
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not reachable at %s: %v", addr, err)
	}
	return client
}

func TestStore_Conformance(t *testing.T) {
	client := newClient(t)

	storetest.Run(t, func(t *testing.T, policies *auth.Policies) auth.Storage {
		prefix := fmt.Sprintf("authsvc-test-%d", time.Now().UnixNano())
		credentials := redisstore.New(client, policies, redisstore.WithPrefix(prefix))
		return auth.CombineStorage(credentials, memory.New(policies))
	})
}

func TestStore_Ping(t *testing.T) {
	client := newClient(t)
	store := redisstore.New(client, storetest.Policies(t))
	require.NoError(t, store.Ping(context.Background()))
}

func TestStore_KeysShareOneSlot(t *testing.T) {
	ctx := context.Background()
	client := newClient(t)
	prefix := fmt.Sprintf("authsvc-slot-%d", time.Now().UnixNano())
	store := redisstore.New(client, storetest.Policies(t), redisstore.WithPrefix(prefix))
	userID := uuid.NewString()

	_, err := store.Sessions(storetest.T0).Create(ctx, userID)
	require.NoError(t, err)
	_, err = store.Tokens(storetest.T0).Create(ctx, userID, auth.CategoryPassword)
	require.NoError(t, err)
	token, err := store.Tokens(storetest.T0).Create(ctx, userID, auth.CategoryPassword)
	require.NoError(t, err)

	keys, err := client.Keys(ctx, "*"+prefix+"*").Result()
	require.NoError(t, err)
	// session, owner index and the replacing token
	assert.Len(t, keys, 3)
	for _, key := range keys {
		assert.True(t, strings.HasPrefix(key, "{"+prefix+"}:"), key)
	}

	spent, err := store.Tokens(storetest.T0).Consume(ctx, token.ID, auth.CategoryPassword)
	require.NoError(t, err)
	require.NotNil(t, spent)

	keys, err = client.Keys(ctx, "*"+prefix+"*").Result()
	require.NoError(t, err)
	assert.Len(t, keys, 1, "consume drops the token and its owner index")
}
