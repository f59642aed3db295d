package sqlstore_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	auth "github.com/goliatone/go-auth-service"
	sqlstore "github.com/goliatone/go-auth-service/store/sql"
	"github.com/goliatone/go-auth-service/store/storetest"
)

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	client := newTestClient(t)
	return client.DB()
}

func newTestClient(t *testing.T) *persistence.Client {
	t.Helper()

	dsn := fmt.Sprintf("file:authsvc-test-%d?mode=memory&cache=shared", time.Now().UnixNano())
	client, err := sqlstore.Open(context.Background(), sqlstore.PersistenceConfig{DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestStore_Conformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T, policies *auth.Policies) auth.Storage {
		return sqlstore.New(newTestDB(t), policies)
	})
}

func TestStore_ConformanceWithBcrypt(t *testing.T) {
	storetest.Run(t, func(t *testing.T, policies *auth.Policies) auth.Storage {
		return sqlstore.New(newTestDB(t), policies, sqlstore.WithHasher(auth.BcryptHasher{Cost: 4}))
	})
}

func TestOpen_MigrationsAreIdempotent(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	require.NoError(t, client.Migrate(ctx))

	for _, table := range []string{"users", "sessions", "tokens"} {
		var name string
		err := client.DB().NewRaw(
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?",
			table,
		).Scan(ctx, &name)
		require.NoError(t, err, table)
		assert.Equal(t, table, name)
	}
}

func TestStore_Ping(t *testing.T) {
	store := sqlstore.New(newTestDB(t), storetest.Policies(t))
	assert.NoError(t, store.Ping(context.Background()))
	assert.NotNil(t, store.DB())
}

func TestStore_ExpiredRowsStayInvisible(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	store := sqlstore.New(db, storetest.Policies(t))

	session, err := store.Sessions(storetest.T0).Create(ctx, uuid.NewString())
	require.NoError(t, err)

	later := storetest.T0.Add(storetest.Timeout + time.Second)
	found, err := store.Sessions(later).ByID(ctx, session.ID)
	require.NoError(t, err)
	assert.Nil(t, found)

	// a failed lookup must not revive the row
	found, err = store.Sessions(storetest.T0).ByID(ctx, session.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.True(t, found.Expires.Equal(storetest.T0.Add(storetest.Timeout)))
}

func TestUsersRepository_Repository(t *testing.T) {
	ctx := context.Background()
	users := sqlstore.NewUsersRepository(newTestDB(t), nil)

	added, err := users.Add(ctx, &auth.User{Email: "repo@b.com"}, "secret1")
	require.NoError(t, err)

	record, err := users.Repository().GetByID(ctx, added.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "repo@b.com", record.Email)
}
