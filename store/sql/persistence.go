package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"io/fs"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	auth "github.com/goliatone/go-auth-service"
)

//go:embed data/sql/migrations/*.sql
var migrationsFS embed.FS

// GetMigrationsFS returns the sqlite migrations for users, sessions and tokens.
func GetMigrationsFS() fs.FS {
	sub, err := fs.Sub(migrationsFS, "data/sql/migrations")
	if err != nil {
		return migrationsFS
	}
	return sub
}

// PersistenceConfig describes the sqlite connection handed to go-persistence-bun.
type PersistenceConfig struct {
	DSN         string
	Debug       bool
	PingTimeout time.Duration
}

func (c PersistenceConfig) GetDebug() bool {
	return c.Debug
}

func (c PersistenceConfig) GetDriver() string {
	return sqliteshim.ShimName
}

func (c PersistenceConfig) GetServer() string {
	return c.DSN
}

func (c PersistenceConfig) GetPingTimeout() time.Duration {
	if c.PingTimeout <= 0 {
		return time.Second
	}
	return c.PingTimeout
}

func (c PersistenceConfig) GetOtelIdentifier() string {
	return "authsvc"
}

func init() {
	persistence.RegisterModel((*auth.User)(nil))
	persistence.RegisterModel((*sessionRecord)(nil))
	persistence.RegisterModel((*tokenRecord)(nil))
}

// Open connects to a sqlite database through sqliteshim and returns a
// persistence client with the schema migrated. In memory databases are
// limited to a single connection so every query sees the same data.
func Open(ctx context.Context, cfg PersistenceConfig) (*persistence.Client, error) {
	sqldb, err := sql.Open(cfg.GetDriver(), cfg.DSN)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open sqlite database").
			WithMetadata(map[string]any{"dsn": cfg.DSN})
	}
	if strings.Contains(cfg.DSN, ":memory:") || strings.Contains(cfg.DSN, "mode=memory") {
		sqldb.SetMaxOpenConns(1)
	}

	client, err := persistence.New(cfg, sqldb, sqlitedialect.New())
	if err != nil {
		_ = sqldb.Close()
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create persistence client")
	}

	client.RegisterSQLMigrations(GetMigrationsFS())
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to migrate sqlite schema")
	}
	return client, nil
}
