package adapters

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"net/url"
	"strings"

	"github.com/pressly/goose/v3"
	"github.com/soffa-projects/matchqueue/h"
	"github.com/soffa-projects/matchqueue/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite3"

	changeLogTable = "database_changelog"
)

// DB is a bun connection that knows which dialect it speaks.
type DB struct {
	*bun.DB
	dialect string
	schema  string
}

// NewDB opens postgres:// or sqlite:// urls and applies the migrations
// found under dir in migrations.
func NewDB(databaseURL string, migrations fs.FS, dir string) (*DB, error) {
	d := &DB{}
	if err := d.configure(databaseURL); err != nil {
		return nil, err
	}
	if migrations != nil {
		if err := d.migrate(migrations, dir); err != nil {
			_ = d.Close()
			return nil, err
		}
	}
	return d, nil
}

// postgresConnector moves the schema parameter of databaseURL into the
// search_path startup parameter, so every pooled connection uses it.
func postgresConnector(databaseURL string) (*pgdriver.Connector, string, error) {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return nil, "", err
	}
	schema := u.Query().Get("schema")
	if schema == "" {
		return pgdriver.NewConnector(pgdriver.WithDSN(databaseURL)), "", nil
	}
	dsn, err := h.WithoutParam(databaseURL, "schema")
	if err != nil {
		return nil, "", err
	}
	connector := pgdriver.NewConnector(pgdriver.WithDSN(dsn))
	cfg := connector.Config()
	if cfg.ConnParams == nil {
		cfg.ConnParams = make(map[string]interface{})
	}
	cfg.ConnParams["search_path"] = schema
	return connector, schema, nil
}

func (d *DB) Dialect() string {
	return d.dialect
}

func (d *DB) Ping(ctx context.Context) error {
	_, err := d.NewRaw("SELECT 1").Exec(ctx)
	return err
}

func (d *DB) configure(databaseURL string) error {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		connector, schema, err := postgresConnector(databaseURL)
		if err != nil {
			return err
		}
		d.schema = schema
		d.DB = bun.NewDB(sql.OpenDB(connector), pgdialect.New())
		d.dialect = DialectPostgres
		if d.schema != "" {
			if _, err := d.Exec("CREATE SCHEMA IF NOT EXISTS ?", bun.Ident(d.schema)); err != nil {
				return fmt.Errorf("failed to create schema %s: %w", d.schema, err)
			}
		}

	case strings.HasPrefix(databaseURL, "sqlite://"):
		sqldb, err := sql.Open(sqliteshim.ShimName, strings.TrimPrefix(databaseURL, "sqlite://"))
		if err != nil {
			return fmt.Errorf("failed to open SQLite database: %w", err)
		}
		// sqlite allows a single writer; one connection keeps claim
		// transactions serialized instead of failing with SQLITE_BUSY.
		sqldb.SetMaxOpenConns(1)
		d.DB = bun.NewDB(sqldb, sqlitedialect.New())
		d.dialect = DialectSQLite
		if _, err := d.Exec("PRAGMA foreign_keys = ON;"); err != nil {
			return fmt.Errorf("failed to enable foreign keys: %w", err)
		}

	default:
		return fmt.Errorf("unsupported database url: %q", databaseURL)
	}
	return nil
}

func (d *DB) migrate(migrations fs.FS, dir string) error {
	goose.SetBaseFS(migrations)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect(d.dialect); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	goose.SetTableName(changeLogTable)
	goose.SetLogger(goose.NopLogger())

	if err := goose.Up(d.DB.DB, dir, goose.WithAllowMissing()); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("migrations completed (%s)", d.dialect)
	return nil
}
