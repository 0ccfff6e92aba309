package journal

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/criticalpoint/syncbridge/internal/config"
	"github.com/criticalpoint/syncbridge/internal/fault"
)

// DB is the journal's connection. PostgreSQL goes through a pgx pool wrapped
// as database/sql; SQLite is opened directly.
type DB struct {
	SQL     *sql.DB
	pool    *pgxpool.Pool
	dialect string
	log     *zap.Logger
}

func Open(ctx context.Context, cfg config.JournalConfig, log *zap.Logger) (*DB, error) {
	switch cfg.Driver {
	case "pgx":
		return openPostgres(ctx, cfg, log)
	case "sqlite3":
		return openSQLite(ctx, cfg, log)
	}
	return nil, fault.Configuration("journal", "open", "unsupported driver %q", cfg.Driver)
}

func openPostgres(ctx context.Context, cfg config.JournalConfig, log *zap.Logger) (*DB, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to db: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	return &DB{SQL: stdlib.OpenDBFromPool(pool), pool: pool, dialect: "postgres", log: log}, nil
}

func openSQLite(ctx context.Context, cfg config.JournalConfig, log *zap.Logger) (*DB, error) {
	db, err := sql.Open("sqlite3", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", cfg.DSN, err)
	}
	// one writer
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return &DB{SQL: db, dialect: "sqlite3", log: log}, nil
}

func (db *DB) Dialect() string { return db.dialect }

func (db *DB) Close() error {
	err := db.SQL.Close()
	if db.pool != nil {
		db.pool.Close()
	}
	return err
}

// rebind rewrites ? placeholders into $n for PostgreSQL. A ? inside a
// single-quoted literal is left alone; '' escapes toggle twice and cancel.
func (db *DB) rebind(query string) string {
	if db.dialect != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	quoted := false
	for _, r := range query {
		switch {
		case r == '\'':
			quoted = !quoted
		case r == '?' && !quoted:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
