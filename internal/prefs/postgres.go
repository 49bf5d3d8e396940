package prefs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
)

// Postgres stores preferences in a shared database so several service
// instances see the same high scores.
type Postgres struct {
	db *sql.DB
}

// NewPostgres connects to dsn, pings it and migrates the schema.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	if dsn == "" {
		return nil, errors.New("postgres: empty DSN")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	if _, err := db.ExecContext(ctx, createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := p.db.QueryRowContext(ctx, `select value from preferences where key=$1`, key).Scan(&v)
	switch {
	case err == nil:
		return v, true, nil
	case errors.Is(err, sql.ErrNoRows):
		return "", false, nil
	default:
		return "", false, err
	}
}

func (p *Postgres) Set(ctx context.Context, key, value string) error {
	const q = `
insert into preferences(key, value, updated_at)
values ($1, $2, now())
on conflict (key)
do update set value=excluded.value, updated_at=now()`
	_, err := p.db.ExecContext(ctx, q, key, value)
	return err
}

// SetIfGreater raises the integer stored under key in one statement.
func (p *Postgres) SetIfGreater(ctx context.Context, key string, value int) (bool, error) {
	const q = `
insert into preferences(key, value, updated_at)
values ($1, $2, now())
on conflict (key)
do update set value=excluded.value, updated_at=now()
where preferences.value::bigint < excluded.value::bigint`
	res, err := p.db.ExecContext(ctx, q, key, strconv.Itoa(value))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (p *Postgres) Close() error { return p.db.Close() }
