package prefs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema creates the preferences table.
const Schema = `CREATE TABLE IF NOT EXISTS coinwatch_preferences (
	user_id    TEXT PRIMARY KEY,
	data       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const (
	selectPrefsSQL = `SELECT data FROM coinwatch_preferences WHERE user_id = $1`
	upsertPrefsSQL = `INSERT INTO coinwatch_preferences (user_id, data, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (user_id) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`
	deletePrefsSQL = `DELETE FROM coinwatch_preferences WHERE user_id = $1`
)

// DB is the subset of the pgx API used by [PostgresStore].
// *pgxpool.Pool and *pgx.Conn satisfy it.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore keeps preferences as JSONB rows keyed by user id.
type PostgresStore struct {
	db DB
}

// NewPostgresStore returns a PostgresStore. Call [PostgresStore.Migrate]
// once before use if the table may not exist.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// OpenPostgres creates a connection pool for dsn and verifies it.
func OpenPostgres(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}

// Migrate creates the preferences table if needed.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("migrate preferences: %w", err)
	}
	return nil
}

// Load reads the preferences for userID.
func (s *PostgresStore) Load(ctx context.Context, userID string) (Preferences, error) {
	if err := ValidateUser(userID); err != nil {
		return Preferences{}, err
	}
	var raw []byte
	err := s.db.QueryRow(ctx, selectPrefsSQL, userID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return Preferences{}, ErrNotFound
	}
	if err != nil {
		return Preferences{}, fmt.Errorf("select preferences: %w", err)
	}
	var p Preferences
	if err := json.Unmarshal(raw, &p); err != nil {
		return Preferences{}, fmt.Errorf("decode preferences: %w", err)
	}
	return p, nil
}

// Save upserts the preferences for userID.
func (s *PostgresStore) Save(ctx context.Context, userID string, p Preferences) error {
	if err := ValidateUser(userID); err != nil {
		return err
	}
	b, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}
	if _, err := s.db.Exec(ctx, upsertPrefsSQL, userID, b); err != nil {
		return fmt.Errorf("upsert preferences: %w", err)
	}
	return nil
}

// Delete removes the preferences row for userID.
func (s *PostgresStore) Delete(ctx context.Context, userID string) error {
	if err := ValidateUser(userID); err != nil {
		return err
	}
	if _, err := s.db.Exec(ctx, deletePrefsSQL, userID); err != nil {
		return fmt.Errorf("delete preferences: %w", err)
	}
	return nil
}
