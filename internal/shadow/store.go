package shadow

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rmckenny/shadowsync/internal/infrastructure/database"
)

// Store persists the last-applied desired state so that a delta
// replayed after a restart does not re-actuate hardware.
type Store interface {
	// Load returns the persisted last-applied attributes for the
	// thing, or an empty map when none have been saved.
	Load(ctx context.Context, thingName string) (Attributes, error)

	// Save replaces the persisted last-applied attributes.
	Save(ctx context.Context, thingName string, attrs Attributes) error
}

// NoopStore discards state. Used when persistence is disabled.
type NoopStore struct{}

func (NoopStore) Load(ctx context.Context, thingName string) (Attributes, error) {
	return Attributes{}, nil
}

func (NoopStore) Save(ctx context.Context, thingName string, attrs Attributes) error {
	return nil
}

// SQLiteStore keeps one row per thing with the last-applied desired
// state as a JSON blob.
type SQLiteStore struct {
	db *database.DB
}

// NewSQLiteStore creates the store and ensures its schema exists.
func NewSQLiteStore(db *database.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) ensureSchema() error {
	const schema = `
		CREATE TABLE IF NOT EXISTS shadow_last_applied (
			thing_name  TEXT PRIMARY KEY,
			attributes  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		)`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("%w: create schema: %w", ErrStoreFailed, err)
	}
	return nil
}

// Load returns the persisted attributes, normalised back onto the
// supported scalar set.
func (s *SQLiteStore) Load(ctx context.Context, thingName string) (Attributes, error) {
	const query = `SELECT attributes FROM shadow_last_applied WHERE thing_name = ?`

	var blob string
	err := s.db.QueryRowContext(ctx, query, thingName).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return Attributes{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load %q: %w", ErrStoreFailed, thingName, err)
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(blob), &raw); err != nil {
		return nil, fmt.Errorf("%w: decode %q: %w", ErrStoreFailed, thingName, err)
	}
	attrs, err := normaliseAttributes(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: decode %q: %w", ErrStoreFailed, thingName, err)
	}
	return attrs, nil
}

// Save upserts the attributes for the thing.
func (s *SQLiteStore) Save(ctx context.Context, thingName string, attrs Attributes) error {
	blob, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("%w: encode %q: %w", ErrStoreFailed, thingName, err)
	}

	const upsert = `
		INSERT INTO shadow_last_applied (thing_name, attributes, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(thing_name) DO UPDATE SET
			attributes = excluded.attributes,
			updated_at = excluded.updated_at`

	if _, err := s.db.ExecContext(ctx, upsert, thingName, string(blob), time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("%w: save %q: %w", ErrStoreFailed, thingName, err)
	}
	return nil
}
