package credential

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

const credentialKey = "credential"

// SQLStore keeps the credential in a client_state key/value table.
// The statements are portable between the pgx and sqlite3 drivers.
type SQLStore struct {
	db *sql.DB

	mu    sync.Mutex
	ready bool
}

// NewSQLStore wraps an open database handle.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// ensureSchema creates the table on first use. A failed attempt is retried by the next call.
func (s *SQLStore) ensureSchema(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS client_state (
			k TEXT PRIMARY KEY,
			v TEXT NOT NULL
		)
	`)
	if err != nil {
		return err
	}
	s.ready = true
	return nil
}

// Get loads the credential row.
func (s *SQLStore) Get(ctx context.Context) (Credential, bool, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return Credential{}, false, fmt.Errorf("credential: schema: %w", err)
	}
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT v FROM client_state WHERE k = $1`, credentialKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return Credential{}, false, nil
	}
	if err != nil {
		return Credential{}, false, fmt.Errorf("credential: select: %w", err)
	}
	var c Credential
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return Credential{}, false, ErrCorrupt
	}
	return c, !c.IsZero(), nil
}

// Set upserts the credential row.
func (s *SQLStore) Set(ctx context.Context, c Credential) error {
	if c.IsZero() {
		return ErrEmptyToken
	}
	if err := s.ensureSchema(ctx); err != nil {
		return fmt.Errorf("credential: schema: %w", err)
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO client_state (k, v)
		VALUES ($1, $2)
		ON CONFLICT (k) DO UPDATE SET v = excluded.v
	`, credentialKey, string(raw))
	if err != nil {
		return fmt.Errorf("credential: upsert: %w", err)
	}
	return nil
}

// Clear deletes the credential row.
func (s *SQLStore) Clear(ctx context.Context) error {
	if err := s.ensureSchema(ctx); err != nil {
		return fmt.Errorf("credential: schema: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM client_state WHERE k = $1`, credentialKey); err != nil {
		return fmt.Errorf("credential: delete: %w", err)
	}
	return nil
}
