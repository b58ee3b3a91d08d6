// Package sqlite persists EmergencyState so dedup survives restarts.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/couchcryptid/snow-emergency-monitor/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS emergency_state (
	id               INTEGER PRIMARY KEY CHECK (id = 1),
	active           INTEGER NOT NULL,
	declaration_date TEXT NOT NULL DEFAULT '',
	date_source      TEXT NOT NULL DEFAULT '',
	last_alert_key   TEXT NOT NULL DEFAULT '',
	updated_at       TEXT NOT NULL DEFAULT ''
);`

// Store keeps a single EmergencyState row.
// It implements pipeline.StateStore.
type Store struct {
	db *sql.DB
}

// Open creates the database file and schema if they do not exist.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create state directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}
	// One writer; SQLite serializes anyway and this avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("init state schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Load returns the persisted state, or the zero state if none was saved.
func (s *Store) Load(ctx context.Context) (domain.EmergencyState, error) {
	var (
		active                   bool
		date, source, key, stamp string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT active, declaration_date, date_source, last_alert_key, updated_at FROM emergency_state WHERE id = 1`,
	).Scan(&active, &date, &source, &key, &stamp)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.EmergencyState{}, nil
	}
	if err != nil {
		return domain.EmergencyState{}, fmt.Errorf("load state: %w", err)
	}

	st := domain.EmergencyState{
		Active:       active,
		DateSource:   domain.DateSource(source),
		LastAlertKey: key,
	}
	if st.Date, err = domain.ParseDeclarationDate(date); err != nil {
		return domain.EmergencyState{}, fmt.Errorf("load state: %w", err)
	}
	if stamp != "" {
		if st.UpdatedAt, err = time.Parse(time.RFC3339Nano, stamp); err != nil {
			return domain.EmergencyState{}, fmt.Errorf("load state: parse updated_at: %w", err)
		}
	}
	return st, nil
}

// Save overwrites the persisted state.
func (s *Store) Save(ctx context.Context, st domain.EmergencyState) error {
	var stamp string
	if !st.UpdatedAt.IsZero() {
		stamp = st.UpdatedAt.UTC().Format(time.RFC3339Nano)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO emergency_state (id, active, declaration_date, date_source, last_alert_key, updated_at)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			active = excluded.active,
			declaration_date = excluded.declaration_date,
			date_source = excluded.date_source,
			last_alert_key = excluded.last_alert_key,
			updated_at = excluded.updated_at`,
		st.Active, st.Date.String(), string(st.DateSource), st.LastAlertKey, stamp,
	)
	if err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}
