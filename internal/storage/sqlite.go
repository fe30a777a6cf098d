package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteParamStore implements ParamStore using SQLite. This is the default
// backend (spec SPEC_FULL.md Persistence module).
type SQLiteParamStore struct {
	db *sql.DB
}

// NewSQLiteParamStore opens (and migrates) a SQLite-backed param store.
func NewSQLiteParamStore(dbPath string) (*SQLiteParamStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &SQLiteParamStore{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteParamStore) init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS param_overrides (
		id TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS activation_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		protocol TEXT NOT NULL,
		rf_intf TEXT NOT NULL,
		mode TEXT NOT NULL,
		outcome TEXT NOT NULL,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_activation_log_timestamp ON activation_log(timestamp);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (s *SQLiteParamStore) SaveParam(override ParamOverride) error {
	query := `
		INSERT INTO param_overrides (id, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			value = excluded.value,
			updated_at = CURRENT_TIMESTAMP
	`
	if _, err := s.db.Exec(query, override.ID, override.Value); err != nil {
		return fmt.Errorf("failed to save param %s: %w", override.ID, err)
	}
	return nil
}

func (s *SQLiteParamStore) GetParam(id string) (ParamOverride, bool, error) {
	query := `SELECT value, updated_at FROM param_overrides WHERE id = ?`
	var override ParamOverride
	override.ID = id
	err := s.db.QueryRow(query, id).Scan(&override.Value, &override.UpdatedAt)
	if err == sql.ErrNoRows {
		return ParamOverride{}, false, nil
	}
	if err != nil {
		return ParamOverride{}, false, fmt.Errorf("failed to query param %s: %w", id, err)
	}
	return override, true, nil
}

func (s *SQLiteParamStore) ListParams() ([]ParamOverride, error) {
	rows, err := s.db.Query(`SELECT id, value, updated_at FROM param_overrides`)
	if err != nil {
		return nil, fmt.Errorf("failed to query params: %w", err)
	}
	defer rows.Close()

	overrides := []ParamOverride{}
	for rows.Next() {
		var o ParamOverride
		if err := rows.Scan(&o.ID, &o.Value, &o.UpdatedAt); err != nil {
			continue
		}
		overrides = append(overrides, o)
	}
	return overrides, nil
}

func (s *SQLiteParamStore) DeleteParam(id string) error {
	result, err := s.db.Exec(`DELETE FROM param_overrides WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete param %s: %w", id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("param not found: %s", id)
	}
	return nil
}

func (s *SQLiteParamStore) AppendActivation(record ActivationRecord) error {
	query := `
		INSERT INTO activation_log (protocol, rf_intf, mode, outcome, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`
	ts := record.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	if _, err := s.db.Exec(query, record.Protocol, record.RFIntf, record.Mode, record.Outcome, ts); err != nil {
		return fmt.Errorf("failed to append activation record: %w", err)
	}
	return nil
}

func (s *SQLiteParamStore) ListActivations(limit int) ([]ActivationRecord, error) {
	query := `SELECT id, protocol, rf_intf, mode, outcome, timestamp FROM activation_log ORDER BY id DESC LIMIT ?`
	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query activation log: %w", err)
	}
	defer rows.Close()

	records := []ActivationRecord{}
	for rows.Next() {
		var r ActivationRecord
		if err := rows.Scan(&r.ID, &r.Protocol, &r.RFIntf, &r.Mode, &r.Outcome, &r.Timestamp); err != nil {
			continue
		}
		records = append(records, r)
	}
	return records, nil
}

func (s *SQLiteParamStore) Close() error {
	return s.db.Close()
}
