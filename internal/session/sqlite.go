package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// timeLayout is fixed-width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements Store using SQLite via modernc.org/sqlite (pure Go).
type SQLiteStore struct {
	db *sql.DB
}

// Compile-time check that SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite-backed store.
// dbPath is the path to the SQLite database file; use ":memory:" for testing.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("session: open database: %w", err)
	}
	// Every connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("session: ping database: %w", err)
	}

	createTableSQL := `
		CREATE TABLE IF NOT EXISTS scans (
			id              TEXT PRIMARY KEY,
			target_url      TEXT NOT NULL,
			record_json     TEXT NOT NULL,
			total_findings  INTEGER DEFAULT 0,
			critical        INTEGER DEFAULT 0,
			high            INTEGER DEFAULT 0,
			created_at      DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at      DATETIME DEFAULT CURRENT_TIMESTAMP
		);
	`
	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("session: create table: %w", err)
	}

	createIndexSQL := `
		CREATE INDEX IF NOT EXISTS idx_scans_target_url ON scans(target_url);
	`
	if _, err := db.Exec(createIndexSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("session: create index: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Save persists a ScanRecord, replacing any record with the same ID.
// If the record's ID is empty, a new UUID is generated and assigned.
func (s *SQLiteStore) Save(ctx context.Context, rec *ScanRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	rec.UpdatedAt = now
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}

	recordJSON, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("session: marshal record: %w", err)
	}

	var stats struct{ total, critical, high int }
	if rec.Report != nil {
		st := rec.Report.Statistics
		stats.total, stats.critical, stats.high = st.Total, st.Critical, st.High
	}

	query := `
		INSERT INTO scans (id, target_url, record_json, total_findings, critical, high, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			target_url     = excluded.target_url,
			record_json    = excluded.record_json,
			total_findings = excluded.total_findings,
			critical       = excluded.critical,
			high           = excluded.high,
			updated_at     = excluded.updated_at
	`
	_, err = s.db.ExecContext(ctx, query,
		rec.ID,
		rec.TargetURL,
		string(recordJSON),
		stats.total,
		stats.critical,
		stats.high,
		rec.CreatedAt.Format(timeLayout),
		rec.UpdatedAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("session: save record: %w", err)
	}

	return nil
}

// Load retrieves the most recently updated ScanRecord for the given target URL.
// Returns (nil, nil) if no record is found.
func (s *SQLiteStore) Load(ctx context.Context, targetURL string) (*ScanRecord, error) {
	query := `
		SELECT record_json FROM scans
		WHERE target_url = ?
		ORDER BY updated_at DESC
		LIMIT 1
	`
	return s.loadOne(ctx, query, targetURL)
}

// LoadByID retrieves a ScanRecord by its scan ID.
// Returns (nil, nil) if no record is found.
func (s *SQLiteStore) LoadByID(ctx context.Context, id string) (*ScanRecord, error) {
	query := `SELECT record_json FROM scans WHERE id = ?`
	return s.loadOne(ctx, query, id)
}

func (s *SQLiteStore) loadOne(ctx context.Context, query string, args ...any) (*ScanRecord, error) {
	row := s.db.QueryRowContext(ctx, query, args...)

	var recordJSON string
	if err := row.Scan(&recordJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("session: scan row: %w", err)
	}

	var rec ScanRecord
	if err := json.Unmarshal([]byte(recordJSON), &rec); err != nil {
		return nil, fmt.Errorf("session: unmarshal record: %w", err)
	}

	return &rec, nil
}

// List returns a lightweight summary of all stored scans, newest first.
func (s *SQLiteStore) List(ctx context.Context) ([]*ScanSummary, error) {
	query := `SELECT id, target_url, total_findings, critical, high, updated_at FROM scans ORDER BY updated_at DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("session: list scans: %w", err)
	}
	defer rows.Close()

	var summaries []*ScanSummary
	for rows.Next() {
		var (
			summary   ScanSummary
			updatedAt string
		)
		if err := rows.Scan(&summary.ID, &summary.TargetURL, &summary.TotalFindings,
			&summary.Critical, &summary.High, &updatedAt); err != nil {
			return nil, fmt.Errorf("session: scan summary row: %w", err)
		}
		t, err := time.Parse(time.RFC3339Nano, updatedAt)
		if err != nil {
			// Fall back to SQLite default format.
			t, err = time.Parse("2006-01-02 15:04:05", updatedAt)
			if err != nil {
				return nil, fmt.Errorf("session: parse updated_at %q: %w", updatedAt, err)
			}
		}
		summary.UpdatedAt = t
		summaries = append(summaries, &summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("session: iterate rows: %w", err)
	}

	return summaries, nil
}

// Delete removes a scan by its ID.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM scans WHERE id = ?`
	_, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("session: delete scan: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Cleanup removes scans whose updated_at is older than maxAge from now.
// It returns the number of deleted scans.
func (s *SQLiteStore) Cleanup(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-maxAge).Format(timeLayout)

	query := `DELETE FROM scans WHERE updated_at < ?`
	result, err := s.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("session: cleanup scans: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("session: rows affected: %w", err)
	}

	return deleted, nil
}
