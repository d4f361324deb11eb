// Package manifest records every produced video in a small SQLite database,
// one row per render. The frame index itself is rebuilt per run and never
// persisted; the manifest only remembers what was rendered, for the history
// command and batch reporting.
package manifest

import (
	"crypto/rand"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

// Record is one rendered video.
type Record struct {
	ID          string    `json:"id"`
	Date        string    `json:"date"`  // event calendar date, YYYY-MM-DD
	Label       string    `json:"label"` // sunrise, sunset, goldenhr_sunset, goldenhr_rewind
	OutputPath  string    `json:"output_path"`
	FrameCount  int       `json:"frame_count"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
	CreatedAt   time.Time `json:"created_at"`
}

// Init opens the SQLite database at baseDir/sunlapse.db, creating the
// directory and schema as needed. The baseDir parameter lets tests use
// t.TempDir().
func Init(baseDir string) (*sql.DB, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	dbPath := filepath.Join(baseDir, "sunlapse.db")
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// migrate creates the schema. Idempotent.
func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS renders (
			id TEXT PRIMARY KEY,
			date TEXT NOT NULL,
			label TEXT NOT NULL,
			output_path TEXT NOT NULL,
			frame_count INTEGER NOT NULL,
			window_start INTEGER NOT NULL,
			window_end INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_renders_created ON renders(created_at)`)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// NewID generates a ULID for a render record.
func NewID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Insert stores a render record. A zero CreatedAt is filled with now; an
// empty ID gets a fresh ULID.
func Insert(db *sql.DB, rec *Record) error {
	if rec.ID == "" {
		id, err := NewID()
		if err != nil {
			return err
		}
		rec.ID = id
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	_, err := db.Exec(`
		INSERT INTO renders (id, date, label, output_path, frame_count, window_start, window_end, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID, rec.Date, rec.Label, rec.OutputPath, rec.FrameCount,
		rec.WindowStart.Unix(), rec.WindowEnd.Unix(), rec.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert render: %w", err)
	}
	return nil
}

// List returns render records, most recent first, with the total row count
// for pagination.
func List(db *sql.DB, limit, offset int) ([]Record, int, error) {
	var total int
	if err := db.QueryRow(`SELECT COUNT(*) FROM renders`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count renders: %w", err)
	}

	rows, err := db.Query(`
		SELECT id, date, label, output_path, frame_count, window_start, window_end, created_at
		FROM renders
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list renders: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var start, end, created int64
		if err := rows.Scan(&rec.ID, &rec.Date, &rec.Label, &rec.OutputPath, &rec.FrameCount, &start, &end, &created); err != nil {
			return nil, 0, fmt.Errorf("scan render: %w", err)
		}
		rec.WindowStart = time.Unix(start, 0).UTC()
		rec.WindowEnd = time.Unix(end, 0).UTC()
		rec.CreatedAt = time.Unix(created, 0).UTC()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return records, total, nil
}
