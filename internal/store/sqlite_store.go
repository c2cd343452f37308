// Package store keeps a SQLite snapshot of the release reference tables so a
// restarted server does not refetch them from upstream.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/ag3dash/server/internal/data/vobs"
)

// Store persists sample sets and samples.
type Store struct {
	db *sqlx.DB
	mu sync.Mutex
}

// NewStore opens (creating if needed) the snapshot database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory for sqlite: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	if dbPath == ":memory:" {
		// every pooled connection would get its own empty database
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sample_sets (
		position INTEGER NOT NULL,
		sample_set TEXT PRIMARY KEY,
		sample_count INTEGER NOT NULL DEFAULT 0,
		region TEXT NOT NULL DEFAULT '',
		taxon TEXT NOT NULL DEFAULT '',
		study_id TEXT NOT NULL DEFAULT '',
		study_url TEXT NOT NULL DEFAULT '',
		release TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS samples (
		position INTEGER PRIMARY KEY,
		sample_id TEXT NOT NULL,
		sample_set TEXT NOT NULL,
		country TEXT NOT NULL DEFAULT '',
		admin1_name TEXT NOT NULL DEFAULT '',
		location TEXT NOT NULL DEFAULT '',
		taxon TEXT NOT NULL DEFAULT '',
		year INTEGER NOT NULL DEFAULT 0,
		month INTEGER NOT NULL DEFAULT 0,
		latitude REAL,
		longitude REAL
	);

	CREATE INDEX IF NOT EXISTS idx_samples_sample_set ON samples(sample_set);

	CREATE TABLE IF NOT EXISTS snapshot_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// sampleRow mirrors the samples table; coordinates are nullable.
type sampleRow struct {
	Position   int             `db:"position"`
	SampleID   string          `db:"sample_id"`
	SampleSet  string          `db:"sample_set"`
	Country    string          `db:"country"`
	Admin1Name string          `db:"admin1_name"`
	Location   string          `db:"location"`
	Taxon      string          `db:"taxon"`
	Year       int             `db:"year"`
	Month      int             `db:"month"`
	Latitude   sql.NullFloat64 `db:"latitude"`
	Longitude  sql.NullFloat64 `db:"longitude"`
}

func nullable(f float64) sql.NullFloat64 {
	if math.IsNaN(f) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: f, Valid: true}
}

func coord(n sql.NullFloat64) float64 {
	if !n.Valid {
		return math.NaN()
	}
	return n.Float64
}

// SaveSnapshot replaces both tables in one transaction.
func (s *Store) SaveSnapshot(ctx context.Context, sets []vobs.SampleSet, records []vobs.SampleRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin snapshot: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{"DELETE FROM sample_sets", "DELETE FROM samples", "DELETE FROM snapshot_meta"} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to clear snapshot: %w", err)
		}
	}

	setStmt, err := tx.PreparexContext(ctx, `
		INSERT INTO sample_sets (position, sample_set, sample_count, region, taxon, study_id, study_url, release)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer setStmt.Close()
	for i, ss := range sets {
		if _, err := setStmt.ExecContext(ctx, i, ss.SampleSet, ss.SampleCount, ss.Region, ss.Taxon, ss.StudyID, ss.StudyURL, ss.Release); err != nil {
			return fmt.Errorf("failed to insert sample set %s: %w", ss.SampleSet, err)
		}
	}

	recStmt, err := tx.PreparexContext(ctx, `
		INSERT INTO samples (position, sample_id, sample_set, country, admin1_name, location, taxon, year, month, latitude, longitude)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer recStmt.Close()
	for i, r := range records {
		if _, err := recStmt.ExecContext(ctx, i, r.SampleID, r.SampleSet, r.Country, r.Admin1Name, r.Location,
			r.Taxon, r.Year, r.Month, nullable(r.Latitude), nullable(r.Longitude)); err != nil {
			return fmt.Errorf("failed to insert sample %s: %w", r.SampleID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO snapshot_meta (key, value) VALUES ('saved_at', ?)`,
		time.Now().UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	return tx.Commit()
}

// SavedAt reports when the snapshot was written; ok is false when no
// snapshot exists.
func (s *Store) SavedAt(ctx context.Context) (t time.Time, ok bool, err error) {
	var v string
	err = s.db.GetContext(ctx, &v, `SELECT value FROM snapshot_meta WHERE key = 'saved_at'`)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	t, err = time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("corrupt snapshot timestamp %q: %w", v, err)
	}
	return t, true, nil
}

// SampleSets returns the stored sample sets in manifest order.
func (s *Store) SampleSets(ctx context.Context) ([]vobs.SampleSet, error) {
	var sets []vobs.SampleSet
	err := s.db.SelectContext(ctx, &sets, `
		SELECT sample_set, sample_count, region, taxon, study_id, study_url, release
		FROM sample_sets ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sample sets: %w", err)
	}
	return sets, nil
}

// Samples returns stored samples of the given sample sets (all when empty)
// in their original order.
func (s *Store) Samples(ctx context.Context, sampleSets []string) ([]vobs.SampleRecord, error) {
	var rows []sampleRow
	var err error
	if len(sampleSets) == 0 {
		err = s.db.SelectContext(ctx, &rows, `SELECT * FROM samples ORDER BY position`)
	} else {
		var q string
		var args []interface{}
		q, args, err = sqlx.In(`SELECT * FROM samples WHERE sample_set IN (?) ORDER BY position`, sampleSets)
		if err == nil {
			err = s.db.SelectContext(ctx, &rows, s.db.Rebind(q), args...)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}

	out := make([]vobs.SampleRecord, len(rows))
	for i, r := range rows {
		out[i] = vobs.SampleRecord{
			SampleID:   r.SampleID,
			SampleSet:  r.SampleSet,
			Country:    r.Country,
			Admin1Name: r.Admin1Name,
			Location:   r.Location,
			Taxon:      r.Taxon,
			Year:       r.Year,
			Month:      r.Month,
			Latitude:   coord(r.Latitude),
			Longitude:  coord(r.Longitude),
		}
	}
	return out, nil
}
