// Package db persists run summaries and per-slot classifications into
// DuckDB for SQL-side diagnostics. The store is optional: the GeoJSON
// artifact remains the sole hand-off to the serving layer.
package db

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/marcboeker/go-duckdb"
)

// RunRecord summarizes one batch run.
type RunRecord struct {
	Date            string
	ComputedAt      time.Time
	Terraces        int
	Processed       int
	OutOfCoverage   int
	Failed          int
	SunlitSlots     int
	WeatherAdjusted bool
	OutputPath      string
}

// ClassificationRow is one (terrace, slot) classification.
type ClassificationRow struct {
	Date              string
	TerraceID         string
	Slot              string
	Sunlit            bool
	Geometric         bool
	CloudPct          float64
	ObstructionDist   float64
	ObstructionHeight float64
}

// Store wraps the DuckDB connection.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the store at path and ensures the schema.
func Open(path string) (*Store, error) {
	conn, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("opening duckdb %s: %w", path, err)
	}
	s := &Store{db: conn}
	if err := s.init(); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) init() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_date VARCHAR,
			computed_at TIMESTAMP,
			terraces INTEGER,
			processed INTEGER,
			out_of_coverage INTEGER,
			failed INTEGER,
			sunlit_slots INTEGER,
			weather_adjusted BOOLEAN,
			output_path VARCHAR
		)`,
		`CREATE TABLE IF NOT EXISTS classifications (
			run_date VARCHAR,
			terrace_id VARCHAR,
			slot VARCHAR,
			sunlit BOOLEAN,
			geometric BOOLEAN,
			cloud_pct DOUBLE,
			obstruction_dist DOUBLE,
			obstruction_height DOUBLE
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("initializing schema: %w", err)
		}
	}
	return nil
}

// SaveRun replaces any previous rows for the run's date with the new
// summary and classification rows, so re-running a day is idempotent.
func (s *Store) SaveRun(run RunRecord, rows []ClassificationRow) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM runs WHERE run_date = ?`, run.Date); err != nil {
		return fmt.Errorf("clearing previous run: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM classifications WHERE run_date = ?`, run.Date); err != nil {
		return fmt.Errorf("clearing previous classifications: %w", err)
	}

	if _, err := tx.Exec(
		`INSERT INTO runs VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.Date, run.ComputedAt, run.Terraces, run.Processed, run.OutOfCoverage,
		run.Failed, run.SunlitSlots, run.WeatherAdjusted, run.OutputPath,
	); err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO classifications VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing classification insert: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.Exec(
			row.Date, row.TerraceID, row.Slot, row.Sunlit, row.Geometric,
			row.CloudPct, row.ObstructionDist, row.ObstructionHeight,
		); err != nil {
			return fmt.Errorf("inserting classification for %s %s: %w", row.TerraceID, row.Slot, err)
		}
	}

	return tx.Commit()
}

// TerraceStats aggregates one terrace's slots for a run date. First
// and last sunlit slot keys are empty when the terrace never saw sun.
type TerraceStats struct {
	TerraceID   string
	SunlitSlots int
	TotalSlots  int
	FirstSunlit string
	LastSunlit  string
}

// SlotStats aggregates the classifications of a run date per terrace,
// ordered by terrace ID.
func (s *Store) SlotStats(date string) ([]TerraceStats, error) {
	// SUM over integers yields a HUGEINT in DuckDB; cast so the rows
	// scan into plain ints.
	rows, err := s.db.Query(`SELECT terrace_id,
			CAST(SUM(CASE WHEN sunlit THEN 1 ELSE 0 END) AS INTEGER),
			CAST(COUNT(*) AS INTEGER),
			MIN(CASE WHEN sunlit THEN slot END),
			MAX(CASE WHEN sunlit THEN slot END)
		FROM classifications WHERE run_date = ?
		GROUP BY terrace_id ORDER BY terrace_id`, date)
	if err != nil {
		return nil, fmt.Errorf("querying slot stats: %w", err)
	}
	defer rows.Close()

	var stats []TerraceStats
	for rows.Next() {
		var st TerraceStats
		var first, last sql.NullString
		if err := rows.Scan(&st.TerraceID, &st.SunlitSlots, &st.TotalSlots, &first, &last); err != nil {
			return nil, fmt.Errorf("scanning slot stats: %w", err)
		}
		st.FirstSunlit = first.String
		st.LastSunlit = last.String
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

// TerraceSlots returns one terrace's per-slot classifications for a
// run date, in slot order.
func (s *Store) TerraceSlots(date, terraceID string) ([]ClassificationRow, error) {
	rows, err := s.db.Query(`SELECT run_date, terrace_id, slot, sunlit, geometric,
			cloud_pct, obstruction_dist, obstruction_height
		FROM classifications WHERE run_date = ? AND terrace_id = ?
		ORDER BY slot`, date, terraceID)
	if err != nil {
		return nil, fmt.Errorf("querying terrace slots: %w", err)
	}
	defer rows.Close()

	var result []ClassificationRow
	for rows.Next() {
		var c ClassificationRow
		if err := rows.Scan(&c.Date, &c.TerraceID, &c.Slot, &c.Sunlit, &c.Geometric,
			&c.CloudPct, &c.ObstructionDist, &c.ObstructionHeight); err != nil {
			return nil, fmt.Errorf("scanning terrace slot: %w", err)
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

// ListRuns returns all stored run summaries, most recent date first.
func (s *Store) ListRuns() ([]RunRecord, error) {
	rows, err := s.db.Query(`SELECT run_date, computed_at, terraces, processed,
		out_of_coverage, failed, sunlit_slots, weather_adjusted, output_path
		FROM runs ORDER BY run_date DESC`)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var r RunRecord
		if err := rows.Scan(&r.Date, &r.ComputedAt, &r.Terraces, &r.Processed,
			&r.OutOfCoverage, &r.Failed, &r.SunlitSlots, &r.WeatherAdjusted, &r.OutputPath); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
