package recorddb

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/seismostack/gmselect/internal/models"
)

// Store reads a record catalog from a SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens a catalog database.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("catalog path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Init creates the catalog schema if it does not exist.
func (s *Store) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS records (
			id INTEGER PRIMARY KEY,
			magnitude REAL NOT NULL,
			distance_km REAL NOT NULL,
			vs30 REAL NOT NULL,
			lowest_usable_freq REAL NOT NULL DEFAULT 0,
			file_name TEXT NOT NULL,
			file_name2 TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS spectra (
			record_id INTEGER NOT NULL REFERENCES records(id),
			period REAL NOT NULL,
			sa REAL NOT NULL,
			PRIMARY KEY (record_id, period)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create catalog schema: %w", err)
		}
	}
	return nil
}

// AddRecord inserts one record and its tabulated spectrum.
func (s *Store) AddRecord(ctx context.Context, id int64, magnitude, distanceKm, vs30, lowestUsableFreq float64, fileName, fileName2 string, periods, sas []float64) error {
	if len(periods) != len(sas) {
		return fmt.Errorf("record %d: %d periods but %d spectral values", id, len(periods), len(sas))
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO records (id, magnitude, distance_km, vs30, lowest_usable_freq, file_name, file_name2)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, magnitude, distanceKm, vs30, lowestUsableFreq, fileName, fileName2); err != nil {
		return fmt.Errorf("insert record %d: %w", id, err)
	}
	for i := range periods {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO spectra (record_id, period, sa) VALUES (?, ?, ?)`,
			id, periods[i], sas[i]); err != nil {
			return fmt.Errorf("insert spectrum of record %d: %w", id, err)
		}
	}
	return tx.Commit()
}

// LoadPool screens the catalog and returns the admitted records with their
// log-spectral values resampled onto the grid. Records whose tabulated
// spectra do not cover the grid are screened out with the rest.
func (s *Store) LoadPool(ctx context.Context, grid []float64, filters Filters) (*models.CandidatePool, error) {
	if len(grid) == 0 {
		return nil, fmt.Errorf("period grid is empty")
	}
	maxPeriod := grid[len(grid)-1]

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, magnitude, distance_km, vs30, lowest_usable_freq, file_name, file_name2
		 FROM records ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var admitted []recordMeta
	for rows.Next() {
		var meta recordMeta
		if err := rows.Scan(&meta.id, &meta.magnitude, &meta.distanceKm, &meta.vs30,
			&meta.lowestUsableFreq, &meta.fileName, &meta.fileName2); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		if filters.admits(meta, maxPeriod) {
			admitted = append(admitted, meta)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}

	pool := &models.CandidatePool{Periods: append([]float64(nil), grid...)}
	for _, meta := range admitted {
		periods, sas, err := s.loadSpectrum(ctx, meta.id)
		if err != nil {
			return nil, err
		}
		logSa, err := interpLogSa(periods, sas, grid)
		if err != nil {
			// Spectrum does not cover the grid; screened out like any other
			// inadmissible record.
			continue
		}
		pool.Records = append(pool.Records, models.PoolRecord{
			ID:        meta.id,
			FileName:  meta.fileName,
			FileName2: meta.fileName2,
		})
		pool.LogSa = append(pool.LogSa, logSa)
	}
	return pool, nil
}

func (s *Store) loadSpectrum(ctx context.Context, recordID int64) (periods, sas []float64, err error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT period, sa FROM spectra WHERE record_id = ? ORDER BY period`, recordID)
	if err != nil {
		return nil, nil, fmt.Errorf("query spectrum of record %d: %w", recordID, err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var period, sa float64
		if err := rows.Scan(&period, &sa); err != nil {
			return nil, nil, fmt.Errorf("scan spectrum of record %d: %w", recordID, err)
		}
		periods = append(periods, period)
		sas = append(sas, sa)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate spectrum of record %d: %w", recordID, err)
	}
	return periods, sas, nil
}
