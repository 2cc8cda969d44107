package recorddb

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/seismostack/gmselect/internal/models"
)

// Fixed leading columns of a flat-file catalog; the remaining header cells
// are the tabulated periods in seconds.
var csvHeader = []string{"id", "magnitude", "distance_km", "vs30", "lowest_usable_freq", "file_name", "file_name2"}

// LoadCSV screens a flat-file catalog and returns the admitted records
// resampled onto the grid. The first row is a header whose trailing columns
// name the tabulated periods.
func LoadCSV(path string, grid []float64, filters Filters) (*models.CandidatePool, error) {
	if len(grid) == 0 {
		return nil, fmt.Errorf("period grid is empty")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer func() { _ = f.Close() }()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read catalog header: %w", err)
	}
	if len(header) < len(csvHeader)+2 {
		return nil, fmt.Errorf("catalog header has %d columns, want at least %d", len(header), len(csvHeader)+2)
	}
	for i, name := range csvHeader {
		if header[i] != name {
			return nil, fmt.Errorf("catalog column %d is %q, want %q", i, header[i], name)
		}
	}

	periods := make([]float64, len(header)-len(csvHeader))
	for i := range periods {
		period, err := strconv.ParseFloat(header[len(csvHeader)+i], 64)
		if err != nil {
			return nil, fmt.Errorf("parse period column %q: %w", header[len(csvHeader)+i], err)
		}
		if i > 0 && period <= periods[i-1] {
			return nil, fmt.Errorf("period columns not ascending at %q", header[len(csvHeader)+i])
		}
		periods[i] = period
	}

	maxPeriod := grid[len(grid)-1]
	pool := &models.CandidatePool{Periods: append([]float64(nil), grid...)}
	line := 1
	for {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read catalog line: %w", err)
		}
		line++
		if len(fields) != len(header) {
			return nil, fmt.Errorf("catalog line %d has %d columns, want %d", line, len(fields), len(header))
		}

		meta, sas, err := parseCSVRecord(fields, periods)
		if err != nil {
			return nil, fmt.Errorf("catalog line %d: %w", line, err)
		}
		if !filters.admits(meta, maxPeriod) {
			continue
		}
		logSa, err := interpLogSa(periods, sas, grid)
		if err != nil {
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

func parseCSVRecord(fields []string, periods []float64) (recordMeta, []float64, error) {
	var meta recordMeta
	var err error
	if meta.id, err = strconv.ParseInt(fields[0], 10, 64); err != nil {
		return meta, nil, fmt.Errorf("parse id %q: %w", fields[0], err)
	}
	floatCols := []struct {
		dst  *float64
		name string
		idx  int
	}{
		{&meta.magnitude, "magnitude", 1},
		{&meta.distanceKm, "distance_km", 2},
		{&meta.vs30, "vs30", 3},
		{&meta.lowestUsableFreq, "lowest_usable_freq", 4},
	}
	for _, col := range floatCols {
		if *col.dst, err = strconv.ParseFloat(fields[col.idx], 64); err != nil {
			return meta, nil, fmt.Errorf("parse %s %q: %w", col.name, fields[col.idx], err)
		}
	}
	meta.fileName = fields[5]
	meta.fileName2 = fields[6]

	sas := make([]float64, len(periods))
	for i := range periods {
		if sas[i], err = strconv.ParseFloat(fields[len(csvHeader)+i], 64); err != nil {
			return meta, nil, fmt.Errorf("parse spectral value %q: %w", fields[len(csvHeader)+i], err)
		}
	}
	return meta, sas, nil
}
