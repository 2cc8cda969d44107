// Package output serializes completed selections to delimited text.
package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/seismostack/gmselect/internal/models"
)

// Write streams the selection as delimited rows: sequence number, record id,
// scale factor, and file name(s). The second name column appears only when at
// least one record carries a second component.
func Write(w io.Writer, result *models.SelectionResult, delimiter rune) error {
	writer := csv.NewWriter(w)
	if delimiter != 0 {
		writer.Comma = delimiter
	}

	twoComponent := false
	for _, rec := range result.Records {
		if rec.FileName2 != "" {
			twoComponent = true
			break
		}
	}

	header := []string{"seq", "record_id", "scale_factor", "file_name"}
	if twoComponent {
		header = append(header, "file_name2")
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, rec := range result.Records {
		row := []string{
			strconv.Itoa(rec.Seq),
			strconv.FormatInt(rec.RecordID, 10),
			strconv.FormatFloat(rec.ScaleFactor, 'f', 6, 64),
			rec.FileName,
		}
		if twoComponent {
			row = append(row, rec.FileName2)
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write record %d: %w", rec.Seq, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// WriteFile writes the selection to path, creating or truncating it. The file
// is only written for completed runs; callers must not reach this on a
// precondition failure.
func WriteFile(path string, result *models.SelectionResult, delimiter rune) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := Write(f, result, delimiter); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
