package output

import (
	"strings"
	"testing"

	"github.com/seismostack/gmselect/internal/models"
)

func sampleResult(twoComponent bool) *models.SelectionResult {
	result := &models.SelectionResult{
		Records: []models.SelectedRecord{
			{Seq: 1, RecordID: 4031, ScaleFactor: 1.25, FileName: "RSN4031_1.AT2"},
			{Seq: 2, RecordID: 77, ScaleFactor: 0.871, FileName: "RSN77_1.AT2"},
		},
	}
	if twoComponent {
		result.Records[0].FileName2 = "RSN4031_2.AT2"
		result.Records[1].FileName2 = "RSN77_2.AT2"
	}
	return result
}

func TestWriteSingleComponent(t *testing.T) {
	var b strings.Builder
	if err := Write(&b, sampleResult(false), ','); err != nil {
		t.Fatalf("write: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(b.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3", len(lines))
	}
	if lines[0] != "seq,record_id,scale_factor,file_name" {
		t.Fatalf("unexpected header: %q", lines[0])
	}
	if lines[1] != "1,4031,1.250000,RSN4031_1.AT2" {
		t.Fatalf("unexpected first row: %q", lines[1])
	}
}

func TestWriteTwoComponent(t *testing.T) {
	var b strings.Builder
	if err := Write(&b, sampleResult(true), '\t'); err != nil {
		t.Fatalf("write: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(b.String()), "\n")
	if lines[0] != "seq\trecord_id\tscale_factor\tfile_name\tfile_name2" {
		t.Fatalf("unexpected header: %q", lines[0])
	}
	if !strings.HasSuffix(lines[2], "RSN77_2.AT2") {
		t.Fatalf("second component missing: %q", lines[2])
	}
}
