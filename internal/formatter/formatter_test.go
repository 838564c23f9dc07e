package formatter

import (
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/playlist-converter/internal/models"
	"github.com/desertthunder/playlist-converter/internal/shared"
	th "github.com/desertthunder/playlist-converter/internal/testing"
)

func ptr(f float64) *float64 { return &f }

func newReport() *Report {
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	completed := created.Add(90 * time.Second)

	record := models.RestoreConversionRecord(
		"job-1", 7, "pl-1", "Road Trip", 3, 1, "yt-pl",
		models.StatusCompleted, models.CauseNone, "", created, &completed,
	)
	logs := []*models.TrackLog{
		models.RestoreTrackLog("l0", "job-1", 0, "Song One", "Artist One", "dst-0", ptr(0.91234), models.OutcomeMatched, models.CauseNone, created),
		models.RestoreTrackLog("l1", "job-1", 1, "Song | Two", "Artist Two", "", ptr(0.3), models.OutcomeUnmatched, models.CauseNone, created),
		models.RestoreTrackLog("l2", "job-1", 2, "Song Three", "Artist Three", "", nil, models.OutcomeErrored, models.CauseTimeout, created),
	}
	return &Report{Record: record, Logs: logs}
}

func TestExporters(t *testing.T) {
	t.Run("ExportToCSV", func(t *testing.T) {
		data, err := ExportToCSV(newReport())
		if err != nil {
			t.Fatalf("ExportToCSV failed: %v", err)
		}

		rows, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
		if err != nil {
			t.Fatalf("output is not valid CSV: %v", err)
		}
		if len(rows) != 4 {
			t.Fatalf("got %d rows, want header + 3", len(rows))
		}
		if strings.Join(rows[0], ",") != "Position,Track,Artist,Outcome,Destination ID,Score,Cause" {
			t.Errorf("CSV headers = %v", rows[0])
		}
		if want := []string{"1", "Song One", "Artist One", "matched", "dst-0", "0.912", ""}; strings.Join(rows[1], "|") != strings.Join(want, "|") {
			t.Errorf("row 1 = %v, want %v", rows[1], want)
		}
		if rows[3][5] != "" || rows[3][6] != "timeout" {
			t.Errorf("errored row = %v", rows[3])
		}
	})

	t.Run("ExportToMarkdown", func(t *testing.T) {
		data, err := ExportToMarkdown(newReport())
		if err != nil {
			t.Fatalf("ExportToMarkdown failed: %v", err)
		}
		output := string(data)

		for _, want := range []string{
			"# Road Trip",
			"**Conversion**: #7 (`job-1`)",
			"**Matched**: 1 of 3 (33.3%)",
			"**Destination playlist**: `yt-pl`",
			"**Completed**: 2025-03-01T12:01:30Z",
			"| 2 | Song \\| Two | Artist Two | unmatched | 0.300 |  |",
			"| 3 | Song Three | Artist Three | errored |  | timeout |",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("Markdown missing %q\n%s", want, output)
			}
		}
		if strings.Contains(output, "**Failure**") {
			t.Error("completed conversion should not report a failure")
		}
	})

	t.Run("ExportToMarkdown failed record", func(t *testing.T) {
		record := models.RestoreConversionRecord(
			"job-2", 8, "pl-2", "", 0, 0, "",
			models.StatusFailed, models.CauseCredentialsExpired, models.StageCredentials, time.Now(), nil,
		)

		data, err := ExportToMarkdown(&Report{Record: record})
		if err != nil {
			t.Fatalf("ExportToMarkdown failed: %v", err)
		}
		output := string(data)
		if !strings.Contains(output, "# pl-2") {
			t.Errorf("expected playlist id as title when name is empty:\n%s", output)
		}
		if !strings.Contains(output, "**Failure**: credentials_expired at credentials") {
			t.Errorf("missing failure line:\n%s", output)
		}
		if !strings.Contains(output, "(n/a)") {
			t.Errorf("expected n/a match rate for an empty conversion:\n%s", output)
		}
		if strings.Contains(output, "## Tracks") {
			t.Error("no track table expected without logs")
		}
	})

	t.Run("ExportToText", func(t *testing.T) {
		data, err := ExportToText(newReport())
		if err != nil {
			t.Fatalf("ExportToText failed: %v", err)
		}
		output := string(data)

		if !strings.Contains(output, "Conversion #7: Road Trip") {
			t.Errorf("missing title line:\n%s", output)
		}
		if !strings.Contains(output, "Not matched (2):") {
			t.Errorf("missing unmatched section:\n%s", output)
		}
		if !strings.Contains(output, "3. Artist Three - Song Three [timeout]") {
			t.Errorf("missing errored track:\n%s", output)
		}
		if strings.Contains(output, "Song One") {
			t.Error("matched tracks should not be listed")
		}
	})
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"csv", FormatCSV, false},
		{"CSV", FormatCSV, false},
		{"markdown", FormatMarkdown, false},
		{"md", FormatMarkdown, false},
		{"text", FormatText, false},
		{"json", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, shared.ErrInvalidArgument) {
				t.Errorf("error = %v, want ErrInvalidArgument", err)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestWriteExport(t *testing.T) {
	t.Run("explicit path with missing directories", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "reports", "road-trip.csv")

		written, err := WriteExport(newReport(), FormatCSV, path)
		if err != nil {
			t.Fatalf("WriteExport failed: %v", err)
		}
		if written != path {
			t.Errorf("written = %q, want %q", written, path)
		}
		th.AssertFileExists(t, path)
		if content := th.MustReadFile(t, path); !strings.HasPrefix(content, "Position,Track") {
			t.Errorf("unexpected content: %s", content)
		}
	})

	t.Run("default filename", func(t *testing.T) {
		dir := t.TempDir()
		t.Chdir(dir)

		written, err := WriteExport(newReport(), FormatMarkdown, "")
		if err != nil {
			t.Fatalf("WriteExport failed: %v", err)
		}
		if written != "job-1_report.md" {
			t.Errorf("written = %q, want job-1_report.md", written)
		}
		th.AssertFileExists(t, filepath.Join(dir, written))
	})

	t.Run("unwritable path", func(t *testing.T) {
		blocker := filepath.Join(t.TempDir(), "file")
		if err := os.WriteFile(blocker, nil, 0644); err != nil {
			t.Fatal(err)
		}

		if _, err := WriteExport(newReport(), FormatText, filepath.Join(blocker, "report.txt")); err == nil {
			t.Error("expected an error writing beneath a regular file")
		}
	})

	t.Run("unknown format", func(t *testing.T) {
		if _, err := WriteExport(newReport(), Format("pdf"), filepath.Join(t.TempDir(), "x.pdf")); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("error = %v, want ErrInvalidArgument", err)
		}
	})
}
