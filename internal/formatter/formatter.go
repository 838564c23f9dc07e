// package formatter exports conversion history to various formats (CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/playlist-converter/internal/models"
	"github.com/desertthunder/playlist-converter/internal/shared"
)

// Format names an export format.
type Format string

const (
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "md"
	FormatText     Format = "txt"
)

// ParseFormat accepts the format names used by the CLI.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(name) {
	case "csv":
		return FormatCSV, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	case "txt", "text":
		return FormatText, nil
	default:
		return "", fmt.Errorf("%w: unknown export format %q (csv, md, txt)", shared.ErrInvalidArgument, name)
	}
}

// Report is one conversion with its per-track audit rows.
type Report struct {
	Record *models.ConversionRecord
	Logs   []*models.TrackLog
}

// ExportToCSV converts a Report to CSV format with columns: Position, Track, Artist, Outcome, Destination ID, Score, Cause
func ExportToCSV(report *Report) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Position", "Track", "Artist", "Outcome", "Destination ID", "Score", "Cause"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, l := range report.Logs {
		record := []string{
			strconv.Itoa(l.Position() + 1),
			l.TrackName(),
			l.ArtistName(),
			string(l.Outcome()),
			l.DestinationItemID(),
			formatScore(l.MatchScore()),
			string(l.Cause()),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a Report to a Markdown summary followed by a track table.
func ExportToMarkdown(report *Report) ([]byte, error) {
	var buf bytes.Buffer
	r := report.Record

	fmt.Fprintf(&buf, "# %s\n\n", displayName(r))
	fmt.Fprintf(&buf, "**Conversion**: #%d (`%s`)\n", r.Sequence(), r.ID())
	fmt.Fprintf(&buf, "**Status**: %s\n", r.Status())
	fmt.Fprintf(&buf, "**Matched**: %d of %d (%s)\n", r.MatchedTracks(), r.TotalTracks(), matchRate(r))
	if r.DestinationPlaylistID() != "" {
		fmt.Fprintf(&buf, "**Destination playlist**: `%s`\n", r.DestinationPlaylistID())
	}
	if r.Status() == models.StatusFailed {
		fmt.Fprintf(&buf, "**Failure**: %s at %s\n", r.FailureCause(), r.FailureStage())
	}
	fmt.Fprintf(&buf, "**Created**: %s\n", r.CreatedAt().Format(time.RFC3339))
	if at := r.CompletedAt(); at != nil {
		fmt.Fprintf(&buf, "**Completed**: %s\n", at.Format(time.RFC3339))
	}

	if len(report.Logs) == 0 {
		return buf.Bytes(), nil
	}

	buf.WriteString("\n## Tracks\n\n")
	buf.WriteString("| # | Track | Artist | Outcome | Score | Cause |\n")
	buf.WriteString("|---|-------|--------|---------|-------|-------|\n")
	for _, l := range report.Logs {
		fmt.Fprintf(&buf, "| %d | %s | %s | %s | %s | %s |\n",
			l.Position()+1,
			escapeCell(l.TrackName()),
			escapeCell(l.ArtistName()),
			l.Outcome(),
			formatScore(l.MatchScore()),
			l.Cause(),
		)
	}

	return buf.Bytes(), nil
}

// ExportToText converts a Report to plain text format, listing only tracks that were not matched.
func ExportToText(report *Report) ([]byte, error) {
	var buf bytes.Buffer
	r := report.Record

	fmt.Fprintf(&buf, "Conversion #%d: %s\n", r.Sequence(), displayName(r))
	fmt.Fprintf(&buf, "Status: %s\n", r.Status())
	fmt.Fprintf(&buf, "Matched: %d/%d (%s)\n", r.MatchedTracks(), r.TotalTracks(), matchRate(r))

	var missing []*models.TrackLog
	for _, l := range report.Logs {
		if l.Outcome() != models.OutcomeMatched {
			missing = append(missing, l)
		}
	}
	if len(missing) == 0 {
		return buf.Bytes(), nil
	}

	fmt.Fprintf(&buf, "\nNot matched (%d):\n", len(missing))
	for _, l := range missing {
		line := fmt.Sprintf("%d. %s - %s", l.Position()+1, l.ArtistName(), l.TrackName())
		if l.Cause() != models.CauseNone {
			line += fmt.Sprintf(" [%s]", l.Cause())
		}
		buf.WriteString(line + "\n")
	}

	return buf.Bytes(), nil
}

// Export renders report in format.
func Export(report *Report, format Format) ([]byte, error) {
	switch format {
	case FormatCSV:
		return ExportToCSV(report)
	case FormatMarkdown:
		return ExportToMarkdown(report)
	case FormatText:
		return ExportToText(report)
	default:
		return nil, fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidArgument, format)
	}
}

// WriteExport renders report and writes it to path.
//
// Defaults to {conversion id}_report.{format} in the current directory. Parent directories are created.
func WriteExport(report *Report, format Format, path string) (string, error) {
	if path == "" {
		path = fmt.Sprintf("%s_report.%s", report.Record.ID(), format)
	}

	data, err := Export(report, format)
	if err != nil {
		return "", fmt.Errorf("failed to generate %s: %w", format, err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s file: %w", format, err)
	}

	return path, nil
}

func displayName(r *models.ConversionRecord) string {
	if r.SourcePlaylistName() != "" {
		return r.SourcePlaylistName()
	}
	return r.SourcePlaylistID()
}

func matchRate(r *models.ConversionRecord) string {
	if r.TotalTracks() == 0 {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", float64(r.MatchedTracks())/float64(r.TotalTracks())*100)
}

func formatScore(score *float64) string {
	if score == nil {
		return ""
	}
	return strconv.FormatFloat(*score, 'f', 3, 64)
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
