package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/playlist-converter/internal/models"
	"github.com/desertthunder/playlist-converter/internal/shared"
)

const conversionColumns = `id, sequence, source_playlist_id, source_playlist_name, total_tracks, matched_tracks,
	destination_playlist_id, status, failure_cause, failure_stage, created_at, completed_at`

// HistoryRepository implements models.Reader[*models.ConversionRecord] and the write side of the conversion history.
type HistoryRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewHistoryRepository creates a new HistoryRepository with the given database connection
func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Persist writes the completed conversion record for job and one track log per result in one transaction.
//
// The record is written without a completion time; see [HistoryRepository.MarkCompleted]. A redelivered job whose
// record is already completed is a no-op. Any other existing record is a conflict wrapped in
// [shared.ErrPersistenceFailed] and nothing is written.
func (r *HistoryRepository) Persist(ctx context.Context, job *models.ConversionJob, destinationPlaylistID string, results []models.MatchResult) error {
	if len(results) != job.Total {
		return fmt.Errorf("%w: %d results for %d tracks", shared.ErrInvalidInput, len(results), job.Total)
	}

	matchedIDs, _ := models.Partition(results)
	record := models.NewConversionRecord(job, models.StatusCompleted, len(matchedIDs), destinationPlaylistID)
	if err := record.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := r.now()
	logs := make([]*models.TrackLog, 0, len(results))
	for _, result := range results {
		entry := models.NewTrackLog(job.ID, result, now)
		if err := entry.Validate(); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		logs = append(logs, entry)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	existing, err := r.insertRecord(ctx, tx, record, now)
	if err != nil {
		return err
	}
	switch existing {
	case "":
	case models.StatusCompleted:
		return nil
	default:
		return fmt.Errorf("%w: %w: %s is %s", shared.ErrPersistenceFailed, shared.ErrRecordConflict, job.ID, existing)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO track_logs (id, conversion_id, position, track_name, artist_name, destination_item_id, match_score, outcome, cause, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare track log insert: %w", err)
	}
	defer stmt.Close()

	for _, entry := range logs {
		_, err := stmt.ExecContext(ctx,
			entry.ID(),
			entry.ConversionID(),
			entry.Position(),
			entry.TrackName(),
			entry.ArtistName(),
			nullString(entry.DestinationItemID()),
			entry.MatchScore(),
			string(entry.Outcome()),
			nullString(string(entry.Cause())),
			entry.CreatedAt(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert track log %d: %w", entry.Position(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit conversion: %w", err)
	}
	return nil
}

// RecordFailure writes the minimal record for a job that failed at stage. An existing record is left untouched.
func (r *HistoryRepository) RecordFailure(ctx context.Context, job *models.ConversionJob, stage models.Stage, cause models.Cause) error {
	record := models.NewFailureRecord(job, stage, cause)
	now := r.now()
	record.SetCompletedAt(&now)

	if err := record.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	existing, err := r.insertRecord(ctx, tx, record, now)
	if err != nil || existing != "" {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit failure record: %w", err)
	}
	return nil
}

// insertRecord takes a sequence number and inserts record. When the id already exists nothing is written and the
// stored status is returned; an empty status means record was inserted.
func (r *HistoryRepository) insertRecord(ctx context.Context, tx *sql.Tx, record *models.ConversionRecord, now time.Time) (models.Status, error) {
	var existing string
	err := tx.QueryRowContext(ctx, "SELECT status FROM conversions WHERE id = ?", record.ID()).Scan(&existing)
	switch {
	case err == nil:
		return models.Status(existing), nil
	case !errors.Is(err, sql.ErrNoRows):
		return "", fmt.Errorf("failed to check conversion: %w", err)
	}

	sequence, err := NextSequence(ctx, tx, "conversions")
	if err != nil {
		return "", fmt.Errorf("failed to generate sequence: %w", err)
	}
	record.SetSequence(sequence)

	createdAt := record.CreatedAt()
	if createdAt.IsZero() {
		createdAt = now
	}

	var completedAt sql.NullTime
	if at := record.CompletedAt(); at != nil {
		completedAt = sql.NullTime{Time: *at, Valid: true}
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO conversions (`+conversionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		record.ID(),
		record.Sequence(),
		record.SourcePlaylistID(),
		record.SourcePlaylistName(),
		record.TotalTracks(),
		record.MatchedTracks(),
		nullString(record.DestinationPlaylistID()),
		string(record.Status()),
		nullString(string(record.FailureCause())),
		nullString(string(record.FailureStage())),
		createdAt,
		completedAt,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert conversion: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows != 1 {
		return "", fmt.Errorf("%w: %s inserted concurrently", shared.ErrRecordConflict, record.ID())
	}
	return "", nil
}

// MarkCompleted stamps the completion time of conversion id. Stamping an already stamped record is a no-op.
func (r *HistoryRepository) MarkCompleted(ctx context.Context, id string, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE conversions SET completed_at = ? WHERE id = ? AND completed_at IS NULL",
		at.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark conversion completed: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows > 0 {
		return nil
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM conversions WHERE id = ?)", id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check conversion: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", shared.ErrRecordNotFound, id)
	}
	return nil
}

// Get retrieves a conversion record by ID
func (r *HistoryRepository) Get(id string) (*models.ConversionRecord, error) {
	row := r.db.QueryRow("SELECT "+conversionColumns+" FROM conversions WHERE id = ?", id)

	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrRecordNotFound, id)
	}
	return record, err
}

// List retrieves conversion records matching criteria, newest first.
//
// Supported criteria: "status" (string or [models.Status]), "source_playlist_id" (string), "since" ([time.Time])
// and "limit" (int).
func (r *HistoryRepository) List(criteria map[string]any) ([]*models.ConversionRecord, error) {
	query := "SELECT " + conversionColumns + " FROM conversions WHERE 1 = 1"
	args := []any{}

	switch status := criteria["status"].(type) {
	case string:
		if status != "" {
			query += " AND status = ?"
			args = append(args, status)
		}
	case models.Status:
		if status != "" {
			query += " AND status = ?"
			args = append(args, string(status))
		}
	}

	if playlistID, ok := criteria["source_playlist_id"].(string); ok && playlistID != "" {
		query += " AND source_playlist_id = ?"
		args = append(args, playlistID)
	}

	if since, ok := criteria["since"].(time.Time); ok && !since.IsZero() {
		query += " AND created_at >= ?"
		args = append(args, since.UTC())
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversions: %w", err)
	}
	defer rows.Close()

	var records []*models.ConversionRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return records, nil
}

// TrackLogs retrieves the track logs of a conversion in source order
func (r *HistoryRepository) TrackLogs(conversionID string) ([]*models.TrackLog, error) {
	rows, err := r.db.Query(`
		SELECT id, conversion_id, position, track_name, artist_name, destination_item_id, match_score, outcome, cause, created_at
		FROM track_logs
		WHERE conversion_id = ?
		ORDER BY position ASC
	`, conversionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query track logs: %w", err)
	}
	defer rows.Close()

	var logs []*models.TrackLog
	for rows.Next() {
		var (
			id            string
			convID        string
			position      int
			trackName     string
			artistName    string
			destinationID sql.NullString
			matchScore    sql.NullFloat64
			outcome       string
			cause         sql.NullString
			createdAt     time.Time
		)

		err := rows.Scan(&id, &convID, &position, &trackName, &artistName, &destinationID, &matchScore, &outcome, &cause, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan track log: %w", err)
		}

		var score *float64
		if matchScore.Valid {
			score = &matchScore.Float64
		}

		logs = append(logs, models.RestoreTrackLog(
			id, convID, position, trackName, artistName, destinationID.String,
			score, models.Outcome(outcome), models.Cause(cause.String), createdAt,
		))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return logs, nil
}

// scanner is satisfied by [sql.Row] and [sql.Rows].
type scanner interface {
	Scan(dest ...any) error
}

// scanRecord scans a single row into a [models.ConversionRecord]
func scanRecord(row scanner) (*models.ConversionRecord, error) {
	var (
		id            string
		sequence      int
		playlistID    string
		playlistName  string
		total         int
		matched       int
		destinationID sql.NullString
		status        string
		cause         sql.NullString
		stage         sql.NullString
		createdAt     time.Time
		completedAt   sql.NullTime
	)

	err := row.Scan(&id, &sequence, &playlistID, &playlistName, &total, &matched, &destinationID, &status, &cause, &stage, &createdAt, &completedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan conversion: %w", err)
	}

	var completed *time.Time
	if completedAt.Valid {
		completed = &completedAt.Time
	}

	return models.RestoreConversionRecord(
		id, sequence, playlistID, playlistName, total, matched,
		destinationID.String, models.Status(status), models.Cause(cause.String), models.Stage(stage.String),
		createdAt, completed,
	), nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
