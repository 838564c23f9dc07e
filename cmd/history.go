package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/playlist-converter/internal/formatter"
	"github.com/desertthunder/playlist-converter/internal/models"
	"github.com/desertthunder/playlist-converter/internal/repositories"
	"github.com/desertthunder/playlist-converter/internal/shared"
	"github.com/urfave/cli/v3"
)

// recordView is the JSON form of a [models.ConversionRecord].
type recordView struct {
	ID                    string        `json:"id"`
	Sequence              int           `json:"sequence"`
	SourcePlaylistID      string        `json:"source_playlist_id"`
	SourcePlaylistName    string        `json:"source_playlist_name,omitempty"`
	TotalTracks           int           `json:"total_tracks"`
	MatchedTracks         int           `json:"matched_tracks"`
	DestinationPlaylistID string        `json:"destination_playlist_id,omitempty"`
	Status                models.Status `json:"status"`
	FailureCause          models.Cause  `json:"failure_cause,omitempty"`
	FailureStage          models.Stage  `json:"failure_stage,omitempty"`
	CreatedAt             time.Time     `json:"created_at"`
	CompletedAt           *time.Time    `json:"completed_at,omitempty"`
	Tracks                []trackView   `json:"tracks,omitempty"`
}

type trackView struct {
	Position          int            `json:"position"`
	TrackName         string         `json:"track_name"`
	ArtistName        string         `json:"artist_name"`
	Outcome           models.Outcome `json:"outcome"`
	DestinationItemID string         `json:"destination_item_id,omitempty"`
	MatchScore        *float64       `json:"match_score,omitempty"`
	Cause             models.Cause   `json:"cause,omitempty"`
}

func newRecordView(r *models.ConversionRecord, logs []*models.TrackLog) recordView {
	v := recordView{
		ID:                    r.ID(),
		Sequence:              r.Sequence(),
		SourcePlaylistID:      r.SourcePlaylistID(),
		SourcePlaylistName:    r.SourcePlaylistName(),
		TotalTracks:           r.TotalTracks(),
		MatchedTracks:         r.MatchedTracks(),
		DestinationPlaylistID: r.DestinationPlaylistID(),
		Status:                r.Status(),
		FailureCause:          r.FailureCause(),
		FailureStage:          r.FailureStage(),
		CreatedAt:             r.CreatedAt(),
		CompletedAt:           r.CompletedAt(),
	}
	for _, l := range logs {
		v.Tracks = append(v.Tracks, trackView{
			Position:          l.Position(),
			TrackName:         l.TrackName(),
			ArtistName:        l.ArtistName(),
			Outcome:           l.Outcome(),
			DestinationItemID: l.DestinationItemID(),
			MatchScore:        l.MatchScore(),
			Cause:             l.Cause(),
		})
	}
	return v
}

func (r *Runner) historyRepository(ctx context.Context) (*repositories.HistoryRepository, func(), error) {
	db, err := r.openDatabase(ctx)
	if err != nil {
		return nil, nil, err
	}
	return repositories.NewHistoryRepository(db), func() { db.Close() }, nil
}

// HistoryList prints recorded conversions, newest first.
func (r *Runner) HistoryList(ctx context.Context, cmd *cli.Command) error {
	repo, closeFn, err := r.historyRepository(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	criteria := map[string]any{
		"status":             cmd.String("status"),
		"source_playlist_id": cmd.String("playlist"),
		"limit":              cmd.Int("limit"),
	}
	if since := cmd.Duration("since"); since > 0 {
		criteria["since"] = time.Now().Add(-since)
	}

	records, err := repo.List(criteria)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		views := make([]recordView, 0, len(records))
		for _, rec := range records {
			views = append(views, newRecordView(rec, nil))
		}
		return r.writeJSON(views, true)
	}

	if len(records) == 0 {
		return r.writePlain("No conversions recorded.\n")
	}

	r.writePlainHeader(fmt.Sprintf("Conversions (%d)", len(records)))
	for _, rec := range records {
		line := fmt.Sprintf("#%-4d %s  %-9s %d/%d  %s", rec.Sequence(), rec.ID(), rec.Status(),
			rec.MatchedTracks(), rec.TotalTracks(), rec.SourcePlaylistID())
		if rec.Status() == models.StatusFailed {
			line += fmt.Sprintf("  (%s at %s)", rec.FailureCause(), rec.FailureStage())
		}
		r.writePlain("%s\n", line)
	}
	return nil
}

func (r *Runner) loadReport(ctx context.Context, cmd *cli.Command) (*formatter.Report, error) {
	id := cmd.Args().First()
	if id == "" {
		return nil, fmt.Errorf("%w: conversion id", shared.ErrMissingArgument)
	}

	repo, closeFn, err := r.historyRepository(ctx)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	record, err := repo.Get(id)
	if err != nil {
		return nil, err
	}
	logs, err := repo.TrackLogs(id)
	if err != nil {
		return nil, err
	}
	return &formatter.Report{Record: record, Logs: logs}, nil
}

// HistoryShow prints one conversion with its unmatched tracks, or everything as JSON.
func (r *Runner) HistoryShow(ctx context.Context, cmd *cli.Command) error {
	report, err := r.loadReport(ctx, cmd)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(newRecordView(report.Record, report.Logs), true)
	}

	data, err := formatter.ExportToText(report)
	if err != nil {
		return err
	}
	return r.writePlain("%s", data)
}

// HistoryExport writes one conversion report to a file.
func (r *Runner) HistoryExport(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	report, err := r.loadReport(ctx, cmd)
	if err != nil {
		return err
	}

	path, err := formatter.WriteExport(report, format, cmd.String("output"))
	if err != nil {
		return err
	}

	r.logger.Info("report exported", "conversion_id", report.Record.ID(), "format", format, "path", path)
	return r.writePlain("Report written to %s\n", path)
}
