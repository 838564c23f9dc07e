package ui

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/playlist-converter/internal/models"
	"github.com/desertthunder/playlist-converter/internal/shared"
)

var (
	_ list.Item = jobItem{}
)

// jobItem wraps the latest projection of one job to implement [list.Item].
type jobItem struct {
	jobID  string
	status *models.ConversionStatus
	err    error
}

func (i jobItem) FilterValue() string { return i.jobID }
func (i jobItem) Title() string       { return i.jobID }
func (i jobItem) Description() string {
	switch {
	case errors.Is(i.err, shared.ErrStatusNotFound):
		return "no status (not queued yet or expired)"
	case i.err != nil:
		return fmt.Sprintf("error: %v", i.err)
	case i.status == nil:
		return "waiting..."
	}

	desc := fmt.Sprintf("%s • %d/%d tracks", i.status.Status, i.status.Processed, i.status.Total)
	if i.status.Error != models.CauseNone {
		desc = fmt.Sprintf("%s • %s", desc, i.status.Error)
	}
	return desc
}
