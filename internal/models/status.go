package models

import (
	"fmt"
	"time"
)

// ConversionStatus is the point-in-time progress projection read by polling clients.
type ConversionStatus struct {
	JobID     string    `json:"job_id"`
	Status    Status    `json:"status"`
	Total     int       `json:"total"`
	Processed int       `json:"processed"`
	Error     Cause     `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Percent returns processed/total in [0, 100]. An empty job reports 100 once terminal.
func (s ConversionStatus) Percent() float64 {
	if s.Total <= 0 {
		if s.Status.Terminal() {
			return 100
		}
		return 0
	}
	return float64(s.Processed) / float64(s.Total) * 100
}

func (s ConversionStatus) String() string {
	line := fmt.Sprintf("%s: %s (%d/%d)", s.JobID, s.Status, s.Processed, s.Total)
	if s.Error != CauseNone {
		line += " error=" + string(s.Error)
	}
	return line
}
