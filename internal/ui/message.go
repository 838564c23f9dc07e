package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/playlist-converter/internal/models"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgStatusesFetched MsgKind = iota
	MsgTick
)

// fetchResult is the outcome of reading one job's projection.
type fetchResult struct {
	jobID  string
	status *models.ConversionStatus
	err    error
}

// statusesFetchedMsg is the constructor for [MsgStatusesFetched]
func statusesFetchedMsg(results []fetchResult) Msg {
	return Msg{kind: MsgStatusesFetched, data: results}
}

// tickMsg is the constructor for [MsgTick]
func tickMsg() Msg {
	return Msg{kind: MsgTick}
}
