// Package ui implements the `watch` terminal view using bubbletea's Elm architecture.
//
// The view polls the status projection of one or more conversion jobs and renders:
//  1. a job list (charmbracelet/bubbles/list) with each job's status and counters
//  2. a progress bar and failure cause for the selected job
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Polling runs on a [tea.Tick] loop and stops once every watched job reaches a terminal status.
//
// Keyboard navigation uses vim-style bindings (j/k, r, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
