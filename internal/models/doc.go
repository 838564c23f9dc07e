// Package models defines domain entities for the playlist conversion worker.
//
// The package contains two categories of types:
//
// 1. Transient values: produced and consumed while a job is processed
//   - [ConversionJob] : queue payload plus the lifecycle state owned by the orchestrator
//   - [Track] : read-only projection of one source catalog entry
//   - [Candidate] : one destination search hit
//   - [MatchResult] : the per-track outcome of matching
//   - [ConversionStatus] : the live progress projection read by polling clients
//
// 2. Durable entities: rows of the conversion history
//   - [ConversionRecord] : one per completed or failed job
//   - [TrackLog] : one per track per job, for audit
//
// Job status only moves forward: queued, processing, then completed or failed. [ConversionJob.Transition]
// and [Status.Rank] enforce that ordering everywhere it is written.
package models
