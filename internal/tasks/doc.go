// Package tasks converts one queued playlist job into a destination playlist.
//
// # Pipeline
//
// [Orchestrator.Execute] drives a [models.ConversionJob] through its lifecycle:
//
//  1. credentials : resolve the source and destination sessions and their catalog clients
//  2. fetch_tracks : read the full source track list
//  3. match : [Matcher.Match] looks every track up in the destination catalog
//  4. create_playlist : [PlaylistBuilder.Build] creates the playlist from the matched items
//  5. persist : the history store writes the record and one track log per track
//
// Each stage publishes the job's status projection before the next one starts. A failure at any stage moves the
// job to failed with a cause code; individual track lookups that fail are recorded as errored and never fail the job.
//
// # Matching
//
// Lookups run concurrently under a fixed ceiling. Candidates are ranked by [ScoreCandidate]: an ISRC match wins
// outright, otherwise title, artist and duration similarity are weighted together. The best candidate is accepted
// when it reaches the threshold. Results always come back in source order, so the destination playlist preserves
// the source ordering of matched tracks.
//
// # Progress Reporting
//
// Every finished lookup advances the processed counter exactly once. An optional [ProgressUpdate] channel receives
// human-readable stage messages; sends use select with default so a slow reader never blocks a job.
package tasks
