// Package repositories implements SQLite persistence for the durable conversion history.
//
// Key Implementations:
//   - [HistoryRepository] : one [models.ConversionRecord] per finished job plus one [models.TrackLog] per track
//
// History is append-only. A record and its track logs are written in a single transaction, and a record whose id
// already exists is left untouched, so a redelivered job cannot duplicate rows. The completion timestamp is the only
// column updated after insert.
//
// Sequence numbers provide stable, human-readable ordering (e.g. conversion #42) independent of job IDs and
// timestamps. [NextSequence] increments the per-table counter inside the inserting transaction.
package repositories
