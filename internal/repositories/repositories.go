// package repositories provides the SQLite persistence layer for the conversion history.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
)

// NextSequence increments and returns the next sequence number for the given table inside tx.
//
// Sequence numbers provide human-readable ordering for history rows (e.g. conversion #42). Taking the number in the
// caller's transaction means a rolled back insert does not burn a sequence value.
func NextSequence(ctx context.Context, tx *sql.Tx, table string) (int, error) {
	sequenceTable := table + "_sequence"

	_, err := tx.ExecContext(ctx, fmt.Sprintf("UPDATE %s SET value = value + 1 WHERE id = 1", sequenceTable))
	if err != nil {
		return 0, fmt.Errorf("failed to increment sequence: %w", err)
	}

	var sequence int
	err = tx.QueryRowContext(ctx, fmt.Sprintf("SELECT value FROM %s WHERE id = 1", sequenceTable)).Scan(&sequence)
	if err != nil {
		return 0, fmt.Errorf("failed to get sequence value: %w", err)
	}

	return sequence, nil
}
