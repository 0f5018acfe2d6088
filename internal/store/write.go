package store

import (
	"context"
	"fmt"

	"github.com/roach88/busstats/internal/record"
)

// InsertMany stores every record whose id is not already present and returns
// how many rows were added.
//
// Records are filtered against the stored ids and against each other, so a
// batch that repeats an id inserts it once. All writes happen in a single
// transaction; on error nothing is committed. ON CONFLICT(id) DO NOTHING
// keeps the call idempotent even if another writer raced the filter.
func (s *Store) InsertMany(ctx context.Context, records []record.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("insert records: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	existing, err := queryIDs(ctx, tx)
	if err != nil {
		return 0, fmt.Errorf("insert records: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO busstats
		(id, line, actual_datetime, delay_minutes, stop_id)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("insert records: prepare: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, r := range records {
		id := r.ID()
		if _, ok := existing[id]; ok {
			continue
		}
		existing[id] = struct{}{}

		result, err := stmt.ExecContext(ctx, id, r.Line, r.Datetime(), r.DelayMinutes, r.StopID)
		if err != nil {
			return 0, fmt.Errorf("insert record %s: %w", id, err)
		}

		n, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("insert record %s: rows affected: %w", id, err)
		}
		inserted += int(n)
	}

	if inserted == 0 {
		return 0, nil
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("insert records: commit: %w", err)
	}

	return inserted, nil
}
