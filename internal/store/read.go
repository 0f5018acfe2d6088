package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/roach88/busstats/internal/record"
)

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// IDs returns the set of every stored record id.
func (s *Store) IDs(ctx context.Context) (map[string]struct{}, error) {
	ids, err := queryIDs(ctx, s.db)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func queryIDs(ctx context.Context, q queryer) (map[string]struct{}, error) {
	rows, err := q.QueryContext(ctx, `SELECT id FROM busstats`)
	if err != nil {
		return nil, fmt.Errorf("query ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids[id] = struct{}{}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ids: %w", err)
	}

	return ids, nil
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM busstats`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

// Punctual returns the records of a line at a stop whose bus was due
// (delay of zero minutes), oldest first. A limit <= 0 returns every match.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) Punctual(ctx context.Context, line string, stopID, limit int) ([]record.Record, error) {
	query := `
		SELECT line, actual_datetime, delay_minutes, stop_id
		FROM busstats
		WHERE line = ? AND stop_id = ? AND delay_minutes = 0
		ORDER BY actual_datetime ASC, id COLLATE BINARY ASC
	`
	args := []any{line, stopID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query punctual records: %w", err)
	}
	defer rows.Close()

	records := []record.Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate punctual records: %w", err)
	}

	return records, nil
}

func scanRecord(rows *sql.Rows) (record.Record, error) {
	var (
		line, datetime string
		delay, stopID  int
	)
	if err := rows.Scan(&line, &datetime, &delay, &stopID); err != nil {
		return record.Record{}, fmt.Errorf("scan record: %w", err)
	}

	r, err := record.Parse(line, datetime, strconv.Itoa(delay), strconv.Itoa(stopID))
	if err != nil {
		return record.Record{}, fmt.Errorf("decode stored record: %w", err)
	}
	return r, nil
}
