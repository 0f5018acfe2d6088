package record

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Layout is the persisted timestamp format used by the staging CSV and the
// durable store.
const Layout = "2006-01-02 15:04:05"

// UnknownDelay replaces a "+" marker in the delay column of a stop page. The
// transit authority prints "+" when the bus is too far away to estimate.
const UnknownDelay = 999

// Record is one observed bus arrival sample.
type Record struct {
	Line         string
	Timestamp    time.Time
	DelayMinutes int
	StopID       int
}

// New builds a Record, normalizing the line to trimmed NFC text and truncating
// the timestamp to whole seconds.
func New(line string, ts time.Time, delayMinutes, stopID int) Record {
	return Record{
		Line:         normalizeLine(line),
		Timestamp:    ts.Truncate(time.Second),
		DelayMinutes: delayMinutes,
		StopID:       stopID,
	}
}

// Parse builds a Record from its textual fields, as found in a CSV row.
// The datetime is interpreted in the local time zone.
func Parse(line, datetime, delay, stopID string) (Record, error) {
	ts, err := time.ParseInLocation(Layout, strings.TrimSpace(datetime), time.Local)
	if err != nil {
		return Record{}, fmt.Errorf("parse actual_datetime %q: %w", datetime, err)
	}

	d, err := ParseDelay(delay)
	if err != nil {
		return Record{}, err
	}

	stop, err := strconv.Atoi(strings.TrimSpace(stopID))
	if err != nil {
		return Record{}, fmt.Errorf("parse stop_id %q: %w", stopID, err)
	}

	return New(line, ts, d, stop), nil
}

// ParseDelay converts a delay cell into minutes. Any cell containing "+"
// becomes UnknownDelay.
func ParseDelay(s string) (int, error) {
	if strings.Contains(s, "+") {
		return UnknownDelay, nil
	}
	d, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("parse delay_minutes %q: %w", s, err)
	}
	return d, nil
}

// ID returns the content-derived identifier of the record.
func (r Record) ID() string {
	return ID(r.Line, r.Timestamp, r.StopID)
}

// Datetime returns the timestamp in the persisted Layout.
func (r Record) Datetime() string {
	return r.Timestamp.Format(Layout)
}

// Compare orders records by timestamp only.
func (r Record) Compare(other Record) int {
	return r.Timestamp.Compare(other.Timestamp)
}

// Less reports whether r was observed before other.
func (r Record) Less(other Record) bool {
	return r.Compare(other) < 0
}

// Distance returns the absolute difference between both timestamps in minutes.
func (r Record) Distance(other Record) float64 {
	d := r.Timestamp.Sub(other.Timestamp)
	if d < 0 {
		d = -d
	}
	return d.Minutes()
}

func (r Record) String() string {
	return fmt.Sprintf("Record(line=%q, datetime=%q, delay=%d, stop=%d)",
		r.Line, r.Datetime(), r.DelayMinutes, r.StopID)
}

// Sort orders records by timestamp, keeping the relative order of records
// observed at the same second.
func Sort(records []Record) {
	slices.SortStableFunc(records, Record.Compare)
}

func normalizeLine(line string) string {
	return norm.NFC.String(strings.TrimSpace(line))
}
