// Package analysis turns stored arrival samples into arrival estimates.
//
// Samples of the same bus cluster within a few minutes of each other as the
// scraper polls the stop. Group collapses each cluster to one representative
// so the result reads as one arrival per bus.
package analysis

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/roach88/busstats/internal/record"
)

// Selector picks the representative of a group. Groups are never empty and
// are sorted by timestamp.
type Selector func(group []record.Record) record.Record

// Latest selects the last sample of a group.
func Latest(group []record.Record) record.Record { return group[len(group)-1] }

// Earliest selects the first sample of a group.
func Earliest(group []record.Record) record.Record { return group[0] }

// ParseClock parses "HH:MM" into an offset from midnight.
func ParseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("parse time of day %q: %w", s, err)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

func clockOf(t time.Time) time.Duration {
	h, m, s := t.Clock()
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second
}

// FilterTimes keeps the records whose time of day lies in [from, to].
func FilterTimes(records []record.Record, from, to time.Duration) []record.Record {
	out := []record.Record{}
	for _, r := range records {
		if c := clockOf(r.Timestamp); c >= from && c <= to {
			out = append(out, r)
		}
	}
	return out
}

// Group sorts records and collapses runs that start less than epsilon
// minutes apart from the first record of the run. Distances use minute
// precision. A nil selector uses Latest.
func Group(records []record.Record, epsilon int, selector Selector) []record.Record {
	if selector == nil {
		selector = Latest
	}

	sorted := slices.Clone(records)
	record.Sort(sorted)

	out := []record.Record{}
	for i := 0; i < len(sorted); {
		k := i
		for k < len(sorted) && minuteDistance(sorted[i], sorted[k]) < float64(epsilon) {
			k++
		}
		if k == i {
			// epsilon <= 0 still yields singleton groups
			k = i + 1
		}
		out = append(out, selector(sorted[i:k]))
		i = k
	}

	record.Sort(out)
	return out
}

func minuteDistance(a, b record.Record) float64 {
	d := a.Timestamp.Truncate(time.Minute).Sub(b.Timestamp.Truncate(time.Minute))
	if d < 0 {
		d = -d
	}
	return d.Minutes()
}

// MeanHour returns the mean time of day of records as fractional hours.
// It returns 0 for no records.
func MeanHour(records []record.Record) float64 {
	if len(records) == 0 {
		return 0
	}
	var sum float64
	for _, r := range records {
		sum += clockOf(r.Timestamp).Hours()
	}
	return sum / float64(len(records))
}

// FormatHour renders fractional hours as "HH:MM".
func FormatHour(h float64) string {
	d := time.Duration(h * float64(time.Hour)).Round(time.Minute)
	return fmt.Sprintf("%02d:%02d", int(d.Hours()), int(d.Minutes())%60)
}

// ArrivalMessage renders one "<line> arrives at HH:MM (N mins)" line per
// record, where the arrival is the sample time plus the announced delay.
func ArrivalMessage(records []record.Record) string {
	lines := make([]string, 0, len(records))
	for _, r := range records {
		if r.DelayMinutes == record.UnknownDelay {
			lines = append(lines, fmt.Sprintf("%s arrives in more than the announced range", r.Line))
			continue
		}
		arrival := r.Timestamp.Add(time.Duration(r.DelayMinutes) * time.Minute)
		lines = append(lines, fmt.Sprintf("%s arrives at %s (%d mins)", r.Line, arrival.Format("15:04"), r.DelayMinutes))
	}
	return strings.Join(lines, "\n")
}
