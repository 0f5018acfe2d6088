package record

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(h, m, s int) time.Time {
	return time.Date(2019, 2, 4, h, m, s, 0, time.Local)
}

func TestID_MatchesLegacyDigest(t *testing.T) {
	tests := []struct {
		line string
		ts   time.Time
		stop int
		want string
	}{
		{"2", at(12, 15, 3), 686, "0bf642b92e8527518b1db3e3074c04add5f6f71a"},
		{"it's", at(12, 15, 3), 833, "f9d1033e99299a469de6831cf7ff6857f107a204"},
		{"8", time.Date(2024, 3, 1, 8, 41, 0, 0, time.Local), 1358, "a0217390ea2eeeb5011a3ac800d515f8d2bcd250"},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, ID(tt.line, tt.ts, tt.stop))
		})
	}
}

func TestID_IgnoresDelay(t *testing.T) {
	r1 := New("2", at(8, 30, 0), 3, 833)
	r2 := New("2", at(8, 30, 0), 7, 833)

	assert.Equal(t, r1.ID(), r2.ID())
}

func TestID_IgnoresSubSecondPrecision(t *testing.T) {
	r1 := New("2", at(8, 30, 0), 3, 833)
	r2 := New("2", at(8, 30, 0).Add(400*time.Millisecond), 3, 833)

	assert.Equal(t, r1.ID(), r2.ID())
	assert.True(t, r1.Timestamp.Equal(r2.Timestamp))
}

func TestID_NoCollisions(t *testing.T) {
	seen := map[string]string{}
	for _, line := range []string{"2", "8", "12", "C1"} {
		for _, stop := range []int{682, 686, 812, 833, 880, 1191, 1358} {
			for minute := 0; minute < 60; minute += 7 {
				for _, sec := range []int{0, 1, 59} {
					r := New(line, at(8, minute, sec), 0, stop)
					key := fmt.Sprintf("%s|%s|%d", r.Line, r.Datetime(), r.StopID)
					id := r.ID()
					if prev, ok := seen[id]; ok {
						t.Fatalf("collision between %s and %s", prev, key)
					}
					seen[id] = key
				}
			}
		}
	}
}

func TestID_LineNormalization(t *testing.T) {
	// precomposed "í" vs "i" followed by a combining acute accent
	r1 := New("Línea", at(9, 0, 0), 0, 833)
	r2 := New(" Li\u0301nea ", at(9, 0, 0), 0, 833)

	assert.Equal(t, r1.Line, r2.Line)
	assert.Equal(t, r1.ID(), r2.ID())
}

func TestParse(t *testing.T) {
	r, err := Parse("2", "2019-02-04 12:15:03", "4", "686")
	require.NoError(t, err)

	assert.Equal(t, "2", r.Line)
	assert.Equal(t, at(12, 15, 3), r.Timestamp)
	assert.Equal(t, 4, r.DelayMinutes)
	assert.Equal(t, 686, r.StopID)
	assert.Equal(t, "2019-02-04 12:15:03", r.Datetime())
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse("2", "04/02/2019", "4", "686")
	assert.ErrorContains(t, err, "actual_datetime")

	_, err = Parse("2", "2019-02-04 12:15:03", "soon", "686")
	assert.ErrorContains(t, err, "delay_minutes")

	_, err = Parse("2", "2019-02-04 12:15:03", "4", "stop")
	assert.ErrorContains(t, err, "stop_id")
}

func TestParseDelay(t *testing.T) {
	d, err := ParseDelay(" 12 ")
	require.NoError(t, err)
	assert.Equal(t, 12, d)

	d, err = ParseDelay("+ 45")
	require.NoError(t, err)
	assert.Equal(t, UnknownDelay, d)
}

func TestCompareAndSort(t *testing.T) {
	early := New("1", time.Date(1, 1, 1, 0, 0, 0, 0, time.Local), 0, 1)
	mid := New("2", at(12, 15, 3), 0, 1)
	late := New("4", time.Date(9999, 12, 31, 23, 59, 0, 0, time.Local), 0, 1)

	assert.True(t, early.Less(mid))
	assert.True(t, mid.Less(late))
	assert.False(t, late.Less(early))

	batch := []Record{late, mid, early}
	Sort(batch)
	assert.Equal(t, []Record{early, mid, late}, batch)
}

func TestSort_StableForEqualTimestamps(t *testing.T) {
	a := New("2", at(8, 0, 0), 1, 833)
	b := New("8", at(8, 0, 0), 2, 833)
	c := New("2", at(7, 59, 0), 3, 833)

	batch := []Record{a, b, c}
	Sort(batch)
	assert.Equal(t, []Record{c, a, b}, batch)
}

func TestDistance(t *testing.T) {
	r2 := New("2", at(12, 15, 0), 0, 833)
	r3 := New("3", at(11, 16, 0), 0, 833)

	assert.Equal(t, 59.0, r2.Distance(r3))
	assert.Equal(t, 59.0, r3.Distance(r2))
	assert.Equal(t, 0.0, r2.Distance(r2))
}
