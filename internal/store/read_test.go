package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/busstats/internal/record"
)

func TestIDs_EmptyStore(t *testing.T) {
	s := createTestStore(t)

	ids, err := s.IDs(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, ids)
	assert.Empty(t, ids)
}

func TestCount(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = s.InsertMany(ctx, []record.Record{
		createTestRecord("2", 0, 0, 833),
		createTestRecord("2", 1, 0, 833),
	})
	require.NoError(t, err)

	n, err = s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestPunctual(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	due1 := createTestRecord("2", 30, 0, 833)
	due2 := createTestRecord("2", 10, 0, 833)
	late := createTestRecord("2", 20, 4, 833)
	otherLine := createTestRecord("8", 15, 0, 833)
	otherStop := createTestRecord("2", 15, 0, 686)

	_, err := s.InsertMany(ctx, []record.Record{due1, due2, late, otherLine, otherStop})
	require.NoError(t, err)

	got, err := s.Punctual(ctx, "2", 833, 0)
	require.NoError(t, err)
	assert.Equal(t, []record.Record{due2, due1}, got)

	got, err = s.Punctual(ctx, "2", 833, 1)
	require.NoError(t, err)
	assert.Equal(t, []record.Record{due2}, got)
}

func TestPunctual_NoMatches(t *testing.T) {
	s := createTestStore(t)

	got, err := s.Punctual(context.Background(), "99", 1, 0)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}
