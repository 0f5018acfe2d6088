package transfer

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/busstats/internal/downloader"
	"github.com/roach88/busstats/internal/record"
	"github.com/roach88/busstats/internal/staging"
	"github.com/roach88/busstats/internal/token"
)

func newTestDownloader() *downloader.Downloader {
	return downloader.New(downloader.Config{Attempts: 2, Interval: time.Millisecond, Timeout: 5 * time.Second},
		downloader.WithLogger(discard))
}

func TestClient_FetchWriteDelete(t *testing.T) {
	f := newServerFixture(t, insideWindow)
	f.saveTwo(t)
	remote, err := os.ReadFile(f.staging.Path())
	require.NoError(t, err)

	ts := httptest.NewServer(f.server.Handler())
	defer ts.Close()

	dest := filepath.Join(t.TempDir(), "local", "data.csv")
	c := NewClient(ts.URL+"/", dest, newTestDownloader(), f.codec, discard)

	res, err := c.Get(context.Background())
	require.NoError(t, err)

	assert.Equal(t, len(remote), res.Bytes)
	assert.True(t, res.Deleted)
	assert.Equal(t, http.StatusOK, res.DeleteStatus)
	assert.Equal(t, "Result: True", res.DeleteReply)
	assert.NotEmpty(t, res.Size())

	local, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, remote, local)

	assert.False(t, f.fileExists(t), "collector copy removed")

	records, err := staging.New(dest).Load()
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestClient_FetchNotFound(t *testing.T) {
	f := newServerFixture(t, insideWindow)
	ts := httptest.NewServer(f.server.Handler())
	defer ts.Close()

	dest := filepath.Join(t.TempDir(), "data.csv")
	c := NewClient(ts.URL+"/", dest, newTestDownloader(), f.codec, discard)

	_, err := c.Get(context.Background())

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusNotFound, fe.StatusCode)
	assert.Equal(t, "404 - File has just been deleted, please wait about 2 min.", fe.Explanation)

	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr))
}

func TestClient_DeleteRefused(t *testing.T) {
	f := newServerFixture(t, insideWindow)
	f.saveTwo(t)
	ts := httptest.NewServer(f.server.Handler())
	defer ts.Close()

	stranger, err := token.NewCodec("wrong secret", f.clock)
	require.NoError(t, err)

	dest := filepath.Join(t.TempDir(), "data.csv")
	c := NewClient(ts.URL+"/", dest, newTestDownloader(), stranger, discard)

	res, err := c.Get(context.Background())
	require.NoError(t, err)

	assert.False(t, res.Deleted)
	assert.Equal(t, http.StatusForbidden, res.DeleteStatus)
	assert.Contains(t, res.DeleteReply, "could not be decrypted")
	assert.True(t, f.fileExists(t))

	_, err = os.Stat(dest)
	assert.NoError(t, err, "fetched bytes are kept even when the delete is refused")
}

func TestClient_KeepsLocalLeftovers(t *testing.T) {
	f := newServerFixture(t, insideWindow)
	f.saveTwo(t)
	ts := httptest.NewServer(f.server.Handler())
	defer ts.Close()

	dest := filepath.Join(t.TempDir(), "data.csv")
	leftover := record.New("2", time.Date(2024, 3, 1, 9, 10, 0, 0, time.Local), 1, 833)
	// one leftover row is also on the collector again
	again := record.New("8", time.Date(2024, 3, 1, 9, 29, 0, 0, time.Local), 0, 682)
	require.NoError(t, staging.New(dest).Save([]record.Record{leftover, again}))

	c := NewClient(ts.URL+"/", dest, newTestDownloader(), f.codec, discard)
	res, err := c.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Retained)
	assert.True(t, res.Deleted)

	records, err := staging.New(dest).Load()
	require.NoError(t, err)
	require.Len(t, records, 3)
	ids := map[string]bool{}
	for _, r := range records {
		ids[r.ID()] = true
	}
	assert.True(t, ids[leftover.ID()], "leftover row kept")
	assert.True(t, ids[again.ID()])
}

func TestClient_UnreadableLocalFileNeverDeletes(t *testing.T) {
	stub := &stubRequester{get: &downloader.Response{StatusCode: http.StatusOK, Body: []byte("line,actual_datetime,delay_minutes,stop_id\n")}}
	dest := filepath.Join(t.TempDir(), "data.csv")
	garbage := []byte("line,actual_datetime,delay_minutes,stop_id\n2,yesterday,3,833\n")
	require.NoError(t, os.WriteFile(dest, garbage, 0o644))

	c := NewClient("http://collector/", dest, stub, stubMinter{}, discard)
	_, err := c.Get(context.Background())
	require.Error(t, err)
	assert.Zero(t, stub.deletes)

	local, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, garbage, local)
}

// stubRequester answers every GET with a fixed response and records DELETEs.
type stubRequester struct {
	get     *downloader.Response
	getErr  error
	deletes int
}

func (s *stubRequester) Get(context.Context, string) (*downloader.Response, error) {
	return s.get, s.getErr
}

func (s *stubRequester) Delete(context.Context, string, map[string]string) (*downloader.Response, error) {
	s.deletes++
	return &downloader.Response{StatusCode: http.StatusOK, Body: []byte("Result: True")}, nil
}

type stubMinter struct{}

func (stubMinter) Mint() (string, error) { return "tok", nil }

func TestClient_EmptyBody(t *testing.T) {
	stub := &stubRequester{get: &downloader.Response{StatusCode: http.StatusOK}}
	dest := filepath.Join(t.TempDir(), "data.csv")
	c := NewClient("http://collector/", dest, stub, stubMinter{}, discard)

	res, err := c.Get(context.Background())
	require.NoError(t, err)

	assert.Zero(t, res.Bytes)
	assert.False(t, res.Deleted)
	assert.Zero(t, stub.deletes)
	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr))
}

func TestClient_TransportFailureNeverDeletes(t *testing.T) {
	stub := &stubRequester{getErr: downloader.ErrExhausted}
	c := NewClient("http://collector/", filepath.Join(t.TempDir(), "data.csv"), stub, stubMinter{}, discard)

	_, err := c.Get(context.Background())
	require.ErrorIs(t, err, downloader.ErrExhausted)
	assert.Zero(t, stub.deletes)
}

func TestClient_ServerErrorNeverDeletes(t *testing.T) {
	stub := &stubRequester{get: &downloader.Response{StatusCode: http.StatusInternalServerError, Body: []byte("boom")}}
	c := NewClient("http://collector/", filepath.Join(t.TempDir(), "data.csv"), stub, stubMinter{}, discard)

	_, err := c.Get(context.Background())

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "boom", fe.Explanation)
	assert.Zero(t, stub.deletes)
}

func TestExtractExplanation(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, http.StatusForbidden, "Don't do that")

	assert.Equal(t, "403 - Don't do that.", extractExplanation(rec.Body.Bytes()))
	assert.Equal(t, "plain text", extractExplanation([]byte("  plain text\n")))
}
