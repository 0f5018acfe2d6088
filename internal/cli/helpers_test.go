package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/busstats/internal/clock"
	"github.com/roach88/busstats/internal/record"
	"github.com/roach88/busstats/internal/staging"
	"github.com/roach88/busstats/internal/testutil"
	"github.com/roach88/busstats/internal/token"
	"github.com/roach88/busstats/internal/transfer"
)

const testSecret = "cli-test-secret"

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// node is a configured busstats installation in a temp directory.
type node struct {
	dir    string
	config string
}

func (n *node) stagingPath() string  { return filepath.Join(n.dir, "data.csv") }
func (n *node) databasePath() string { return filepath.Join(n.dir, "busstats.db") }

// newNode writes a configuration for environment. extra is appended to the
// YAML document.
func newNode(t *testing.T, environment, extra string) *node {
	t.Helper()
	t.Setenv("BUSSTATS_SECRET", "")
	t.Setenv("BUSSTATS_ENVIRONMENT", "")

	dir := t.TempDir()
	n := &node{dir: dir, config: filepath.Join(dir, "busstats.yml")}
	doc := fmt.Sprintf(`environment: %s
paths:
  staging: %s
  database: %s
downloader:
  retries: 1
  retry_interval: 1ms
  timeout: 5s
%s`, environment, n.stagingPath(), n.databasePath(), extra)
	require.NoError(t, os.WriteFile(n.config, []byte(doc), 0o644))
	return n
}

func (n *node) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--config", n.config}, args...))
	err := cmd.Execute()
	return out.String(), err
}

// runJSON runs with --format json and decodes the data payload into v.
func (n *node) runJSON(t *testing.T, v any, args ...string) {
	t.Helper()
	out, err := n.run(t, append([]string{"--format", "json"}, args...)...)
	require.NoError(t, err, out)

	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Equal(t, "ok", resp.Status)
	require.NoError(t, json.Unmarshal(resp.Data, v))
}

func (n *node) stage(t *testing.T, records ...record.Record) {
	t.Helper()
	require.NoError(t, staging.New(n.stagingPath()).Save(records))
}

func exists(t *testing.T, path string) bool {
	t.Helper()
	_, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	require.NoError(t, err)
	return true
}

func sample(line string, h, m, delay int) record.Record {
	return record.New(line, time.Date(2024, 3, 1, h, m, 0, 0, time.Local), delay, 833)
}

// stopPageServer serves the stop page fixture, or status for every request
// when status is not 200.
func stopPageServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	page, err := os.ReadFile(filepath.Join("..", "scraper", "testdata", "stop_833.html"))
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		w.Write(page)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// collector runs a transfer server over a staging file of its own. Its
// deletion window is always open.
type collector struct {
	staging *staging.Store
	srv     *httptest.Server
}

func newCollector(t *testing.T) *collector {
	t.Helper()
	codec, err := token.NewCodec(testSecret, clock.System)
	require.NoError(t, err)

	st := staging.New(filepath.Join(t.TempDir(), "data.csv"))
	inside := time.Date(2024, 3, 1, 9, 30, 20, 0, time.Local)
	server := transfer.NewServer(transfer.ServerConfig{}, st, codec,
		transfer.WithServerClock(testutil.NewManualClock(inside)),
		transfer.WithServerLogger(discard),
	)

	srv := httptest.NewServer(server.Handler())
	t.Cleanup(srv.Close)
	return &collector{staging: st, srv: srv}
}

func (c *collector) serverYAML() string {
	return fmt.Sprintf("secret: %s\nserver:\n  url: %s/\n", testSecret, c.srv.URL)
}
