package transfer

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/roach88/busstats/internal/downloader"
	"github.com/roach88/busstats/internal/record"
	"github.com/roach88/busstats/internal/staging"
)

// Requester performs the HTTP exchanges of the client.
type Requester interface {
	Get(ctx context.Context, url string) (*downloader.Response, error)
	Delete(ctx context.Context, url string, form map[string]string) (*downloader.Response, error)
}

// Minter issues capability tokens.
type Minter interface {
	Mint() (string, error)
}

// FetchError is returned when the collector answers a fetch with a status
// other than 200. Nothing is written and no deletion is requested.
type FetchError struct {
	StatusCode  int
	Explanation string
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.Explanation == "" {
		return fmt.Sprintf("fetch failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("fetch failed with status %d: %s", e.StatusCode, e.Explanation)
}

// Result describes one client transfer.
type Result struct {
	// Bytes is the size of the fetched file; 0 when the collector had nothing.
	Bytes int    `json:"bytes"`
	Path  string `json:"path"`
	// Retained is the number of local rows left over from an earlier fetch
	// that were kept alongside the fetched ones.
	Retained int `json:"retained,omitempty"`
	// Deleted reports that the collector removed its copy.
	Deleted bool `json:"deleted"`
	// DeleteStatus is the HTTP status of the DELETE, or 0 when none was sent.
	DeleteStatus int    `json:"delete_status"`
	DeleteReply  string `json:"delete_reply"`
}

// Size returns Bytes in human-readable form.
func (r Result) Size() string {
	return humanize.Bytes(uint64(r.Bytes))
}

// Client pulls the staging file from a collector.
type Client struct {
	url    string
	dest   string
	http   Requester
	minter Minter
	logger *slog.Logger
}

// NewClient creates a client fetching url into the local file dest.
func NewClient(url, dest string, requester Requester, minter Minter, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{url: url, dest: dest, http: requester, minter: minter, logger: logger}
}

// Get fetches the collector's staging file, writes it to the local path and
// then asks the collector to delete its copy.
//
// The fetched bytes are written verbatim when the local file holds no rows.
// Otherwise the fetched rows are added to the local ones, so rows kept by an
// earlier failed merge survive. If the local file or the fetched body cannot
// be decoded nothing is written and no DELETE is sent.
//
// A non-200 fetch returns a *FetchError. A 200 with an empty body writes
// nothing and sends no DELETE.
func (c *Client) Get(ctx context.Context) (Result, error) {
	res := Result{Path: c.dest}

	resp, err := c.http.Get(ctx, c.url)
	if err != nil {
		return res, fmt.Errorf("fetch %s: %w", c.url, err)
	}
	if resp.StatusCode != http.StatusOK {
		return res, &FetchError{StatusCode: resp.StatusCode, Explanation: extractExplanation(resp.Body)}
	}
	if len(resp.Body) == 0 {
		c.logger.Info("collector staging file is empty", "url", c.url)
		return res, nil
	}

	retained, err := c.store(resp.Body)
	if err != nil {
		return res, err
	}
	res.Bytes = len(resp.Body)
	res.Retained = retained
	c.logger.Info("fetched staging file", "url", c.url, "path", c.dest, "bytes", res.Bytes, "retained", retained)

	tok, err := c.minter.Mint()
	if err != nil {
		return res, fmt.Errorf("mint token: %w", err)
	}

	del, err := c.http.Delete(ctx, c.url, map[string]string{"token": tok})
	if err != nil {
		return res, fmt.Errorf("delete remote staging file: %w", err)
	}

	res.DeleteStatus = del.StatusCode
	if del.StatusCode == http.StatusOK {
		res.DeleteReply = strings.TrimSpace(string(del.Body))
		res.Deleted = res.DeleteReply == "Result: True"
	} else {
		res.DeleteReply = extractExplanation(del.Body)
	}

	c.logger.Info("remote delete answered",
		"status", res.DeleteStatus,
		"deleted", res.Deleted,
		"reply", res.DeleteReply,
	)
	return res, nil
}

// store writes body to the local staging file and returns how many local rows
// were already there.
func (c *Client) store(body []byte) (int, error) {
	local := staging.New(c.dest)
	kept, err := local.Load()
	if err != nil {
		return 0, fmt.Errorf("local staging file: %w", err)
	}
	if len(kept) == 0 {
		if err := writeFileAtomic(c.dest, body); err != nil {
			return 0, fmt.Errorf("write %s: %w", c.dest, err)
		}
		return 0, nil
	}

	fetched, err := staging.Decode(bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("decode fetched staging file: %w", err)
	}
	if err := local.Save(union(kept, fetched)); err != nil {
		return 0, err
	}
	return len(kept), nil
}

// union returns kept followed by the fetched records whose ids are new.
func union(kept, fetched []record.Record) []record.Record {
	seen := make(map[string]struct{}, len(kept))
	for _, r := range kept {
		seen[r.ID()] = struct{}{}
	}
	out := kept
	for _, r := range fetched {
		if _, ok := seen[r.ID()]; ok {
			continue
		}
		seen[r.ID()] = struct{}{}
		out = append(out, r)
	}
	return out
}

func writeFileAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
