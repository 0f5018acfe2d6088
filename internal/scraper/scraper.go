package scraper

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/roach88/busstats/internal/clock"
	"github.com/roach88/busstats/internal/downloader"
	"github.com/roach88/busstats/internal/record"
)

// DefaultBaseURL is the stop page of the Valladolid transit authority.
const DefaultBaseURL = "http://www.auvasa.es/parada.asp"

// Fetcher downloads pages.
type Fetcher interface {
	Get(ctx context.Context, url string) (*downloader.Response, error)
}

// Stop is a stop to scrape and the lines of interest there. An empty Lines
// keeps every line.
type Stop struct {
	ID    int      `yaml:"id" validate:"required,gt=0"`
	Name  string   `yaml:"name"`
	Lines []string `yaml:"lines"`
}

// Scraper reads stop pages.
type Scraper struct {
	fetcher Fetcher
	baseURL string
	clock   clock.Clock
}

// New creates a Scraper. An empty baseURL uses DefaultBaseURL.
func New(fetcher Fetcher, baseURL string, clk clock.Clock) *Scraper {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if clk == nil {
		clk = clock.System
	}
	return &Scraper{fetcher: fetcher, baseURL: baseURL, clock: clk}
}

// StopURL returns the page address of a stop.
func (s *Scraper) StopURL(stopID int) string {
	return s.baseURL + "?" + url.Values{"codigo": {strconv.Itoa(stopID)}}.Encode()
}

// Scrape downloads the page of stop and returns one record per listed bus,
// stamped with the current time.
func (s *Scraper) Scrape(ctx context.Context, stop Stop) ([]record.Record, error) {
	resp, err := s.fetcher.Get(ctx, s.StopURL(stop.ID))
	if err != nil {
		return nil, fmt.Errorf("scrape stop %d: %w", stop.ID, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("scrape stop %d: unexpected status %d", stop.ID, resp.StatusCode)
	}

	records, err := Parse(bytes.NewReader(resp.Body), stop.ID, s.clock.Now(), stop.Lines)
	if err != nil {
		return nil, fmt.Errorf("scrape stop %d: %w", stop.ID, err)
	}
	return records, nil
}

// Parse extracts records from a stop page. Rows without cells or whose last
// cell is not a delay are skipped. When lines is non-empty only those lines
// are kept.
func Parse(r io.Reader, stopID int, now time.Time, lines []string) ([]record.Record, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse stop page: %w", err)
	}

	records := []record.Record{}
	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() == 0 {
			return
		}

		line := strings.TrimSpace(cells.First().Text())
		delay, err := record.ParseDelay(cells.Last().Text())
		if err != nil || line == "" {
			return
		}
		if len(lines) > 0 && !slices.Contains(lines, line) {
			return
		}

		records = append(records, record.New(line, now, delay, stopID))
	})

	return records, nil
}
