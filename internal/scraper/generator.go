package scraper

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/robfig/cron/v3"

	"github.com/roach88/busstats/internal/notify"
	"github.com/roach88/busstats/internal/record"
)

var scrapedTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "busstats_scraped_records_total",
	Help: "Records scraped from stop pages and staged.",
})

// DefaultStops are the stops watched when the configuration lists none.
var DefaultStops = []Stop{
	{ID: 686, Name: "Gamazo", Lines: []string{"2"}},
	{ID: 682, Name: "Fray Luis de León", Lines: []string{"8"}},
	{ID: 812, Name: "Fuente Dorada", Lines: []string{"2", "8"}},
	{ID: 833, Name: "Clínico", Lines: []string{"2", "8"}},
	{ID: 880, Name: "Ciencias", Lines: []string{"2"}},
	{ID: 1191, Name: "Campus (previous stop)", Lines: []string{"8"}},
	{ID: 1358, Name: "Campus Miguel Delibes", Lines: []string{"8"}},
}

// AlertSubject is the subject of the alert sent when a cycle fails.
const AlertSubject = "busstats: data generation failed"

// Staging is the file the generator appends to.
type Staging interface {
	Load() ([]record.Record, error)
	Save(records []record.Record) error
}

// Generator runs producer cycles: load the staging file, scrape every stop,
// save once.
type Generator struct {
	scraper *Scraper
	staging Staging
	stops   []Stop
	alerts  notify.Sink
	logger  *slog.Logger
}

// NewGenerator creates a Generator. A nil alerts sink disables alerts.
func NewGenerator(s *Scraper, staging Staging, stops []Stop, alerts notify.Sink, logger *slog.Logger) *Generator {
	if len(stops) == 0 {
		stops = DefaultStops
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{scraper: s, staging: staging, stops: stops, alerts: alerts, logger: logger}
}

// Run executes one cycle and returns how many records were appended. On any
// error the staging file is left as it was and an alert is sent.
func (g *Generator) Run(ctx context.Context) (int, error) {
	n, err := g.run(ctx)
	if err != nil {
		g.logger.Error("data generation failed", "error", err)
		notify.Alert(ctx, g.alerts, g.logger, AlertSubject, err)
		return 0, err
	}
	return n, nil
}

func (g *Generator) run(ctx context.Context) (int, error) {
	staged, err := g.staging.Load()
	if err != nil {
		return 0, fmt.Errorf("load staging: %w", err)
	}

	var scraped []record.Record
	for _, stop := range g.stops {
		records, err := g.scraper.Scrape(ctx, stop)
		if err != nil {
			return 0, err
		}
		g.logger.Debug("stop scraped", "stop", stop.ID, "records", len(records))
		scraped = append(scraped, records...)
	}

	if err := g.staging.Save(append(staged, scraped...)); err != nil {
		return 0, fmt.Errorf("save staging: %w", err)
	}
	scrapedTotal.Add(float64(len(scraped)))

	g.logger.Info("data generation finished", "scraped", len(scraped), "staged", len(staged)+len(scraped))
	return len(scraped), nil
}

// Schedule runs a cycle on every activation of the cron spec until ctx is
// cancelled. Failed cycles are alerted and do not stop the schedule. An
// activation that arrives while a cycle is still running is skipped.
func (g *Generator) Schedule(ctx context.Context, spec string) error {
	logger := cronLogger{logger: g.logger}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.SkipIfStillRunning(logger)),
	)
	if _, err := c.AddFunc(spec, func() { g.Run(ctx) }); err != nil {
		return fmt.Errorf("schedule %q: %w", spec, err)
	}

	c.Start()
	g.logger.Info("generation scheduled", "spec", spec)

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
