package merge

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/roach88/busstats/internal/clock"
	"github.com/roach88/busstats/internal/ids"
	"github.com/roach88/busstats/internal/record"
)

var insertedTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "busstats_merge_inserted_total",
	Help: "Records inserted into the durable store by merge cycles.",
})

// Staging is the source side of a merge.
type Staging interface {
	Load() ([]record.Record, error)
	Remove() (bool, error)
}

// Durable is the destination side of a merge.
type Durable interface {
	IDs(ctx context.Context) (map[string]struct{}, error)
	InsertMany(ctx context.Context, records []record.Record) (int, error)
}

// Verifier authorizes removal of the staging file.
type Verifier interface {
	Verify(token string) error
}

// Report summarizes one merge cycle.
type Report struct {
	CycleID string `json:"cycle_id"`
	// Staged is the number of rows in the staging file.
	Staged int `json:"staged"`
	// Pending is the number of distinct staged ids absent from the store.
	Pending  int           `json:"pending"`
	Inserted int           `json:"inserted"`
	Elapsed  time.Duration `json:"elapsed"`
	// Removed is set by Run when the staging file was deleted.
	Removed bool `json:"removed"`
}

// Speed returns inserted records per second, or 0 when nothing was timed.
func (r Report) Speed() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Inserted) / r.Elapsed.Seconds()
}

// Engine runs merge cycles.
type Engine struct {
	staging  Staging
	durable  Durable
	verifier Verifier
	clock    clock.Clock
	ids      ids.Generator
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock used to time cycles.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithIDGenerator sets the cycle id generator.
func WithIDGenerator(g ids.Generator) Option {
	return func(e *Engine) { e.ids = g }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates a merge engine. verifier may be nil when only Reconcile is used.
func New(staging Staging, durable Durable, verifier Verifier, opts ...Option) *Engine {
	e := &Engine{
		staging:  staging,
		durable:  durable,
		verifier: verifier,
		clock:    clock.System,
		ids:      ids.UUIDv7Generator{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Reconcile inserts every staged record the store does not hold yet.
// It never touches the staging file.
func (e *Engine) Reconcile(ctx context.Context) (Report, error) {
	report := Report{CycleID: e.ids.Generate()}
	start := e.clock.Now()
	logger := e.logger.With("cycle", report.CycleID)

	staged, err := e.staging.Load()
	if err != nil {
		return report, fmt.Errorf("load staging: %w", err)
	}
	report.Staged = len(staged)

	existing, err := e.durable.IDs(ctx)
	if err != nil {
		return report, fmt.Errorf("read stored ids: %w", err)
	}

	pending := make(map[string]struct{})
	for _, r := range staged {
		id := r.ID()
		if _, ok := existing[id]; !ok {
			pending[id] = struct{}{}
		}
	}
	report.Pending = len(pending)

	logger.Debug("merge cycle loaded",
		"staged", report.Staged,
		"stored", len(existing),
		"pending", report.Pending,
	)

	inserted, err := e.durable.InsertMany(ctx, staged)
	if err != nil {
		return report, fmt.Errorf("insert records: %w", err)
	}
	report.Inserted = inserted
	report.Elapsed = e.clock.Now().Sub(start)
	insertedTotal.Add(float64(inserted))

	logger.Info("merge cycle finished",
		"staged", report.Staged,
		"pending", report.Pending,
		"inserted", report.Inserted,
		"elapsed", report.Elapsed,
	)

	return report, nil
}

// Run reconciles and then removes the staging file when every pending
// record was inserted and token verifies. Otherwise the file is kept and
// Run returns a *DiscrepancyError or the token error alongside the report.
func (e *Engine) Run(ctx context.Context, token string) (Report, error) {
	report, err := e.Reconcile(ctx)
	if err != nil {
		return report, err
	}

	if report.Pending != report.Inserted {
		e.logger.Error("merge discrepancy, keeping staging file",
			"cycle", report.CycleID,
			"pending", report.Pending,
			"inserted", report.Inserted,
		)
		return report, &DiscrepancyError{
			CycleID:  report.CycleID,
			Pending:  report.Pending,
			Inserted: report.Inserted,
		}
	}

	if e.verifier == nil {
		return report, fmt.Errorf("remove staging: no token verifier configured")
	}
	if err := e.verifier.Verify(token); err != nil {
		e.logger.Warn("staging removal refused", "cycle", report.CycleID, "error", err)
		return report, fmt.Errorf("authorize staging removal: %w", err)
	}

	removed, err := e.staging.Remove()
	if err != nil {
		return report, fmt.Errorf("remove staging: %w", err)
	}
	report.Removed = removed

	e.logger.Info("staging file removed", "cycle", report.CycleID, "removed", removed)
	return report, nil
}
