package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/storm-radar-etl/internal/domain"
	"github.com/couchcryptid/storm-radar-etl/internal/observability"
	"github.com/couchcryptid/storm-radar-etl/internal/state"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// ScanLister lists the scan identifiers available for a site on a UTC date.
type ScanLister interface {
	ListScans(ctx context.Context, site string, date time.Time) ([]domain.ScanIdentifier, error)
}

// ScanFetcher returns the raw bytes of one scan file.
type ScanFetcher interface {
	FetchScan(ctx context.Context, id domain.ScanIdentifier) ([]byte, error)
}

// Decoder turns raw scan bytes into a decoded volume.
type Decoder interface {
	Decompress(raw []byte) ([]byte, error)
	Decode(data []byte) (*domain.VolumeScan, error)
}

// ResultPublisher announces completed runs.
type ResultPublisher interface {
	PublishResult(ctx context.Context, result ScanResult) error
}

// Orchestrator runs one scan at a time through list, fetch, decode and the
// compute chain, installing results into the shared state.
type Orchestrator struct {
	lister    ScanLister
	fetcher   ScanFetcher
	decoder   Decoder
	state     *state.State
	logger    *slog.Logger
	metrics   *observability.Metrics
	publisher ResultPublisher
	projector domain.Projector
	clock     clockwork.Clock
	newID     func() string

	wg    sync.WaitGroup
	ready atomic.Bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithPublisher announces every successful run. Publish errors are logged, not returned.
func WithPublisher(p ResultPublisher) Option {
	return func(o *Orchestrator) { o.publisher = p }
}

// WithClock replaces the clock used for stage timings and timestamps.
func WithClock(c clockwork.Clock) Option {
	return func(o *Orchestrator) { o.clock = c }
}

// WithProjector replaces the default projector.
func WithProjector(p domain.Projector) Option {
	return func(o *Orchestrator) { o.projector = p }
}

// WithIDGenerator replaces the run id source.
func WithIDGenerator(f func() string) Option {
	return func(o *Orchestrator) { o.newID = f }
}

// New creates an Orchestrator over the given stages and shared state.
func New(l ScanLister, f ScanFetcher, d Decoder, st *state.State, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		lister:    l,
		fetcher:   f,
		decoder:   d,
		state:     st,
		logger:    logger,
		metrics:   metrics,
		projector: domain.NewProjector(domain.DefaultRenderRatio),
		clock:     clockwork.NewRealClock(),
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// CheckReadiness returns nil once a run has completed successfully.
func (o *Orchestrator) CheckReadiness(_ context.Context) error {
	if !o.ready.Load() {
		return errors.New("no scan has been processed yet")
	}
	return nil
}

// Submit validates req, claims the state and processes the scan on a
// background goroutine. It returns the run id, or an input error or
// state.ErrAlreadyProcessing without starting anything. ctx must outlive the
// caller's request; it bounds only the list and fetch stages.
func (o *Orchestrator) Submit(ctx context.Context, req Request) (string, error) {
	runID, err := o.begin(req)
	if err != nil {
		return "", err
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		_, _ = o.execute(ctx, runID, req)
	}()
	return runID, nil
}

// Run processes req synchronously and returns the installed result.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*state.Result, error) {
	runID, err := o.begin(req)
	if err != nil {
		return nil, err
	}
	return o.execute(ctx, runID, req)
}

// Wait blocks until every submitted run has finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

func (o *Orchestrator) begin(req Request) (string, error) {
	if err := req.Validate(); err != nil {
		o.metrics.RunsTotal.WithLabelValues("input_error").Inc()
		return "", err
	}
	runID := o.newID()
	if err := o.state.Begin(runID); err != nil {
		o.metrics.RunsRejected.Inc()
		return "", err
	}
	o.metrics.RunInProgress.Set(1)
	return runID, nil
}

func (o *Orchestrator) execute(ctx context.Context, runID string, req Request) (*state.Result, error) {
	logger := o.logger.With("run_id", runID, "site", req.Site)
	logger.Info("run started",
		"date", req.Date.Format(time.DateOnly),
		"time", req.Time.String(),
		"cluster", req.Cluster,
	)

	result, err := o.process(ctx, runID, req, logger)
	// The gauge drops before the state is released so a following run's
	// begin cannot be overwritten.
	o.metrics.RunInProgress.Set(0)
	if err != nil {
		o.state.Fail(err, o.clock.Now())
		o.metrics.RunsTotal.WithLabelValues(outcome(err)).Inc()
		logger.Error("run failed", "error", err)
		return nil, err
	}

	o.state.Complete(result)
	o.ready.Store(true)
	o.metrics.RunsTotal.WithLabelValues("success").Inc()
	o.metrics.Points.Set(float64(len(result.Points)))
	o.metrics.Clusters.Set(float64(len(result.Clusters)))
	logger.Info("run completed",
		"scan", result.Scan,
		"points", len(result.Points),
		"clusters", len(result.Clusters),
	)

	if o.publisher != nil {
		if err := o.publisher.PublishResult(ctx, NewScanResult(result)); err != nil {
			o.metrics.ResultsPublished.WithLabelValues("error").Inc()
			logger.Warn("publish result failed", "error", err)
		} else {
			o.metrics.ResultsPublished.WithLabelValues("success").Inc()
		}
	}
	return result, nil
}

func (o *Orchestrator) process(ctx context.Context, runID string, req Request, logger *slog.Logger) (*state.Result, error) {
	var stats state.Statistics
	timer := newStageTimer(o.clock, &stats, func(stage string, d time.Duration) {
		o.metrics.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
	})

	ids, err := o.lister.ListScans(ctx, req.Site, req.Date)
	if err != nil {
		return nil, &UpstreamError{Stage: StageList, Err: err}
	}
	id, err := domain.SelectNearestScan(ids, req.Time)
	if err != nil {
		return nil, err
	}
	logger.Debug("scan selected", "scan", id, "candidates", len(ids))

	raw, err := o.fetcher.FetchScan(ctx, id)
	if err != nil {
		return nil, &UpstreamError{Stage: StageFetch, Err: err}
	}
	timer.lap(StageLoad)

	data, err := o.decoder.Decompress(raw)
	if err != nil {
		return nil, &UpstreamError{Stage: StageDecompress, Err: err}
	}
	timer.lap(StageDecompress)
	logger.Debug("scan decompressed", "bytes", len(data))

	scan, err := o.decoder.Decode(data)
	if err != nil {
		return nil, &UpstreamError{Stage: StageDecode, Err: err}
	}
	timer.lap(StageDecode)
	logger.Debug("scan decoded", "sweeps", len(scan.Sweeps), "radials", scan.RadialCount())

	out, err := transform(scan, req, o.projector, timer)
	if err != nil {
		return nil, err
	}

	return &state.Result{
		RunID:       runID,
		Site:        req.Site,
		Scan:        id,
		CompletedAt: o.clock.Now(),
		Points:      out.points,
		Assignments: out.assignments,
		Clusters:    out.clusters,
		Statistics:  stats,
	}, nil
}

func outcome(err error) string {
	switch {
	case errors.Is(err, domain.ErrInput):
		return "input_error"
	case IsUpstream(err):
		return "upstream_error"
	default:
		return "error"
	}
}
