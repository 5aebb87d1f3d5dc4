package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/storm-radar-etl/internal/adapter/archive2"
	"github.com/couchcryptid/storm-radar-etl/internal/adapter/diskcache"
	"github.com/couchcryptid/storm-radar-etl/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/storm-radar-etl/internal/adapter/kafka"
	"github.com/couchcryptid/storm-radar-etl/internal/adapter/noaa"
	"github.com/couchcryptid/storm-radar-etl/internal/config"
	"github.com/couchcryptid/storm-radar-etl/internal/domain"
	"github.com/couchcryptid/storm-radar-etl/internal/observability"
	"github.com/couchcryptid/storm-radar-etl/internal/pipeline"
	"github.com/couchcryptid/storm-radar-etl/internal/state"
	"github.com/jonboulle/clockwork"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	lister, fetcher, err := newSource(cfg, clock, metrics, logger)
	if err != nil {
		logger.Error("failed to create scan source", "error", err)
		os.Exit(1)
	}
	lister = diskcache.NewCachedLister(lister, cfg.ListingCacheSize, clock, metrics)
	fetcher = diskcache.NewCachedFetcher(fetcher, cfg.CacheDir, metrics, logger)
	if cfg.CacheDir == "" {
		logger.Info("disk cache disabled")
	}

	opts := []pipeline.Option{
		pipeline.WithClock(clock),
		pipeline.WithProjector(domain.NewProjector(cfg.RenderRatio)),
	}

	// Result events are feature-flagged via KAFKA_ENABLED.
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		opts = append(opts, pipeline.WithPublisher(writer))
		logger.Info("result events enabled", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers)
	} else {
		logger.Info("result events disabled")
	}

	st := state.New()
	orch := pipeline.New(lister, fetcher, archive2.NewDecoder(), st, logger, metrics, opts...)

	defaults := pipeline.Defaults{
		Site:          cfg.RadarSite,
		Threshold:     cfg.InclusionThreshold,
		Stride:        cfg.SamplingStride,
		IncludeFolded: cfg.IncludeFolded,
		Cluster:       cfg.ClusterEnabled,
		Params:        domain.ClusterParams{Eps: cfg.ClusterEps, MinPts: cfg.ClusterMinPoints},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := httpadapter.NewServer(ctx, cfg.HTTPAddr, orch, orch, st, defaults, logger, httpadapter.WithClock(clock))

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	if cfg.RunOnStart {
		if runID, err := orch.Submit(ctx, defaults.Request(clock.Now())); err != nil {
			logger.Error("initial run rejected", "error", err)
		} else {
			logger.Info("initial run started", "run_id", runID, "site", cfg.RadarSite)
		}
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	waitForRuns(shutdownCtx, orch, logger)
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

func newSource(cfg *config.Config, clock clockwork.Clock, metrics *observability.Metrics, logger *slog.Logger) (diskcache.Lister, diskcache.Fetcher, error) {
	if cfg.ScanSource == config.SourceDir {
		logger.Info("serving scans from directory", "dir", cfg.ScanDir)
		src := diskcache.NewDirSource(cfg.ScanDir)
		return src, src, nil
	}

	client, err := noaa.NewClient(cfg, clock, metrics, logger)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("serving scans from object storage", "endpoint", cfg.RadarEndpoint, "bucket", cfg.RadarBucket)
	return client, client, nil
}

// waitForRuns lets an in-flight run finish its compute stages, which do not
// observe cancellation, until the shutdown deadline.
func waitForRuns(ctx context.Context, orch *pipeline.Orchestrator, logger *slog.Logger) {
	done := make(chan struct{})
	go func() {
		orch.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		logger.Warn("shutdown deadline reached with a run in progress")
	}
}
