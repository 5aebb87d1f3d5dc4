package pipeline

import (
	"time"

	"github.com/couchcryptid/storm-radar-etl/internal/domain"
	"github.com/couchcryptid/storm-radar-etl/internal/state"
	"github.com/jonboulle/clockwork"
)

// Stage names used for timings, metrics and upstream errors.
const (
	StageList       = "list"
	StageFetch      = "fetch"
	StageLoad       = "load"
	StageDecompress = "decompress"
	StageDecode     = "decode"
	StagePointing   = "pointing"
	StageColoring   = "coloring"
	StageSampling   = "sampling"
	StageClustering = "clustering"
)

// computed is the output of the synchronous compute chain.
type computed struct {
	points      []domain.ColoredPoint
	assignments []domain.Assignment
	clusters    []domain.ClusterSummary
}

// stageTimer records elapsed milliseconds per stage from a clock.
type stageTimer struct {
	clock   clockwork.Clock
	stats   *state.Statistics
	observe func(stage string, d time.Duration)
	start   time.Time
}

func newStageTimer(clock clockwork.Clock, stats *state.Statistics, observe func(string, time.Duration)) *stageTimer {
	return &stageTimer{clock: clock, stats: stats, observe: observe, start: clock.Now()}
}

// lap records the time since the previous lap against stage.
func (t *stageTimer) lap(stage string) {
	now := t.clock.Now()
	d := now.Sub(t.start)
	t.start = now

	ms := d.Milliseconds()
	switch stage {
	case StageLoad:
		t.stats.LoadMS = ms
	case StageDecompress:
		t.stats.DecompressMS = ms
	case StageDecode:
		t.stats.DecodeMS = ms
	case StagePointing:
		t.stats.PointingMS = ms
	case StageColoring:
		t.stats.ColoringMS = ms
	case StageSampling:
		t.stats.SamplingMS = ms
	case StageClustering:
		t.stats.ClusteringMS = ms
	}
	if t.observe != nil {
		t.observe(stage, d)
	}
}

// transform runs pointing, coloring, sampling and optionally clustering on a
// decoded scan. Errors here are caller-input errors.
func transform(scan *domain.VolumeScan, req Request, projector domain.Projector, timer *stageTimer) (computed, error) {
	var out computed

	projector.IncludeFolded = req.IncludeFolded
	points, err := projector.DerivePoints(scan, req.Threshold)
	if err != nil {
		return out, err
	}
	timer.stats.DerivedPoints = len(points)
	timer.lap(StagePointing)

	domain.ClassifyPoints(points)
	timer.lap(StageColoring)

	points, err = domain.Decimate(points, req.Stride)
	if err != nil {
		return out, err
	}
	timer.stats.SampledPoints = len(points)
	timer.lap(StageSampling)

	if !req.Cluster {
		for i := range points {
			points[i].Cluster = domain.UnclusteredColor
		}
		out.points = points
		return out, nil
	}

	assignments, err := domain.Cluster(points, req.Params)
	if err != nil {
		return out, err
	}
	domain.Recolor(points, assignments)
	out.clusters = domain.Summarize(points, assignments)
	timer.stats.Clusters = len(out.clusters)
	timer.stats.NoisePoints = domain.CountNoise(assignments)
	timer.lap(StageClustering)

	out.points = points
	out.assignments = assignments
	return out, nil
}
