// Package state holds the result of the most recent pipeline run, shared
// between the background job and the presentation layer.
package state

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/couchcryptid/storm-radar-etl/internal/domain"
)

// ErrAlreadyProcessing is returned by Begin while another run holds the state.
var ErrAlreadyProcessing = errors.New("a scan is already being processed")

// Statistics records elapsed milliseconds per pipeline stage and result counts.
type Statistics struct {
	LoadMS       int64 `json:"load_ms"`
	DecompressMS int64 `json:"decompress_ms"`
	DecodeMS     int64 `json:"decode_ms"`
	PointingMS   int64 `json:"pointing_ms"`
	ColoringMS   int64 `json:"coloring_ms"`
	SamplingMS   int64 `json:"sampling_ms"`
	ClusteringMS int64 `json:"clustering_ms"`

	DerivedPoints int `json:"derived_points"`
	SampledPoints int `json:"sampled_points"`
	Clusters      int `json:"clusters"`
	NoisePoints   int `json:"noise_points"`
}

// Result is the output of one successful run.
type Result struct {
	RunID       string
	Site        string
	Scan        domain.ScanIdentifier
	CompletedAt time.Time
	Points      []domain.ColoredPoint
	Assignments []domain.Assignment // nil when clustering was skipped
	Clusters    []domain.ClusterSummary
	Statistics  Statistics
}

// Snapshot is a copy of the state safe to read without the lock.
type Snapshot struct {
	Processing bool
	RunID      string // id of the in-flight run, or of the last result when idle
	Result     *Result
	LastError  error
	LastFailed time.Time
}

// State is the lock-guarded handoff between the pipeline and its readers.
// Construct one with New and share the pointer.
type State struct {
	mu         sync.Mutex
	processing bool
	runID      string
	result     *Result
	lastErr    error
	lastFailed time.Time
}

// New returns an idle State with no result.
func New() *State {
	return &State{}
}

// Begin marks the state as processing on behalf of runID. It fails without
// modifying anything if a run is already in progress.
func (s *State) Begin(runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.processing {
		return ErrAlreadyProcessing
	}
	s.processing = true
	s.runID = runID
	return nil
}

// Complete installs a result and clears the processing flag in one step.
func (s *State) Complete(r *Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.result = r
	s.runID = r.RunID
	s.lastErr = nil
	s.processing = false
}

// Fail records err and clears the processing flag. The previous result stays.
func (s *State) Fail(err error, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastErr = err
	s.lastFailed = at
	s.processing = false
	if s.result != nil {
		s.runID = s.result.RunID
	}
}

// Processing reports whether a run is in flight.
func (s *State) Processing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processing
}

// Snapshot copies the current state. Point and cluster slices are cloned so
// callers may hold them after the lock is released.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Processing: s.processing,
		RunID:      s.runID,
		LastError:  s.lastErr,
		LastFailed: s.lastFailed,
	}
	if s.result != nil {
		r := *s.result
		r.Points = slices.Clone(s.result.Points)
		r.Assignments = slices.Clone(s.result.Assignments)
		r.Clusters = slices.Clone(s.result.Clusters)
		snap.Result = &r
	}
	return snap
}

// Status returns the snapshot without copying points, for cheap polling.
func (s *State) Status() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Processing: s.processing,
		RunID:      s.runID,
		LastError:  s.lastErr,
		LastFailed: s.lastFailed,
	}
	if s.result != nil {
		r := *s.result
		r.Points = nil
		r.Assignments = nil
		r.Clusters = slices.Clone(s.result.Clusters)
		snap.Result = &r
	}
	return snap
}
