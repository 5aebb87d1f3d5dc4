package pipeline

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/couchcryptid/storm-radar-etl/internal/domain"
	"github.com/couchcryptid/storm-radar-etl/internal/state"
)

// ErrInvalidRequest is returned for requests that fail validation before any work starts.
var ErrInvalidRequest = fmt.Errorf("%w: invalid run request", domain.ErrInput)

// Request describes one scan to process.
type Request struct {
	Site      string
	Date      time.Time // UTC calendar date; the clock part is ignored
	Time      domain.TimeOfDay
	Threshold float64 // gates must exceed this scaled value
	Stride    int     // keep every Stride-th point

	// IncludeFolded keeps range-folded gates as points.
	IncludeFolded bool

	Cluster bool
	Params  domain.ClusterParams
}

// Validate checks the request without touching any external resource.
func (r Request) Validate() error {
	if len(r.Site) != 4 {
		return fmt.Errorf("%w: site %q must be a 4-letter code", ErrInvalidRequest, r.Site)
	}
	for _, c := range r.Site {
		if c < 'A' || c > 'Z' {
			return fmt.Errorf("%w: site %q must be upper case letters", ErrInvalidRequest, r.Site)
		}
	}
	if r.Date.IsZero() {
		return fmt.Errorf("%w: date is required", ErrInvalidRequest)
	}
	if r.Time < 0 || time.Duration(r.Time) >= 24*time.Hour {
		return fmt.Errorf("%w: time of day %v out of range", ErrInvalidRequest, time.Duration(r.Time))
	}
	if math.IsNaN(r.Threshold) || math.IsInf(r.Threshold, 0) {
		return fmt.Errorf("%w: threshold %v", ErrInvalidRequest, r.Threshold)
	}
	if r.Stride < 1 {
		return fmt.Errorf("%w: got %d", domain.ErrInvalidStride, r.Stride)
	}
	if r.Cluster {
		if err := r.Params.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Defaults fills requests that omit processing parameters.
type Defaults struct {
	Site          string
	Threshold     float64
	Stride        int
	IncludeFolded bool
	Cluster       bool
	Params        domain.ClusterParams
}

// Request returns a request for the scan nearest to now, in UTC.
func (d Defaults) Request(now time.Time) Request {
	now = now.UTC()
	return Request{
		Site:          d.Site,
		Date:          time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC),
		Time:          domain.TimeOfDayOf(now),
		Threshold:     d.Threshold,
		Stride:        d.Stride,
		IncludeFolded: d.IncludeFolded,
		Cluster:       d.Cluster,
		Params:        d.Params,
	}
}

// UpstreamError wraps a failure of the lister, fetcher or decoder.
type UpstreamError struct {
	Stage string
	Err   error
}

func (e *UpstreamError) Error() string {
	return e.Stage + ": " + e.Err.Error()
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// IsUpstream reports whether err came from an external dependency.
func IsUpstream(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue)
}

// ScanResult is the published summary of one run. It omits the point cloud.
type ScanResult struct {
	RunID       string                  `json:"run_id"`
	Site        string                  `json:"site"`
	Scan        domain.ScanIdentifier   `json:"scan_id"`
	ProcessedAt time.Time               `json:"processed_at"`
	Points      int                     `json:"points"`
	Statistics  state.Statistics        `json:"statistics"`
	Clusters    []domain.ClusterSummary `json:"clusters,omitempty"`
}

// NewScanResult summarizes a completed run.
func NewScanResult(r *state.Result) ScanResult {
	return ScanResult{
		RunID:       r.RunID,
		Site:        r.Site,
		Scan:        r.Scan,
		ProcessedAt: r.CompletedAt,
		Points:      len(r.Points),
		Statistics:  r.Statistics,
		Clusters:    r.Clusters,
	}
}
