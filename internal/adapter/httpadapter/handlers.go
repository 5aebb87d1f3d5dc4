package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/storm-radar-etl/internal/domain"
	"github.com/couchcryptid/storm-radar-etl/internal/pipeline"
	"github.com/couchcryptid/storm-radar-etl/internal/state"
)

const maxRunBody = 1 << 16

type stateResponse struct {
	Processing  bool              `json:"processing"`
	RunID       string            `json:"run_id,omitempty"`
	Site        string            `json:"site,omitempty"`
	Scan        string            `json:"scan_id,omitempty"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
	Statistics  *state.Statistics `json:"statistics,omitempty"`
	Points      int               `json:"points"`
	Clusters    int               `json:"clusters"`
	LastError   string            `json:"last_error,omitempty"`
	LastFailed  *time.Time        `json:"last_failed_at,omitempty"`
}

type pointJSON struct {
	X        float64    `json:"x"`
	Y        float64    `json:"y"`
	Z        float64    `json:"z"`
	Strength float64    `json:"strength"`
	Color    domain.RGB `json:"color"`
}

type pointsResponse struct {
	RunID  string      `json:"run_id,omitempty"`
	Mode   string      `json:"mode"`
	Total  int         `json:"total"`
	Points []pointJSON `json:"points"`
}

type clustersResponse struct {
	RunID    string                  `json:"run_id,omitempty"`
	Noise    int                     `json:"noise_points"`
	Clusters []domain.ClusterSummary `json:"clusters"`
}

// runRequest is the POST /api/v1/runs body. Omitted fields take the
// configured defaults; the scan time defaults to now in UTC.
type runRequest struct {
	Site      string   `json:"site"`
	Date      string   `json:"date"` // YYYY-MM-DD
	Time      string   `json:"time"` // HH:MM:SS
	Threshold *float64 `json:"threshold"`
	Stride    *int     `json:"stride"`
	Folded    *bool    `json:"include_folded"`
	Cluster   *bool    `json:"cluster"`
	Eps       *float64 `json:"eps"`
	MinPoints *int     `json:"min_points"`
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	snap := s.state.Status()

	resp := stateResponse{Processing: snap.Processing, RunID: snap.RunID}
	if snap.Result != nil {
		r := snap.Result
		completed := r.CompletedAt
		stats := r.Statistics
		resp.Site = r.Site
		resp.Scan = string(r.Scan)
		resp.CompletedAt = &completed
		resp.Statistics = &stats
		resp.Points = stats.SampledPoints
		resp.Clusters = len(r.Clusters)
	}
	if snap.LastError != nil {
		failed := snap.LastFailed
		resp.LastError = snap.LastError.Error()
		resp.LastFailed = &failed
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePoints(w http.ResponseWriter, r *http.Request) {
	mode, err := domain.ParseColorMode(r.URL.Query().Get("mode"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("%w: limit %q", domain.ErrInput, raw))
			return
		}
	}

	snap := s.state.Snapshot()
	resp := pointsResponse{RunID: snap.RunID, Mode: string(mode), Points: []pointJSON{}}
	if snap.Result != nil {
		points := snap.Result.Points
		resp.RunID = snap.Result.RunID
		resp.Total = len(points)
		if limit > 0 && limit < len(points) {
			points = points[:limit]
		}
		resp.Points = make([]pointJSON, len(points))
		for i, p := range points {
			resp.Points[i] = pointJSON{X: p.Pos.X, Y: p.Pos.Y, Z: p.Pos.Z, Strength: p.Strength, Color: p.Color(mode)}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClusters(w http.ResponseWriter, _ *http.Request) {
	snap := s.state.Status()

	resp := clustersResponse{RunID: snap.RunID, Clusters: []domain.ClusterSummary{}}
	if snap.Result != nil {
		resp.RunID = snap.Result.RunID
		resp.Noise = snap.Result.Statistics.NoisePoints
		if snap.Result.Clusters != nil {
			resp.Clusters = snap.Result.Clusters
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSubmitRun(w http.ResponseWriter, r *http.Request) {
	var body runRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRunBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: decode body: %v", domain.ErrInput, err))
		return
	}

	req, err := body.toRequest(s.defaults, s.clock.Now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	runID, err := s.runs.Submit(s.base, req)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	s.logger.Info("run accepted", "run_id", runID, "site", req.Site, "time", req.Time)
	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": runID, "status": "accepted"})
}

func (b runRequest) toRequest(d pipeline.Defaults, now time.Time) (pipeline.Request, error) {
	req := d.Request(now)

	if b.Site != "" {
		req.Site = strings.ToUpper(b.Site)
	}
	if b.Date != "" {
		date, err := time.Parse(time.DateOnly, b.Date)
		if err != nil {
			return req, fmt.Errorf("%w: date %q", domain.ErrInput, b.Date)
		}
		req.Date = date
	}
	if b.Time != "" {
		t, err := time.Parse(time.TimeOnly, b.Time)
		if err != nil {
			return req, fmt.Errorf("%w: time %q", domain.ErrInput, b.Time)
		}
		req.Time = domain.NewTimeOfDay(t.Hour(), t.Minute(), t.Second())
	}
	if b.Threshold != nil {
		req.Threshold = *b.Threshold
	}
	if b.Stride != nil {
		req.Stride = *b.Stride
	}
	if b.Folded != nil {
		req.IncludeFolded = *b.Folded
	}
	if b.Cluster != nil {
		req.Cluster = *b.Cluster
	}
	if b.Eps != nil {
		req.Params.Eps = *b.Eps
	}
	if b.MinPoints != nil {
		req.Params.MinPts = *b.MinPoints
	}
	return req, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInput):
		return http.StatusBadRequest
	case errors.Is(err, state.ErrAlreadyProcessing):
		return http.StatusConflict
	case pipeline.IsUpstream(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
