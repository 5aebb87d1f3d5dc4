package domain

import (
	"slices"

	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"
)

// ClusterSummary describes one cluster of a run.
type ClusterSummary struct {
	ID           int     `json:"id"`
	Size         int     `json:"size"`
	CoreCount    int     `json:"core_count"`
	Centroid     r3.Vec  `json:"centroid"`
	MeanStrength float64 `json:"mean_strength"`
	MaxStrength  float64 `json:"max_strength"`
	Color        RGB     `json:"color"`
}

// Summarize aggregates points by cluster id, ordered by id. Noise is skipped.
func Summarize(points []ColoredPoint, assignments []Assignment) []ClusterSummary {
	type members struct {
		xs, ys, zs, strength []float64
		core                 int
	}
	byID := make(map[int]*members)
	for i, a := range assignments {
		if a.Noise() {
			continue
		}
		m, ok := byID[a.Cluster]
		if !ok {
			m = &members{}
			byID[a.Cluster] = m
		}
		p := points[i]
		m.xs = append(m.xs, p.Pos.X)
		m.ys = append(m.ys, p.Pos.Y)
		m.zs = append(m.zs, p.Pos.Z)
		m.strength = append(m.strength, p.Strength)
		if a.Core {
			m.core++
		}
	}

	ids := make([]int, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	summaries := make([]ClusterSummary, 0, len(ids))
	for _, id := range ids {
		m := byID[id]
		summaries = append(summaries, ClusterSummary{
			ID:        id,
			Size:      len(m.xs),
			CoreCount: m.core,
			Centroid: r3.Vec{
				X: stat.Mean(m.xs, nil),
				Y: stat.Mean(m.ys, nil),
				Z: stat.Mean(m.zs, nil),
			},
			MeanStrength: stat.Mean(m.strength, nil),
			MaxStrength:  slices.Max(m.strength),
			Color:        ClusterHue(id),
		})
	}
	return summaries
}

// CountNoise returns the number of unclustered assignments.
func CountNoise(assignments []Assignment) int {
	n := 0
	for _, a := range assignments {
		if a.Noise() {
			n++
		}
	}
	return n
}
