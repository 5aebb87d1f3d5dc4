package domain

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func pt(x, y, z float64) ColoredPoint {
	return ColoredPoint{Pos: r3.Vec{X: x, Y: y, Z: z}, Strength: 30}
}

// blob lays out a 5x4 grid with 0.01 spacing starting at (x0, 0, z0).
func blob(x0, z0 float64) []ColoredPoint {
	var out []ColoredPoint
	for i := range 20 {
		out = append(out, pt(x0+0.01*float64(i%5), 0, z0+0.01*float64(i/5)))
	}
	return out
}

func TestSpatialIndex_Build(t *testing.T) {
	points := []ColoredPoint{pt(0, 0, 0), pt(0.5, 0.5, 0), pt(10, 10, 10)}

	si := NewSpatialIndex(1.0)
	si.Build(points)

	assert.Len(t, si.Grid, 2)
}

func TestSpatialIndex_RegionQuery(t *testing.T) {
	points := []ColoredPoint{pt(0, 0, 0), pt(0.3, 0.3, 0), pt(10, 10, 0), pt(0, 0, 0.45)}

	si := NewSpatialIndex(1.0)
	si.Build(points)

	assert.ElementsMatch(t, []int{1, 3}, si.RegionQuery(nil, points, 0, 0.5))
	assert.Empty(t, si.RegionQuery(nil, points, 2, 0.5))
}

func TestSpatialIndex_RegionQueryAcrossNegativeCells(t *testing.T) {
	points := []ColoredPoint{pt(-0.001, -0.001, -0.001), pt(0.001, 0.001, 0.001)}

	si := NewSpatialIndex(0.01)
	si.Build(points)

	assert.Equal(t, []int{1}, si.RegionQuery(nil, points, 0, 0.01))
	assert.Equal(t, []int{0}, si.RegionQuery(nil, points, 1, 0.01))
}

func TestCluster_TwoBlobsAndNoise(t *testing.T) {
	points := append(blob(0, 0), blob(1, 0)...)
	points = append(points, pt(0.5, 0, 0.5))

	got, err := Cluster(points, ClusterParams{Eps: 0.025, MinPts: 3})
	require.NoError(t, err)
	require.Len(t, got, len(points))

	for i := range 20 {
		assert.Equal(t, Assignment{Cluster: 0, Core: true}, got[i], "point %d", i)
		assert.Equal(t, Assignment{Cluster: 1, Core: true}, got[20+i], "point %d", 20+i)
	}
	assert.True(t, got[40].Noise())
	assert.False(t, got[40].Core)
	assert.Equal(t, 1, CountNoise(got))
}

func TestCluster_BorderPoints(t *testing.T) {
	points := []ColoredPoint{pt(0, 0, 0), pt(0.01, 0, 0), pt(0.02, 0, 0), pt(0.03, 0, 0)}

	got, err := Cluster(points, ClusterParams{Eps: 0.015, MinPts: 2})
	require.NoError(t, err)

	assert.Equal(t, []Assignment{
		{Cluster: 0, Core: false},
		{Cluster: 0, Core: true},
		{Cluster: 0, Core: true},
		{Cluster: 0, Core: false},
	}, got)
}

func TestCluster_MinPtsCountsOthers(t *testing.T) {
	// Each point has exactly two neighbors.
	points := []ColoredPoint{pt(0, 0, 0), pt(0.01, 0, 0), pt(0, 0.01, 0)}

	got, err := Cluster(points, ClusterParams{Eps: 0.02, MinPts: 2})
	require.NoError(t, err)
	for _, a := range got {
		assert.Equal(t, Assignment{Cluster: 0, Core: true}, a)
	}

	got, err = Cluster(points, ClusterParams{Eps: 0.02, MinPts: 3})
	require.NoError(t, err)
	for _, a := range got {
		assert.True(t, a.Noise())
	}
}

func TestCluster_Empty(t *testing.T) {
	got, err := Cluster(nil, DefaultClusterParams())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCluster_InvalidParams(t *testing.T) {
	points := []ColoredPoint{pt(0, 0, 0)}
	for _, p := range []ClusterParams{
		{Eps: 0, MinPts: 5},
		{Eps: -1, MinPts: 5},
		{Eps: math.NaN(), MinPts: 5},
		{Eps: math.Inf(1), MinPts: 5},
		{Eps: 0.05, MinPts: 0},
	} {
		_, err := Cluster(points, p)
		require.ErrorIs(t, err, ErrInvalidClusterParams, "%+v", p)
		assert.ErrorIs(t, err, ErrInput)
	}
}

// TestCluster_MatchesBruteForce checks the DBSCAN invariants against an
// O(n²) neighbor count on random clouds.
func TestCluster_MatchesBruteForce(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 11))
	params := ClusterParams{Eps: 0.05, MinPts: 4}

	for trial := range 10 {
		n := 150 + r.IntN(150)
		points := make([]ColoredPoint, n)
		for i := range points {
			points[i] = pt(r.Float64()*0.8-0.4, r.Float64()*0.05, r.Float64()*0.8-0.4)
		}

		got, err := Cluster(points, params)
		require.NoError(t, err)
		require.Len(t, got, n)

		neighborsOf := func(i int) []int {
			var out []int
			for j := range points {
				if j != i && r3.Norm(r3.Sub(points[i].Pos, points[j].Pos)) <= params.Eps {
					out = append(out, j)
				}
			}
			return out
		}

		for i := range points {
			nb := neighborsOf(i)
			isCore := len(nb) >= params.MinPts
			assert.Equal(t, isCore, got[i].Core, "trial %d point %d", trial, i)
			assert.GreaterOrEqual(t, got[i].Cluster, NoiseCluster, "trial %d point %d unlabeled", trial, i)

			if isCore {
				assert.False(t, got[i].Noise(), "dense point %d tagged noise", i)
				for _, j := range nb {
					if got[j].Core {
						assert.Equal(t, got[i].Cluster, got[j].Cluster, "core neighbors %d,%d split", i, j)
					}
				}
				continue
			}

			touchesCore := false
			for _, j := range nb {
				if got[j].Core {
					touchesCore = true
					break
				}
			}
			assert.Equal(t, !touchesCore, got[i].Noise(), "trial %d point %d", trial, i)
		}
	}
}
