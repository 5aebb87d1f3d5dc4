package domain

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Clustering defaults tuned for render-space coordinates at DefaultRenderRatio.
const (
	DefaultClusterEps    = 0.05
	DefaultClusterMinPts = 5
)

// NoiseCluster is the cluster id of points that belong to no cluster.
const NoiseCluster = -1

// Assignment is the clustering label of one point. Cluster ids follow
// discovery order within a single run and mean nothing across runs.
type Assignment struct {
	Cluster int  `json:"cluster"`
	Core    bool `json:"core"`
}

// Noise reports whether the point is unclustered.
func (a Assignment) Noise() bool { return a.Cluster == NoiseCluster }

// ClusterParams configures DBSCAN.
type ClusterParams struct {
	Eps    float64 // neighborhood radius in render units
	MinPts int     // minimum number of other points within Eps for a core point
}

// DefaultClusterParams returns the default DBSCAN radius and neighbor count.
func DefaultClusterParams() ClusterParams {
	return ClusterParams{Eps: DefaultClusterEps, MinPts: DefaultClusterMinPts}
}

// Validate rejects non-positive radii, NaN and minPts below one.
func (p ClusterParams) Validate() error {
	if !(p.Eps > 0) || math.IsInf(p.Eps, 0) {
		return fmt.Errorf("%w: eps %v", ErrInvalidClusterParams, p.Eps)
	}
	if p.MinPts < 1 {
		return fmt.Errorf("%w: minPts %d", ErrInvalidClusterParams, p.MinPts)
	}
	return nil
}

// cellKey addresses one cube of the uniform grid.
type cellKey struct{ x, y, z int64 }

// SpatialIndex buckets points into cubes of side CellSize so that every
// neighbor within CellSize of a point lies in the surrounding 3x3x3 block.
type SpatialIndex struct {
	CellSize float64
	Grid     map[cellKey][]int
}

// NewSpatialIndex creates an empty index with the given cell size.
func NewSpatialIndex(cellSize float64) *SpatialIndex {
	return &SpatialIndex{
		CellSize: cellSize,
		Grid:     make(map[cellKey][]int),
	}
}

func (si *SpatialIndex) key(v r3.Vec) cellKey {
	return cellKey{
		x: int64(math.Floor(v.X / si.CellSize)),
		y: int64(math.Floor(v.Y / si.CellSize)),
		z: int64(math.Floor(v.Z / si.CellSize)),
	}
}

// Build indexes the positions of points.
func (si *SpatialIndex) Build(points []ColoredPoint) {
	si.Grid = make(map[cellKey][]int, len(points)/4+1)
	for i := range points {
		k := si.key(points[i].Pos)
		si.Grid[k] = append(si.Grid[k], i)
	}
}

// RegionQuery appends to dst the indices of all points other than idx within
// eps of points[idx]. eps must not exceed CellSize.
func (si *SpatialIndex) RegionQuery(dst []int, points []ColoredPoint, idx int, eps float64) []int {
	p := points[idx].Pos
	eps2 := eps * eps
	base := si.key(p)

	for dx := int64(-1); dx <= 1; dx++ {
		for dy := int64(-1); dy <= 1; dy++ {
			for dz := int64(-1); dz <= 1; dz++ {
				cell := cellKey{base.x + dx, base.y + dy, base.z + dz}
				for _, j := range si.Grid[cell] {
					if j == idx {
						continue
					}
					d := r3.Sub(points[j].Pos, p)
					if r3.Dot(d, d) <= eps2 {
						dst = append(dst, j)
					}
				}
			}
		}
	}
	return dst
}

// Cluster runs DBSCAN over the point positions (raw, unnormalized
// coordinates) and returns one assignment per input point, in input order.
//
// A core point has at least MinPts other points within Eps. Clusters grow
// through core points; non-core points reached from a core point join that
// cluster as border members. A grid index keeps each neighborhood query at
// the cost of the surrounding cells, so the run is O(n·k) for k points per
// neighborhood and degrades to O(n²) when everything falls in one cell.
func Cluster(points []ColoredPoint, params ClusterParams) ([]Assignment, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	const unvisited = -2
	n := len(points)
	labels := make([]Assignment, n)
	for i := range labels {
		labels[i].Cluster = unvisited
	}
	if n == 0 {
		return labels, nil
	}

	si := NewSpatialIndex(params.Eps)
	si.Build(points)

	clusterID := 0
	var neighbors, expansion []int
	for i := 0; i < n; i++ {
		if labels[i].Cluster != unvisited {
			continue
		}

		neighbors = si.RegionQuery(neighbors[:0], points, i, params.Eps)
		if len(neighbors) < params.MinPts {
			labels[i].Cluster = NoiseCluster
			continue
		}

		labels[i] = Assignment{Cluster: clusterID, Core: true}
		queue := append(expansion[:0], neighbors...)
		for q := 0; q < len(queue); q++ {
			j := queue[q]
			switch labels[j].Cluster {
			case NoiseCluster:
				labels[j].Cluster = clusterID // border point
				continue
			case unvisited:
			default:
				continue
			}

			labels[j].Cluster = clusterID
			neighbors = si.RegionQuery(neighbors[:0], points, j, params.Eps)
			if len(neighbors) >= params.MinPts {
				labels[j].Core = true
				queue = append(queue, neighbors...)
			}
		}
		expansion = queue
		clusterID++
	}

	return labels, nil
}
