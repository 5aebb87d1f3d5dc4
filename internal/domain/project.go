package domain

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// DefaultRenderRatio converts meters to render units (1 unit per 100 km).
const DefaultRenderRatio = 0.00001

// Projector turns scaled gates into render-space points.
type Projector struct {
	// RenderRatio scales meters into render units.
	RenderRatio float64
	// IncludeFolded emits MomentFolded gates as points; they are dropped by
	// default.
	IncludeFolded bool
}

// NewProjector creates a Projector with the given meters-to-render ratio.
func NewProjector(renderRatio float64) Projector {
	return Projector{RenderRatio: renderRatio}
}

// SnapAzimuth rotates a compass azimuth by -90°, wraps it into [0, 360) and
// floors it, advancing one spacing unit when the next spacing boundary crosses
// a whole degree. This matches the beam indexing of the archive format.
func SnapAzimuth(azimuth, spacing float64) float64 {
	a := math.Mod(azimuth-90, 360)
	if a < 0 {
		a += 360
	}
	snapped := math.Floor(a)
	if math.Floor(a+spacing) > snapped {
		snapped += spacing
	}
	return snapped
}

// Position projects a gate at rangeM meters along a beam with the given
// elevation and snapped azimuth (degrees). The result is ordered (x, z, y) so
// the ground plane is the render X/Z plane.
func (p Projector) Position(elevation, snappedAzimuth, rangeM float64) r3.Vec {
	az := snappedAzimuth * (math.Pi / 180)
	el := elevation * (math.Pi / 180)
	r := rangeM * p.RenderRatio

	x := math.Cos(az) * r
	y := math.Sin(az) * r
	z := math.Sin(el) * r
	return r3.Vec{X: x, Y: z, Z: y}
}

// DerivePoints projects every gate whose scaled value is a real return above
// threshold. Heights use the sweep's elevation angle, not the per-radial one.
// Colors are left zero; see ClassifyPoints.
func (p Projector) DerivePoints(scan *VolumeScan, threshold float64) ([]ColoredPoint, error) {
	var points []ColoredPoint

	for _, sweep := range scan.Sweeps {
		for i := range sweep.Radials {
			radial := &sweep.Radials[i]
			gates := radial.Gates
			if radial.GateCount > 0 && radial.GateCount < len(gates) {
				gates = gates[:radial.GateCount]
			}
			if len(gates) == 0 {
				continue
			}

			scaled, err := ScaleGates(gates, radial.WordSize, radial.Scale, radial.Offset)
			if err != nil {
				return nil, err
			}

			azimuth := SnapAzimuth(radial.Azimuth, radial.AzimuthSpacing)
			distance := radial.GateInterval
			for _, v := range scaled {
				if p.include(v, threshold) {
					points = append(points, ColoredPoint{
						Pos:      p.Position(sweep.Elevation, azimuth, distance),
						Strength: v,
					})
				}
				distance += radial.GateInterval
			}
		}
	}

	return points, nil
}

func (p Projector) include(v, threshold float64) bool {
	if v == BelowThreshold {
		return false
	}
	if v == MomentFolded && !p.IncludeFolded {
		return false
	}
	return v > threshold
}
