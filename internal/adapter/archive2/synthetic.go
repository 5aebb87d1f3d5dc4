package archive2

import (
	"math"
	"time"

	"github.com/couchcryptid/storm-radar-etl/internal/domain"
)

// Synthetic volume geometry, close to a WSR-88D super-resolution cut.
const (
	syntheticGates         = 460
	syntheticGateInterval  = 250.0
	syntheticFirstGate     = 2125.0
	syntheticScale         = 2
	syntheticOffset        = 66
	syntheticEchoTopMeters = 12000.0
)

// StormCell is a Gaussian reflectivity core on the ground plane.
type StormCell struct {
	Azimuth float64 // degrees clockwise from north
	Range   float64 // meters from the radar
	Radius  float64 // standard deviation in meters
	Peak    float64 // dBZ at the core
}

// SyntheticVolume builds a one-degree volume of the given cells, one sweep per
// elevation angle. Gates below 5 dBZ are encoded as below threshold.
func SyntheticVolume(site string, at time.Time, elevations []float64, cells []StormCell) *domain.VolumeScan {
	v := &domain.VolumeScan{Site: site, CapturedAt: at.UTC().Truncate(time.Millisecond)}

	for i, elev := range elevations {
		sweep := domain.ElevationSweep{Number: i + 1, Elevation: elev}
		sinEl := math.Sin(elev * math.Pi / 180)

		for az := range 360 {
			azimuth := float64(az) + 0.5
			sinAz, cosAz := math.Sincos(azimuth * math.Pi / 180)

			gates := make([]uint16, syntheticGates)
			for g := range gates {
				r := syntheticFirstGate + float64(g)*syntheticGateInterval
				height := r * sinEl
				if height >= syntheticEchoTopMeters {
					continue
				}
				dbz := cellReflectivity(r*sinAz, r*cosAz, cells) * (1 - height/syntheticEchoTopMeters)
				gates[g] = encodeGate(dbz)
			}

			sweep.Radials = append(sweep.Radials, domain.RadialRecord{
				Azimuth:        azimuth,
				AzimuthSpacing: 1,
				Elevation:      elev,
				GateCount:      syntheticGates,
				FirstGateRange: syntheticFirstGate,
				GateInterval:   syntheticGateInterval,
				WordSize:       domain.SupportedWordSize,
				Scale:          syntheticScale,
				Offset:         syntheticOffset,
				Gates:          gates,
			})
		}
		v.Sweeps = append(v.Sweeps, sweep)
	}
	return v
}

func cellReflectivity(x, y float64, cells []StormCell) float64 {
	best := 0.0
	for _, c := range cells {
		sinAz, cosAz := math.Sincos(c.Azimuth * math.Pi / 180)
		dx := x - c.Range*sinAz
		dy := y - c.Range*cosAz
		v := c.Peak * math.Exp(-(dx*dx+dy*dy)/(2*c.Radius*c.Radius))
		best = max(best, v)
	}
	return best
}

func encodeGate(dbz float64) uint16 {
	if dbz < 5 {
		return 0
	}
	raw := math.Round(dbz*syntheticScale + syntheticOffset)
	return uint16(min(raw, 255))
}
