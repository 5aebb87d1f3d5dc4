package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyColor_Boundaries(t *testing.T) {
	teal := RGB{0x40, 0xe8, 0xe3}
	blue := RGB{0x26, 0xa4, 0xfa}
	magenta := RGB{0xee, 0x34, 0xfa}

	tests := []struct {
		name string
		v    float64
		want RGB
	}{
		{"negative", -32, Black},
		{"zero", 0, Black},
		{"just below first bin", 4.999, Black},
		{"first bin start", 5.0, teal},
		{"first bin end", 9.999, teal},
		{"second bin start", 10, blue},
		{"yellow", 37.5, RGB{0xfe, 0xf5, 0x43}},
		{"red", 52, RGB{0xf8, 0x0a, 0x26}},
		{"last named bin", 69.999, magenta},
		{"white threshold", 70.0, White},
		{"extreme", 94.5, White},
		{"below threshold sentinel", BelowThreshold, Black},
		{"folded sentinel", MomentFolded, White},
		{"positive infinity", math.Inf(1), White},
		{"negative infinity", math.Inf(-1), Black},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyColor(tt.v))
		})
	}
}

func TestReflectivityBins_Contiguous(t *testing.T) {
	assert.Equal(t, 5.0, reflectivityBins[0].lo)
	assert.Equal(t, 70.0, reflectivityBins[len(reflectivityBins)-1].hi)
	for i := 1; i < len(reflectivityBins); i++ {
		assert.Equal(t, reflectivityBins[i-1].hi, reflectivityBins[i].lo, "gap before bin %d", i)
		assert.Equal(t, 5.0, reflectivityBins[i].hi-reflectivityBins[i].lo)
	}
}

func TestClassifyColor_ExactlyOneBin(t *testing.T) {
	for v := -10.0; v <= 80; v += 0.25 {
		matches := 0
		for _, b := range reflectivityBins {
			if v >= b.lo && v < b.hi {
				matches++
			}
		}
		if v < 5 || v >= 70 {
			assert.Zero(t, matches, "v=%v", v)
		} else {
			assert.Equal(t, 1, matches, "v=%v", v)
		}
	}
}

func TestClassifyPoints(t *testing.T) {
	points := []ColoredPoint{{Strength: 2.5}, {Strength: 12}, {Strength: 71}}
	ClassifyPoints(points)

	assert.Equal(t, Black, points[0].Raw)
	assert.Equal(t, RGB{0x26, 0xa4, 0xfa}, points[1].Raw)
	assert.Equal(t, White, points[2].Raw)
	assert.Equal(t, RGB{}, points[1].Cluster, "cluster color untouched")
}
