package domain

import "math"

// UnclusteredColor marks noise points in the cluster color mode. ClusterHue
// only produces fully saturated colors, so white never collides with a cluster.
var UnclusteredColor = White

// goldenRatioConjugate spreads successive hues evenly around the wheel.
var goldenRatioConjugate = (math.Sqrt(5) - 1) / 2

// ClusterHue returns the debug color for the i-th cluster of a run.
func ClusterHue(i int) RGB {
	h := math.Mod(float64(i)*goldenRatioConjugate, 1)
	return hslToRGB(h*360, 1, 0.5)
}

// Recolor sets each point's Cluster color from its assignment. assignments
// must be aligned with points.
func Recolor(points []ColoredPoint, assignments []Assignment) {
	for i := range points {
		a := assignments[i]
		if a.Noise() {
			points[i].Cluster = UnclusteredColor
			continue
		}
		points[i].Cluster = ClusterHue(a.Cluster)
	}
}

// hslToRGB converts hue in degrees, saturation and lightness in [0, 1].
func hslToRGB(h, s, l float64) RGB {
	c := (1 - math.Abs(2*l-1)) * s
	hp := h / 60
	x := c * (1 - math.Abs(math.Mod(hp, 2)-1))

	var r, g, b float64
	switch {
	case hp < 1:
		r, g = c, x
	case hp < 2:
		r, g = x, c
	case hp < 3:
		g, b = c, x
	case hp < 4:
		g, b = x, c
	case hp < 5:
		r, b = x, c
	default:
		r, b = c, x
	}

	m := l - c/2
	return RGB{
		R: uint8(math.Round((r + m) * 255)),
		G: uint8(math.Round((g + m) * 255)),
		B: uint8(math.Round((b + m) * 255)),
	}
}
