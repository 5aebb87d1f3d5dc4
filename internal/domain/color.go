package domain

// colorBin maps the half-open reflectivity range [lo, hi) to a color.
type colorBin struct {
	lo, hi float64
	color  RGB
}

var (
	// Black is used for values below 5 dBZ and for BelowThreshold gates.
	Black = RGB{0x00, 0x00, 0x00}
	// White is used for values at or above 70 dBZ.
	White = RGB{0xff, 0xff, 0xff}
)

// reflectivityBins is the NWS-style dBZ palette, 5 dBZ per bin from 5 to 70.
var reflectivityBins = [...]colorBin{
	{5, 10, RGB{0x40, 0xe8, 0xe3}},  // teal
	{10, 15, RGB{0x26, 0xa4, 0xfa}}, // blue
	{15, 20, RGB{0x00, 0x30, 0xed}}, // dark blue
	{20, 25, RGB{0x49, 0xfb, 0x3e}}, // green
	{25, 30, RGB{0x36, 0xc2, 0x2e}}, // medium green
	{30, 35, RGB{0x27, 0x8c, 0x1e}}, // dark green
	{35, 40, RGB{0xfe, 0xf5, 0x43}}, // yellow
	{40, 45, RGB{0xeb, 0xb4, 0x33}}, // amber
	{45, 50, RGB{0xf6, 0x95, 0x2e}}, // orange
	{50, 55, RGB{0xf8, 0x0a, 0x26}}, // red
	{55, 60, RGB{0xcb, 0x05, 0x16}}, // dark red
	{60, 65, RGB{0xa9, 0x08, 0x13}}, // maroon
	{65, 70, RGB{0xee, 0x34, 0xfa}}, // magenta
}

// ClassifyColor maps a scaled gate value to its palette color. It is total:
// NaN and anything not inside a bin falls through to white, except values
// below 5 and BelowThreshold which are black.
func ClassifyColor(v float64) RGB {
	if v < reflectivityBins[0].lo || v == BelowThreshold {
		return Black
	}
	for _, b := range reflectivityBins {
		if v >= b.lo && v < b.hi {
			return b.color
		}
	}
	return White
}

// ClassifyPoints sets the raw color of every point from its strength.
func ClassifyPoints(points []ColoredPoint) {
	for i := range points {
		points[i].Raw = ClassifyColor(points[i].Strength)
	}
}
