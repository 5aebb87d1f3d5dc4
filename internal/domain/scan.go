package domain

import (
	"fmt"
	"strings"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

// ScanIdentifier names one volume scan file, e.g. "KDMX20230406_000215_V06".
type ScanIdentifier string

// Time extracts the capture time of day from the second "_"-separated field.
func (id ScanIdentifier) Time() (TimeOfDay, error) {
	parts := strings.Split(string(id), "_")
	if len(parts) < 2 {
		return 0, fmt.Errorf("%w: %q has no time field", ErrMalformedIdentifier, id)
	}
	return ParseTimeOfDay(parts[1])
}

// Site returns the four-letter radar site prefix.
func (id ScanIdentifier) Site() (string, error) {
	if len(id) < 12 {
		return "", fmt.Errorf("%w: %q is too short", ErrMalformedIdentifier, id)
	}
	return string(id[:4]), nil
}

// Date returns the UTC capture date encoded after the site prefix.
func (id ScanIdentifier) Date() (time.Time, error) {
	if len(id) < 12 {
		return time.Time{}, fmt.Errorf("%w: %q is too short", ErrMalformedIdentifier, id)
	}
	d, err := time.Parse("20060102", string(id[4:12]))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %v", ErrMalformedIdentifier, id, err)
	}
	return d, nil
}

// TimeOfDay is an offset from midnight UTC in [0, 24h).
type TimeOfDay time.Duration

// ParseTimeOfDay parses an "HHMMSS" token.
func ParseTimeOfDay(hhmmss string) (TimeOfDay, error) {
	t, err := time.Parse("150405", hhmmss)
	if err != nil || len(hhmmss) != 6 {
		return 0, fmt.Errorf("%w: time token %q", ErrMalformedIdentifier, hhmmss)
	}
	return NewTimeOfDay(t.Hour(), t.Minute(), t.Second()), nil
}

// NewTimeOfDay builds a TimeOfDay from clock components.
func NewTimeOfDay(hour, minute, second int) TimeOfDay {
	return TimeOfDay(time.Duration(hour)*time.Hour +
		time.Duration(minute)*time.Minute +
		time.Duration(second)*time.Second)
}

// TimeOfDayOf returns the time of day of t in UTC.
func TimeOfDayOf(t time.Time) TimeOfDay {
	t = t.UTC()
	return NewTimeOfDay(t.Hour(), t.Minute(), t.Second())
}

func (t TimeOfDay) String() string {
	d := time.Duration(t)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// RadialRecord is one beam of reflectivity gates at a fixed azimuth.
type RadialRecord struct {
	Azimuth        float64 // degrees clockwise from north
	AzimuthSpacing float64 // degrees
	Elevation      float64 // degrees

	GateCount      int
	FirstGateRange float64 // meters
	GateInterval   float64 // meters
	WordSize       uint8
	Scale          float32
	Offset         float32
	Gates          []uint16
}

// ElevationSweep holds all radials captured at one elevation cut.
type ElevationSweep struct {
	Number    int
	Elevation float64 // degrees
	Radials   []RadialRecord
}

// VolumeScan is a decoded volume: one sweep per elevation cut, in file order.
type VolumeScan struct {
	Site       string
	CapturedAt time.Time
	Sweeps     []ElevationSweep
}

// RadialCount returns the number of radials across all sweeps.
func (v *VolumeScan) RadialCount() int {
	n := 0
	for _, s := range v.Sweeps {
		n += len(s.Radials)
	}
	return n
}

// RGB is an 8-bit color triple.
type RGB struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// ColorMode selects which color of a ColoredPoint is presented.
type ColorMode string

const (
	ColorModeRaw     ColorMode = "raw"
	ColorModeCluster ColorMode = "cluster"
)

// ParseColorMode maps a query value onto a ColorMode, defaulting to raw.
func ParseColorMode(s string) (ColorMode, error) {
	switch ColorMode(s) {
	case "", ColorModeRaw:
		return ColorModeRaw, nil
	case ColorModeCluster:
		return ColorModeCluster, nil
	default:
		return "", fmt.Errorf("%w: unknown color mode %q", ErrInput, s)
	}
}

// ColoredPoint is a projected gate with its classification colors.
type ColoredPoint struct {
	Pos      r3.Vec
	Strength float64
	Raw      RGB
	Cluster  RGB
}

// Color returns the point color for the given mode.
func (p ColoredPoint) Color(mode ColorMode) RGB {
	if mode == ColorModeCluster {
		return p.Cluster
	}
	return p.Raw
}
