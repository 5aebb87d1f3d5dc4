package domain

import "fmt"

// Sentinel gate values. Compare with ==, never by range.
const (
	BelowThreshold = 999.0
	MomentFolded   = 998.0
)

// SupportedWordSize is the only gate width, in bits, the scaler accepts.
const SupportedWordSize = 8

// ScaleGate converts one raw gate into physical units.
func ScaleGate(raw uint16, scale, offset float32) float64 {
	switch raw {
	case 0:
		return BelowThreshold
	case 1:
		return MomentFolded
	}
	if scale == 0 {
		return float64(raw)
	}
	return (float64(raw) - float64(offset)) / float64(scale)
}

// ScaleGates scales a radial's gate buffer. The output has the same length as raw.
func ScaleGates(raw []uint16, wordSize uint8, scale, offset float32) ([]float64, error) {
	if wordSize != SupportedWordSize {
		return nil, fmt.Errorf("%w: %d bits", ErrUnsupportedWordSize, wordSize)
	}
	scaled := make([]float64, len(raw))
	for i, g := range raw {
		scaled[i] = ScaleGate(g, scale, offset)
	}
	return scaled, nil
}

// IsSentinel reports whether v is one of the non-physical gate codes.
func IsSentinel(v float64) bool {
	return v == BelowThreshold || v == MomentFolded
}
