package domain

import "fmt"

// Decimate keeps every stride-th element starting at index 0, preserving order.
func Decimate[T any](in []T, stride int) ([]T, error) {
	if stride < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidStride, stride)
	}
	out := make([]T, 0, (len(in)+stride-1)/stride)
	for i := 0; i < len(in); i += stride {
		out = append(out, in[i])
	}
	return out, nil
}
