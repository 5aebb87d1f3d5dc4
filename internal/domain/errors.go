package domain

import (
	"errors"
	"fmt"
)

// ErrInput is the parent of every caller-input failure. Use errors.Is(err, ErrInput)
// to distinguish bad requests from upstream or re-entrancy failures.
var ErrInput = errors.New("invalid input")

var (
	ErrNoCandidates         = fmt.Errorf("%w: no scan candidates", ErrInput)
	ErrMalformedIdentifier  = fmt.Errorf("%w: malformed scan identifier", ErrInput)
	ErrUnsupportedWordSize  = fmt.Errorf("%w: unsupported gate word size", ErrInput)
	ErrInvalidStride        = fmt.Errorf("%w: sampling stride must be at least 1", ErrInput)
	ErrInvalidClusterParams = fmt.Errorf("%w: invalid clustering parameters", ErrInput)
)
