package cycle

import "strings"

// ErrorCode is one semantic defect of a cycle, represented as a bit in the
// cycle's error mask. Any set bit forces the cycle invalid regardless of
// statistical thresholds.
type ErrorCode uint16

const (
	ErrDiagInMeasurement ErrorCode = 1 << 0
	ErrLowR              ErrorCode = 1 << 1
	ErrFewUnique         ErrorCode = 1 << 2
	ErrTooManyPoints     ErrorCode = 1 << 3
	ErrTooFewPoints      ErrorCode = 1 << 4
	ErrManualInvalid     ErrorCode = 1 << 5
	ErrMostlyDiagErrors  ErrorCode = 1 << 6
	ErrBadOpenClose      ErrorCode = 1 << 7
)

// allErrorCodes lists every code for mask decomposition.
var allErrorCodes = []ErrorCode{
	ErrDiagInMeasurement,
	ErrLowR,
	ErrFewUnique,
	ErrTooManyPoints,
	ErrTooFewPoints,
	ErrManualInvalid,
	ErrMostlyDiagErrors,
	ErrBadOpenClose,
}

func (c ErrorCode) String() string {
	switch c {
	case ErrDiagInMeasurement:
		return "instrument diagnostic errors in measurement"
	case ErrLowR:
		return "low r value"
	case ErrFewUnique:
		return "too few unique values"
	case ErrTooManyPoints:
		return "too many values"
	case ErrTooFewPoints:
		return "too few values"
	case ErrManualInvalid:
		return "manual invalid"
	case ErrMostlyDiagErrors:
		return "too many instrument diagnostic errors"
	case ErrBadOpenClose:
		return "bad opening and/or closing of chamber"
	default:
		return "unknown error"
	}
}

// ErrorMask is a cycle's error bitmask. The zero value means no errors.
type ErrorMask uint16

// Contains reports whether the code's bit is set.
func (m ErrorMask) Contains(c ErrorCode) bool {
	return m&ErrorMask(c) != 0
}

// Add sets the code's bit.
func (m *ErrorMask) Add(c ErrorCode) {
	*m |= ErrorMask(c)
}

// Remove clears the code's bit.
func (m *ErrorMask) Remove(c ErrorCode) {
	*m &^= ErrorMask(c)
}

// Toggle flips the code's bit.
func (m *ErrorMask) Toggle(c ErrorCode) {
	*m ^= ErrorMask(c)
}

// Codes decomposes the mask into its set codes.
func (m ErrorMask) Codes() []ErrorCode {
	var codes []ErrorCode
	for _, c := range allErrorCodes {
		if m.Contains(c) {
			codes = append(codes, c)
		}
	}
	return codes
}

func (m ErrorMask) String() string {
	codes := m.Codes()
	if len(codes) == 0 {
		return "none"
	}
	parts := make([]string, len(codes))
	for i, c := range codes {
		parts[i] = c.String()
	}
	return strings.Join(parts, "; ")
}
