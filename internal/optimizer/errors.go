package optimizer

import (
	"errors"
	"fmt"
)

// ErrCircuitOpen is returned when the circuit breaker rejects a price fetch.
var ErrCircuitOpen = errors.New("price source circuit breaker open")

// ErrInvalidRequest is returned when the optimization request is invalid.
type ErrInvalidRequest struct {
	Field  string
	Reason string
	Index  int // Offending basket line, -1 when not line-specific
}

func (e ErrInvalidRequest) Error() string {
	return e.Field + ": " + e.Reason
}

// ErrDataSource wraps a failed price source fetch. No candidates are
// produced when it is returned.
type ErrDataSource struct {
	Err error
}

func (e *ErrDataSource) Error() string {
	return fmt.Sprintf("price source: %v", e.Err)
}

func (e *ErrDataSource) Unwrap() error {
	return e.Err
}

// IsDataSourceError reports whether err came from the price source.
func IsDataSourceError(err error) bool {
	var dsErr *ErrDataSource
	return errors.As(err, &dsErr)
}
