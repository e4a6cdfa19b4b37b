package pricedb

import (
	"errors"
	"fmt"

	"github.com/etnz/pricedb/date"
)

var (
	// ErrMalformedRecord is returned when a line does not match the canonical rate record encoding.
	ErrMalformedRecord = errors.New("malformed rate record")
	// ErrInvalidRate is returned when building a rate from invalid fields.
	ErrInvalidRate = errors.New("invalid rate")
)

// MalformedRecordError locates a malformed line in a rate store.
//
// errors.Is(err, ErrMalformedRecord) holds for every MalformedRecordError.
type MalformedRecordError struct {
	Path string // store location
	Line int    // 1-based line number
	Text string // the offending line
	Err  error
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("%s:%d: %v", e.Path, e.Line, e.Err)
}

func (e *MalformedRecordError) Unwrap() error { return e.Err }

// Is makes every MalformedRecordError match ErrMalformedRecord, whatever the cause.
func (e *MalformedRecordError) Is(target error) bool { return target == ErrMalformedRecord }

// ProviderError reports a failure to fetch the rates of a date range: transport
// failure, non-2xx status or unexpected response shape.
type ProviderError struct {
	Range      date.Range
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("cannot fetch rates for %v: status %d: %v", e.Range, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("cannot fetch rates for %v: %v", e.Range, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }
