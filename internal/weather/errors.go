package weather

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failures the pipeline detects itself.
var (
	ErrBlankCity    = errors.New("city name is blank")
	ErrNoCandidates = errors.New("geocoder returned no candidates")
	ErrMissingField = errors.New("missing field")
	ErrWrongType    = errors.New("unexpected field type")
)

// Kind is a coarse-grained classification of a lookup failure.
type Kind string

const (
	KindInvalidInput Kind = "invalid_input"
	KindNotFound     Kind = "not_found"
	KindUpstream     Kind = "upstream"
	KindCanceled     Kind = "canceled"
	KindMalformed    Kind = "malformed"
)

// Error wraps a lookup failure with the operation that produced it.
type Error struct {
	Op   string
	Kind Kind
	City string // optional
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}

	base := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.City != "" {
		base += fmt.Sprintf(" (city=%q)", e.City)
	}
	if e.Err != nil {
		base += fmt.Sprintf(": %v", e.Err)
	}
	return base
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// KindOf returns the kind of the outermost *Error in err's chain, or
// KindUpstream for errors that carry no classification.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUpstream
}

// IsKind reports whether err is classified as kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
