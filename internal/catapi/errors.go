package catapi

import (
	"errors"
	"fmt"
)

// ErrNotFound matches TransportErrors of KindNotFound via errors.Is.
var ErrNotFound = errors.New("not found")

// ErrorKind classifies a TransportError.
type ErrorKind int

const (
	KindNetwork  ErrorKind = iota // request could not be sent or the response not read
	KindStatus                    // non-2xx response other than 404
	KindDecode                    // body was not the expected JSON
	KindNotFound                  // 404, or an empty record for a lookup by id
)

// String returns the label used in logs and metrics.
func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindStatus:
		return "status"
	case KindDecode:
		return "decode"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// TransportError is the single failure type returned by Client calls.
type TransportError struct {
	Op         string // logical call, e.g. "fetch breed pers"
	Kind       ErrorKind
	StatusCode int // zero unless an HTTP response was received
	Err        error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying cause.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrNotFound) match not-found failures.
func (e *TransportError) Is(target error) bool {
	return target == ErrNotFound && e.Kind == KindNotFound
}

// Outcome returns the metrics label for err: "ok" for nil, the error kind for
// a TransportError and "error" otherwise.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	var te *TransportError
	if errors.As(err, &te) {
		return te.Kind.String()
	}
	return "error"
}
