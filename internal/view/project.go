// Package view derives what each screen shows from the shared store and the
// status of the screen's own operations.
package view

import (
	"fmt"

	"github.com/five82/tabby/internal/breed"
	"github.com/five82/tabby/internal/coord"
	"github.com/five82/tabby/internal/state"
)

// ErrorKind says which screen operation failed.
type ErrorKind int

const (
	ListUpdateFailed ErrorKind = iota + 1
	DetailUpdateFailed
)

func (k ErrorKind) String() string {
	switch k {
	case ListUpdateFailed:
		return "list update failed"
	case DetailUpdateFailed:
		return "detail update failed"
	default:
		return "unknown error"
	}
}

// Error is the failure shown on a screen.
type Error struct {
	Kind  ErrorKind
	Cause error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// ListState is one immutable frame of the list screen.
type ListState struct {
	Fetching bool
	Query    string
	Items    []breed.Breed
	Error    *Error
}

// DetailState is one immutable frame of a detail screen. Breed is nil until a
// record for ID is cached.
type DetailState struct {
	ID       string
	Fetching bool
	Breed    *breed.Breed
	Image    breed.Image
	Error    *Error
}

// HasImage reports whether the reference image is attached.
func (d DetailState) HasImage() bool { return !d.Image.IsZero() }

// ProjectList computes the list frame: the breeds of collection whose name
// contains query, plus the loading flag and error of status. The result does
// not share memory with collection.
func ProjectList(collection []breed.Breed, query string, status coord.Status) ListState {
	items := make([]breed.Breed, 0, len(collection))
	for _, b := range collection {
		if b.MatchesName(query) {
			items = append(items, b)
		}
	}
	st := ListState{
		Fetching: status.Loading(),
		Query:    query,
		Items:    items,
	}
	if status.Err != nil {
		st.Error = &Error{Kind: ListUpdateFailed, Cause: status.Err}
	}
	return st
}

// ProjectDetail computes the detail frame for id from its cached record
// (nil when absent) and status.
func ProjectDetail(id string, rec *state.Detail, status coord.Status) DetailState {
	st := DetailState{
		ID:       id,
		Fetching: status.Loading(),
	}
	if rec != nil {
		b := rec.Breed
		st.Breed = &b
		st.Image = rec.Image
	}
	if status.Err != nil {
		st.Error = &Error{Kind: DetailUpdateFailed, Cause: status.Err}
	}
	return st
}
