package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the deck engine and its collaborators. Callers
// match them with errors.Is.
var (
	ErrCategoryNotFound = errors.New("category not found")
	ErrCategoryExists   = errors.New("category already exists")
	ErrRankOutOfRange   = errors.New("category rank out of range")
	ErrSameRank         = errors.New("category already holds that rank")
	ErrIndexOutOfRange  = errors.New("index out of range")
	ErrCardNotFound     = errors.New("card not found")
	ErrPoolExhausted    = errors.New("no cards left to draw")
	ErrSnapshotNotFound = errors.New("snapshot not found")
	ErrInvalidQuantity  = errors.New("quantity must be positive")
)

// CategoryError adds the failing operation and category name to a sentinel.
type CategoryError struct {
	Op   string
	Name string
	Err  error
}

func (e *CategoryError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Name, e.Err)
}

func (e *CategoryError) Unwrap() error { return e.Err }

// CardError adds the failing operation and card key to a sentinel.
type CardError struct {
	Op  string
	Key string
	Err error
}

func (e *CardError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Key, e.Err)
}

func (e *CardError) Unwrap() error { return e.Err }
