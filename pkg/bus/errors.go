package bus

import (
	"errors"
	"fmt"
	"time"
)

// ErrKeyNotFound is returned by Store.Get when a table has no entry for the key.
var ErrKeyNotFound = errors.New("key not found")

// ErrContention is returned when a compare-and-swap loop keeps losing races.
var ErrContention = errors.New("too many concurrent updates")

// ValidationError rejects malformed input before anything is written.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// LockHeldError is returned when another worker holds a live lock on the resource.
type LockHeldError struct {
	Resource  string
	Holder    string
	ExpiresAt time.Time
}

func (e *LockHeldError) Error() string {
	return fmt.Sprintf("resource %q is locked by %s until %s",
		e.Resource, e.Holder, e.ExpiresAt.UTC().Format(time.RFC3339))
}

// NotHolderError is returned when a worker releases or renews a lock it does not hold.
// Holder is empty when no lock exists.
type NotHolderError struct {
	Resource string
	Worker   string
	Holder   string
}

func (e *NotHolderError) Error() string {
	if e.Holder == "" {
		return fmt.Sprintf("%s does not hold resource %q: no lock exists", e.Worker, e.Resource)
	}
	return fmt.Sprintf("%s does not hold resource %q: held by %s", e.Worker, e.Resource, e.Holder)
}

// NotFoundError is returned when a track or one of its stores does not exist.
type NotFoundError struct {
	What string
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found at %s", e.What, e.Path)
}

// CorruptEntryError reports a persisted entry that could not be decoded.
// Reads return these alongside the healthy entries rather than failing outright.
type CorruptEntryError struct {
	Source string // stream or table name
	Key    string // table key, empty for streams
	Line   int    // 1-based position in a stream, 0 for tables
	Err    error
}

func (e *CorruptEntryError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("corrupt entry %q in %s: %v", e.Key, e.Source, e.Err)
	}
	return fmt.Sprintf("corrupt entry at line %d of %s: %v", e.Line, e.Source, e.Err)
}

func (e *CorruptEntryError) Unwrap() error { return e.Err }

// IsValidation returns true if err is (or wraps) a *ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsLockHeld returns true if err is (or wraps) a *LockHeldError.
func IsLockHeld(err error) bool {
	var target *LockHeldError
	return errors.As(err, &target)
}

// IsNotHolder returns true if err is (or wraps) a *NotHolderError.
func IsNotHolder(err error) bool {
	var target *NotHolderError
	return errors.As(err, &target)
}

// IsNotFound returns true if err is (or wraps) a *NotFoundError or ErrKeyNotFound.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target) || errors.Is(err, ErrKeyNotFound)
}

// IsCorrupt returns true if err is (or wraps) a *CorruptEntryError.
func IsCorrupt(err error) bool {
	var target *CorruptEntryError
	return errors.As(err, &target)
}
