package hashtable

import "fmt"

// errorType is a plain string constant that satisfies the error interface,
// used for sentinel errors callers can compare with errors.Is.
type errorType string

func (e errorType) Error() string { return string(e) }

// ErrNotFound is returned by Lookup, Delete, Incref, Decref, and
// Iterator(marker) when the targeted key is absent.
const ErrNotFound = errorType("hashtable: key not found")

// ErrInvariantViolation is returned by Decref of an already-zero refcount;
// it indicates a programmer error in the caller, not a corrupt table.
const ErrInvariantViolation = errorType("hashtable: invariant violation")

// ErrFormatError is returned when an on-disk header fails to parse: bad
// magic, unsupported key/value sizes, or a short read.
const ErrFormatError = errorType("hashtable: format error")

// ErrClosed names the state of a Table whose backing mmap has been closed.
// No Table method returns it: OpenMMAP copies the bucket array out of the
// mapping, so a Table keeps working after Close.
const ErrClosed = errorType("hashtable: table is closed")

// RangeError is returned when a direct value assignment's first word would
// exceed MaxValue, or when Add is given a negative refcount delta. It
// carries the offending value so callers can report it without re-deriving
// it.
type RangeError struct {
	Field string
	Got   int64
	Max   uint32
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("hashtable: %s %d out of range (max %d)", e.Field, e.Got, e.Max)
}
