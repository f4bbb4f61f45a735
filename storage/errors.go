package storage

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidArgument indicates a nil, zero-length or out-of-range input,
	// rejected before any state was touched.
	ErrInvalidArgument = errors.New("storage: invalid argument")

	// ErrNoFreeIdentifier indicates all 256 segment identifiers are active.
	ErrNoFreeIdentifier = errors.New("storage: no free identifier")

	// ErrPlacementInvalid indicates the requested range overlaps another
	// segment or leaves the region.
	ErrPlacementInvalid = errors.New("storage: placement invalid")

	// ErrSegmentInactive indicates the handle does not refer to a live segment.
	ErrSegmentInactive = errors.New("storage: segment inactive")

	// ErrCapacityExceeded indicates an import past the remaining space or an
	// export past the bytes written so far.
	ErrCapacityExceeded = errors.New("storage: capacity exceeded")

	// ErrMediumFailure indicates the flash device reported an error.
	ErrMediumFailure = errors.New("storage: medium failure")

	// ErrCorrupt indicates a segment's header byte no longer matches its id.
	ErrCorrupt = errors.New("storage: segment header corrupt")

	// ErrMigrationFailed indicates the backup sink refused a segment's data
	// during reclaim.
	ErrMigrationFailed = errors.New("storage: migration failed")
)

// noID marks errors raised before an identifier was known.
const noID = -1

// Error describes a failed store operation. Kind is one of the sentinel
// errors above; Err, when set, carries the underlying cause.
type Error struct {
	Op   string
	ID   int
	Kind error
	Err  error
}

func newError(op string, id int, kind, cause error) *Error {
	return &Error{Op: op, ID: id, Kind: kind, Err: cause}
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("storage: ")
	b.WriteString(e.Op)
	if e.ID >= 0 {
		fmt.Fprintf(&b, " segment %d", e.ID)
	}
	b.WriteString(": ")
	b.WriteString(strings.TrimPrefix(e.Kind.Error(), "storage: "))
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Status is the tri-state outcome reported to supervisory code.
type Status uint8

const (
	// StatusOK means the operation completed.
	StatusOK Status = iota
	// StatusError means a precondition failed; nothing was changed.
	StatusError
	// StatusFailed means the medium or the backup sink failed.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusError:
		return "error"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Result classifies err for callers that only branch on the tri-state.
func Result(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, ErrMediumFailure),
		errors.Is(err, ErrCorrupt),
		errors.Is(err, ErrMigrationFailed):
		return StatusFailed
	default:
		return StatusError
	}
}
