package storage

import "fmt"

const (
	// HeaderSize is the number of bytes at the start of every segment that
	// hold its identifier.
	HeaderSize = 1

	// MaxSegments is the size of the identifier space.
	MaxSegments = 256
)

// Segment is a handle to an allocated byte range.
//
// The fields are owned by the Store that returned the handle and only change
// inside Store operations. The accessors read them without locking; use
// Store.State when another goroutine may be importing or releasing. Once released the handle is stale for good:
// operations on it fail with ErrSegmentInactive even if its identifier has
// been handed out again.
type Segment struct {
	id        uint8
	address   uint32
	size      uint32
	spaceLeft uint32

	// migrated is how many written bytes the backup sink already holds.
	migrated uint32
}

// ID returns the segment identifier, also stored as its header byte.
func (s *Segment) ID() uint8 { return s.id }

// Address returns the absolute start address, header included.
func (s *Segment) Address() uint32 { return s.address }

// Size returns the reserved size in bytes, header included.
func (s *Segment) Size() uint32 { return s.size }

// SpaceLeft returns how many more bytes can be imported.
func (s *Segment) SpaceLeft() uint32 { return s.spaceLeft }

// Written returns how many payload bytes have been imported.
func (s *Segment) Written() uint32 {
	if s.size == 0 {
		return 0
	}
	return s.size - HeaderSize - s.spaceLeft
}

func (s *Segment) state() SegmentState {
	return SegmentState{ID: s.id, Address: s.address, Size: s.size, SpaceLeft: s.spaceLeft}
}

// end is the first address past the segment. Placement validation
// guarantees it does not overflow for registered segments.
func (s *Segment) end() uint32 { return s.address + s.size }

// cursor is the next address Import writes to.
func (s *Segment) cursor() uint32 { return s.address + (s.size - s.spaceLeft) }

func (s *Segment) String() string {
	return fmt.Sprintf("segment %d @0x%08X size=%d left=%d", s.id, s.address, s.size, s.spaceLeft)
}
