// Package dirty tracks modified byte ranges of a memory-mapped flash image
// and flushes them to disk.
//
// Ranges are page-aligned and coalesced at flush time, then written back with
// msync (per range on Linux/FreeBSD, whole mapping on Darwin).
package dirty

import (
	"context"
	"sort"
)

const (
	// defaultRangeCapacity is the pre-allocated capacity for dirty ranges.
	defaultRangeCapacity = 64

	// standardPageSize is the typical OS page size (4KB).
	standardPageSize = 4096
)

// Source exposes the mapped bytes a Tracker flushes.
type Source interface {
	Bytes() []byte
}

// Range represents a dirty byte range (offsets into the mapping).
type Range struct {
	Off int64
	Len int64
}

// Tracker accumulates dirty ranges and flushes them efficiently.
//
// NOT thread-safe. The owning device serializes access.
type Tracker struct {
	src      Source
	ranges   []Range
	pageSize int64
}

// NewTracker creates a dirty tracker for the given mapping.
func NewTracker(src Source) *Tracker {
	return &Tracker{
		src:      src,
		ranges:   make([]Range, 0, defaultRangeCapacity),
		pageSize: standardPageSize,
	}
}

// Add records a dirty range. Zero or negative lengths are ignored.
func (t *Tracker) Add(off, length int) {
	if length <= 0 || off < 0 {
		return
	}
	t.ranges = append(t.ranges, Range{
		Off: int64(off),
		Len: int64(length),
	})
}

// Len returns the number of recorded (uncoalesced) ranges.
func (t *Tracker) Len() int {
	return len(t.ranges)
}

// Ranges returns the page-aligned, coalesced view of the recorded ranges.
func (t *Tracker) Ranges() []Range {
	return t.coalesce()
}

// Reset drops all recorded ranges without flushing.
func (t *Tracker) Reset() {
	t.ranges = t.ranges[:0]
}

// Flush writes every dirty page back to the backing file.
//
// An empty tracker returns nil before the context is consulted. If the
// context is cancelled mid-flush some ranges may already be on disk; the
// tracker keeps all ranges so the next Flush retries them.
func (t *Tracker) Flush(ctx context.Context) error {
	if len(t.ranges) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data := t.src.Bytes()
	if len(data) == 0 {
		t.Reset()
		return nil
	}

	if err := t.flushRanges(ctx, data); err != nil {
		return err
	}

	t.Reset()
	return nil
}

// coalesce page-aligns all ranges, sorts them, and merges overlapping or
// adjacent ones.
func (t *Tracker) coalesce() []Range {
	if len(t.ranges) == 0 {
		return nil
	}

	aligned := make([]Range, len(t.ranges))
	for i, r := range t.ranges {
		start := (r.Off / t.pageSize) * t.pageSize
		end := r.Off + r.Len
		if end%t.pageSize != 0 {
			end = ((end / t.pageSize) + 1) * t.pageSize
		}
		aligned[i] = Range{Off: start, Len: end - start}
	}

	sort.Slice(aligned, func(i, j int) bool {
		return aligned[i].Off < aligned[j].Off
	})

	merged := make([]Range, 0, len(aligned))
	current := aligned[0]
	for _, next := range aligned[1:] {
		if next.Off <= current.Off+current.Len {
			end := max(current.Off+current.Len, next.Off+next.Len)
			current.Len = end - current.Off
			continue
		}
		merged = append(merged, current)
		current = next
	}
	return append(merged, current)
}
