package storage

import (
	"cmp"
	"slices"
)

// layout keeps the registered segments ordered by (address, id). Inserts and
// removals are binary searches, so neighbor lookups never need a re-sort.
type layout struct {
	entries []*Segment
}

func compareSegments(a, b *Segment) int {
	if c := cmp.Compare(a.address, b.address); c != 0 {
		return c
	}
	return cmp.Compare(a.id, b.id)
}

// insert places seg in order and returns its index.
func (l *layout) insert(seg *Segment) int {
	i, _ := slices.BinarySearchFunc(l.entries, seg, compareSegments)
	l.entries = slices.Insert(l.entries, i, seg)
	return i
}

// index returns the position of seg, or -1.
func (l *layout) index(seg *Segment) int {
	i, found := slices.BinarySearchFunc(l.entries, seg, compareSegments)
	if !found || l.entries[i] != seg {
		return -1
	}
	return i
}

// remove drops seg from the layout. It reports whether seg was present.
func (l *layout) remove(seg *Segment) bool {
	i := l.index(seg)
	if i < 0 {
		return false
	}
	l.entries = slices.Delete(l.entries, i, i+1)
	return true
}

// around returns the entries on either side of index i.
func (l *layout) around(i int) (prev, next *Segment) {
	if i > 0 {
		prev = l.entries[i-1]
	}
	if i+1 < len(l.entries) {
		next = l.entries[i+1]
	}
	return prev, next
}

// neighbors returns the last segment starting at or before addr and the
// first segment starting after it.
func (l *layout) neighbors(addr uint32) (prev, next *Segment) {
	i, _ := slices.BinarySearchFunc(l.entries, addr, func(s *Segment, a uint32) int {
		if s.address <= a {
			return -1
		}
		return 1
	})
	if i > 0 {
		prev = l.entries[i-1]
	}
	if i < len(l.entries) {
		next = l.entries[i]
	}
	return prev, next
}

func (l *layout) len() int { return len(l.entries) }

func (l *layout) reset() { l.entries = l.entries[:0] }
