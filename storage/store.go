package storage

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/NgocKhanh0912/pulse-oximetry/flash"
	"github.com/NgocKhanh0912/pulse-oximetry/internal/buf"
)

var errNilSegment = errors.New("nil segment")

// Sink receives a segment's payload before the segment is erased.
//
// backup.Log is the production implementation.
type Sink interface {
	Stash(id uint8, payload []byte) error
}

// payloadLimiter is implemented by sinks that cap the size of one stash.
// Allocate refuses segments whose payload could never be migrated.
type payloadLimiter interface {
	MaxPayload() uint32
}

// Option configures a Store.
type Option func(*Store)

// WithLogger routes store events to l.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithBackup makes Reclaim and Release migrate written payload to sink
// before erasing the segment.
func WithBackup(sink Sink) Option {
	return func(s *Store) {
		s.backup = sink
	}
}

// Store allocates segments inside one erase region of a flash device and
// serializes every access to them.
//
// All exported Store methods are safe for concurrent use; each runs as a
// single critical section over the registry and the device. The Segment
// accessors are not: while other goroutines may operate on a segment, read
// it through State.
type Store struct {
	mu     sync.Mutex
	dev    flash.Device
	region flash.Region
	slots  [MaxSegments]*Segment
	layout layout
	backup Sink
	log    *slog.Logger
}

// New creates an empty store managing region on dev.
func New(dev flash.Device, region flash.Region, opts ...Option) (*Store, error) {
	if dev == nil {
		return nil, fmt.Errorf("storage: nil device")
	}
	if !region.Valid() {
		return nil, fmt.Errorf("storage: invalid region %s", region)
	}
	if !dev.Bounds().Covers(region) {
		return nil, fmt.Errorf("storage: region %s outside device %s", region, dev.Bounds())
	}
	s := &Store{
		dev:    dev,
		region: region,
		log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Region returns the managed erase region.
func (s *Store) Region() flash.Region { return s.region }

// Allocate reserves size bytes at start and writes the identifier header.
//
// The lowest inactive identifier is assigned. size must be positive and
// smaller than the region. The range must not overlap any active segment
// and must lie inside the region; a rejected request leaves the store
// exactly as it was.
func (s *Store) Allocate(start, size uint32) (*Segment, error) {
	const op = "allocate"
	if size == 0 || size >= s.region.Size {
		return nil, newError(op, noID, ErrInvalidArgument,
			fmt.Errorf("size %d not in (0, %d)", size, s.region.Size))
	}

	if err := s.checkPayloadLimit(size); err != nil {
		return nil, newError(op, noID, ErrInvalidArgument, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.nextID()
	if !ok {
		return nil, newError(op, noID, ErrNoFreeIdentifier, nil)
	}

	seg := &Segment{id: id, address: start, size: size}
	idx := s.layout.insert(seg)
	if err := s.checkPlacement(idx); err != nil {
		s.layout.remove(seg)
		s.log.Debug("allocation rejected",
			"id", id, "address", start, "size", size, "reason", err)
		return nil, newError(op, int(id), ErrPlacementInvalid, err)
	}

	header := [HeaderSize]byte{id}
	if err := s.dev.Write(start, header[:]); err != nil {
		s.layout.remove(seg)
		s.log.Warn("header write failed", "id", id, "address", start, "err", err)
		return nil, newError(op, int(id), ErrMediumFailure, err)
	}

	seg.spaceLeft = size - HeaderSize
	s.slots[id] = seg
	s.log.Info("segment allocated", "id", id, "address", start, "size", size)
	return seg, nil
}

// Import appends data at the segment's write cursor. The cursor only moves
// when the device write succeeds.
func (s *Store) Import(seg *Segment, data []byte) error {
	const op = "import"
	if seg == nil {
		return newError(op, noID, ErrInvalidArgument, errNilSegment)
	}
	if len(data) == 0 {
		return newError(op, int(seg.id), ErrInvalidArgument, errors.New("zero length"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active(seg) {
		return newError(op, int(seg.id), ErrSegmentInactive, nil)
	}
	if uint64(len(data)) > uint64(seg.spaceLeft) {
		return newError(op, int(seg.id), ErrCapacityExceeded,
			fmt.Errorf("length %d > space left %d", len(data), seg.spaceLeft))
	}

	if err := s.dev.Write(seg.cursor(), data); err != nil {
		s.log.Warn("import write failed", "id", seg.id, "address", seg.cursor(), "err", err)
		return newError(op, int(seg.id), ErrMediumFailure, err)
	}
	seg.spaceLeft -= uint32(len(data))
	return nil
}

// Export fills out with the first len(out) payload bytes of the segment.
// It cannot read past what has been imported and does not move the cursor.
func (s *Store) Export(seg *Segment, out []byte) error {
	const op = "export"
	if seg == nil {
		return newError(op, noID, ErrInvalidArgument, errNilSegment)
	}
	if len(out) == 0 {
		return newError(op, int(seg.id), ErrInvalidArgument, errors.New("zero length"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active(seg) {
		return newError(op, int(seg.id), ErrSegmentInactive, nil)
	}
	if uint64(len(out)) > uint64(seg.Written()) {
		return newError(op, int(seg.id), ErrCapacityExceeded,
			fmt.Errorf("length %d > written %d", len(out), seg.Written()))
	}

	payload, f := s.readPayload(seg, uint32(len(out)))
	if f != nil {
		return newError(op, int(seg.id), f.kind, f.err)
	}
	copy(out, payload)
	return nil
}

// Reclaim fully cleans an active segment: written payload is migrated to the
// backup sink (if any), the range is erased (if the device can erase), the
// header is rewritten and the cursor rewinds to the start.
//
// A migration failure aborts before anything is erased.
func (s *Store) Reclaim(seg *Segment) error {
	const op = "reclaim"
	if seg == nil {
		return newError(op, noID, ErrInvalidArgument, errNilSegment)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active(seg) {
		return newError(op, int(seg.id), ErrSegmentInactive, nil)
	}
	erased, f := s.reclaim(seg)
	if f != nil {
		return newError(op, int(seg.id), f.kind, f.err)
	}
	if !erased {
		return nil
	}

	header := [HeaderSize]byte{seg.id}
	seg.spaceLeft = seg.size - HeaderSize
	seg.migrated = 0
	if err := s.dev.Write(seg.address, header[:]); err != nil {
		s.log.Warn("header rewrite failed", "id", seg.id, "address", seg.address, "err", err)
		return newError(op, int(seg.id), ErrMediumFailure, err)
	}
	return nil
}

// Release reclaims the segment and frees its identifier. If reclaim fails
// the segment stays active and nothing else changes.
//
// Without a backup sink release is destructive: export anything still
// needed first.
func (s *Store) Release(seg *Segment) error {
	const op = "release"
	if seg == nil {
		return newError(op, noID, ErrInvalidArgument, errNilSegment)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active(seg) {
		return newError(op, int(seg.id), ErrSegmentInactive, nil)
	}
	if _, f := s.reclaim(seg); f != nil {
		return newError(op, int(seg.id), f.kind, f.err)
	}

	s.layout.remove(seg)
	s.slots[seg.id] = nil
	s.log.Info("segment released", "id", seg.id, "address", seg.address, "written", seg.Written())
	seg.address, seg.size, seg.spaceLeft = 0, 0, 0
	return nil
}

// Lookup returns the active segment with the given identifier.
func (s *Store) Lookup(id uint8) (*Segment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seg := s.slots[id]
	return seg, seg != nil
}

// Segments returns the active segments in address order.
func (s *Store) Segments() []*Segment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Segment, len(s.layout.entries))
	copy(out, s.layout.entries)
	return out
}

// Neighbors returns the active segment starting at or before addr and the
// first active segment starting after it. Either may be nil.
func (s *Store) Neighbors(addr uint32) (prev, next *Segment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.layout.neighbors(addr)
}

// State returns a consistent copy of seg's bookkeeping taken under the store
// lock.
func (s *Store) State(seg *Segment) (SegmentState, error) {
	const op = "state"
	if seg == nil {
		return SegmentState{}, newError(op, noID, ErrInvalidArgument, errNilSegment)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active(seg) {
		return SegmentState{}, newError(op, int(seg.id), ErrSegmentInactive, nil)
	}
	return seg.state(), nil
}

// Stats summarizes region usage.
type Stats struct {
	Active   int    `json:"active"`
	Reserved uint32 `json:"reserved"`
	Written  uint32 `json:"written"`
	Free     uint32 `json:"free"`
}

// Stats returns current usage of the region.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{Active: s.layout.len()}
	for _, seg := range s.layout.entries {
		st.Reserved += seg.size
		st.Written += seg.Written()
	}
	st.Free = s.region.Size - st.Reserved
	return st
}

// Gaps returns the unreserved extents of the region in address order.
func (s *Store) Gaps() []flash.Region {
	s.mu.Lock()
	defer s.mu.Unlock()

	var gaps []flash.Region
	cur := s.region.Start
	for _, seg := range s.layout.entries {
		if seg.address > cur {
			gaps = append(gaps, flash.Region{Start: cur, Size: seg.address - cur})
		}
		cur = seg.end()
	}
	end, _ := s.region.End()
	if end > cur {
		gaps = append(gaps, flash.Region{Start: cur, Size: end - cur})
	}
	return gaps
}

// nextID returns the lowest inactive identifier.
func (s *Store) nextID() (uint8, bool) {
	for i, seg := range s.slots {
		if seg == nil {
			return uint8(i), true
		}
	}
	return 0, false
}

// checkPayloadLimit rejects a segment size whose payload the backup sink
// could never take in one stash.
func (s *Store) checkPayloadLimit(size uint32) error {
	lim, ok := s.backup.(payloadLimiter)
	if !ok {
		return nil
	}
	if limit := lim.MaxPayload(); size-HeaderSize > limit {
		return fmt.Errorf("payload capacity %d exceeds backup record limit %d", size-HeaderSize, limit)
	}
	return nil
}

// active reports whether seg is the live registration for its identifier.
func (s *Store) active(seg *Segment) bool {
	return s.slots[seg.id] == seg
}

// checkPlacement validates the entry at index i of the layout against its
// neighbors and the region bounds.
func (s *Store) checkPlacement(i int) error {
	seg := s.layout.entries[i]
	prev, next := s.layout.around(i)

	if prev == nil {
		if seg.address < s.region.Start {
			return fmt.Errorf("address 0x%X before region start 0x%X", seg.address, s.region.Start)
		}
	} else if seg.address < prev.end() {
		return fmt.Errorf("overlaps segment %d [0x%X, 0x%X)", prev.id, prev.address, prev.end())
	}

	end, ok := buf.End(seg.address, seg.size)
	if !ok {
		return fmt.Errorf("address 0x%X + size %d overflows", seg.address, seg.size)
	}
	if next == nil {
		limit, _ := s.region.End()
		if end > limit {
			return fmt.Errorf("end 0x%X past region end 0x%X", end, limit)
		}
	} else if end > next.address {
		return fmt.Errorf("overlaps segment %d at 0x%X", next.id, next.address)
	}
	return nil
}

// failure pairs an internal error with the sentinel kind it reports as.
type failure struct {
	kind error
	err  error
}

// readPayload reads the header plus n payload bytes and checks the header.
func (s *Store) readPayload(seg *Segment, n uint32) ([]byte, *failure) {
	raw := make([]byte, HeaderSize+n)
	if err := s.dev.Read(seg.address, raw); err != nil {
		return nil, &failure{ErrMediumFailure, err}
	}
	if raw[0] != seg.id {
		return nil, &failure{ErrCorrupt,
			fmt.Errorf("header 0x%02X at 0x%X, want 0x%02X", raw[0], seg.address, seg.id)}
	}
	return raw[HeaderSize:], nil
}

// reclaim migrates and erases seg. erased reports whether the device
// actually erased the range.
//
// Payload already stashed by an earlier reclaim that did not rewind the
// cursor is not stashed again; once more bytes are written the whole
// payload is stashed as a new record.
func (s *Store) reclaim(seg *Segment) (erased bool, f *failure) {
	if s.backup != nil && seg.Written() > seg.migrated {
		payload, f := s.readPayload(seg, seg.Written())
		if f != nil {
			return false, f
		}
		if err := s.backup.Stash(seg.id, payload); err != nil {
			s.log.Warn("migration failed", "id", seg.id, "bytes", len(payload), "err", err)
			return false, &failure{ErrMigrationFailed, err}
		}
		seg.migrated = seg.Written()
		s.log.Debug("segment migrated", "id", seg.id, "bytes", len(payload))
	}

	eraser, ok := s.dev.(flash.Eraser)
	if !ok {
		return false, nil
	}
	if err := eraser.Erase(seg.address, seg.size); err != nil {
		s.log.Warn("erase failed", "id", seg.id, "address", seg.address, "err", err)
		return false, &failure{ErrMediumFailure, err}
	}
	return true, nil
}
