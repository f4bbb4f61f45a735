package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/NgocKhanh0912/pulse-oximetry/flash"
)

// manifestVersion is bumped whenever the manifest layout changes.
const manifestVersion = 1

// SegmentState is the bookkeeping of one active segment.
type SegmentState struct {
	ID        uint8  `json:"id"`
	Address   uint32 `json:"address"`
	Size      uint32 `json:"size"`
	SpaceLeft uint32 `json:"spaceLeft"`
}

// Snapshot is a value copy of a store's identifier table and registry.
// Segments are in address order; Active lists the identifiers in use.
type Snapshot struct {
	Version  int            `json:"version"`
	Region   flash.Region   `json:"region"`
	Active   []int          `json:"active"`
	Segments []SegmentState `json:"segments"`
}

// Snapshot captures the current registry.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Version:  manifestVersion,
		Region:   s.region,
		Active:   []int{},
		Segments: make([]SegmentState, 0, s.layout.len()),
	}
	for id, seg := range s.slots {
		if seg != nil {
			snap.Active = append(snap.Active, id)
		}
	}
	for _, seg := range s.layout.entries {
		snap.Segments = append(snap.Segments, seg.state())
	}
	return snap
}

// Restore loads a snapshot into an empty store. Every entry is placement
// checked and its header byte is read back from the device, and Active must
// list exactly the restored identifiers; any failure leaves the store empty.
func (s *Store) Restore(snap Snapshot) error {
	const op = "restore"

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.layout.len() != 0 {
		return newError(op, noID, ErrInvalidArgument, errors.New("store not empty"))
	}
	if snap.Version != manifestVersion {
		return newError(op, noID, ErrInvalidArgument,
			fmt.Errorf("manifest version %d, want %d", snap.Version, manifestVersion))
	}
	if snap.Region != s.region {
		return newError(op, noID, ErrInvalidArgument,
			fmt.Errorf("manifest region %s, store region %s", snap.Region, s.region))
	}

	err := s.restore(snap.Segments)
	if err == nil {
		err = s.checkActive(snap.Active)
	}
	if err != nil {
		s.layout.reset()
		s.slots = [MaxSegments]*Segment{}
		return err
	}
	s.log.Info("registry restored", "segments", len(snap.Segments))
	return nil
}

func (s *Store) restore(states []SegmentState) error {
	const op = "restore"
	for _, st := range states {
		id := int(st.ID)
		if s.slots[st.ID] != nil {
			return newError(op, id, ErrInvalidArgument, errors.New("duplicate identifier"))
		}
		if st.Size == 0 || st.Size >= s.region.Size || st.SpaceLeft > st.Size-HeaderSize {
			return newError(op, id, ErrInvalidArgument,
				fmt.Errorf("size %d space left %d", st.Size, st.SpaceLeft))
		}
		if err := s.checkPayloadLimit(st.Size); err != nil {
			return newError(op, id, ErrInvalidArgument, err)
		}

		seg := &Segment{id: st.ID, address: st.Address, size: st.Size, spaceLeft: st.SpaceLeft}
		idx := s.layout.insert(seg)
		if err := s.checkPlacement(idx); err != nil {
			return newError(op, id, ErrPlacementInvalid, err)
		}
		if _, f := s.readPayload(seg, 0); f != nil {
			return newError(op, id, f.kind, f.err)
		}
		s.slots[st.ID] = seg
	}
	return nil
}

// checkActive compares the manifest's identifier list with the restored
// registry.
func (s *Store) checkActive(active []int) error {
	const op = "restore"
	var listed [MaxSegments]bool
	for _, id := range active {
		if id < 0 || id >= MaxSegments {
			return newError(op, noID, ErrInvalidArgument, fmt.Errorf("active identifier %d out of range", id))
		}
		if listed[id] {
			return newError(op, id, ErrInvalidArgument, errors.New("identifier listed twice in active"))
		}
		if s.slots[id] == nil {
			return newError(op, id, ErrInvalidArgument, errors.New("active identifier has no segment"))
		}
		listed[id] = true
	}
	for id, seg := range s.slots {
		if seg != nil && !listed[id] {
			return newError(op, id, ErrInvalidArgument, errors.New("segment missing from active"))
		}
	}
	return nil
}

// ManifestWriter persists encoded manifests; see internal/writer.
type ManifestWriter interface {
	WriteManifest(buf []byte) error
}

// SaveManifest encodes snap as JSON and hands it to w.
func SaveManifest(w ManifestWriter, snap Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: encode manifest: %w", err)
	}
	if err := w.WriteManifest(data); err != nil {
		return fmt.Errorf("storage: write manifest: %w", err)
	}
	return nil
}

// ParseManifest decodes a manifest produced by SaveManifest.
func ParseManifest(data []byte) (Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("storage: decode manifest: %w", err)
	}
	return snap, nil
}

// LoadManifest reads and decodes the manifest at path.
func LoadManifest(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, err
	}
	return ParseManifest(data)
}
