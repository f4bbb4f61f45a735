// Package backup implements the reserved backup region that segment data is
// migrated to before a segment is released.
//
// The region is an append-only log of records:
//
//	[magic 0xB5][id u8][len u32 LE][checksum u64 LE][payload]
//
// The checksum is HighwayHash-64 over id followed by payload. Scanning stops
// at the first erased magic byte. The log only grows; Erase wipes the whole
// region and starts over.
package backup

import (
	"errors"
	"fmt"
	"sync"

	"github.com/minio/highwayhash"

	"github.com/NgocKhanh0912/pulse-oximetry/flash"
	"github.com/NgocKhanh0912/pulse-oximetry/internal/buf"
)

const (
	recordMagic = 0xB5

	// HeaderSize is the fixed record header length.
	HeaderSize = 14
)

var (
	// ErrFull indicates the record does not fit in the remaining region.
	ErrFull = errors.New("backup: region full")

	// ErrTooLarge indicates a record that would not fit even in an empty
	// region.
	ErrTooLarge = errors.New("backup: payload too large")

	// ErrNotErasable indicates Erase on a device without range erase.
	ErrNotErasable = errors.New("backup: device cannot erase")

	// ErrCorrupt indicates a record with a bad magic, length or checksum.
	ErrCorrupt = errors.New("backup: corrupt record")
)

// hashKey is the fixed 256-bit HighwayHash key for record checksums.
var hashKey = []byte("pulse-oximetry-backup-region-k01")

// Record is one migrated payload.
type Record struct {
	ID      uint8
	Addr    uint32
	Payload []byte
}

// Log appends records to a flash region.
type Log struct {
	mu     sync.Mutex
	dev    flash.Device
	region flash.Region
	cursor uint32
}

// Open scans region on dev and returns a log positioned after the last
// record.
func Open(dev flash.Device, region flash.Region) (*Log, error) {
	if !region.Valid() || !dev.Bounds().Covers(region) {
		return nil, fmt.Errorf("backup: region %s outside device %s", region, dev.Bounds())
	}
	l := &Log{dev: dev, region: region, cursor: region.Start}
	var err error
	l.cursor, err = l.scan(nil)
	if err != nil {
		return nil, err
	}
	return l, nil
}

// Region returns the backing region.
func (l *Log) Region() flash.Region { return l.region }

// MaxPayload returns the largest payload one record can carry: the whole
// region less one header. It implements the store's payload limit.
func (l *Log) MaxPayload() uint32 {
	if l.region.Size < HeaderSize {
		return 0
	}
	return l.region.Size - HeaderSize
}

// Stash appends a record for id. It implements storage.Sink.
//
// ErrTooLarge means the payload can never fit; ErrFull means it would fit
// after Erase.
func (l *Log) Stash(id uint8, payload []byte) error {
	if uint64(len(payload)) > uint64(l.MaxPayload()) {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrTooLarge, len(payload), l.MaxPayload())
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	total := uint32(HeaderSize + len(payload))
	if !l.region.Contains(l.cursor, total) {
		return fmt.Errorf("%w: need %d bytes, %d left", ErrFull, total, l.free())
	}

	sum, err := checksum(id, payload)
	if err != nil {
		return err
	}
	rec := make([]byte, total)
	rec[0] = recordMagic
	rec[1] = id
	buf.PutU32LE(rec[2:6], uint32(len(payload)))
	buf.PutU64LE(rec[6:14], sum)
	copy(rec[HeaderSize:], payload)

	if err := l.dev.Write(l.cursor, rec); err != nil {
		return fmt.Errorf("backup: write record at 0x%08X: %w", l.cursor, err)
	}
	l.cursor += total
	return nil
}

// Erase wipes the region and rewinds the log to its start. Every record is
// lost; callers read what they still need with Records first.
func (l *Log) Erase() error {
	eraser, ok := l.dev.(flash.Eraser)
	if !ok {
		return ErrNotErasable
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := eraser.Erase(l.region.Start, l.region.Size); err != nil {
		return fmt.Errorf("backup: erase %s: %w", l.region, err)
	}
	l.cursor = l.region.Start
	return nil
}

// Records returns every record in append order.
func (l *Log) Records() ([]Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []Record
	_, err := l.scan(func(r Record) { out = append(out, r) })
	return out, err
}

// Latest returns the newest record stashed for id.
func (l *Log) Latest(id uint8) (Record, bool, error) {
	recs, err := l.Records()
	if err != nil {
		return Record{}, false, err
	}
	for i := len(recs) - 1; i >= 0; i-- {
		if recs[i].ID == id {
			return recs[i], true, nil
		}
	}
	return Record{}, false, nil
}

// Used returns the number of bytes occupied by records.
func (l *Log) Used() uint32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cursor - l.region.Start
}

// Free returns the number of bytes left for records.
func (l *Log) Free() uint32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.free()
}

func (l *Log) free() uint32 {
	return l.region.Size - (l.cursor - l.region.Start)
}

// scan walks the records from the region start, calling fn for each one, and
// returns the address just past the last record.
func (l *Log) scan(fn func(Record)) (uint32, error) {
	end, _ := l.region.End()
	addr := l.region.Start
	var hdr [HeaderSize]byte
	for addr < end {
		if end-addr < HeaderSize {
			// Too small for a record; only trailing erased bytes are valid.
			if err := l.dev.Read(addr, hdr[:1]); err != nil {
				return 0, err
			}
			if hdr[0] != flash.Erased {
				return 0, fmt.Errorf("%w: stray byte at 0x%08X", ErrCorrupt, addr)
			}
			break
		}
		if err := l.dev.Read(addr, hdr[:]); err != nil {
			return 0, err
		}
		if hdr[0] == flash.Erased {
			break
		}
		if hdr[0] != recordMagic {
			return 0, fmt.Errorf("%w: magic 0x%02X at 0x%08X", ErrCorrupt, hdr[0], addr)
		}

		n := buf.U32LE(hdr[2:6])
		if n > end-addr-HeaderSize {
			return 0, fmt.Errorf("%w: length %d at 0x%08X runs past region", ErrCorrupt, n, addr)
		}
		payload := make([]byte, n)
		if err := l.dev.Read(addr+HeaderSize, payload); err != nil {
			return 0, err
		}
		sum, err := checksum(hdr[1], payload)
		if err != nil {
			return 0, err
		}
		if sum != buf.U64LE(hdr[6:14]) {
			return 0, fmt.Errorf("%w: checksum mismatch at 0x%08X", ErrCorrupt, addr)
		}

		if fn != nil {
			fn(Record{ID: hdr[1], Addr: addr, Payload: payload})
		}
		addr += HeaderSize + n
	}
	return addr, nil
}

func checksum(id uint8, payload []byte) (uint64, error) {
	h, err := highwayhash.New64(hashKey)
	if err != nil {
		return 0, err
	}
	_, _ = h.Write([]byte{id})
	_, _ = h.Write(payload)
	return h.Sum64(), nil
}
