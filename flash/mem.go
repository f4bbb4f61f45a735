package flash

import (
	"fmt"
	"sync"

	"github.com/NgocKhanh0912/pulse-oximetry/internal/buf"
)

// MemDevice is an in-memory NOR flash emulation. All bytes start erased.
type MemDevice struct {
	mu     sync.Mutex
	bounds Region
	data   []byte
	writes int
}

// NewMem returns an erased in-memory device covering bounds.
func NewMem(bounds Region) (*MemDevice, error) {
	if !bounds.Valid() {
		return nil, fmt.Errorf("flash: invalid device bounds %s", bounds)
	}
	data := make([]byte, bounds.Size)
	fillErased(data)
	return &MemDevice{bounds: bounds, data: data}, nil
}

// Bounds returns the device's address window.
func (m *MemDevice) Bounds() Region { return m.bounds }

// Read copies len(p) bytes at addr into p.
func (m *MemDevice) Read(addr uint32, p []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	off, err := m.offset(addr, len(p))
	if err != nil {
		return err
	}
	copy(p, m.data[off:off+len(p)])
	return nil
}

// Write programs p at addr. Every target byte must be erased.
func (m *MemDevice) Write(addr uint32, p []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	off, err := m.offset(addr, len(p))
	if err != nil {
		return err
	}
	dst := m.data[off : off+len(p)]
	if err := checkErased(dst); err != nil {
		return fmt.Errorf("write 0x%08X+%d: %w", addr, len(p), err)
	}
	copy(dst, p)
	m.writes++
	return nil
}

// Erase resets n bytes at addr to 0xFF.
func (m *MemDevice) Erase(addr, n uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	off, err := m.offset(addr, int(n))
	if err != nil {
		return err
	}
	fillErased(m.data[off : off+int(n)])
	return nil
}

// Writes returns how many successful Write calls the device has served.
func (m *MemDevice) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// Dump returns a copy of the device contents.
func (m *MemDevice) Dump() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]byte, len(m.data))
	copy(out, m.data)
	return out
}

func (m *MemDevice) offset(addr uint32, n int) (int, error) {
	off, err := buf.CheckRange(addr, uint32(n), m.bounds.Start, m.bounds.Size)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrOutOfRange, err)
	}
	return off, nil
}
