package flash

import (
	"fmt"

	"github.com/NgocKhanh0912/pulse-oximetry/internal/buf"
)

// Erased is the value of every byte of a freshly erased sector.
const Erased byte = 0xFF

// Region is a contiguous address window [Start, Start+Size).
type Region struct {
	Start uint32 `json:"start" yaml:"start"`
	Size  uint32 `json:"size" yaml:"size"`
}

// End returns the first address past the region. ok is false when the
// region wraps the 32-bit address space.
func (r Region) End() (uint32, bool) {
	return buf.End(r.Start, r.Size)
}

// Valid reports whether the region is non-empty and does not wrap.
func (r Region) Valid() bool {
	_, ok := r.End()
	return ok && r.Size > 0
}

// Contains reports whether n bytes at addr lie entirely inside r.
func (r Region) Contains(addr, n uint32) bool {
	return buf.Within(addr, n, r.Start, r.Size)
}

// Covers reports whether o lies entirely inside r.
func (r Region) Covers(o Region) bool {
	return r.Contains(o.Start, o.Size)
}

// Overlaps reports whether r and o share at least one address.
func (r Region) Overlaps(o Region) bool {
	return buf.Overlaps(r.Start, r.Size, o.Start, o.Size)
}

func (r Region) String() string {
	return fmt.Sprintf("[0x%08X, +%d)", r.Start, r.Size)
}
