package buf

import (
	"fmt"
	"math"
)

// End returns addr+n, reporting ok = false when the sum would overflow uint32.
// Flash addresses on the target are 32-bit, so every range end goes through here.
func End(addr, n uint32) (uint32, bool) {
	if n > math.MaxUint32-addr {
		return 0, false
	}
	return addr + n, true
}

// Within reports whether [addr, addr+n) lies inside [start, start+size).
func Within(addr, n, start, size uint32) bool {
	end, ok := End(addr, n)
	if !ok {
		return false
	}
	limit, ok := End(start, size)
	if !ok {
		return false
	}
	return addr >= start && end <= limit
}

// Overlaps reports whether [a, a+an) and [b, b+bn) share at least one byte.
// Empty ranges never overlap anything.
func Overlaps(a, an, b, bn uint32) bool {
	if an == 0 || bn == 0 {
		return false
	}
	aEnd, okA := End(a, an)
	bEnd, okB := End(b, bn)
	if !okA {
		aEnd = math.MaxUint32
	}
	if !okB {
		bEnd = math.MaxUint32
	}
	return a < bEnd && b < aEnd
}

// CheckRange validates that n bytes at addr fit inside a window of size bytes
// starting at start. Returns the offset of addr relative to start.
//
//	off, err := buf.CheckRange(addr, uint32(len(p)), base, size)
//	if err != nil {
//	    return fmt.Errorf("read: %w", err)
//	}
func CheckRange(addr, n, start, size uint32) (int, error) {
	if addr < start {
		return 0, fmt.Errorf("bounds: addr=0x%X below start=0x%X", addr, start)
	}
	end, ok := End(addr, n)
	if !ok {
		return 0, fmt.Errorf("overflow: addr=0x%X + len=%d", addr, n)
	}
	limit, ok := End(start, size)
	if !ok {
		return 0, fmt.Errorf("overflow: start=0x%X + size=%d", start, size)
	}
	if end > limit {
		return 0, fmt.Errorf("bounds: end=0x%X > limit=0x%X", end, limit)
	}
	return int(addr - start), nil
}
