package flash

import (
	"context"
	"errors"
)

var (
	// ErrOutOfRange indicates an access outside the device's address window.
	ErrOutOfRange = errors.New("flash: address out of range")

	// ErrNotErased indicates a write over bytes that are not in the erased state.
	ErrNotErased = errors.New("flash: write target not erased")

	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("flash: device closed")
)

// Device is the raw byte-addressable medium.
//
// Read fills p with len(p) bytes starting at addr. Write programs len(p)
// bytes at addr; the target bytes must be erased. Neither operation retries.
type Device interface {
	Read(addr uint32, p []byte) error
	Write(addr uint32, p []byte) error
	Bounds() Region
}

// Eraser is implemented by devices that can return a byte range to the
// erased state.
type Eraser interface {
	Erase(addr, n uint32) error
}

// Syncer is implemented by devices that buffer writes.
type Syncer interface {
	Sync(ctx context.Context) error
}

// checkErased returns ErrNotErased if any byte of cur has been programmed.
func checkErased(cur []byte) error {
	for _, b := range cur {
		if b != Erased {
			return ErrNotErased
		}
	}
	return nil
}

// fillErased sets every byte of p to the erased value.
func fillErased(p []byte) {
	for i := range p {
		p[i] = Erased
	}
}
