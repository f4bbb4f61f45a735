package storage

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/NgocKhanh0912/pulse-oximetry/flash"
)

var (
	testRegion = flash.Region{Start: 0x0000, Size: 2048}
	testBounds = flash.Region{Start: 0x0000, Size: 4096}
)

var errInjected = errors.New("injected fault")

// faultyDevice wraps a MemDevice and fails selected operations on demand.
type faultyDevice struct {
	*flash.MemDevice
	failWrite bool
	failRead  bool
	failErase bool
}

func (d *faultyDevice) Write(addr uint32, p []byte) error {
	if d.failWrite {
		return errInjected
	}
	return d.MemDevice.Write(addr, p)
}

func (d *faultyDevice) Read(addr uint32, p []byte) error {
	if d.failRead {
		return errInjected
	}
	return d.MemDevice.Read(addr, p)
}

func (d *faultyDevice) Erase(addr, n uint32) error {
	if d.failErase {
		return errInjected
	}
	return d.MemDevice.Erase(addr, n)
}

// noEraseDevice hides Erase so the store sees a write-only medium.
type noEraseDevice struct {
	dev *flash.MemDevice
}

func (d noEraseDevice) Read(addr uint32, p []byte) error  { return d.dev.Read(addr, p) }
func (d noEraseDevice) Write(addr uint32, p []byte) error { return d.dev.Write(addr, p) }
func (d noEraseDevice) Bounds() flash.Region              { return d.dev.Bounds() }

// sinkFunc adapts a function to Sink.
type sinkFunc func(id uint8, payload []byte) error

func (f sinkFunc) Stash(id uint8, payload []byte) error { return f(id, payload) }

func newTestDevice(t testing.TB) *flash.MemDevice {
	t.Helper()
	dev, err := flash.NewMem(testBounds)
	require.NoError(t, err)
	return dev
}

func newTestStore(t testing.TB, opts ...Option) (*Store, *flash.MemDevice) {
	t.Helper()
	dev := newTestDevice(t)
	st, err := New(dev, testRegion, opts...)
	require.NoError(t, err)
	return st, dev
}

func pattern(n int, seed byte) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = seed + byte(i)
	}
	return out
}
