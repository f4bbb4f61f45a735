package flash

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"sync"

	"github.com/NgocKhanh0912/pulse-oximetry/internal/buf"
	"github.com/NgocKhanh0912/pulse-oximetry/internal/dirty"
)

// FileDevice is a flash image file addressed from a base address.
//
// On unix the image is mmapped read/write and writes are tracked as dirty
// ranges until Sync; elsewhere every access goes through ReadAt/WriteAt.
type FileDevice struct {
	mu     sync.Mutex
	path   string
	f      *os.File
	bounds Region
	data   []byte // mmap view; nil when mapping is unavailable
	dt     *dirty.Tracker
}

// mapping adapts the device's mmap view to dirty.Source.
type mapping struct{ d *FileDevice }

func (m mapping) Bytes() []byte { return m.d.data }

// CreateFile writes a fully erased image of bounds.Size bytes at path and
// opens it. An existing file is overwritten.
func CreateFile(path string, bounds Region) (*FileDevice, error) {
	if !bounds.Valid() {
		return nil, fmt.Errorf("flash: invalid device bounds %s", bounds)
	}
	img := make([]byte, bounds.Size)
	fillErased(img)
	if err := os.WriteFile(path, img, 0o644); err != nil {
		return nil, fmt.Errorf("flash: create image: %w", err)
	}
	return OpenFile(path, bounds.Start)
}

// OpenFile opens an existing image whose first byte sits at address base.
func OpenFile(path string, base uint32) (*FileDevice, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}

	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	sz := st.Size()
	if sz == 0 {
		_ = f.Close()
		return nil, fmt.Errorf("flash: empty image file: %s", path)
	}
	if sz > math.MaxUint32 {
		_ = f.Close()
		return nil, fmt.Errorf("flash: image too large (%d bytes)", sz)
	}

	bounds := Region{Start: base, Size: uint32(sz)}
	if !bounds.Valid() {
		_ = f.Close()
		return nil, fmt.Errorf("flash: image %s at base 0x%08X wraps the address space", path, base)
	}

	d := &FileDevice{path: path, f: f, bounds: bounds}
	if err := d.mapFile(); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("flash: mmap failed: %w", err)
	}
	d.dt = dirty.NewTracker(mapping{d})
	return d, nil
}

// Path returns the image file path.
func (d *FileDevice) Path() string { return d.path }

// Bounds returns the device's address window.
func (d *FileDevice) Bounds() Region { return d.bounds }

// Read copies len(p) bytes at addr into p.
func (d *FileDevice) Read(addr uint32, p []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	off, err := d.offset(addr, len(p))
	if err != nil {
		return err
	}
	if d.data != nil {
		copy(p, d.data[off:off+len(p)])
		return nil
	}
	_, err = d.f.ReadAt(p, int64(off))
	return err
}

// Write programs p at addr. Every target byte must be erased.
func (d *FileDevice) Write(addr uint32, p []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	off, err := d.offset(addr, len(p))
	if err != nil {
		return err
	}
	cur, err := d.current(off, len(p))
	if err != nil {
		return err
	}
	if err := checkErased(cur); err != nil {
		return fmt.Errorf("write 0x%08X+%d: %w", addr, len(p), err)
	}
	return d.store(off, p)
}

// Erase resets n bytes at addr to 0xFF.
func (d *FileDevice) Erase(addr, n uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	off, err := d.offset(addr, int(n))
	if err != nil {
		return err
	}
	blank := make([]byte, n)
	fillErased(blank)
	return d.store(off, blank)
}

// Sync flushes dirty pages of the mapping, or fsyncs the file when the image
// is not mapped.
func (d *FileDevice) Sync(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.f == nil {
		return ErrClosed
	}
	if d.data != nil {
		return d.dt.Flush(ctx)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.f.Sync()
}

// Close flushes outstanding writes, unmaps the image and closes the file.
func (d *FileDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.f == nil {
		return nil
	}
	var errs []error
	if d.data != nil {
		errs = append(errs, d.dt.Flush(context.Background()))
		errs = append(errs, d.unmapFile())
	}
	errs = append(errs, d.f.Close())
	d.f = nil
	return errors.Join(errs...)
}

func (d *FileDevice) offset(addr uint32, n int) (int, error) {
	if d.f == nil {
		return 0, ErrClosed
	}
	off, err := buf.CheckRange(addr, uint32(n), d.bounds.Start, d.bounds.Size)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrOutOfRange, err)
	}
	return off, nil
}

func (d *FileDevice) current(off, n int) ([]byte, error) {
	if d.data != nil {
		return d.data[off : off+n], nil
	}
	cur := make([]byte, n)
	if _, err := d.f.ReadAt(cur, int64(off)); err != nil {
		return nil, err
	}
	return cur, nil
}

func (d *FileDevice) store(off int, p []byte) error {
	if d.data != nil {
		copy(d.data[off:off+len(p)], p)
		d.dt.Add(off, len(p))
		return nil
	}
	_, err := d.f.WriteAt(p, int64(off))
	return err
}
