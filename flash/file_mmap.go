//go:build unix

package flash

import (
	"errors"

	"golang.org/x/sys/unix"
)

// mapFile maps the whole image read/write and shared, so stores reach the
// file after msync.
func (d *FileDevice) mapFile() error {
	data, err := unix.Mmap(int(d.f.Fd()), 0, int(d.bounds.Size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return err
	}
	d.data = data
	return nil
}

func (d *FileDevice) unmapFile() error {
	if d.data == nil {
		return nil
	}
	err := unix.Munmap(d.data)
	d.data = nil
	if errors.Is(err, unix.EINVAL) {
		// Treat double-unmap as no-op for callers.
		return nil
	}
	return err
}
