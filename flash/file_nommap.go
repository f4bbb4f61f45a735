//go:build !unix

package flash

// mapFile leaves the image unmapped; reads and writes use file I/O.
func (d *FileDevice) mapFile() error { return nil }

func (d *FileDevice) unmapFile() error { return nil }
