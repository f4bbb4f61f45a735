// Package writer exposes sinks for registry manifests.
package writer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// defaultPerm is the mode of a manifest that did not exist before.
const defaultPerm os.FileMode = 0o644

// FileWriter replaces the manifest at Path. The bytes go to a hidden sibling
// file that is synced and renamed over Path, and the directory is synced
// after the rename, so a reader sees the old manifest or the new one and
// nothing in between.
type FileWriter struct {
	Path string

	// Perm is the manifest's mode. Zero keeps the mode of the manifest being
	// replaced, or 0644 for a new one.
	Perm os.FileMode
}

// WriteManifest implements storage.ManifestWriter.
func (w *FileWriter) WriteManifest(buf []byte) (err error) {
	if w.Path == "" {
		return errors.New("writer: empty manifest path")
	}
	if len(buf) == 0 {
		return errors.New("writer: refusing to write an empty manifest")
	}

	dir := filepath.Dir(w.Path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(w.Path)+".*")
	if err != nil {
		return fmt.Errorf("writer: stage manifest: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err := fill(tmp, buf, w.mode()); err != nil {
		return fmt.Errorf("writer: stage manifest: %w", err)
	}
	if err := os.Rename(tmp.Name(), w.Path); err != nil {
		return fmt.Errorf("writer: replace %s: %w", w.Path, err)
	}
	if err := syncDir(dir); err != nil {
		return fmt.Errorf("writer: sync %s: %w", dir, err)
	}
	return nil
}

func (w *FileWriter) mode() os.FileMode {
	if w.Perm != 0 {
		return w.Perm
	}
	if fi, err := os.Stat(w.Path); err == nil {
		return fi.Mode().Perm()
	}
	return defaultPerm
}

// fill writes buf to f, applies perm and makes the contents durable.
func fill(f *os.File, buf []byte, perm os.FileMode) error {
	if _, err := f.Write(buf); err != nil {
		return err
	}
	if err := f.Chmod(perm); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return err
	}
	return f.Close()
}
