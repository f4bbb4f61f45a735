package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/NgocKhanh0912/pulse-oximetry/config"
	"github.com/NgocKhanh0912/pulse-oximetry/flash"
	"github.com/NgocKhanh0912/pulse-oximetry/internal/logger"
	"github.com/NgocKhanh0912/pulse-oximetry/internal/writer"
	"github.com/NgocKhanh0912/pulse-oximetry/storage"
	"github.com/NgocKhanh0912/pulse-oximetry/storage/backup"
)

// session is an opened image: the device, its store with the registry
// restored from the manifest, and the backup log when one is configured.
type session struct {
	cfg      *config.Config
	dev      flash.Device
	store    *storage.Store
	backup   *backup.Log
	manifest string
}

func manifestPath(image string) string {
	return image + ".manifest.json"
}

// openSession opens the configured image and restores its registry. A
// missing manifest means an empty registry.
func openSession() (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	dev, err := flash.OpenFile(cfg.Device.Image, cfg.Device.Base)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}

	s, err := newSession(cfg, dev)
	if err != nil {
		_ = dev.Close()
		return nil, err
	}

	snap, err := storage.LoadManifest(s.manifest)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		printVerbose("No manifest at %s, starting empty\n", s.manifest)
	case err != nil:
		_ = dev.Close()
		return nil, err
	default:
		if err := s.store.Restore(snap); err != nil {
			_ = dev.Close()
			return nil, fmt.Errorf("restore registry: %w", err)
		}
	}
	return s, nil
}

func newSession(cfg *config.Config, dev flash.Device) (*session, error) {
	s := &session{cfg: cfg, dev: dev, manifest: manifestPath(cfg.Device.Image)}

	opts := []storage.Option{storage.WithLogger(logger.L)}
	if b := cfg.Storage.Backup; b != nil {
		l, err := backup.Open(dev, b.Region())
		if err != nil {
			return nil, fmt.Errorf("open backup region: %w", err)
		}
		s.backup = l
		opts = append(opts, storage.WithBackup(l))
	}

	store, err := storage.New(dev, cfg.Storage.Region.Region(), opts...)
	if err != nil {
		return nil, err
	}
	s.store = store
	return s, nil
}

// save persists the registry next to the image and flushes the image when
// the device buffers writes.
func (s *session) save(ctx context.Context) error {
	if err := storage.SaveManifest(&writer.FileWriter{Path: s.manifest}, s.store.Snapshot()); err != nil {
		return err
	}
	if sy, ok := s.dev.(flash.Syncer); ok {
		return sy.Sync(ctx)
	}
	return nil
}

// close saves when requested and always closes the image.
func (s *session) close(save bool) error {
	var err error
	if save {
		err = s.save(context.Background())
	}
	if c, ok := s.dev.(io.Closer); ok {
		err = errors.Join(err, c.Close())
	}
	return err
}

// segment resolves an active segment by identifier.
func (s *session) segment(id uint8) (*storage.Segment, error) {
	seg, ok := s.store.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("segment %d is not active", id)
	}
	return seg, nil
}
