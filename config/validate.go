// config/validate.go
package config

import (
	"fmt"
	"strings"

	"github.com/NgocKhanh0912/pulse-oximetry/storage"
	"github.com/NgocKhanh0912/pulse-oximetry/storage/backup"
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil config")
	}

	// ------------------------------------------------------------
	// DEVICE
	// ------------------------------------------------------------

	device := cfg.Device.Bounds()
	if !device.Valid() {
		return fmt.Errorf("device: base 0x%08X size %d is not a valid window", cfg.Device.Base, cfg.Device.Size)
	}

	// ------------------------------------------------------------
	// STORAGE + BACKUP REGIONS
	// ------------------------------------------------------------

	region := cfg.Storage.Region.Region()
	if !region.Valid() {
		return fmt.Errorf("storage.region: size must be > 0 and must not wrap")
	}
	if !device.Covers(region) {
		return fmt.Errorf("storage.region %s lies outside device %s", region, device)
	}

	if b := cfg.Storage.Backup; b != nil {
		spare := b.Region()
		if !spare.Valid() {
			return fmt.Errorf("storage.backup: size must be > 0 and must not wrap")
		}
		if !device.Covers(spare) {
			return fmt.Errorf("storage.backup %s lies outside device %s", spare, device)
		}
		if spare.Overlaps(region) {
			return fmt.Errorf("storage.backup %s overlaps storage.region %s", spare, region)
		}
	}
	maxPayload, capped := backupLimit(cfg)

	// ------------------------------------------------------------
	// LAYOUT
	// ------------------------------------------------------------

	names := make(map[string]int, len(cfg.Layout))
	for i, s := range cfg.Layout {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			return fmt.Errorf("layout[%d]: name is required", i)
		}
		if prev, dup := names[name]; dup {
			return fmt.Errorf("layout[%d]: name %q already used by layout[%d]", i, name, prev)
		}
		names[name] = i

		if s.Size == 0 || s.Size >= region.Size {
			return fmt.Errorf("layout %q: size %d must be in (0, %d)", name, s.Size, region.Size)
		}
		if !region.Contains(s.Address, s.Size) {
			return fmt.Errorf("layout %q: [0x%08X, +%d) lies outside storage.region %s",
				name, s.Address, s.Size, region)
		}
		if capped && s.Size-storage.HeaderSize > maxPayload {
			return fmt.Errorf("layout %q: payload %d exceeds backup record limit %d",
				name, s.Size-storage.HeaderSize, maxPayload)
		}
		for j := range i {
			o := cfg.Layout[j]
			if overlaps(s, o) {
				return fmt.Errorf("layout %q overlaps layout %q", name, strings.TrimSpace(o.Name))
			}
		}
	}

	// ------------------------------------------------------------
	// LOG
	// ------------------------------------------------------------

	switch strings.ToLower(cfg.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level: unknown level %q", cfg.Log.Level)
	}

	return nil
}

// backupLimit returns the largest segment payload the backup region can take
// in one record.
func backupLimit(cfg *Config) (uint32, bool) {
	b := cfg.Storage.Backup
	if b == nil {
		return 0, false
	}
	if b.Size <= backup.HeaderSize {
		return 0, true
	}
	return b.Size - backup.HeaderSize, true
}

func overlaps(a, b SegmentConfig) bool {
	ra := RegionConfig{Start: a.Address, Size: a.Size}.Region()
	rb := RegionConfig{Start: b.Address, Size: b.Size}.Region()
	return ra.Overlaps(rb)
}
