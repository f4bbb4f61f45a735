// config/config.go
package config

import "github.com/NgocKhanh0912/pulse-oximetry/flash"

type Config struct {
	Device  DeviceConfig    `yaml:"device"`
	Storage StorageConfig   `yaml:"storage"`
	Layout  []SegmentConfig `yaml:"layout"`
	Log     LogConfig       `yaml:"log"`
}

// ---- DEVICE ----

// DeviceConfig describes the flash image: its file and the address of its
// first byte.
type DeviceConfig struct {
	Image string `yaml:"image"`
	Base  uint32 `yaml:"base"`
	Size  uint32 `yaml:"size"`
}

func (d DeviceConfig) Bounds() flash.Region {
	return flash.Region{Start: d.Base, Size: d.Size}
}

// ---- STORAGE ----

type RegionConfig struct {
	Start uint32 `yaml:"start"`
	Size  uint32 `yaml:"size"`
}

func (r RegionConfig) Region() flash.Region {
	return flash.Region{Start: r.Start, Size: r.Size}
}

// StorageConfig names the erase sector segments live in and, optionally,
// the sector released data is migrated to.
type StorageConfig struct {
	Region RegionConfig  `yaml:"region"`
	Backup *RegionConfig `yaml:"backup"`
}

// ---- LAYOUT ----

// SegmentConfig is one segment allocated at boot, in file order.
type SegmentConfig struct {
	Name    string `yaml:"name"`
	Address uint32 `yaml:"address"`
	Size    uint32 `yaml:"size"`
}

// ---- LOG ----

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// STM32F411 flash: 512 KiB from 0x08000000, sector 6 and 7 are the last two
// 128 KiB sectors.
const (
	defaultBase        = 0x08000000
	defaultSize        = 0x80000
	defaultBackupStart = 0x08040000
	defaultRegionStart = 0x08060000
	defaultSectorSize  = 0x20000
)

// Default returns the board layout used when no file overrides it.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			Image: "flash.img",
			Base:  defaultBase,
			Size:  defaultSize,
		},
		Storage: StorageConfig{
			Region: RegionConfig{Start: defaultRegionStart, Size: defaultSectorSize},
			Backup: &RegionConfig{Start: defaultBackupStart, Size: defaultSectorSize},
		},
		Log: LogConfig{Level: "info"},
	}
}
