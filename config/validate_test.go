package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NgocKhanh0912/pulse-oximetry/storage/backup"
)

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, Validate(Default()))
}

func TestParse_Full(t *testing.T) {
	cfg, err := Parse([]byte(`
device:
  image: board.img
  base: 0x08000000
  size: 0x80000
storage:
  region: {start: 0x08060000, size: 0x20000}
  backup: {start: 0x08040000, size: 0x20000}
layout:
  - name: " ppg "
    address: 0x08060000
    size: 4096
  - name: hr
    address: 0x08061000
    size: 512
log:
  level: DEBUG
`))
	require.NoError(t, err)

	assert.Equal(t, "board.img", cfg.Device.Image)
	assert.Equal(t, uint32(0x08060000), cfg.Storage.Region.Start)
	require.NotNil(t, cfg.Storage.Backup)
	assert.Equal(t, uint32(0x08040000), cfg.Storage.Backup.Start)
	require.Len(t, cfg.Layout, 2)
	assert.Equal(t, "ppg", cfg.Layout[0].Name)
	assert.Equal(t, uint32(4096), cfg.Layout[0].Size)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestParse_EmptyUsesDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParse_UnknownField(t *testing.T) {
	_, err := Parse([]byte("device:\n  flavour: nor\n"))
	require.Error(t, err)
}

func TestParse_NoBackup(t *testing.T) {
	cfg, err := Parse([]byte("storage:\n  backup: null\n"))
	require.NoError(t, err)
	assert.Nil(t, cfg.Storage.Backup)
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:    "empty device",
			mutate:  func(c *Config) { c.Device.Size = 0 },
			wantErr: "device:",
		},
		{
			name:    "region outside device",
			mutate:  func(c *Config) { c.Storage.Region.Start = 0x08070000 },
			wantErr: "outside device",
		},
		{
			name:    "backup overlaps region",
			mutate:  func(c *Config) { c.Storage.Backup.Start = 0x08050000 },
			wantErr: "overlaps storage.region",
		},
		{
			name:    "backup empty",
			mutate:  func(c *Config) { c.Storage.Backup.Size = 0 },
			wantErr: "storage.backup",
		},
		{
			name:    "layout missing name",
			mutate:  func(c *Config) { c.Layout = []SegmentConfig{{Address: 0x08060000, Size: 16}} },
			wantErr: "name is required",
		},
		{
			name: "layout duplicate name",
			mutate: func(c *Config) {
				c.Layout = []SegmentConfig{
					{Name: "a", Address: 0x08060000, Size: 16},
					{Name: "a", Address: 0x08060100, Size: 16},
				}
			},
			wantErr: "already used",
		},
		{
			name:    "layout size equals region",
			mutate:  func(c *Config) { c.Layout = []SegmentConfig{{Name: "a", Address: 0x08060000, Size: 0x20000}} },
			wantErr: "must be in",
		},
		{
			name:    "layout outside region",
			mutate:  func(c *Config) { c.Layout = []SegmentConfig{{Name: "a", Address: 0x08040000, Size: 16}} },
			wantErr: "outside storage.region",
		},
		{
			name: "layout overlap",
			mutate: func(c *Config) {
				c.Layout = []SegmentConfig{
					{Name: "a", Address: 0x08060000, Size: 0x200},
					{Name: "b", Address: 0x08060100, Size: 0x200},
				}
			},
			wantErr: `"b" overlaps layout "a"`,
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Log.Level = "loud" },
			wantErr: "log.level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_DoesNotMutate(t *testing.T) {
	cfg := Default()
	cfg.Layout = []SegmentConfig{{Name: " x ", Address: 0x08060000, Size: 8}}
	cfg.Log.Level = "WARN"
	require.NoError(t, Validate(cfg))
	assert.Equal(t, " x ", cfg.Layout[0].Name)
	assert.Equal(t, "WARN", cfg.Log.Level)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "oxim.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  file: /tmp/oxim.log\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/oxim.log", cfg.Log.File)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidate_LayoutMustFitBackupRecord(t *testing.T) {
	cfg := Default()
	cfg.Storage.Backup = &RegionConfig{Start: 0x08040000, Size: 0x1000}

	cfg.Layout = []SegmentConfig{{Name: "ppg", Address: 0x08060000, Size: 0x1000}}
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds backup record limit")

	cfg.Layout[0].Size = 0x1000 - backup.HeaderSize + 1
	require.NoError(t, Validate(cfg))

	cfg.Storage.Backup = nil
	cfg.Layout[0].Size = 0x10000
	require.NoError(t, Validate(cfg), "no backup, no record limit")
}
