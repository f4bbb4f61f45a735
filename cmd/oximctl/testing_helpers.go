package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// testLayout is a small device: backup in the first 4 KiB, storage in the
// second.
const testLayout = `
device:
  image: %s
  base: 0
  size: 0x2000
storage:
  region: {start: 0x1000, size: 0x1000}
  backup: {start: 0x0000, size: 0x1000}
layout:
  - name: ppg
    address: 0x1000
    size: 256
  - name: hr
    address: 0x1100
    size: 64
`

// setupImage writes a config for a fresh image in a temp dir, points the
// global flags at it and returns the image path.
func setupImage(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	image := filepath.Join(dir, "flash.img")
	cfg := filepath.Join(dir, "oxim.yaml")
	if err := os.WriteFile(cfg, []byte(fmt.Sprintf(testLayout, image)), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	resetFlags()
	configPath = cfg
	t.Cleanup(resetFlags)
	return image
}

func resetFlags() {
	verbose, quiet, jsonOut = false, false, false
	configPath, imagePath = "", ""
	formatForce = false
	backupsClear = false
	exportLength = 0
}

// captureOutput captures stdout while running a function
func captureOutput(t *testing.T, fn func() error) (string, error) {
	t.Helper()

	origStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create pipe: %v", err)
	}
	os.Stdout = w

	fnErr := fn()

	w.Close()
	os.Stdout = origStdout

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		t.Fatalf("failed to read output: %v", err)
	}
	return buf.String(), fnErr
}

// assertContains checks that output contains all expected strings
func assertContains(t *testing.T, output string, expected []string) {
	t.Helper()
	for _, want := range expected {
		if !strings.Contains(output, want) {
			t.Errorf("output missing expected string %q\nGot: %s", want, output)
		}
	}
}
