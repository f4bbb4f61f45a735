package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/NgocKhanh0912/pulse-oximetry/flash"
)

var formatForce bool

func init() {
	rootCmd.AddCommand(newFormatCmd())
}

func newFormatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "format",
		Short: "Create an erased flash image and an empty registry",
		Long: `The format command writes a fully erased (0xFF) image covering the
configured device window and an empty manifest next to it.

Example:
  oximctl format -i flash.img
  oximctl format -c board.yaml --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFormat(args)
		},
	}
	cmd.Flags().BoolVarP(&formatForce, "force", "f", false, "Overwrite an existing image")
	return cmd
}

func runFormat(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	image := cfg.Device.Image
	if _, err := os.Stat(image); err == nil && !formatForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", image)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	bounds := cfg.Device.Bounds()
	printVerbose("Creating %s at %s\n", image, bounds)
	dev, err := flash.CreateFile(image, bounds)
	if err != nil {
		return err
	}

	s, err := newSession(cfg, dev)
	if err != nil {
		_ = dev.Close()
		return err
	}
	if err := s.save(context.Background()); err != nil {
		_ = dev.Close()
		return err
	}
	if err := dev.Close(); err != nil {
		return err
	}

	if jsonOut {
		return printJSON(map[string]any{
			"image":    image,
			"device":   bounds,
			"region":   s.store.Region(),
			"manifest": s.manifest,
		})
	}
	printInfo("Formatted %s (%s)\n", image, humanize.IBytes(uint64(bounds.Size)))
	printInfo("  storage region: %s\n", s.store.Region())
	if s.backup != nil {
		printInfo("  backup region:  %s\n", s.backup.Region())
	}
	return nil
}
