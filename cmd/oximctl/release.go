package main

import (
	"github.com/spf13/cobra"

	"github.com/NgocKhanh0912/pulse-oximetry/storage"
)

func init() {
	rootCmd.AddCommand(newReleaseCmd())
}

func newReleaseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "release <id>",
		Short: "Release a segment",
		Long: `The release command migrates the segment's payload to the backup region
(when configured), erases its range and frees the id.

Example:
  oximctl release 0`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRelease(args)
		},
	}
	return cmd
}

func runRelease(args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	s, err := openSession()
	if err != nil {
		return err
	}
	seg, err := s.segment(id)
	if err != nil {
		_ = s.close(false)
		return err
	}
	written := seg.Written()

	if err := s.store.Release(seg); err != nil {
		printVerbose("Release status: %s\n", storage.Result(err))
		_ = s.close(false)
		return err
	}
	if err := s.close(true); err != nil {
		return err
	}

	if jsonOut {
		return printJSON(map[string]any{"id": id, "migrated": s.backup != nil && written > 0})
	}
	printInfo("Released segment %d\n", id)
	if s.backup != nil && written > 0 {
		printVerbose("  %d bytes migrated to backup region\n", written)
	}
	return nil
}
