package main

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newImportCmd())
}

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <id> <file>",
		Short: "Append a file's bytes to a segment",
		Long: `The import command appends the contents of file (or stdin for "-") at the
segment's write cursor.

Example:
  oximctl import 0 samples.bin
  cat samples.bin | oximctl import 0 -`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(args)
		},
	}
	return cmd
}

func runImport(args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	data, err := readInput(args[1])
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
	if err := s.store.Import(seg, data); err != nil {
		_ = s.close(false)
		return err
	}
	if err := s.close(true); err != nil {
		return err
	}

	if jsonOut {
		return printJSON(segmentInfo(seg))
	}
	printInfo("Imported %s into segment %d (%s left)\n",
		humanize.IBytes(uint64(len(data))), id, humanize.IBytes(uint64(seg.SpaceLeft())))
	return nil
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return data, nil
}
