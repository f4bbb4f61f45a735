package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var exportLength uint32

func init() {
	rootCmd.AddCommand(newExportCmd())
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <id> <file>",
		Short: "Read a segment's payload back",
		Long: `The export command writes the segment's payload to file (or stdout for
"-"). By default everything written so far is exported.

Example:
  oximctl export 0 out.bin
  oximctl export 0 - --length 64 | xxd`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(args)
		},
	}
	cmd.Flags().Uint32VarP(&exportLength, "length", "n", 0, "Number of bytes to export (default: all written)")
	return cmd
}

func runExport(args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.close(false)

	seg, err := s.segment(id)
	if err != nil {
		return err
	}
	n := exportLength
	if n == 0 {
		n = seg.Written()
	}
	if n == 0 {
		return fmt.Errorf("segment %d holds no data", id)
	}

	out := make([]byte, n)
	if err := s.store.Export(seg, out); err != nil {
		return err
	}

	if args[1] == "-" {
		_, err := os.Stdout.Write(out)
		return err
	}
	if err := os.WriteFile(args[1], out, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	printVerbose("Exported %d bytes from segment %d to %s\n", n, id, args[1])
	return nil
}
