package main

import (
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newAllocCmd())
}

func newAllocCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alloc <address> <size>",
		Short: "Allocate a segment",
		Long: `The alloc command reserves size bytes at address inside the storage
region and prints the assigned segment id. Numbers accept 0x prefixes.

Example:
  oximctl alloc 0x08060000 4096`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAlloc(args)
		},
	}
	return cmd
}

func runAlloc(args []string) error {
	addr, err := parseUint32(args[0], "address")
	if err != nil {
		return err
	}
	size, err := parseUint32(args[1], "size")
	if err != nil {
		return err
	}

	s, err := openSession()
	if err != nil {
		return err
	}

	seg, err := s.store.Allocate(addr, size)
	if err != nil {
		_ = s.close(false)
		return err
	}
	if err := s.close(true); err != nil {
		return err
	}

	if jsonOut {
		return printJSON(segmentInfo(seg))
	}
	printInfo("Allocated segment %d at 0x%08X (%s)\n", seg.ID(), seg.Address(), humanize.IBytes(uint64(seg.Size())))
	return nil
}
