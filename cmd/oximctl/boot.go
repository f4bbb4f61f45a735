package main

import (
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newBootCmd())
}

func newBootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "boot",
		Short: "Allocate the configured layout",
		Long: `The boot command allocates every layout entry of the configuration, in
file order. Entries already active at the same address and size are kept.

Example:
  oximctl boot -c board.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBoot(args)
		},
	}
	return cmd
}

type bootJSON struct {
	Name string `json:"name"`
	segmentJSON
	Existing bool `json:"existing"`
}

func runBoot(args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}

	var out []bootJSON
	for _, entry := range s.cfg.Layout {
		if prev, _ := s.store.Neighbors(entry.Address); prev != nil &&
			prev.Address() == entry.Address && prev.Size() == entry.Size {
			out = append(out, bootJSON{Name: entry.Name, segmentJSON: segmentInfo(prev), Existing: true})
			continue
		}
		seg, err := s.store.Allocate(entry.Address, entry.Size)
		if err != nil {
			_ = s.close(true)
			return err
		}
		out = append(out, bootJSON{Name: entry.Name, segmentJSON: segmentInfo(seg)})
	}
	if err := s.close(true); err != nil {
		return err
	}

	if jsonOut {
		if out == nil {
			out = []bootJSON{}
		}
		return printJSON(out)
	}
	for _, b := range out {
		state := "allocated"
		if b.Existing {
			state = "kept"
		}
		printInfo("%-12s segment %-3d at 0x%08X  %s  (%s)\n",
			b.Name, b.ID, b.Address, humanize.IBytes(uint64(b.Size)), state)
	}
	return nil
}
