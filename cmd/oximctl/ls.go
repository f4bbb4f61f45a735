package main

import (
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/NgocKhanh0912/pulse-oximetry/flash"
	"github.com/NgocKhanh0912/pulse-oximetry/storage"
)

func init() {
	rootCmd.AddCommand(newLsCmd())
}

func newLsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List active segments and region usage",
		Long: `The ls command lists the active segments in address order followed by
region usage and the free extents.

Example:
  oximctl ls
  oximctl ls --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLs(args)
		},
	}
	return cmd
}

// segmentJSON is the JSON shape of one segment.
type segmentJSON struct {
	ID        uint8  `json:"id"`
	Address   uint32 `json:"address"`
	Size      uint32 `json:"size"`
	Written   uint32 `json:"written"`
	SpaceLeft uint32 `json:"spaceLeft"`
}

func segmentInfo(seg *storage.Segment) segmentJSON {
	return segmentJSON{
		ID:        seg.ID(),
		Address:   seg.Address(),
		Size:      seg.Size(),
		Written:   seg.Written(),
		SpaceLeft: seg.SpaceLeft(),
	}
}

func runLs(args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.close(false)

	segs := s.store.Segments()
	stats := s.store.Stats()
	gaps := s.store.Gaps()

	if jsonOut {
		out := struct {
			Region   flash.Region   `json:"region"`
			Segments []segmentJSON  `json:"segments"`
			Stats    storage.Stats  `json:"stats"`
			Gaps     []flash.Region `json:"gaps"`
		}{Region: s.store.Region(), Segments: make([]segmentJSON, 0, len(segs)), Stats: stats, Gaps: gaps}
		for _, seg := range segs {
			out.Segments = append(out.Segments, segmentInfo(seg))
		}
		return printJSON(out)
	}

	printInfo("Region %s\n", s.store.Region())
	if len(segs) == 0 {
		printInfo("  (no segments)\n")
	}
	for _, seg := range segs {
		printInfo("  #%-3d 0x%08X  %9s  written %9s  left %9s\n",
			seg.ID(), seg.Address(),
			humanize.IBytes(uint64(seg.Size())),
			humanize.IBytes(uint64(seg.Written())),
			humanize.IBytes(uint64(seg.SpaceLeft())))
	}
	printInfo("\n%d active, %s reserved, %s written, %s free\n",
		stats.Active,
		humanize.IBytes(uint64(stats.Reserved)),
		humanize.IBytes(uint64(stats.Written)),
		humanize.IBytes(uint64(stats.Free)))
	for _, g := range gaps {
		printVerbose("  gap %s\n", g)
	}
	return nil
}
