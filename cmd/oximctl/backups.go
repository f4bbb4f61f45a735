package main

import (
	"errors"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var backupsClear bool

func init() {
	rootCmd.AddCommand(newBackupsCmd())
}

func newBackupsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backups",
		Short: "List records in the backup region",
		Long: `The backups command lists the payloads migrated to the backup region by
release, oldest first. The region only grows; once it is full, releasing a
segment that holds data fails until the region is cleared with --clear.

Example:
  oximctl backups
  oximctl backups --json
  oximctl backups --clear`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBackups(args)
		},
	}
	cmd.Flags().BoolVar(&backupsClear, "clear", false, "Erase the backup region and every record in it")
	return cmd
}

type backupJSON struct {
	ID      uint8  `json:"id"`
	Address uint32 `json:"address"`
	Length  int    `json:"length"`
}

func runBackups(args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	if s.backup == nil {
		_ = s.close(false)
		return errors.New("no backup region configured")
	}
	if backupsClear {
		return clearBackups(s)
	}
	defer s.close(false)

	recs, err := s.backup.Records()
	if err != nil {
		return err
	}

	if jsonOut {
		out := make([]backupJSON, 0, len(recs))
		for _, r := range recs {
			out = append(out, backupJSON{ID: r.ID, Address: r.Addr, Length: len(r.Payload)})
		}
		return printJSON(out)
	}

	printInfo("Backup region %s: %d records, %s used, %s free\n",
		s.backup.Region(), len(recs),
		humanize.IBytes(uint64(s.backup.Used())),
		humanize.IBytes(uint64(s.backup.Free())))
	for _, r := range recs {
		printInfo("  segment %-3d at 0x%08X  %s\n", r.ID, r.Addr, humanize.IBytes(uint64(len(r.Payload))))
	}
	return nil
}

func clearBackups(s *session) error {
	used := s.backup.Used()
	if err := s.backup.Erase(); err != nil {
		_ = s.close(false)
		return err
	}
	if err := s.close(true); err != nil {
		return err
	}

	if jsonOut {
		return printJSON(map[string]any{"region": s.backup.Region(), "cleared": used})
	}
	printInfo("Cleared backup region %s (%s freed)\n", s.backup.Region(), humanize.IBytes(uint64(used)))
	return nil
}
