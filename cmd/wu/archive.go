package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/wucoord/wu/internal/archive"
)

var (
	archiveDryRun bool
	archiveDays   int
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Move long-finished units out of the live event log",
	Long: `Archive work units that are done and whose last event is older
than the threshold (default from config, 90 days). Each archived
unit's full history moves into a monthly bucket file under
.wu/archive/, chosen by the UTC month of its last event; a unit's
events are never split between the live log and a bucket.

Active units are never archived, no matter how old.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		if err := a.requireInit(); err != nil {
			return err
		}

		days := archiveDays
		if days == 0 {
			days = a.cfg.ArchiveAfterDays
		}

		res, err := archive.Run(a.log, archive.Options{
			ArchiveDir: a.cfg.ArchiveDirPath(a.root),
			After:      time.Duration(days) * 24 * time.Hour,
			Now:        time.Now(),
			DryRun:     archiveDryRun,
		})
		if err != nil {
			return err
		}

		yellow := color.New(color.FgYellow).SprintFunc()
		green := color.New(color.FgGreen).SprintFunc()
		if res.DryRun {
			fmt.Printf("%s dry run; nothing written\n\n", yellow("⚠"))
		}

		fmt.Printf("archived older than %dd: %d units (%d events)\n",
			days, len(res.ArchivedWUs), res.ArchivedEvents)
		fmt.Printf("retained, still active:    %d units\n", res.RetainedActive)
		fmt.Printf("retained, within %dd:     %d units\n", days, res.RetainedRecent)

		for bucket, n := range res.Buckets {
			fmt.Printf("  %s  +%d events\n", bucket, n)
		}
		if !res.DryRun && len(res.ArchivedWUs) > 0 {
			fmt.Printf("\n%s commit and push %s to publish\n", green("✓"), a.cfg.StateDir)
		}
		return nil
	},
}

func init() {
	archiveCmd.Flags().BoolVar(&archiveDryRun, "dry-run", false, "preview without writing")
	archiveCmd.Flags().IntVar(&archiveDays, "days", 0, "override the age threshold in days")
	rootCmd.AddCommand(archiveCmd)
}
