package main

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/wucoord/wu/internal/workspace"
)

var repairApply bool

var repairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Repair coordination inconsistencies",
	Long: `Repair the violations 'wu check' finds. The event log is
authoritative: documents and markers are rewritten to match it.
Duplicated identifiers are untangled by moving the later unit to a
fresh id and rewriting its events and document.

The default is a dry run that prints what would change. With --apply,
changes that live on the coordination line are made in a short-lived
repair workspace and published with a single push; if that push loses
a race against concurrent coordination writes, nothing is applied and
the repair should be retried.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		if err := a.requireInit(); err != nil {
			return err
		}
		d, closeStore, err := newDoctor(a)
		if err != nil {
			return err
		}
		defer closeStore()

		dryRun := !repairApply
		yellow := color.New(color.FgYellow).SprintFunc()
		green := color.New(color.FgGreen).SprintFunc()
		if dryRun {
			fmt.Printf("%s dry run; use --apply to write\n\n", yellow("⚠"))
		}

		plans, err := d.RemapDuplicates(cmd.Context(), dryRun)
		if err != nil {
			return repairErr(err)
		}
		for _, p := range plans {
			if p.NewID == p.OldID {
				fmt.Printf("%s misnamed document for %s moves to its canonical file\n", green("✓"), p.OldID)
				continue
			}
			fmt.Printf("%s duplicate id %s: later unit moves to %s\n", green("✓"), p.OldID, p.NewID)
		}

		violations, err := d.CheckAll(cmd.Context())
		if err != nil {
			return err
		}
		res, err := d.Repair(cmd.Context(), violations, dryRun)
		if err != nil {
			return repairErr(err)
		}

		for _, v := range res.Applied {
			fmt.Printf("%s %s\n", green("✓"), v)
		}
		for _, v := range res.Skipped {
			if v.Kind != "duplicate-identifier" {
				fmt.Printf("%s not auto-repairable: %s\n", yellow("⚠"), v)
			}
		}
		if len(res.Applied) == 0 && len(plans) == 0 {
			fmt.Println("nothing to repair")
		}
		return nil
	},
}

func repairErr(err error) error {
	if errors.Is(err, workspace.ErrRepairConflict) {
		return fmt.Errorf("%w; rerun 'wu repair --apply'", err)
	}
	return err
}

func init() {
	repairCmd.Flags().BoolVar(&repairApply, "apply", false, "apply repairs instead of previewing")
	rootCmd.AddCommand(repairCmd)
}
