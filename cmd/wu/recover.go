package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/wucoord/wu/internal/doctor"
)

var (
	recoverDryRun bool
	recoverReset  bool
)

var recoverCmd = &cobra.Command{
	Use:   "recover [WU-id]",
	Short: "Recover zombie work units",
	Long: `Recover zombies: units the log says are in_progress whose claim
workspace has vanished (crashed agent, deleted worktree). Recovery
releases the unit back to ready.

Attempts are counted per unit; past the configured bound the unit is
escalated and automatic recovery refuses to touch it. After fixing it
by hand, clear the counter with --reset.

Without an id, scans and recovers every zombie.`,
	Args: cobra.MaximumNArgs(1),
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

		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()

		if recoverReset {
			if len(args) != 1 {
				return fmt.Errorf("--reset needs a unit id")
			}
			if err := d.ResetRecovery(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("%s recovery re-armed for %s\n", green("✓"), args[0])
			return nil
		}

		var outcomes []doctor.RecoveryOutcome
		if len(args) == 1 {
			out, err := d.Recover(cmd.Context(), args[0], recoverDryRun)
			if err != nil {
				if errors.Is(err, doctor.ErrManualIntervention) {
					fmt.Printf("%s %v\n", red("✗"), err)
					os.Exit(1)
				}
				return err
			}
			outcomes = []doctor.RecoveryOutcome{*out}
		} else {
			outcomes, err = d.RecoverAll(cmd.Context(), recoverDryRun)
			if err != nil {
				return err
			}
		}

		if len(outcomes) == 0 {
			fmt.Println("no zombies found")
			return nil
		}
		for _, o := range outcomes {
			switch {
			case o.Escalated:
				fmt.Printf("%s %s: manual intervention required (%d attempts); fix by hand, then 'wu recover --reset %s'\n",
					red("✗"), o.WU, o.Attempt, o.WU)
			case recoverDryRun:
				fmt.Printf("would recover %s (attempt %d)\n", o.WU, o.Attempt)
			default:
				fmt.Printf("%s recovered %s back to ready (attempt %d)\n", green("✓"), o.WU, o.Attempt)
			}
		}
		return nil
	},
}

func init() {
	recoverCmd.Flags().BoolVar(&recoverDryRun, "dry-run", false, "report zombies without recovering")
	recoverCmd.Flags().BoolVar(&recoverReset, "reset", false, "clear the attempt counter after manual intervention")
	rootCmd.AddCommand(recoverCmd)
}
