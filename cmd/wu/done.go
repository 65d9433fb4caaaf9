package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/wucoord/wu/internal/types"
)

var doneKeepWorkspace bool

var doneCmd = &cobra.Command{
	Use:   "done [WU-id]",
	Short: "Complete a work unit",
	Long: `Mark a work unit done. Done is terminal: the unit can never
transition again, and its lock stamp is written.

Without an argument the unit is derived from the current workspace or
branch. The claim workspace is removed unless --keep-workspace is
given; merge or push your work branch before completing.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		if err := a.requireInit(); err != nil {
			return err
		}
		id, err := a.resolveID(cmd.Context(), args)
		if err != nil {
			return err
		}

		if _, err := a.transition(cmd.Context(), id, types.EventComplete, ""); err != nil {
			return err
		}
		if err := writeLockStamp(a, id); err != nil {
			return err
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Completed %s\n", green("✓"), id)

		if !doneKeepWorkspace {
			ws, err := a.ws.Find(id)
			if err != nil {
				return err
			}
			if ws != nil {
				if err := a.ws.Remove(cmd.Context(), ws); err != nil {
					return fmt.Errorf("completed, but workspace cleanup failed: %w", err)
				}
				fmt.Printf("  removed workspace %s\n", ws.Path)
			}
		}
		return nil
	},
}

func writeLockStamp(a *app, id string) error {
	stamp := fmt.Sprintf("locked_at: %s\n", time.Now().UTC().Format(time.RFC3339))
	return writeStateFile(a, "locks", id+".lock", stamp)
}

func init() {
	doneCmd.Flags().BoolVar(&doneKeepWorkspace, "keep-workspace", false, "keep the claim worktree after completion")
	rootCmd.AddCommand(doneCmd)
}
