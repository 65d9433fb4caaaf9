package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/wucoord/wu/internal/types"
)

var blockReason string

var blockCmd = &cobra.Command{
	Use:   "block [WU-id]",
	Short: "Mark an in-progress unit as blocked",
	Long: `Mark an in-progress work unit as blocked on something external.

Under the 'all' lock policy a blocked unit keeps its lane slot; under
'active' it gives the slot back. A blocked unit cannot go straight
back to ready; unblock it first.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTransition(cmd, args, types.EventBlock, blockReason, "Blocked")
	},
}

var unblockCmd = &cobra.Command{
	Use:   "unblock [WU-id]",
	Short: "Resume a blocked unit",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTransition(cmd, args, types.EventUnblock, "", "Resumed")
	},
}

func runTransition(cmd *cobra.Command, args []string, et types.EventType, note, verb string) error {
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
	next, err := a.transition(cmd.Context(), id, et, note)
	if err != nil {
		return err
	}
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Printf("%s %s %s (now %s)\n", green("✓"), verb, id, next)
	return nil
}

func init() {
	blockCmd.Flags().StringVarP(&blockReason, "reason", "r", "", "what the unit is blocked on")
	rootCmd.AddCommand(blockCmd)
	rootCmd.AddCommand(unblockCmd)
}
