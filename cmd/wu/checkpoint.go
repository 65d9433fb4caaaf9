package main

import (
	"github.com/spf13/cobra"

	"github.com/wucoord/wu/internal/types"
)

var checkpointNote string

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint [WU-id]",
	Short: "Save progress and park the unit as waiting",
	Long: `Record a checkpoint: progress is saved and the unit parks as
waiting. A waiting unit must be claimed again to resume; it cannot
silently drop back to ready.

Use this when stepping away mid-task so the lane slot and workspace
state are visible to everyone else.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTransition(cmd, args, types.EventCheckpoint, checkpointNote, "Checkpointed")
	},
}

var releaseCmd = &cobra.Command{
	Use:   "release [WU-id]",
	Short: "Give up a claim without completing",
	Long: `Release a claimed unit back to ready. The claim fields are
cleared from the unit document; remove or keep the workspace manually
if you had uncommitted work there.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTransition(cmd, args, types.EventRelease, "", "Released")
	},
}

func init() {
	checkpointCmd.Flags().StringVarP(&checkpointNote, "note", "n", "", "what was saved at this checkpoint")
	rootCmd.AddCommand(checkpointCmd)
	rootCmd.AddCommand(releaseCmd)
}
