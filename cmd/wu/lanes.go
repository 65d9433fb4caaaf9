package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/wucoord/wu/internal/types"
)

var (
	lanesSuggest     bool
	lanesPaths       []string
	lanesDescription string
)

var lanesCmd = &cobra.Command{
	Use:   "lanes",
	Short: "List lanes and their WIP usage",
	Long: `List configured lanes with their lock policy, WIP limit, and
current occupancy derived from the event log.

With --suggest, score the configured lanes against --path globs and a
--desc description and print the best match. Suggestions are advisory;
the lane on the unit document is what admission uses.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		if err := a.requireInit(); err != nil {
			return err
		}

		if lanesSuggest {
			return runSuggest(a)
		}

		derived, err := a.log.Load()
		if err != nil {
			return err
		}
		snapshot := laneSnapshot(derived)

		names := a.lanes.Names()
		if len(names) == 0 {
			fmt.Printf("no lanes configured; edit %s\n", a.cfg.LanesPath(a.root))
			return nil
		}

		yellow := color.New(color.FgYellow).SprintFunc()
		for _, name := range names {
			avail := a.lanes.CheckLaneFree(snapshot, name, "")
			slot := fmt.Sprintf("%d/%d", avail.CurrentCount, avail.WipLimit)
			policy := a.lanes.LockPolicyFor(name)

			line := fmt.Sprintf("%-28s %-8s wip %-5s", name, policy, slot)
			if !avail.Free {
				line += "  " + color.RedString("full")
			}
			fmt.Println(line)
			if len(avail.InProgressWUs) > 0 {
				fmt.Printf("  in progress: %s\n", strings.Join(avail.InProgressWUs, ", "))
			}
			if j := a.lanes.CheckJustification(name); j.Warning != "" {
				fmt.Printf("  %s %s\n", yellow("⚠"), j.Warning)
			}
		}
		return nil
	},
}

func runSuggest(a *app) error {
	if len(lanesPaths) == 0 && lanesDescription == "" {
		return fmt.Errorf("--suggest needs --path globs and/or --desc text to score against")
	}
	s := a.lanes.Suggest(lanesPaths, lanesDescription)
	if s.Lane == "" {
		fmt.Println("no lane matched; leave the unit on its parent lane or add patterns to lanes.yaml")
		return nil
	}
	kind := "sub-lane"
	if s.ParentOnly {
		kind = "parent lane (low confidence)"
	}
	fmt.Printf("suggested %s: %s (score %d)\n", kind, s.Lane, s.Score)
	fmt.Printf("  slug: %s\n", types.LaneSlug(s.Lane))
	return nil
}

func init() {
	lanesCmd.Flags().BoolVar(&lanesSuggest, "suggest", false, "suggest a lane for new work")
	lanesCmd.Flags().StringArrayVar(&lanesPaths, "path", nil, "code path glob the work will touch (repeatable)")
	lanesCmd.Flags().StringVar(&lanesDescription, "desc", "", "short description of the work")
	rootCmd.AddCommand(lanesCmd)
}
