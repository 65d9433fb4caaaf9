package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/wucoord/wu/internal/eventlog"
	"github.com/wucoord/wu/internal/lane"
	"github.com/wucoord/wu/internal/types"
	"github.com/wucoord/wu/internal/wuctx"
	"github.com/wucoord/wu/internal/wudoc"
)

var claimBranchPR bool

var claimCmd = &cobra.Command{
	Use:   "claim <WU-id>",
	Short: "Claim a work unit and get an isolated workspace",
	Long: `Claim a ready work unit for exclusive work.

Admission is checked against the unit's lane: if the lane is at its
WIP limit under its lock policy, the claim is refused and the
occupying units are listed.

By default the claim creates an isolated git worktree under the
workspaces directory, on a branch named lane/<lane>/wu-<id>. Work
there; coordinated writes to the main checkout stay blocked.

With --branch-pr the claim instead records a branch-based flow: no
worktree is created, and write enforcement allows main-checkout writes
while the recorded branch is checked out.

Admission is optimistic: it reads current shared state but takes no
global lock. Two racing claims are resolved when the second push of
.wu/ state is rejected; re-check and release if you lose.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		if err := a.requireInit(); err != nil {
			return err
		}
		id := args[0]
		if err := types.ValidateID(id); err != nil {
			return err
		}

		doc, err := wudoc.ReadByID(a.cfg.UnitsDirPath(a.root), id)
		if err != nil {
			if errors.Is(err, types.ErrNotFound) {
				return fmt.Errorf("no unit document for %s; author it under %s first",
					id, a.cfg.UnitsDirPath(a.root))
			}
			return err
		}

		derived, err := a.log.Load()
		if err != nil {
			return err
		}

		// A unit with no logged history yet gets its create event on
		// first claim, so externally authored documents just work.
		st, known := derived.Get(id)
		if known {
			if err := types.ValidateTransition(st.Status, types.StatusInProgress); err != nil {
				return err
			}
		}

		if err := a.lanes.ValidateLane(doc.Unit.Lane, a.cfg.StrictLanes); err != nil {
			return err
		}
		if j := a.lanes.CheckJustification(doc.Unit.Lane); j.Warning != "" {
			yellow := color.New(color.FgYellow).SprintFunc()
			fmt.Printf("%s %s\n", yellow("⚠"), j.Warning)
		}

		avail, err := a.lanes.Admit(laneSnapshot(derived), doc.Unit.Lane, id)
		if err != nil {
			var capErr *lane.CapacityError
			if errors.As(err, &capErr) {
				red := color.New(color.FgRed).SprintFunc()
				fmt.Printf("%s Lane %q is full (%d/%d in use)\n",
					red("✗"), doc.Unit.Lane, avail.CurrentCount, avail.WipLimit)
				for _, occ := range avail.InProgressWUs {
					fmt.Printf("    occupied by %s\n", occ)
				}
				os.Exit(1)
			}
			return err
		}

		if !known {
			create := types.NewEvent(types.EventCreate, id, time.Now())
			create.Lane = doc.Unit.Lane
			create.Title = doc.Unit.Title
			if err := a.log.Append(create); err != nil {
				return err
			}
		}

		slug := types.LaneSlug(doc.Unit.Lane)
		green := color.New(color.FgGreen).SprintFunc()

		if claimBranchPR {
			branch := wuctx.BranchName(slug, id)
			ev := types.NewEvent(types.EventClaim, id, time.Now())
			ev.Mode = types.ClaimModeBranchPR
			ev.Branch = branch
			if err := a.log.Append(ev); err != nil {
				return err
			}
			if err := a.updateDoc(id, func(u *types.WorkUnit) {
				now := time.Now().UTC()
				u.Status = types.StatusInProgress
				u.ClaimedAt = &now
				u.ClaimedMode = types.ClaimModeBranchPR
				u.Branch = branch
			}); err != nil {
				return err
			}
			fmt.Printf("%s Claimed %s (branch-pr mode)\n", green("✓"), id)
			fmt.Printf("\nWork on branch %s in the main checkout:\n", branch)
			fmt.Printf("  git checkout -b %s\n", branch)
			return nil
		}

		ws, err := a.ws.Create(cmd.Context(), id, slug)
		if err != nil {
			return fmt.Errorf("failed to create workspace: %w", err)
		}

		ev := types.NewEvent(types.EventClaim, id, time.Now())
		ev.Mode = types.ClaimModeWorkspace
		if err := a.log.Append(ev); err != nil {
			return err
		}
		if err := a.updateDoc(id, func(u *types.WorkUnit) {
			now := time.Now().UTC()
			u.Status = types.StatusInProgress
			u.ClaimedAt = &now
			u.ClaimedMode = types.ClaimModeWorkspace
			u.WorktreePath = ws.Path
		}); err != nil {
			return err
		}

		fmt.Printf("%s Claimed %s\n", green("✓"), id)
		fmt.Printf("  workspace: %s\n", ws.Path)
		fmt.Printf("  branch:    %s\n", ws.Branch)
		fmt.Printf("\ncd %s\n", ws.Path)
		return nil
	},
}

// laneSnapshot projects derived state into the admission input.
func laneSnapshot(derived *eventlog.DerivedState) []lane.UnitStatus {
	var out []lane.UnitStatus
	for _, id := range derived.IDs() {
		st, _ := derived.Get(id)
		out = append(out, lane.UnitStatus{ID: id, Lane: st.Lane, Status: st.Status})
	}
	return out
}

func init() {
	claimCmd.Flags().BoolVar(&claimBranchPR, "branch-pr", false, "claim for branch+PR flow instead of an isolated workspace")
	rootCmd.AddCommand(claimCmd)
}
