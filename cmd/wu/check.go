package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/wucoord/wu/internal/doctor"
)

var checkCmd = &cobra.Command{
	Use:   "check [WU-id]",
	Short: "Check coordination state for inconsistencies",
	Long: `Compare the three coordination surfaces: the event log (the
source of truth), unit documents, and on-disk markers (lock stamps,
workspaces).

Prints one line per violation and exits 1 when any are found. Run
'wu repair' to fix the repairable ones.`,
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

		var violations []doctor.Violation
		if len(args) == 1 {
			violations, err = d.Check(cmd.Context(), args[0])
		} else {
			violations, err = d.CheckAll(cmd.Context())
		}
		if err != nil {
			return err
		}

		green := color.New(color.FgGreen).SprintFunc()
		if len(violations) == 0 {
			fmt.Printf("%s coordination state is consistent\n", green("✓"))
			return nil
		}

		red := color.New(color.FgRed).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		repairable := 0
		for _, v := range violations {
			mark := red("✗")
			if v.Repairable {
				mark = yellow("⚠")
				repairable++
			}
			fmt.Printf("%s %s\n", mark, v)
		}
		fmt.Printf("\n%d violations, %d repairable (run 'wu repair --apply')\n",
			len(violations), repairable)
		os.Exit(1)
		return nil
	},
}

// newDoctor wires the doctor from an app. The returned func closes the
// bookkeeping store.
func newDoctor(a *app) (*doctor.Doctor, func(), error) {
	store, err := a.openStore()
	if err != nil {
		return nil, nil, err
	}
	d := &doctor.Doctor{
		RepoRoot: a.root,
		Config:   a.cfg,
		Log:      a.log,
		WS:       a.ws,
		Store:    store,
	}
	return d, func() { store.Close() }, nil
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
