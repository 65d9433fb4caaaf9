package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/wucoord/wu/internal/types"
)

var (
	statusAll    bool
	statusEvents int
)

var statusCmd = &cobra.Command{
	Use:   "status [WU-id]",
	Short: "Show work unit status derived from the event log",
	Long: `Show work unit status. Status is always derived by replaying the
event log; unit documents are projections and may lag (run 'wu check'
if they disagree).

With an id, shows that unit. Otherwise lists active units; --all
includes done units, --events N appends the last N raw events.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		if err := a.requireInit(); err != nil {
			return err
		}

		derived, err := a.log.Load()
		if err != nil {
			return err
		}

		yellow := color.New(color.FgYellow).SprintFunc()
		for _, w := range derived.Warnings() {
			fmt.Printf("%s %s\n", yellow("⚠"), w)
		}

		if len(args) == 1 {
			id := args[0]
			if err := types.ValidateID(id); err != nil {
				return err
			}
			st, ok := derived.Get(id)
			if !ok {
				return fmt.Errorf("unknown work unit %s: %w", id, types.ErrNotFound)
			}
			fmt.Printf("%s  %s\n", id, colorStatus(st.Status))
			fmt.Printf("  title: %s\n", st.Title)
			fmt.Printf("  lane:  %s\n", st.Lane)
			fmt.Printf("  last event: %s\n", st.LastEventAt.Local().Format("2006-01-02 15:04:05"))
			return printEventTail(a, statusEvents)
		}

		var shown int
		for _, id := range derived.IDs() {
			st, _ := derived.Get(id)
			if st.Status.IsTerminal() && !statusAll {
				continue
			}
			fmt.Printf("%-10s %-14s %-24s %s\n", id, colorStatus(st.Status), st.Lane, st.Title)
			shown++
		}
		if shown == 0 {
			fmt.Println("no active work units")
		}
		return printEventTail(a, statusEvents)
	},
}

func colorStatus(s types.Status) string {
	switch s {
	case types.StatusReady:
		return color.CyanString(string(s))
	case types.StatusInProgress:
		return color.GreenString(string(s))
	case types.StatusBlocked:
		return color.RedString(string(s))
	case types.StatusWaiting:
		return color.YellowString(string(s))
	case types.StatusDone:
		return color.HiBlackString(string(s))
	}
	return string(s)
}

func printEventTail(a *app, n int) error {
	if n <= 0 {
		return nil
	}
	events, err := a.log.Tail(n)
	if err != nil {
		return err
	}
	fmt.Printf("\nlast %d events:\n", len(events))
	for _, ev := range events {
		line := fmt.Sprintf("  %s  %-10s %s", ev.Timestamp.Local().Format("01-02 15:04"), ev.Type, ev.WU)
		if ev.Note != "" {
			line += "  (" + ev.Note + ")"
		}
		fmt.Println(line)
	}
	return nil
}

func init() {
	statusCmd.Flags().BoolVarP(&statusAll, "all", "a", false, "include done units")
	statusCmd.Flags().IntVar(&statusEvents, "events", 0, "also show the last N events")
	rootCmd.AddCommand(statusCmd)
}
