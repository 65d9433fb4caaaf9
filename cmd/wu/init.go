package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize work unit coordination in this repository",
	Long: `Initialize a .wu/ directory with the coordination layout.

This creates:
  - .wu/config.yaml       (tool configuration)
  - .wu/lanes.yaml        (lane definitions, starts empty)
  - .wu/events.jsonl      (append-only event log)
  - .wu/units/            (unit documents)
  - .wu/locks/            (done stamps)
  - .wu/workspaces/       (claim worktrees, git-ignored)
  - plans/                (planning documents)

Until .wu/ exists, write enforcement allows everything: a repository
without coordination metadata behaves as if wu were not installed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}

		stateDir := a.cfg.StateDirPath(a.root)
		if _, err := os.Stat(stateDir); err == nil {
			return fmt.Errorf("%s already exists", stateDir)
		}

		for _, dir := range []string{
			stateDir,
			a.cfg.UnitsDirPath(a.root),
			a.cfg.LocksDirPath(a.root),
			a.cfg.WorkspacesDirPath(a.root),
			filepath.Join(a.root, "plans"),
		} {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create %s: %w", dir, err)
			}
		}

		files := map[string]string{
			a.cfg.EventsPath(a.root): "",
			a.cfg.LanesPath(a.root):  defaultLanesYAML,
			filepath.Join(stateDir, "config.yaml"): fmt.Sprintf(
				"prefix: %s\nbase_branch: %s\narchive_after_days: %d\n",
				a.cfg.Prefix, a.cfg.BaseBranch, a.cfg.ArchiveAfterDays),
			// Worktrees and the local database never belong in git.
			filepath.Join(stateDir, ".gitignore"): "workspaces/\nwu.db*\n",
		}
		for path, content := range files {
			if err := os.WriteFile(path, []byte(content), 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", path, err)
			}
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Initialized work unit coordination in %s\n", green("✓"), stateDir)
		fmt.Printf("\nNext steps:\n")
		fmt.Printf("  1. Define lanes in %s\n", a.cfg.LanesPath(a.root))
		fmt.Printf("  2. Author unit documents under %s\n", a.cfg.UnitsDirPath(a.root))
		fmt.Printf("  3. Commit .wu/ to %s so agents share one view\n", a.cfg.BaseBranch)
		return nil
	},
}

const defaultLanesYAML = `# Lane definitions. Each lane caps concurrent work (wip_limit,
# default 1) and declares a lock policy:
#   all    - in_progress and blocked units both occupy the lane
#   active - only in_progress units occupy the lane
#   none   - the lane never blocks admission
#
# lanes:
#   - name: "Backend: API"
#     wip_limit: 1
#     lock_policy: all
#     patterns: ["internal/api/**"]
#     keywords: ["endpoint", "handler"]
lanes: []
`

func init() {
	rootCmd.AddCommand(initCmd)
}
