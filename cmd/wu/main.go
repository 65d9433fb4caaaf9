// wu is the work unit coordination CLI: an event-sourced lifecycle
// store, lane-based admission control, and consistency tooling for
// multi-agent development in one repository.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wucoord/wu/internal/config"
	"github.com/wucoord/wu/internal/eventlog"
	"github.com/wucoord/wu/internal/git"
	"github.com/wucoord/wu/internal/lane"
	"github.com/wucoord/wu/internal/storage"
	"github.com/wucoord/wu/internal/workspace"
)

var repoFlag string

var rootCmd = &cobra.Command{
	Use:   "wu",
	Short: "Work unit coordination for multi-agent development",
	Long: `wu coordinates concurrent work in one repository.

Work units live in an append-only event log (.wu/events.jsonl) that is
the single source of truth for status. Claims get isolated git
worktrees, lanes cap work-in-progress, and a consistency checker
repairs drift between the log, unit documents, and on-disk markers.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&repoFlag, "repo", "", "repository root (default: discovered from cwd)")
}

// app bundles the wired dependencies every command needs.
type app struct {
	root  string
	cfg   config.Config
	git   git.Operations
	log   *eventlog.Log
	lanes *lane.Registry
	ws    *workspace.Manager
}

// loadApp discovers the repository and wires the coordination core.
func loadApp(ctx context.Context) (*app, error) {
	g, err := git.NewGit(ctx)
	if err != nil {
		return nil, err
	}

	root := repoFlag
	if root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		root, err = g.RepoRoot(ctx, cwd)
		if err != nil {
			return nil, fmt.Errorf("not inside a git repository (or pass --repo): %w", err)
		}
	}

	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}

	lanes, err := lane.LoadConfig(cfg.LanesPath(root))
	if err != nil {
		return nil, err
	}

	ws, err := workspace.NewManager(workspace.Config{
		RepoRoot:      root,
		WorkspacesDir: cfg.WorkspacesDirPath(root),
		BaseBranch:    cfg.BaseBranch,
		KeepBranches:  cfg.KeepBranches,
	}, g)
	if err != nil {
		return nil, err
	}

	return &app{
		root:  root,
		cfg:   cfg,
		git:   g,
		log:   eventlog.New(cfg.EventsPath(root)),
		lanes: lanes,
		ws:    ws,
	}, nil
}

// openStore opens the local bookkeeping database. Callers must Close.
func (a *app) openStore() (*storage.Store, error) {
	return storage.Open(a.cfg.DBPath(a.root))
}

// requireInit fails when the repository has no coordination state yet.
func (a *app) requireInit() error {
	if _, err := os.Stat(a.cfg.StateDirPath(a.root)); os.IsNotExist(err) {
		return fmt.Errorf("no %s directory here; run 'wu init' first", a.cfg.StateDir)
	}
	return nil
}
