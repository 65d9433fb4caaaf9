// Package config loads the coordination core's configuration from
// .wu/config.yaml, with WU_* environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the coordination core's configuration.
type Config struct {
	// Prefix is the identifier prefix for new work units (e.g. "WU")
	Prefix string

	// StateDir is the coordination state directory, relative to the
	// repository root
	StateDir string

	// WorkspacesDir is where claim worktrees are created, relative to
	// the repository root
	WorkspacesDir string

	// BaseBranch is the coordination line that events and unit
	// documents live on
	BaseBranch string

	// Remote is the git remote repairs and archival push to
	Remote string

	// ProtectedBranches are branches on which coordinated writes are
	// blocked outside a claim workspace
	ProtectedBranches []string

	// ArchiveAfterDays is the age threshold for archiving terminal
	// units. Range: 1-3650.
	ArchiveAfterDays int

	// StrictLanes rejects bare parent lanes that have sub-lanes
	// instead of warning
	StrictLanes bool

	// MaxRecoveryAttempts bounds automatic zombie recovery per unit
	// before escalating to manual intervention. Range: 1-20.
	MaxRecoveryAttempts int

	// KeepBranches preserves work branches after workspace removal
	KeepBranches bool
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Prefix:              "WU",
		StateDir:            ".wu",
		WorkspacesDir:       ".wu/workspaces",
		BaseBranch:          "main",
		Remote:              "origin",
		ProtectedBranches:   []string{"main", "master"},
		ArchiveAfterDays:    90,
		StrictLanes:         false,
		MaxRecoveryAttempts: 3,
		KeepBranches:        false,
	}
}

// Load reads configuration for the repository rooted at repoRoot.
// A missing config file yields the defaults. Environment variables
// prefixed WU_ override file values (WU_BASE_BRANCH, WU_PREFIX, ...).
func Load(repoRoot string) (Config, error) {
	cfg := Default()
	path := filepath.Join(repoRoot, cfg.StateDir, "config.yaml")

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("WU")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("prefix", cfg.Prefix)
	v.SetDefault("workspaces_dir", cfg.WorkspacesDir)
	v.SetDefault("base_branch", cfg.BaseBranch)
	v.SetDefault("remote", cfg.Remote)
	v.SetDefault("protected_branches", cfg.ProtectedBranches)
	v.SetDefault("archive_after_days", cfg.ArchiveAfterDays)
	v.SetDefault("strict_lanes", cfg.StrictLanes)
	v.SetDefault("max_recovery_attempts", cfg.MaxRecoveryAttempts)
	v.SetDefault("keep_branches", cfg.KeepBranches)

	if err := v.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		// No config file, defaults plus env apply.
	}

	cfg.Prefix = v.GetString("prefix")
	cfg.WorkspacesDir = v.GetString("workspaces_dir")
	cfg.BaseBranch = v.GetString("base_branch")
	cfg.Remote = v.GetString("remote")
	cfg.ProtectedBranches = v.GetStringSlice("protected_branches")
	cfg.ArchiveAfterDays = v.GetInt("archive_after_days")
	cfg.StrictLanes = v.GetBool("strict_lanes")
	cfg.MaxRecoveryAttempts = v.GetInt("max_recovery_attempts")
	cfg.KeepBranches = v.GetBool("keep_branches")

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks ranges and required fields.
func (c Config) Validate() error {
	if c.Prefix == "" {
		return fmt.Errorf("prefix cannot be empty")
	}
	for _, r := range c.Prefix {
		if (r < 'A' || r > 'Z') && (r < 'a' || r > 'z') {
			return fmt.Errorf("prefix must be alphabetic, got %q", c.Prefix)
		}
	}
	if c.BaseBranch == "" {
		return fmt.Errorf("base_branch cannot be empty")
	}
	if c.ArchiveAfterDays < 1 || c.ArchiveAfterDays > 3650 {
		return fmt.Errorf("archive_after_days must be in range 1-3650, got %d", c.ArchiveAfterDays)
	}
	if c.MaxRecoveryAttempts < 1 || c.MaxRecoveryAttempts > 20 {
		return fmt.Errorf("max_recovery_attempts must be in range 1-20, got %d", c.MaxRecoveryAttempts)
	}
	if len(c.ProtectedBranches) == 0 {
		return fmt.Errorf("protected_branches cannot be empty")
	}
	return nil
}

// StateDirPath returns the absolute state directory for a repo root.
func (c Config) StateDirPath(repoRoot string) string {
	return filepath.Join(repoRoot, c.StateDir)
}

// WorkspacesDirPath returns the absolute workspaces directory.
func (c Config) WorkspacesDirPath(repoRoot string) string {
	return filepath.Join(repoRoot, c.WorkspacesDir)
}

// EventsPath returns the absolute path of the event log.
func (c Config) EventsPath(repoRoot string) string {
	return filepath.Join(repoRoot, c.StateDir, "events.jsonl")
}

// UnitsDirPath returns the absolute unit documents directory.
func (c Config) UnitsDirPath(repoRoot string) string {
	return filepath.Join(repoRoot, c.StateDir, "units")
}

// LocksDirPath returns the absolute lock marker directory.
func (c Config) LocksDirPath(repoRoot string) string {
	return filepath.Join(repoRoot, c.StateDir, "locks")
}

// LanesPath returns the absolute path of the lane definition file.
func (c Config) LanesPath(repoRoot string) string {
	return filepath.Join(repoRoot, c.StateDir, "lanes.yaml")
}

// ArchiveDirPath returns the absolute archive directory.
func (c Config) ArchiveDirPath(repoRoot string) string {
	return filepath.Join(repoRoot, c.StateDir, "archive")
}

// DBPath returns the absolute path of the local bookkeeping database.
func (c Config) DBPath(repoRoot string) string {
	return filepath.Join(repoRoot, c.StateDir, "wu.db")
}
