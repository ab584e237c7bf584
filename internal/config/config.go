// Package config loads the workspace engine's configuration, merging
// built-in defaults, a global config file, a project config file,
// WORKSPACE_* environment variables, and CLI flags into one settled
// WorkspaceConfig, per spec.md §4.6/§6.3. It is viper-backed in the style
// of untoldecay-BeadsLog's internal/config singleton (var v *viper.Viper,
// Initialize()), generalised from a single YAML file to the three formats
// and two-level (global/project) search spec.md requires.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/spraguehouse/workspace-release/internal/errs"
	"github.com/spraguehouse/workspace-release/internal/version"
	"github.com/spraguehouse/workspace-release/internal/workspace"
	"github.com/spraguehouse/workspace-release/pkg/contracts"
)

// configFormats is the extension search order used at both the global and
// project level: first match wins (spec.md §4.6).
var configFormats = []string{"toml", "json", "yaml", "yml"}

// UnifiedVersionSource selects how internal/planner computes the single
// version used by the unified strategy (spec.md §4.3.2).
type UnifiedVersionSource struct {
	// Explicit, if non-empty, is a literal version string and takes
	// precedence over HighestCurrent.
	Explicit string
}

// HighestCurrent reports whether no explicit version was configured, in
// which case the planner derives the unified version from the highest
// current version among workspace packages.
func (u UnifiedVersionSource) HighestCurrent() bool { return u.Explicit == "" }

// PropagationConfig controls cascading version bumps (spec.md §4.3.1 Step B).
type PropagationConfig struct {
	Enabled        bool
	Bump           version.BumpType
	MaxDepth       int
	FailOnCircular bool
}

// ChangelogConfig controls changelog generation (spec.md §4.3.3).
type ChangelogConfig struct {
	Enabled            bool
	PathTemplate       string
	IncludeCommitLinks bool
}

// GitConfig controls the applier's git side effects (spec.md §4.5).
type GitConfig struct {
	CommitMessageTemplate string
	TagTemplate           string
	AllowDirty            bool
}

// WorkspaceConfig is the fully-merged, fully-typed configuration every
// other package consumes. Nothing downstream of Load ever sees a raw
// viper map; planner, changeset, and applier all take a *WorkspaceConfig.
type WorkspaceConfig struct {
	Strategy             workspace.Strategy
	ChangesetsDirectory  string
	ArchiveDirectory     string
	Environments         []string
	DefaultEnvironments  []string
	Propagation          PropagationConfig
	UnifiedVersionSource UnifiedVersionSource
	Changelog            ChangelogConfig
	SnapshotFormat       string
	Git                  GitConfig
	// ReleaseBranch, if set, is the only branch the applier will release
	// from (spec.md §4.5 precondition 4). Empty means unconfigured: any
	// branch is acceptable.
	ReleaseBranch string

	// RepoRoot is the resolved workspace root, not itself a config field,
	// but carried alongside it since every caller needs both together.
	RepoRoot string
}

// EnvironmentSet returns the configured environments as a lookup set.
func (c *WorkspaceConfig) EnvironmentSet() map[string]bool {
	set := make(map[string]bool, len(c.Environments))
	for _, e := range c.Environments {
		set[e] = true
	}
	return set
}

// Options carries the values a caller would otherwise have bound as CLI
// flags (spec.md §4.6's last precedence tier). Zero values are ignored.
type Options struct {
	RepoRoot      string
	Strategy      string
	ConfigFormat  string
	Environments  []string
}

// Load resolves a WorkspaceConfig for repoRoot following the precedence
// order of spec.md §4.6: defaults < global config < project config <
// WORKSPACE_* env < opts (standing in for bound CLI flags).
func Load(repoRoot string, opts Options) (*WorkspaceConfig, error) {
	contracts.RequireNotEmpty(repoRoot, "repoRoot")

	v := viper.New()
	setDefaults(v)

	if globalPath := findConfigFile(globalConfigDir(), "config"); globalPath != "" {
		v.SetConfigFile(globalPath)
		if err := v.MergeInConfig(); err != nil {
			return nil, errs.Wrap(errs.ConfigInvalid, err, "reading global config %s", globalPath)
		}
	}

	if projectPath := findConfigFile(repoRoot, "repo.config"); projectPath != "" {
		v.SetConfigFile(projectPath)
		if err := v.MergeInConfig(); err != nil {
			return nil, errs.Wrap(errs.ConfigInvalid, err, "reading project config %s", projectPath)
		}
	}

	v.SetEnvPrefix("WORKSPACE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if opts.Strategy != "" {
		v.Set("strategy", opts.Strategy)
	}
	if len(opts.Environments) > 0 {
		v.Set("environments", opts.Environments)
	}

	cfg, err := unmarshal(v)
	if err != nil {
		return nil, err
	}
	cfg.RepoRoot = repoRoot
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("strategy", "independent")
	v.SetDefault("changesets_directory", ".changesets")
	v.SetDefault("archive_directory", ".changesets/history")
	v.SetDefault("environments", []string{"development", "staging", "production"})
	v.SetDefault("default_environments", []string{"development"})

	v.SetDefault("propagation.enabled", true)
	v.SetDefault("propagation.bump", "patch")
	v.SetDefault("propagation.max_depth", 5)
	v.SetDefault("propagation.fail_on_circular", false)

	v.SetDefault("unified_version_source", "highest_current")

	v.SetDefault("changelog.enabled", true)
	v.SetDefault("changelog.path_template", "{package_dir}/CHANGELOG.md")
	v.SetDefault("changelog.include_commit_links", true)

	v.SetDefault("snapshot.format", "{version}-{branch}.{short_commit}")

	v.SetDefault("git.commit_message_template", "chore(release): {summary}")
	v.SetDefault("git.tag_template", "{name}@{version}")
	v.SetDefault("git.allow_dirty", false)
	v.SetDefault("release_branch", "")
}

// findConfigFile returns the first existing file among dir/base.<ext> in
// configFormats order, or "" if none exist. A missing file at any level is
// not an error (spec.md §4.6).
func findConfigFile(dir, base string) string {
	if dir == "" {
		return ""
	}
	for _, ext := range configFormats {
		path := filepath.Join(dir, base+"."+ext)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

func globalConfigDir() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(configDir, "sublime")
}

func unmarshal(v *viper.Viper) (*WorkspaceConfig, error) {
	strategy, err := parseStrategy(v.GetString("strategy"))
	if err != nil {
		return nil, err
	}
	bump, err := parsePropagationBump(v.GetString("propagation.bump"))
	if err != nil {
		return nil, err
	}

	cfg := &WorkspaceConfig{
		Strategy:             strategy,
		ChangesetsDirectory:  v.GetString("changesets_directory"),
		ArchiveDirectory:     v.GetString("archive_directory"),
		Environments:         v.GetStringSlice("environments"),
		DefaultEnvironments:  v.GetStringSlice("default_environments"),
		SnapshotFormat:       v.GetString("snapshot.format"),
		Propagation: PropagationConfig{
			Enabled:        v.GetBool("propagation.enabled"),
			Bump:           bump,
			MaxDepth:       v.GetInt("propagation.max_depth"),
			FailOnCircular: v.GetBool("propagation.fail_on_circular"),
		},
		Changelog: ChangelogConfig{
			Enabled:            v.GetBool("changelog.enabled"),
			PathTemplate:       v.GetString("changelog.path_template"),
			IncludeCommitLinks: v.GetBool("changelog.include_commit_links"),
		},
		Git: GitConfig{
			CommitMessageTemplate: v.GetString("git.commit_message_template"),
			TagTemplate:           v.GetString("git.tag_template"),
			AllowDirty:            v.GetBool("git.allow_dirty"),
		},
		ReleaseBranch: v.GetString("release_branch"),
	}

	if uvs := v.GetString("unified_version_source"); uvs != "" && uvs != "highest_current" {
		cfg.UnifiedVersionSource = UnifiedVersionSource{Explicit: uvs}
	}

	return cfg, nil
}

func parseStrategy(s string) (workspace.Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "independent":
		return workspace.Independent, nil
	case "unified":
		return workspace.Unified, nil
	default:
		return workspace.Independent, errs.New(errs.ConfigInvalid,
			"strategy: unknown value %q, want \"independent\" or \"unified\"", s).
			WithField("field", "strategy")
	}
}

func parsePropagationBump(s string) (version.BumpType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "patch":
		return version.Patch, nil
	case "minor":
		return version.Minor, nil
	case "none":
		return version.None, nil
	default:
		return version.None, errs.New(errs.ConfigInvalid,
			"propagation.bump: unknown value %q, want \"patch\", \"minor\", or \"none\"", s).
			WithField("field", "propagation.bump")
	}
}

// validate enforces the structural invariants spec.md §4.6 requires beyond
// what type conversion already catches: default_environments must be a
// subset of environments, and max_depth must be positive.
func validate(cfg *WorkspaceConfig) error {
	if len(cfg.Environments) == 0 {
		return errs.New(errs.ConfigInvalid, "environments must be non-empty").
			WithField("field", "environments")
	}

	envSet := cfg.EnvironmentSet()
	for _, e := range cfg.DefaultEnvironments {
		if !envSet[e] {
			return errs.New(errs.ConfigInvalid,
				"default_environments: %q is not in environments %v", e, cfg.Environments).
				WithField("field", "default_environments")
		}
	}

	if cfg.Propagation.Enabled && cfg.Propagation.MaxDepth < 1 {
		return errs.New(errs.ConfigInvalid, "propagation.max_depth must be >= 1, got %d", cfg.Propagation.MaxDepth).
			WithField("field", "propagation.max_depth")
	}

	return nil
}
