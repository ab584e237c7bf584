package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/spraguehouse/workspace-release/internal/config"
	"github.com/spraguehouse/workspace-release/internal/errs"
	"github.com/spraguehouse/workspace-release/internal/logging"
	"github.com/spraguehouse/workspace-release/internal/workspace"
	"github.com/spraguehouse/workspace-release/pkg/contracts"
)

var (
	rootFlag     string
	logLevelFlag string
	logFileFlag  string
	noColorFlag  bool

	// resolvedRoot is set by the root command's PersistentPreRunE and read
	// by every subcommand; cobra gives us no cleaner place to thread it
	// since RunE signatures are fixed by the library.
	resolvedRoot string
)

var rootCmd = &cobra.Command{
	Use:   "workspace-release",
	Short: "Version-bump and release engine for JS/TS monorepos",
	Long: `workspace-release detects a monorepo's package graph, tracks pending
release intent as changesets, plans version bumps (with cascading
propagation to dependents), and applies the resulting release: manifest and
changelog rewrites, lockfile touch-ups, and optional git commit/tag/push.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		root := rootFlag
		if root == "" {
			root = os.Getenv("WORKSPACE_ROOT")
		}
		if root == "" {
			cwd, err := os.Getwd()
			if err != nil {
				return errs.Wrap(errs.FileSystemTransient, err, "resolving current directory")
			}
			root = cwd
		}
		resolvedRoot = root

		level := logLevelFlag
		if level == "" {
			level = os.Getenv("WORKSPACE_LOG_LEVEL")
		}
		if noColorFlag {
			os.Setenv("WORKSPACE_NO_COLOR", "1")
		}
		logging.Configure(logging.Options{Level: level, FilePath: logFileFlag})
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootFlag, "root", "", "workspace root (default: $WORKSPACE_ROOT or the current directory)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "silent, error, warn, info, debug, or trace (default: $WORKSPACE_LOG_LEVEL or warn)")
	rootCmd.PersistentFlags().StringVar(&logFileFlag, "log-file", "", "also write JSON logs to this rotating file")
	rootCmd.PersistentFlags().BoolVar(&noColorFlag, "no-color", false, "disable ANSI colour in console logs")
}

// Execute runs the command tree and returns the process exit code spec.md
// §6.4 defines: 0 success, 1 user/validation error, 2 I/O or git error, 3
// state inconsistency, 4 cancellation.
func Execute() (exitCode int) {
	defer func() {
		if r := recover(); r != nil {
			if cv, ok := r.(contracts.ContractViolation); ok {
				fmt.Fprintf(os.Stderr, "Error: internal invariant failed: %v\n", cv)
				exitCode = 1
				return
			}
			panic(r)
		}
	}()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return errs.KindOf(err).ExitCode()
	}
	return 0
}

// loadConfig resolves the workspace config for the current --root, with
// opts standing in for whatever flags a given subcommand wants to feed
// into the last precedence tier (spec.md §4.6).
func loadConfig(opts config.Options) (*config.WorkspaceConfig, error) {
	opts.RepoRoot = resolvedRoot
	return config.Load(resolvedRoot, opts)
}

// loadWorkspace detects the workspace at --root under cfg's strategy.
func loadWorkspace(ctx context.Context, cfg *config.WorkspaceConfig) (*workspace.Workspace, error) {
	return workspace.Detect(ctx, resolvedRoot, workspace.Options{
		Strategy:       cfg.Strategy,
		FailOnCircular: cfg.Propagation.FailOnCircular,
	})
}
