package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/spraguehouse/workspace-release/internal/errs"
	"github.com/spraguehouse/workspace-release/internal/fsio"
	"github.com/spraguehouse/workspace-release/internal/workspace"
)

var (
	initEnvironments []string
	initDefaultEnvs  []string
	initStrategy     string
	initFormat       string
)

// fileConfig is the on-disk shape of the project config file init writes.
// It only covers the fields init's own flags set; every other knob is left
// to config.Load's built-in defaults (spec.md §4.6) until the user edits
// the file by hand.
type fileConfig struct {
	Strategy            string   `json:"strategy" yaml:"strategy" toml:"strategy"`
	ChangesetsDirectory string   `json:"changesets_directory" yaml:"changesets_directory" toml:"changesets_directory"`
	ArchiveDirectory    string   `json:"archive_directory" yaml:"archive_directory" toml:"archive_directory"`
	Environments        []string `json:"environments" yaml:"environments" toml:"environments"`
	DefaultEnvironments []string `json:"default_environments" yaml:"default_environments" toml:"default_environments"`
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write an initial repo.config and create the changesets directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		switch initStrategy {
		case "independent", "unified":
		default:
			return errs.New(errs.ConfigInvalid, "strategy must be independent or unified, got %q", initStrategy)
		}
		ext, err := formatExtension(initFormat)
		if err != nil {
			return err
		}

		environments := initEnvironments
		if len(environments) == 0 {
			environments = []string{"development", "staging", "production"}
		}
		defaultEnvs := initDefaultEnvs
		if len(defaultEnvs) == 0 {
			defaultEnvs = environments[:1]
		}
		envSet := make(map[string]bool, len(environments))
		for _, e := range environments {
			envSet[e] = true
		}
		for _, e := range defaultEnvs {
			if !envSet[e] {
				return errs.New(errs.ConfigInvalid, "default environment %q is not in environments %v", e, environments)
			}
		}

		cfg := fileConfig{
			Strategy:            initStrategy,
			ChangesetsDirectory: ".changesets",
			ArchiveDirectory:    ".changesets/history",
			Environments:        environments,
			DefaultEnvironments: defaultEnvs,
		}

		path := filepath.Join(resolvedRoot, "repo.config."+ext)
		if fsio.Exists(path) {
			return errs.New(errs.ConfigInvalid, "%s already exists", path)
		}
		if err := fsio.WriteStructured(ctx, path, cfg); err != nil {
			return err
		}

		if err := fsio.MkdirAll(ctx, filepath.Join(resolvedRoot, ".changesets")); err != nil {
			return err
		}

		if _, err := workspace.Detect(ctx, resolvedRoot, workspace.Options{}); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: wrote config, but workspace detection failed: %v\n", err)
		}

		fmt.Printf("wrote %s\n", path)
		fmt.Println("created .changesets/")
		return nil
	},
}

func formatExtension(format string) (string, error) {
	switch format {
	case "toml", "json", "yaml", "yml":
		return format, nil
	default:
		return "", errs.New(errs.ConfigInvalid, "config format must be toml, json, yaml, or yml, got %q", format)
	}
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().StringSliceVar(&initEnvironments, "environments", nil, "the workspace's deployable environments (default: development, staging, production)")
	initCmd.Flags().StringSliceVar(&initDefaultEnvs, "default-environments", nil, "environments a changeset targets when none are given (default: the first environment)")
	initCmd.Flags().StringVar(&initStrategy, "strategy", "independent", "independent or unified")
	initCmd.Flags().StringVar(&initFormat, "format", "toml", "config file format: toml, json, yaml, or yml")
}
