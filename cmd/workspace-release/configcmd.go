package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spraguehouse/workspace-release/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the resolved workspace configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the fully-merged configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(config.Options{})
		if err != nil {
			return err
		}
		fmt.Printf("strategy:              %s\n", cfg.Strategy)
		fmt.Printf("changesets_directory:  %s\n", cfg.ChangesetsDirectory)
		fmt.Printf("archive_directory:     %s\n", cfg.ArchiveDirectory)
		fmt.Printf("environments:          %v\n", cfg.Environments)
		fmt.Printf("default_environments:  %v\n", cfg.DefaultEnvironments)
		fmt.Printf("propagation.enabled:   %v\n", cfg.Propagation.Enabled)
		fmt.Printf("propagation.bump:      %s\n", cfg.Propagation.Bump)
		fmt.Printf("propagation.max_depth: %d\n", cfg.Propagation.MaxDepth)
		fmt.Printf("changelog.enabled:     %v\n", cfg.Changelog.Enabled)
		fmt.Printf("changelog.path:        %s\n", cfg.Changelog.PathTemplate)
		fmt.Printf("git.commit_template:   %s\n", cfg.Git.CommitMessageTemplate)
		fmt.Printf("git.tag_template:      %s\n", cfg.Git.TagTemplate)
		fmt.Printf("release_branch:        %s\n", cfg.ReleaseBranch)
		fmt.Printf("repo_root:             %s\n", cfg.RepoRoot)
		return nil
	},
}

// configValidateCmd just round-trips the loader: a non-nil error here is
// the only signal, since Load already enforces every structural invariant
// spec.md §4.6 names.
var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration without printing it",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := loadConfig(config.Options{}); err != nil {
			return err
		}
		fmt.Println("configuration is valid")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}
