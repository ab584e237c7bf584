package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spraguehouse/workspace-release/internal/changeset"
	"github.com/spraguehouse/workspace-release/internal/config"
	"github.com/spraguehouse/workspace-release/internal/errs"
)

var changesetCmd = &cobra.Command{
	Use:   "changeset",
	Short: "Manage pending release intent",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func storeFor(cfg *config.WorkspaceConfig) *changeset.Store {
	return changeset.New(cfg.ChangesetsDirectory, cfg.ArchiveDirectory)
}

func validateBump(bump string) error {
	switch bump {
	case "none", "patch", "minor", "major":
		return nil
	default:
		return errs.New(errs.ConfigInvalid, "bump must be one of none, patch, minor, major, got %q", bump)
	}
}

func validateEnvironments(cfg *config.WorkspaceConfig, envs []string) error {
	set := cfg.EnvironmentSet()
	for _, e := range envs {
		if !set[e] {
			return errs.New(errs.ConfigInvalid, "environment %q is not one of the workspace's configured environments %v", e, cfg.Environments)
		}
	}
	return nil
}

var (
	csCreateBump    string
	csCreateEnvs    []string
	csCreatePkgs    []string
	csCreateMessage string
)

var changesetCreateCmd = &cobra.Command{
	Use:   "create <branch>",
	Short: "Record a new changeset for the given branch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(config.Options{})
		if err != nil {
			return err
		}
		if err := validateBump(csCreateBump); err != nil {
			return err
		}
		envs := csCreateEnvs
		if len(envs) == 0 {
			envs = cfg.DefaultEnvironments
		}
		if err := validateEnvironments(cfg, envs); err != nil {
			return err
		}

		cs, err := storeFor(cfg).Create(cmd.Context(), args[0], csCreateBump, envs, csCreatePkgs, csCreateMessage)
		if err != nil {
			return err
		}
		fmt.Printf("created changeset %s (bump=%s, packages=%s)\n", cs.ID, cs.Bump, strings.Join(cs.Packages, ", "))
		return nil
	},
}

var (
	csUpdateBump    string
	csUpdateAddPkgs []string
	csUpdateRmPkgs  []string
	csUpdateEnvs    []string
	csUpdateMessage string
)

var changesetUpdateCmd = &cobra.Command{
	Use:   "update <branch>",
	Short: "Amend an existing changeset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(config.Options{})
		if err != nil {
			return err
		}
		if csUpdateBump != "" {
			if err := validateBump(csUpdateBump); err != nil {
				return err
			}
		}

		patch := changeset.Patch{
			AddPackages:    csUpdateAddPkgs,
			RemovePackages: csUpdateRmPkgs,
			Bump:           csUpdateBump,
		}
		if cmd.Flags().Changed("env") {
			patch.Environments = csUpdateEnvs
		}
		if cmd.Flags().Changed("message") {
			patch.Message = &csUpdateMessage
		}

		cs, err := storeFor(cfg).Update(cmd.Context(), args[0], patch, func(c *changeset.Changeset) error {
			if err := validateBump(c.Bump); err != nil {
				return err
			}
			return validateEnvironments(cfg, c.Environments)
		})
		if err != nil {
			return err
		}
		fmt.Printf("updated changeset %s (bump=%s, packages=%s)\n", cs.ID, cs.Bump, strings.Join(cs.Packages, ", "))
		return nil
	},
}

var changesetListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active changesets",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(config.Options{})
		if err != nil {
			return err
		}
		list, err := storeFor(cfg).List(cmd.Context())
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Println("no active changesets")
			return nil
		}
		for _, cs := range list {
			fmt.Printf("%-40s %-6s %s\n", cs.ID, cs.Bump, strings.Join(cs.Packages, ", "))
		}
		return nil
	},
}

var changesetShowCmd = &cobra.Command{
	Use:   "show <branch>",
	Short: "Show one changeset's full contents",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(config.Options{})
		if err != nil {
			return err
		}
		cs, err := storeFor(cfg).Show(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("id:           %s\n", cs.ID)
		fmt.Printf("branch:       %s\n", cs.Branch)
		fmt.Printf("bump:         %s\n", cs.Bump)
		fmt.Printf("environments: %s\n", strings.Join(cs.Environments, ", "))
		fmt.Printf("packages:     %s\n", strings.Join(cs.Packages, ", "))
		if cs.Message != "" {
			fmt.Printf("message:      %s\n", cs.Message)
		}
		for _, c := range cs.Commits {
			fmt.Printf("  commit %s: %s\n", c.Hash, c.Subject)
		}
		return nil
	},
}

var csRemoveForce bool

var changesetRemoveCmd = &cobra.Command{
	Use:   "remove <branch>",
	Short: "Cancel a changeset, archiving it as cancelled",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(config.Options{})
		if err != nil {
			return err
		}
		confirm := func() bool {
			fmt.Printf("remove changeset %s? [y/N] ", args[0])
			var response string
			_, _ = fmt.Scanln(&response)
			return strings.ToLower(strings.TrimSpace(response)) == "y"
		}
		if err := storeFor(cfg).Remove(cmd.Context(), args[0], csRemoveForce, confirm); err != nil {
			return err
		}
		fmt.Printf("removed changeset for %s\n", args[0])
		return nil
	},
}

// changesetCheckCmd exits non-zero (NotFound, exit code 3) when no
// changeset exists for the branch, for use as a CI gate.
var changesetCheckCmd = &cobra.Command{
	Use:   "check <branch>",
	Short: "Check whether a changeset exists for the given branch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(config.Options{})
		if err != nil {
			return err
		}
		if !storeFor(cfg).Check(args[0]) {
			return errs.New(errs.NotFound, "no changeset found for branch %q", args[0])
		}
		fmt.Println("ok")
		return nil
	},
}

var (
	csHistoryPackage string
	csHistoryStatus  string
)

var changesetHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List archived changesets",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(config.Options{})
		if err != nil {
			return err
		}
		entries, err := storeFor(cfg).History(cmd.Context(), changeset.HistoryFilter{
			Package: csHistoryPackage,
			Status:  csHistoryStatus,
		})
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("no archived changesets match")
			return nil
		}
		for _, a := range entries {
			fmt.Printf("%-40s %-10s %s  %s\n", a.ID, a.Status, a.ArchivedAt.Format("2006-01-02 15:04"), strings.Join(a.Packages, ", "))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(changesetCmd)
	changesetCmd.AddCommand(changesetCreateCmd)
	changesetCmd.AddCommand(changesetUpdateCmd)
	changesetCmd.AddCommand(changesetListCmd)
	changesetCmd.AddCommand(changesetShowCmd)
	changesetCmd.AddCommand(changesetRemoveCmd)
	changesetCmd.AddCommand(changesetCheckCmd)
	changesetCmd.AddCommand(changesetHistoryCmd)

	changesetCreateCmd.Flags().StringVar(&csCreateBump, "bump", "patch", "none, patch, minor, or major")
	changesetCreateCmd.Flags().StringSliceVar(&csCreateEnvs, "env", nil, "target environments (default: the workspace's default_environments)")
	changesetCreateCmd.Flags().StringSliceVar(&csCreatePkgs, "package", nil, "packages this changeset affects")
	changesetCreateCmd.Flags().StringVar(&csCreateMessage, "message", "", "free-form changelog message")

	changesetUpdateCmd.Flags().StringVar(&csUpdateBump, "bump", "", "none, patch, minor, or major (unchanged if omitted)")
	changesetUpdateCmd.Flags().StringSliceVar(&csUpdateAddPkgs, "add-package", nil, "packages to add")
	changesetUpdateCmd.Flags().StringSliceVar(&csUpdateRmPkgs, "remove-package", nil, "packages to remove")
	changesetUpdateCmd.Flags().StringSliceVar(&csUpdateEnvs, "env", nil, "replace the target environments")
	changesetUpdateCmd.Flags().StringVar(&csUpdateMessage, "message", "", "replace the changelog message")

	changesetHistoryCmd.Flags().StringVar(&csHistoryPackage, "package", "", "filter to changesets touching this package")
	changesetHistoryCmd.Flags().StringVar(&csHistoryStatus, "status", "", "filter to released or cancelled")

	changesetRemoveCmd.Flags().BoolVar(&csRemoveForce, "force", false, "skip the interactive confirmation prompt")
}
