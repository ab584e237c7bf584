package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/spraguehouse/workspace-release/internal/applier"
	"github.com/spraguehouse/workspace-release/internal/config"
	"github.com/spraguehouse/workspace-release/internal/git"
	"github.com/spraguehouse/workspace-release/internal/planner"
)

var (
	bumpExecute     bool
	bumpSnapshot    bool
	bumpPrerelease  string
	bumpGitCommit   bool
	bumpGitTag      bool
	bumpGitPush     bool
	bumpNoChangelog bool
	bumpNoArchive   bool
	bumpForce       bool
	bumpShowDiff    bool
)

var bumpCmd = &cobra.Command{
	Use:   "bump",
	Short: "Plan and, with --execute, apply a release across the workspace",
	Long: `bump computes the release plan from the workspace's active changesets: which
packages change version, by how much, and how dependents' manifest
constraints need to be rewritten to match.

By default bump only plans and prints what it would do. Pass --execute to
actually write manifests and changelogs, and --git-commit/--git-tag/--git-push
to fold the standard git side effects into the same run.`,
	Args: cobra.NoArgs,
	RunE: runBump,
}

func runBump(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(config.Options{})
	if err != nil {
		return err
	}
	ws, err := loadWorkspace(ctx, cfg)
	if err != nil {
		return err
	}
	store := storeFor(cfg)
	active, err := store.List(ctx)
	if err != nil {
		return err
	}

	mode := planner.Mode{Force: bumpForce, PrereleaseTag: bumpPrerelease}
	if bumpSnapshot {
		branch, berr := git.CurrentBranch(ctx, cfg.RepoRoot)
		if berr != nil {
			return berr
		}
		commits, cerr := git.GetCommitsInRange(cfg.RepoRoot, "HEAD~1", "HEAD")
		commit, shortCommit := "unknown", "unknown"
		if cerr == nil && len(commits) > 0 {
			commit = commits[0].SHA
			shortCommit = commits[0].ShortSHA
		}
		mode.Snapshot = &planner.SnapshotContext{
			Branch:      branch,
			Commit:      commit,
			ShortCommit: shortCommit,
			Timestamp:   time.Now().UTC().Format("20060102150405"),
		}
	}

	opts := applier.Options{
		GitCommit:   bumpGitCommit,
		GitTag:      bumpGitTag,
		GitPush:     bumpGitPush,
		NoChangelog: bumpNoChangelog,
		NoArchive:   bumpNoArchive,
		DryRun:      !bumpExecute,
	}

	result, err := applier.Apply(ctx, ws, store, cfg, active, mode, opts)
	if err != nil {
		return err
	}

	printBumpResult(result, bumpShowDiff)
	return nil
}

func printBumpResult(result *applier.Result, showDiff bool) {
	if result.Plan.IsEmpty() {
		fmt.Println("no packages need a release")
		return
	}

	label := "would change"
	if !result.DryRun {
		label = "changed"
	}
	fmt.Printf("%s %d package(s):\n", label, len(result.Plan.PackageTransitions))
	for _, t := range result.Plan.PackageTransitions {
		fmt.Printf("  %-30s %s -> %s (%s)\n", t.Package, t.FromVersion, t.ToVersion, t.Bump)
	}

	if showDiff {
		fmt.Println("\nfile changes:")
		for _, m := range result.Mutations {
			fmt.Printf("  %s\n", m.Path)
		}
	}

	if result.DryRun {
		fmt.Println("\n--dry-run (default): nothing written. Pass --execute to apply.")
		return
	}

	fmt.Printf("\nbackup: %s\n", result.BackupDir)
	if result.CommitCreated {
		fmt.Println("created release commit")
	}
	for _, tag := range result.TagNames {
		fmt.Printf("created tag %s\n", tag)
	}
	if result.Pushed {
		fmt.Println("pushed commit and tags")
	}
	if result.Archived {
		fmt.Println("archived consumed changesets")
	}
}

func init() {
	rootCmd.AddCommand(bumpCmd)
	bumpCmd.Flags().BoolVar(&bumpExecute, "execute", false, "write the release instead of only planning it")
	bumpCmd.Flags().BoolVar(&bumpSnapshot, "snapshot", false, "produce a snapshot version from the current branch and commit")
	bumpCmd.Flags().StringVar(&bumpPrerelease, "prerelease", "", "tag the computed versions with this prerelease identifier")
	bumpCmd.Flags().BoolVar(&bumpGitCommit, "git-commit", false, "commit the release files")
	bumpCmd.Flags().BoolVar(&bumpGitTag, "git-tag", false, "tag the release commit")
	bumpCmd.Flags().BoolVar(&bumpGitPush, "git-push", false, "push the release commit and tags")
	bumpCmd.Flags().BoolVar(&bumpNoChangelog, "no-changelog", false, "skip changelog generation")
	bumpCmd.Flags().BoolVar(&bumpNoArchive, "no-archive", false, "skip archiving consumed changesets")
	bumpCmd.Flags().BoolVar(&bumpForce, "force", false, "plan even when there are no active changesets")
	bumpCmd.Flags().BoolVar(&bumpShowDiff, "show-diff", false, "list every file the release would touch")
}
