package main

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spraguehouse/workspace-release/internal/config"
	"github.com/spraguehouse/workspace-release/internal/git"
	"github.com/spraguehouse/workspace-release/internal/release"
	"github.com/spraguehouse/workspace-release/internal/version"
	"github.com/spraguehouse/workspace-release/internal/workspace"
)

var (
	changesBase       string
	changesSynthesize bool
	changesBranch     string
)

var changesCmd = &cobra.Command{
	Use:   "changes [head]",
	Short: "List workspace packages touched between base and head",
	Long: `changes diffs base (default: the merge-base with HEAD, or HEAD~1 for a
non-merge commit) against head (default: HEAD) and reports which workspace
packages own the changed files, following the same path ownership the
planner uses to decide what needs a changeset.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		head := "HEAD"
		if len(args) == 1 {
			head = args[0]
		}

		cfg, err := loadConfig(config.Options{})
		if err != nil {
			return err
		}
		ws, err := loadWorkspace(ctx, cfg)
		if err != nil {
			return err
		}

		base := changesBase
		if base == "" {
			base, err = defaultBase(cfg.RepoRoot, head)
			if err != nil {
				return err
			}
		}

		files, err := git.DiffRange(ctx, cfg.RepoRoot, base, head)
		if err != nil {
			return err
		}

		touched := packagesForFiles(ws, files)
		if len(touched) == 0 {
			fmt.Println("no workspace packages touched in this range")
			return nil
		}
		for _, name := range touched {
			fmt.Println(name)
		}

		if changesSynthesize {
			return synthesizeChangeset(ctx, cfg)
		}
		return nil
	},
}

// synthesizeChangeset bridges internal/release's conventional-commits
// analyzer into the shared changeset store (SPEC_FULL.md §9.2), so a
// merge that never ran `changeset create` by hand still produces a plan
// the rest of the pipeline understands. It derives one changeset: the
// branch it is filed under, the union of released package components,
// and the single highest bump level across them (a changeset carries one
// bump for all the packages it names, so per-package bump granularity
// from the commit analysis collapses to the max).
func synthesizeChangeset(ctx context.Context, cfg *config.WorkspaceConfig) error {
	result, err := release.Analyze(&release.Options{RepoPath: cfg.RepoRoot, TreatPreMajorAsMinor: true})
	if err != nil {
		return err
	}
	if len(result.Releases) == 0 {
		fmt.Println("no releasable conventional commits found; nothing synthesized")
		return nil
	}

	branch := changesBranch
	if branch == "" {
		branch, err = git.CurrentBranch(ctx, cfg.RepoRoot)
		if err != nil {
			return err
		}
	}

	bump := highestBump(result.Releases)
	packages := make([]string, 0, len(result.Releases))
	for _, rel := range result.Releases {
		packages = append(packages, rel.Package.Component)
	}
	sort.Strings(packages)

	store := storeFor(cfg)
	cs, err := store.Create(ctx, branch, bump.String(), cfg.DefaultEnvironments, packages, "synthesized from conventional commits")
	if err != nil {
		return err
	}
	fmt.Printf("synthesized changeset %s (bump=%s, packages=%s)\n", cs.ID, cs.Bump, strings.Join(cs.Packages, ", "))
	return nil
}

// highestBump returns the most significant bump level across releases,
// since a single changeset carries one bump for every package it names.
func highestBump(releases []*release.PackageRelease) version.BumpType {
	highest := version.None
	for _, rel := range releases {
		if rel.BumpType > highest {
			highest = rel.BumpType
		}
	}
	return highest
}

// defaultBase follows spec.md §4.3.1 Step A's commit-range convention: a
// merge commit's range is its merge base, otherwise the single parent.
func defaultBase(repoPath, head string) (string, error) {
	info, err := git.AnalyzeHead(repoPath)
	if err == nil && info.IsMerge {
		return info.MergeBase, nil
	}
	return head + "~1", nil
}

// packagesForFiles maps changed file paths onto the workspace packages
// whose AbsolutePath contains them, deduplicated and sorted.
func packagesForFiles(ws *workspace.Workspace, files []string) []string {
	set := make(map[string]bool)
	for _, f := range files {
		abs := filepath.Join(ws.RootPath, f)
		for name, pkg := range ws.Packages {
			rel, err := filepath.Rel(pkg.AbsolutePath, abs)
			if err != nil || strings.HasPrefix(rel, "..") {
				continue
			}
			set[name] = true
		}
	}
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	rootCmd.AddCommand(changesCmd)
	changesCmd.Flags().StringVar(&changesBase, "base", "", "base ref (default: the merge base, or HEAD~1)")
	changesCmd.Flags().BoolVar(&changesSynthesize, "synthesize-changeset", false, "also file a changeset from conventional-commit history (SPEC_FULL.md §9.2)")
	changesCmd.Flags().StringVar(&changesBranch, "branch", "", "branch to file the synthesized changeset under (default: the current branch)")
}
