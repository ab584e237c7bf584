// Package applier executes a computed release plan against the working
// tree: it rewrites manifests and changelogs, touches lockfiles, optionally
// commits/tags/pushes, and archives the changesets it consumed. It is the
// only package that mutates files outside the changeset store itself
// (spec.md §4.5).
package applier

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spraguehouse/workspace-release/internal/changeset"
	"github.com/spraguehouse/workspace-release/internal/config"
	"github.com/spraguehouse/workspace-release/internal/errs"
	"github.com/spraguehouse/workspace-release/internal/fsio"
	"github.com/spraguehouse/workspace-release/internal/git"
	"github.com/spraguehouse/workspace-release/internal/graph"
	"github.com/spraguehouse/workspace-release/internal/logging"
	"github.com/spraguehouse/workspace-release/internal/planner"
	"github.com/spraguehouse/workspace-release/internal/template"
	"github.com/spraguehouse/workspace-release/internal/workspace"
	"github.com/spraguehouse/workspace-release/pkg/contracts"
)

// FileMutation is one file this apply will (or, in dry-run mode, would)
// write in full.
type FileMutation struct {
	Path       string
	NewContent string
}

// Options carries the `bump` command's apply-time flags (spec.md §6.4).
// Planning modifiers (--snapshot, --prerelease, --force) live on
// planner.Mode; these are the ones that only matter once a plan exists.
type Options struct {
	GitCommit   bool
	GitTag      bool
	GitPush     bool
	NoChangelog bool
	NoArchive   bool
	DryRun      bool
}

// Result is everything Apply did, or would do under DryRun.
type Result struct {
	Plan          *planner.ReleasePlan
	DryRun        bool
	Mutations     []FileMutation
	BackupDir     string
	TagNames      []string
	CommitCreated bool
	Pushed        bool
	Archived      bool
}

// Apply runs the six-step release transaction of spec.md §4.5: checks
// preconditions, computes the plan, backs up every file it is about to
// touch, writes manifests/changelogs/lockfiles, optionally performs git
// operations, and archives the consumed changesets.
func Apply(ctx context.Context, ws *workspace.Workspace, store *changeset.Store, cfg *config.WorkspaceConfig, active []*changeset.Changeset, mode planner.Mode, opts Options) (*Result, error) {
	contracts.RequireNotNil(ws, "ws")
	contracts.RequireNotNil(store, "store")
	contracts.RequireNotNil(cfg, "cfg")

	if err := checkPreconditions(ctx, cfg); err != nil {
		return nil, err
	}

	plan, err := planner.Plan(ws, active, cfg, mode)
	if err != nil {
		return nil, err
	}
	if plan.IsEmpty() {
		return &Result{Plan: plan, DryRun: opts.DryRun}, nil
	}

	mutations, err := buildMutations(ctx, ws, cfg, plan, opts)
	if err != nil {
		return nil, err
	}

	result := &Result{Plan: plan, DryRun: opts.DryRun, Mutations: mutations}
	if opts.DryRun {
		return result, nil
	}

	backupDir, err := snapshotBackup(ctx, cfg.RepoRoot, mutations)
	if err != nil {
		return nil, err
	}
	result.BackupDir = backupDir

	if err := writeMutations(ctx, mutations); err != nil {
		if failed := rollback(ctx, cfg.RepoRoot, backupDir, mutations); len(failed) > 0 {
			logging.Applier.Error().Strs("paths", failed).Msg("rollback could not restore every file")
		}
		return nil, err
	}

	logging.Applier.Info().
		Int("files", len(mutations)).
		Str("backup", backupDir).
		Msg("release files written")

	if opts.GitCommit || opts.GitTag || opts.GitPush {
		if err := performGitSteps(ctx, cfg, plan, mutations, opts, result); err != nil {
			// spec.md §4.5 rollback policy: a git failure is not rolled
			// back. The filesystem state from steps 2-4 is already valid
			// and committed-to; only the git side effects are incomplete.
			return result, err
		}
	}

	if !opts.NoArchive {
		if err := archiveConsumed(ctx, store, plan); err != nil {
			// Release is already effective on disk; archiving failure does
			// not undo it (spec.md §4.5 step 6 rollback policy).
			return result, err
		}
		result.Archived = true
	}

	return result, nil
}

// ArchiveOnly retries step 6 in isolation. It is the recovery path for a
// prior Apply that returned an ArchiveFailed error: the release itself
// already took effect, only the changeset bookkeeping is stale.
func ArchiveOnly(ctx context.Context, store *changeset.Store, plan *planner.ReleasePlan) error {
	return archiveConsumed(ctx, store, plan)
}

// checkPreconditions implements spec.md §4.5 preconditions 3 and 4. 1
// (workspace detected) and 2 (an active changeset exists) are enforced by
// workspace.Detect and planner.Plan respectively; 5 (plan computes
// successfully) is simply Plan returning without error.
func checkPreconditions(ctx context.Context, cfg *config.WorkspaceConfig) error {
	if !cfg.Git.AllowDirty {
		clean, err := git.IsWorkingTreeClean(ctx, cfg.RepoRoot)
		if err != nil {
			return err
		}
		if !clean {
			return errs.New(errs.DirtyWorktree,
				"working tree has uncommitted changes; commit or stash them, or set git.allow_dirty").
				WithField("repo_root", cfg.RepoRoot)
		}
	}

	if cfg.ReleaseBranch != "" {
		branch, err := git.CurrentBranch(ctx, cfg.RepoRoot)
		if err != nil {
			return err
		}
		if branch != cfg.ReleaseBranch {
			return errs.New(errs.WorkspaceInvalid,
				"current branch %q does not match configured release branch %q", branch, cfg.ReleaseBranch).
				WithField("branch", branch).
				WithField("release_branch", cfg.ReleaseBranch)
		}
	}

	return nil
}

// buildMutations computes every file this apply will write, without
// touching the filesystem: manifest version/constraint rewrites in
// topological order, changelog entries, then lockfile touches (spec.md
// §4.5 steps 2-4).
func buildMutations(ctx context.Context, ws *workspace.Workspace, cfg *config.WorkspaceConfig, plan *planner.ReleasePlan, opts Options) ([]FileMutation, error) {
	var mutations []FileMutation

	for _, tr := range plan.PackageTransitions {
		pkg := ws.Packages[tr.Package]
		original, err := fsio.ReadText(ctx, pkg.ManifestPath)
		if err != nil {
			return nil, err
		}

		updated := rewriteManifestVersion(original, tr.ToVersion)
		for _, kind := range []graph.EdgeKind{graph.Runtime, graph.Dev, graph.Peer, graph.Optional} {
			section := manifestSectionFor(kind)
			for _, e := range ws.Graph.Edges(tr.Package) {
				if e.Kind != kind {
					continue
				}
				newSpec, ok := plan.RewrittenConstraints[tr.Package][e.To]
				if !ok {
					continue
				}
				updated = rewriteManifestDependency(updated, section, e.To, newSpec)
			}
		}

		mutations = append(mutations, FileMutation{Path: pkg.ManifestPath, NewContent: updated})
	}

	if cfg.Changelog.Enabled && !opts.NoChangelog {
		changelogMutations, err := buildChangelogMutations(ctx, ws, cfg, plan)
		if err != nil {
			return nil, err
		}
		mutations = append(mutations, changelogMutations...)
	}

	lockMutations, err := touchLockfiles(ctx, cfg.RepoRoot, plan.PackageTransitions)
	if err != nil {
		return nil, err
	}
	mutations = append(mutations, lockMutations...)

	return mutations, nil
}

func manifestSectionFor(kind graph.EdgeKind) string {
	switch kind {
	case graph.Runtime:
		return "dependencies"
	case graph.Dev:
		return "devDependencies"
	case graph.Peer:
		return "peerDependencies"
	case graph.Optional:
		return "optionalDependencies"
	default:
		contracts.Unreachable("unknown EdgeKind: %v", kind)
		return ""
	}
}

func writeMutations(ctx context.Context, mutations []FileMutation) error {
	for _, m := range mutations {
		if err := fsio.WriteTextAtomic(ctx, m.Path, m.NewContent); err != nil {
			return err
		}
	}
	return nil
}

func archiveConsumed(ctx context.Context, store *changeset.Store, plan *planner.ReleasePlan) error {
	ids := make([]string, 0, len(plan.ConsumedChangesets))
	for _, cs := range plan.ConsumedChangesets {
		ids = append(ids, cs.ID)
	}
	resultingVersions := make(map[string]string, len(plan.PackageTransitions))
	for _, tr := range plan.PackageTransitions {
		resultingVersions[tr.Package] = tr.ToVersion
	}
	return store.Consume(ctx, ids, resultingVersions)
}

// gitTemplateVariables is the variable set of both the commit message and tag templates:
// the two configured strings share one variable vocabulary (spec.md §6.3).
var gitTemplateVariables = []string{"name", "version", "summary"}

type tagSpec struct {
	name    string
	message string
}

// performGitSteps runs spec.md §4.5 step 5: stage the written files, commit,
// tag (one per package for the independent strategy, one for the whole
// release under unified), and push, in that order, skipping whichever of
// the three the caller did not request.
func performGitSteps(ctx context.Context, cfg *config.WorkspaceConfig, plan *planner.ReleasePlan, mutations []FileMutation, opts Options, result *Result) error {
	repoRoot := cfg.RepoRoot

	if opts.GitCommit || opts.GitTag {
		// Tagging without committing still needs the files staged and
		// committed first so HEAD reflects the release; a caller asking for
		// --git-tag alone gets an implicit commit.
		paths := make([]string, 0, len(mutations))
		for _, m := range mutations {
			rel, err := filepath.Rel(repoRoot, m.Path)
			if err != nil {
				rel = m.Path
			}
			paths = append(paths, rel)
		}
		if err := git.StageFiles(ctx, repoRoot, paths); err != nil {
			return err
		}

		message, err := renderCommitMessage(cfg, plan)
		if err != nil {
			return err
		}
		if err := git.CreateCommit(ctx, repoRoot, message); err != nil {
			return err
		}
		result.CommitCreated = true
	}

	if opts.GitTag {
		tags, err := buildTagSpecs(cfg, plan)
		if err != nil {
			return err
		}
		for _, tag := range tags {
			if err := git.CreateAnnotatedTag(ctx, repoRoot, tag.name, tag.message); err != nil {
				return err
			}
			result.TagNames = append(result.TagNames, tag.name)
		}
	}

	if opts.GitPush {
		if err := git.Push(ctx, repoRoot, result.TagNames); err != nil {
			return err
		}
		result.Pushed = true
	}

	return nil
}

func renderCommitMessage(cfg *config.WorkspaceConfig, plan *planner.ReleasePlan) (string, error) {
	renderer := template.NewRenderer(gitTemplateVariables...)
	data := map[string]string{
		"name":    "",
		"version": "",
		"summary": summarizeTransitions(plan),
	}
	return renderer.Render(cfg.Git.CommitMessageTemplate, data)
}

// buildTagSpecs implements spec.md §4.3.2's split: independent releases tag
// every changed package individually via the configured template; unified
// releases share one tag since every non-private package moved to the same
// version together, following the "v{version}" convention spec.md §8.3
// Scenario 3 names directly rather than the per-package template (there is
// no single package name to substitute into it).
func buildTagSpecs(cfg *config.WorkspaceConfig, plan *planner.ReleasePlan) ([]tagSpec, error) {
	renderer := template.NewRenderer(gitTemplateVariables...)
	summary := summarizeTransitions(plan)

	if plan.Strategy == workspace.Unified {
		if len(plan.PackageTransitions) == 0 {
			return nil, nil
		}
		name := "v" + plan.PackageTransitions[0].ToVersion
		return []tagSpec{{name: name, message: fmt.Sprintf("release %s", name)}}, nil
	}

	tags := make([]tagSpec, 0, len(plan.PackageTransitions))
	for _, tr := range plan.PackageTransitions {
		data := map[string]string{
			"name":    tr.Package,
			"version": tr.ToVersion,
			"summary": summary,
		}
		name, err := renderer.Render(cfg.Git.TagTemplate, data)
		if err != nil {
			return nil, err
		}
		tags = append(tags, tagSpec{name: name, message: fmt.Sprintf("release %s", name)})
	}
	return tags, nil
}

func summarizeTransitions(plan *planner.ReleasePlan) string {
	parts := make([]string, 0, len(plan.PackageTransitions))
	for _, tr := range plan.PackageTransitions {
		parts = append(parts, fmt.Sprintf("%s@%s", tr.Package, tr.ToVersion))
	}
	return strings.Join(parts, ", ")
}
