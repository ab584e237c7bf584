// Package planner computes a ReleasePlan from a detected workspace and its
// active changesets: which packages bump, by how much, to what version, and
// how their siblings' manifest constraints must be rewritten to match
// (spec.md §4.3).
package planner

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spraguehouse/workspace-release/internal/changeset"
	"github.com/spraguehouse/workspace-release/internal/config"
	"github.com/spraguehouse/workspace-release/internal/errs"
	"github.com/spraguehouse/workspace-release/internal/graph"
	"github.com/spraguehouse/workspace-release/internal/logging"
	"github.com/spraguehouse/workspace-release/internal/template"
	"github.com/spraguehouse/workspace-release/internal/version"
	"github.com/spraguehouse/workspace-release/internal/workspace"
	"github.com/spraguehouse/workspace-release/pkg/contracts"
)

// Reason records why a package transitioned: either named directly by a
// changeset, or reached by propagation from a dependency's bump.
type Reason struct {
	Direct      bool
	ChangesetID string
	ViaPackage  string
	Depth       int
}

// PackageTransition is one package's planned version change.
type PackageTransition struct {
	Package     string
	FromVersion string
	ToVersion   string
	Bump        version.BumpType
	Reasons     []Reason
}

// ReleasePlan is the planner's output: every package that will change
// version, in topological order, plus the manifest constraint rewrites
// that change implies.
type ReleasePlan struct {
	Strategy workspace.Strategy
	// PackageTransitions is ordered dependencies-before-dependents
	// (spec.md §4.3.1 Step E).
	PackageTransitions []*PackageTransition
	// RewrittenConstraints[from][to] is the new dependency spec that from's
	// manifest should carry for its dependency on to (spec.md §4.3.1 Step D).
	RewrittenConstraints map[string]map[string]string
	Warnings             []string
	ConsumedChangesets   []*changeset.Changeset
}

// TransitionFor returns pkg's planned transition, if any.
func (p *ReleasePlan) TransitionFor(pkg string) (*PackageTransition, bool) {
	for _, t := range p.PackageTransitions {
		if t.Package == pkg {
			return t, true
		}
	}
	return nil, false
}

// IsEmpty reports whether the plan changes no packages.
func (p *ReleasePlan) IsEmpty() bool {
	return len(p.PackageTransitions) == 0
}

// SnapshotContext supplies the git-derived values the snapshot template can
// reference (spec.md §4.3.1 Step C). The planner takes these ready-made
// from the caller rather than depending on internal/git itself.
type SnapshotContext struct {
	Branch      string
	Commit      string
	ShortCommit string
	Timestamp   string
}

// Mode carries the `bump` command's optional modifiers (spec.md §6.4).
type Mode struct {
	Snapshot      *SnapshotContext
	PrereleaseTag string
	// Force plans even when there are no active changesets, rather than
	// failing with PlanEmpty (the --force-empty case of spec.md §4.5
	// precondition 2).
	Force bool
}

var snapshotVariables = []string{"version", "branch", "commit", "short_commit", "timestamp"}

// Plan computes a ReleasePlan for ws from the given active changesets,
// following cfg.Strategy.
func Plan(ws *workspace.Workspace, changesets []*changeset.Changeset, cfg *config.WorkspaceConfig, mode Mode) (*ReleasePlan, error) {
	contracts.RequireNotNil(ws, "ws")
	contracts.RequireNotNil(cfg, "cfg")

	if len(changesets) == 0 && !mode.Force {
		return nil, errs.New(errs.PlanEmpty, "no active changesets (re-run with force to plan anyway)")
	}

	var plan *ReleasePlan
	var err error
	if cfg.Strategy == workspace.Unified {
		plan, err = planUnified(ws, changesets, cfg)
	} else {
		plan, err = planIndependent(ws, changesets, cfg)
	}
	if err != nil {
		return nil, err
	}
	plan.Strategy = cfg.Strategy
	plan.ConsumedChangesets = changesets

	if err := applyVersionModifiers(plan, cfg, mode); err != nil {
		return nil, err
	}

	order, err := graph.TopoSort(ws.Graph)
	if err != nil {
		// A cycle is already recorded on ws.Cycle when propagation was
		// configured to tolerate it (spec.md §4.2 step 5); fall back to
		// alphabetical order for the packages actually in the plan rather
		// than failing a plan that never needed to cross the cycle.
		logging.Planner.Warn().Err(err).Msg("graph has a cycle; falling back to alphabetical package order")
		order = ws.Graph.Nodes()
	}
	plan.PackageTransitions = orderTransitions(plan.PackageTransitions, order)

	logging.Planner.Info().
		Int("packages", len(plan.PackageTransitions)).
		Str("strategy", cfg.Strategy.String()).
		Msg("release plan computed")

	return plan, nil
}

// planIndependent implements spec.md §4.3.1 Steps A-D.
func planIndependent(ws *workspace.Workspace, changesets []*changeset.Changeset, cfg *config.WorkspaceConfig) (*ReleasePlan, error) {
	bumps := make(map[string]version.BumpType)
	reasons := make(map[string][]Reason)

	// Step A: direct bumps. The effective bump for a package touched by
	// several changesets is the maximum among them.
	for _, cs := range changesets {
		b := changeset.BumpType(cs)
		for _, pkg := range cs.Packages {
			if _, ok := ws.Packages[pkg]; !ok {
				continue
			}
			if b > bumps[pkg] {
				bumps[pkg] = b
			}
			reasons[pkg] = append(reasons[pkg], Reason{Direct: true, ChangesetID: cs.ID})
		}
	}

	direct := make(map[string]bool, len(bumps))
	for pkg := range bumps {
		direct[pkg] = true
	}

	// Step B: propagation.
	if cfg.Propagation.Enabled && len(bumps) > 0 {
		roots := make([]string, 0, len(bumps))
		for pkg := range bumps {
			roots = append(roots, pkg)
		}
		sort.Strings(roots)

		reached := graph.ReachableDependents(ws.Graph, roots, cfg.Propagation.MaxDepth, propagates)

		names := make([]string, 0, len(reached))
		for name := range reached {
			names = append(names, name)
		}
		sort.Slice(names, func(i, j int) bool {
			if reached[names[i]].Depth != reached[names[j]].Depth {
				return reached[names[i]].Depth < reached[names[j]].Depth
			}
			return names[i] < names[j]
		})

		for _, name := range names {
			if direct[name] {
				continue // never downgrade a direct bump to a propagated one
			}
			info := reached[name]
			bumps[name] = cfg.Propagation.Bump
			reasons[name] = append(reasons[name], Reason{ViaPackage: info.Via.To, Depth: info.Depth})
		}
	}

	// Step C: version computation (base semver only; snapshot/prerelease
	// modifiers are applied afterward by applyVersionModifiers).
	names := make([]string, 0, len(bumps))
	for pkg := range bumps {
		names = append(names, pkg)
	}
	sort.Strings(names)

	transitions := make([]*PackageTransition, 0, len(names))
	for _, pkg := range names {
		bump := bumps[pkg]
		if bump == version.None {
			continue
		}
		pkgInfo := ws.Packages[pkg]
		newVersion := pkgInfo.Version.Bump(bump, false)
		transitions = append(transitions, &PackageTransition{
			Package:     pkg,
			FromVersion: pkgInfo.Version.String(),
			ToVersion:   newVersion.String(),
			Bump:        bump,
			Reasons:     reasons[pkg],
		})
	}

	rewritten, warnings := rewriteConstraints(ws, transitions)
	return &ReleasePlan{
		PackageTransitions:   transitions,
		RewrittenConstraints: rewritten,
		Warnings:             warnings,
	}, nil
}

// propagates implements spec.md §4.3.1 Step B's edge-kind rule: runtime and
// peer dependencies always propagate a bump to their dependent; dev
// dependencies only when the dependency is pinned to the workspace itself.
func propagates(e graph.Edge) bool {
	switch e.Kind {
	case graph.Runtime, graph.Peer:
		return true
	case graph.Dev:
		return e.Constraint == "workspace:*" || e.Constraint == "workspace:^"
	default:
		return false
	}
}

// planUnified implements spec.md §4.3.2.
func planUnified(ws *workspace.Workspace, changesets []*changeset.Changeset, cfg *config.WorkspaceConfig) (*ReleasePlan, error) {
	maxBump := version.None
	named := make(map[string]bool)
	reasons := make(map[string][]Reason)

	for _, cs := range changesets {
		b := changeset.BumpType(cs)
		if b > maxBump {
			maxBump = b
		}
		for _, pkg := range cs.Packages {
			named[pkg] = true
			reasons[pkg] = append(reasons[pkg], Reason{Direct: true, ChangesetID: cs.ID})
		}
	}

	if maxBump == version.None {
		return &ReleasePlan{}, nil
	}

	base, err := unifiedBaseVersion(ws, cfg)
	if err != nil {
		return nil, err
	}
	newVersion := base.Bump(maxBump, false)

	names := make([]string, 0, len(ws.Packages))
	for name := range ws.Packages {
		names = append(names, name)
	}
	sort.Strings(names)

	transitions := make([]*PackageTransition, 0, len(names))
	for _, name := range names {
		pkg := ws.Packages[name]
		if pkg.Private && !named[name] {
			continue
		}
		rs := reasons[name]
		if len(rs) == 0 {
			rs = []Reason{{Direct: false}}
		}
		transitions = append(transitions, &PackageTransition{
			Package:     name,
			FromVersion: pkg.Version.String(),
			ToVersion:   newVersion.String(),
			Bump:        maxBump,
			Reasons:     rs,
		})
	}

	rewritten, warnings := rewriteConstraints(ws, transitions)
	return &ReleasePlan{
		PackageTransitions:   transitions,
		RewrittenConstraints: rewritten,
		Warnings:             warnings,
	}, nil
}

func unifiedBaseVersion(ws *workspace.Workspace, cfg *config.WorkspaceConfig) (*version.Version, error) {
	if !cfg.UnifiedVersionSource.HighestCurrent() {
		return version.Parse(cfg.UnifiedVersionSource.Explicit)
	}

	var highest *version.Version
	for _, pkg := range ws.Packages {
		if pkg.Private {
			continue
		}
		if highest == nil || pkg.Version.Compare(highest) > 0 {
			highest = pkg.Version
		}
	}
	if highest == nil {
		return nil, errs.New(errs.WorkspaceInvalid,
			"unified strategy requires at least one non-private package to derive a version from")
	}
	return highest, nil
}

// rewriteConstraints implements spec.md §4.3.1 Step D: for every internal
// edge whose target's version changed, rewrite the declaring package's
// dependency spec to match the new shape, preserving the original
// constraint operator.
func rewriteConstraints(ws *workspace.Workspace, transitions []*PackageTransition) (map[string]map[string]string, []string) {
	changed := make(map[string]string, len(transitions))
	for _, t := range transitions {
		changed[t.Package] = t.ToVersion
	}

	rewritten := make(map[string]map[string]string)
	var warnings []string

	for _, from := range ws.Graph.Nodes() {
		for _, e := range ws.Graph.Edges(from) {
			newVersion, ok := changed[e.To]
			if !ok {
				continue
			}
			newSpec, handled := rewriteConstraint(e.Constraint, newVersion)
			if !handled {
				if e.Constraint != "workspace:*" {
					warnings = append(warnings, fmt.Sprintf(
						"%s: dependency on %s uses unsupported constraint form %q; left unchanged", from, e.To, e.Constraint))
				}
				continue
			}
			if rewritten[from] == nil {
				rewritten[from] = make(map[string]string)
			}
			rewritten[from][e.To] = newSpec
		}
	}
	return rewritten, warnings
}

// rewriteConstraint returns the new spec for constraint given a dependency
// whose version is now newVersion, and whether a rewrite applies at all
// (workspace:* is deliberately left unchanged since it always resolves to
// current).
func rewriteConstraint(constraint, newVersion string) (string, bool) {
	switch constraint {
	case "workspace:*":
		return constraint, false
	case "workspace:^":
		return "^" + newVersion, true
	case "workspace:~":
		return "~" + newVersion, true
	}
	if strings.HasPrefix(constraint, "^") {
		return "^" + newVersion, true
	}
	if strings.HasPrefix(constraint, "~") {
		return "~" + newVersion, true
	}
	if _, err := version.Parse(constraint); err == nil {
		return newVersion, true
	}
	return constraint, false
}

// applyVersionModifiers applies the --prerelease and --snapshot modifiers
// to every transition's ToVersion (spec.md §4.3.1 Step C), in that order:
// the snapshot template's {version} variable is the post-prerelease base.
func applyVersionModifiers(plan *ReleasePlan, cfg *config.WorkspaceConfig, mode Mode) error {
	if mode.PrereleaseTag == "" && mode.Snapshot == nil {
		return nil
	}

	renderer := template.NewRenderer(snapshotVariables...)
	for _, t := range plan.PackageTransitions {
		base := t.ToVersion

		if mode.PrereleaseTag != "" {
			parsed, err := version.Parse(base)
			if err != nil {
				return errs.Wrap(errs.InvariantViolation, err, "parsing computed version %q for %s", base, t.Package)
			}
			base = parsed.WithPrerelease(mode.PrereleaseTag).String()
		}

		if mode.Snapshot != nil {
			data := map[string]string{
				"version":      base,
				"branch":       mode.Snapshot.Branch,
				"commit":       mode.Snapshot.Commit,
				"short_commit": mode.Snapshot.ShortCommit,
				"timestamp":    mode.Snapshot.Timestamp,
			}
			rendered, err := renderer.Render(cfg.SnapshotFormat, data)
			if err != nil {
				return err
			}
			base = rendered
		}

		t.ToVersion = base
	}
	return nil
}

// orderTransitions reorders transitions to match order, dropping any name
// in order that has no transition (spec.md §4.3.1 Step E).
func orderTransitions(transitions []*PackageTransition, order []string) []*PackageTransition {
	byName := make(map[string]*PackageTransition, len(transitions))
	for _, t := range transitions {
		byName[t.Package] = t
	}
	ordered := make([]*PackageTransition, 0, len(transitions))
	for _, name := range order {
		if t, ok := byName[name]; ok {
			ordered = append(ordered, t)
		}
	}
	return ordered
}
