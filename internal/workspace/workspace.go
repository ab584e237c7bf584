// Package workspace detects a monorepo's layout, enumerates its packages,
// parses their manifests, and builds the internal dependency graph
// (spec.md §4.2).
package workspace

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sort"

	"github.com/spraguehouse/workspace-release/internal/errs"
	"github.com/spraguehouse/workspace-release/internal/fsio"
	"github.com/spraguehouse/workspace-release/internal/graph"
	"github.com/spraguehouse/workspace-release/internal/logging"
	"github.com/spraguehouse/workspace-release/internal/version"
	"github.com/spraguehouse/workspace-release/pkg/contracts"
)

// Strategy is the release strategy a workspace operates under.
type Strategy int

const (
	Independent Strategy = iota
	Unified
)

func (s Strategy) String() string {
	if s == Unified {
		return "unified"
	}
	return "independent"
}

// Package is one workspace member as discovered from its manifest.
type Package struct {
	Name         string
	Version      *version.Version
	AbsolutePath string
	ManifestPath string
	Private      bool
	// DependencyKinds holds every declared dependency, internal and
	// external, keyed by kind then target name, mapping to the original
	// spec string. External entries are retained here (not in the graph)
	// for constraint rewriting and reporting, per spec.md §4.2 step 4.
	DependencyKinds map[graph.EdgeKind]map[string]string
}

// Workspace is the detected package set and its internal dependency graph.
type Workspace struct {
	RootPath string
	Strategy Strategy
	Layout   Layout
	Packages map[string]*Package
	Graph    *graph.Graph
	// Cycle is non-nil when the graph contains a cycle that propagation
	// was configured to tolerate (FailOnCircular=false). When
	// FailOnCircular is true, Detect returns errs.CyclicDependency instead
	// of populating this field.
	Cycle graph.Cycle
}

// Options configures workspace detection.
type Options struct {
	// LayoutOverride, if not LayoutUnknown, skips the probe order and uses
	// this layout's detector directly.
	LayoutOverride Layout
	// Strategy is the configured release strategy, carried onto the
	// resulting Workspace for the planner to read.
	Strategy Strategy
	// FailOnCircular mirrors WorkspaceConfig.propagation.fail_on_circular
	// (spec.md §4.2 step 5).
	FailOnCircular bool
}

type packageManifest struct {
	Name                 string            `json:"name"`
	Version              string            `json:"version"`
	Private              bool              `json:"private"`
	Dependencies         map[string]string `json:"dependencies"`
	DevDependencies      map[string]string `json:"devDependencies"`
	PeerDependencies     map[string]string `json:"peerDependencies"`
	OptionalDependencies map[string]string `json:"optionalDependencies"`
}

// Detect runs the layout probe, enumerates packages, parses their
// manifests, and builds the dependency graph.
func Detect(ctx context.Context, root string, opts Options) (*Workspace, error) {
	contracts.RequireNotEmpty(root, "root")

	layout, dirs, err := resolveLayout(ctx, root, opts.LayoutOverride)
	if err != nil {
		return nil, err
	}

	packages := make(map[string]*Package)
	for _, dir := range dirs {
		pkg, ok, err := loadPackage(ctx, dir)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if existing, dup := packages[pkg.Name]; dup {
			return nil, errs.New(errs.WorkspaceInvalid,
				"duplicate package name %q at %s and %s", pkg.Name, existing.AbsolutePath, pkg.AbsolutePath)
		}
		packages[pkg.Name] = pkg
	}

	if len(packages) == 0 {
		return nil, errs.New(errs.WorkspaceInvalid, "no packages found under %s (layout %s)", root, layout)
	}

	g := buildGraph(packages)

	ws := &Workspace{
		RootPath: root,
		Strategy: opts.Strategy,
		Layout:   layout,
		Packages: packages,
		Graph:    g,
	}

	if cycle := g.FindCycle(); cycle != nil {
		if opts.FailOnCircular {
			return nil, errs.New(errs.CyclicDependency, "dependency cycle detected: %s", cycle).
				WithField("cycle", []string(cycle))
		}
		logging.Workspace.Warn().Strs("cycle", cycle).Msg("dependency cycle detected; propagation will not cross it")
		ws.Cycle = cycle
	}

	logging.Workspace.Info().
		Str("layout", layout.String()).
		Int("packages", len(packages)).
		Msg("workspace detected")

	return ws, nil
}

// resolveLayout runs the probe order of spec.md §4.2 step 1, or a single
// forced detector when override is set.
func resolveLayout(ctx context.Context, root string, override Layout) (Layout, []string, error) {
	if override != LayoutUnknown && override != LayoutSingle {
		for _, d := range detectors {
			if d.layout != override {
				continue
			}
			c, matched, err := d.probe(ctx, root)
			if err != nil {
				return LayoutUnknown, nil, errs.Wrap(errs.WorkspaceInvalid, err, "probing %s layout", override)
			}
			if !matched {
				return LayoutUnknown, nil, errs.New(errs.WorkspaceInvalid, "layout %s was forced but its marker file is absent under %s", override, root)
			}
			dirs, err := expand(root, c)
			if err != nil {
				return LayoutUnknown, nil, errs.Wrap(errs.WorkspaceInvalid, err, "expanding %s package globs", override)
			}
			return override, dirs, nil
		}
	}
	if override == LayoutSingle {
		return LayoutSingle, []string{root}, nil
	}

	for _, d := range detectors {
		c, matched, err := d.probe(ctx, root)
		if err != nil {
			return LayoutUnknown, nil, errs.Wrap(errs.WorkspaceInvalid, err, "probing %s layout", d.layout)
		}
		if !matched {
			continue
		}
		dirs, err := expand(root, c)
		if err != nil {
			return LayoutUnknown, nil, errs.Wrap(errs.WorkspaceInvalid, err, "expanding %s package globs", d.layout)
		}
		return d.layout, dirs, nil
	}

	// Fallback: single-package repo rooted at root itself.
	return LayoutSingle, []string{root}, nil
}

// loadPackage parses dir's package.json into a Package. A directory with no
// package.json, or whose manifest has no name, is skipped (ok=false), not an
// error, since glob expansion commonly matches non-package directories. A
// manifest that does not parse, or whose version is not valid semver, is a
// WorkspaceInvalid error.
func loadPackage(ctx context.Context, dir string) (*Package, bool, error) {
	manifestPath := filepath.Join(dir, "package.json")
	if !fsio.Exists(manifestPath) {
		return nil, false, nil
	}

	text, err := fsio.ReadText(ctx, manifestPath)
	if err != nil {
		return nil, false, err
	}

	var m packageManifest
	if err := json.Unmarshal([]byte(text), &m); err != nil {
		return nil, false, errs.Wrap(errs.WorkspaceInvalid, err, "parsing manifest %s", manifestPath)
	}
	if m.Name == "" {
		return nil, false, nil
	}

	v, err := version.Parse(m.Version)
	if err != nil {
		return nil, false, errs.Wrap(errs.WorkspaceInvalid, err, "package %s has an unparseable version %q", m.Name, m.Version)
	}

	kinds := map[graph.EdgeKind]map[string]string{
		graph.Runtime:  m.Dependencies,
		graph.Dev:      m.DevDependencies,
		graph.Peer:     m.PeerDependencies,
		graph.Optional: m.OptionalDependencies,
	}
	for k, deps := range kinds {
		if deps == nil {
			kinds[k] = map[string]string{}
		}
	}

	return &Package{
		Name:            m.Name,
		Version:         v,
		AbsolutePath:    dir,
		ManifestPath:    manifestPath,
		Private:         m.Private,
		DependencyKinds: kinds,
	}, true, nil
}

// buildGraph constructs the internal dependency DAG: an edge is created
// only when the target name is itself a workspace package (spec.md §4.2
// step 4); external dependencies remain on Package.DependencyKinds only.
func buildGraph(packages map[string]*Package) *graph.Graph {
	names := make([]string, 0, len(packages))
	for name := range packages {
		names = append(names, name)
	}
	sort.Strings(names)

	var edges []graph.Edge
	for _, name := range names {
		pkg := packages[name]
		for _, kind := range []graph.EdgeKind{graph.Runtime, graph.Dev, graph.Peer, graph.Optional} {
			deps := pkg.DependencyKinds[kind]
			depNames := make([]string, 0, len(deps))
			for dep := range deps {
				depNames = append(depNames, dep)
			}
			sort.Strings(depNames)
			for _, dep := range depNames {
				if _, internal := packages[dep]; !internal {
					continue
				}
				edges = append(edges, graph.Edge{
					From:       name,
					To:         dep,
					Kind:       kind,
					Constraint: deps[dep],
				})
			}
		}
	}

	return graph.New(names, edges)
}

// PublishedNames returns the workspace's package names excluding private
// packages, for callers building a "published name" view (spec.md §4.2
// step 2).
func (w *Workspace) PublishedNames() []string {
	var names []string
	for name, pkg := range w.Packages {
		if !pkg.Private {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
