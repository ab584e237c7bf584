package workspace

import (
	"context"
	"encoding/json"
	"path/filepath"

	"github.com/spraguehouse/workspace-release/internal/fsio"
	"github.com/spraguehouse/workspace-release/pkg/contracts"
	"gopkg.in/yaml.v3"
)

// Layout identifies which monorepo tool declared the package set. It is a
// small closed enum rather than an interface hierarchy, matching the
// teacher's preference for tagged variants over polymorphism
// (version.BumpType is the same shape).
type Layout int

const (
	LayoutUnknown Layout = iota
	LayoutPnpm
	LayoutLerna
	LayoutRush
	LayoutNx
	LayoutNpmYarn
	LayoutSingle
)

func (l Layout) String() string {
	switch l {
	case LayoutPnpm:
		return "pnpm"
	case LayoutLerna:
		return "lerna"
	case LayoutRush:
		return "rush"
	case LayoutNx:
		return "nx"
	case LayoutNpmYarn:
		return "npm/yarn"
	case LayoutSingle:
		return "single"
	default:
		return "unknown"
	}
}

// candidates is what a layout detector produces: either explicit package
// directories (rush lists them by name) or glob patterns to expand
// (everyone else).
type candidates struct {
	dirs  []string
	globs []string
}

// layoutDetector probes root for one layout's marker file and, if present,
// returns the candidate package locations it declares.
type layoutDetector func(ctx context.Context, root string) (candidates, bool, error)

// detectors is indexed in the exact probe order of spec.md §4.2 step 1:
// pnpm-workspace.yaml, lerna.json, rush.json, nx.json, root manifest
// workspaces field, then single-package fallback.
var detectors = []struct {
	layout Layout
	probe  layoutDetector
}{
	{LayoutPnpm, detectPnpm},
	{LayoutLerna, detectLerna},
	{LayoutRush, detectRush},
	{LayoutNx, detectNx},
	{LayoutNpmYarn, detectNpmYarn},
}

type pnpmWorkspaceFile struct {
	Packages []string `yaml:"packages"`
}

func detectPnpm(ctx context.Context, root string) (candidates, bool, error) {
	path := filepath.Join(root, "pnpm-workspace.yaml")
	if !fsio.Exists(path) {
		return candidates{}, false, nil
	}
	text, err := fsio.ReadText(ctx, path)
	if err != nil {
		return candidates{}, false, err
	}
	var file pnpmWorkspaceFile
	if err := yaml.Unmarshal([]byte(text), &file); err != nil {
		return candidates{}, false, err
	}
	return candidates{globs: file.Packages}, true, nil
}

type lernaFile struct {
	Packages []string `json:"packages"`
}

func detectLerna(ctx context.Context, root string) (candidates, bool, error) {
	path := filepath.Join(root, "lerna.json")
	if !fsio.Exists(path) {
		return candidates{}, false, nil
	}
	var file lernaFile
	if err := readJSON(ctx, path, &file); err != nil {
		return candidates{}, false, err
	}
	globs := file.Packages
	if len(globs) == 0 {
		globs = []string{"packages/*"}
	}
	return candidates{globs: globs}, true, nil
}

type rushFile struct {
	Projects []struct {
		PackageName   string `json:"packageName"`
		ProjectFolder string `json:"projectFolder"`
	} `json:"projects"`
}

func detectRush(ctx context.Context, root string) (candidates, bool, error) {
	path := filepath.Join(root, "rush.json")
	if !fsio.Exists(path) {
		return candidates{}, false, nil
	}
	var file rushFile
	if err := readJSON(ctx, path, &file); err != nil {
		return candidates{}, false, err
	}
	dirs := make([]string, 0, len(file.Projects))
	for _, p := range file.Projects {
		dirs = append(dirs, filepath.Join(root, p.ProjectFolder))
	}
	return candidates{dirs: dirs}, true, nil
}

type nxFile struct {
	// Recent nx releases do not declare project globs in nx.json itself
	// (projects are discovered via project.json), so the "workspaceLayout"
	// appsDir/libsDir override is honored when present, the conventional
	// apps/* and libs/* directories are assumed otherwise, and packages/*
	// is always probed as well.
	WorkspaceLayout struct {
		AppsDir string `json:"appsDir"`
		LibsDir string `json:"libsDir"`
	} `json:"workspaceLayout"`
}

func detectNx(ctx context.Context, root string) (candidates, bool, error) {
	path := filepath.Join(root, "nx.json")
	if !fsio.Exists(path) {
		return candidates{}, false, nil
	}
	var file nxFile
	if err := readJSON(ctx, path, &file); err != nil {
		return candidates{}, false, err
	}
	appsDir := file.WorkspaceLayout.AppsDir
	if appsDir == "" {
		appsDir = "apps"
	}
	libsDir := file.WorkspaceLayout.LibsDir
	if libsDir == "" {
		libsDir = "libs"
	}
	return candidates{globs: []string{appsDir + "/*", libsDir + "/*", "packages/*"}}, true, nil
}

type rootManifestWorkspaces struct {
	Name       string      `json:"name"`
	Workspaces interface{} `json:"workspaces"`
}

func detectNpmYarn(ctx context.Context, root string) (candidates, bool, error) {
	path := filepath.Join(root, "package.json")
	if !fsio.Exists(path) {
		return candidates{}, false, nil
	}
	var file rootManifestWorkspaces
	if err := readJSON(ctx, path, &file); err != nil {
		return candidates{}, false, err
	}

	var globs []string
	switch w := file.Workspaces.(type) {
	case []interface{}:
		for _, g := range w {
			if s, ok := g.(string); ok {
				globs = append(globs, s)
			}
		}
	case map[string]interface{}:
		if raw, ok := w["packages"].([]interface{}); ok {
			for _, g := range raw {
				if s, ok := g.(string); ok {
					globs = append(globs, s)
				}
			}
		}
	default:
		return candidates{}, false, nil
	}
	if len(globs) == 0 {
		return candidates{}, false, nil
	}
	return candidates{globs: globs}, true, nil
}

func readJSON(ctx context.Context, path string, out any) error {
	text, err := fsio.ReadText(ctx, path)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(text), out)
}

// expand resolves candidates to a deduplicated list of package directories
// under root: the explicit dirs first, then each glob's matches in the
// lexical order filepath.Glob returns them. The list as a whole is not sorted.
func expand(root string, c candidates) ([]string, error) {
	contracts.RequireNotEmpty(root, "root")

	seen := make(map[string]bool)
	var dirs []string

	add := func(dir string) {
		if !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}

	for _, d := range c.dirs {
		add(d)
	}
	for _, pattern := range c.globs {
		matches, err := filepath.Glob(filepath.Join(root, pattern))
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			add(m)
		}
	}
	return dirs, nil
}
