package applier

import (
	"context"
	"time"

	"github.com/spraguehouse/workspace-release/internal/changelog"
	"github.com/spraguehouse/workspace-release/internal/config"
	"github.com/spraguehouse/workspace-release/internal/fsio"
	"github.com/spraguehouse/workspace-release/internal/planner"
	"github.com/spraguehouse/workspace-release/internal/template"
	"github.com/spraguehouse/workspace-release/internal/workspace"
)

var changelogPathVariables = []string{"package_dir"}

// buildChangelogMutations aggregates every consumed changeset touching
// each changed package into one new CHANGELOG.md section and prepends it
// (spec.md §4.3.3, §4.5 step 3).
func buildChangelogMutations(ctx context.Context, ws *workspace.Workspace, cfg *config.WorkspaceConfig, plan *planner.ReleasePlan) ([]FileMutation, error) {
	renderer := template.NewRenderer(changelogPathVariables...)
	now := time.Now().UTC()

	var mutations []FileMutation
	for _, tr := range plan.PackageTransitions {
		pkg := ws.Packages[tr.Package]

		path, err := renderer.Render(cfg.Changelog.PathTemplate, map[string]string{"package_dir": pkg.AbsolutePath})
		if err != nil {
			return nil, err
		}

		var existing string
		if fsio.Exists(path) {
			existing, err = fsio.ReadText(ctx, path)
			if err != nil {
				return nil, err
			}
		} else {
			existing = changelog.InitialChangelog()
		}

		entry := changelog.GenerateFromChangesets(tr.Package, tr.ToVersion, now, plan.ConsumedChangesets)
		rendered := changelog.RenderAggregated(entry)

		mutations = append(mutations, FileMutation{Path: path, NewContent: changelog.Prepend(existing, rendered)})
	}
	return mutations, nil
}
