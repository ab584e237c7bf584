package applier

import (
	"context"
	"regexp"
	"strings"

	"github.com/spraguehouse/workspace-release/internal/fsio"
	"github.com/spraguehouse/workspace-release/internal/planner"
)

// lockfileNames are the lockfiles the applier touches, in detection order.
// Only one is expected to exist per repo, but nothing stops a caller from
// keeping more than one around mid-migration.
var lockfileNames = []string{"package-lock.json", "pnpm-lock.yaml", "yarn.lock"}

// touchLockfiles rewrites the internal packages' pinned version in every
// lockfile present at repoRoot, without re-resolving any external
// dependency (spec.md §4.5 step 4). This is a minimal-edit, line-scanning
// rewrite rather than a full lockfile parse: no parser for any of the three
// formats appears anywhere in the retrieval pack, and a from-scratch parser
// is out of proportion to what "bump an internal package's pinned version"
// requires.
func touchLockfiles(ctx context.Context, repoRoot string, transitions []*planner.PackageTransition) ([]FileMutation, error) {
	var mutations []FileMutation

	for _, name := range lockfileNames {
		path := repoRoot + "/" + name
		if !fsio.Exists(path) {
			continue
		}
		text, err := fsio.ReadText(ctx, path)
		if err != nil {
			return nil, err
		}

		updated := text
		for _, tr := range transitions {
			updated = bumpLockfileOccurrences(updated, tr.Package, tr.FromVersion, tr.ToVersion)
		}

		if updated != text {
			mutations = append(mutations, FileMutation{Path: path, NewContent: updated})
		}
	}

	return mutations, nil
}

// bumpLockfileOccurrences rewrites every occurrence of name's pinned
// version from to to, recognising the two shapes the supported lockfiles
// use: an inline "name@version" key (pnpm/yarn resolved specifiers) and a
// standalone version field ("version": "x" or version "x") that follows a
// line naming the package.
func bumpLockfileOccurrences(text, name, from, to string) string {
	if from == to {
		return text
	}

	nameAt := regexp.MustCompile(`(` + regexp.QuoteMeta(name) + `@)` + regexp.QuoteMeta(from) + `\b`)
	nameMarker := regexp.MustCompile(`(^|[\s"'/])` + regexp.QuoteMeta(name) + `($|[@"':\s])`)
	versionLine := regexp.MustCompile(`^(\s*(?:"version"\s*:\s*"|version\s+"|version:\s*)` + `)` + regexp.QuoteMeta(from) + `("?.*)$`)

	lines := strings.Split(text, "\n")
	active := false
	for i, line := range lines {
		if nameMarker.MatchString(line) {
			active = true
		}
		if !active {
			continue
		}
		if nameAt.MatchString(line) {
			lines[i] = nameAt.ReplaceAllString(line, "${1}"+to)
		}
		if versionLine.MatchString(line) {
			lines[i] = versionLine.ReplaceAllString(line, "${1}"+to+"${2}")
			active = false // only the first version field after the marker belongs to this package
		}
	}
	return strings.Join(lines, "\n")
}
