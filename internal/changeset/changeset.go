// Package changeset implements the file-backed store of pending
// version-bump intents keyed by branch (spec.md §4.4).
package changeset

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/spraguehouse/workspace-release/internal/errs"
	"github.com/spraguehouse/workspace-release/internal/fsio"
	"github.com/spraguehouse/workspace-release/internal/version"
	"github.com/spraguehouse/workspace-release/pkg/contracts"
)

// Commit is one git commit referenced by a changeset.
type Commit struct {
	Hash    string `json:"hash"`
	Subject string `json:"subject"`
}

// Changeset is a pending record of intent to bump one or more packages
// (spec.md §3.1, JSON shape §6.1).
type Changeset struct {
	ID           string    `json:"id"`
	Branch       string    `json:"branch"`
	Bump         string    `json:"bump"`
	Environments []string  `json:"environments"`
	Packages     []string  `json:"packages"`
	Commits      []Commit  `json:"commits"`
	Message      string    `json:"message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ArchivedChangeset is the frozen record left behind once a Changeset is
// removed or consumed (spec.md §3.1, §6.2).
type ArchivedChangeset struct {
	Changeset
	Status            string            `json:"status"`
	ArchivedAt         time.Time         `json:"archived_at"`
	ResultingVersions map[string]string `json:"resulting_versions"`
}

const (
	StatusReleased  = "released"
	StatusCancelled = "cancelled"
)

const maxIDLength = 120

var unsafeChars = regexp.MustCompile(`[\s/\\:*?"<>|]+`)
var repeatDashes = regexp.MustCompile(`-{2,}`)

// Sanitise converts a branch name into the filesystem-safe id used as its
// changeset filename (spec.md §4.4): replace whitespace, slashes, and
// shell-unsafe characters with "-", collapse repeats, lowercase, and
// length-limit to 120 characters.
func Sanitise(branch string) string {
	contracts.RequireNotEmpty(branch, "branch")

	id := unsafeChars.ReplaceAllString(branch, "-")
	id = repeatDashes.ReplaceAllString(id, "-")
	id = strings.Trim(id, "-")
	id = strings.ToLower(id)
	if len(id) > maxIDLength {
		id = id[:maxIDLength]
	}
	return id
}

// Store is the changeset store rooted at a changesets directory and an
// archive directory (spec.md §4.4).
type Store struct {
	ChangesetsDir string
	ArchiveDir    string
}

func New(changesetsDir, archiveDir string) *Store {
	contracts.RequireNotEmpty(changesetsDir, "changesetsDir")
	contracts.RequireNotEmpty(archiveDir, "archiveDir")
	return &Store{ChangesetsDir: changesetsDir, ArchiveDir: archiveDir}
}

func (s *Store) pathFor(id string) string {
	return s.ChangesetsDir + "/" + id + ".json"
}

// Create adds a new changeset for branch. Fails with DuplicateChangeset if
// one already exists for the sanitised branch id.
func (s *Store) Create(ctx context.Context, branch, bump string, environments, packages []string, message string) (*Changeset, error) {
	id := Sanitise(branch)

	unlock, err := s.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	path := s.pathFor(id)
	if fsio.Exists(path) {
		return nil, errs.New(errs.DuplicateChangeset, "a changeset already exists for branch %q (id %q); use update instead", branch, id).
			WithField("id", id)
	}

	now := time.Now().UTC()
	cs := &Changeset{
		ID:           id,
		Branch:       branch,
		Bump:         bump,
		Environments: environments,
		Packages:     packages,
		Commits:      nil,
		Message:      message,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := fsio.WriteStructured(ctx, path, cs); err != nil {
		return nil, err
	}
	return cs, nil
}

// Patch describes a delta to apply via Update.
type Patch struct {
	AppendCommits   []Commit
	AddPackages     []string
	RemovePackages  []string
	Bump            string // empty means unchanged
	Environments    []string
	Message         *string // nil means unchanged
}

// Update reads the changeset for branch, applies patch, and writes it back
// atomically. Invariant checks (environments/packages subset, bump != none)
// are the caller's responsibility via validate, since they require
// workspace/config context this package does not own.
func (s *Store) Update(ctx context.Context, branch string, patch Patch, validate func(*Changeset) error) (*Changeset, error) {
	id := Sanitise(branch)

	unlock, err := s.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	cs, err := s.readByID(ctx, id)
	if err != nil {
		return nil, err
	}

	cs.Commits = append(cs.Commits, patch.AppendCommits...)
	cs.Packages = applyPackageDelta(cs.Packages, patch.AddPackages, patch.RemovePackages)
	if patch.Bump != "" {
		cs.Bump = patch.Bump
	}
	if patch.Environments != nil {
		cs.Environments = patch.Environments
	}
	if patch.Message != nil {
		cs.Message = *patch.Message
	}
	cs.UpdatedAt = time.Now().UTC()

	if validate != nil {
		if err := validate(cs); err != nil {
			return nil, err
		}
	}

	if err := fsio.WriteStructured(ctx, s.pathFor(id), cs); err != nil {
		return nil, err
	}
	return cs, nil
}

func applyPackageDelta(current, add, remove []string) []string {
	set := make(map[string]bool, len(current))
	for _, p := range current {
		set[p] = true
	}
	for _, p := range add {
		set[p] = true
	}
	for _, p := range remove {
		delete(set, p)
	}
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// List enumerates active changesets ordered by UpdatedAt descending.
func (s *Store) List(ctx context.Context) ([]*Changeset, error) {
	names, err := fsio.ListDir(ctx, s.ChangesetsDir)
	if err != nil {
		return nil, err
	}

	var result []*Changeset
	for _, name := range names {
		if !strings.HasSuffix(name, ".json") {
			continue
		}
		cs, err := fsio.ReadStructured[Changeset](ctx, s.ChangesetsDir+"/"+name)
		if err != nil {
			return nil, err
		}
		c := cs
		result = append(result, &c)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})
	return result, nil
}

// Show returns the changeset identified by branch name or sanitised id.
func (s *Store) Show(ctx context.Context, branchOrID string) (*Changeset, error) {
	return s.readByID(ctx, Sanitise(branchOrID))
}

func (s *Store) readByID(ctx context.Context, id string) (*Changeset, error) {
	path := s.pathFor(id)
	if !fsio.Exists(path) {
		return nil, errs.New(errs.NotFound, "no changeset found for id %q", id)
	}
	cs, err := fsio.ReadStructured[Changeset](ctx, path)
	if err != nil {
		return nil, err
	}
	return &cs, nil
}

// Check reports whether a changeset exists for branch, without erroring
// when it does not — used by the CLI's exit-code-oriented `check` command.
func (s *Store) Check(branch string) bool {
	return fsio.Exists(s.pathFor(Sanitise(branch)))
}

// Remove archives the changeset for branch with status=cancelled, then
// deletes the source file. Without force, confirm is invoked to get
// interactive sign-off through whatever UI the caller owns (spec.md §4.2:
// "without force, requires interactive confirmation through the external
// UI collaborator"); a nil confirm with force=false always cancels, since
// there is nobody to ask.
func (s *Store) Remove(ctx context.Context, branch string, force bool, confirm func() bool) error {
	id := Sanitise(branch)

	unlock, err := s.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	cs, err := s.readByID(ctx, id)
	if err != nil {
		return err
	}

	if !force {
		if confirm == nil || !confirm() {
			return errs.New(errs.Cancelled, "removal of changeset %q was not confirmed", id)
		}
	}

	archived := ArchivedChangeset{
		Changeset:         *cs,
		Status:            StatusCancelled,
		ArchivedAt:        time.Now().UTC(),
		ResultingVersions: map[string]string{},
	}
	if err := s.writeArchived(ctx, &archived); err != nil {
		return err
	}
	return fsio.Remove(ctx, s.pathFor(id))
}

// Consume archives ids as released with resultingVersions recorded, then
// deletes their source files. Called by the applier (spec.md §4.4).
func (s *Store) Consume(ctx context.Context, ids []string, resultingVersions map[string]string) error {
	unlock, err := s.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	for _, id := range ids {
		cs, err := s.readByID(ctx, id)
		if err != nil {
			return err
		}

		versions := make(map[string]string, len(cs.Packages))
		for _, pkg := range cs.Packages {
			if v, ok := resultingVersions[pkg]; ok {
				versions[pkg] = v
			}
		}

		archived := ArchivedChangeset{
			Changeset:         *cs,
			Status:            StatusReleased,
			ArchivedAt:        time.Now().UTC(),
			ResultingVersions: versions,
		}
		if err := s.writeArchived(ctx, &archived); err != nil {
			return errs.Wrap(errs.ArchiveFailed, err, "archiving consumed changeset %s", id)
		}
		if err := fsio.Remove(ctx, s.pathFor(id)); err != nil {
			return errs.Wrap(errs.ArchiveFailed, err, "removing consumed changeset %s", id)
		}
	}
	return nil
}

func (s *Store) writeArchived(ctx context.Context, a *ArchivedChangeset) error {
	datePath := a.ArchivedAt.Format("2006/01-02")
	path := s.ArchiveDir + "/" + datePath + "/" + a.ID + ".json"
	return fsio.WriteStructured(ctx, path, a)
}

// HistoryFilter narrows History's results.
type HistoryFilter struct {
	Package string
	Since   time.Time
	Until   time.Time
	Status  string
}

// History scans the archive directory, returning archived changesets that
// match filters, newest first.
func (s *Store) History(ctx context.Context, filter HistoryFilter) ([]*ArchivedChangeset, error) {
	var result []*ArchivedChangeset

	years, err := fsio.ListDir(ctx, s.ArchiveDir)
	if err != nil {
		return nil, err
	}
	for _, year := range years {
		days, err := fsio.ListDir(ctx, s.ArchiveDir+"/"+year)
		if err != nil {
			return nil, err
		}
		for _, day := range days {
			files, err := fsio.ListDir(ctx, s.ArchiveDir+"/"+year+"/"+day)
			if err != nil {
				return nil, err
			}
			for _, name := range files {
				if !strings.HasSuffix(name, ".json") {
					continue
				}
				a, err := fsio.ReadStructured[ArchivedChangeset](ctx, s.ArchiveDir+"/"+year+"/"+day+"/"+name)
				if err != nil {
					return nil, err
				}
				if matchesHistory(&a, filter) {
					c := a
					result = append(result, &c)
				}
			}
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ArchivedAt.After(result[j].ArchivedAt)
	})
	return result, nil
}

func matchesHistory(a *ArchivedChangeset, f HistoryFilter) bool {
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if f.Package != "" {
		found := false
		for _, p := range a.Packages {
			if p == f.Package {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !f.Since.IsZero() && a.ArchivedAt.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && a.ArchivedAt.After(f.Until) {
		return false
	}
	return true
}

// BumpType parses a Changeset's Bump string into version.BumpType.
func BumpType(cs *Changeset) version.BumpType {
	switch cs.Bump {
	case "major":
		return version.Major
	case "minor":
		return version.Minor
	case "patch":
		return version.Patch
	default:
		return version.None
	}
}
