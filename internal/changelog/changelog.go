// Package changelog handles generating and updating CHANGELOG.md files.
// It generates entries in the conventional-changelog format used by Release Please.
package changelog

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spraguehouse/workspace-release/internal/changeset"
	"github.com/spraguehouse/workspace-release/internal/git"
	"github.com/spraguehouse/workspace-release/internal/version"
	"github.com/spraguehouse/workspace-release/pkg/contracts"
)

// Entry represents a changelog entry for a single version.
type Entry struct {
	Version     string
	Date        time.Time
	CompareURL  string // URL to compare with previous version
	Commits     []*git.Commit
	Component   string
	RepoURL     string
	PrevVersion string
}

// Generate creates a changelog entry string from the given commits.
// Format matches Release Please's conventional-changelog output.
func Generate(entry *Entry) string {
	contracts.RequireNotNil(entry, "entry")
	contracts.RequireNotEmpty(entry.Version, "version")
	contracts.Require(len(entry.Commits) > 0, "commits cannot be empty")

	var sb strings.Builder

	// Header with version, compare link, and date
	dateStr := entry.Date.Format("2006-01-02")

	if entry.CompareURL != "" {
		sb.WriteString(fmt.Sprintf("## [%s](%s) (%s)\n\n", entry.Version, entry.CompareURL, dateStr))
	} else {
		sb.WriteString(fmt.Sprintf("## [%s] (%s)\n\n", entry.Version, dateStr))
	}

	// Group commits by type
	features := filterCommitsByType(entry.Commits, "feat")
	fixes := filterCommitsByType(entry.Commits, "fix")
	perfs := filterCommitsByType(entry.Commits, "perf")
	breaking := filterBreakingChanges(entry.Commits)

	// Breaking changes section (if any)
	if len(breaking) > 0 {
		sb.WriteString("### ⚠ BREAKING CHANGES\n\n")
		for _, c := range breaking {
			sb.WriteString(formatCommitLine(c, entry.RepoURL))
		}
		sb.WriteString("\n")
	}

	// Features section
	if len(features) > 0 {
		sb.WriteString("### Features\n\n")
		for _, c := range features {
			sb.WriteString(formatCommitLine(c, entry.RepoURL))
		}
		sb.WriteString("\n")
	}

	// Bug Fixes section
	if len(fixes) > 0 {
		sb.WriteString("### Bug Fixes\n\n")
		for _, c := range fixes {
			sb.WriteString(formatCommitLine(c, entry.RepoURL))
		}
		sb.WriteString("\n")
	}

	// Performance Improvements section
	if len(perfs) > 0 {
		sb.WriteString("### Performance Improvements\n\n")
		for _, c := range perfs {
			sb.WriteString(formatCommitLine(c, entry.RepoURL))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// Prepend adds a new entry to the top of an existing changelog.
// It preserves any content after the first "## " header.
func Prepend(existingChangelog, newEntry string) string {
	// Find where to insert (after the title, before first version entry)
	lines := strings.Split(existingChangelog, "\n")
	var headerLines []string
	var restLines []string
	foundHeader := false

	for i, line := range lines {
		// Look for first version header (## [x.x.x] or ## x.x.x)
		if strings.HasPrefix(line, "## ") && (strings.Contains(line, "[") || strings.Contains(line, "(")) {
			foundHeader = true
			restLines = lines[i:]
			break
		}
		headerLines = append(headerLines, line)
	}

	if !foundHeader {
		// No existing version entries, just append
		return existingChangelog + "\n" + newEntry
	}

	// Rebuild: header + new entry + existing entries
	result := strings.Join(headerLines, "\n")
	if !strings.HasSuffix(result, "\n\n") {
		if strings.HasSuffix(result, "\n") {
			result += "\n"
		} else {
			result += "\n\n"
		}
	}
	result += newEntry
	result += strings.Join(restLines, "\n")

	return result
}

// BuildCompareURL creates a GitHub compare URL between two versions.
func BuildCompareURL(repoURL, component, prevVersion, newVersion string) string {
	if repoURL == "" || prevVersion == "" {
		return ""
	}

	// Ensure repoURL doesn't end with /
	repoURL = strings.TrimSuffix(repoURL, "/")

	// Tag format: component-vX.Y.Z
	prevTag := fmt.Sprintf("%s-v%s", component, prevVersion)
	newTag := fmt.Sprintf("%s-v%s", component, newVersion)

	return fmt.Sprintf("%s/compare/%s...%s", repoURL, prevTag, newTag)
}

// filterCommitsByType returns commits matching the given type.
func filterCommitsByType(commits []*git.Commit, commitType string) []*git.Commit {
	var result []*git.Commit
	for _, c := range commits {
		if c.Type == commitType {
			result = append(result, c)
		}
	}
	return result
}

// filterBreakingChanges returns commits that are breaking changes.
func filterBreakingChanges(commits []*git.Commit) []*git.Commit {
	var result []*git.Commit
	for _, c := range commits {
		if c.IsBreaking {
			result = append(result, c)
		}
	}
	return result
}

// formatCommitLine formats a single commit as a changelog bullet point.
func formatCommitLine(commit *git.Commit, repoURL string) string {
	desc := commit.Description
	if commit.Scope != "" {
		desc = fmt.Sprintf("**%s:** %s", commit.Scope, desc)
	}

	if repoURL != "" {
		commitURL := fmt.Sprintf("%s/commit/%s", strings.TrimSuffix(repoURL, "/"), commit.SHA)
		return fmt.Sprintf("* %s ([%s](%s))\n", desc, commit.ShortSHA, commitURL)
	}

	return fmt.Sprintf("* %s (%s)\n", desc, commit.ShortSHA)
}

// AggregatedEntry is one changelog section built from every changeset
// that touched a package, rather than from a single contiguous commit
// range (spec.md §4.3.3).
type AggregatedEntry struct {
	Version   string
	Date      time.Time
	Package   string
	Breaking  []changeset.Commit
	Features  []changeset.Commit
	Fixes     []changeset.Commit
	Messages  []string
}

// GenerateFromChangesets builds an AggregatedEntry for package pkg from the
// consumed changesets that named it, grouping commits by bump level
// (Breaking/Features/Fixes) and ordering each group chronologically by the
// owning changeset's CreatedAt.
func GenerateFromChangesets(pkg, newVersion string, date time.Time, consumed []*changeset.Changeset) *AggregatedEntry {
	contracts.RequireNotEmpty(pkg, "pkg")
	contracts.RequireNotEmpty(newVersion, "newVersion")

	relevant := make([]*changeset.Changeset, 0, len(consumed))
	for _, cs := range consumed {
		if containsPackage(cs.Packages, pkg) {
			relevant = append(relevant, cs)
		}
	}
	sort.Slice(relevant, func(i, j int) bool {
		return relevant[i].CreatedAt.Before(relevant[j].CreatedAt)
	})

	entry := &AggregatedEntry{Version: newVersion, Date: date, Package: pkg}
	for _, cs := range relevant {
		switch changeset.BumpType(cs) {
		case version.Major:
			entry.Breaking = append(entry.Breaking, cs.Commits...)
		case version.Minor:
			entry.Features = append(entry.Features, cs.Commits...)
		default:
			entry.Fixes = append(entry.Fixes, cs.Commits...)
		}
		if cs.Message != "" {
			entry.Messages = append(entry.Messages, cs.Message)
		}
	}
	return entry
}

// RenderAggregated formats an AggregatedEntry in the same section layout
// Generate produces, so both paths prepend cleanly via Prepend.
func RenderAggregated(entry *AggregatedEntry) string {
	contracts.RequireNotNil(entry, "entry")

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## [%s] (%s)\n\n", entry.Version, entry.Date.Format("2006-01-02")))

	for _, msg := range entry.Messages {
		sb.WriteString(fmt.Sprintf("%s\n\n", msg))
	}

	writeChangesetSection(&sb, "### ⚠ BREAKING CHANGES\n\n", entry.Breaking)
	writeChangesetSection(&sb, "### Features\n\n", entry.Features)
	writeChangesetSection(&sb, "### Bug Fixes\n\n", entry.Fixes)

	return sb.String()
}

func writeChangesetSection(sb *strings.Builder, header string, commits []changeset.Commit) {
	if len(commits) == 0 {
		return
	}
	sb.WriteString(header)
	for _, c := range commits {
		sb.WriteString(fmt.Sprintf("* %s (%s)\n", c.Subject, shortHash(c.Hash)))
	}
	sb.WriteString("\n")
}

func shortHash(hash string) string {
	if len(hash) > 7 {
		return hash[:7]
	}
	return hash
}

func containsPackage(packages []string, pkg string) bool {
	for _, p := range packages {
		if p == pkg {
			return true
		}
	}
	return false
}

// InitialChangelog returns the template for a new CHANGELOG.md file.
func InitialChangelog() string {
	return `# Changelog

All notable changes to this project will be documented in this file.

`
}
