// Package git provides functions for analyzing git history.
// It shells out to git commands rather than using a library for simplicity
// and to match the exact behavior of git itself.
package git

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"github.com/spraguehouse/workspace-release/internal/errs"
	"github.com/spraguehouse/workspace-release/pkg/contracts"
)

// Commit represents a parsed git commit.
type Commit struct {
	// SHA is the full commit hash.
	SHA string

	// ShortSHA is the first 7 characters of the hash.
	ShortSHA string

	// Type is the conventional commit type (feat, fix, chore, etc.).
	Type string

	// Scope is the conventional commit scope (optional).
	Scope string

	// Description is the commit message subject (without type/scope prefix).
	Description string

	// IsBreaking indicates if this is a breaking change (! suffix or BREAKING CHANGE footer).
	IsBreaking bool

	// Files is the list of files changed by this commit.
	Files []string
}

// MergeInfo contains information about a merge commit.
type MergeInfo struct {
	// IsMerge is true if HEAD is a merge commit.
	IsMerge bool

	// MergeBase is the common ancestor of the merge (git merge-base of the
	// first and second parents).
	MergeBase string

	// MergeHead is the tip of the merged branch (second parent).
	MergeHead string

	// HeadSHA is the SHA of HEAD.
	HeadSHA string
}

// conventionalCommitRegex parses conventional commit messages.
// Format: type(scope)!: description  OR  type!: description  OR  type: description
var conventionalCommitRegex = regexp.MustCompile(`^(\w+)(?:\(([^)]+)\))?(!)?\s*:\s*(.+)$`)

// AnalyzeHead determines if HEAD is a merge commit and returns merge information.
func AnalyzeHead(repoPath string) (*MergeInfo, error) {
	contracts.RequireNotEmpty(repoPath, "repoPath")

	info := &MergeInfo{}

	// Get HEAD SHA
	headSHA, err := runGit(repoPath, "rev-parse", "HEAD")
	if err != nil {
		return nil, fmt.Errorf("failed to get HEAD: %w", err)
	}
	info.HeadSHA = headSHA

	// Try to get second parent (HEAD^2) - if this fails, it's not a merge commit
	mergeHead, err := runGit(repoPath, "rev-parse", "HEAD^2")
	if err != nil {
		// Not a merge commit - fall back to HEAD~1..HEAD
		info.IsMerge = false
		return info, nil
	}

	info.IsMerge = true
	info.MergeHead = mergeHead

	// Get merge base (common ancestor)
	firstParent, err := runGit(repoPath, "rev-parse", "HEAD^1")
	if err != nil {
		return nil, fmt.Errorf("failed to get first parent: %w", err)
	}

	mergeBase, err := runGit(repoPath, "merge-base", firstParent, mergeHead)
	if err != nil {
		return nil, fmt.Errorf("failed to get merge base: %w", err)
	}
	info.MergeBase = mergeBase

	return info, nil
}

// GetCommitsInRange returns all commits in the range base..head (exclusive of base).
// If head is empty, it defaults to HEAD.
func GetCommitsInRange(repoPath, base, head string) ([]*Commit, error) {
	contracts.RequireNotEmpty(repoPath, "repoPath")
	contracts.RequireNotEmpty(base, "base")

	if head == "" {
		head = "HEAD"
	}

	// Get commit list with format: SHA|subject
	rangeSpec := fmt.Sprintf("%s..%s", base, head)
	output, err := runGit(repoPath, "log", "--format=%H|%s", "--reverse", rangeSpec)
	if err != nil {
		return nil, fmt.Errorf("failed to get commits in range %s: %w", rangeSpec, err)
	}

	if output == "" {
		return nil, nil
	}

	lines := strings.Split(output, "\n")
	var commits []*Commit

	for _, line := range lines {
		if line == "" {
			continue
		}

		parts := strings.SplitN(line, "|", 2)
		if len(parts) != 2 {
			continue
		}

		sha := parts[0]
		subject := parts[1]

		commit := parseCommit(sha, subject)

		// Get changed files for this commit
		files, err := getChangedFiles(repoPath, sha)
		if err != nil {
			return nil, fmt.Errorf("failed to get changed files for %s: %w", sha[:7], err)
		}
		commit.Files = files

		commits = append(commits, commit)
	}

	return commits, nil
}

// GetCommitsSinceLastTag returns commits since the last tag matching the pattern.
// If no tag is found, returns all commits.
func GetCommitsSinceLastTag(repoPath, tagPattern string) ([]*Commit, error) {
	contracts.RequireNotEmpty(repoPath, "repoPath")

	// Get the most recent tag matching pattern
	tag, err := runGit(repoPath, "describe", "--tags", "--abbrev=0", "--match", tagPattern)
	if err != nil {
		// No matching tag - get all commits from root
		// Use empty tree as base
		return GetCommitsInRange(repoPath, "$(git rev-list --max-parents=0 HEAD)", "HEAD")
	}

	return GetCommitsInRange(repoPath, tag, "HEAD")
}

// parseCommit parses a commit SHA and subject into a Commit struct.
func parseCommit(sha, subject string) *Commit {
	commit := &Commit{
		SHA:      sha,
		ShortSHA: sha[:7],
	}

	// Try to parse as conventional commit
	matches := conventionalCommitRegex.FindStringSubmatch(subject)
	if matches != nil {
		commit.Type = strings.ToLower(matches[1])
		commit.Scope = matches[2]
		commit.IsBreaking = matches[3] == "!"
		commit.Description = matches[4]
	} else {
		// Not a conventional commit - treat as unknown type
		commit.Type = ""
		commit.Description = subject
	}

	return commit
}

// getChangedFiles returns the list of files changed by a commit.
func getChangedFiles(repoPath, sha string) ([]string, error) {
	output, err := runGit(repoPath, "diff-tree", "--no-commit-id", "--name-only", "-r", sha)
	if err != nil {
		return nil, err
	}

	if output == "" {
		return nil, nil
	}

	files := strings.Split(output, "\n")
	var result []string
	for _, f := range files {
		if f != "" {
			result = append(result, f)
		}
	}
	return result, nil
}

// runGit executes a git command and returns stdout as a string.
func runGit(repoPath string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = repoPath

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		return "", fmt.Errorf("git %s failed: %v\nstderr: %s", strings.Join(args, " "), err, stderr.String())
	}

	return strings.TrimSpace(stdout.String()), nil
}

// runGitCtx executes a git command under ctx and returns stdout, for the
// applier's suspension points (spec.md §5's cancellation model).
func runGitCtx(ctx context.Context, repoPath string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = repoPath

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s failed: %v\nstderr: %s", strings.Join(args, " "), err, stderr.String())
	}
	return strings.TrimSpace(stdout.String()), nil
}

// IsWorkingTreeClean reports whether the working tree has no staged or
// unstaged changes (spec.md §4.5 precondition 3).
func IsWorkingTreeClean(ctx context.Context, repoPath string) (bool, error) {
	contracts.RequireNotEmpty(repoPath, "repoPath")

	out, err := runGitCtx(ctx, repoPath, "status", "--porcelain")
	if err != nil {
		return false, errs.Wrap(errs.GitOperationFailed, err, "checking working tree status").WithField("phase", "status")
	}
	return out == "", nil
}

// CurrentBranch returns the name of the currently checked-out branch.
func CurrentBranch(ctx context.Context, repoPath string) (string, error) {
	contracts.RequireNotEmpty(repoPath, "repoPath")

	out, err := runGitCtx(ctx, repoPath, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", errs.Wrap(errs.GitOperationFailed, err, "resolving current branch").WithField("phase", "status")
	}
	return out, nil
}

// StageFiles runs `git add` on the given paths (spec.md §4.5 step 5). Paths
// are relative to repoPath.
func StageFiles(ctx context.Context, repoPath string, paths []string) error {
	contracts.RequireNotEmpty(repoPath, "repoPath")
	if len(paths) == 0 {
		return nil
	}

	args := append([]string{"add", "--"}, paths...)
	if _, err := runGitCtx(ctx, repoPath, args...); err != nil {
		return errs.Wrap(errs.GitOperationFailed, err, "staging %d file(s)", len(paths)).WithField("phase", "add")
	}
	return nil
}

// CreateCommit commits the staged tree with the given message.
func CreateCommit(ctx context.Context, repoPath, message string) error {
	contracts.RequireNotEmpty(repoPath, "repoPath")
	contracts.RequireNotEmpty(message, "message")

	if _, err := runGitCtx(ctx, repoPath, "commit", "-m", message); err != nil {
		return errs.Wrap(errs.GitOperationFailed, err, "creating release commit").WithField("phase", "commit")
	}
	return nil
}

// CreateAnnotatedTag creates an annotated tag at HEAD.
func CreateAnnotatedTag(ctx context.Context, repoPath, tagName, message string) error {
	contracts.RequireNotEmpty(repoPath, "repoPath")
	contracts.RequireNotEmpty(tagName, "tagName")

	if _, err := runGitCtx(ctx, repoPath, "tag", "-a", tagName, "-m", message); err != nil {
		return errs.Wrap(errs.GitOperationFailed, err, "creating annotated tag %s", tagName).WithField("phase", "tag")
	}
	return nil
}

// CreateLightweightTag creates a lightweight tag at HEAD.
func CreateLightweightTag(ctx context.Context, repoPath, tagName string) error {
	contracts.RequireNotEmpty(repoPath, "repoPath")
	contracts.RequireNotEmpty(tagName, "tagName")

	if _, err := runGitCtx(ctx, repoPath, "tag", tagName); err != nil {
		return errs.Wrap(errs.GitOperationFailed, err, "creating lightweight tag %s", tagName).WithField("phase", "tag")
	}
	return nil
}

// Push pushes the current branch and the given tags to origin. A failure
// here is deliberately not rolled back by the applier (spec.md §4.5's
// rollback policy): the commit and tags remain valid locally.
func Push(ctx context.Context, repoPath string, tags []string) error {
	contracts.RequireNotEmpty(repoPath, "repoPath")

	if _, err := runGitCtx(ctx, repoPath, "push"); err != nil {
		return errs.Wrap(errs.GitOperationFailed, err, "pushing commits").WithField("phase", "push")
	}
	for _, tag := range tags {
		if _, err := runGitCtx(ctx, repoPath, "push", "origin", tag); err != nil {
			return errs.Wrap(errs.GitOperationFailed, err, "pushing tag %s", tag).WithField("phase", "push")
		}
	}
	return nil
}

// DiffRange returns the set of files changed between base and head
// (exclusive of base), for the `changes` command.
func DiffRange(ctx context.Context, repoPath, base, head string) ([]string, error) {
	contracts.RequireNotEmpty(repoPath, "repoPath")
	contracts.RequireNotEmpty(base, "base")
	if head == "" {
		head = "HEAD"
	}

	out, err := runGitCtx(ctx, repoPath, "diff", "--name-only", base, head)
	if err != nil {
		return nil, errs.Wrap(errs.GitOperationFailed, err, "diffing %s..%s", base, head).WithField("phase", "status")
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// WorkingTreeDiff returns the set of files with uncommitted changes
// (staged or unstaged) against HEAD.
func WorkingTreeDiff(ctx context.Context, repoPath string) ([]string, error) {
	contracts.RequireNotEmpty(repoPath, "repoPath")

	out, err := runGitCtx(ctx, repoPath, "status", "--porcelain")
	if err != nil {
		return nil, errs.Wrap(errs.GitOperationFailed, err, "reading working tree status").WithField("phase", "status")
	}
	if out == "" {
		return nil, nil
	}

	lines := strings.Split(out, "\n")
	files := make([]string, 0, len(lines))
	for _, line := range lines {
		if len(line) > 3 {
			files = append(files, strings.TrimSpace(line[3:]))
		}
	}
	return files, nil
}

// IsValidSHA checks if a string looks like a valid git SHA.
func IsValidSHA(sha string) bool {
	if len(sha) < 7 || len(sha) > 40 {
		return false
	}
	for _, c := range sha {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return false
		}
	}
	return true
}
