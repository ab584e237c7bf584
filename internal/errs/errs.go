// Package errs implements the engine's error taxonomy: one Result type per
// layer, convertible upward, with a stable Kind for scripting and a
// human-readable message. Internal invariants that should never fire in
// correct code still panic through pkg/contracts; errs is for the failure
// modes a caller is expected to branch on.
package errs

import (
	"errors"
	"fmt"
)

// Kind identifies the category of a failure, independent of its message.
type Kind int

const (
	// Unknown is the zero value and should never be returned deliberately.
	Unknown Kind = iota
	ConfigInvalid
	WorkspaceInvalid
	CyclicDependency
	DuplicateChangeset
	NotFound
	InvariantViolation
	InvalidSnapshotFormat
	DirtyWorktree
	PlanEmpty
	FileSystemTransient
	FileSystemPermanent
	GitOperationFailed
	ArchiveFailed
	Cancelled
)

func (k Kind) String() string {
	switch k {
	case ConfigInvalid:
		return "ConfigInvalid"
	case WorkspaceInvalid:
		return "WorkspaceInvalid"
	case CyclicDependency:
		return "CyclicDependency"
	case DuplicateChangeset:
		return "DuplicateChangeset"
	case NotFound:
		return "NotFound"
	case InvariantViolation:
		return "InvariantViolation"
	case InvalidSnapshotFormat:
		return "InvalidSnapshotFormat"
	case DirtyWorktree:
		return "DirtyWorktree"
	case PlanEmpty:
		return "PlanEmpty"
	case FileSystemTransient:
		return "FileSystemTransient"
	case FileSystemPermanent:
		return "FileSystemPermanent"
	case GitOperationFailed:
		return "GitOperationFailed"
	case ArchiveFailed:
		return "ArchiveFailed"
	case Cancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// ExitCode maps a Kind to the process exit code described in spec.md §6.4.
func (k Kind) ExitCode() int {
	switch k {
	case Unknown:
		return 1
	case ConfigInvalid, InvariantViolation, DirtyWorktree, PlanEmpty, InvalidSnapshotFormat:
		return 1
	case FileSystemTransient, FileSystemPermanent, GitOperationFailed, ArchiveFailed:
		return 2
	case WorkspaceInvalid, CyclicDependency, DuplicateChangeset, NotFound:
		return 3
	case Cancelled:
		return 4
	default:
		return 1
	}
}

// Error is the single Result/error type threaded through every layer.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
	// Fields carries structured context (field path, cycle members, the
	// supported snapshot variables, the git phase, ...) for callers that
	// want more than the formatted message.
	Fields map[string]any
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New creates an Error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error of the given kind that carries cause as its origin.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// WithField attaches a structured field and returns the same Error for chaining.
func (e *Error) WithField(key string, value any) *Error {
	if e.Fields == nil {
		e.Fields = make(map[string]any)
	}
	e.Fields[key] = value
	return e
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind from err, or Unknown if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}
