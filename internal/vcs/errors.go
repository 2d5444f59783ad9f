package vcs

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors returned by VCS operations.
//
// These errors can be checked using errors.Is() for proper error handling:
//
//	if errors.Is(err, vcs.ErrNotInVCS) {
//	    // Handle case where the presets directory is not a repository
//	}
var (
	// ErrNotInVCS is returned when the operation requires being inside
	// a repository but none was found.
	ErrNotInVCS = errors.New("not in a VCS repository")

	// ErrVCSNotAvailable is returned when the git binary is not installed
	// or not in PATH.
	ErrVCSNotAvailable = errors.New("VCS binary not available")

	// ErrNoRemote is returned when an operation requires a remote
	// but none is configured.
	ErrNoRemote = errors.New("no remote configured")

	// ErrConflicts is returned when an operation cannot complete
	// due to unresolved conflicts.
	ErrConflicts = errors.New("unresolved conflicts")

	// ErrPushRejected is returned when a push is rejected by the remote,
	// typically due to non-fast-forward updates.
	ErrPushRejected = errors.New("push rejected by remote")

	// ErrMergeRequired is returned when a pull results in divergent
	// histories that require a merge.
	ErrMergeRequired = errors.New("merge required")

	// ErrTimeout is returned when a VCS operation exceeds its timeout.
	ErrTimeout = errors.New("operation timed out")
)

// CommandError is returned when a VCS command exits unsuccessfully.
// It keeps the command line and its stderr for the user-facing message.
type CommandError struct {
	// Command is the command line, e.g. "git commit -m new presets"
	Command string

	// Stderr is the trimmed standard error output
	Stderr string

	// Err is the underlying exec error
	Err error
}

func (e *CommandError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s: %v: %s", e.Command, e.Err, e.Stderr)
	}
	return fmt.Sprintf("%s: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// StderrContains reports whether err is a CommandError whose stderr contains
// any of the given substrings.
func StderrContains(err error, substrs ...string) bool {
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		return false
	}
	for _, s := range substrs {
		if strings.Contains(cmdErr.Stderr, s) {
			return true
		}
	}
	return false
}

// IsUserActionRequired reports whether err needs the user to resolve
// conflicts or divergent history before the operation can succeed.
func IsUserActionRequired(err error) bool {
	if err == nil {
		return false
	}

	// Conflicts need manual resolution
	if errors.Is(err, ErrConflicts) {
		return true
	}

	// Divergent histories need merge decision
	if errors.Is(err, ErrMergeRequired) {
		return true
	}

	// Push rejected usually means divergent remote
	if errors.Is(err, ErrPushRejected) {
		return true
	}

	return false
}
