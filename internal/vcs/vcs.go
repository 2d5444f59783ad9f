// Package vcs runs version control commands on behalf of the preset sync.
//
// Commands go through a Runner so the exact sequence issued against a
// repository can be observed and faked in tests. The default ExecRunner uses
// os/exec with a per-command timeout and captures stderr into a CommandError.
//
// # Usage
//
//	run := vcs.ExecRunner{Timeout: 2 * time.Minute}
//	out, err := run.Run(ctx, repoRoot, "git", "status", "--porcelain")
//	if err != nil {
//	    var cmdErr *vcs.CommandError
//	    if errors.As(err, &cmdErr) {
//	        log.Printf("%s: %s", cmdErr.Command, cmdErr.Stderr)
//	    }
//	}
//
// # Implementations
//
//   - internal/vcs/git: git porcelain and submodule commands, plus go-git
//     based inspection
package vcs

import (
	"context"
	"time"
)

// DefaultTimeout bounds a single VCS command when no timeout is configured.
const DefaultTimeout = 2 * time.Minute

// Runner executes a VCS binary.
//
// An empty dir runs the command in the process working directory.
type Runner interface {
	Run(ctx context.Context, dir string, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	// Timeout per command. Zero means DefaultTimeout.
	Timeout time.Duration
}

// Run implements Runner.
func (r ExecRunner) Run(ctx context.Context, dir string, name string, args ...string) ([]byte, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return ExecContext(ctx, timeout, dir, name, args...)
}

// ===================
// Supporting Types
// ===================

// RemoteInfo contains information about a remote repository
type RemoteInfo struct {
	// Name is the remote name (e.g., "origin")
	Name string `json:"name" yaml:"name"`

	// URL is the remote URL
	URL string `json:"url" yaml:"url"`
}

// FileStatus represents the status of a file in the working directory
type FileStatus struct {
	// Path is the file path relative to repository root
	Path string

	// Status is the working directory status
	Status StatusCode

	// StagedCode is the staging area status
	StagedCode StatusCode
}

// StatusCode represents file status codes
type StatusCode string

const (
	StatusUnmodified StatusCode = " " // No changes
	StatusModified   StatusCode = "M" // Modified
	StatusAdded      StatusCode = "A" // Added/new file
	StatusDeleted    StatusCode = "D" // Deleted
	StatusRenamed    StatusCode = "R" // Renamed
	StatusCopied     StatusCode = "C" // Copied
	StatusUntracked  StatusCode = "?" // Untracked
	StatusIgnored    StatusCode = "!" // Ignored
	StatusConflict   StatusCode = "U" // Unmerged/conflict
)

// CommitOptions configures a commit operation
type CommitOptions struct {
	// Message is the commit message (required)
	Message string
}

// PullOptions configures a pull operation
type PullOptions struct {
	// Remote is the remote name. Empty lets git use the tracking configuration.
	Remote string

	// Ref is the reference to pull. Empty uses the upstream of the current branch.
	Ref string
}

// PushOptions configures a push operation
type PushOptions struct {
	// Remote is the remote name. Empty lets git use the tracking configuration.
	Remote string

	// Ref is the reference to push. Empty uses git's push.default behavior.
	Ref string
}

// SubmoduleOptions configures a submodule update.
type SubmoduleOptions struct {
	// Paths limits the update to these submodules. Empty = all.
	Paths []string

	// Init initializes submodules that are not yet initialized
	Init bool

	// Recursive also updates nested submodules
	Recursive bool

	// Remote fetches the submodule's remote-tracking branch instead of the recorded commit
	Remote bool

	// Merge merges the fetched commit into the submodule's current branch
	Merge bool

	// Force discards local changes in the submodule checkout
	Force bool
}
