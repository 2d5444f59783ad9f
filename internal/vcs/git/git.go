// Package git wraps the git commands used to synchronize the preset tree.
//
// Porcelain and submodule operations shell out through a vcs.Runner so the
// sync controller can be tested against a recorded command sequence.
// Read-only inspection (is this a repository, where is HEAD, is the tree
// dirty) goes through go-git and needs no git binary.
package git

import (
	"context"

	"github.com/r2midi/presetctl/internal/vcs"
)

// Git runs git commands inside one working tree.
type Git struct {
	// root is the working tree directory commands run in
	root string

	run vcs.Runner
}

// Open returns a Git bound to dir without checking that dir is a repository.
// A nil runner uses vcs.ExecRunner with the default timeout.
func Open(dir string, run vcs.Runner) *Git {
	if run == nil {
		run = vcs.ExecRunner{}
	}
	return &Git{root: dir, run: run}
}

// Root returns the working tree directory.
func (g *Git) Root() string {
	return g.root
}

// Exec runs git with args in the working tree.
func (g *Git) Exec(ctx context.Context, args ...string) ([]byte, error) {
	return g.run.Run(ctx, g.root, "git", args...)
}
