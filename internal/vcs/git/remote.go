package git

import (
	"context"
	"fmt"
	"strings"

	"github.com/r2midi/presetctl/internal/vcs"
)

// Remotes returns the configured remotes and their fetch URLs.
func (g *Git) Remotes(ctx context.Context) ([]vcs.RemoteInfo, error) {
	output, err := g.Exec(ctx, "remote", "-v")
	if err != nil {
		return nil, fmt.Errorf("git remote -v failed: %w", err)
	}

	var remotes []vcs.RemoteInfo
	for _, line := range vcs.ParseLines(output) {
		// "origin url (fetch)"
		parts := strings.Fields(line)
		if len(parts) < 3 || parts[2] != "(fetch)" {
			continue
		}
		remotes = append(remotes, vcs.RemoteInfo{Name: parts[0], URL: parts[1]})
	}
	return remotes, nil
}

// Pull pulls changes from the remote.
//
// With no remote and ref, plain "git pull" is issued and git resolves the
// upstream itself.
func (g *Git) Pull(ctx context.Context, opts vcs.PullOptions) error {
	args := []string{"pull"}
	if opts.Remote != "" {
		args = append(args, opts.Remote)
		if opts.Ref != "" {
			args = append(args, opts.Ref)
		}
	}

	if _, err := g.Exec(ctx, args...); err != nil {
		switch {
		case vcs.StderrContains(err, "CONFLICT", "conflicts"):
			return fmt.Errorf("%w: %w", vcs.ErrConflicts, err)
		case vcs.StderrContains(err, "non-fast-forward", "divergent branches", "Not possible to fast-forward"):
			return fmt.Errorf("%w: %w", vcs.ErrMergeRequired, err)
		}
		return fmt.Errorf("git pull failed: %w", err)
	}
	return nil
}

// Push pushes changes to the remote.
//
// With no remote and ref, plain "git push" is issued so git's push.default
// and tracking configuration decide the destination.
func (g *Git) Push(ctx context.Context, opts vcs.PushOptions) error {
	args := []string{"push"}
	if opts.Remote != "" {
		args = append(args, opts.Remote)
		if opts.Ref != "" {
			args = append(args, opts.Ref)
		}
	}

	if _, err := g.Exec(ctx, args...); err != nil {
		if vcs.StderrContains(err, "rejected", "non-fast-forward") {
			return fmt.Errorf("%w: %w", vcs.ErrPushRejected, err)
		}
		if vcs.StderrContains(err, "No configured push destination", "has no upstream branch") {
			return fmt.Errorf("%w: %w", vcs.ErrNoRemote, err)
		}
		return fmt.Errorf("git push failed: %w", err)
	}
	return nil
}

// Clone clones url into dest, relative to the working tree.
func (g *Git) Clone(ctx context.Context, url, dest string) error {
	if url == "" {
		return vcs.ErrNoRemote
	}
	if _, err := g.Exec(ctx, "clone", url, dest); err != nil {
		return fmt.Errorf("git clone failed: %w", err)
	}
	return nil
}
