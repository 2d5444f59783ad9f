package git

import (
	"context"
	"fmt"

	"github.com/r2midi/presetctl/internal/vcs"
)

// SubmoduleSync copies submodule URLs from .gitmodules into the local config.
func (g *Git) SubmoduleSync(ctx context.Context, recursive bool) error {
	args := []string{"submodule", "sync"}
	if recursive {
		args = append(args, "--recursive")
	}
	if _, err := g.Exec(ctx, args...); err != nil {
		return fmt.Errorf("git submodule sync failed: %w", err)
	}
	return nil
}

// SubmoduleUpdate checks out submodules as configured by opts.
func (g *Git) SubmoduleUpdate(ctx context.Context, opts vcs.SubmoduleOptions) error {
	args := []string{"submodule", "update"}
	if opts.Init {
		args = append(args, "--init")
	}
	if opts.Recursive {
		args = append(args, "--recursive")
	}
	if opts.Force {
		args = append(args, "--force")
	}
	if opts.Remote {
		args = append(args, "--remote")
	}
	if opts.Merge {
		args = append(args, "--merge")
	}
	if len(opts.Paths) > 0 {
		args = append(args, "--")
		args = append(args, opts.Paths...)
	}

	if _, err := g.Exec(ctx, args...); err != nil {
		if vcs.StderrContains(err, "CONFLICT", "Unable to merge") {
			return fmt.Errorf("%w: %w", vcs.ErrConflicts, err)
		}
		return fmt.Errorf("git submodule update failed: %w", err)
	}
	return nil
}

// SubmoduleDeinit unregisters the submodule at path and removes its checkout.
func (g *Git) SubmoduleDeinit(ctx context.Context, path string) error {
	if _, err := g.Exec(ctx, "submodule", "deinit", "-f", "--", path); err != nil {
		return fmt.Errorf("git submodule deinit failed: %w", err)
	}
	return nil
}
