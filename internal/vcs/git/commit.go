package git

import (
	"context"
	"fmt"
	"strings"

	"github.com/r2midi/presetctl/internal/vcs"
)

// HasChanges returns true if there are uncommitted changes
// If paths are specified, only checks those paths
func (g *Git) HasChanges(ctx context.Context, paths ...string) (bool, error) {
	statuses, err := g.Status(ctx, paths...)
	if err != nil {
		return false, err
	}
	return len(statuses) > 0, nil
}

// Add stages files for commit
func (g *Git) Add(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}

	args := append([]string{"add", "--"}, paths...)
	if _, err := g.Exec(ctx, args...); err != nil {
		return fmt.Errorf("git add failed: %w", err)
	}
	return nil
}

// Status returns the status of files in the working directory
func (g *Git) Status(ctx context.Context, paths ...string) ([]vcs.FileStatus, error) {
	args := []string{"status", "--porcelain"}
	if len(paths) > 0 {
		args = append(args, "--")
		args = append(args, paths...)
	}

	output, err := g.Exec(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("git status failed: %w", err)
	}
	return parseStatus(output), nil
}

// parseStatus parses porcelain v1 output: "XY path", X staged and Y unstaged.
func parseStatus(output []byte) []vcs.FileStatus {
	var statuses []vcs.FileStatus
	for _, line := range strings.Split(string(output), "\n") {
		if len(line) < 4 {
			continue
		}

		path := strings.TrimSpace(line[3:])
		// Renames are reported as "old -> new"
		if i := strings.Index(path, " -> "); i >= 0 {
			path = path[i+4:]
		}

		statuses = append(statuses, vcs.FileStatus{
			Path:       strings.Trim(path, `"`),
			Status:     parseStatusCode(line[1:2]),
			StagedCode: parseStatusCode(line[0:1]),
		})
	}
	return statuses
}

// parseStatusCode converts git status code to vcs.StatusCode
func parseStatusCode(code string) vcs.StatusCode {
	switch code {
	case "M":
		return vcs.StatusModified
	case "A":
		return vcs.StatusAdded
	case "D":
		return vcs.StatusDeleted
	case "R":
		return vcs.StatusRenamed
	case "C":
		return vcs.StatusCopied
	case "?":
		return vcs.StatusUntracked
	case "!":
		return vcs.StatusIgnored
	case "U":
		return vcs.StatusConflict
	default:
		return vcs.StatusUnmodified
	}
}

// Commit commits the staged changes.
func (g *Git) Commit(ctx context.Context, opts vcs.CommitOptions) error {
	if opts.Message == "" {
		return fmt.Errorf("commit message is required")
	}
	if _, err := g.Exec(ctx, "commit", "-m", opts.Message); err != nil {
		if vcs.StderrContains(err, "Merge conflict", "unmerged files") {
			return fmt.Errorf("%w: %w", vcs.ErrConflicts, err)
		}
		return fmt.Errorf("git commit failed: %w", err)
	}
	return nil
}
