package vcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// ===================
// Command Execution Utilities
// ===================

// ExecContext executes a VCS command with timeout and context support.
// Failures are returned as *CommandError carrying the command line and stderr.
// A missing binary wraps ErrVCSNotAvailable and an expired timeout wraps ErrTimeout.
//
// Example:
//
//	output, err := ExecContext(ctx, 30*time.Second, repoRoot, "git", "status", "--porcelain")
func ExecContext(ctx context.Context, timeout time.Duration, workDir string, name string, args ...string) ([]byte, error) {
	// Create context with timeout if specified
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = workDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		cmdErr := &CommandError{
			Command: CommandLine(name, args...),
			Stderr:  strings.TrimSpace(stderr.String()),
			Err:     err,
		}
		switch {
		case errors.Is(err, exec.ErrNotFound):
			cmdErr.Err = fmt.Errorf("%w: %v", ErrVCSNotAvailable, err)
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			cmdErr.Err = fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return stdout.Bytes(), cmdErr
	}

	return stdout.Bytes(), nil
}

// CommandLine renders a command for logs and error messages.
// Arguments containing spaces are quoted.
func CommandLine(name string, args ...string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, name)
	for _, a := range args {
		if a == "" || strings.ContainsAny(a, " \t") {
			a = fmt.Sprintf("%q", a)
		}
		parts = append(parts, a)
	}
	return strings.Join(parts, " ")
}

// ===================
// Output Parsing Utilities
// ===================

// ParseLines splits command output into non-empty lines.
// This is a common pattern for parsing VCS command output.
func ParseLines(output []byte) []string {
	if len(output) == 0 {
		return nil
	}

	lines := strings.Split(string(output), "\n")
	result := make([]string, 0, len(lines))

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			result = append(result, line)
		}
	}

	return result
}

// ===================
// Path Utilities
// ===================

// IsSubPath returns true if target is inside base directory.
func IsSubPath(base, target string) bool {
	base = filepath.Clean(base)
	target = filepath.Clean(target)

	relPath, err := filepath.Rel(base, target)
	if err != nil {
		return false
	}

	// If relative path is ".." or starts with "../", it's outside base
	return relPath != ".." && !strings.HasPrefix(relPath, ".."+string(filepath.Separator))
}

// ===================
// String Utilities
// ===================

// TrimOutput trims whitespace and trailing newlines from command output.
func TrimOutput(output []byte) string {
	return strings.TrimSpace(string(output))
}
