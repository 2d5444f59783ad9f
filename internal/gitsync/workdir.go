package gitsync

import (
	"fmt"
	"os"
	"sync"
)

// WorkdirGuard holds the process inside a directory until Release.
//
// The working directory is process-wide: only one guard may be held at a
// time and nothing else may chdir while it is.
type WorkdirGuard struct {
	orig string
	dir  string
	once sync.Once
	err  error
}

// EnterDir changes the process working directory to dir and returns a guard
// that restores the previous one. Callers defer Release immediately.
func EnterDir(dir string) (*WorkdirGuard, error) {
	orig, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to read working directory: %w", err)
	}
	if err := os.Chdir(dir); err != nil {
		return nil, fmt.Errorf("failed to enter %s: %w", dir, err)
	}
	return &WorkdirGuard{orig: orig, dir: dir}, nil
}

// Original returns the directory Release returns to.
func (g *WorkdirGuard) Original() string {
	return g.orig
}

// Release returns to the original directory. Calls after the first are no-ops
// that report the first result.
func (g *WorkdirGuard) Release() error {
	g.once.Do(func() {
		if err := os.Chdir(g.orig); err != nil {
			g.err = fmt.Errorf("failed to return to %s: %w", g.orig, err)
		}
	})
	return g.err
}
