package gitsync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	"github.com/r2midi/presetctl/internal/types"
	"github.com/r2midi/presetctl/internal/vcs"
	"github.com/r2midi/presetctl/internal/vcs/git"
)

// Mode selects how the presets repository relates to the parent repository.
type Mode string

const (
	// ModeSubmodule treats the presets directory as a submodule of the parent.
	ModeSubmodule Mode = "submodule"

	// ModeClone treats the presets directory as an independent clone.
	ModeClone Mode = "clone"
)

// ParseMode accepts "submodule" or "clone".
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeSubmodule, ModeClone:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown sync mode %q (want %s or %s)", s, ModeSubmodule, ModeClone)
}

const (
	// DefaultPresetsPath is the presets directory relative to the parent repository.
	DefaultPresetsPath = "midi-presets"

	// CommitMessage is used for every push commit.
	CommitMessage = "new presets"

	autoCommitMessage = "Auto-commit of local changes before pull"
)

// Config holds configuration for the sync controller.
type Config struct {
	// RepoRoot is the parent repository root.
	RepoRoot string

	// PresetsPath is the presets directory relative to RepoRoot.
	PresetsPath string

	// Enabled turns sync on. A disabled controller reports StatusDisabled.
	Enabled bool

	Mode Mode

	// RemoteURL is cloned from in clone mode when the presets directory is missing.
	RemoteURL string

	// Timeout bounds each git command when Runner is nil.
	Timeout time.Duration

	// Runner executes git. Nil runs the real binary.
	Runner vcs.Runner

	// Logger for sync activity
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults for a parent repository at repoRoot.
func DefaultConfig(repoRoot string) *Config {
	return &Config{
		RepoRoot:    repoRoot,
		PresetsPath: DefaultPresetsPath,
		Enabled:     true,
		Mode:        ModeClone,
		Timeout:     vcs.DefaultTimeout,
		Logger:      log.New(os.Stderr, "[sync] ", log.LstdFlags),
	}
}

// Controller pulls and pushes the presets repository.
//
// Calls are serialized by the controller. Push changes the process working
// directory while it runs, so the embedding program must not run other
// directory-sensitive code concurrently.
type Controller struct {
	root        string
	presetsPath string
	enabled     bool
	mode        Mode
	remoteURL   string
	run         vcs.Runner
	logger      *log.Logger

	mu sync.Mutex
}

// New creates a controller from config.
func New(config *Config) *Controller {
	if config == nil {
		config = DefaultConfig(".")
	}
	root := config.RepoRoot
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	presetsPath := config.PresetsPath
	if presetsPath == "" {
		presetsPath = DefaultPresetsPath
	}
	mode := config.Mode
	if mode == "" {
		mode = ModeClone
	}
	run := config.Runner
	if run == nil {
		run = vcs.ExecRunner{Timeout: config.Timeout}
	}
	logger := config.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}

	return &Controller{
		root:        root,
		presetsPath: filepath.Clean(presetsPath),
		enabled:     config.Enabled,
		mode:        mode,
		remoteURL:   config.RemoteURL,
		run:         run,
		logger:      logger,
	}
}

// PresetsDir returns the absolute presets directory.
func (c *Controller) PresetsDir() string {
	return filepath.Join(c.root, c.presetsPath)
}

// Mode returns the configured mode.
func (c *Controller) Mode() Mode {
	return c.mode
}

// Enabled reports whether sync is turned on.
func (c *Controller) Enabled() bool {
	return c.enabled
}

func (c *Controller) parent() *git.Git {
	return git.Open(c.root, c.run)
}

func (c *Controller) disabled(op string) Result {
	c.logger.Printf("%s: sync is disabled, skipping", op)
	return Result{Status: StatusDisabled, Message: "sync is disabled"}
}

// recoverInto converts a panic into an unexpected-failure result.
func (c *Controller) recoverInto(r *run, res *Result) {
	if p := recover(); p != nil {
		c.logger.Printf("%s: panic in state %s: %v\n%s", r.op, r.current(), p, debug.Stack())
		*res = r.fail(FailureUnexpected, "unexpected error: %v", p)
	}
}

// ===================
// Push
// ===================

// Push stages, commits and pushes everything under the presets directory.
//
// On a clean tree it returns success with "no changes to commit" and never
// commits or pushes. In submodule mode the parent repository's pointer to
// the presets submodule is staged afterwards. The process working directory
// is restored on every return path, including a recovered panic.
func (c *Controller) Push(ctx context.Context) (res Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.enabled {
		return c.disabled("push")
	}

	r := &run{op: "push", logger: c.logger}
	r.enter(StateIdle)
	defer c.recoverInto(r, &res)

	if c.mode == ModeSubmodule {
		r.enter(StateSyncingSubmodule)
		if err := c.parent().SubmoduleUpdate(ctx, vcs.SubmoduleOptions{
			Paths:     []string{c.presetsPath},
			Init:      true,
			Recursive: true,
		}); err != nil {
			return c.failErr(r, err)
		}
	}

	dir := c.PresetsDir()
	r.enter(StateVerifyingPath)
	if failure, err := checkDir(dir); err != nil {
		return r.fail(failure, "%v", err)
	}

	res, committed := c.pushNested(ctx, r, dir)
	if res.Status == types.StatusError || !committed {
		return res
	}

	if c.mode == ModeSubmodule {
		r.enter(StateUpdatingParentPointer)
		if err := c.parent().Add(ctx, c.presetsPath); err != nil {
			return c.failErr(r, err)
		}
	}
	return r.done("committed and pushed changes in %s", c.presetsPath)
}

// pushNested runs the steps that execute inside the presets directory.
// committed is true when a commit was pushed and the caller should continue.
func (c *Controller) pushNested(ctx context.Context, r *run, dir string) (res Result, committed bool) {
	guard, err := EnterDir(dir)
	if err != nil {
		return c.failErr(r, err), false
	}
	defer func() {
		if err := guard.Release(); err != nil {
			c.logger.Printf("push: %v", err)
		}
	}()
	c.logger.Printf("push: entered %s (was %s)", dir, guard.Original())

	if !git.IsRepository(".") {
		return r.fail(FailureNotRepository, "not a git repository: %s", dir), false
	}

	// Commands run in the process working directory set by the guard.
	nested := git.Open("", c.run)

	r.enter(StateStaging)
	if err := nested.Add(ctx, "."); err != nil {
		return c.failErr(r, err), false
	}
	changes, err := nested.Status(ctx)
	if err != nil {
		return c.failErr(r, err), false
	}
	if len(changes) == 0 {
		r.enter(StateNoChanges)
		return r.done("no changes to commit"), false
	}

	r.enter(StateHasChanges)
	c.logger.Printf("push: %d changed paths", len(changes))

	r.enter(StateCommitting)
	if err := nested.Commit(ctx, vcs.CommitOptions{Message: CommitMessage}); err != nil {
		return c.failErr(r, err), false
	}

	r.enter(StatePushing)
	if err := nested.Push(ctx, vcs.PushOptions{}); err != nil {
		return c.failErr(r, err), false
	}
	return Result{Status: types.StatusSuccess}, true
}

// ===================
// Pull
// ===================

// Pull updates the presets directory from its remote.
//
// Submodule mode syncs and updates the submodule, falling back to a forced
// re-initialization when the plain update fails, then merges the remote
// tracking branch. Clone mode clones a missing directory, or commits local
// edits and pulls.
func (c *Controller) Pull(ctx context.Context) (res Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.enabled {
		return c.disabled("pull")
	}

	r := &run{op: "pull", logger: c.logger}
	defer c.recoverInto(r, &res)

	if c.mode == ModeSubmodule {
		res = c.pullSubmodule(ctx, r)
	} else {
		res = c.pullClone(ctx, r)
	}
	res.Trace = nil
	return res
}

func (c *Controller) pullSubmodule(ctx context.Context, r *run) Result {
	parent := c.parent()
	paths := []string{c.presetsPath}

	if err := parent.SubmoduleSync(ctx, true); err != nil {
		return c.failErr(r, err)
	}

	update := vcs.SubmoduleOptions{Paths: paths, Init: true, Recursive: true}
	if err := parent.SubmoduleUpdate(ctx, update); err != nil {
		c.logger.Printf("pull: submodule update failed, re-initializing: %v", err)

		if err := parent.SubmoduleDeinit(ctx, c.presetsPath); err != nil {
			return c.failErr(r, err)
		}
		update.Force = true
		if err := parent.SubmoduleUpdate(ctx, update); err != nil {
			return c.failErr(r, err)
		}
	}

	if err := parent.SubmoduleUpdate(ctx, vcs.SubmoduleOptions{
		Paths:  paths,
		Remote: true,
		Merge:  true,
	}); err != nil {
		return c.failErr(r, err)
	}
	return r.done("updated submodule %s", c.presetsPath)
}

func (c *Controller) pullClone(ctx context.Context, r *run) Result {
	dir := c.PresetsDir()

	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		if c.remoteURL == "" {
			return r.fail(FailureMissingDirectory, "presets directory %s does not exist and no remote URL is configured", dir)
		}
		if err := c.parent().Clone(ctx, c.remoteURL, c.presetsPath); err != nil {
			return c.failErr(r, err)
		}
		return r.done("cloned %s into %s", c.remoteURL, c.presetsPath)
	}

	if failure, err := checkDir(dir); err != nil {
		return r.fail(failure, "%v", err)
	}
	if !git.IsRepository(dir) {
		return r.fail(FailureNotRepository, "not a git repository: %s", dir)
	}

	nested := git.Open(dir, c.run)
	dirty, err := nested.HasChanges(ctx)
	if err != nil {
		return c.failErr(r, err)
	}
	if dirty {
		c.logger.Printf("pull: committing local changes in %s", dir)
		if err := nested.Add(ctx, "."); err != nil {
			return c.failErr(r, err)
		}
		if err := nested.Commit(ctx, vcs.CommitOptions{Message: autoCommitMessage}); err != nil {
			return c.failErr(r, err)
		}
	}

	if err := nested.Pull(ctx, vcs.PullOptions{}); err != nil {
		return c.failErr(r, err)
	}
	return r.done("pulled latest presets into %s", c.presetsPath)
}

// ===================
// Status
// ===================

// RepoStatus describes the presets repository.
type RepoStatus struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Mode    Mode   `json:"mode" yaml:"mode"`
	Path    string `json:"path" yaml:"path"`

	// Submodule is set when the presets checkout is a submodule of another repository.
	Submodule bool   `json:"submodule" yaml:"submodule"`
	Super     string `json:"super,omitempty" yaml:"super,omitempty"`

	Remotes []vcs.RemoteInfo `json:"remotes,omitempty" yaml:"remotes,omitempty"`

	git.RepoInfo `yaml:",inline"`
}

// Status reads HEAD, the dirty state and the remotes of the presets repository.
// A failure to list remotes is logged and leaves Remotes empty.
func (c *Controller) Status(ctx context.Context) (RepoStatus, error) {
	if err := ctx.Err(); err != nil {
		return RepoStatus{}, err
	}
	st := RepoStatus{Enabled: c.enabled, Mode: c.mode, Path: c.PresetsDir()}
	if d, err := vcs.Detect(st.Path); err == nil && d.RepoRoot == st.Path && d.Submodule {
		st.Submodule = true
		st.Super = d.SuperRoot
	}
	info, err := git.Inspect(st.Path)
	if err != nil {
		return st, err
	}
	st.RepoInfo = info

	remotes, err := git.Open(st.Path, c.run).Remotes(ctx)
	if err != nil {
		c.logger.Printf("status: %v", err)
	}
	st.Remotes = remotes
	return st, nil
}

// ===================
// Helpers
// ===================

// checkDir verifies dir exists, is a directory and can be listed.
func checkDir(dir string) (Failure, error) {
	fi, err := os.Stat(dir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return FailureMissingDirectory, fmt.Errorf("presets directory not found at %s", dir)
	case errors.Is(err, fs.ErrPermission):
		return FailurePermission, fmt.Errorf("permission denied: %s", dir)
	case err != nil:
		return FailureUnexpected, fmt.Errorf("failed to stat %s: %w", dir, err)
	case !fi.IsDir():
		return FailureNotDirectory, fmt.Errorf("path exists but is not a directory: %s", dir)
	}

	f, err := os.Open(dir)
	if err == nil {
		_, err = f.Readdirnames(1)
		f.Close()
	}
	if err != nil && !errors.Is(err, io.EOF) {
		if errors.Is(err, fs.ErrPermission) {
			return FailurePermission, fmt.Errorf("permission denied: %s", dir)
		}
		return FailureUnexpected, fmt.Errorf("failed to read %s: %w", dir, err)
	}
	return FailureNone, nil
}

// failErr fails r with err's failure class. Errors that retrying cannot clear
// carry a hint naming the directory to fix.
func (c *Controller) failErr(r *run, err error) Result {
	if vcs.IsUserActionRequired(err) {
		return r.fail(classify(err), "%v (resolve manually in %s, then retry)", err, c.PresetsDir())
	}
	return r.fail(classify(err), "%v", err)
}

// classify maps an error to its failure class.
func classify(err error) Failure {
	var cmdErr *vcs.CommandError
	switch {
	case errors.Is(err, vcs.ErrNotInVCS):
		return FailureNotRepository
	case errors.Is(err, fs.ErrPermission):
		return FailurePermission
	case errors.Is(err, fs.ErrNotExist):
		return FailureMissingDirectory
	case errors.As(err, &cmdErr):
		return FailureCommand
	}
	return FailureUnexpected
}
