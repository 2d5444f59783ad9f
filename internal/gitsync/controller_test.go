package gitsync

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	gogit "github.com/go-git/go-git/v5"

	"github.com/r2midi/presetctl/internal/types"
	"github.com/r2midi/presetctl/internal/vcs"
)

// call is one recorded git invocation.
type call struct {
	dir  string
	cwd  string
	args string
}

// fakeRunner records git invocations instead of running them.
type fakeRunner struct {
	calls   []call
	outputs map[string]string
	fail    map[string]string
	panicOn string
}

func (f *fakeRunner) Run(_ context.Context, dir string, _ string, args ...string) ([]byte, error) {
	cwd, _ := os.Getwd()
	key := strings.Join(args, " ")
	f.calls = append(f.calls, call{dir: dir, cwd: cwd, args: key})

	if key == f.panicOn {
		panic("runner exploded")
	}
	if stderr, ok := f.fail[key]; ok {
		return nil, &vcs.CommandError{Command: "git " + key, Stderr: stderr, Err: errors.New("exit status 1")}
	}
	return []byte(f.outputs[key]), nil
}

func (f *fakeRunner) argList() []string {
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.args
	}
	return out
}

func (f *fakeRunner) ran(args string) bool {
	for _, c := range f.calls {
		if c.args == args {
			return true
		}
	}
	return false
}

// setupParent creates a parent directory with a presets repository inside it.
func setupParent(t *testing.T) (root string, presets string) {
	t.Helper()
	root = t.TempDir()
	presets = filepath.Join(root, DefaultPresetsPath)
	if _, err := gogit.PlainInit(presets, false); err != nil {
		t.Fatalf("PlainInit() failed: %v", err)
	}
	return root, presets
}

func newTestController(root string, mode Mode, run vcs.Runner) *Controller {
	return New(&Config{
		RepoRoot:  root,
		Enabled:   true,
		Mode:      mode,
		RemoteURL: "https://example.com/midi-presets.git",
		Runner:    run,
		Logger:    log.New(io.Discard, "", 0),
	})
}

func getwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	return wd
}

func sameDir(a, b string) bool {
	ra, _ := filepath.EvalSymlinks(a)
	rb, _ := filepath.EvalSymlinks(b)
	return ra == rb
}

func TestPush_CleanTree(t *testing.T) {
	root, _ := setupParent(t)
	run := &fakeRunner{}
	c := newTestController(root, ModeClone, run)

	res := c.Push(context.Background())
	ok, msg := res.OK()
	if !ok || msg != "no changes to commit" {
		t.Fatalf("Push() = (%v, %q), want (true, %q)", ok, msg, "no changes to commit")
	}

	want := []string{"add -- .", "status --porcelain"}
	if got := run.argList(); !reflect.DeepEqual(got, want) {
		t.Errorf("git calls = %q, want %q", got, want)
	}
	if run.ran("commit -m new presets") || run.ran("push") {
		t.Error("commit or push invoked on a clean tree")
	}

	wantTrace := []State{StateIdle, StateVerifyingPath, StateStaging, StateNoChanges, StateDone}
	if !reflect.DeepEqual(res.Trace, wantTrace) {
		t.Errorf("Trace = %v, want %v", res.Trace, wantTrace)
	}
}

func TestPush_SubmoduleWithChanges(t *testing.T) {
	root, presets := setupParent(t)
	run := &fakeRunner{outputs: map[string]string{
		"status --porcelain": "M  Roland/JV-1080.json\n",
	}}
	c := newTestController(root, ModeSubmodule, run)
	before := getwd(t)

	res := c.Push(context.Background())
	if ok, msg := res.OK(); !ok {
		t.Fatalf("Push() failed: %s", msg)
	}

	want := []string{
		"submodule update --init --recursive -- midi-presets",
		"add -- .",
		"status --porcelain",
		"commit -m new presets",
		"push",
		"add -- midi-presets",
	}
	if got := run.argList(); !reflect.DeepEqual(got, want) {
		t.Fatalf("git calls = %q, want %q", got, want)
	}

	// Nested commands run inside the presets directory, parent commands in the root.
	for _, i := range []int{1, 2, 3, 4} {
		if run.calls[i].dir != "" || !sameDir(run.calls[i].cwd, presets) {
			t.Errorf("call %q ran in dir=%q cwd=%q, want cwd %s", run.calls[i].args, run.calls[i].dir, run.calls[i].cwd, presets)
		}
	}
	if !sameDir(run.calls[5].dir, root) {
		t.Errorf("parent add ran in %q, want %q", run.calls[5].dir, root)
	}
	if !sameDir(run.calls[5].cwd, before) {
		t.Errorf("parent add ran before restoring cwd: %q", run.calls[5].cwd)
	}

	wantTrace := []State{
		StateIdle, StateSyncingSubmodule, StateVerifyingPath, StateStaging, StateHasChanges,
		StateCommitting, StatePushing, StateUpdatingParentPointer, StateDone,
	}
	if !reflect.DeepEqual(res.Trace, wantTrace) {
		t.Errorf("Trace = %v, want %v", res.Trace, wantTrace)
	}
	if after := getwd(t); after != before {
		t.Errorf("working directory = %q after Push(), want %q", after, before)
	}
}

func TestPush_RestoresWorkdirOnFailure(t *testing.T) {
	root, _ := setupParent(t)
	run := &fakeRunner{
		outputs: map[string]string{"status --porcelain": "?? new.json\n"},
		fail:    map[string]string{"push": "! [rejected] main -> main (fetch first)"},
	}
	c := newTestController(root, ModeClone, run)
	before := getwd(t)

	res := c.Push(context.Background())
	ok, msg := res.OK()
	if ok {
		t.Fatal("Push() succeeded, want failure")
	}
	if res.Failure != FailureCommand {
		t.Errorf("Failure = %q, want %q", res.Failure, FailureCommand)
	}
	if !strings.Contains(msg, "rejected") {
		t.Errorf("message %q does not carry stderr", msg)
	}
	if res.Final() != StateFailed {
		t.Errorf("Final() = %s, want %s", res.Final(), StateFailed)
	}
	if after := getwd(t); after != before {
		t.Errorf("working directory = %q after failed Push(), want %q", after, before)
	}
}

func TestPush_RestoresWorkdirOnPanic(t *testing.T) {
	root, _ := setupParent(t)
	run := &fakeRunner{
		outputs: map[string]string{"status --porcelain": "?? new.json\n"},
		panicOn: "commit -m new presets",
	}
	c := newTestController(root, ModeClone, run)
	before := getwd(t)

	res := c.Push(context.Background())
	ok, msg := res.OK()
	if ok || res.Failure != FailureUnexpected {
		t.Fatalf("Push() = (%v, %q, %q), want unexpected failure", ok, msg, res.Failure)
	}
	if !strings.HasPrefix(msg, "unexpected error: ") {
		t.Errorf("message = %q", msg)
	}
	if after := getwd(t); after != before {
		t.Errorf("working directory = %q after panic, want %q", after, before)
	}
}

func TestPush_RejectedNeedsManualResolution(t *testing.T) {
	root, presets := setupParent(t)
	run := &fakeRunner{
		outputs: map[string]string{"status --porcelain": "M  Roland/JV-1080.json\n"},
		fail:    map[string]string{"push": "! [rejected] main -> main (non-fast-forward)"},
	}

	res := newTestController(root, ModeClone, run).Push(context.Background())
	ok, msg := res.OK()
	if ok || res.Failure != FailureCommand {
		t.Fatalf("Push() = (%v, %q, %q), want command failure", ok, msg, res.Failure)
	}
	if !strings.Contains(msg, "resolve manually in "+presets) {
		t.Errorf("message = %q, want a manual resolution hint", msg)
	}
}

func TestPush_CommandFailureHasNoHint(t *testing.T) {
	root, _ := setupParent(t)
	run := &fakeRunner{
		outputs: map[string]string{"status --porcelain": "M  Roland/JV-1080.json\n"},
		fail:    map[string]string{"push": "fatal: could not read Username"},
	}

	res := newTestController(root, ModeClone, run).Push(context.Background())
	if _, msg := res.OK(); strings.Contains(msg, "resolve manually") {
		t.Errorf("message = %q, want no hint for a transient failure", msg)
	}
}

func TestPush_PathChecks(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T, root string)
		failure Failure
		msg     string
	}{
		{
			name:    "missing directory",
			setup:   func(t *testing.T, root string) {},
			failure: FailureMissingDirectory,
			msg:     "not found",
		},
		{
			name: "not a directory",
			setup: func(t *testing.T, root string) {
				if err := os.WriteFile(filepath.Join(root, DefaultPresetsPath), []byte("x"), 0o644); err != nil {
					t.Fatal(err)
				}
			},
			failure: FailureNotDirectory,
			msg:     "not a directory",
		},
		{
			name: "not a repository",
			setup: func(t *testing.T, root string) {
				if err := os.Mkdir(filepath.Join(root, DefaultPresetsPath), 0o755); err != nil {
					t.Fatal(err)
				}
			},
			failure: FailureNotRepository,
			msg:     "not a git repository",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			tt.setup(t, root)
			run := &fakeRunner{}
			before := getwd(t)

			res := newTestController(root, ModeClone, run).Push(context.Background())
			ok, msg := res.OK()
			if ok {
				t.Fatal("Push() succeeded, want failure")
			}
			if res.Failure != tt.failure {
				t.Errorf("Failure = %q, want %q", res.Failure, tt.failure)
			}
			if !strings.Contains(msg, tt.msg) {
				t.Errorf("message = %q, want it to contain %q", msg, tt.msg)
			}
			if len(run.calls) != 0 {
				t.Errorf("git invoked after failed path check: %q", run.argList())
			}
			if after := getwd(t); after != before {
				t.Errorf("working directory changed to %q", after)
			}
		})
	}
}

func TestPush_PermissionDenied(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}
	root, presets := setupParent(t)
	if err := os.Chmod(presets, 0o000); err != nil {
		t.Fatal(err)
	}
	defer os.Chmod(presets, 0o755)

	res := newTestController(root, ModeClone, &fakeRunner{}).Push(context.Background())
	if res.Failure != FailurePermission {
		t.Errorf("Failure = %q, want %q (%s)", res.Failure, FailurePermission, res.Message)
	}
}

func TestSync_Disabled(t *testing.T) {
	run := &fakeRunner{}
	c := New(&Config{RepoRoot: t.TempDir(), Enabled: false, Runner: run, Logger: log.New(io.Discard, "", 0)})

	for name, op := range map[string]func(context.Context) Result{"Pull": c.Pull, "Push": c.Push} {
		res := op(context.Background())
		if res.Status != StatusDisabled || res.Message != "sync is disabled" {
			t.Errorf("%s() = %+v, want disabled", name, res)
		}
		if ok, _ := res.OK(); !ok {
			t.Errorf("%s() disabled result reported as failure", name)
		}
		if res.Failure != FailureNone {
			t.Errorf("%s() Failure = %q, want none", name, res.Failure)
		}
	}
	if len(run.calls) != 0 {
		t.Errorf("git invoked while disabled: %q", run.argList())
	}
}

func TestPull_Submodule(t *testing.T) {
	run := &fakeRunner{}
	c := newTestController(t.TempDir(), ModeSubmodule, run)

	res := c.Pull(context.Background())
	if res.Status != types.StatusSuccess {
		t.Fatalf("Pull() = %+v", res)
	}
	want := []string{
		"submodule sync --recursive",
		"submodule update --init --recursive -- midi-presets",
		"submodule update --remote --merge -- midi-presets",
	}
	if got := run.argList(); !reflect.DeepEqual(got, want) {
		t.Errorf("git calls = %q, want %q", got, want)
	}
}

func TestPull_SubmoduleFallsBackToForce(t *testing.T) {
	run := &fakeRunner{fail: map[string]string{
		"submodule update --init --recursive -- midi-presets": "fatal: reference is not a tree",
	}}
	c := newTestController(t.TempDir(), ModeSubmodule, run)

	res := c.Pull(context.Background())
	if res.Status != types.StatusSuccess {
		t.Fatalf("Pull() = %+v", res)
	}
	want := []string{
		"submodule sync --recursive",
		"submodule update --init --recursive -- midi-presets",
		"submodule deinit -f -- midi-presets",
		"submodule update --init --recursive --force -- midi-presets",
		"submodule update --remote --merge -- midi-presets",
	}
	if got := run.argList(); !reflect.DeepEqual(got, want) {
		t.Errorf("git calls = %q, want %q", got, want)
	}
}

func TestPull_SubmoduleForceFails(t *testing.T) {
	run := &fakeRunner{fail: map[string]string{
		"submodule update --init --recursive -- midi-presets":         "first",
		"submodule update --init --recursive --force -- midi-presets": "could not read Username",
	}}
	res := newTestController(t.TempDir(), ModeSubmodule, run).Pull(context.Background())
	if res.Status != types.StatusError || res.Failure != FailureCommand {
		t.Fatalf("Pull() = %+v, want command failure", res)
	}
	if !strings.Contains(res.Message, "could not read Username") {
		t.Errorf("message = %q", res.Message)
	}
}

func TestPull_CloneMissingDirectory(t *testing.T) {
	run := &fakeRunner{}
	root := t.TempDir()
	res := newTestController(root, ModeClone, run).Pull(context.Background())
	if res.Status != types.StatusSuccess {
		t.Fatalf("Pull() = %+v", res)
	}
	want := []string{"clone https://example.com/midi-presets.git midi-presets"}
	if got := run.argList(); !reflect.DeepEqual(got, want) {
		t.Errorf("git calls = %q, want %q", got, want)
	}
	if !sameDir(run.calls[0].dir, root) {
		t.Errorf("clone ran in %q, want %q", run.calls[0].dir, root)
	}
}

func TestPull_CloneAutoCommitsLocalChanges(t *testing.T) {
	root, presets := setupParent(t)
	run := &fakeRunner{outputs: map[string]string{
		"status --porcelain": " M Korg/M1.json\n",
	}}

	res := newTestController(root, ModeClone, run).Pull(context.Background())
	if res.Status != types.StatusSuccess {
		t.Fatalf("Pull() = %+v", res)
	}
	want := []string{
		"status --porcelain",
		"add -- .",
		"commit -m Auto-commit of local changes before pull",
		"pull",
	}
	if got := run.argList(); !reflect.DeepEqual(got, want) {
		t.Errorf("git calls = %q, want %q", got, want)
	}
	for _, c := range run.calls {
		if !sameDir(c.dir, presets) {
			t.Errorf("%q ran in %q, want %q", c.args, c.dir, presets)
		}
	}
}

func TestPull_CloneConflict(t *testing.T) {
	root, _ := setupParent(t)
	run := &fakeRunner{fail: map[string]string{"pull": "CONFLICT (content): Merge conflict in Korg/M1.json"}}

	res := newTestController(root, ModeClone, run).Pull(context.Background())
	if res.Failure != FailureCommand {
		t.Fatalf("Failure = %q, want %q", res.Failure, FailureCommand)
	}
	if !strings.Contains(res.Message, "Merge conflict") {
		t.Errorf("message = %q", res.Message)
	}
}

func TestParseMode(t *testing.T) {
	for _, s := range []string{"submodule", "clone"} {
		if m, err := ParseMode(s); err != nil || string(m) != s {
			t.Errorf("ParseMode(%q) = %q, %v", s, m, err)
		}
	}
	if _, err := ParseMode("mirror"); err == nil {
		t.Error("ParseMode(mirror) succeeded")
	}
}

func TestStatus(t *testing.T) {
	root, presets := setupParent(t)
	if err := os.WriteFile(filepath.Join(presets, "Korg.json"), []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	run := &fakeRunner{outputs: map[string]string{
		"remote -v": "origin\thttps://example.com/midi-presets.git (fetch)\norigin\thttps://example.com/midi-presets.git (push)\n",
	}}
	st, err := newTestController(root, ModeSubmodule, run).Status(context.Background())
	if err != nil {
		t.Fatalf("Status() failed: %v", err)
	}
	wantRemotes := []vcs.RemoteInfo{{Name: "origin", URL: "https://example.com/midi-presets.git"}}
	if !reflect.DeepEqual(st.Remotes, wantRemotes) {
		t.Errorf("Remotes = %+v, want %+v", st.Remotes, wantRemotes)
	}
	if !st.Dirty || st.Mode != ModeSubmodule || !st.Enabled {
		t.Errorf("Status() = %+v", st)
	}
	if st.Submodule {
		t.Error("Status().Submodule = true for a standalone checkout")
	}
}

// TestPush_RealGit pushes through the real git binary into a bare remote.
func TestPush_RealGit(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	root := t.TempDir()
	remote := filepath.Join(t.TempDir(), "remote.git")
	gitCmd := func(dir string, args ...string) {
		t.Helper()
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v failed: %v\n%s", args, err, out)
		}
	}
	gitCmd(root, "init", "--bare", remote)
	gitCmd(root, "clone", remote, DefaultPresetsPath)
	presets := filepath.Join(root, DefaultPresetsPath)
	gitCmd(presets, "config", "user.name", "Test User")
	gitCmd(presets, "config", "user.email", "test@example.com")
	gitCmd(presets, "config", "commit.gpgsign", "false")
	gitCmd(presets, "config", "push.default", "current")

	c := New(&Config{
		RepoRoot: root,
		Enabled:  true,
		Mode:     ModeClone,
		Logger:   log.New(io.Discard, "", 0),
	})

	if ok, msg := c.Push(context.Background()).OK(); !ok || msg != "no changes to commit" {
		t.Fatalf("Push(clean) = (%v, %q)", ok, msg)
	}

	if err := os.MkdirAll(filepath.Join(presets, "Korg"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(presets, "Korg", "M1.json"), []byte(`{"device_info":{"name":"M1"}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	if ok, msg := c.Push(context.Background()).OK(); !ok {
		t.Fatalf("Push() failed: %s", msg)
	}

	st, err := c.Status(context.Background())
	if err != nil {
		t.Fatalf("Status() failed: %v", err)
	}
	if st.Dirty || st.Head == "" {
		t.Errorf("Status() after push = %+v", st)
	}

	out, err := exec.Command("git", "--git-dir", remote, "log", "-1", "--format=%s").Output()
	if err != nil {
		t.Fatalf("git log on remote failed: %v", err)
	}
	if got := strings.TrimSpace(string(out)); got != CommitMessage {
		t.Errorf("remote head message = %q, want %q", got, CommitMessage)
	}
}
