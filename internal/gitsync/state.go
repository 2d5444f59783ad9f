package gitsync

import (
	"fmt"
	"log"

	"github.com/r2midi/presetctl/internal/types"
)

// StatusDisabled marks a sync call skipped because sync is turned off.
// It is a policy outcome, not an error.
const StatusDisabled = "disabled"

// State is a step of the push sequence.
type State string

const (
	StateIdle                  State = "idle"
	StateSyncingSubmodule      State = "syncing_submodule"
	StateVerifyingPath         State = "verifying_path"
	StateStaging               State = "staging"
	StateNoChanges             State = "no_changes"
	StateHasChanges            State = "has_changes"
	StateCommitting            State = "committing"
	StatePushing               State = "pushing"
	StateUpdatingParentPointer State = "updating_parent_pointer"
	StateDone                  State = "done"
	StateFailed                State = "failed"
)

// Failure classifies why a sync call did not succeed.
type Failure string

const (
	FailureNone             Failure = ""
	FailureNotRepository    Failure = "not_repository"
	FailurePermission       Failure = "permission_denied"
	FailureMissingDirectory Failure = "missing_directory"
	FailureNotDirectory     Failure = "not_directory"
	FailureCommand          Failure = "command_failed"
	FailureUnexpected       Failure = "unexpected"
)

// Result is the outcome of Pull or Push.
type Result struct {
	Status  string  `json:"status" yaml:"status"`
	Message string  `json:"message" yaml:"message"`
	Failure Failure `json:"failure,omitempty" yaml:"failure,omitempty"`

	// Trace lists the states Push passed through, in order.
	Trace []State `json:"trace,omitempty" yaml:"trace,omitempty"`
}

// OK returns the (ok, message) view of the result.
// A disabled result is not a failure.
func (r Result) OK() (bool, string) {
	return r.Status != types.StatusError, r.Message
}

// Final returns the last state reached, or StateIdle for an empty trace.
func (r Result) Final() State {
	if len(r.Trace) == 0 {
		return StateIdle
	}
	return r.Trace[len(r.Trace)-1]
}

// run tracks one Pull or Push invocation.
type run struct {
	op     string
	logger *log.Logger
	trace  []State
}

func (r *run) enter(s State) {
	r.trace = append(r.trace, s)
	r.logger.Printf("%s: %s", r.op, s)
}

func (r *run) current() State {
	if len(r.trace) == 0 {
		return StateIdle
	}
	return r.trace[len(r.trace)-1]
}

func (r *run) done(format string, args ...any) Result {
	r.enter(StateDone)
	msg := fmt.Sprintf(format, args...)
	r.logger.Printf("%s: %s", r.op, msg)
	return Result{Status: types.StatusSuccess, Message: msg, Trace: r.trace}
}

func (r *run) fail(f Failure, format string, args ...any) Result {
	from := r.current()
	r.enter(StateFailed)
	msg := fmt.Sprintf(format, args...)
	r.logger.Printf("%s failed in %s: %s", r.op, from, msg)
	return Result{Status: types.StatusError, Message: msg, Failure: f, Trace: r.trace}
}
