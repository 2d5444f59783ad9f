// Package gitsync keeps the presets directory in step with its git remote.
//
// # Modes
//
// In submodule mode the presets directory is a submodule of a parent
// repository. Pull syncs and updates the submodule, re-initializing it with
// --force when a plain update fails, and then merges the remote tracking
// branch. Push stages the parent's submodule pointer after pushing.
//
// In clone mode the presets directory is an ordinary clone. Pull clones it
// when missing, otherwise commits any local edits and runs git pull.
//
// # Push
//
// Push walks a fixed sequence of states and records them in Result.Trace:
//
//	idle → syncing_submodule → verifying_path → staging →
//	    no_changes → done
//	    has_changes → committing → pushing → updating_parent_pointer → done
//
// Any state may move to failed. syncing_submodule and
// updating_parent_pointer only occur in submodule mode.
//
// Staging, committing and pushing run with the process working directory
// set to the presets directory through a WorkdirGuard. The guard is released
// by defer, so the original directory is restored on success, on failure and
// when a panic is recovered into a FailureUnexpected result.
//
// Failures are never returned as errors. Each Result carries a Failure class
// and a message; command failures include the git command and its stderr.
package gitsync
