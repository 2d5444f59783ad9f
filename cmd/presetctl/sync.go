package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/r2midi/presetctl/internal/ui"
	"github.com/r2midi/presetctl/internal/vcs"
)

func requireGit() {
	if cfg.Sync.Enabled && !vcs.IsGitAvailable() {
		fatalf("%v: install git or set sync.enabled = false", vcs.ErrVCSNotAvailable)
	}
}

var syncCmd = &cobra.Command{
	Use:     "sync",
	GroupID: "sync",
	Short:   "Pull or push the presets repository",
	Long: `Synchronize the presets repository with its remote.

In submodule mode the presets directory is a git submodule of the current
repository; in clone mode it is an independent clone. The mode comes from
sync.mode in the config file, PRESETCTL_SYNC_MODE, or R2MIDI_ROLE=dev
(submodule).`,
}

var syncPullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Bring the presets directory up to date",
	Long: `Bring the presets directory up to date.

Submodule mode syncs and updates the submodule, re-initializing it if the
update fails, then merges the submodule's remote branch. Clone mode clones
the repository when the directory is missing, commits any local changes and
pulls.`,
	Run: func(cmd *cobra.Command, args []string) {
		requireGit()
		c := newSyncClient()
		fmt.Fprintf(os.Stderr, "%s Pulling %s...\n", ui.RenderAccent("🔄"), cfg.Sync.PresetsPath)
		finish(cmd, c.Pull(cmd.Context()))
	},
}

var syncPushCmd = &cobra.Command{
	Use:   "push",
	Short: "Commit and push local preset changes",
	Long: `Stage everything under the presets directory, commit it as "new presets"
and push. A clean tree is reported as "no changes to commit" and nothing is
committed. In submodule mode the parent repository's submodule pointer is
staged afterwards.`,
	Run: func(cmd *cobra.Command, args []string) {
		requireGit()
		c := newSyncClient()
		fmt.Fprintf(os.Stderr, "%s Pushing %s...\n", ui.RenderAccent("🔄"), cfg.Sync.PresetsPath)
		finish(cmd, c.Push(cmd.Context()))
	},
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the presets repository's HEAD and local changes",
	Run: func(cmd *cobra.Command, args []string) {
		st, err := newController().Status(cmd.Context())
		if err != nil {
			fatalf("%v", err)
		}
		render(cmd, st, func(w io.Writer) {
			fmt.Fprintf(w, "\n%s Presets Repository\n\n", ui.RenderAccent("📊"))
			fmt.Fprintf(w, "Location: %s\n", st.Path)
			fmt.Fprintf(w, "Mode: %s\n", st.Mode)
			if st.Submodule {
				fmt.Fprintf(w, "Submodule of: %s\n", st.Super)
			}
			if !st.Enabled {
				fmt.Fprintf(w, "Sync: %s\n", ui.RenderWarn("disabled"))
			}
			branch := st.Branch
			if branch == "" {
				branch = ui.RenderMuted("(detached)")
			}
			fmt.Fprintf(w, "Branch: %s\n", branch)
			if st.Head != "" {
				fmt.Fprintf(w, "HEAD: %s\n", st.Head)
			}
			for _, r := range st.Remotes {
				fmt.Fprintf(w, "Remote: %s %s\n", r.Name, ui.RenderMuted(r.URL))
			}
			if !st.Dirty {
				fmt.Fprintf(w, "Changes: %s\n\n", ui.RenderPass("none"))
				return
			}
			fmt.Fprintf(w, "Changes: %s\n", ui.RenderWarn(fmt.Sprintf("%d files", len(st.Changed))))
			for _, path := range st.Changed {
				fmt.Fprintf(w, "   %s\n", path)
			}
			fmt.Fprintln(w)
		})
	},
}

func init() {
	syncCmd.AddCommand(syncPullCmd)
	syncCmd.AddCommand(syncPushCmd)
	syncCmd.AddCommand(syncStatusCmd)
	rootCmd.AddCommand(syncCmd)
}
