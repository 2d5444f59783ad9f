package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/r2midi/presetctl/internal/catalog"
	"github.com/r2midi/presetctl/internal/types"
	"github.com/r2midi/presetctl/internal/ui"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	GroupID: "catalog",
	Short:   "Rescan the catalog whenever preset files change (foreground)",
	Long: `Watch the devices directory and rescan whenever a JSON file changes.

Bursts of changes, such as a git pull touching many files, are batched into
one rescan after the tree has been quiet for --debounce. Each rescan prints
a one-line summary.`,
	Run: func(cmd *cobra.Command, args []string) {
		debounce, _ := cmd.Flags().GetDuration("debounce")

		ix := openIndexer(cmd.Context())
		w, err := catalog.NewWatcher(ix, &catalog.WatchConfig{
			DebounceInterval: debounce,
			Logger:           logs.Logger("watch"),
			OnScan: func(snap *catalog.Snapshot) {
				fmt.Printf("%s %s rescanned: %d devices, %d presets, %d problems\n",
					ui.RenderMuted(snap.ScannedAt.Format("15:04:05")), ui.RenderAccent("↻"),
					snap.DeviceCount(), len(snap.AllPresets(types.PresetFilter{})), len(snap.Problems))
			},
		})
		if err != nil {
			fatalf("%v", err)
		}

		fmt.Printf("%s Watching %s\n", ui.RenderAccent("👀"), ix.Root())
		fmt.Printf("\nPress Ctrl+C to stop\n\n")

		if err := w.Run(cmd.Context()); err != nil {
			fmt.Fprintf(os.Stderr, "Watcher stopped with error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("\nStopped after %d rescans\n", w.Scans())
	},
}

func init() {
	watchCmd.Flags().Duration("debounce", 250*time.Millisecond, "Quiet period before a rescan")
	rootCmd.AddCommand(watchCmd)
}
