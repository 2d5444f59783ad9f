package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/r2midi/presetctl/internal/config"
	"github.com/r2midi/presetctl/internal/ui"
)

var configCmd = &cobra.Command{
	Use:     "config",
	GroupID: "setup",
	Short:   "Write or show presetctl configuration",
}

var configInitCmd = &cobra.Command{
	Use:         "init [path]",
	Short:       "Write a default presetctl.toml",
	Args:        cobra.MaximumNArgs(1),
	Annotations: map[string]string{skipConfig: "true"},
	Run: func(cmd *cobra.Command, args []string) {
		force, _ := cmd.Flags().GetBool("force")
		path := config.FileName + ".toml"
		if len(args) == 1 {
			path = args[0]
		}
		if err := config.WriteDefault(path, force); err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("%s Wrote %s\n", ui.RenderPass("✓"), path)
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as TOML",
	Run: func(cmd *cobra.Command, args []string) {
		if cfg.File != "" {
			fmt.Printf("# %s\n", ui.RenderMuted(cfg.File))
		} else {
			fmt.Printf("# %s\n", ui.RenderMuted("no config file, defaults and environment only"))
		}
		if err := config.Encode(os.Stdout, cfg); err != nil {
			fatalf("%v", err)
		}
	},
}

func init() {
	configInitCmd.Flags().Bool("force", false, "Overwrite an existing file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
