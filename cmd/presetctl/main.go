package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/r2midi/presetctl/internal/catalog"
	"github.com/r2midi/presetctl/internal/client"
	"github.com/r2midi/presetctl/internal/config"
	"github.com/r2midi/presetctl/internal/gitsync"
	"github.com/r2midi/presetctl/internal/logging"
	"github.com/r2midi/presetctl/internal/surface"
	"github.com/r2midi/presetctl/internal/types"
	"github.com/r2midi/presetctl/internal/ui"
)

// skipConfig marks commands that run without loading configuration.
const skipConfig = "skip-config"

var (
	v          = config.NewViper()
	configFile string
	cfg        *config.Config
	logs       *logging.Sink
)

var rootCmd = &cobra.Command{
	Use:   "presetctl",
	Short: "Browse, edit and sync a MIDI preset catalog",
	Long: `presetctl manages a tree of MIDI device preset files:

  <root>/<manufacturer>/<device>.json
  <root>/<manufacturer>/community/<folder>.json

It scans the tree into an in-memory catalog, answers queries about
manufacturers, devices and presets, edits the JSON files in place, and
pulls or pushes the presets repository with git.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cmd.Annotations[skipConfig] == "true" {
			return
		}
		if noColor, _ := cmd.Flags().GetBool("no-color"); noColor {
			ui.DisableColor()
		}

		loaded, err := config.Load(v, configFile)
		if err != nil {
			fatalf("%v", err)
		}
		cfg = loaded

		logFile := cfg.Log.File
		if logFile == "" {
			logFile = logging.DefaultFile()
		}
		logs, err = logging.Open(logging.Options{
			File:       logFile,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			Compress:   cfg.Log.Compress,
			Verbose:    cfg.Log.Verbose,
		})
		if err != nil {
			fatalf("%v", err)
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logs != nil {
			_ = logs.Close()
		}
	},
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "catalog", Title: "Catalog:"},
		&cobra.Group{ID: "edit", Title: "Editing:"},
		&cobra.Group{ID: "sync", Title: "Sync:"},
		&cobra.Group{ID: "setup", Title: "Setup:"},
	)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Config file (default: ./presetctl.toml)")
	flags.String("root", "", "Devices directory to scan")
	flags.BoolP("verbose", "v", false, "Copy log output to stderr")
	flags.Bool("no-color", false, "Disable colored output")
	flags.StringP("output", "o", "text", "Output format: text, json or yaml")

	_ = v.BindPFlag("root", flags.Lookup("root"))
	_ = v.BindPFlag("log.verbose", flags.Lookup("verbose"))
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// ===================
// Helpers
// ===================

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

// openIndexer scans the configured root.
func openIndexer(ctx context.Context) *catalog.Indexer {
	ix := catalog.NewWithConfig(cfg.CatalogConfig(logs.Logger))
	if _, err := ix.Scan(ctx); err != nil {
		if errors.Is(err, catalog.ErrRootInaccessible) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			fmt.Fprintf(os.Stderr, "Set --root or 'root' in %s.toml to your devices directory\n", config.FileName)
			os.Exit(1)
		}
		fatalf("%v", err)
	}
	return ix
}

func newController() *gitsync.Controller {
	return gitsync.New(cfg.SyncControllerConfig(logs.Logger))
}

// newClient opens the catalog and wraps it, with sync, in a cached client.
func newClient(ctx context.Context) (*client.CachedClient, *catalog.Indexer) {
	return wrap(openIndexer(ctx))
}

// newSyncClient is newClient without the initial scan, so that a pull can
// create the devices directory. The catalog is scanned after a successful sync.
func newSyncClient() *client.CachedClient {
	c, _ := wrap(catalog.NewWithConfig(cfg.CatalogConfig(logs.Logger)))
	return c
}

func wrap(ix *catalog.Indexer) (*client.CachedClient, *catalog.Indexer) {
	c := client.New(surface.NewLocal(ix, newController(), nil), cfg.ClientOptions(logs.Logger)...)
	return c, ix
}

// render writes v as JSON or YAML, or calls text for the text format.
func render(cmd *cobra.Command, v any, text func(w io.Writer)) {
	format, _ := cmd.Flags().GetString("output")
	switch format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			fatalf("failed to encode JSON: %v", err)
		}
	case "yaml":
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			fatalf("failed to encode YAML: %v", err)
		}
		_ = enc.Close()
	case "", "text":
		text(os.Stdout)
	default:
		fatalf("unknown output format %q (want text, json or yaml)", format)
	}
}

// finish prints a mutation result and exits non-zero when it failed.
func finish(cmd *cobra.Command, res types.Result) {
	render(cmd, res, func(w io.Writer) {
		if res.OK() {
			fmt.Fprintf(w, "%s %s\n", ui.RenderPass("✓"), res.Message)
			return
		}
		if res.Status == gitsync.StatusDisabled {
			fmt.Fprintf(w, "%s %s\n", ui.RenderWarn("⚠"), res.Message)
			return
		}
		fmt.Fprintf(w, "%s %s\n", ui.RenderFail("✗"), res.Message)
	})
	if res.Status == types.StatusError {
		os.Exit(1)
	}
}

// confirm asks before a destructive change unless --yes is set.
func confirm(cmd *cobra.Command, prompt string) bool {
	if yes, _ := cmd.Flags().GetBool("yes"); yes {
		return true
	}
	if !ui.IsInteractive() {
		fatalf("%s: pass --yes to confirm in a non-interactive session", prompt)
	}
	var ok bool
	err := huh.NewConfirm().
		Title(prompt).
		Affirmative("Delete").
		Negative("Cancel").
		Value(&ok).
		Run()
	if err != nil {
		fatalf("%v", err)
	}
	return ok
}

// requireFlags exits when any of the named string flags is empty.
func requireFlags(cmd *cobra.Command, names ...string) {
	for _, name := range names {
		if val, _ := cmd.Flags().GetString(name); val == "" {
			fatalf("--%s is required", name)
		}
	}
}
