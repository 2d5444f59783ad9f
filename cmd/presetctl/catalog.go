package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/r2midi/presetctl/internal/types"
	"github.com/r2midi/presetctl/internal/ui"
)

var scanCmd = &cobra.Command{
	Use:     "scan",
	GroupID: "catalog",
	Short:   "Scan the devices directory and report what was found",
	Long: `Scan the devices directory and print a summary.

Files that cannot be parsed, and presets that fail validation, are skipped
and listed as problems. The scan itself only fails when the root directory
cannot be read.`,
	Run: func(cmd *cobra.Command, args []string) {
		start := time.Now()
		ix := openIndexer(cmd.Context())
		snap := ix.Snapshot()

		summary := struct {
			Root          string   `json:"root" yaml:"root"`
			Manufacturers int      `json:"manufacturers" yaml:"manufacturers"`
			Devices       int      `json:"devices" yaml:"devices"`
			Presets       int      `json:"presets" yaml:"presets"`
			Problems      []string `json:"problems" yaml:"problems"`
		}{
			Root:          snap.Root,
			Manufacturers: len(snap.Manufacturers()),
			Devices:       snap.DeviceCount(),
			Presets:       len(snap.AllPresets(types.PresetFilter{})),
			Problems:      []string{},
		}
		for _, p := range snap.Problems {
			summary.Problems = append(summary.Problems, p.Error())
		}

		render(cmd, summary, func(w io.Writer) {
			fmt.Fprintf(w, "%s Scanned %s in %v\n", ui.RenderPass("✓"), summary.Root, time.Since(start).Round(time.Millisecond))
			fmt.Fprintf(w, "   Manufacturers: %d\n", summary.Manufacturers)
			fmt.Fprintf(w, "   Devices: %d\n", summary.Devices)
			fmt.Fprintf(w, "   Presets: %d\n", summary.Presets)
			if len(summary.Problems) > 0 {
				fmt.Fprintf(w, "\n%s %d problems:\n", ui.RenderWarn("⚠"), len(summary.Problems))
				for _, p := range summary.Problems {
					fmt.Fprintf(w, "   %s\n", p)
				}
			}
		})
	},
}

var manufacturersCmd = &cobra.Command{
	Use:     "manufacturers",
	GroupID: "catalog",
	Short:   "List manufacturers",
	Run: func(cmd *cobra.Command, args []string) {
		c, _ := newClient(cmd.Context())
		names := c.Manufacturers(cmd.Context(), false)
		render(cmd, names, func(w io.Writer) {
			for _, name := range names {
				fmt.Fprintln(w, name)
			}
		})
	},
}

var devicesCmd = &cobra.Command{
	Use:     "devices",
	GroupID: "catalog",
	Short:   "List devices, optionally for one manufacturer",
	Run: func(cmd *cobra.Command, args []string) {
		manufacturer, _ := cmd.Flags().GetString("manufacturer")
		c, ix := newClient(cmd.Context())

		var devices []types.Device
		if manufacturer != "" {
			devices = c.DeviceInfo(cmd.Context(), manufacturer, false)
		} else {
			devices = ix.AllDevices()
		}

		render(cmd, devices, func(w io.Writer) {
			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, ui.RenderHeader("MANUFACTURER")+"\t"+ui.RenderHeader("DEVICE")+"\t"+ui.RenderHeader("PORTS")+"\t"+ui.RenderHeader("CH")+"\t"+ui.RenderHeader("FOLDERS"))
			for _, d := range devices {
				fmt.Fprintf(tw, "%s\t%s\t%s / %s\t%d/%d\t%s\n",
					d.Manufacturer, d.Name, d.MIDIPort.In, d.MIDIPort.Out,
					d.MIDIChannel.In, d.MIDIChannel.Out, strings.Join(d.CommunityFolders, ","))
			}
			_ = tw.Flush()
		})
	},
}

var presetsCmd = &cobra.Command{
	Use:     "presets",
	GroupID: "catalog",
	Short:   "List or search presets",
	Long: `List presets, narrowed by manufacturer, device and community folder.

Without --folder, a device's embedded collections are listed. With --folder,
only that community folder is listed, and only if the device declares it.
--search ranks presets across the catalog by fuzzy match on the name and
category, then applies the same filters.

Examples:
  presetctl presets --manufacturer Roland --device JV-1080
  presetctl presets --device JV-1080 --folder alice -o json
  presetctl presets --search "warm pad" --limit 10 --commands`,
	Run: func(cmd *cobra.Command, args []string) {
		manufacturer, _ := cmd.Flags().GetString("manufacturer")
		device, _ := cmd.Flags().GetString("device")
		folder, _ := cmd.Flags().GetString("folder")
		search, _ := cmd.Flags().GetString("search")
		limit, _ := cmd.Flags().GetInt("limit")
		commands, _ := cmd.Flags().GetBool("commands")

		filter := types.PresetFilter{Manufacturer: manufacturer, Device: device, CommunityFolder: folder}
		c, ix := newClient(cmd.Context())

		var presets []types.Preset
		if search != "" {
			for _, p := range ix.Search(search, 0) {
				if matches(p, filter) {
					presets = append(presets, p)
				}
			}
		} else {
			presets = c.Presets(cmd.Context(), filter, false)
		}
		if limit > 0 && len(presets) > limit {
			presets = presets[:limit]
		}
		if commands {
			for i := range presets {
				if d, ok := ix.Device(presets[i].Device); ok {
					presets[i].SendMIDICommand = presets[i].Command(d.MIDIPort.Out, d.MIDIChannel.Out)
				}
			}
		}
		if presets == nil {
			presets = []types.Preset{}
		}

		render(cmd, presets, func(w io.Writer) {
			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			header := []string{"NAME", "CATEGORY", "CC0", "PGM", "DEVICE", "SOURCE"}
			if commands {
				header = append(header, "COMMAND")
			}
			for i, h := range header {
				header[i] = ui.RenderHeader(h)
			}
			fmt.Fprintln(tw, strings.Join(header, "\t"))
			for _, p := range presets {
				line := fmt.Sprintf("%s\t%s\t%d\t%d\t%s\t%s", p.PresetName, p.Category, p.CC0, p.PGM, p.Device, p.Source)
				if commands {
					line += "\t" + ui.RenderMuted(p.SendMIDICommand)
				}
				fmt.Fprintln(tw, line)
			}
			_ = tw.Flush()
			if len(presets) == 0 {
				fmt.Fprintf(os.Stderr, "%s No presets found\n", ui.RenderWarn("⚠"))
			}
		})
	},
}

// matches applies filter to a search hit.
func matches(p types.Preset, f types.PresetFilter) bool {
	if f.Manufacturer != "" && p.Manufacturer != f.Manufacturer {
		return false
	}
	if f.Device != "" && p.Device != f.Device {
		return false
	}
	if f.CommunityFolder != "" && p.Source != f.CommunityFolder {
		return false
	}
	return true
}

var checkCmd = &cobra.Command{
	Use:     "check",
	GroupID: "catalog",
	Short:   "Check, and optionally create, a manufacturer/device layout",
	Run: func(cmd *cobra.Command, args []string) {
		requireFlags(cmd, "manufacturer", "device")
		manufacturer, _ := cmd.Flags().GetString("manufacturer")
		device, _ := cmd.Flags().GetString("device")
		create, _ := cmd.Flags().GetBool("create")

		c, _ := newClient(cmd.Context())
		ds, err := c.CheckDirectoryStructure(cmd.Context(), manufacturer, device, create)
		if err != nil {
			fatalf("%v", err)
		}

		render(cmd, ds, func(w io.Writer) {
			mark := func(ok bool) string {
				if ok {
					return ui.RenderPass("✓")
				}
				return ui.RenderFail("✗")
			}
			fmt.Fprintf(w, "%s manufacturer %s\n", mark(ds.ManufacturerExists), ds.Manufacturer)
			fmt.Fprintf(w, "%s device %s\n", mark(ds.DeviceExists), ds.Device)
			fmt.Fprintf(w, "%s device file %s\n", mark(ds.JSONExists), ds.JSONPath)
			if ds.Created {
				fmt.Fprintf(w, "\n%s Created missing entries\n", ui.RenderAccent("→"))
			}
		})
	},
}

func init() {
	devicesCmd.Flags().StringP("manufacturer", "m", "", "Only list this manufacturer's devices")

	presetsCmd.Flags().StringP("manufacturer", "m", "", "Filter by manufacturer")
	presetsCmd.Flags().StringP("device", "d", "", "Filter by device")
	presetsCmd.Flags().StringP("folder", "f", "", "List a community folder instead of the embedded collections")
	presetsCmd.Flags().StringP("search", "s", "", "Fuzzy search by name and category")
	presetsCmd.Flags().Int("limit", 0, "Show at most this many presets (0 = all)")
	presetsCmd.Flags().Bool("commands", false, "Include the sendmidi command for each preset")

	checkCmd.Flags().StringP("manufacturer", "m", "", "Manufacturer name")
	checkCmd.Flags().StringP("device", "d", "", "Device name")
	checkCmd.Flags().Bool("create", false, "Create missing directories and a minimal device file")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(manufacturersCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(presetsCmd)
	rootCmd.AddCommand(checkCmd)
}
