package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/r2midi/presetctl/internal/types"
)

// ===================
// Manufacturers
// ===================

var manufacturerCmd = &cobra.Command{
	Use:     "manufacturer",
	GroupID: "edit",
	Short:   "Create or delete manufacturers",
}

var manufacturerCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a manufacturer directory",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		c, _ := newClient(cmd.Context())
		finish(cmd, c.CreateManufacturer(cmd.Context(), args[0]))
	},
}

var manufacturerDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a manufacturer and all of its devices",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if !confirm(cmd, fmt.Sprintf("Delete manufacturer %s and every device under it?", args[0])) {
			return
		}
		c, _ := newClient(cmd.Context())
		finish(cmd, c.DeleteManufacturer(cmd.Context(), args[0]))
	},
}

// ===================
// Devices
// ===================

var deviceCmd = &cobra.Command{
	Use:     "device",
	GroupID: "edit",
	Short:   "Create, update or delete devices",
}

func deviceSpec(cmd *cobra.Command) types.DeviceSpec {
	requireFlags(cmd, "manufacturer", "name")
	manufacturer, _ := cmd.Flags().GetString("manufacturer")
	name, _ := cmd.Flags().GetString("name")
	inPort, _ := cmd.Flags().GetString("in-port")
	outPort, _ := cmd.Flags().GetString("out-port")
	inCh, _ := cmd.Flags().GetInt("in-channel")
	outCh, _ := cmd.Flags().GetInt("out-channel")
	folders, _ := cmd.Flags().GetStringSlice("folder")
	return types.DeviceSpec{
		Name:             name,
		Manufacturer:     manufacturer,
		MIDIPort:         types.PortPair{In: inPort, Out: outPort},
		MIDIChannel:      types.ChannelPair{In: inCh, Out: outCh},
		CommunityFolders: folders,
	}
}

var deviceCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a device file with an empty default collection",
	Run: func(cmd *cobra.Command, args []string) {
		spec := deviceSpec(cmd)
		c, _ := newClient(cmd.Context())
		finish(cmd, c.CreateDevice(cmd.Context(), spec))
	},
}

var deviceUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Replace a device's ports, channels and community folders",
	Run: func(cmd *cobra.Command, args []string) {
		spec := deviceSpec(cmd)
		c, _ := newClient(cmd.Context())
		finish(cmd, c.UpdateDevice(cmd.Context(), spec))
	},
}

var deviceDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete a device and its directory",
	Run: func(cmd *cobra.Command, args []string) {
		requireFlags(cmd, "manufacturer", "name")
		manufacturer, _ := cmd.Flags().GetString("manufacturer")
		name, _ := cmd.Flags().GetString("name")
		if !confirm(cmd, fmt.Sprintf("Delete device %s/%s?", manufacturer, name)) {
			return
		}
		c, _ := newClient(cmd.Context())
		finish(cmd, c.DeleteDevice(cmd.Context(), manufacturer, name))
	},
}

// ===================
// Presets
// ===================

var presetCmd = &cobra.Command{
	Use:     "preset",
	GroupID: "edit",
	Short:   "Create, update or delete presets in a collection",
	Long: `Edit presets inside a collection.

--collection names either an embedded collection of the device file or a
community folder of the manufacturer. It defaults to "default".`,
}

func presetSpec(cmd *cobra.Command) types.PresetSpec {
	requireFlags(cmd, "manufacturer", "device", "name")
	manufacturer, _ := cmd.Flags().GetString("manufacturer")
	device, _ := cmd.Flags().GetString("device")
	collection, _ := cmd.Flags().GetString("collection")
	name, _ := cmd.Flags().GetString("name")
	category, _ := cmd.Flags().GetString("category")
	characters, _ := cmd.Flags().GetStringSlice("characters")
	cc0, _ := cmd.Flags().GetInt("cc0")
	pgm, _ := cmd.Flags().GetInt("pgm")
	command, _ := cmd.Flags().GetString("command")
	return types.PresetSpec{
		Manufacturer: manufacturer,
		Device:       device,
		Collection:   collection,
		Preset: types.Preset{
			PresetName:      name,
			Category:        category,
			Characters:      characters,
			CC0:             cc0,
			PGM:             pgm,
			SendMIDICommand: command,
		},
	}
}

var presetCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Append a preset to a collection",
	Run: func(cmd *cobra.Command, args []string) {
		spec := presetSpec(cmd)
		c, _ := newClient(cmd.Context())
		finish(cmd, c.CreatePreset(cmd.Context(), spec))
	},
}

var presetUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Replace the preset with the same name",
	Run: func(cmd *cobra.Command, args []string) {
		spec := presetSpec(cmd)
		c, _ := newClient(cmd.Context())
		finish(cmd, c.UpdatePreset(cmd.Context(), spec))
	},
}

var presetDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Remove a preset from a collection",
	Run: func(cmd *cobra.Command, args []string) {
		requireFlags(cmd, "manufacturer", "device", "name")
		manufacturer, _ := cmd.Flags().GetString("manufacturer")
		device, _ := cmd.Flags().GetString("device")
		collection, _ := cmd.Flags().GetString("collection")
		name, _ := cmd.Flags().GetString("name")
		c, _ := newClient(cmd.Context())
		finish(cmd, c.DeletePreset(cmd.Context(), manufacturer, device, collection, name))
	},
}

// ===================
// Collections
// ===================

var collectionCmd = &cobra.Command{
	Use:     "collection",
	GroupID: "edit",
	Short:   "List, create, rename or delete a device's collections",
}

var collectionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the embedded collections of a device",
	Run: func(cmd *cobra.Command, args []string) {
		requireFlags(cmd, "manufacturer", "device")
		manufacturer, _ := cmd.Flags().GetString("manufacturer")
		device, _ := cmd.Flags().GetString("device")
		c, _ := newClient(cmd.Context())
		names := c.Collections(cmd.Context(), manufacturer, device, false)
		render(cmd, names, func(w io.Writer) {
			if len(names) == 0 {
				fmt.Fprintf(os.Stderr, "No collections for %s/%s\n", manufacturer, device)
				return
			}
			for _, name := range names {
				fmt.Fprintln(w, name)
			}
		})
	},
}

var collectionCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Add an empty collection to a device file",
	Run: func(cmd *cobra.Command, args []string) {
		requireFlags(cmd, "manufacturer", "device", "name")
		manufacturer, _ := cmd.Flags().GetString("manufacturer")
		device, _ := cmd.Flags().GetString("device")
		name, _ := cmd.Flags().GetString("name")
		description, _ := cmd.Flags().GetString("description")
		c, _ := newClient(cmd.Context())
		finish(cmd, c.CreateCollection(cmd.Context(), manufacturer, device, name, description))
	},
}

var collectionRenameCmd = &cobra.Command{
	Use:   "rename",
	Short: "Rename a collection",
	Run: func(cmd *cobra.Command, args []string) {
		requireFlags(cmd, "manufacturer", "device", "name", "new-name")
		manufacturer, _ := cmd.Flags().GetString("manufacturer")
		device, _ := cmd.Flags().GetString("device")
		name, _ := cmd.Flags().GetString("name")
		newName, _ := cmd.Flags().GetString("new-name")
		c, _ := newClient(cmd.Context())
		finish(cmd, c.UpdateCollection(cmd.Context(), manufacturer, device, name, newName))
	},
}

var collectionDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete a collection and its presets",
	Run: func(cmd *cobra.Command, args []string) {
		requireFlags(cmd, "manufacturer", "device", "name")
		manufacturer, _ := cmd.Flags().GetString("manufacturer")
		device, _ := cmd.Flags().GetString("device")
		name, _ := cmd.Flags().GetString("name")
		if !confirm(cmd, fmt.Sprintf("Delete collection %s of %s/%s?", name, manufacturer, device)) {
			return
		}
		c, _ := newClient(cmd.Context())
		finish(cmd, c.DeleteCollection(cmd.Context(), manufacturer, device, name))
	},
}

func init() {
	manufacturerDeleteCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
	manufacturerCmd.AddCommand(manufacturerCreateCmd, manufacturerDeleteCmd)

	for _, c := range []*cobra.Command{deviceCreateCmd, deviceUpdateCmd, deviceDeleteCmd} {
		c.Flags().StringP("manufacturer", "m", "", "Manufacturer name")
		c.Flags().StringP("name", "n", "", "Device name")
	}
	for _, c := range []*cobra.Command{deviceCreateCmd, deviceUpdateCmd} {
		c.Flags().String("in-port", "", "MIDI input port name")
		c.Flags().String("out-port", "", "MIDI output port name")
		c.Flags().Int("in-channel", 1, "MIDI input channel (1-16)")
		c.Flags().Int("out-channel", 1, "MIDI output channel (1-16)")
		c.Flags().StringSlice("folder", nil, "Community folder (repeatable)")
	}
	deviceDeleteCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
	deviceCmd.AddCommand(deviceCreateCmd, deviceUpdateCmd, deviceDeleteCmd)

	for _, c := range []*cobra.Command{presetCreateCmd, presetUpdateCmd, presetDeleteCmd} {
		c.Flags().StringP("manufacturer", "m", "", "Manufacturer name")
		c.Flags().StringP("device", "d", "", "Device name")
		c.Flags().StringP("collection", "c", types.DefaultSource, "Collection or community folder")
		c.Flags().StringP("name", "n", "", "Preset name")
	}
	for _, c := range []*cobra.Command{presetCreateCmd, presetUpdateCmd} {
		c.Flags().String("category", "", "Preset category")
		c.Flags().StringSlice("characters", nil, "Sound characters (repeatable)")
		c.Flags().Int("cc0", 0, "Bank select value (0-127)")
		c.Flags().Int("pgm", 0, "Program change value (0-127)")
		c.Flags().String("command", "", "Explicit sendmidi command")
	}
	presetCmd.AddCommand(presetCreateCmd, presetUpdateCmd, presetDeleteCmd)

	for _, c := range []*cobra.Command{collectionListCmd, collectionCreateCmd, collectionRenameCmd, collectionDeleteCmd} {
		c.Flags().StringP("manufacturer", "m", "", "Manufacturer name")
		c.Flags().StringP("device", "d", "", "Device name")
	}
	for _, c := range []*cobra.Command{collectionCreateCmd, collectionRenameCmd, collectionDeleteCmd} {
		c.Flags().StringP("name", "n", "", "Collection name")
	}
	collectionCreateCmd.Flags().String("description", "", "Collection description")
	collectionRenameCmd.Flags().String("new-name", "", "New collection name")
	collectionDeleteCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
	collectionCmd.AddCommand(collectionListCmd, collectionCreateCmd, collectionRenameCmd, collectionDeleteCmd)

	rootCmd.AddCommand(manufacturerCmd)
	rootCmd.AddCommand(deviceCmd)
	rootCmd.AddCommand(presetCmd)
	rootCmd.AddCommand(collectionCmd)
}
