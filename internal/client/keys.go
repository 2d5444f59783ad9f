package client

import (
	"strings"

	"github.com/r2midi/presetctl/internal/types"
)

// Cache keys. Each query has one deterministic key so that mutations can
// invalidate by prefix.
const (
	keyManufacturers = "manufacturers"
	keyMIDIPorts     = "midi_ports"

	prefixDevicesByManufacturer = "devices_by_manufacturer_"
	prefixDeviceInfo            = "device_info_"
	prefixCommunityFolders      = "community_folders_"
	prefixPatches               = "patches_"
	prefixCollections           = "collections_"
)

// keyEscaper percent-encodes the separator inside a key component, so that
// "A"/"B_C" and "A_B"/"C" get different keys.
var keyEscaper = strings.NewReplacer("%", "%25", "_", "%5F")

func esc(s string) string {
	return keyEscaper.Replace(s)
}

func devicesByManufacturerKey(m string) string {
	return prefixDevicesByManufacturer + esc(m)
}

func deviceInfoKey(m string) string {
	return prefixDeviceInfo + esc(m)
}

func communityFoldersKey(device string) string {
	return prefixCommunityFolders + esc(device)
}

// patchesPrefix covers every folder variant of one manufacturer/device pair.
// The trailing separator keeps "Korg_M1" from matching "Korg_M1R".
func patchesPrefix(m, device string) string {
	return prefixPatches + esc(m) + "_" + esc(device) + "_"
}

func patchesKey(f types.PresetFilter) string {
	folder := f.CommunityFolder
	if folder == "" {
		folder = types.DefaultSource
	}
	return patchesPrefix(f.Manufacturer, f.Device) + esc(folder)
}

// presetQueryPrefixes lists every preset query a change to m/device can
// answer differently: the exact pair plus the filters that leave out the
// manufacturer, the device or both.
func presetQueryPrefixes(m, device string) []string {
	return []string{
		patchesPrefix(m, device),
		patchesPrefix(m, ""),
		patchesPrefix("", device),
		patchesPrefix("", ""),
	}
}

func collectionsKey(m, device string) string {
	return prefixCollections + esc(m) + "_" + esc(device)
}
