package catalog

import (
	"fmt"
	"sort"
	"time"

	"github.com/r2midi/presetctl/internal/types"
)

// Problem is a per-file issue found during a scan. The file (or the part of it
// named in Err) was skipped; the rest of the scan went on.
type Problem struct {
	Path string
	Err  error
}

func (p Problem) Error() string {
	return fmt.Sprintf("%s: %v", p.Path, p.Err)
}

// Collection is a named, ordered group of presets.
type Collection struct {
	Name     string
	Source   string
	Metadata CollectionMetadata
	Presets  []types.Preset
}

type deviceEntry struct {
	device types.Device
	// embedded collections, "default" first then by name
	embedded []*Collection
	// community collections by folder, restricted to declared folders
	community map[string]*Collection
}

// Snapshot is an immutable view of the catalog produced by one scan.
// Nothing in a published snapshot is modified; a rescan builds a new one.
type Snapshot struct {
	Root      string
	ScannedAt time.Time
	Problems  []Problem

	devices       map[string]*deviceEntry
	order         []string
	manufacturers []string
	structure     map[string][]string
	community     map[string]map[string]*Collection
}

func emptySnapshot(root string) *Snapshot {
	return &Snapshot{
		Root:      root,
		devices:   map[string]*deviceEntry{},
		structure: map[string][]string{},
		community: map[string]map[string]*Collection{},
	}
}

// DeviceCount returns the number of indexed devices.
func (s *Snapshot) DeviceCount() int {
	return len(s.order)
}

// Device looks a device up by name.
func (s *Snapshot) Device(name string) (types.Device, bool) {
	e, ok := s.devices[name]
	if !ok {
		return types.Device{}, false
	}
	return cloneDevice(e.device), true
}

// AllDevices returns every device in scan order.
func (s *Snapshot) AllDevices() []types.Device {
	out := make([]types.Device, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, cloneDevice(s.devices[name].device))
	}
	return out
}

// Manufacturers returns the sorted manufacturer names.
func (s *Snapshot) Manufacturers() []string {
	return append([]string{}, s.manufacturers...)
}

// DevicesByManufacturer returns the device names of m in scan order.
func (s *Snapshot) DevicesByManufacturer(m string) []string {
	return append([]string{}, s.structure[m]...)
}

// DeviceInfo returns the full device records of manufacturer m.
func (s *Snapshot) DeviceInfo(m string) []types.Device {
	names := s.structure[m]
	out := make([]types.Device, 0, len(names))
	for _, name := range names {
		out = append(out, cloneDevice(s.devices[name].device))
	}
	return out
}

// CommunityFolders returns the community folders declared by a device.
func (s *Snapshot) CommunityFolders(device string) []string {
	e, ok := s.devices[device]
	if !ok {
		return []string{}
	}
	return append([]string{}, e.device.CommunityFolders...)
}

// Collections lists the embedded collection names of a device owned by m.
func (s *Snapshot) Collections(m, device string) []string {
	e, ok := s.devices[device]
	if !ok || (m != "" && e.device.Manufacturer != m) {
		return []string{}
	}
	out := make([]string, 0, len(e.embedded))
	for _, c := range e.embedded {
		out = append(out, c.Name)
	}
	return out
}

// ManufacturerCommunity returns the community folder names present on disk for m.
func (s *Snapshot) ManufacturerCommunity(m string) []string {
	folders := s.community[m]
	out := make([]string, 0, len(folders))
	for name := range folders {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// AllPresets returns the presets matching filter.
// Devices are visited in scan order; each contributes its default presets,
// or the named community folder's presets instead when it declares that folder.
func (s *Snapshot) AllPresets(filter types.PresetFilter) []types.Preset {
	out := []types.Preset{}
	for _, name := range s.order {
		e := s.devices[name]
		if filter.Manufacturer != "" && e.device.Manufacturer != filter.Manufacturer {
			continue
		}
		if filter.Device != "" && e.device.Name != filter.Device {
			continue
		}
		out = append(out, e.presets(filter.CommunityFolder)...)
	}
	return out
}

// PresetByName returns the first preset named name in scan order.
func (s *Snapshot) PresetByName(name string) (types.Preset, bool) {
	for _, p := range s.flatten() {
		if p.PresetName == name {
			return p, true
		}
	}
	return types.Preset{}, false
}

// flatten returns every preset: per device its default presets, then its
// declared community collections in declaration order.
func (s *Snapshot) flatten() []types.Preset {
	var out []types.Preset
	for _, name := range s.order {
		e := s.devices[name]
		out = append(out, e.presets("")...)
		for _, folder := range e.device.CommunityFolders {
			if c, ok := e.community[folder]; ok {
				out = append(out, e.tag(c.Presets)...)
			}
		}
	}
	return out
}

func (e *deviceEntry) presets(folder string) []types.Preset {
	if folder != "" && e.declares(folder) {
		c, ok := e.community[folder]
		if !ok {
			return nil
		}
		return e.tag(c.Presets)
	}
	var out []types.Preset
	for _, c := range e.embedded {
		out = append(out, clonePresets(c.Presets)...)
	}
	return out
}

// tag copies community presets and stamps them with the owning device.
func (e *deviceEntry) tag(in []types.Preset) []types.Preset {
	out := clonePresets(in)
	for i := range out {
		out[i].Manufacturer = e.device.Manufacturer
		out[i].Device = e.device.Name
	}
	return out
}

func (e *deviceEntry) declares(folder string) bool {
	for _, f := range e.device.CommunityFolders {
		if f == folder {
			return true
		}
	}
	return false
}

func cloneDevice(d types.Device) types.Device {
	d.CommunityFolders = append([]string{}, d.CommunityFolders...)
	return d
}

func clonePresets(in []types.Preset) []types.Preset {
	out := make([]types.Preset, len(in))
	for i, p := range in {
		p.Characters = append([]string(nil), p.Characters...)
		out[i] = p
	}
	return out
}
