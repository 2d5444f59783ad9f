package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/r2midi/presetctl/internal/types"
)

// MIDI data bytes are 7-bit.
const (
	minMIDIValue = 0
	maxMIDIValue = 127
)

// PortsFile is the on-disk {IN, OUT} port pair.
type PortsFile struct {
	In  string `json:"IN"`
	Out string `json:"OUT"`
}

// ChannelsFile is the on-disk {IN, OUT} channel pair.
type ChannelsFile struct {
	In  int `json:"IN"`
	Out int `json:"OUT"`
}

// DeviceInfoFile is the device_info block of a device file.
type DeviceInfoFile struct {
	Name         string       `json:"name"`
	Manufacturer string       `json:"manufacturer,omitempty"`
	MIDIPorts    PortsFile    `json:"midi_ports"`
	MIDIChannels ChannelsFile `json:"midi_channels"`
}

// CollectionMetadata describes a preset collection.
type CollectionMetadata struct {
	Name        string `json:"name"`
	Version     string `json:"version,omitempty"`
	Revision    int    `json:"revision,omitempty"`
	Author      string `json:"author,omitempty"`
	Description string `json:"description,omitempty"`
	ReadOnly    bool   `json:"readonly,omitempty"`
	PresetCount int    `json:"preset_count,omitempty"`
	SyncStatus  string `json:"sync_status,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
	ModifiedAt  string `json:"modified_at,omitempty"`
}

// PresetEntry is one preset as stored in a collection's presets array.
// CC0 and PGM are pointers so a missing field can be told apart from zero.
type PresetEntry struct {
	PresetName      string   `json:"preset_name"`
	Category        string   `json:"category"`
	Characters      []string `json:"characters,omitempty"`
	CC0             *int     `json:"cc_0"`
	PGM             *int     `json:"pgm"`
	SendMIDICommand string   `json:"sendmidi_command,omitempty"`
}

// CollectionFile is a named group of presets.
type CollectionFile struct {
	Metadata CollectionMetadata `json:"metadata"`
	Presets  []PresetEntry      `json:"presets"`
}

// DeviceFile is the JSON document stored at <manufacturer>/<device>.json.
type DeviceFile struct {
	DeviceInfo        DeviceInfoFile            `json:"device_info"`
	Manufacturer      string                    `json:"manufacturer"`
	CommunityFolders  []string                  `json:"community_folders"`
	PresetCollections map[string]CollectionFile `json:"preset_collections"`
}

// CommunityFile is the JSON document stored at <manufacturer>/community/<folder>.json.
type CommunityFile struct {
	Metadata CollectionMetadata `json:"metadata"`
	Presets  []PresetEntry      `json:"presets"`
}

// Validate checks a single preset entry.
func (p *PresetEntry) Validate() error {
	if strings.TrimSpace(p.PresetName) == "" {
		return fmt.Errorf("preset_name is required")
	}
	if p.CC0 == nil {
		return fmt.Errorf("cc_0 is required")
	}
	if *p.CC0 < minMIDIValue || *p.CC0 > maxMIDIValue {
		return fmt.Errorf("cc_0 must be between 0 and 127 (got %d)", *p.CC0)
	}
	if p.PGM == nil {
		return fmt.Errorf("pgm is required")
	}
	if *p.PGM < minMIDIValue || *p.PGM > maxMIDIValue {
		return fmt.Errorf("pgm must be between 0 and 127 (got %d)", *p.PGM)
	}
	return nil
}

// ToPreset converts a validated entry into a catalog preset tagged with source.
func (p *PresetEntry) ToPreset(source string) types.Preset {
	preset := types.Preset{
		PresetName:      p.PresetName,
		Category:        p.Category,
		Characters:      append([]string(nil), p.Characters...),
		Source:          source,
		SendMIDICommand: p.SendMIDICommand,
	}
	if p.CC0 != nil {
		preset.CC0 = *p.CC0
	}
	if p.PGM != nil {
		preset.PGM = *p.PGM
	}
	return preset
}

// FromPreset converts a catalog preset into its stored form.
func FromPreset(p types.Preset) PresetEntry {
	cc0, pgm := p.CC0, p.PGM
	return PresetEntry{
		PresetName:      p.PresetName,
		Category:        p.Category,
		Characters:      append([]string(nil), p.Characters...),
		CC0:             &cc0,
		PGM:             &pgm,
		SendMIDICommand: p.SendMIDICommand,
	}
}

// Validate checks the fields a device file needs to be indexed.
// Preset ranges are checked separately so that one bad preset drops only itself.
func (d *DeviceFile) Validate() error {
	if strings.TrimSpace(d.DeviceInfo.Name) == "" {
		return fmt.Errorf("device_info.name is required")
	}
	return nil
}

// ManufacturerName returns the declared manufacturer, preferring the top-level field.
func (d *DeviceFile) ManufacturerName() string {
	if d.Manufacturer != "" {
		return d.Manufacturer
	}
	return d.DeviceInfo.Manufacturer
}

// ToDevice converts the file into a catalog device.
func (d *DeviceFile) ToDevice(path string) types.Device {
	return types.Device{
		Name:         d.DeviceInfo.Name,
		Manufacturer: d.ManufacturerName(),
		MIDIPort: types.PortPair{
			In:  d.DeviceInfo.MIDIPorts.In,
			Out: d.DeviceInfo.MIDIPorts.Out,
		},
		MIDIChannel: types.ChannelPair{
			In:  d.DeviceInfo.MIDIChannels.In,
			Out: d.DeviceInfo.MIDIChannels.Out,
		},
		CommunityFolders: append([]string(nil), d.CommunityFolders...),
		SourcePath:       path,
	}
}

// NewDeviceFile builds the document written for a newly created device.
func NewDeviceFile(spec types.DeviceSpec) *DeviceFile {
	folders := spec.CommunityFolders
	if folders == nil {
		folders = []string{}
	}
	return &DeviceFile{
		DeviceInfo: DeviceInfoFile{
			Name:         spec.Name,
			Manufacturer: spec.Manufacturer,
			MIDIPorts:    PortsFile{In: spec.MIDIPort.In, Out: spec.MIDIPort.Out},
			MIDIChannels: ChannelsFile{In: spec.MIDIChannel.In, Out: spec.MIDIChannel.Out},
		},
		Manufacturer:     spec.Manufacturer,
		CommunityFolders: folders,
		PresetCollections: map[string]CollectionFile{
			types.DefaultSource: {
				Metadata: CollectionMetadata{Name: types.DefaultSource, Version: "1.0"},
				Presets:  []PresetEntry{},
			},
		},
	}
}

// ReadDeviceFile reads and parses a device file.
func ReadDeviceFile(path string) (*DeviceFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read device file %s: %w", path, err)
	}
	return parseDeviceFile(path, data)
}

func parseDeviceFile(path string, data []byte) (*DeviceFile, error) {
	var doc DeviceFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse device file %s: %w", path, err)
	}
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid device file %s: %w", path, err)
	}
	return &doc, nil
}

// ReadCommunityFile reads and parses a community collection file.
func ReadCommunityFile(path string) (*CommunityFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read community file %s: %w", path, err)
	}
	return parseCommunityFile(path, data)
}

func parseCommunityFile(path string, data []byte) (*CommunityFile, error) {
	var doc CommunityFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse community file %s: %w", path, err)
	}
	return &doc, nil
}

// WriteDeviceFile writes a device document to path as indented JSON.
//
// Stored presets are written back as they are. Entries a scan skips stay on
// disk for the user to fix, and new entries are validated by the caller.
func WriteDeviceFile(path string, doc *DeviceFile) error {
	if err := doc.Validate(); err != nil {
		return fmt.Errorf("cannot write invalid device: %w", err)
	}
	return writeJSON(path, doc)
}

// WriteCommunityFile writes a community collection to path as indented JSON.
func WriteCommunityFile(path string, doc *CommunityFile) error {
	return writeJSON(path, doc)
}

// writeJSON replaces path through a temp file so watchers never see a partial document.
func writeJSON(path string, v any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", path, err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(dir, ".presetctl-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	_, werr := tmp.Write(data)
	cerr := tmp.Close()
	if err := errors.Join(werr, cerr); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
