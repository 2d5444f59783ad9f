// Package types defines the catalog entities and result shapes shared by the
// indexer, the sync controller and the client cache layer.
package types

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultSource tags presets that come from a device file's embedded collections.
const DefaultSource = "default"

// Status values carried by mutation results.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// PortPair holds an input and an output MIDI port name.
type PortPair struct {
	In  string `json:"in" yaml:"in"`
	Out string `json:"out" yaml:"out"`
}

// ChannelPair holds input and output MIDI channels (1-16).
type ChannelPair struct {
	In  int `json:"in" yaml:"in"`
	Out int `json:"out" yaml:"out"`
}

// Device is a MIDI device as seen by catalog consumers.
type Device struct {
	Name             string      `json:"name" yaml:"name"`
	Manufacturer     string      `json:"manufacturer" yaml:"manufacturer"`
	MIDIPort         PortPair    `json:"midi_port" yaml:"midi_port"`
	MIDIChannel      ChannelPair `json:"midi_channel" yaml:"midi_channel"`
	CommunityFolders []string    `json:"community_folders" yaml:"community_folders"`
	SourcePath       string      `json:"source_path,omitempty" yaml:"source_path,omitempty"`
}

// Preset is a single patch selectable through bank select (cc 0) and program change.
type Preset struct {
	PresetName      string   `json:"preset_name" yaml:"preset_name"`
	Category        string   `json:"category" yaml:"category"`
	Characters      []string `json:"characters,omitempty" yaml:"characters,omitempty"`
	CC0             int      `json:"cc_0" yaml:"cc_0"`
	PGM             int      `json:"pgm" yaml:"pgm"`
	Source          string   `json:"source" yaml:"source"`
	Manufacturer    string   `json:"manufacturer,omitempty" yaml:"manufacturer,omitempty"`
	Device          string   `json:"device,omitempty" yaml:"device,omitempty"`
	SendMIDICommand string   `json:"sendmidi_command,omitempty" yaml:"sendmidi_command,omitempty"`
}

// Command returns the sendmidi command line that selects this preset.
// An explicit command from the source file wins over the rendered one.
func (p Preset) Command(port string, channel int) string {
	if p.SendMIDICommand != "" {
		return p.SendMIDICommand
	}
	return fmt.Sprintf("dev %s ch %d cc 0 %d pc %d", strconv.Quote(port), channel, p.CC0, p.PGM)
}

// PresetFilter narrows AllPresets. Empty fields do not filter.
type PresetFilter struct {
	Manufacturer    string
	Device          string
	CommunityFolder string
}

// Result is the structured outcome of a mutating call.
type Result struct {
	Status  string `json:"status" yaml:"status"`
	Message string `json:"message" yaml:"message"`
	Path    string `json:"path,omitempty" yaml:"path,omitempty"`
}

// Success builds a successful Result.
func Success(format string, args ...any) Result {
	return Result{Status: StatusSuccess, Message: fmt.Sprintf(format, args...)}
}

// Failure builds an error Result.
func Failure(format string, args ...any) Result {
	return Result{Status: StatusError, Message: fmt.Sprintf(format, args...)}
}

// OK reports whether the result represents success.
func (r Result) OK() bool {
	return r.Status == StatusSuccess
}

// DeviceSpec describes a device to create or update.
type DeviceSpec struct {
	Name             string
	Manufacturer     string
	MIDIPort         PortPair
	MIDIChannel      ChannelPair
	CommunityFolders []string
}

// PresetSpec describes a preset to create or update inside a collection.
type PresetSpec struct {
	Manufacturer string
	Device       string
	// Collection defaults to "default" when empty.
	Collection string
	Preset     Preset
}

// CollectionName returns the target collection, defaulting to "default".
func (s PresetSpec) CollectionName() string {
	if strings.TrimSpace(s.Collection) == "" {
		return DefaultSource
	}
	return s.Collection
}

// DirectoryStructure reports what exists on disk for a manufacturer/device pair.
type DirectoryStructure struct {
	Manufacturer       string `json:"manufacturer" yaml:"manufacturer"`
	Device             string `json:"device" yaml:"device"`
	ManufacturerExists bool   `json:"manufacturer_exists" yaml:"manufacturer_exists"`
	DeviceExists       bool   `json:"device_exists" yaml:"device_exists"`
	JSONExists         bool   `json:"json_exists" yaml:"json_exists"`
	Created            bool   `json:"created" yaml:"created"`
	JSONPath           string `json:"json_path,omitempty" yaml:"json_path,omitempty"`
}

// MIDIPorts lists the host's MIDI endpoints.
type MIDIPorts struct {
	In  []string `json:"in" yaml:"in"`
	Out []string `json:"out" yaml:"out"`
}
