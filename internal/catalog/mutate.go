package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/r2midi/presetctl/internal/types"
	"github.com/r2midi/presetctl/internal/vcs"
)

// collectionAuthor is recorded in the metadata of collections created here.
const collectionAuthor = "presetctl"

// ===================
// Manufacturers
// ===================

// CreateManufacturer creates the directory for a new manufacturer.
func (ix *Indexer) CreateManufacturer(ctx context.Context, name string) types.Result {
	if err := ValidateName("manufacturer", name); err != nil {
		return types.Failure("%v", err)
	}
	dir, err := safeJoin(ix.root, name)
	if err != nil {
		return types.Failure("%v", err)
	}
	if _, err := os.Stat(dir); err == nil {
		return types.Failure("manufacturer %s already exists", name)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return types.Failure("failed to create manufacturer %s: %v", name, err)
	}

	res := ix.refresh(ctx, types.Success("manufacturer %s created", name))
	res.Path = dir
	return res
}

// DeleteManufacturer removes a manufacturer directory and everything under it.
func (ix *Indexer) DeleteManufacturer(ctx context.Context, name string) types.Result {
	if err := ValidateName("manufacturer", name); err != nil {
		return types.Failure("%v", err)
	}
	dir, err := safeJoin(ix.root, name)
	if err != nil {
		return types.Failure("%v", err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return types.Failure("manufacturer %s not found", name)
	}
	if err := os.RemoveAll(dir); err != nil {
		return types.Failure("failed to delete manufacturer %s: %v", name, err)
	}
	return ix.refresh(ctx, types.Success("manufacturer %s deleted", name))
}

// ===================
// Devices
// ===================

// CreateDevice writes <root>/<manufacturer>/<device>.json with an empty default collection.
func (ix *Indexer) CreateDevice(ctx context.Context, spec types.DeviceSpec) types.Result {
	if err := validatePair(spec.Manufacturer, spec.Name); err != nil {
		return types.Failure("%v", err)
	}
	if d, ok := ix.Device(spec.Name); ok {
		return types.Failure("device %s already exists (manufacturer %s)", spec.Name, d.Manufacturer)
	}
	path, err := safeJoin(ix.root, spec.Manufacturer, spec.Name+".json")
	if err != nil {
		return types.Failure("%v", err)
	}
	if _, err := os.Stat(path); err == nil {
		return types.Failure("device file %s already exists", path)
	}
	if err := WriteDeviceFile(path, NewDeviceFile(spec)); err != nil {
		return types.Failure("failed to create device %s: %v", spec.Name, err)
	}

	res := ix.refresh(ctx, types.Success("device %s created", spec.Name))
	res.Path = path
	return res
}

// UpdateDevice rewrites a device's info and community folders, keeping its collections.
// A nil CommunityFolders leaves the declared folders unchanged.
func (ix *Indexer) UpdateDevice(ctx context.Context, spec types.DeviceSpec) types.Result {
	if err := validatePair(spec.Manufacturer, spec.Name); err != nil {
		return types.Failure("%v", err)
	}
	path, doc, err := ix.locateDevice(spec.Manufacturer, spec.Name)
	if err != nil {
		return types.Failure("%v", err)
	}

	doc.DeviceInfo.MIDIPorts = PortsFile{In: spec.MIDIPort.In, Out: spec.MIDIPort.Out}
	doc.DeviceInfo.MIDIChannels = ChannelsFile{In: spec.MIDIChannel.In, Out: spec.MIDIChannel.Out}
	if spec.CommunityFolders != nil {
		doc.CommunityFolders = append([]string{}, spec.CommunityFolders...)
	}
	if err := WriteDeviceFile(path, doc); err != nil {
		return types.Failure("failed to update device %s: %v", spec.Name, err)
	}

	res := ix.refresh(ctx, types.Success("device %s updated", spec.Name))
	res.Path = path
	return res
}

// DeleteDevice removes a device's JSON file, and its device directory when that is left empty.
func (ix *Indexer) DeleteDevice(ctx context.Context, manufacturer, device string) types.Result {
	if err := validatePair(manufacturer, device); err != nil {
		return types.Failure("%v", err)
	}
	path, _, err := ix.locateDevice(manufacturer, device)
	if err != nil {
		return types.Failure("%v", err)
	}
	if err := os.Remove(path); err != nil {
		return types.Failure("failed to delete device %s: %v", device, err)
	}
	ix.cache.forget(path)

	dir := filepath.Dir(path)
	if dir != filepath.Join(ix.root, manufacturer) {
		if entries, err := os.ReadDir(dir); err == nil && len(entries) == 0 {
			os.Remove(dir)
		}
	}
	return ix.refresh(ctx, types.Success("device %s deleted", device))
}

// CheckDirectoryStructure reports which parts of manufacturer/device exist on
// disk. With create set, a missing manufacturer directory and device file are created.
func (ix *Indexer) CheckDirectoryStructure(ctx context.Context, manufacturer, device string, create bool) (types.DirectoryStructure, error) {
	ds := types.DirectoryStructure{Manufacturer: manufacturer, Device: device}
	if err := validatePair(manufacturer, device); err != nil {
		return ds, err
	}

	mdir, err := safeJoin(ix.root, manufacturer)
	if err != nil {
		return ds, err
	}
	if info, err := os.Stat(mdir); err == nil && info.IsDir() {
		ds.ManufacturerExists = true
	}

	if path, _, err := ix.locateDevice(manufacturer, device); err == nil {
		ds.DeviceExists = true
		ds.JSONExists = true
		ds.JSONPath = path
	} else if info, err := os.Stat(filepath.Join(mdir, device)); err == nil && info.IsDir() {
		ds.DeviceExists = true
	}

	if !create || ds.JSONExists {
		return ds, nil
	}

	res := ix.CreateDevice(ctx, types.DeviceSpec{Name: device, Manufacturer: manufacturer})
	if !res.OK() {
		return ds, errors.New(res.Message)
	}
	ds.ManufacturerExists = true
	ds.DeviceExists = true
	ds.JSONExists = true
	ds.JSONPath = res.Path
	ds.Created = true
	return ds, nil
}

// ===================
// Presets
// ===================

// CreatePreset appends a preset to a collection. The collection is an embedded
// collection of the device file, or a community folder of the manufacturer.
func (ix *Indexer) CreatePreset(ctx context.Context, spec types.PresetSpec) types.Result {
	entry := FromPreset(spec.Preset)
	if err := entry.Validate(); err != nil {
		return types.Failure("invalid preset: %v", err)
	}
	name := spec.Preset.PresetName
	collection := spec.CollectionName()

	return ix.editPresets(ctx, spec.Manufacturer, spec.Device, collection, func(presets []PresetEntry) ([]PresetEntry, error) {
		if indexOf(presets, name) >= 0 {
			return nil, fmt.Errorf("preset %s already exists in collection %s", name, collection)
		}
		return append(presets, entry), nil
	}, types.Success("preset %s created in %s", name, collection))
}

// UpdatePreset replaces the preset with the same name.
func (ix *Indexer) UpdatePreset(ctx context.Context, spec types.PresetSpec) types.Result {
	entry := FromPreset(spec.Preset)
	if err := entry.Validate(); err != nil {
		return types.Failure("invalid preset: %v", err)
	}
	name := spec.Preset.PresetName
	collection := spec.CollectionName()

	return ix.editPresets(ctx, spec.Manufacturer, spec.Device, collection, func(presets []PresetEntry) ([]PresetEntry, error) {
		i := indexOf(presets, name)
		if i < 0 {
			return nil, fmt.Errorf("preset %s not found in collection %s", name, collection)
		}
		out := append([]PresetEntry{}, presets...)
		out[i] = entry
		return out, nil
	}, types.Success("preset %s updated in %s", name, collection))
}

// DeletePreset removes the named preset from a collection.
func (ix *Indexer) DeletePreset(ctx context.Context, manufacturer, device, collection, name string) types.Result {
	if collection == "" {
		collection = types.DefaultSource
	}
	return ix.editPresets(ctx, manufacturer, device, collection, func(presets []PresetEntry) ([]PresetEntry, error) {
		i := indexOf(presets, name)
		if i < 0 {
			return nil, fmt.Errorf("preset %s not found in collection %s", name, collection)
		}
		out := append([]PresetEntry{}, presets[:i]...)
		return append(out, presets[i+1:]...), nil
	}, types.Success("preset %s deleted from %s", name, collection))
}

// editPresets applies edit to the presets of one collection and writes the
// owning file back.
func (ix *Indexer) editPresets(ctx context.Context, manufacturer, device, collection string, edit func([]PresetEntry) ([]PresetEntry, error), ok types.Result) types.Result {
	if err := validatePair(manufacturer, device); err != nil {
		return types.Failure("%v", err)
	}
	if err := ValidateName("collection", collection); err != nil {
		return types.Failure("%v", err)
	}
	path, doc, err := ix.locateDevice(manufacturer, device)
	if err != nil {
		return types.Failure("%v", err)
	}

	if _, embedded := doc.PresetCollections[collection]; !embedded && collection != types.DefaultSource {
		cpath, err := safeJoin(ix.root, manufacturer, CommunityDir, collection+".json")
		if err != nil {
			return types.Failure("%v", err)
		}
		if _, err := os.Stat(cpath); err != nil {
			return types.Failure("collection %s not found for device %s", collection, device)
		}
		cf, err := ReadCommunityFile(cpath)
		if err != nil {
			return types.Failure("%v", err)
		}
		presets, err := edit(cf.Presets)
		if err != nil {
			return types.Failure("%v", err)
		}
		cf.Presets = presets
		cf.Metadata.PresetCount = len(presets)
		cf.Metadata.ModifiedAt = timestamp()
		if err := WriteCommunityFile(cpath, cf); err != nil {
			return types.Failure("failed to write %s: %v", cpath, err)
		}
		return ix.refresh(ctx, ok)
	}

	if doc.PresetCollections == nil {
		doc.PresetCollections = map[string]CollectionFile{}
	}
	coll, exists := doc.PresetCollections[collection]
	if !exists {
		coll = CollectionFile{Metadata: CollectionMetadata{Name: collection, Version: "1.0"}}
	}
	presets, err := edit(coll.Presets)
	if err != nil {
		return types.Failure("%v", err)
	}
	coll.Presets = presets
	coll.Metadata.PresetCount = len(presets)
	coll.Metadata.ModifiedAt = timestamp()
	doc.PresetCollections[collection] = coll

	if err := WriteDeviceFile(path, doc); err != nil {
		return types.Failure("failed to write %s: %v", path, err)
	}
	return ix.refresh(ctx, ok)
}

// ===================
// Collections
// ===================

// CreateCollection adds an empty embedded collection. Creating one that
// already exists is reported as success.
func (ix *Indexer) CreateCollection(ctx context.Context, manufacturer, device, name, description string) types.Result {
	if err := validatePair(manufacturer, device); err != nil {
		return types.Failure("%v", err)
	}
	if err := ValidateName("collection", name); err != nil {
		return types.Failure("%v", err)
	}
	path, doc, err := ix.locateDevice(manufacturer, device)
	if err != nil {
		return types.Failure("%v", err)
	}
	if _, ok := doc.PresetCollections[name]; ok {
		return types.Success("collection %s already exists", name)
	}

	now := timestamp()
	if doc.PresetCollections == nil {
		doc.PresetCollections = map[string]CollectionFile{}
	}
	doc.PresetCollections[name] = CollectionFile{
		Metadata: CollectionMetadata{
			Name:        name,
			Version:     "1.0",
			Revision:    1,
			Author:      collectionAuthor,
			Description: description,
			SyncStatus:  "local",
			CreatedAt:   now,
			ModifiedAt:  now,
		},
		Presets: []PresetEntry{},
	}
	if err := WriteDeviceFile(path, doc); err != nil {
		return types.Failure("failed to create collection %s: %v", name, err)
	}
	return ix.refresh(ctx, types.Success("collection %s created", name))
}

// UpdateCollection renames an embedded collection.
func (ix *Indexer) UpdateCollection(ctx context.Context, manufacturer, device, name, newName string) types.Result {
	if err := validatePair(manufacturer, device); err != nil {
		return types.Failure("%v", err)
	}
	if err := ValidateName("collection", newName); err != nil {
		return types.Failure("%v", err)
	}
	path, doc, err := ix.locateDevice(manufacturer, device)
	if err != nil {
		return types.Failure("%v", err)
	}
	coll, ok := doc.PresetCollections[name]
	if !ok {
		return types.Failure("collection %s not found", name)
	}
	if name == newName {
		return types.Success("collection %s unchanged", name)
	}
	if _, taken := doc.PresetCollections[newName]; taken {
		return types.Failure("collection %s already exists", newName)
	}

	coll.Metadata.Name = newName
	coll.Metadata.Revision++
	coll.Metadata.ModifiedAt = timestamp()
	delete(doc.PresetCollections, name)
	doc.PresetCollections[newName] = coll

	if err := WriteDeviceFile(path, doc); err != nil {
		return types.Failure("failed to rename collection %s: %v", name, err)
	}
	return ix.refresh(ctx, types.Success("collection %s renamed to %s", name, newName))
}

// DeleteCollection removes an embedded collection.
func (ix *Indexer) DeleteCollection(ctx context.Context, manufacturer, device, name string) types.Result {
	if err := validatePair(manufacturer, device); err != nil {
		return types.Failure("%v", err)
	}
	path, doc, err := ix.locateDevice(manufacturer, device)
	if err != nil {
		return types.Failure("%v", err)
	}
	if _, ok := doc.PresetCollections[name]; !ok {
		return types.Failure("collection %s not found", name)
	}
	delete(doc.PresetCollections, name)

	if err := WriteDeviceFile(path, doc); err != nil {
		return types.Failure("failed to delete collection %s: %v", name, err)
	}
	return ix.refresh(ctx, types.Success("collection %s deleted", name))
}

// ===================
// Helpers
// ===================

// locateDevice finds and freshly reads the JSON file of manufacturer/device.
// The snapshot is consulted first; the conventional locations are the fallback
// for files written since the last scan.
func (ix *Indexer) locateDevice(manufacturer, device string) (string, *DeviceFile, error) {
	var candidates []string
	if d, ok := ix.Device(device); ok && d.Manufacturer == manufacturer && d.SourcePath != "" {
		candidates = append(candidates, d.SourcePath)
	}
	candidates = append(candidates,
		filepath.Join(ix.root, manufacturer, device+".json"),
		filepath.Join(ix.root, manufacturer, device, device+".json"),
	)

	for _, path := range candidates {
		if !vcs.IsSubPath(ix.root, path) {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			continue
		}
		doc, err := ReadDeviceFile(path)
		if err != nil {
			return "", nil, err
		}
		return path, doc, nil
	}
	return "", nil, fmt.Errorf("device %s not found for manufacturer %s", device, manufacturer)
}

// refresh rescans after a write and returns ok, or an error result when the
// rescan itself fails.
func (ix *Indexer) refresh(ctx context.Context, ok types.Result) types.Result {
	if _, err := ix.Scan(ctx); err != nil {
		ix.logger.Printf("Error: rescan after write failed: %v", err)
		return types.Failure("%s, but rescan failed: %v", ok.Message, err)
	}
	ix.logger.Println(ok.Message)
	return ok
}

func validatePair(manufacturer, device string) error {
	if err := ValidateName("manufacturer", manufacturer); err != nil {
		return err
	}
	return ValidateName("device", device)
}

func indexOf(presets []PresetEntry, name string) int {
	for i := range presets {
		if presets[i].PresetName == name {
			return i
		}
	}
	return -1
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
