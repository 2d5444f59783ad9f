package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/r2midi/presetctl/internal/types"
)

// ErrRootInaccessible is returned by Scan when the devices root cannot be listed.
var ErrRootInaccessible = errors.New("devices root is not accessible")

type scannedDevice struct {
	path string
	doc  *DeviceFile
}

// manufacturerScan is the result of walking one manufacturer directory.
type manufacturerScan struct {
	name      string
	devices   []scannedDevice
	community map[string]*Collection
	problems  []Problem
}

// Scan walks the devices root and publishes a new snapshot.
// Files that cannot be read or parsed are skipped and reported in
// Snapshot.Problems; only an unreadable root fails the scan.
func (ix *Indexer) Scan(ctx context.Context) (*Snapshot, error) {
	ix.scanMu.Lock()
	defer ix.scanMu.Unlock()

	start := time.Now()

	info, err := os.Stat(ix.root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRootInaccessible, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrRootInaccessible, ix.root)
	}
	entries, err := os.ReadDir(ix.root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRootInaccessible, err)
	}

	var dirs []string
	for _, entry := range entries {
		if entry.IsDir() && !isHidden(entry.Name()) {
			dirs = append(dirs, entry.Name())
		}
	}

	ix.cache.begin()

	results := make([]manufacturerScan, len(dirs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.workers)
	for i, name := range dirs {
		i, name := i, name
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = ix.scanManufacturer(name)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("scan cancelled: %w", err)
	}

	hits, misses := ix.cache.end()

	snap := ix.merge(results)
	snap.ScannedAt = time.Now()
	ix.snap.Store(snap)

	for _, p := range snap.Problems {
		ix.logger.Printf("Warning: %v", p)
	}
	ix.logger.Printf("Scanned %d manufacturers, %d devices in %v (%d parsed, %d cached, %d problems)",
		len(snap.manufacturers), len(snap.order), time.Since(start).Round(time.Millisecond),
		misses, hits, len(snap.Problems))

	return snap, nil
}

// scanManufacturer reads the device files and community collections of one
// manufacturer directory. Entries are visited in directory order.
func (ix *Indexer) scanManufacturer(name string) manufacturerScan {
	ms := manufacturerScan{name: name, community: map[string]*Collection{}}
	dir := filepath.Join(ix.root, name)

	entries, err := os.ReadDir(dir)
	if err != nil {
		ms.problems = append(ms.problems, Problem{Path: dir, Err: err})
		return ms
	}

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		switch {
		case isHidden(entry.Name()):
		case entry.IsDir() && entry.Name() == CommunityDir:
			ix.scanCommunity(&ms, path)
		case entry.IsDir():
			ix.scanDeviceDir(&ms, path)
		case isJSON(entry.Name()):
			ix.scanDeviceFile(&ms, path)
		}
	}
	return ms
}

func (ix *Indexer) scanDeviceDir(ms *manufacturerScan, dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		ms.problems = append(ms.problems, Problem{Path: dir, Err: err})
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || !isJSON(entry.Name()) {
			continue
		}
		ix.scanDeviceFile(ms, filepath.Join(dir, entry.Name()))
	}
}

func (ix *Indexer) scanDeviceFile(ms *manufacturerScan, path string) {
	doc, err := ix.cache.load(path, func(path string, data []byte) (any, error) {
		return parseDeviceFile(path, data)
	})
	if err != nil {
		ms.problems = append(ms.problems, Problem{Path: path, Err: err})
		return
	}
	ms.devices = append(ms.devices, scannedDevice{path: path, doc: doc.(*DeviceFile)})
}

func (ix *Indexer) scanCommunity(ms *manufacturerScan, dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		ms.problems = append(ms.problems, Problem{Path: dir, Err: err})
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || !isJSON(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		doc, err := ix.cache.load(path, func(path string, data []byte) (any, error) {
			return parseCommunityFile(path, data)
		})
		if err != nil {
			ms.problems = append(ms.problems, Problem{Path: path, Err: err})
			continue
		}
		folder := stem(entry.Name())
		cf := doc.(*CommunityFile)
		presets, problems := convertPresets(path, folder, cf.Presets)
		ms.problems = append(ms.problems, problems...)
		ms.community[folder] = &Collection{
			Name:     folder,
			Source:   folder,
			Metadata: cf.Metadata,
			Presets:  presets,
		}
	}
}

// merge folds per-manufacturer results into a snapshot in directory order.
// A device name seen twice keeps the later definition.
func (ix *Indexer) merge(results []manufacturerScan) *Snapshot {
	snap := emptySnapshot(ix.root)
	mfrs := map[string]struct{}{}

	for _, ms := range results {
		mfrs[ms.name] = struct{}{}
		snap.community[ms.name] = ms.community
		snap.Problems = append(snap.Problems, ms.problems...)

		for _, sd := range ms.devices {
			entry, problems := buildEntry(ms, sd)
			snap.Problems = append(snap.Problems, problems...)

			name := entry.device.Name
			if prev, ok := snap.devices[name]; ok {
				snap.Problems = append(snap.Problems, Problem{
					Path: sd.path,
					Err:  fmt.Errorf("device %q already defined in %s; later definition wins", name, prev.device.SourcePath),
				})
				snap.structure[prev.device.Manufacturer] = remove(snap.structure[prev.device.Manufacturer], name)
				snap.order = remove(snap.order, name)
			}

			mfr := entry.device.Manufacturer
			mfrs[mfr] = struct{}{}
			snap.devices[name] = entry
			snap.structure[mfr] = append(snap.structure[mfr], name)
			snap.order = append(snap.order, name)
		}
	}

	for m := range mfrs {
		snap.manufacturers = append(snap.manufacturers, m)
	}
	sort.Strings(snap.manufacturers)
	return snap
}

// buildEntry converts a parsed device file into an index entry. A device that
// does not list community_folders at all is given every community folder of
// its manufacturer directory.
func buildEntry(ms manufacturerScan, sd scannedDevice) (*deviceEntry, []Problem) {
	var problems []Problem

	device := sd.doc.ToDevice(sd.path)
	if device.Manufacturer == "" {
		device.Manufacturer = ms.name
	}
	if sd.doc.CommunityFolders == nil {
		device.CommunityFolders = sortedKeys(ms.community)
	}

	entry := &deviceEntry{device: device, community: map[string]*Collection{}}

	for _, name := range collectionOrder(sd.doc.PresetCollections) {
		cf := sd.doc.PresetCollections[name]
		presets, ps := convertPresets(sd.path+"#"+name, types.DefaultSource, cf.Presets)
		problems = append(problems, ps...)
		for i := range presets {
			presets[i].Manufacturer = device.Manufacturer
			presets[i].Device = device.Name
		}
		entry.embedded = append(entry.embedded, &Collection{
			Name:     name,
			Source:   types.DefaultSource,
			Metadata: cf.Metadata,
			Presets:  presets,
		})
	}

	for _, folder := range device.CommunityFolders {
		c, ok := ms.community[folder]
		if !ok {
			problems = append(problems, Problem{
				Path: sd.path,
				Err:  fmt.Errorf("community folder %q is declared but %s/%s/%s.json was not loaded", folder, ms.name, CommunityDir, folder),
			})
			continue
		}
		entry.community[folder] = c
	}

	return entry, problems
}

// convertPresets validates entries and tags them with source. Invalid entries
// are dropped and reported.
func convertPresets(path, source string, entries []PresetEntry) ([]types.Preset, []Problem) {
	presets := make([]types.Preset, 0, len(entries))
	var problems []Problem
	for i := range entries {
		if err := entries[i].Validate(); err != nil {
			problems = append(problems, Problem{
				Path: path,
				Err:  fmt.Errorf("preset %d (%q) skipped: %w", i, entries[i].PresetName, err),
			})
			continue
		}
		presets = append(presets, entries[i].ToPreset(source))
	}
	return presets, problems
}

// collectionOrder returns collection names with "default" first, the rest sorted.
func collectionOrder(colls map[string]CollectionFile) []string {
	names := make([]string, 0, len(colls))
	for name := range colls {
		if name != types.DefaultSource {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	if _, ok := colls[types.DefaultSource]; ok {
		names = append([]string{types.DefaultSource}, names...)
	}
	return names
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func remove(list []string, name string) []string {
	out := list[:0:0]
	for _, s := range list {
		if s != name {
			out = append(out, s)
		}
	}
	return out
}
