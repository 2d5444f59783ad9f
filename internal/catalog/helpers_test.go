package catalog

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/r2midi/presetctl/internal/types"
)

func intp(v int) *int { return &v }

func preset(name string, cc0, pgm int) PresetEntry {
	return PresetEntry{PresetName: name, Category: "Test", CC0: intp(cc0), PGM: intp(pgm)}
}

// writeFile writes v as JSON to root/rel, creating directories as needed.
func writeFile(t *testing.T, root, rel string, v any) string {
	t.Helper()

	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create dir for %s: %v", rel, err)
	}
	var data []byte
	switch raw := v.(type) {
	case string:
		data = []byte(raw)
	default:
		var err error
		data, err = json.MarshalIndent(v, "", "  ")
		if err != nil {
			t.Fatalf("failed to marshal %s: %v", rel, err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write %s: %v", rel, err)
	}
	return path
}

func deviceDoc(manufacturer, name string, folders []string, presets ...PresetEntry) *DeviceFile {
	if presets == nil {
		presets = []PresetEntry{}
	}
	return &DeviceFile{
		DeviceInfo: DeviceInfoFile{
			Name:         name,
			Manufacturer: manufacturer,
			MIDIPorts:    PortsFile{In: name + " In", Out: name + " Out"},
			MIDIChannels: ChannelsFile{In: 1, Out: 1},
		},
		Manufacturer:     manufacturer,
		CommunityFolders: folders,
		PresetCollections: map[string]CollectionFile{
			"default": {
				Metadata: CollectionMetadata{Name: "default", Version: "1.0"},
				Presets:  presets,
			},
		},
	}
}

func communityDoc(name string, presets ...PresetEntry) *CommunityFile {
	return &CommunityFile{
		Metadata: CollectionMetadata{Name: name, Version: "1.0"},
		Presets:  presets,
	}
}

// setupCatalog builds the Roland/JV-1080 tree used across tests:
// three default presets and a community folder "alice" with two presets.
func setupCatalog(t *testing.T) string {
	t.Helper()

	root := t.TempDir()
	writeFile(t, root, "Roland/JV-1080.json", deviceDoc("Roland", "JV-1080", []string{"alice"},
		preset("Piano", 0, 1), preset("Strings", 0, 2), preset("Brass", 0, 3)))
	writeFile(t, root, "Roland/community/alice.json", communityDoc("alice",
		preset("Alice Pad", 1, 10), preset("Alice Lead", 1, 11)))
	writeFile(t, root, "Roland/D-50/D-50.json", deviceDoc("Roland", "D-50", []string{},
		preset("Fantasia", 0, 0)))
	writeFile(t, root, "Korg/M1.json", deviceDoc("Korg", "M1", nil,
		preset("Universe", 0, 5), preset("Organ", 0, 6)))
	return root
}

func newTestIndexer(t *testing.T, root string) *Indexer {
	t.Helper()
	return NewWithConfig(&Config{
		Root:    root,
		Workers: 2,
		Logger:  log.New(io.Discard, "", 0),
	})
}

func scanned(t *testing.T, root string) *Indexer {
	t.Helper()
	ix := newTestIndexer(t, root)
	if _, err := ix.Scan(context.Background()); err != nil {
		t.Fatalf("Scan() failed: %v", err)
	}
	return ix
}

func names(presets []types.Preset) []string {
	out := make([]string, len(presets))
	for i, p := range presets {
		out[i] = p.PresetName
	}
	return out
}
