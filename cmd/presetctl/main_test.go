package main

import (
	"testing"

	"github.com/r2midi/presetctl/internal/types"
)

func TestMatches(t *testing.T) {
	p := types.Preset{PresetName: "Glass Pad", Manufacturer: "Roland", Device: "JV-1080", Source: "alice"}

	tests := []struct {
		name   string
		filter types.PresetFilter
		want   bool
	}{
		{"empty", types.PresetFilter{}, true},
		{"manufacturer", types.PresetFilter{Manufacturer: "Roland"}, true},
		{"other manufacturer", types.PresetFilter{Manufacturer: "Korg"}, false},
		{"device", types.PresetFilter{Manufacturer: "Roland", Device: "JV-1080"}, true},
		{"other device", types.PresetFilter{Device: "D-50"}, false},
		{"folder", types.PresetFilter{CommunityFolder: "alice"}, true},
		{"other folder", types.PresetFilter{CommunityFolder: "bob"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := matches(p, tt.filter); got != tt.want {
				t.Errorf("matches(%+v) = %v, want %v", tt.filter, got, tt.want)
			}
		})
	}
}

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{
		{"scan"},
		{"presets"},
		{"manufacturer", "delete"},
		{"device", "update"},
		{"preset", "create"},
		{"collection", "rename"},
		{"check"},
		{"sync", "pull"},
		{"sync", "status"},
		{"watch"},
		{"config", "init"},
	} {
		cmd, rest, err := rootCmd.Find(path)
		if err != nil || len(rest) != 0 || cmd.Name() != path[len(path)-1] {
			t.Errorf("Find(%v) = %v, %v, %v", path, cmd.Name(), rest, err)
		}
	}

	if configInitCmd.Annotations[skipConfig] != "true" {
		t.Error("config init must run without loading configuration")
	}
}
