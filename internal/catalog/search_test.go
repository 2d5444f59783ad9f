package catalog

import "testing"

func TestSearch(t *testing.T) {
	ix := scanned(t, setupCatalog(t))

	got := ix.Search("alice", 0)
	if len(got) != 2 {
		t.Fatalf("Search(alice) returned %d presets, want 2: %v", len(got), names(got))
	}
	for _, p := range got {
		if p.Source != "alice" {
			t.Errorf("Search(alice) returned %s from %s", p.PresetName, p.Source)
		}
	}

	if got := ix.Search("Universe", 1); len(got) != 1 || got[0].PresetName != "Universe" {
		t.Errorf("Search(Universe, 1) = %v, want [Universe]", names(got))
	}
	if got := ix.Search("   ", 0); len(got) != 0 {
		t.Errorf("Search(blank) = %v, want empty", names(got))
	}
	if got := ix.Search("zzzzqqq", 0); len(got) != 0 {
		t.Errorf("Search(zzzzqqq) = %v, want empty", names(got))
	}
}
