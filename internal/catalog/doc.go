// Package catalog indexes a tree of MIDI device and preset JSON files.
//
// # Layout
//
// The devices root holds one directory per manufacturer:
//
//	<root>/<manufacturer>/<device>.json
//	<root>/<manufacturer>/<device-dir>/<device>.json
//	<root>/<manufacturer>/community/<folder>.json
//
// A device file looks like:
//
//	{
//	  "device_info": {
//	    "name": "JV-1080",
//	    "manufacturer": "Roland",
//	    "midi_ports": {"IN": "JV-1080 In", "OUT": "JV-1080 Out"},
//	    "midi_channels": {"IN": 1, "OUT": 1}
//	  },
//	  "manufacturer": "Roland",
//	  "community_folders": ["alice"],
//	  "preset_collections": {
//	    "default": {
//	      "metadata": {"name": "default", "version": "1.0"},
//	      "presets": [
//	        {"preset_name": "Piano", "category": "Keys", "characters": ["Bright"], "cc_0": 0, "pgm": 1}
//	      ]
//	    }
//	  }
//	}
//
// Community files carry the same metadata and presets fields, one collection per file.
//
// # Snapshots
//
// Indexer.Scan builds a Snapshot and publishes it with one atomic store, so
// readers see either the previous catalog or the new one. Files that fail to
// parse are skipped and listed in Snapshot.Problems. Presets whose cc_0 or pgm
// fall outside 0..127 are dropped the same way.
//
// Device names are the lookup key for the whole catalog. When two files define
// the same device name, the one scanned last wins and the collision is reported.
//
// # Mutations
//
// The Create/Update/Delete methods write JSON through a temp file and rename,
// then rescan. They return a types.Result instead of an error for expected
// failures such as a missing device. Mutations are not serialized against each
// other; callers that mutate concurrently must lock.
//
// # Watching
//
// Watcher rescans the indexer whenever JSON files under the root change,
// debouncing bursts of events such as a git pull.
package catalog
