package catalog

import (
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/r2midi/presetctl/internal/types"
)

// Config holds configuration for the indexer.
type Config struct {
	// Root is the devices directory (manufacturer directories live directly under it).
	Root string

	// Workers bounds how many manufacturer directories are scanned at once.
	Workers int

	// Logger for scan and mutation activity
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults for root.
func DefaultConfig(root string) *Config {
	return &Config{
		Root:    root,
		Workers: runtime.NumCPU(),
		Logger:  log.New(os.Stderr, "[catalog] ", log.LstdFlags),
	}
}

// Indexer owns the in-memory catalog for one devices root.
//
// Reads go through the current snapshot, which Scan replaces with a single
// atomic store. Mutations write JSON and then rescan. Concurrent mutations are
// not serialized here; the embedding program must do that.
type Indexer struct {
	root    string
	workers int
	logger  *log.Logger

	cache  *parseCache
	snap   atomic.Pointer[Snapshot]
	scanMu sync.Mutex
}

// New creates an indexer for root with default settings.
func New(root string) *Indexer {
	return NewWithConfig(DefaultConfig(root))
}

// NewWithConfig creates an indexer with custom configuration.
func NewWithConfig(config *Config) *Indexer {
	if config == nil {
		config = DefaultConfig(".")
	}
	root := config.Root
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	workers := config.Workers
	if workers <= 0 {
		workers = 1
	}
	logger := config.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[catalog] ", log.LstdFlags)
	}

	ix := &Indexer{
		root:    root,
		workers: workers,
		logger:  logger,
		cache:   newParseCache(),
	}
	ix.snap.Store(emptySnapshot(root))
	return ix
}

// Root returns the absolute devices root.
func (ix *Indexer) Root() string {
	return ix.root
}

// Snapshot returns the latest published snapshot. Before the first scan it is empty.
func (ix *Indexer) Snapshot() *Snapshot {
	return ix.snap.Load()
}

// Device looks a device up by name in the latest snapshot.
func (ix *Indexer) Device(name string) (types.Device, bool) {
	return ix.Snapshot().Device(name)
}

// AllDevices returns every device in scan order.
func (ix *Indexer) AllDevices() []types.Device {
	return ix.Snapshot().AllDevices()
}

// Manufacturers returns the sorted manufacturer names.
func (ix *Indexer) Manufacturers() []string {
	return ix.Snapshot().Manufacturers()
}

// DevicesByManufacturer returns the device names of m.
func (ix *Indexer) DevicesByManufacturer(m string) []string {
	return ix.Snapshot().DevicesByManufacturer(m)
}

// DeviceInfo returns the device records of manufacturer m.
func (ix *Indexer) DeviceInfo(m string) []types.Device {
	return ix.Snapshot().DeviceInfo(m)
}

// CommunityFolders returns the community folders declared by device.
func (ix *Indexer) CommunityFolders(device string) []string {
	return ix.Snapshot().CommunityFolders(device)
}

// Collections lists the embedded collections of a device.
func (ix *Indexer) Collections(m, device string) []string {
	return ix.Snapshot().Collections(m, device)
}

// AllPresets runs the preset query against the latest snapshot.
func (ix *Indexer) AllPresets(filter types.PresetFilter) []types.Preset {
	return ix.Snapshot().AllPresets(filter)
}

// PresetByName returns the first preset named name in scan order.
func (ix *Indexer) PresetByName(name string) (types.Preset, bool) {
	return ix.Snapshot().PresetByName(name)
}

// Search runs a fuzzy preset search against the latest snapshot.
func (ix *Indexer) Search(query string, limit int) []types.Preset {
	return ix.Snapshot().Search(query, limit)
}
