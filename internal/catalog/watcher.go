package catalog

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchConfig holds configuration for a Watcher.
type WatchConfig struct {
	// DebounceInterval is how long the tree must be quiet before a rescan.
	// This batches rapid updates (a git pull touching many files) together.
	DebounceInterval time.Duration

	// OnScan is called with every snapshot produced by a rescan.
	OnScan func(*Snapshot)

	// Logger for watcher activity
	Logger *log.Logger
}

// DefaultWatchConfig returns sensible defaults.
func DefaultWatchConfig() *WatchConfig {
	return &WatchConfig{
		DebounceInterval: 250 * time.Millisecond,
		Logger:           log.New(os.Stderr, "[watch] ", log.LstdFlags),
	}
}

// Watcher rescans an Indexer when JSON files under its root change.
type Watcher struct {
	ix     *Indexer
	config *WatchConfig

	watcher *fsnotify.Watcher
	kick    chan struct{}
	done    chan struct{}
	wg      sync.WaitGroup
	life    sync.Mutex // serializes Start and Stop
	mu      sync.Mutex
	running bool
	scans   int
}

// NewWatcher creates a watcher for ix. It must be started with Start.
func NewWatcher(ix *Indexer, config *WatchConfig) (*Watcher, error) {
	if ix == nil {
		return nil, fmt.Errorf("indexer cannot be nil")
	}
	if config == nil {
		config = DefaultWatchConfig()
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[watch] ", log.LstdFlags)
	}
	if config.DebounceInterval <= 0 {
		config.DebounceInterval = 250 * time.Millisecond
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		ix:      ix,
		config:  config,
		watcher: fw,
		kick:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}, nil
}

// Start adds the root, manufacturer, device and community directories to the
// watch and begins processing events. It does not block. A stopped watcher
// can be started again.
func (w *Watcher) Start() error {
	w.life.Lock()
	defer w.life.Unlock()

	if w.IsRunning() {
		return fmt.Errorf("watcher already running")
	}
	if w.watcher == nil {
		fw, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("failed to create fsnotify watcher: %w", err)
		}
		w.watcher = fw
		w.done = make(chan struct{})
	}
	if err := w.addTree(w.ix.Root()); err != nil {
		return err
	}

	w.mu.Lock()
	w.running = true
	w.mu.Unlock()
	w.wg.Add(2)
	go w.processEvents()
	go w.processRescans()
	return nil
}

// Run starts the watcher and blocks until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.Start(); err != nil {
		return err
	}
	w.config.Logger.Printf("Watching %s", w.ix.Root())
	<-ctx.Done()
	return w.Stop()
}

// Stop stops watching and waits for the event goroutines to exit.
func (w *Watcher) Stop() error {
	w.life.Lock()
	defer w.life.Unlock()

	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	close(w.done)
	err := w.watcher.Close()
	w.wg.Wait()
	w.watcher = nil
	if err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

// IsRunning returns true if the watcher is currently running.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Scans returns how many rescans the watcher has triggered.
func (w *Watcher) Scans() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.scans
}

// addTree watches dir and every non-hidden directory up to two levels below it,
// which covers manufacturer, device and community directories.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return fmt.Errorf("failed to walk %s: %w", dir, err)
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && isHidden(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		if depth(w.ix.Root(), path) >= 2 {
			return filepath.SkipDir
		}
		return nil
	})
}

// processEvents filters fsnotify events and signals the rescan loop.
func (w *Watcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if w.relevant(event) {
				select {
				case w.kick <- struct{}{}:
				default:
				}
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}

// relevant reports whether an event can change the catalog. New directories
// are added to the watch as a side effect.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	base := filepath.Base(event.Name)
	if isHidden(base) || event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
		return false
	}
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if depth(w.ix.Root(), event.Name) <= 2 {
				if err := w.addTree(event.Name); err != nil {
					w.config.Logger.Printf("Warning: %v", err)
				}
			}
			return true
		}
	}
	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		// a removed directory has no extension; rescan either way
		return isJSON(base) || filepath.Ext(base) == ""
	}
	return isJSON(base)
}

// processRescans debounces kicks and rescans once the tree has been quiet.
func (w *Watcher) processRescans() {
	defer w.wg.Done()

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		case <-w.kick:
			if timer == nil {
				timer = time.NewTimer(w.config.DebounceInterval)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.config.DebounceInterval)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			w.rescan()
		}
	}
}

func (w *Watcher) rescan() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-w.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	snap, err := w.ix.Scan(ctx)
	if err != nil {
		w.config.Logger.Printf("Error: rescan failed: %v", err)
		return
	}

	w.mu.Lock()
	w.scans++
	w.mu.Unlock()

	w.config.Logger.Printf("Catalog changed: %d devices, %d problems", snap.DeviceCount(), len(snap.Problems))
	if w.config.OnScan != nil {
		w.config.OnScan(snap)
	}
}

func depth(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return 0
	}
	n := 1
	for _, c := range rel {
		if c == filepath.Separator {
			n++
		}
	}
	return n
}
