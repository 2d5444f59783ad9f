// Package client wraps a catalog Remote with a response cache and retries.
//
// Queries are answered from a TTL cache when fresh and fetched through Retry
// otherwise. Mutations always go to the remote and, when they succeed, clear
// the cache prefixes whose answers they may have changed. A successful Pull
// or Push clears the whole cache because the tree may have changed anywhere.
package client

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"time"

	"golang.org/x/time/rate"

	"github.com/r2midi/presetctl/internal/types"
)

// CachedClient is a caching, retrying client over a Remote.
type CachedClient struct {
	remote  Remote
	cache   *Cache
	policy  RetryPolicy
	limiter *rate.Limiter
	logger  *log.Logger

	ttl   time.Duration
	clock Clock
}

// Option configures a CachedClient.
type Option func(*CachedClient)

// WithTTL sets how long responses stay cached.
func WithTTL(ttl time.Duration) Option {
	return func(c *CachedClient) { c.ttl = ttl }
}

// WithClock replaces time.Now for cache expiry.
func WithClock(now Clock) Option {
	return func(c *CachedClient) { c.clock = now }
}

// WithRetryPolicy replaces DefaultRetryPolicy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *CachedClient) { c.policy = p }
}

// WithRateLimit throttles remote attempts to r per second with the given burst.
func WithRateLimit(r float64, burst int) Option {
	return func(c *CachedClient) {
		if r > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(r), burst)
		}
	}
}

// WithLogger sets the logger. Nil discards output.
func WithLogger(l *log.Logger) Option {
	return func(c *CachedClient) {
		if l == nil {
			l = log.New(io.Discard, "", 0)
		}
		c.logger = l
	}
}

// New creates a client over remote.
func New(remote Remote, opts ...Option) *CachedClient {
	c := &CachedClient{
		remote: remote,
		policy: DefaultRetryPolicy(),
		ttl:    DefaultTTL,
		logger: log.New(os.Stderr, "[client] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.cache = NewCache(c.ttl, c.clock)
	return c
}

// Cache exposes the underlying cache.
func (c *CachedClient) Cache() *Cache {
	return c.cache
}

// ClearCache drops every cached response.
func (c *CachedClient) ClearCache() {
	c.cache.Clear()
}

// throttled waits for the rate limiter, when one is set, before calling op.
func throttled[T any](c *CachedClient, op func(ctx context.Context) (T, error)) func(ctx context.Context) (T, error) {
	if c.limiter == nil {
		return op
	}
	return func(ctx context.Context) (T, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			var zero T
			return zero, err
		}
		return op(ctx)
	}
}

// query answers from the cache unless force is set, and otherwise fetches,
// stores and returns. After the last failed attempt it logs and returns empty.
func query[T any](ctx context.Context, c *CachedClient, key string, force bool, empty T, fetch func(ctx context.Context) (T, error)) T {
	if !force {
		if v, ok := lookup[T](c.cache, key); ok {
			return v
		}
	}
	v, err := Retry(ctx, c.policy, throttled(c, fetch))
	if err != nil {
		c.logger.Printf("fetching %s failed: %v", key, err)
		return empty
	}
	c.cache.Set(key, v)
	return v
}

// ===================
// Queries
// ===================

// Manufacturers returns the manufacturer names.
func (c *CachedClient) Manufacturers(ctx context.Context, force bool) []string {
	return query(ctx, c, keyManufacturers, force, []string{}, c.remote.Manufacturers)
}

// DevicesByManufacturer returns the device names of manufacturer m.
func (c *CachedClient) DevicesByManufacturer(ctx context.Context, m string, force bool) []string {
	return query(ctx, c, devicesByManufacturerKey(m), force, []string{}, func(ctx context.Context) ([]string, error) {
		return c.remote.DevicesByManufacturer(ctx, m)
	})
}

// DeviceInfo returns the device records of manufacturer m.
func (c *CachedClient) DeviceInfo(ctx context.Context, m string, force bool) []types.Device {
	return query(ctx, c, deviceInfoKey(m), force, []types.Device{}, func(ctx context.Context) ([]types.Device, error) {
		return c.remote.DeviceInfo(ctx, m)
	})
}

// CommunityFolders returns the community folders declared by device.
func (c *CachedClient) CommunityFolders(ctx context.Context, device string, force bool) []string {
	return query(ctx, c, communityFoldersKey(device), force, []string{}, func(ctx context.Context) ([]string, error) {
		return c.remote.CommunityFolders(ctx, device)
	})
}

// Presets returns the presets matching filter.
func (c *CachedClient) Presets(ctx context.Context, filter types.PresetFilter, force bool) []types.Preset {
	return query(ctx, c, patchesKey(filter), force, []types.Preset{}, func(ctx context.Context) ([]types.Preset, error) {
		return c.remote.Presets(ctx, filter)
	})
}

// Collections returns the collection names of a device.
func (c *CachedClient) Collections(ctx context.Context, m, device string, force bool) []string {
	return query(ctx, c, collectionsKey(m, device), force, []string{}, func(ctx context.Context) ([]string, error) {
		return c.remote.Collections(ctx, m, device)
	})
}

// MIDIPorts returns the host's MIDI ports.
func (c *CachedClient) MIDIPorts(ctx context.Context, force bool) types.MIDIPorts {
	empty := types.MIDIPorts{In: []string{}, Out: []string{}}
	return query(ctx, c, keyMIDIPorts, force, empty, c.remote.MIDIPorts)
}

// ===================
// Mutations
// ===================

// mutate sends op through Retry and, on success, clears prefixes.
func (c *CachedClient) mutate(ctx context.Context, what string, op func(ctx context.Context) (types.Result, error), prefixes ...string) types.Result {
	res, err := Retry(ctx, c.policy, throttled(c, op))
	if err != nil {
		c.logger.Printf("%s failed: %v", what, err)
		var pe *ProtocolError
		if errors.As(err, &pe) && pe.Message != "" {
			return types.Failure("%s", pe.Message)
		}
		return types.Failure("request failed: %v", err)
	}
	if res.OK() {
		for _, p := range prefixes {
			c.cache.ClearPrefix(p)
		}
	}
	return res
}

// devicePrefixes covers a device file's own queries. Creating a device may
// also create its manufacturer directory, so the manufacturer list goes too.
func devicePrefixes(m, device string) []string {
	return []string{keyManufacturers, devicesByManufacturerKey(m), deviceInfoKey(m), communityFoldersKey(device)}
}

// CreateManufacturer creates a manufacturer directory.
func (c *CachedClient) CreateManufacturer(ctx context.Context, name string) types.Result {
	return c.mutate(ctx, "create manufacturer", func(ctx context.Context) (types.Result, error) {
		return c.remote.CreateManufacturer(ctx, name)
	}, keyManufacturers)
}

// DeleteManufacturer deletes a manufacturer and everything under it.
func (c *CachedClient) DeleteManufacturer(ctx context.Context, name string) types.Result {
	return c.mutate(ctx, "delete manufacturer", func(ctx context.Context) (types.Result, error) {
		return c.remote.DeleteManufacturer(ctx, name)
	}, keyManufacturers, prefixDevicesByManufacturer, prefixDeviceInfo,
		prefixCommunityFolders, prefixPatches, prefixCollections)
}

// CreateDevice creates a device file.
func (c *CachedClient) CreateDevice(ctx context.Context, spec types.DeviceSpec) types.Result {
	return c.mutate(ctx, "create device", func(ctx context.Context) (types.Result, error) {
		return c.remote.CreateDevice(ctx, spec)
	}, append(devicePrefixes(spec.Manufacturer, spec.Name), presetQueryPrefixes(spec.Manufacturer, spec.Name)...)...)
}

// UpdateDevice rewrites a device's info.
func (c *CachedClient) UpdateDevice(ctx context.Context, spec types.DeviceSpec) types.Result {
	return c.mutate(ctx, "update device", func(ctx context.Context) (types.Result, error) {
		return c.remote.UpdateDevice(ctx, spec)
	}, append(devicePrefixes(spec.Manufacturer, spec.Name), presetQueryPrefixes(spec.Manufacturer, spec.Name)...)...)
}

// DeleteDevice deletes a device file.
func (c *CachedClient) DeleteDevice(ctx context.Context, m, device string) types.Result {
	prefixes := append(devicePrefixes(m, device), presetQueryPrefixes(m, device)...)
	prefixes = append(prefixes, collectionsKey(m, device))
	return c.mutate(ctx, "delete device", func(ctx context.Context) (types.Result, error) {
		return c.remote.DeleteDevice(ctx, m, device)
	}, prefixes...)
}

// CreatePreset adds a preset to a collection.
func (c *CachedClient) CreatePreset(ctx context.Context, spec types.PresetSpec) types.Result {
	return c.mutate(ctx, "create preset", func(ctx context.Context) (types.Result, error) {
		return c.remote.CreatePreset(ctx, spec)
	}, presetQueryPrefixes(spec.Manufacturer, spec.Device)...)
}

// UpdatePreset replaces a preset.
func (c *CachedClient) UpdatePreset(ctx context.Context, spec types.PresetSpec) types.Result {
	return c.mutate(ctx, "update preset", func(ctx context.Context) (types.Result, error) {
		return c.remote.UpdatePreset(ctx, spec)
	}, presetQueryPrefixes(spec.Manufacturer, spec.Device)...)
}

// DeletePreset removes a preset from a collection.
func (c *CachedClient) DeletePreset(ctx context.Context, m, device, collection, name string) types.Result {
	return c.mutate(ctx, "delete preset", func(ctx context.Context) (types.Result, error) {
		return c.remote.DeletePreset(ctx, m, device, collection, name)
	}, presetQueryPrefixes(m, device)...)
}

// CreateCollection adds an empty collection to a device.
func (c *CachedClient) CreateCollection(ctx context.Context, m, device, name, description string) types.Result {
	return c.mutate(ctx, "create collection", func(ctx context.Context) (types.Result, error) {
		return c.remote.CreateCollection(ctx, m, device, name, description)
	}, collectionsKey(m, device))
}

// UpdateCollection renames a collection.
func (c *CachedClient) UpdateCollection(ctx context.Context, m, device, name, newName string) types.Result {
	return c.mutate(ctx, "update collection", func(ctx context.Context) (types.Result, error) {
		return c.remote.UpdateCollection(ctx, m, device, name, newName)
	}, append(presetQueryPrefixes(m, device), collectionsKey(m, device))...)
}

// DeleteCollection removes a collection and its presets.
func (c *CachedClient) DeleteCollection(ctx context.Context, m, device, name string) types.Result {
	return c.mutate(ctx, "delete collection", func(ctx context.Context) (types.Result, error) {
		return c.remote.DeleteCollection(ctx, m, device, name)
	}, append(presetQueryPrefixes(m, device), collectionsKey(m, device))...)
}

// CheckDirectoryStructure reports, and with create makes, the directories for
// a manufacturer/device pair. It is never cached.
func (c *CachedClient) CheckDirectoryStructure(ctx context.Context, m, device string, create bool) (types.DirectoryStructure, error) {
	ds, err := Retry(ctx, c.policy, throttled(c, func(ctx context.Context) (types.DirectoryStructure, error) {
		return c.remote.CheckDirectoryStructure(ctx, m, device, create)
	}))
	if err != nil {
		return types.DirectoryStructure{}, err
	}
	if ds.Created {
		for _, p := range devicePrefixes(m, device) {
			c.cache.ClearPrefix(p)
		}
	}
	return ds, nil
}

// ===================
// Sync
// ===================

// Pull asks the remote to pull the preset tree and clears the cache on success.
func (c *CachedClient) Pull(ctx context.Context) types.Result {
	return c.sync(ctx, "pull", c.remote.Pull)
}

// Push asks the remote to push the preset tree and clears the cache on success.
func (c *CachedClient) Push(ctx context.Context) types.Result {
	return c.sync(ctx, "push", c.remote.Push)
}

func (c *CachedClient) sync(ctx context.Context, what string, op func(ctx context.Context) (types.Result, error)) types.Result {
	res := c.mutate(ctx, what, op)
	if res.OK() {
		c.cache.Clear()
	}
	return res
}
