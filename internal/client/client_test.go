package client

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/r2midi/presetctl/internal/types"
)

func presetFilter(m, d, folder string) types.PresetFilter {
	return types.PresetFilter{Manufacturer: m, Device: d, CommunityFolder: folder}
}

// fakeRemote counts calls per method and can fail the next N calls.
type fakeRemote struct {
	calls    map[string]int
	failures int
	failWith error
	result   types.Result
	created  bool
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{calls: map[string]int{}, result: types.Success("ok")}
}

func (f *fakeRemote) hit(method string) error {
	f.calls[method]++
	if f.failures > 0 {
		f.failures--
		return f.failWith
	}
	return nil
}

func (f *fakeRemote) Manufacturers(ctx context.Context) ([]string, error) {
	if err := f.hit("Manufacturers"); err != nil {
		return nil, err
	}
	return []string{"Korg", "Roland"}, nil
}

func (f *fakeRemote) DevicesByManufacturer(ctx context.Context, m string) ([]string, error) {
	if err := f.hit("DevicesByManufacturer"); err != nil {
		return nil, err
	}
	return []string{m + "-device"}, nil
}

func (f *fakeRemote) DeviceInfo(ctx context.Context, m string) ([]types.Device, error) {
	if err := f.hit("DeviceInfo"); err != nil {
		return nil, err
	}
	return []types.Device{{Name: "JV-1080", Manufacturer: m}}, nil
}

func (f *fakeRemote) CommunityFolders(ctx context.Context, d string) ([]string, error) {
	if err := f.hit("CommunityFolders"); err != nil {
		return nil, err
	}
	return []string{"alice"}, nil
}

func (f *fakeRemote) Presets(ctx context.Context, filter types.PresetFilter) ([]types.Preset, error) {
	if err := f.hit("Presets"); err != nil {
		return nil, err
	}
	source := filter.CommunityFolder
	if source == "" {
		source = types.DefaultSource
	}
	return []types.Preset{{PresetName: "Piano", Source: source, Device: filter.Device}}, nil
}

func (f *fakeRemote) Collections(ctx context.Context, m, d string) ([]string, error) {
	if err := f.hit("Collections"); err != nil {
		return nil, err
	}
	return []string{"default"}, nil
}

func (f *fakeRemote) MIDIPorts(ctx context.Context) (types.MIDIPorts, error) {
	if err := f.hit("MIDIPorts"); err != nil {
		return types.MIDIPorts{}, err
	}
	return types.MIDIPorts{In: []string{"in"}, Out: []string{"out"}}, nil
}

func (f *fakeRemote) mutation(method string) (types.Result, error) {
	if err := f.hit(method); err != nil {
		return types.Result{}, err
	}
	return f.result, nil
}

func (f *fakeRemote) CreateManufacturer(ctx context.Context, name string) (types.Result, error) {
	return f.mutation("CreateManufacturer")
}

func (f *fakeRemote) DeleteManufacturer(ctx context.Context, name string) (types.Result, error) {
	return f.mutation("DeleteManufacturer")
}

func (f *fakeRemote) CreateDevice(ctx context.Context, spec types.DeviceSpec) (types.Result, error) {
	return f.mutation("CreateDevice")
}

func (f *fakeRemote) UpdateDevice(ctx context.Context, spec types.DeviceSpec) (types.Result, error) {
	return f.mutation("UpdateDevice")
}

func (f *fakeRemote) DeleteDevice(ctx context.Context, m, d string) (types.Result, error) {
	return f.mutation("DeleteDevice")
}

func (f *fakeRemote) CreatePreset(ctx context.Context, spec types.PresetSpec) (types.Result, error) {
	return f.mutation("CreatePreset")
}

func (f *fakeRemote) UpdatePreset(ctx context.Context, spec types.PresetSpec) (types.Result, error) {
	return f.mutation("UpdatePreset")
}

func (f *fakeRemote) DeletePreset(ctx context.Context, m, d, collection, name string) (types.Result, error) {
	return f.mutation("DeletePreset")
}

func (f *fakeRemote) CreateCollection(ctx context.Context, m, d, name, description string) (types.Result, error) {
	return f.mutation("CreateCollection")
}

func (f *fakeRemote) UpdateCollection(ctx context.Context, m, d, name, newName string) (types.Result, error) {
	return f.mutation("UpdateCollection")
}

func (f *fakeRemote) DeleteCollection(ctx context.Context, m, d, name string) (types.Result, error) {
	return f.mutation("DeleteCollection")
}

func (f *fakeRemote) CheckDirectoryStructure(ctx context.Context, m, d string, create bool) (types.DirectoryStructure, error) {
	if err := f.hit("CheckDirectoryStructure"); err != nil {
		return types.DirectoryStructure{}, err
	}
	return types.DirectoryStructure{Manufacturer: m, Device: d, Created: create && f.created}, nil
}

func (f *fakeRemote) Pull(ctx context.Context) (types.Result, error) { return f.mutation("Pull") }
func (f *fakeRemote) Push(ctx context.Context) (types.Result, error) { return f.mutation("Push") }

func newTestClient(remote Remote, clock *fakeClock, sleep *recordingSleep) *CachedClient {
	return New(remote,
		WithTTL(time.Minute),
		WithClock(clock.Now),
		WithRetryPolicy(RetryPolicy{MaxRetries: 3, BaseDelay: 10 * time.Millisecond, Sleep: sleep.Sleep}),
		WithLogger(log.New(io.Discard, "", 0)),
	)
}

func TestClient_QueryCaching(t *testing.T) {
	remote := newFakeRemote()
	clock := newFakeClock()
	c := newTestClient(remote, clock, &recordingSleep{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if got := c.Manufacturers(ctx, false); len(got) != 2 {
			t.Fatalf("Manufacturers() = %v", got)
		}
	}
	if remote.calls["Manufacturers"] != 1 {
		t.Errorf("remote called %d times, want 1", remote.calls["Manufacturers"])
	}

	c.Manufacturers(ctx, true)
	if remote.calls["Manufacturers"] != 2 {
		t.Errorf("force did not refetch: %d calls", remote.calls["Manufacturers"])
	}

	clock.Advance(time.Minute)
	c.Manufacturers(ctx, false)
	if remote.calls["Manufacturers"] != 3 {
		t.Errorf("expired entry not refetched: %d calls", remote.calls["Manufacturers"])
	}
}

func TestClient_QueryWrappers(t *testing.T) {
	remote := newFakeRemote()
	c := newTestClient(remote, newFakeClock(), &recordingSleep{})
	ctx := context.Background()

	if got := c.DevicesByManufacturer(ctx, "Roland", false); len(got) != 1 || got[0] != "Roland-device" {
		t.Errorf("DevicesByManufacturer() = %v", got)
	}
	if got := c.DeviceInfo(ctx, "Roland", false); len(got) != 1 || got[0].Manufacturer != "Roland" {
		t.Errorf("DeviceInfo() = %v", got)
	}
	if got := c.CommunityFolders(ctx, "JV-1080", false); len(got) != 1 {
		t.Errorf("CommunityFolders() = %v", got)
	}
	if got := c.Collections(ctx, "Roland", "JV-1080", false); len(got) != 1 {
		t.Errorf("Collections() = %v", got)
	}
	if got := c.MIDIPorts(ctx, false); len(got.In) != 1 || len(got.Out) != 1 {
		t.Errorf("MIDIPorts() = %v", got)
	}

	def := c.Presets(ctx, presetFilter("Roland", "JV-1080", ""), false)
	alice := c.Presets(ctx, presetFilter("Roland", "JV-1080", "alice"), false)
	if def[0].Source != "default" || alice[0].Source != "alice" {
		t.Errorf("Presets() sources = %q, %q", def[0].Source, alice[0].Source)
	}
	if remote.calls["Presets"] != 2 {
		t.Errorf("folder variants shared a cache key: %d calls", remote.calls["Presets"])
	}

	wantKeys := []string{
		"devices_by_manufacturer_Roland",
		"device_info_Roland",
		"community_folders_JV-1080",
		"collections_Roland_JV-1080",
		"midi_ports",
		"patches_Roland_JV-1080_default",
		"patches_Roland_JV-1080_alice",
	}
	for _, k := range wantKeys {
		if _, ok := c.Cache().Get(k); !ok {
			t.Errorf("cache missing key %q", k)
		}
	}
}

func TestClient_QueryRetriesTransportErrors(t *testing.T) {
	remote := newFakeRemote()
	remote.failures = 2
	remote.failWith = errors.New("connection reset")
	sleep := &recordingSleep{}
	c := newTestClient(remote, newFakeClock(), sleep)

	got := c.Manufacturers(context.Background(), false)
	if len(got) != 2 {
		t.Fatalf("Manufacturers() = %v after transient failures", got)
	}
	if remote.calls["Manufacturers"] != 3 {
		t.Errorf("attempts = %d, want 3", remote.calls["Manufacturers"])
	}
	if len(sleep.delays) != 2 || sleep.delays[1] != 2*sleep.delays[0] {
		t.Errorf("delays = %v, want doubling", sleep.delays)
	}
}

func TestClient_QueryFailureReturnsEmpty(t *testing.T) {
	remote := newFakeRemote()
	remote.failures = 10
	remote.failWith = errors.New("no route to host")
	c := newTestClient(remote, newFakeClock(), &recordingSleep{})

	got := c.Presets(context.Background(), presetFilter("Roland", "JV-1080", ""), false)
	if got == nil || len(got) != 0 {
		t.Errorf("Presets() = %#v, want empty non-nil slice", got)
	}
	if c.Cache().Len() != 0 {
		t.Error("failed fetch was cached")
	}
	ports := c.MIDIPorts(context.Background(), false)
	if ports.In == nil || ports.Out == nil {
		t.Errorf("MIDIPorts() = %#v, want empty lists", ports)
	}
}

func TestClient_MutationInvalidation(t *testing.T) {
	seed := []string{
		"manufacturers",
		"devices_by_manufacturer_Roland",
		"device_info_Roland",
		"community_folders_JV-1080",
		"patches_Roland_JV-1080_default",
		"patches_Roland_JV-1080_alice",
		"collections_Roland_JV-1080",
		"devices_by_manufacturer_Korg",
		"patches_Korg_M1_default",
		"patches_Roland__default",
		"patches__JV-1080_default",
		"patches___default",
		"community_folders_M1",
		"midi_ports",
	}
	// Every preset query a change to Roland/JV-1080 can answer differently.
	rolandPresets := []string{
		"patches_Roland_JV-1080_default", "patches_Roland_JV-1080_alice",
		"patches_Roland__default", "patches__JV-1080_default", "patches___default",
	}
	with := func(keys ...string) []string {
		return append(keys, rolandPresets...)
	}

	preset := types.PresetSpec{Manufacturer: "Roland", Device: "JV-1080", Preset: types.Preset{PresetName: "Piano"}}
	device := types.DeviceSpec{Manufacturer: "Roland", Name: "JV-1080"}

	tests := []struct {
		name    string
		do      func(c *CachedClient) types.Result
		cleared []string
	}{
		{
			name:    "create manufacturer",
			do:      func(c *CachedClient) types.Result { return c.CreateManufacturer(context.Background(), "Moog") },
			cleared: []string{"manufacturers"},
		},
		{
			name: "delete manufacturer",
			do:   func(c *CachedClient) types.Result { return c.DeleteManufacturer(context.Background(), "Roland") },
			cleared: with(
				"manufacturers", "devices_by_manufacturer_Roland", "devices_by_manufacturer_Korg",
				"device_info_Roland", "community_folders_JV-1080", "community_folders_M1",
				"patches_Korg_M1_default", "collections_Roland_JV-1080",
			),
		},
		{
			name:    "create device",
			do:      func(c *CachedClient) types.Result { return c.CreateDevice(context.Background(), device) },
			cleared: with("manufacturers", "devices_by_manufacturer_Roland", "device_info_Roland", "community_folders_JV-1080"),
		},
		{
			name:    "update device",
			do:      func(c *CachedClient) types.Result { return c.UpdateDevice(context.Background(), device) },
			cleared: with("manufacturers", "devices_by_manufacturer_Roland", "device_info_Roland", "community_folders_JV-1080"),
		},
		{
			name: "delete device",
			do:   func(c *CachedClient) types.Result { return c.DeleteDevice(context.Background(), "Roland", "JV-1080") },
			cleared: with(
				"manufacturers", "devices_by_manufacturer_Roland", "device_info_Roland",
				"community_folders_JV-1080", "collections_Roland_JV-1080",
			),
		},
		{
			name:    "create preset",
			do:      func(c *CachedClient) types.Result { return c.CreatePreset(context.Background(), preset) },
			cleared: with(),
		},
		{
			name:    "update preset",
			do:      func(c *CachedClient) types.Result { return c.UpdatePreset(context.Background(), preset) },
			cleared: with(),
		},
		{
			name: "delete preset",
			do: func(c *CachedClient) types.Result {
				return c.DeletePreset(context.Background(), "Roland", "JV-1080", "default", "Piano")
			},
			cleared: with(),
		},
		{
			name: "create collection",
			do: func(c *CachedClient) types.Result {
				return c.CreateCollection(context.Background(), "Roland", "JV-1080", "pads", "")
			},
			cleared: []string{"collections_Roland_JV-1080"},
		},
		{
			name: "update collection",
			do: func(c *CachedClient) types.Result {
				return c.UpdateCollection(context.Background(), "Roland", "JV-1080", "pads", "strings")
			},
			cleared: with("collections_Roland_JV-1080"),
		},
		{
			name: "delete collection",
			do: func(c *CachedClient) types.Result {
				return c.DeleteCollection(context.Background(), "Roland", "JV-1080", "pads")
			},
			cleared: with("collections_Roland_JV-1080"),
		},
		{
			name:    "push",
			do:      func(c *CachedClient) types.Result { return c.Push(context.Background()) },
			cleared: seed,
		},
		{
			name:    "pull",
			do:      func(c *CachedClient) types.Result { return c.Pull(context.Background()) },
			cleared: seed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(newFakeRemote(), newFakeClock(), &recordingSleep{})
			for _, k := range seed {
				c.Cache().Set(k, true)
			}

			if res := tt.do(c); !res.OK() {
				t.Fatalf("mutation failed: %+v", res)
			}

			cleared := map[string]bool{}
			for _, k := range tt.cleared {
				cleared[k] = true
			}
			for _, k := range seed {
				_, present := c.Cache().Get(k)
				if present == cleared[k] {
					t.Errorf("key %q present = %v, want %v", k, present, !cleared[k])
				}
			}
		})
	}
}

func TestClient_FailedMutationKeepsCache(t *testing.T) {
	remote := newFakeRemote()
	remote.result = types.Failure("device JV-1080 not found")
	c := newTestClient(remote, newFakeClock(), &recordingSleep{})
	c.Cache().Set("patches_Roland_JV-1080_default", true)

	res := c.DeletePreset(context.Background(), "Roland", "JV-1080", "", "Piano")
	if res.OK() {
		t.Fatal("DeletePreset() succeeded")
	}
	if _, ok := c.Cache().Get("patches_Roland_JV-1080_default"); !ok {
		t.Error("failed mutation invalidated the cache")
	}
}

func TestClient_MutationErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		failures int
		attempts int
		message  string
	}{
		{
			name:     "protocol error message is surfaced",
			err:      &ProtocolError{Status: 409, Message: "manufacturer Moog already exists"},
			failures: 1,
			attempts: 1,
			message:  "manufacturer Moog already exists",
		},
		{
			name:     "transport error after retries",
			err:      errors.New("connection refused"),
			failures: 5,
			attempts: 3,
			message:  "request failed: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remote := newFakeRemote()
			remote.failures = tt.failures
			remote.failWith = tt.err
			c := newTestClient(remote, newFakeClock(), &recordingSleep{})
			c.Cache().Set("manufacturers", true)

			res := c.CreateManufacturer(context.Background(), "Moog")
			if res.Status != types.StatusError || res.Message != tt.message {
				t.Errorf("CreateManufacturer() = %+v, want error %q", res, tt.message)
			}
			if remote.calls["CreateManufacturer"] != tt.attempts {
				t.Errorf("attempts = %d, want %d", remote.calls["CreateManufacturer"], tt.attempts)
			}
			if _, ok := c.Cache().Get("manufacturers"); !ok {
				t.Error("failed mutation invalidated the cache")
			}
		})
	}
}

func TestClient_CheckDirectoryStructure(t *testing.T) {
	remote := newFakeRemote()
	remote.created = true
	c := newTestClient(remote, newFakeClock(), &recordingSleep{})
	c.Cache().Set("manufacturers", true)
	c.Cache().Set("midi_ports", true)

	ds, err := c.CheckDirectoryStructure(context.Background(), "Moog", "Sub 37", true)
	if err != nil {
		t.Fatalf("CheckDirectoryStructure() failed: %v", err)
	}
	if !ds.Created {
		t.Errorf("Created = false")
	}
	if _, ok := c.Cache().Get("manufacturers"); ok {
		t.Error("manufacturers not invalidated after create")
	}
	if _, ok := c.Cache().Get("midi_ports"); !ok {
		t.Error("unrelated key invalidated")
	}
}

func TestClient_RateLimit(t *testing.T) {
	remote := newFakeRemote()
	c := New(remote,
		WithRateLimit(1000, 1),
		WithLogger(nil),
		WithRetryPolicy(RetryPolicy{MaxRetries: 1}),
	)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		c.Manufacturers(ctx, true)
	}
	if remote.calls["Manufacturers"] != 3 {
		t.Errorf("calls = %d, want 3", remote.calls["Manufacturers"])
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	res := c.CreateManufacturer(cancelled, "Moog")
	if res.OK() || !strings.HasPrefix(res.Message, "request failed") {
		t.Errorf("CreateManufacturer(cancelled) = %+v", res)
	}
}
