// Package surface serves the client.Remote API from in-process components.
//
// Local answers queries from a catalog.Indexer and delegates sync to a
// gitsync.Controller, so a CachedClient can run against a preset tree on the
// same machine without any transport in between.
package surface

import (
	"context"

	"github.com/r2midi/presetctl/internal/catalog"
	"github.com/r2midi/presetctl/internal/client"
	"github.com/r2midi/presetctl/internal/gitsync"
	"github.com/r2midi/presetctl/internal/types"
)

// PortLister enumerates MIDI ports on the host.
type PortLister func(ctx context.Context) (types.MIDIPorts, error)

// NoPorts reports no MIDI ports.
func NoPorts(context.Context) (types.MIDIPorts, error) {
	return types.MIDIPorts{In: []string{}, Out: []string{}}, nil
}

// Local implements client.Remote over an indexer and a sync controller.
type Local struct {
	ix    *catalog.Indexer
	sync  *gitsync.Controller
	ports PortLister
}

var _ client.Remote = (*Local)(nil)

// NewLocal creates a Local. sync may be nil, in which case Pull and Push fail.
// A nil ports lister reports no ports.
func NewLocal(ix *catalog.Indexer, sync *gitsync.Controller, ports PortLister) *Local {
	if ports == nil {
		ports = NoPorts
	}
	return &Local{ix: ix, sync: sync, ports: ports}
}

// answer maps a failed result to a *client.ProtocolError.
func answer(res types.Result) (types.Result, error) {
	if !res.OK() {
		return res, &client.ProtocolError{Message: res.Message}
	}
	return res, nil
}

func (l *Local) Manufacturers(ctx context.Context) ([]string, error) {
	return l.ix.Manufacturers(), ctx.Err()
}

func (l *Local) DevicesByManufacturer(ctx context.Context, m string) ([]string, error) {
	return l.ix.DevicesByManufacturer(m), ctx.Err()
}

func (l *Local) DeviceInfo(ctx context.Context, m string) ([]types.Device, error) {
	return l.ix.DeviceInfo(m), ctx.Err()
}

func (l *Local) CommunityFolders(ctx context.Context, device string) ([]string, error) {
	return l.ix.CommunityFolders(device), ctx.Err()
}

func (l *Local) Presets(ctx context.Context, filter types.PresetFilter) ([]types.Preset, error) {
	return l.ix.AllPresets(filter), ctx.Err()
}

func (l *Local) Collections(ctx context.Context, m, device string) ([]string, error) {
	return l.ix.Collections(m, device), ctx.Err()
}

func (l *Local) MIDIPorts(ctx context.Context) (types.MIDIPorts, error) {
	return l.ports(ctx)
}

func (l *Local) CreateManufacturer(ctx context.Context, name string) (types.Result, error) {
	return answer(l.ix.CreateManufacturer(ctx, name))
}

func (l *Local) DeleteManufacturer(ctx context.Context, name string) (types.Result, error) {
	return answer(l.ix.DeleteManufacturer(ctx, name))
}

func (l *Local) CreateDevice(ctx context.Context, spec types.DeviceSpec) (types.Result, error) {
	return answer(l.ix.CreateDevice(ctx, spec))
}

func (l *Local) UpdateDevice(ctx context.Context, spec types.DeviceSpec) (types.Result, error) {
	return answer(l.ix.UpdateDevice(ctx, spec))
}

func (l *Local) DeleteDevice(ctx context.Context, m, device string) (types.Result, error) {
	return answer(l.ix.DeleteDevice(ctx, m, device))
}

func (l *Local) CreatePreset(ctx context.Context, spec types.PresetSpec) (types.Result, error) {
	return answer(l.ix.CreatePreset(ctx, spec))
}

func (l *Local) UpdatePreset(ctx context.Context, spec types.PresetSpec) (types.Result, error) {
	return answer(l.ix.UpdatePreset(ctx, spec))
}

func (l *Local) DeletePreset(ctx context.Context, m, device, collection, name string) (types.Result, error) {
	return answer(l.ix.DeletePreset(ctx, m, device, collection, name))
}

func (l *Local) CreateCollection(ctx context.Context, m, device, name, description string) (types.Result, error) {
	return answer(l.ix.CreateCollection(ctx, m, device, name, description))
}

func (l *Local) UpdateCollection(ctx context.Context, m, device, name, newName string) (types.Result, error) {
	return answer(l.ix.UpdateCollection(ctx, m, device, name, newName))
}

func (l *Local) DeleteCollection(ctx context.Context, m, device, name string) (types.Result, error) {
	return answer(l.ix.DeleteCollection(ctx, m, device, name))
}

func (l *Local) CheckDirectoryStructure(ctx context.Context, m, device string, create bool) (types.DirectoryStructure, error) {
	ds, err := l.ix.CheckDirectoryStructure(ctx, m, device, create)
	if err != nil {
		return ds, &client.ProtocolError{Message: err.Error()}
	}
	return ds, nil
}

// Pull pulls the preset tree and rescans the catalog when it succeeds.
func (l *Local) Pull(ctx context.Context) (types.Result, error) {
	return l.syncResult(ctx, l.sync.Pull)
}

// Push pushes the preset tree and rescans the catalog when it succeeds.
func (l *Local) Push(ctx context.Context) (types.Result, error) {
	return l.syncResult(ctx, l.sync.Push)
}

func (l *Local) syncResult(ctx context.Context, op func(context.Context) gitsync.Result) (types.Result, error) {
	if l.sync == nil {
		return types.Result{}, &client.ProtocolError{Message: "sync is not configured"}
	}
	res := op(ctx)
	out := types.Result{Status: res.Status, Message: res.Message, Path: l.sync.PresetsDir()}
	if ok, _ := res.OK(); !ok {
		return out, &client.ProtocolError{Message: res.Message}
	}
	if res.Status == types.StatusSuccess {
		if _, err := l.ix.Scan(ctx); err != nil {
			return types.Failure("sync succeeded but rescan failed: %v", err), nil
		}
	}
	return out, nil
}
