package client

import (
	"context"

	"github.com/r2midi/presetctl/internal/types"
)

// Remote is the catalog service as seen by a client.
//
// Implementations return a *ProtocolError when the service answered but
// refused the request, and any other error when the request did not complete.
type Remote interface {
	Manufacturers(ctx context.Context) ([]string, error)
	DevicesByManufacturer(ctx context.Context, manufacturer string) ([]string, error)
	DeviceInfo(ctx context.Context, manufacturer string) ([]types.Device, error)
	CommunityFolders(ctx context.Context, device string) ([]string, error)
	Presets(ctx context.Context, filter types.PresetFilter) ([]types.Preset, error)
	Collections(ctx context.Context, manufacturer, device string) ([]string, error)
	MIDIPorts(ctx context.Context) (types.MIDIPorts, error)

	CreateManufacturer(ctx context.Context, name string) (types.Result, error)
	DeleteManufacturer(ctx context.Context, name string) (types.Result, error)
	CreateDevice(ctx context.Context, spec types.DeviceSpec) (types.Result, error)
	UpdateDevice(ctx context.Context, spec types.DeviceSpec) (types.Result, error)
	DeleteDevice(ctx context.Context, manufacturer, device string) (types.Result, error)
	CreatePreset(ctx context.Context, spec types.PresetSpec) (types.Result, error)
	UpdatePreset(ctx context.Context, spec types.PresetSpec) (types.Result, error)
	DeletePreset(ctx context.Context, manufacturer, device, collection, name string) (types.Result, error)
	CreateCollection(ctx context.Context, manufacturer, device, name, description string) (types.Result, error)
	UpdateCollection(ctx context.Context, manufacturer, device, name, newName string) (types.Result, error)
	DeleteCollection(ctx context.Context, manufacturer, device, name string) (types.Result, error)
	CheckDirectoryStructure(ctx context.Context, manufacturer, device string, create bool) (types.DirectoryStructure, error)

	Pull(ctx context.Context) (types.Result, error)
	Push(ctx context.Context) (types.Result, error)
}
