package main

import (
	"github.com/pkg/errors"

	"github.com/kestrelengine/assetpipe/asset"
	"github.com/kestrelengine/assetpipe/bakers/imagebaker"
	"github.com/kestrelengine/assetpipe/bakers/modelbaker"
	"github.com/kestrelengine/assetpipe/bakers/shaderbaker"
	"github.com/kestrelengine/assetpipe/cachestore"
	"github.com/kestrelengine/assetpipe/config"
	"github.com/kestrelengine/assetpipe/pipeline"
	"github.com/kestrelengine/assetpipe/remote"
	"github.com/kestrelengine/assetpipe/scheduler"
	"github.com/kestrelengine/assetpipe/typereg"
	"github.com/kestrelengine/assetpipe/vfs"
)

// Well-known built-in type ids, named like the wire command codes (spec §6).
var (
	TypeImage  = remote.FourCC('I', 'M', 'G', '0')
	TypeModel  = remote.FourCC('M', 'D', 'L', '0')
	TypeShader = remote.FourCC('S', 'H', 'D', '0')
)

// app bundles the whole running stack: database, registry, VFS, cache
// store, GPU backend and the scheduler driving the pipeline manager.
type app struct {
	db        *asset.Database
	groups    *asset.GroupPool
	registry  *typereg.Registry
	v         *vfs.VFS
	store     *cachestore.Store
	manager   *pipeline.Manager
	scheduler *scheduler.Scheduler
	bus       *remote.Bus
}

func registerBuiltinTypes(r *typereg.Registry) error {
	if err := r.Register(typereg.Descriptor{TypeID: TypeImage, Name: "image", Baker: imagebaker.New()}); err != nil {
		return errors.Wrap(err, "registering image type")
	}
	if err := r.Register(typereg.Descriptor{TypeID: TypeModel, Name: "model", Baker: modelbaker.New()}); err != nil {
		return errors.Wrap(err, "registering model type")
	}
	if err := r.Register(typereg.Descriptor{TypeID: TypeShader, Name: "shader", Baker: shaderbaker.New()}); err != nil {
		return errors.Wrap(err, "registering shader type")
	}
	return nil
}

// newApp wires the whole stack from cfg. mountDir, when non-empty, is
// mounted as the "data" alias local mount; connectRemote, when true, connects
// to cfg.RemoteURL as a VFS remote client as well as a bake-offload client.
func newApp(cfg *config.Config, mountDir string, connectRemote bool) (*app, error) {
	registry := typereg.New()
	if err := registerBuiltinTypes(registry); err != nil {
		return nil, err
	}

	store, err := cachestore.Open(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "opening cache store")
	}

	bus := remote.New()
	var remoteClient vfs.RemoteClient
	if connectRemote && cfg.RemoteURL != "" {
		remoteClient = remote.NewVFSClient(bus)
	}

	v := vfs.New(remoteClient)
	if mountDir != "" {
		if err := v.Mount(mountDir, "data", cfg.WatchSource); err != nil {
			return nil, errors.Wrap(err, "mounting data directory")
		}
	}
	if cfg.BundleIndex != "" {
		if err := v.MountBundle("assets", cfg.BundleIndex, cfg.BundleBlob); err != nil {
			return nil, errors.Wrap(err, "mounting asset bundle")
		}
	}
	if connectRemote && cfg.RemoteURL != "" {
		if err := bus.Connect(cfg.RemoteURL, func(url string, deliberate bool, reason error) {}); err != nil {
			return nil, errors.Wrapf(err, "connecting to remote bus %q", cfg.RemoteURL)
		}
	}

	db := asset.NewDatabase()
	groups := asset.NewGroupPool()
	manager := pipeline.New(db, groups, registry, v, store, cfg, pipeline.NullGPUBackend{})
	if connectRemote {
		manager.RemoteBus = bus
	}
	if cfg.WatchSource {
		manager.WatchSourceChanges()
	}
	sched := scheduler.New(manager, store)

	return &app{
		db:        db,
		groups:    groups,
		registry:  registry,
		v:         v,
		store:     store,
		manager:   manager,
		scheduler: sched,
		bus:       bus,
	}, nil
}
