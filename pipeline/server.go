package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/kestrelengine/assetpipe/asset"
	"github.com/kestrelengine/assetpipe/baker"
	"github.com/kestrelengine/assetpipe/cachestore"
	"github.com/kestrelengine/assetpipe/corelog"
	"github.com/kestrelengine/assetpipe/remote"
	"github.com/kestrelengine/assetpipe/vfs"
)

// bakeRequest is one queued LDAS request awaiting service by the Bake
// Server Pipeline (spec §4.7 "Bake Server Pipeline"): the async server
// handler only parses and enqueues it; baking itself happens on the
// scheduler's Server-kind job so it never blocks the connection's read loop.
type bakeRequest struct {
	session   *remote.Session
	requestID uint64
	params    asset.Params
}

// RegisterBakeServerHandler wires the LDAS command as an async server
// handler that enqueues the request for runServerBatch, rather than baking
// inline on the connection goroutine (spec §4.2: "the handler instead
// schedules work and later invokes SendResponse").
func (m *Manager) RegisterBakeServerHandler(bus *remote.Bus) {
	bus.RegisterCommand(remote.Command{
		Cmd:   remote.CmdLoadAsset,
		Async: true,
		ServerAsync: func(s *remote.Session, cmd uint32, requestID uint64, incoming []byte) {
			typeID, platform, path, extra, err := decodeLoadAssetRequest(incoming)
			if err != nil {
				corelog.Errorf("pipeline.server", "malformed LDAS request: %v", err)
				_ = s.SendResponse(cmd, requestID, nil, "malformed request")
				return
			}
			req := bakeRequest{
				session:   s,
				requestID: requestID,
				params:    asset.Params{TypeID: typeID, Platform: asset.Platform(platform), Path: path, Extra: extra},
			}
			m.pendingMu.Lock()
			m.pendingBake = append(m.pendingBake, req)
			m.pendingMu.Unlock()
		},
	})
}

// runServerBatch implements the Bake Server Pipeline's per-tick batch (spec
// §4.7): pop up to cfg.MaxInFlightBakeRequests queued requests, bake each in
// parallel from the server's own source mounts, and reply with the merged
// asset-hash-header-plus-serialized-record response.
func (m *Manager) runServerBatch() {
	batch := m.popPendingBake()
	if len(batch) == 0 {
		return
	}

	sem := make(chan struct{}, maxInt(m.Cfg.LongWorkers, 1))
	var eg errgroup.Group
	for _, req := range batch {
		req := req
		sem <- struct{}{}
		eg.Go(func() error {
			defer func() { <-sem }()
			m.serveOneBake(req)
			return nil
		})
	}
	_ = eg.Wait()
}

func (m *Manager) popPendingBake() []bakeRequest {
	m.pendingMu.Lock()
	defer m.pendingMu.Unlock()
	limit := m.Cfg.MaxInFlightBakeRequests
	if limit <= 0 || limit > len(m.pendingBake) {
		limit = len(m.pendingBake)
	}
	batch := m.pendingBake[:limit]
	m.pendingBake = m.pendingBake[limit:]
	return batch
}

func (m *Manager) serveOneBake(req bakeRequest) {
	desc, ok := m.Registry.Get(req.params.TypeID)
	if !ok || desc.Baker == nil {
		_ = req.session.SendResponse(remote.CmdLoadAsset, req.requestID, nil, "unregistered asset type")
		return
	}
	meta := loadMeta(m.VFS, req.params.Path, req.params.Platform)
	source := m.VFS.Read(req.params.Path, vfs.FlagNone)
	if !source.IsValid() {
		_ = req.session.SendResponse(remote.CmdLoadAsset, req.requestID, nil, "source file unreadable on bake server")
		return
	}

	builder := baker.NewBuilder(meta.flat)
	in := baker.Input{
		TypeID:   req.params.TypeID,
		Path:     req.params.Path,
		Platform: uint32(req.params.Platform),
		Extra:    req.params.Extra,
		Source:   source.Data,
		Meta:     meta.flat,
	}
	ok2, errDesc := desc.Baker.Bake(context.Background(), in, builder)
	if !ok2 {
		_ = req.session.SendResponse(remote.CmdLoadAsset, req.requestID, nil, errDesc)
		return
	}

	record := asset.FromBuilder(builder, meta.kv)
	relPath := m.VFS.StripMountPath(req.params.Path)
	srcSize, srcMod, _ := m.VFS.Stat(req.params.Path)
	assetHash := cachestore.ComputeAssetHash(req.params.Path, req.params.Hash(), srcSize, srcMod, meta.size, meta.mod)
	cachePath := cachestore.EntryPath(m.Store.Dir(), relPath, assetHash, desc.Name)

	raw, err := record.Marshal()
	if err != nil {
		_ = req.session.SendResponse(remote.CmdLoadAsset, req.requestID, nil, "failed to serialize bake result")
		return
	}
	if err := cachestore.WriteEntry(cachePath, raw); err != nil {
		corelog.Errorf(req.params.Path, "bake server: failed to write cache entry: %v", err)
	} else {
		m.Store.SetLookup(asset.LookupKey{TypeID: req.params.TypeID, ParamsHash: req.params.Hash()}, assetHash)
	}

	var header [4]byte
	header[0] = byte(assetHash)
	header[1] = byte(assetHash >> 8)
	header[2] = byte(assetHash >> 16)
	header[3] = byte(assetHash >> 24)
	if err := req.session.SendResponseMerge(remote.CmdLoadAsset, req.requestID, header[:], raw, ""); err != nil {
		corelog.Errorf(req.params.Path, "bake server: failed to send response: %v", err)
	}
}
