package cachestore

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/kestrelengine/assetpipe/asset"
	"github.com/kestrelengine/assetpipe/config"
	"github.com/kestrelengine/assetpipe/corelog"
	"github.com/kestrelengine/assetpipe/vfs/vfscommon"
)

var (
	cacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "assetpipe_cache_hits_total",
		Help: "Cache store lookups that resolved to an existing entry.",
	})
	cacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "assetpipe_cache_misses_total",
		Help: "Cache store lookups that found no entry.",
	})
	flushesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "assetpipe_cache_lookup_flushes_total",
		Help: "Hash-lookup table flushes written to disk.",
	})
)

func init() {
	prometheus.MustRegister(cacheHits, cacheMisses, flushesTotal)
}

// Store is the Cache Store (spec §4.5): an on-disk content-addressed blob
// layout plus the in-memory hash-lookup table mirrored to
// "_HashLookup.txt", matching the teacher's backend/cache pattern of a
// durable local index guarding remote-object reads.
type Store struct {
	dir  string
	mode vfscommon.CacheMode

	mu      sync.RWMutex
	lookup  map[asset.LookupKey]uint32
	dirty   bool
	dirtyAt time.Time

	minDirty     time.Duration
	flushLimiter *rate.Limiter
	lastFlush    time.Time
}

// Open loads (or creates) a Store rooted at cfg.CacheDir, reading the
// persisted hash-lookup table if present.
func Open(cfg *config.Config) (*Store, error) {
	s := &Store{
		dir:         cfg.CacheDir,
		mode:        cfg.CacheMode,
		lookup:      make(map[asset.LookupKey]uint32),
		minDirty:    cfg.HashLookupFlushMinDirty,
		flushLimiter: rate.NewLimiter(rate.Every(cfg.HashLookupFlushMinInterval), 1),
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "cachestore: mkdir cache dir %q", s.dir)
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// CacheOnly reports whether source bakes are disabled (spec §4.5 "Cache only
// mode"): true precisely when the store is in CacheModeReadOnly.
func (s *Store) CacheOnly() bool { return s.mode == vfscommon.CacheModeReadOnly }

// Dir returns the cache root directory.
func (s *Store) Dir() string { return s.dir }

func (s *Store) load() error {
	f, err := os.Open(HashLookupPath(s.dir))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "cachestore: open hash lookup")
	}
	defer f.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\x00")
		if line == "" {
			continue
		}
		// "0x{typeId}:0x{paramsHash};0x{assetHash}" (SPEC_FULL.md Open Question #2).
		parts := strings.SplitN(line, ";", 2)
		if len(parts) != 2 {
			corelog.Errorf("cachestore", "skipping malformed hash-lookup line %q", line)
			continue
		}
		keyParts := strings.SplitN(parts[0], ":", 2)
		if len(keyParts) != 2 {
			corelog.Errorf("cachestore", "skipping malformed hash-lookup key %q", parts[0])
			continue
		}
		typeID, err1 := parseHex(keyParts[0])
		paramsHash, err2 := parseHex(keyParts[1])
		assetHash, err3 := parseHex(parts[1])
		if err1 != nil || err2 != nil || err3 != nil {
			corelog.Errorf("cachestore", "skipping malformed hash-lookup line %q", line)
			continue
		}
		s.lookup[asset.LookupKey{TypeID: uint32(typeID), ParamsHash: uint32(paramsHash)}] = uint32(assetHash)
	}
	return sc.Err()
}

func parseHex(s string) (uint64, error) {
	s = strings.TrimPrefix(s, "0x")
	return strconv.ParseUint(s, 16, 32)
}

// Lookup resolves a params-hash (extended with type-id, Open Question #2) to
// its predicted asset-hash (spec §4.5 "Staleness: a load consults the
// lookup to predict asset-hash").
func (s *Store) Lookup(key asset.LookupKey) (uint32, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.lookup[key]
	if ok {
		cacheHits.Inc()
	} else {
		cacheMisses.Inc()
	}
	return v, ok
}

// SetLookup records key -> assetHash and marks the table dirty (spec §4.5
// "Updated on successful bake").
func (s *Store) SetLookup(key asset.LookupKey, assetHash uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.lookup[key]; ok && existing == assetHash {
		return
	}
	s.lookup[key] = assetHash
	if !s.dirty {
		s.dirty = true
		s.dirtyAt = time.Now()
	}
}

// MaybeFlush implements the Group Scheduler's step 3 (spec §4.6): "If the
// hash-lookup is dirty and the flush interval has elapsed, flush it
// asynchronously." Callers invoke this once per scheduler tick; Flush itself
// runs synchronously but is expected to be called from a background
// goroutine by the scheduler so it never blocks Update().
func (s *Store) MaybeFlush(now time.Time) bool {
	s.mu.RLock()
	dirty := s.dirty
	dirtyAt := s.dirtyAt
	s.mu.RUnlock()
	if !dirty {
		return false
	}
	if now.Sub(dirtyAt) < s.minDirty {
		return false
	}
	if !s.flushLimiter.AllowN(now, 1) {
		return false
	}
	if err := s.Flush(); err != nil {
		corelog.Errorf("cachestore", "hash-lookup flush failed: %v", err)
		return false
	}
	return true
}

// Flush writes the entire lookup table to disk atomically (spec §4.5
// "Hash lookup database"). A no-op (no file write) when nothing is dirty,
// per spec §8's round-trip law.
func (s *Store) Flush() error {
	s.mu.Lock()
	if !s.dirty {
		s.mu.Unlock()
		return nil
	}
	snapshot := make(map[asset.LookupKey]uint32, len(s.lookup))
	for k, v := range s.lookup {
		snapshot[k] = v
	}
	s.mu.Unlock()

	var buf strings.Builder
	for k, v := range snapshot {
		fmt.Fprintf(&buf, "0x%x:0x%x;0x%x\n", k.TypeID, k.ParamsHash, v)
	}
	path := HashLookupPath(s.dir)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(buf.String()), 0o644); err != nil {
		return errors.Wrapf(err, "cachestore: write %q", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrapf(err, "cachestore: rename %q -> %q", tmp, path)
	}

	s.mu.Lock()
	s.dirty = false
	s.lastFlush = time.Now()
	s.mu.Unlock()
	flushesTotal.Inc()
	return nil
}
