package alloc

import "sync"

// DataAllocator hands out independent committed copies of a record's bytes
// and tracks live byte count for AssetBudgetStats. Spec §4.4 requires it be
// single-writer (enforced by the scheduler's one-group-in-flight rule, not
// by a lock here) — reads (GetObjData) may happen concurrently from any
// thread, so the live-byte counter itself still needs a mutex.
type DataAllocator struct {
	mu        sync.Mutex
	liveBytes int64
	liveCount int64
}

// NewDataAllocator creates an empty allocator.
func NewDataAllocator() *DataAllocator { return &DataAllocator{} }

// Commit copies src into a fresh, independently-owned buffer — this is the
// "memcpy each successful scratch blob into a fresh allocation" step from
// spec §4.7 step 7, promoting a scratch-arena range into a persistent,
// relocatable record.
func (d *DataAllocator) Commit(src []byte) []byte {
	out := make([]byte, len(src))
	copy(out, src)
	d.mu.Lock()
	d.liveBytes += int64(len(out))
	d.liveCount++
	d.mu.Unlock()
	return out
}

// Release accounts for freeing a previously-committed buffer (spec §4.6
// unload pipeline: "free the data block"). Go's GC reclaims the memory once
// unreferenced; this only keeps the budget counters accurate.
func (d *DataAllocator) Release(buf []byte) {
	d.mu.Lock()
	d.liveBytes -= int64(len(buf))
	d.liveCount--
	d.mu.Unlock()
}

// Stats reports current live byte/object counts.
func (d *DataAllocator) Stats() (liveBytes, liveCount int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.liveBytes, d.liveCount
}
