// Package scheduler implements the Group Scheduler (spec §4.6): a
// main-thread-driven priority queue over Server/Load/Unload jobs, with at
// most one asynchronous group job in flight at a time.
package scheduler

import (
	"github.com/kestrelengine/assetpipe/asset"
)

// Kind is a pending job's category. Priority order is Server > Load > Unload
// (spec §4.6); lower numeric value sorts first in the priority heap.
type Kind int

const (
	KindServer Kind = iota
	KindLoad
	KindUnload
)

func (k Kind) String() string {
	switch k {
	case KindServer:
		return "Server"
	case KindLoad:
		return "Load"
	case KindUnload:
		return "Unload"
	default:
		return "?"
	}
}

// pendingJob is one entry of the scheduler's pendingJobs list (spec §3 VFS
// Request's sibling entity for the scheduler: "{kind, groupHandle}").
type pendingJob struct {
	kind  Kind
	group asset.Handle
	seq   int64 // insertion order, breaks ties between same-kind jobs FIFO
	index int   // heap.Interface bookkeeping
}

// jobHeap is a container/heap-compatible priority queue ordered by (kind,
// seq): Server jobs before Load before Unload, FIFO within a kind. Used as
// the backing store for github.com/aalpar/deheap's Interface, which extends
// container/heap's contract with double-ended access (PopMax) — only the
// min-end (highest priority) is used here, matching spec §4.6's single
// "pop the highest-priority job" step.
type jobHeap []*pendingJob

func (h jobHeap) Len() int { return len(h) }

func (h jobHeap) Less(i, j int) bool {
	if h[i].kind != h[j].kind {
		return h[i].kind < h[j].kind
	}
	return h[i].seq < h[j].seq
}

func (h jobHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *jobHeap) Push(x interface{}) {
	j := x.(*pendingJob)
	j.index = len(*h)
	*h = append(*h, j)
}

func (h *jobHeap) Pop() interface{} {
	old := *h
	n := len(old)
	j := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return j
}
