package scheduler

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/aalpar/deheap"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kestrelengine/assetpipe/asset"
	"github.com/kestrelengine/assetpipe/cachestore"
	"github.com/kestrelengine/assetpipe/corelog"
)

var jobsDispatched = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "assetpipe_scheduler_jobs_dispatched_total",
	Help: "Group scheduler jobs dispatched, by kind.",
}, []string{"kind"})

func init() {
	prometheus.MustRegister(jobsDispatched)
}

// Dispatcher runs one group job to completion in the background and
// reports it Done() once finished. The scheduler never blocks on it inside
// Update (spec §4.6, §5 "main thread is the sole driver of the scheduler's
// state machine").
type Dispatcher interface {
	DispatchLoad(group asset.Handle) Job
	DispatchUnload(group asset.Handle) Job
	DispatchServer() Job
}

// Job is a running asynchronous group job.
type Job interface {
	Done() bool
}

// asyncJob runs fn on its own goroutine and reports completion via a closed
// channel, a minimal Job implementation usable by any Dispatcher.
type asyncJob struct {
	done chan struct{}
}

// RunAsync starts fn on a new goroutine and returns a Job tracking it.
func RunAsync(fn func()) Job {
	j := &asyncJob{done: make(chan struct{})}
	go func() {
		defer close(j.done)
		fn()
	}()
	return j
}

func (j *asyncJob) Done() bool {
	select {
	case <-j.done:
		return true
	default:
		return false
	}
}

// Scheduler is the Group Scheduler (spec §4.6). Main-thread-driven: only
// Update, SubmitLoad, SubmitUnload, and SubmitServer are meant to be called
// from the owning (main) goroutine, matching spec §5's thread-ownership
// rule for Group::Load/Unload/Destroy/Update.
type Scheduler struct {
	mu   sync.Mutex
	jobs jobHeap
	seq  int64

	curJob   Job
	curKind  Kind
	curGroup asset.Handle

	dispatcher Dispatcher
	store      *cachestore.Store

	flushing int32 // atomic: a flush goroutine is in flight

	mainGoroutineID int64
}

// New creates a Scheduler driving dispatcher's jobs and flushing store's
// hash-lookup table on the cadence spec §4.6 step 3 describes. Call from
// whichever goroutine will own the scheduler's main-thread contract.
func New(dispatcher Dispatcher, store *cachestore.Store) *Scheduler {
	s := &Scheduler{dispatcher: dispatcher, store: store}
	deheap.Init(&s.jobs)
	s.bindMainGoroutine()
	return s
}

// removePending removes the first pending job of kind k for group g and
// reports whether one was found. Caller holds s.mu.
func (s *Scheduler) removePending(k Kind, g asset.Handle) bool {
	for i, j := range s.jobs {
		if j.kind == k && j.group == g {
			deheap.Remove(&s.jobs, i)
			return true
		}
	}
	return false
}

// SubmitLoad enqueues a Load job for group g, cancelling any pending Unload
// for the same group (spec §4.6: "submitting a Load while an Unload for the
// same group is pending cancels the Unload"). A Load is always enqueued,
// even when it cancelled a pending Unload — matching spec §8's round-trip
// law "Submitting Unload then Load ... leaves exactly a Load pending."
func (s *Scheduler) SubmitLoad(g asset.Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removePending(KindUnload, g)
	s.seq++
	deheap.Push(&s.jobs, &pendingJob{kind: KindLoad, group: g, seq: s.seq})
}

// SubmitUnload enqueues an Unload job for group g, cancelling any pending
// Load for the same group (spec §4.6). When a pending Load was cancelled,
// no Unload job is enqueued — matching spec §8's round-trip law
// "Submitting Load then Unload ... leaves the group in Idle with no
// dispatched job" (S5): the cancelled Load never ran, so there is nothing
// to undo.
func (s *Scheduler) SubmitUnload(g asset.Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removePending(KindLoad, g) {
		return
	}
	s.seq++
	deheap.Push(&s.jobs, &pendingJob{kind: KindUnload, group: g, seq: s.seq})
}

// SubmitServer enqueues a Server (bake-server batch) job (spec §4.7 "Bake
// Server Pipeline").
func (s *Scheduler) SubmitServer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	deheap.Push(&s.jobs, &pendingJob{kind: KindServer, seq: s.seq})
}

// PendingLen reports the number of queued (not yet dispatched) jobs, used by
// the S5/round-trip property tests.
func (s *Scheduler) PendingLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Update performs exactly the three steps of spec §4.6: retire a finished
// curJob, dispatch the next highest-priority pending job if none is in
// flight, and kick off an asynchronous hash-lookup flush if warranted. Must
// be called only from the owning goroutine (spec §5).
func (s *Scheduler) Update() {
	s.mu.Lock()
	if s.curJob != nil && s.curJob.Done() {
		corelog.Debugf("scheduler", "job %s for group %v finished", s.curKind, s.curGroup)
		s.curJob = nil
	}
	if s.curJob == nil && len(s.jobs) > 0 {
		next := deheap.Pop(&s.jobs).(*pendingJob)
		s.curKind = next.kind
		s.curGroup = next.group
		jobsDispatched.WithLabelValues(next.kind.String()).Inc()
		switch next.kind {
		case KindServer:
			s.curJob = s.dispatcher.DispatchServer()
		case KindLoad:
			s.curJob = s.dispatcher.DispatchLoad(next.group)
		case KindUnload:
			s.curJob = s.dispatcher.DispatchUnload(next.group)
		}
	}
	s.mu.Unlock()

	if s.store != nil && atomic.CompareAndSwapInt32(&s.flushing, 0, 1) {
		go func() {
			defer atomic.StoreInt32(&s.flushing, 0)
			s.store.MaybeFlush(time.Now())
		}()
	}
}

// CurrentJob reports the kind and group of the job currently in flight, and
// whether one is in flight at all.
func (s *Scheduler) CurrentJob() (Kind, asset.Handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.curKind, s.curGroup, s.curJob != nil
}
