package scheduler

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelengine/assetpipe/asset"
	"github.com/kestrelengine/assetpipe/cachestore"
	"github.com/kestrelengine/assetpipe/config"
)

type recordingDispatcher struct {
	mu      sync.Mutex
	calls   []string
	blocked chan struct{} // if non-nil, dispatched jobs wait on this before finishing
}

func (d *recordingDispatcher) record(s string) {
	d.mu.Lock()
	d.calls = append(d.calls, s)
	d.mu.Unlock()
}

func (d *recordingDispatcher) run(label string) Job {
	d.record(label)
	return RunAsync(func() {
		if d.blocked != nil {
			<-d.blocked
		}
	})
}

func (d *recordingDispatcher) DispatchLoad(g asset.Handle) Job   { return d.run("load") }
func (d *recordingDispatcher) DispatchUnload(g asset.Handle) Job { return d.run("unload") }
func (d *recordingDispatcher) DispatchServer() Job               { return d.run("server") }

func newTestScheduler(t *testing.T, d Dispatcher) *Scheduler {
	t.Helper()
	cfg := config.Default()
	cfg.CacheDir = t.TempDir()
	store, err := cachestore.Open(cfg)
	require.NoError(t, err)
	return New(d, store)
}

func TestSchedulerPriorityServerBeforeLoadBeforeUnload(t *testing.T) {
	d := &recordingDispatcher{blocked: make(chan struct{})}
	s := newTestScheduler(t, d)

	g1, g2 := asset.NewHandle(1, 0), asset.NewHandle(2, 0)
	s.SubmitUnload(g1)
	s.SubmitLoad(g2)
	s.SubmitServer()

	s.Update() // dispatches the highest-priority job: Server
	close(d.blocked)
	time.Sleep(10 * time.Millisecond)

	d.mu.Lock()
	defer d.mu.Unlock()
	require.Len(t, d.calls, 1)
	assert.Equal(t, "server", d.calls[0])
}

func TestSchedulerOneJobInFlight(t *testing.T) {
	d := &recordingDispatcher{blocked: make(chan struct{})}
	s := newTestScheduler(t, d)

	s.SubmitLoad(asset.NewHandle(1, 0))
	s.SubmitLoad(asset.NewHandle(2, 0))

	s.Update()
	s.Update() // curJob still running (blocked), must not dispatch a second job
	d.mu.Lock()
	assert.Len(t, d.calls, 1)
	d.mu.Unlock()

	close(d.blocked)
	time.Sleep(10 * time.Millisecond)
	s.Update() // curJob now done, dispatches the second pending Load
	d.mu.Lock()
	assert.Len(t, d.calls, 2)
	d.mu.Unlock()
}

func TestSchedulerLoadThenUnloadCancelsBoth(t *testing.T) {
	d := &recordingDispatcher{}
	s := newTestScheduler(t, d)
	g := asset.NewHandle(1, 0)

	s.SubmitLoad(g)
	s.SubmitUnload(g)

	assert.Equal(t, 0, s.PendingLen(), "S5: pendingJobs must be empty")
}

func TestSchedulerUnloadThenLoadLeavesLoadPending(t *testing.T) {
	d := &recordingDispatcher{}
	s := newTestScheduler(t, d)
	g := asset.NewHandle(1, 0)

	s.SubmitUnload(g)
	s.SubmitLoad(g)

	require.Equal(t, 1, s.PendingLen())
	kind, grp, _ := peekOnly(s)
	assert.Equal(t, KindLoad, kind)
	assert.Equal(t, g, grp)
}

func peekOnly(s *Scheduler) (Kind, asset.Handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.jobs) == 0 {
		return 0, 0, false
	}
	j := s.jobs[0]
	return j.kind, j.group, true
}
