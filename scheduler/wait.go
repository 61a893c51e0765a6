package scheduler

import (
	"bytes"
	"runtime"
	"strconv"
	"time"

	"github.com/kestrelengine/assetpipe/asset"
	"github.com/kestrelengine/assetpipe/corelog"
)

// goroutineID extracts the numeric id Go prints at the head of a goroutine's
// stack trace ("goroutine 7 [running]: ..."). There is no supported public
// API for this; it exists purely for the debug-mode main-thread-misuse
// check below, never for program logic.
func goroutineID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	field := bytes.Fields(buf[:n])
	if len(field) < 2 {
		return -1
	}
	id, _ := strconv.ParseInt(string(field[1]), 10, 64)
	return id
}

// bindMainGoroutine records the caller's goroutine id as "the main thread"
// for the debug-mode Wait misuse check (SPEC_FULL.md Open Question decision
// #3). Call once, from whichever goroutine owns the scheduler.
func (s *Scheduler) bindMainGoroutine() {
	s.mainGoroutineID = goroutineID()
}

// Wait spins the scheduler (spec §4.6 Group::Wait, §5 "it may pump one
// scheduler tick per spin so the load actually completes") until group h
// is Loaded or Idle, or no longer exists. Documented as main-thread-only: the original would
// deadlock off the main thread, since nothing else drives Update(). Per
// SPEC_FULL.md's Open Question decision #3, a debug-mode goroutine-identity
// mismatch is logged, not panicked, matching spec §7's "no exceptions"
// error contract.
func (s *Scheduler) Wait(pool *asset.GroupPool, h asset.Handle) {
	if id := goroutineID(); s.mainGoroutineID != 0 && id != s.mainGoroutineID {
		corelog.Errorf("scheduler", "Group.Wait called from goroutine %d, expected main goroutine %d — this is a misuse of the main-thread-only contract", id, s.mainGoroutineID)
	}
	for {
		g, ok := pool.Get(h)
		if !ok || g.State() == asset.GroupLoaded || g.State() == asset.GroupIdle {
			return
		}
		s.Update()
		time.Sleep(time.Millisecond)
	}
}
