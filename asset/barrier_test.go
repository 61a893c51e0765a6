package asset

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBarrierWaitBlocksUntilZero(t *testing.T) {
	b := NewBarrier()
	b.Begin()
	b.Begin()
	assert.Equal(t, 2, b.Count())

	done := make(chan struct{})
	go func() {
		b.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Wait returned before count reached zero")
	case <-time.After(20 * time.Millisecond):
	}

	b.Done()
	b.Done()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after count reached zero")
	}
}

func TestBarrierWaitNoOpWhenAlreadyZero(t *testing.T) {
	b := NewBarrier()
	b.Wait() // must return immediately
}
