//go:build !integration

package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_ReplaceWaitsForOldLoop(t *testing.T) {
	reg := NewRegistry(context.Background(), nil)
	defer reg.Shutdown()

	var mu sync.Mutex
	var events []string
	record := func(e string) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	}

	started := make(chan struct{})
	reg.CancelAndReplace("numberland:1", func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		time.Sleep(20 * time.Millisecond)
		record("old-exit")
	})
	<-started

	newStarted := make(chan struct{})
	reg.CancelAndReplace("numberland:1", func(ctx context.Context) {
		record("new-start")
		close(newStarted)
		<-ctx.Done()
	})
	<-newStarted

	mu.Lock()
	assert.Equal(t, []string{"old-exit", "new-start"}, events)
	mu.Unlock()
	assert.Equal(t, 1, reg.Len())
}

func TestRegistry_FinishedLoopIsReleased(t *testing.T) {
	reg := NewRegistry(context.Background(), nil)
	defer reg.Shutdown()

	done := make(chan struct{})
	reg.CancelAndReplace("k", func(ctx context.Context) { close(done) })
	<-done
	require.Eventually(t, func() bool { return !reg.Running("k") }, time.Second, 5*time.Millisecond)
}

func TestRegistry_RemoveAndShutdown(t *testing.T) {
	reg := NewRegistry(context.Background(), nil)
	var exited int32
	for _, k := range []string{"a", "b", "c"} {
		reg.CancelAndReplace(k, func(ctx context.Context) {
			<-ctx.Done()
			atomic.AddInt32(&exited, 1)
		})
	}
	reg.Remove("a")
	assert.Equal(t, int32(1), atomic.LoadInt32(&exited))
	assert.False(t, reg.Running("a"))

	reg.Shutdown()
	assert.Equal(t, int32(3), atomic.LoadInt32(&exited))

	reg.CancelAndReplace("d", func(ctx context.Context) { t.Error("must not start after shutdown") })
	assert.Equal(t, 0, reg.Len())
}

func TestPool_RunsTasks(t *testing.T) {
	p := NewPool(2, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)

	var n int32
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		require.NoError(t, p.Submit(func(ctx context.Context) error {
			defer wg.Done()
			atomic.AddInt32(&n, 1)
			return nil
		}))
	}
	wg.Wait()
	p.Stop()
	assert.Equal(t, int32(5), atomic.LoadInt32(&n))
	assert.Error(t, p.Submit(nil))
}
