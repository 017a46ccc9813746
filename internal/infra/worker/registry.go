package worker

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

type pollEntry struct {
	gen    uint64
	cancel context.CancelFunc
	done   chan struct{}
}

// Registry keeps at most one running poller per key. Starting a key that is
// already running cancels the old loop and waits for it to exit before the
// new one begins, so two loops never act on the same order.
type Registry struct {
	swap    sync.Mutex
	mu      sync.Mutex
	base    context.Context
	stop    context.CancelFunc
	entries map[string]*pollEntry
	gen     uint64
	wg      sync.WaitGroup
	logger  *zerolog.Logger
}

func NewRegistry(ctx context.Context, logger *zerolog.Logger) *Registry {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	base, stop := context.WithCancel(ctx)
	return &Registry{base: base, stop: stop, entries: map[string]*pollEntry{}, logger: logger}
}

// CancelAndReplace stops any loop registered under key, waits for it, then
// starts fn under key.
// fn must return promptly once its ctx is done and must not call Remove or CancelAndReplace for its own key.
func (r *Registry) CancelAndReplace(key string, fn func(ctx context.Context)) {
	r.swap.Lock()
	defer r.swap.Unlock()
	r.wait(key)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.base.Err() != nil {
		return
	}
	r.gen++
	ctx, cancel := context.WithCancel(r.base)
	e := &pollEntry{gen: r.gen, cancel: cancel, done: make(chan struct{})}
	r.entries[key] = e
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer close(e.done)
		defer r.release(key, e.gen)
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error().Str("key", key).Interface("panic", rec).Msg("poller panicked")
			}
		}()
		fn(ctx)
	}()
}

func (r *Registry) release(key string, gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e := r.entries[key]; e != nil && e.gen == gen {
		e.cancel()
		delete(r.entries, key)
	}
}

// Remove cancels the loop under key and waits for it to exit.
func (r *Registry) Remove(key string) {
	r.swap.Lock()
	defer r.swap.Unlock()
	r.wait(key)
}

func (r *Registry) wait(key string) {
	r.mu.Lock()
	e := r.entries[key]
	r.mu.Unlock()
	if e == nil {
		return
	}
	e.cancel()
	<-e.done
}

func (r *Registry) Running(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[key]
	return ok
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Shutdown cancels every loop and waits for all of them.
func (r *Registry) Shutdown() {
	r.stop()
	r.wg.Wait()
}
