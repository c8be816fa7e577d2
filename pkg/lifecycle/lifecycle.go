// Package lifecycle sequences service startup and shutdown. Subsystems
// register hooks and readiness checks; long-running work such as run
// execution is started through Go so shutdown can wait for it.
package lifecycle

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
)

// ReadinessChecker reports whether a subsystem can serve traffic.
type ReadinessChecker interface {
	Ready() bool
}

// Coordinator owns the service context. Shutdown cancels it and then waits
// for shutdown hooks and background tasks.
type Coordinator struct {
	ctx    context.Context
	cancel context.CancelFunc

	startup sync.WaitGroup
	hooks   sync.WaitGroup
	tasks   sync.WaitGroup

	mu       sync.RWMutex
	started  bool
	stopping bool
	checks   map[string]ReadinessChecker
}

// New creates a Coordinator with a fresh cancellable context.
func New() *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		ctx:    ctx,
		cancel: cancel,
		checks: make(map[string]ReadinessChecker),
	}
}

// Context is cancelled when Shutdown begins.
func (c *Coordinator) Context() context.Context {
	return c.ctx
}

// OnStartup runs fn concurrently; WaitForStartup waits for it.
func (c *Coordinator) OnStartup(fn func()) {
	c.startup.Go(fn)
}

// OnShutdown runs fn concurrently right away. fn should block on
// Context().Done() before releasing its resources.
func (c *Coordinator) OnShutdown(fn func()) {
	c.hooks.Go(fn)
}

// Go runs fn as a tracked background task under the service context.
// It reports false, without running fn, once shutdown has begun.
func (c *Coordinator) Go(fn func(ctx context.Context)) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.stopping {
		return false
	}
	c.tasks.Go(func() { fn(c.ctx) })
	return true
}

// AddReadinessCheck gates readiness on rc under the given name.
func (c *Coordinator) AddReadinessCheck(name string, rc ReadinessChecker) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = rc
}

// Pending lists, sorted, what is keeping the service from being ready:
// "startup" until WaitForStartup returns, then any failing checks.
func (c *Coordinator) Pending() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var pending []string
	if !c.started || c.stopping {
		pending = append(pending, "startup")
	}
	for name, rc := range c.checks {
		if !rc.Ready() {
			pending = append(pending, name)
		}
	}
	slices.Sort(pending)
	return pending
}

// Ready reports whether nothing is pending.
func (c *Coordinator) Ready() bool {
	return len(c.Pending()) == 0
}

// WaitForStartup blocks until every startup hook returns.
func (c *Coordinator) WaitForStartup() {
	c.startup.Wait()

	c.mu.Lock()
	c.started = true
	c.mu.Unlock()
}

// Shutdown withdraws readiness, refuses new tasks, cancels the context,
// and waits up to timeout for hooks and in-flight tasks.
func (c *Coordinator) Shutdown(timeout time.Duration) error {
	c.mu.Lock()
	c.stopping = true
	c.mu.Unlock()

	c.cancel()

	done := make(chan struct{})
	go func() {
		c.tasks.Wait()
		c.hooks.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("shutdown timeout after %v", timeout)
	}
}
