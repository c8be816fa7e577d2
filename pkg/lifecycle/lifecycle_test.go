package lifecycle_test

import (
	"context"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"github.com/JaimeStill/ldaa/pkg/lifecycle"
)

type checker struct {
	ready atomic.Bool
}

func (c *checker) Ready() bool { return c.ready.Load() }

func TestReadiness(t *testing.T) {
	lc := lifecycle.New()
	if lc.Ready() {
		t.Error("should not be ready before WaitForStartup")
	}
	if got := lc.Pending(); !slices.Equal(got, []string{"startup"}) {
		t.Errorf("pending = %v, want [startup]", got)
	}

	lc.WaitForStartup()
	if !lc.Ready() {
		t.Error("should be ready after WaitForStartup")
	}
}

func TestReadinessChecks(t *testing.T) {
	lc := lifecycle.New()
	db, store := &checker{}, &checker{}
	lc.AddReadinessCheck("storage", store)
	lc.AddReadinessCheck("database", db)
	lc.WaitForStartup()

	if got := lc.Pending(); !slices.Equal(got, []string{"database", "storage"}) {
		t.Errorf("pending = %v", got)
	}

	db.ready.Store(true)
	store.ready.Store(true)
	if !lc.Ready() {
		t.Errorf("should be ready once every check passes, pending %v", lc.Pending())
	}
}

func TestStartupHooksExecute(t *testing.T) {
	lc := lifecycle.New()

	var count atomic.Int32
	for range 3 {
		lc.OnStartup(func() {
			count.Add(1)
		})
	}

	lc.WaitForStartup()

	if got := count.Load(); got != 3 {
		t.Errorf("startup hooks: got %d, want 3", got)
	}
}

func TestShutdownWaitsForTasks(t *testing.T) {
	lc := lifecycle.New()

	var cleaned, interrupted atomic.Bool
	lc.OnShutdown(func() {
		<-lc.Context().Done()
		cleaned.Store(true)
	})

	started := make(chan struct{})
	if !lc.Go(func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		time.Sleep(20 * time.Millisecond)
		interrupted.Store(true)
	}) {
		t.Fatal("task should be scheduled before shutdown")
	}
	<-started

	lc.WaitForStartup()

	if err := lc.Shutdown(5 * time.Second); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}

	if !cleaned.Load() {
		t.Error("shutdown hook did not execute")
	}
	if !interrupted.Load() {
		t.Error("shutdown returned before the task finished")
	}
	if lc.Ready() {
		t.Error("readiness should be withdrawn on shutdown")
	}
	if lc.Go(func(context.Context) {}) {
		t.Error("tasks must be refused after shutdown")
	}
}

func TestShutdownTimeout(t *testing.T) {
	lc := lifecycle.New()

	lc.Go(func(ctx context.Context) {
		<-ctx.Done()
		time.Sleep(500 * time.Millisecond)
	})

	lc.WaitForStartup()

	if err := lc.Shutdown(50 * time.Millisecond); err == nil {
		t.Error("expected timeout error, got nil")
	}
}
