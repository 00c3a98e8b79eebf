package resource

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppoulin/vitrine/internal/services/kiosk/cache"
)

func testPolicy() cache.Policy {
	return cache.Policy{
		Key:           "test",
		MaxAge:        time.Hour,
		FreshWindow:   10 * time.Minute,
		SchemaVersion: "v1",
	}
}

func testStore(t *testing.T) *cache.Store {
	t.Helper()
	store, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("open cache store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within deadline")
}

func TestHookMountFetchesAndCaches(t *testing.T) {
	t.Parallel()

	store := testStore(t)
	var calls atomic.Int32
	hook := NewHook(testPolicy(), store, Source[[]string]{
		Fetch: func(ctx context.Context) ([]string, error) {
			calls.Add(1)
			return []string{"a", "b"}, nil
		},
	}, nil)

	hook.Mount(context.Background())

	snap := hook.Snapshot()
	if snap.State != StateReady {
		t.Fatalf("state = %q, want %q", snap.State, StateReady)
	}
	if len(snap.Data) != 2 {
		t.Fatalf("data length = %d, want 2", len(snap.Data))
	}
	if snap.Err != "" {
		t.Fatalf("unexpected error message %q", snap.Err)
	}
	if calls.Load() != 1 {
		t.Fatalf("fetch calls = %d, want 1", calls.Load())
	}
	if _, found := store.Peek("test"); !found {
		t.Fatal("expected result to be persisted")
	}
}

func TestHookMountServesCacheWithoutFetch(t *testing.T) {
	t.Parallel()

	store := testStore(t)
	store.Set(testPolicy(), []string{"cached"})

	var calls atomic.Int32
	hook := NewHook(testPolicy(), store, Source[[]string]{
		Fetch: func(ctx context.Context) ([]string, error) {
			calls.Add(1)
			return nil, errors.New("should not be called")
		},
	}, nil)

	hook.Mount(context.Background())

	snap := hook.Snapshot()
	if snap.State != StateReady {
		t.Fatalf("state = %q, want %q", snap.State, StateReady)
	}
	if len(snap.Data) != 1 || snap.Data[0] != "cached" {
		t.Fatalf("data = %v, want cached copy", snap.Data)
	}
	if calls.Load() != 0 {
		t.Fatalf("fetch calls = %d, want 0", calls.Load())
	}
}

func TestHookMountConcurrentSingleFetch(t *testing.T) {
	t.Parallel()

	store := testStore(t)
	release := make(chan struct{})
	var calls atomic.Int32
	hook := NewHook(testPolicy(), store, Source[[]string]{
		Fetch: func(ctx context.Context) ([]string, error) {
			calls.Add(1)
			<-release
			return []string{"a"}, nil
		},
	}, nil)

	done := make(chan struct{})
	go func() {
		hook.Mount(context.Background())
		close(done)
	}()
	waitFor(t, func() bool { return calls.Load() == 1 })

	// Re-mounts while the first load is in flight are no-ops.
	for i := 0; i < 5; i++ {
		hook.Mount(context.Background())
	}
	close(release)
	<-done

	if calls.Load() != 1 {
		t.Fatalf("fetch calls = %d, want 1", calls.Load())
	}
	if state := hook.Snapshot().State; state != StateReady {
		t.Fatalf("state = %q, want %q", state, StateReady)
	}
}

func TestHookMountExpiredEntryRefetches(t *testing.T) {
	t.Parallel()

	store := testStore(t)
	start := time.Now().UTC()
	store.SetClock(func() time.Time { return start })
	store.Set(testPolicy(), []string{"stale"})
	store.SetClock(func() time.Time { return start.Add(2 * time.Hour) })

	var calls atomic.Int32
	hook := NewHook(testPolicy(), store, Source[[]string]{
		Fetch: func(ctx context.Context) ([]string, error) {
			calls.Add(1)
			return []string{"fresh"}, nil
		},
	}, nil)

	hook.Mount(context.Background())

	snap := hook.Snapshot()
	if calls.Load() != 1 {
		t.Fatalf("fetch calls = %d, want 1", calls.Load())
	}
	if len(snap.Data) != 1 || snap.Data[0] != "fresh" {
		t.Fatalf("data = %v, want refetched copy", snap.Data)
	}
	envelope, found := store.Peek("test")
	if !found {
		t.Fatal("expected refreshed entry to be persisted")
	}
	if envelope.WrittenAt != start.Add(2*time.Hour).UnixMilli() {
		t.Fatalf("written at = %d, want rewrite at advanced clock", envelope.WrittenAt)
	}
}

func TestHookMountServesStaleFallbackOnFetchFailure(t *testing.T) {
	t.Parallel()

	store := testStore(t)
	start := time.Now().UTC()
	store.SetClock(func() time.Time { return start })
	store.Set(testPolicy(), []string{"stale"})
	store.SetClock(func() time.Time { return start.Add(2 * time.Hour) })

	hook := NewHook(testPolicy(), store, Source[[]string]{
		Fetch: func(ctx context.Context) ([]string, error) {
			return nil, errors.New("origin down")
		},
	}, nil)

	hook.Mount(context.Background())

	snap := hook.Snapshot()
	if snap.State != StateReady {
		t.Fatalf("state = %q, want %q", snap.State, StateReady)
	}
	if len(snap.Data) != 1 || snap.Data[0] != "stale" {
		t.Fatalf("data = %v, want stale fallback", snap.Data)
	}
	if snap.Err == "" {
		t.Fatal("expected a soft error indicator alongside stale data")
	}
}

func TestHookMountErrorsWithoutFallback(t *testing.T) {
	t.Parallel()

	store := testStore(t)
	hook := NewHook(testPolicy(), store, Source[[]string]{
		Fetch: func(ctx context.Context) ([]string, error) {
			return nil, errors.New("origin down")
		},
	}, nil)

	hook.Mount(context.Background())

	snap := hook.Snapshot()
	if snap.State != StateError {
		t.Fatalf("state = %q, want %q", snap.State, StateError)
	}
	if snap.Err == "" {
		t.Fatal("expected error message")
	}
	if snap.HasData {
		t.Fatal("expected no data")
	}
}

func TestHookMutateCommits(t *testing.T) {
	t.Parallel()

	store := testStore(t)
	hook := NewHook(testPolicy(), store, Source[[]string]{
		Fetch: func(ctx context.Context) ([]string, error) {
			return []string{"a"}, nil
		},
	}, nil)
	hook.Mount(context.Background())

	err := hook.Mutate(context.Background(),
		func(values []string) []string { return append(values, "b") },
		func(ctx context.Context) ([]string, error) { return []string{"a", "b"}, nil })
	if err != nil {
		t.Fatalf("mutate: %v", err)
	}

	snap := hook.Snapshot()
	if len(snap.Data) != 2 {
		t.Fatalf("data = %v, want committed collection", snap.Data)
	}
	if snap.Saving {
		t.Fatal("saving flag should be cleared")
	}

	payload, _, ok := store.Get(testPolicy())
	if !ok {
		t.Fatal("expected committed collection to be persisted")
	}
	if string(payload) != `["a","b"]` {
		t.Fatalf("persisted payload = %s", payload)
	}
}

func TestHookMutateRollsBackOnCommitFailure(t *testing.T) {
	t.Parallel()

	store := testStore(t)
	hook := NewHook(testPolicy(), store, Source[[]string]{
		Fetch: func(ctx context.Context) ([]string, error) {
			return []string{"authoritative"}, nil
		},
	}, nil)
	hook.Mount(context.Background())

	err := hook.Mutate(context.Background(),
		func(values []string) []string { return append(values, "optimistic") },
		func(ctx context.Context) ([]string, error) { return nil, errors.New("rejected") })
	if err == nil {
		t.Fatal("expected commit error")
	}

	snap := hook.Snapshot()
	if len(snap.Data) != 1 || snap.Data[0] != "authoritative" {
		t.Fatalf("data = %v, want reloaded authoritative copy", snap.Data)
	}
	if snap.Err == "" {
		t.Fatal("expected error message after rollback")
	}

	payload, _, ok := store.Get(testPolicy())
	if !ok {
		t.Fatal("expected authoritative collection to be persisted")
	}
	if string(payload) != `["authoritative"]` {
		t.Fatalf("persisted payload = %s, want authoritative copy", payload)
	}
}

func TestHookMutateRestoresSnapshotWhenReloadFails(t *testing.T) {
	t.Parallel()

	store := testStore(t)
	fetches := 0
	hook := NewHook(testPolicy(), store, Source[[]string]{
		Fetch: func(ctx context.Context) ([]string, error) {
			fetches++
			if fetches == 1 {
				return []string{"committed"}, nil
			}
			return nil, errors.New("origin down")
		},
	}, nil)
	hook.Mount(context.Background())

	err := hook.Mutate(context.Background(),
		func(values []string) []string { return append(values, "optimistic") },
		func(ctx context.Context) ([]string, error) { return nil, errors.New("rejected") })
	if err == nil {
		t.Fatal("expected commit error")
	}

	snap := hook.Snapshot()
	if len(snap.Data) != 1 || snap.Data[0] != "committed" {
		t.Fatalf("data = %v, want pre-mutation snapshot", snap.Data)
	}
	if snap.State != StateReady {
		t.Fatalf("state = %q, want %q", snap.State, StateReady)
	}
	if snap.Err == "" {
		t.Fatal("expected error message after failed commit")
	}

	payload, _, ok := store.Get(testPolicy())
	if !ok {
		t.Fatal("expected cached collection to survive")
	}
	if string(payload) != `["committed"]` {
		t.Fatalf("persisted payload = %s, want untouched pre-mutation copy", payload)
	}
}

func TestHookRevalidateThrottledWithinFreshWindow(t *testing.T) {
	t.Parallel()

	store := testStore(t)
	store.Set(testPolicy(), []string{"a"})

	var probes atomic.Int32
	hook := NewHook(testPolicy(), store, Source[[]string]{
		Fetch: func(ctx context.Context) ([]string, error) {
			return []string{"a"}, nil
		},
		LastModified: func(ctx context.Context) (time.Time, bool, error) {
			probes.Add(1)
			return time.Time{}, false, nil
		},
	}, nil)
	hook.Mount(context.Background())

	hook.Revalidate(context.Background())

	if probes.Load() != 0 {
		t.Fatalf("probes = %d, want 0 inside fresh window", probes.Load())
	}
}

func TestHookRevalidateReloadsWhenOriginNewer(t *testing.T) {
	t.Parallel()

	store := testStore(t)
	start := time.Now().UTC()
	store.SetClock(func() time.Time { return start })
	store.Set(testPolicy(), []string{"old"})

	later := start.Add(30 * time.Minute)
	store.SetClock(func() time.Time { return later })

	var fetches atomic.Int32
	hook := NewHook(testPolicy(), store, Source[[]string]{
		Fetch: func(ctx context.Context) ([]string, error) {
			fetches.Add(1)
			return []string{"new"}, nil
		},
		LastModified: func(ctx context.Context) (time.Time, bool, error) {
			return start.Add(15 * time.Minute), true, nil
		},
	}, nil)
	hook.SetClock(func() time.Time { return later })
	hook.Mount(context.Background())

	waitFor(t, func() bool {
		snap := hook.Snapshot()
		return len(snap.Data) == 1 && snap.Data[0] == "new"
	})
	if fetches.Load() != 1 {
		t.Fatalf("fetches = %d, want 1", fetches.Load())
	}
}

func TestHookRevalidateSurvivesMountContextCancel(t *testing.T) {
	t.Parallel()

	store := testStore(t)
	start := time.Now().UTC()
	store.SetClock(func() time.Time { return start })
	store.Set(testPolicy(), []string{"a"})

	later := start.Add(30 * time.Minute)
	store.SetClock(func() time.Time { return later })

	// The probe blocks until the mount context has been cancelled, the
	// way a handler's request context dies as soon as it returns.
	release := make(chan struct{})
	probeErr := make(chan error, 1)
	hook := NewHook(testPolicy(), store, Source[[]string]{
		Fetch: func(ctx context.Context) ([]string, error) {
			return []string{"a"}, nil
		},
		LastModified: func(ctx context.Context) (time.Time, bool, error) {
			<-release
			if err := ctx.Err(); err != nil {
				probeErr <- err
				return time.Time{}, false, err
			}
			probeErr <- nil
			return start.Add(-time.Minute), true, nil
		},
	}, nil)
	hook.SetClock(func() time.Time { return later })

	ctx, cancel := context.WithCancel(context.Background())
	hook.Mount(ctx)
	cancel()
	close(release)

	select {
	case err := <-probeErr:
		if err != nil {
			t.Fatalf("probe context: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("background revalidation never probed the origin")
	}

	waitFor(t, func() bool {
		envelope, found := store.Peek("test")
		return found && envelope.LastVerifiedAt == later.UnixMilli()
	})
	if msg := hook.Snapshot().Err; msg != "" {
		t.Fatalf("err = %q, want none for a healthy origin", msg)
	}
}

func TestHookRevalidateMarksVerifiedWhenUnchanged(t *testing.T) {
	t.Parallel()

	store := testStore(t)
	start := time.Now().UTC()
	store.SetClock(func() time.Time { return start })
	store.Set(testPolicy(), []string{"a"})

	later := start.Add(30 * time.Minute)
	store.SetClock(func() time.Time { return later })

	var fetches atomic.Int32
	hook := NewHook(testPolicy(), store, Source[[]string]{
		Fetch: func(ctx context.Context) ([]string, error) {
			fetches.Add(1)
			return []string{"a"}, nil
		},
		LastModified: func(ctx context.Context) (time.Time, bool, error) {
			return start.Add(-time.Minute), true, nil
		},
	}, nil)
	hook.SetClock(func() time.Time { return later })
	hook.Mount(context.Background())

	waitFor(t, func() bool {
		envelope, found := store.Peek("test")
		return found && envelope.LastVerifiedAt == later.UnixMilli()
	})
	if fetches.Load() != 0 {
		t.Fatalf("fetches = %d, want 0 for unchanged origin", fetches.Load())
	}
}

func TestHookResyncAcrossInstances(t *testing.T) {
	t.Parallel()

	store := testStore(t)
	bus := NewBroadcast[[]string]()
	source := Source[[]string]{
		Fetch: func(ctx context.Context) ([]string, error) {
			return []string{"a"}, nil
		},
	}

	first := NewHook(testPolicy(), store, source, bus)
	second := NewHook(testPolicy(), store, source, bus)
	defer first.Close()
	defer second.Close()

	first.Mount(context.Background())

	err := first.Mutate(context.Background(),
		nil,
		func(ctx context.Context) ([]string, error) { return []string{"a", "b"}, nil })
	if err != nil {
		t.Fatalf("mutate: %v", err)
	}

	snap := second.Snapshot()
	if snap.State != StateReady {
		t.Fatalf("second instance state = %q, want %q", snap.State, StateReady)
	}
	if len(snap.Data) != 2 {
		t.Fatalf("second instance data = %v, want broadcast collection", snap.Data)
	}
}

func TestHookCloseDetachesFromBus(t *testing.T) {
	t.Parallel()

	store := testStore(t)
	bus := NewBroadcast[[]string]()
	hook := NewHook(testPolicy(), store, Source[[]string]{}, bus)
	hook.Close()

	bus.Publish([]string{"a"})

	if hook.Snapshot().HasData {
		t.Fatal("closed hook should not receive broadcasts")
	}
}
