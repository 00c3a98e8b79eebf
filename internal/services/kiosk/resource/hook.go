// Package resource implements cache-first controllers for origin-backed
// collections.
//
// A hook serves cached data immediately when a valid copy exists,
// revalidates in the background once the fresh window elapses, falls back
// to stale data when the origin is unreachable, and applies mutations
// optimistically with rollback-by-reload. Nothing below this boundary
// surfaces errors to consumers: failures become state flags.
package resource

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/ppoulin/vitrine/internal/services/kiosk/cache"
)

// State is the hook lifecycle state.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateError   State = "error"
)

// transientErrMsg is the soft indicator shown when stale data is served
// because the origin could not be reached.
const transientErrMsg = "origin unreachable, showing cached data"

// Source provides the origin operations a hook needs.
type Source[T any] struct {
	// Fetch retrieves the full authoritative collection.
	Fetch func(ctx context.Context) (T, error)
	// LastModified probes the origin's newest change. ok is false when the
	// collection is empty or the origin cannot say.
	LastModified func(ctx context.Context) (time.Time, bool, error)
}

// Snapshot is a point-in-time copy of hook state for consumers.
type Snapshot[T any] struct {
	State      State
	Data       T
	HasData    bool
	Err        string
	Verifying  bool
	Saving     bool
	LastUpdate time.Time
}

// Hook orchestrates one cached collection.
type Hook[T any] struct {
	policy cache.Policy
	store  *cache.Store
	source Source[T]
	bus    *Broadcast[T]
	clock  func() time.Time

	mu          sync.Mutex
	state       State
	data        T
	hasData     bool
	errMsg      string
	loading     bool
	verifying   bool
	saving      bool
	lastUpdate  time.Time
	unsubscribe func()
}

// NewHook creates a hook in the Idle state and subscribes it to the bus.
func NewHook[T any](policy cache.Policy, store *cache.Store, source Source[T], bus *Broadcast[T]) *Hook[T] {
	h := &Hook[T]{
		policy: policy,
		store:  store,
		source: source,
		bus:    bus,
		clock:  time.Now,
		state:  StateIdle,
	}
	if bus != nil {
		h.unsubscribe = bus.Subscribe(h.resync)
	}
	return h
}

// SetClock overrides the time source. Test hook.
func (h *Hook[T]) SetClock(clock func() time.Time) {
	if clock != nil {
		h.clock = clock
	}
}

// Close detaches the hook from the bus.
func (h *Hook[T]) Close() {
	if h.unsubscribe != nil {
		h.unsubscribe()
	}
}

// Snapshot returns the current hook state.
func (h *Hook[T]) Snapshot() Snapshot[T] {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Snapshot[T]{
		State:      h.state,
		Data:       h.data,
		HasData:    h.hasData,
		Err:        h.errMsg,
		Verifying:  h.verifying,
		Saving:     h.saving,
		LastUpdate: h.lastUpdate,
	}
}

// Mount loads the collection on first use. A valid cached copy is served
// without blocking; a background revalidation is scheduled when the fresh
// window has elapsed. Concurrent mounts while a load is in flight are
// no-ops so rapid re-mounts cannot duplicate network calls.
func (h *Hook[T]) Mount(ctx context.Context) {
	h.mu.Lock()
	if h.loading || h.state == StateReady {
		h.mu.Unlock()
		return
	}
	h.loading = true
	h.state = StateLoading
	h.mu.Unlock()

	// Fallback copy survives even when Get evicts the entry below.
	envelope, found := h.store.Peek(h.policy.Key)

	if payload, needsCheck, ok := h.store.Get(h.policy); ok {
		var decoded T
		if err := json.Unmarshal(payload, &decoded); err == nil {
			h.mu.Lock()
			h.data = decoded
			h.hasData = true
			h.state = StateReady
			h.errMsg = ""
			h.loading = false
			h.mu.Unlock()
			if needsCheck {
				// The probe outlives the caller: a mount context tied to an
				// HTTP request is cancelled the moment the handler returns.
				go h.Revalidate(context.WithoutCancel(ctx))
			}
			return
		}
		// Undecodable payload is a schema problem the version tag missed.
		h.store.Remove(h.policy.Key)
	}

	var fallback T
	hasFallback := false
	if found && envelope.SchemaVersion == h.policy.SchemaVersion {
		if err := json.Unmarshal(envelope.Payload, &fallback); err == nil {
			hasFallback = true
		}
	}

	h.fetchAndFinish(ctx, fallback, hasFallback)
}

// Refresh forces a reload from origin, bypassing the cache read. The
// in-flight guard still applies.
func (h *Hook[T]) Refresh(ctx context.Context) {
	h.mu.Lock()
	if h.loading {
		h.mu.Unlock()
		return
	}
	h.loading = true
	if h.state != StateReady {
		h.state = StateLoading
	}
	fallback := h.data
	hasFallback := h.hasData
	h.mu.Unlock()

	h.fetchAndFinish(ctx, fallback, hasFallback)
}

func (h *Hook[T]) fetchAndFinish(ctx context.Context, fallback T, hasFallback bool) {
	result, err := h.source.Fetch(ctx)
	if err == nil {
		h.store.Set(h.policy, result)
		h.mu.Lock()
		h.data = result
		h.hasData = true
		h.state = StateReady
		h.errMsg = ""
		h.loading = false
		h.lastUpdate = h.clock()
		h.mu.Unlock()
		return
	}

	h.mu.Lock()
	h.loading = false
	if hasFallback {
		// Serve the last-known copy, however stale, with a soft indicator.
		h.data = fallback
		h.hasData = true
		h.state = StateReady
		h.errMsg = transientErrMsg
	} else {
		h.state = StateError
		h.errMsg = err.Error()
	}
	h.mu.Unlock()
}

// Revalidate performs the throttled background freshness check. The probe
// compares the origin's last-modified stamp against the cached write time:
// a newer origin invalidates the cache and triggers a full reload, an
// unchanged origin just advances the persisted verification stamp. The
// stamp lives in the envelope, so throttling survives process restarts.
func (h *Hook[T]) Revalidate(ctx context.Context) {
	h.mu.Lock()
	if h.verifying || h.loading || h.state != StateReady {
		h.mu.Unlock()
		return
	}
	h.verifying = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		h.verifying = false
		h.mu.Unlock()
	}()

	envelope, found := h.store.Peek(h.policy.Key)
	if !found {
		return
	}
	now := h.clock().UTC()
	if now.UnixMilli()-envelope.LastVerifiedAt < h.policy.FreshWindow.Milliseconds() {
		// Another instance checked recently.
		return
	}

	lastModified, ok, err := h.source.LastModified(ctx)
	if err != nil {
		h.mu.Lock()
		h.errMsg = transientErrMsg
		h.mu.Unlock()
		return
	}

	if ok && lastModified.UnixMilli() > envelope.WrittenAt {
		h.store.Remove(h.policy.Key)
		h.mu.Lock()
		h.verifying = false
		h.mu.Unlock()
		h.Refresh(ctx)
		return
	}

	h.store.MarkVerified(h.policy.Key)
	h.mu.Lock()
	h.errMsg = ""
	h.mu.Unlock()
}

// Mutate applies a local change optimistically, commits it against the
// origin, and reconciles. optimistic transforms the current collection for
// immediate display; commit performs the remote write and returns the
// authoritative collection. On failure the optimistic state is discarded
// and authoritative state is reloaded from origin.
func (h *Hook[T]) Mutate(ctx context.Context, optimistic func(T) T, commit func(ctx context.Context) (T, error)) error {
	h.mu.Lock()
	previousState := h.state
	previousData := h.data
	previousHasData := h.hasData
	h.saving = true
	if optimistic != nil {
		h.data = optimistic(h.data)
		h.hasData = true
	}
	optimisticData := h.data
	h.mu.Unlock()

	if h.bus != nil {
		h.bus.Publish(optimisticData)
	}

	committed, err := commit(ctx)
	if err != nil {
		// Rollback by reload: discard local state, refetch authoritative.
		// When the refetch fails too, the pre-mutation snapshot comes back
		// so the optimistic change never survives a failed commit.
		reloaded, fetchErr := h.source.Fetch(ctx)
		h.mu.Lock()
		h.saving = false
		if fetchErr == nil {
			h.data = reloaded
			h.hasData = true
			h.state = StateReady
		} else {
			h.data = previousData
			h.hasData = previousHasData
			h.state = previousState
		}
		h.errMsg = err.Error()
		rolledBack := h.data
		h.mu.Unlock()
		if fetchErr == nil {
			h.store.Set(h.policy, reloaded)
		}
		if h.bus != nil {
			h.bus.Publish(rolledBack)
		}
		return err
	}

	h.store.Set(h.policy, committed)
	h.mu.Lock()
	h.saving = false
	h.data = committed
	h.hasData = true
	h.state = StateReady
	h.errMsg = ""
	h.lastUpdate = h.clock()
	h.mu.Unlock()

	if h.bus != nil {
		h.bus.Publish(committed)
	}
	return nil
}

// resync adopts a collection broadcast by a sibling hook instance.
func (h *Hook[T]) resync(value T) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.data = value
	h.hasData = true
	if h.state == StateIdle || h.state == StateError {
		h.state = StateReady
		h.errMsg = ""
	}
	h.lastUpdate = h.clock()
}
