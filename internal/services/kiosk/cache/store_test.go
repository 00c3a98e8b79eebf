package cache

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("open cache store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := Open(" "); err == nil {
		t.Fatal("expected empty path error")
	}
}

func TestSetGetRoundTripIsFreshlyVerified(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	policy := testPolicy()
	store.Set(policy, []string{"pen", "paper"})

	payload, needsCheck, ok := store.Get(policy)
	if !ok {
		t.Fatal("expected hit immediately after set")
	}
	if needsCheck {
		t.Fatal("expected freshly written entry to skip revalidation")
	}
	var items []string
	if err := json.Unmarshal(payload, &items); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if len(items) != 2 || items[0] != "pen" {
		t.Fatalf("payload = %v", items)
	}
}

func TestGetExpiredEvictsAndStaysAbsent(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	policy := testPolicy()

	writeTime := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return writeTime })
	store.Set(policy, "stale")

	// Clock jumps one millisecond past max age.
	store.SetClock(func() time.Time { return writeTime.Add(policy.MaxAge + time.Millisecond) })
	if _, _, ok := store.Get(policy); ok {
		t.Fatal("expected expired entry to miss")
	}
	// Eviction is idempotent: the stale bytes are gone.
	if _, found := store.Peek(policy.Key); found {
		t.Fatal("expected expired entry to be evicted")
	}
	if _, _, ok := store.Get(policy); ok {
		t.Fatal("expected repeat get to miss")
	}
}

func TestGetPastFreshWindowNeedsCheck(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	policy := testPolicy()

	writeTime := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return writeTime })
	store.Set(policy, "aging")

	store.SetClock(func() time.Time { return writeTime.Add(policy.FreshWindow + time.Minute) })
	payload, needsCheck, ok := store.Get(policy)
	if !ok || payload == nil {
		t.Fatal("expected valid entry past fresh window to hit")
	}
	if !needsCheck {
		t.Fatal("expected entry past fresh window to need a check")
	}
}

func TestGetSchemaMismatchEvicts(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	policy := testPolicy()
	store.Set(policy, "v1 payload")

	bumped := policy
	bumped.SchemaVersion = "v2"
	if _, _, ok := store.Get(bumped); ok {
		t.Fatal("expected schema mismatch to miss")
	}
	if _, found := store.Peek(policy.Key); found {
		t.Fatal("expected mismatched entry to be evicted")
	}
}

func TestMarkVerifiedKeepsPayloadAndWrittenAt(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	policy := testPolicy()

	writeTime := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return writeTime })
	store.Set(policy, "payload")

	before, found := store.Peek(policy.Key)
	if !found {
		t.Fatal("expected entry after set")
	}

	checkTime := writeTime.Add(30 * time.Minute)
	store.SetClock(func() time.Time { return checkTime })
	store.MarkVerified(policy.Key)

	after, found := store.Peek(policy.Key)
	if !found {
		t.Fatal("expected entry after mark verified")
	}
	if after.WrittenAt != before.WrittenAt {
		t.Fatal("expected written-at unchanged")
	}
	if string(after.Payload) != string(before.Payload) {
		t.Fatal("expected payload unchanged")
	}
	if after.LastVerifiedAt != checkTime.UnixMilli() {
		t.Fatalf("last verified = %d, want %d", after.LastVerifiedAt, checkTime.UnixMilli())
	}
}

func TestRemoveAndClear(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	products := testPolicy()
	pdfs := testPolicy()
	pdfs.Key = "pdfs"

	store.Set(products, "a")
	store.Set(pdfs, "b")

	store.Remove(products.Key)
	if _, _, ok := store.Get(products); ok {
		t.Fatal("expected removed entry to miss")
	}
	if _, _, ok := store.Get(pdfs); !ok {
		t.Fatal("expected sibling entry to survive remove")
	}

	store.Clear()
	if _, _, ok := store.Get(pdfs); ok {
		t.Fatal("expected cleared namespace to miss")
	}
}

func TestGCOlderThanSweepsByWriteTime(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	old := testPolicy()
	old.Key = "old"
	recent := testPolicy()
	recent.Key = "recent"

	base := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return base.Add(-48 * time.Hour) })
	store.Set(old, "ancient")
	store.SetClock(func() time.Time { return base })
	store.Set(recent, "new")

	removed := store.GCOlderThan(24 * time.Hour)
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, found := store.Peek("old"); found {
		t.Fatal("expected old entry swept")
	}
	if _, found := store.Peek("recent"); !found {
		t.Fatal("expected recent entry kept")
	}
}

func TestCorruptEntryTreatedAsMiss(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	policy := testPolicy()
	if err := store.put(policy.Key, []byte("{not json")); err != nil {
		t.Fatalf("seed corrupt entry: %v", err)
	}

	if _, _, ok := store.Get(policy); ok {
		t.Fatal("expected corrupt entry to miss")
	}
	if _, found := store.Peek(policy.Key); found {
		t.Fatal("expected corrupt entry to be evicted")
	}
}

func TestNilStoreDegradesSilently(t *testing.T) {
	t.Parallel()

	var store *Store
	policy := testPolicy()
	store.Set(policy, "ignored")
	if _, _, ok := store.Get(policy); ok {
		t.Fatal("expected nil store to miss")
	}
	store.MarkVerified(policy.Key)
	store.Remove(policy.Key)
	store.Clear()
	if removed := store.GCOlderThan(time.Hour); removed != 0 {
		t.Fatalf("removed = %d, want 0", removed)
	}
}
