package cache

import (
	"encoding/json"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"
)

const envelopeBucket = "envelopes"

// Store provides a BoltDB-backed envelope store.
//
// All operations degrade silently: a failed read is a miss, a failed write
// is a no-op after one opportunistic GC sweep. Callers never see storage
// errors.
type Store struct {
	db    *bbolt.DB
	clock func() time.Time
}

// Open opens a BoltDB-backed cache store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("cache path is required")
	}

	cleanPath := filepath.Clean(path)
	db, err := bbolt.Open(cleanPath, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	store := &Store{db: db, clock: time.Now}
	if err := store.ensureBucket(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying BoltDB database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SetClock overrides the time source. Test hook.
func (s *Store) SetClock(clock func() time.Time) {
	if s != nil && clock != nil {
		s.clock = clock
	}
}

// Set wraps payload in a fresh envelope and persists it under the policy
// key. Serialization or storage failure is logged, triggers one GC sweep,
// and is otherwise ignored: the caller proceeds as if uncached.
func (s *Store) Set(policy Policy, payload any) {
	if s == nil || s.db == nil {
		return
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		log.Printf("cache: marshal %s payload: %v", policy.Key, err)
		return
	}

	now := s.clock().UTC().UnixMilli()
	envelope := Envelope{
		Payload:        raw,
		WrittenAt:      now,
		SchemaVersion:  policy.SchemaVersion,
		Checksum:       Checksum(raw),
		LastVerifiedAt: now,
	}
	encoded, err := json.Marshal(envelope)
	if err != nil {
		log.Printf("cache: marshal %s envelope: %v", policy.Key, err)
		return
	}

	if err := s.put(policy.Key, encoded); err != nil {
		log.Printf("cache: write %s: %v", policy.Key, err)
		s.GCOlderThan(policy.MaxAge)
		if err := s.put(policy.Key, encoded); err != nil {
			log.Printf("cache: write %s after sweep: %v", policy.Key, err)
		}
	}
}

// Get returns the cached payload for the policy key. ok is false on a miss:
// no entry, expired, schema mismatch, or corrupt (the last three also evict
// the entry). needsCheck is true when the fresh window has elapsed and the
// payload should be revalidated against origin in the background.
func (s *Store) Get(policy Policy) (payload json.RawMessage, needsCheck bool, ok bool) {
	envelope, found := s.load(policy.Key)
	if !found {
		return nil, false, false
	}

	now := s.clock().UTC()
	if !policy.Valid(envelope, now) {
		s.Remove(policy.Key)
		return nil, false, false
	}
	return envelope.Payload, !policy.Fresh(envelope, now), true
}

// MarkVerified moves the envelope's last-verified timestamp forward without
// rewriting payload or written-at. Used when a background check confirms the
// origin has not changed.
func (s *Store) MarkVerified(key string) {
	if s == nil || s.db == nil {
		return
	}

	envelope, found := s.load(key)
	if !found {
		return
	}
	envelope.LastVerifiedAt = s.clock().UTC().UnixMilli()

	encoded, err := json.Marshal(envelope)
	if err != nil {
		log.Printf("cache: marshal %s envelope: %v", key, err)
		return
	}
	if err := s.put(key, encoded); err != nil {
		log.Printf("cache: mark verified %s: %v", key, err)
	}
}

// Peek returns the raw envelope without validity checks or eviction.
// Resource hooks use it to keep a fallback copy before a refetch and to
// compare written-at against the origin's last-modified probe.
func (s *Store) Peek(key string) (Envelope, bool) {
	return s.load(key)
}

// Checksum returns the stored payload fingerprint for the key, or "" when
// no valid entry exists.
func (s *Store) Checksum(key string) string {
	envelope, found := s.load(key)
	if !found {
		return ""
	}
	return envelope.Checksum
}

// Remove evicts one entry. Used for write-through invalidation on mutation.
func (s *Store) Remove(key string) {
	if s == nil || s.db == nil {
		return
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(envelopeBucket))
		if bucket == nil {
			return nil
		}
		return bucket.Delete([]byte(key))
	})
	if err != nil {
		log.Printf("cache: remove %s: %v", key, err)
	}
}

// Clear evicts every entry in the namespace.
func (s *Store) Clear() {
	if s == nil || s.db == nil {
		return
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket([]byte(envelopeBucket)); err != nil {
			return err
		}
		_, err := tx.CreateBucket([]byte(envelopeBucket))
		return err
	})
	if err != nil {
		log.Printf("cache: clear: %v", err)
	}
}

// GCOlderThan sweeps every entry whose write predates the window,
// independent of per-key policy. Coarse safety net against unbounded
// growth, invoked opportunistically when a write fails.
func (s *Store) GCOlderThan(window time.Duration) int {
	if s == nil || s.db == nil {
		return 0
	}

	cutoff := s.clock().UTC().Add(-window).UnixMilli()
	removed := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(envelopeBucket))
		if bucket == nil {
			return nil
		}
		var stale [][]byte
		cursor := bucket.Cursor()
		for key, value := cursor.First(); key != nil; key, value = cursor.Next() {
			var envelope Envelope
			if err := json.Unmarshal(value, &envelope); err != nil || envelope.WrittenAt < cutoff {
				stale = append(stale, append([]byte(nil), key...))
			}
		}
		for _, key := range stale {
			if err := bucket.Delete(key); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		log.Printf("cache: gc sweep: %v", err)
	}
	return removed
}

func (s *Store) load(key string) (Envelope, bool) {
	if s == nil || s.db == nil {
		return Envelope{}, false
	}

	var raw []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(envelopeBucket))
		if bucket == nil {
			return nil
		}
		if value := bucket.Get([]byte(key)); value != nil {
			raw = append([]byte(nil), value...)
		}
		return nil
	})
	if err != nil {
		log.Printf("cache: read %s: %v", key, err)
		return Envelope{}, false
	}
	if raw == nil {
		return Envelope{}, false
	}

	var envelope Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		log.Printf("cache: corrupt entry %s, evicting: %v", key, err)
		s.Remove(key)
		return Envelope{}, false
	}
	return envelope, true
}

func (s *Store) put(key string, value []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(envelopeBucket))
		if bucket == nil {
			return fmt.Errorf("envelope bucket is missing")
		}
		return bucket.Put([]byte(key), value)
	})
}

func (s *Store) ensureBucket() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(envelopeBucket))
		if err != nil {
			return fmt.Errorf("create envelope bucket: %w", err)
		}
		return nil
	})
}
