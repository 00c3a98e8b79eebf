// Package cache persists origin payloads locally with freshness metadata.
//
// The cache is a disposable projection of the origin: every failure path
// degrades to a cache miss and nothing here is a correctness dependency.
package cache

import (
	"encoding/hex"
	"encoding/json"
	"time"

	"lukechampine.com/blake3"
)

// checksumBytes truncates the BLAKE3 digest stored in envelopes.
const checksumBytes = 8

// Envelope wraps a cached payload with the metadata needed for validity
// and freshness checks.
type Envelope struct {
	Payload        json.RawMessage `json:"data"`
	WrittenAt      int64           `json:"timestamp"`
	SchemaVersion  string          `json:"version"`
	Checksum       string          `json:"checksum"`
	LastVerifiedAt int64           `json:"lastCheck"`
}

// Checksum fingerprints a payload for no-op revalidation detection.
func Checksum(payload []byte) string {
	sum := blake3.Sum256(payload)
	return hex.EncodeToString(sum[:checksumBytes])
}

// Policy is the static freshness configuration for one resource kind.
type Policy struct {
	// Key namespaces the envelope in the store.
	Key string
	// MaxAge is the hard expiry: older entries are treated as a miss.
	MaxAge time.Duration
	// FreshWindow is the duration after which a valid entry still needs a
	// background re-check against origin.
	FreshWindow time.Duration
	// SchemaVersion invalidates entries written by incompatible code.
	SchemaVersion string
}

// Policies per resource kind. Images change least often, products most.
var (
	PolicyProducts = Policy{
		Key:           "products",
		MaxAge:        24 * time.Hour,
		FreshWindow:   2 * time.Hour,
		SchemaVersion: "v1",
	}
	PolicyWeeklyPDFs = Policy{
		Key:           "weekly_pdfs",
		MaxAge:        72 * time.Hour,
		FreshWindow:   6 * time.Hour,
		SchemaVersion: "v1",
	}
	PolicyImages = Policy{
		Key:           "images",
		MaxAge:        7 * 24 * time.Hour,
		FreshWindow:   24 * time.Hour,
		SchemaVersion: "v1",
	}
)

// Valid reports whether the envelope may be served at all: within MaxAge
// and written by a matching schema version.
func (p Policy) Valid(e Envelope, now time.Time) bool {
	if e.SchemaVersion != p.SchemaVersion {
		return false
	}
	age := now.UnixMilli() - e.WrittenAt
	return age >= 0 && age < p.MaxAge.Milliseconds()
}

// Fresh reports whether the envelope can skip the origin check entirely.
func (p Policy) Fresh(e Envelope, now time.Time) bool {
	if !p.Valid(e, now) {
		return false
	}
	return now.UnixMilli()-e.LastVerifiedAt < p.FreshWindow.Milliseconds()
}
