// Package cache provides a two-tier, TTL-bound cache for collected race
// data: a fast primary tier (in-memory or Redis) backed by a durable
// filesystem tier. Tier failures degrade to cache misses, never errors.
package cache

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"
)

// ErrCacheMiss is returned by a tier when a key is absent or expired.
var ErrCacheMiss = errors.New("cache miss")

// KeyType identifies the semantic category of a cached value. Each type
// owns a key prefix and a default TTL.
type KeyType string

const (
	KeyRaceResult    KeyType = "race_result"
	KeyHorseDetail   KeyType = "horse_detail"
	KeyJockeyDetail  KeyType = "jockey_detail"
	KeyTrainerDetail KeyType = "trainer_detail"
	KeyEnrichedRace  KeyType = "enriched_race"
	KeyAPIResponse   KeyType = "api_response"
)

// TTL configuration per key type. Entity details change rarely; race
// results are immutable once published but kept bounded anyway.
const (
	TTLRaceResult   = 24 * time.Hour
	TTLEntityDetail = 7 * 24 * time.Hour
	TTLEnrichedRace = 24 * time.Hour
	TTLAPIResponse  = time.Hour
)

// Prefix returns the key prefix for this type.
func (t KeyType) Prefix() string {
	return string(t) + ":"
}

// DefaultTTL returns the configured TTL for this type.
func (t KeyType) DefaultTTL() time.Duration {
	switch t {
	case KeyHorseDetail, KeyJockeyDetail, KeyTrainerDetail:
		return TTLEntityDetail
	case KeyAPIResponse:
		return TTLAPIResponse
	case KeyEnrichedRace:
		return TTLEnrichedRace
	default:
		return TTLRaceResult
	}
}

// BuildKey derives the canonical cache key for a type and parameter set.
// Parameter names are sorted, so two maps equal as (name, value) pairs
// always produce byte-identical keys.
func BuildKey(typ KeyType, params map[string]string) string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}

	sort.Strings(names)

	var b strings.Builder
	b.WriteString(typ.Prefix())

	for i, name := range names {
		if i > 0 {
			b.WriteByte(':')
		}

		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(params[name])
	}

	return b.String()
}

// Tier is a single cache layer. Values are opaque envelope bytes produced
// by Store; the file tier additionally decodes them to recover the logical
// key during Clear.
type Tier interface {
	// Get retrieves a value. Returns ErrCacheMiss when absent or expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with a TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value. Absence is not an error.
	Delete(ctx context.Context, key string) error

	// Clear removes every value whose logical key has the prefix.
	Clear(ctx context.Context, prefix string) error

	// Close releases tier resources.
	Close() error
}
