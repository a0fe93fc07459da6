package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

// envelope is the stored representation of one cache entry. The logical
// key travels with the payload so the file tier can clear by type even
// though its filenames are hashes.
type envelope struct {
	Key       string          `json:"key"`
	CreatedAt time.Time       `json:"created_at"`
	ExpiresAt time.Time       `json:"expires_at"`
	Data      json.RawMessage `json:"data"`
}

// Stats reports cache effectiveness counters for one Store instance.
type Stats struct {
	Hits            uint64  `json:"hits"`
	Misses          uint64  `json:"misses"`
	HitRate         float64 `json:"hit_rate"`
	TotalOperations uint64  `json:"total_operations"`
}

// Store is the two-tier cache. Reads try the primary tier first and fall
// back to the durable tier, backfilling the primary on a durable hit.
// Writes go to both tiers concurrently. Tier failures degrade to misses.
type Store struct {
	primary Tier
	durable Tier

	mu     sync.Mutex
	hits   uint64
	misses uint64
}

// NewStore creates a Store over a primary and a durable tier.
func NewStore(primary, durable Tier) *Store {
	return &Store{
		primary: primary,
		durable: durable,
	}
}

// Get retrieves a value into dest and reports whether it was found.
// It never returns an error: expired entries are evicted and counted as
// misses, and internal tier failures degrade silently to misses.
func (s *Store) Get(ctx context.Context, typ KeyType, params map[string]string, dest any) bool {
	key := BuildKey(typ, params)

	if env, ok := s.lookup(ctx, s.primary, "primary", key); ok {
		if err := json.Unmarshal(env.Data, dest); err == nil {
			s.count(true)

			return true
		}

		log.Printf("cache: primary entry for %s does not decode, evicting", key)
		_ = s.primary.Delete(ctx, key)
	}

	if env, ok := s.lookup(ctx, s.durable, "durable", key); ok {
		if err := json.Unmarshal(env.Data, dest); err == nil {
			s.repair(ctx, key, env)
			s.count(true)

			return true
		}

		log.Printf("cache: durable entry for %s does not decode, evicting", key)
		_ = s.durable.Delete(ctx, key)
	}

	s.count(false)

	return false
}

// lookup fetches and decodes one tier's entry, evicting expired values.
func (s *Store) lookup(ctx context.Context, tier Tier, name, key string) (*envelope, bool) {
	raw, err := tier.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			log.Printf("cache: %s tier get %s failed: %v", name, key, err)
		}

		return nil, false
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		log.Printf("cache: %s tier entry %s is corrupt: %v", name, key, err)
		_ = tier.Delete(ctx, key)

		return nil, false
	}

	if time.Now().After(env.ExpiresAt) {
		_ = tier.Delete(ctx, key)

		return nil, false
	}

	return &env, true
}

// repair backfills the primary tier after a durable-tier hit so the next
// read is fast. Best effort.
func (s *Store) repair(ctx context.Context, key string, env *envelope) {
	remaining := time.Until(env.ExpiresAt)
	if remaining <= 0 {
		return
	}

	raw, err := json.Marshal(env)
	if err != nil {
		return
	}

	if err := s.primary.Set(ctx, key, raw, remaining); err != nil {
		log.Printf("cache: read-repair of %s failed: %v", key, err)
	}
}

// Set stores a value in both tiers concurrently. A failure in one tier is
// logged and does not block the other. A non-positive ttl selects the key
// type's default.
func (s *Store) Set(ctx context.Context, typ KeyType, params map[string]string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache: encode value: %w", err)
	}

	if ttl <= 0 {
		ttl = typ.DefaultTTL()
	}

	key := BuildKey(typ, params)
	now := time.Now()

	raw, err := json.Marshal(envelope{
		Key:       key,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
		Data:      data,
	})
	if err != nil {
		return fmt.Errorf("cache: encode envelope: %w", err)
	}

	var wg sync.WaitGroup

	for _, t := range []struct {
		name string
		tier Tier
	}{{"primary", s.primary}, {"durable", s.durable}} {
		t := t
		wg.Add(1)

		go func() {
			defer wg.Done()

			if err := t.tier.Set(ctx, key, raw, ttl); err != nil {
				log.Printf("cache: %s tier set %s failed: %v", t.name, key, err)
			}
		}()
	}

	wg.Wait()

	return nil
}

// Delete removes a value from both tiers. Absence is success.
func (s *Store) Delete(ctx context.Context, typ KeyType, params map[string]string) {
	key := BuildKey(typ, params)

	if err := s.primary.Delete(ctx, key); err != nil {
		log.Printf("cache: primary tier delete %s failed: %v", key, err)
	}

	if err := s.durable.Delete(ctx, key); err != nil {
		log.Printf("cache: durable tier delete %s failed: %v", key, err)
	}
}

// Clear removes every entry of one key type from both tiers.
func (s *Store) Clear(ctx context.Context, typ KeyType) {
	prefix := typ.Prefix()

	if err := s.primary.Clear(ctx, prefix); err != nil {
		log.Printf("cache: primary tier clear %s failed: %v", prefix, err)
	}

	if err := s.durable.Clear(ctx, prefix); err != nil {
		log.Printf("cache: durable tier clear %s failed: %v", prefix, err)
	}
}

// Exists reports whether a live entry is present in either tier without
// touching the hit/miss counters.
func (s *Store) Exists(ctx context.Context, typ KeyType, params map[string]string) bool {
	key := BuildKey(typ, params)

	if _, ok := s.lookup(ctx, s.primary, "primary", key); ok {
		return true
	}

	_, ok := s.lookup(ctx, s.durable, "durable", key)

	return ok
}

// GetOrSet returns the cached value or computes, caches, and returns a
// fresh one. No cross-process lock is taken: two concurrent misses for the
// same key may both invoke compute, which is accepted because compute is
// idempotent. dest receives the value either way.
func (s *Store) GetOrSet(ctx context.Context, typ KeyType, params map[string]string, dest any, ttl time.Duration, compute func(ctx context.Context) (any, error)) error {
	if s.Get(ctx, typ, params, dest) {
		return nil
	}

	v, err := compute(ctx)
	if err != nil {
		return err
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache: encode computed value: %w", err)
	}

	if err := s.Set(ctx, typ, params, v, ttl); err != nil {
		return err
	}

	return json.Unmarshal(data, dest)
}

func (s *Store) count(hit bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if hit {
		s.hits++
	} else {
		s.misses++
	}
}

// GetStats returns a snapshot of the hit/miss counters.
func (s *Store) GetStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := s.hits + s.misses

	st := Stats{
		Hits:            s.hits,
		Misses:          s.misses,
		TotalOperations: total,
	}

	if total > 0 {
		st.HitRate = float64(s.hits) / float64(total)
	}

	return st
}

// Close releases both tiers.
func (s *Store) Close() error {
	return errors.Join(s.primary.Close(), s.durable.Close())
}
