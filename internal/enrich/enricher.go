// Package enrich attaches horse, jockey, and trainer statistics to
// already-fetched race entries, deduplicating entity lookups and bounding
// concurrency to respect the provider's rate limits.
package enrich

import (
	"context"
	"errors"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/sadewadee/kra-collector/internal/cache"
	"github.com/sadewadee/kra-collector/internal/domain"
)

// DefaultConcurrency is deliberately conservative; every cache miss turns
// into a provider call.
const DefaultConcurrency = 3

// errNoDetail marks an entity the provider knows nothing about. It is
// never cached and never surfaces: the entry simply stays unenriched.
var errNoDetail = errors.New("no detail available")

type entityKind int

const (
	kindHorse entityKind = iota
	kindJockey
	kindTrainer
)

type lookup struct {
	kind entityKind
	id   string
}

// Enricher resolves entity details through the cache store with bounded
// concurrency.
type Enricher struct {
	store       *cache.Store
	client      domain.RaceDataClient
	concurrency int
}

// New creates an Enricher. A non-positive concurrency selects the default.
func New(store *cache.Store, client domain.RaceDataClient, concurrency int) *Enricher {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	return &Enricher{
		store:       store,
		client:      client,
		concurrency: concurrency,
	}
}

// EnrichRace resolves every unique horse/jockey/trainer id referenced by
// the entries and attaches the details. A failed lookup leaves that
// entity's detail nil; it never aborts the batch. When forceRefresh is
// set, cached details are deleted before resolution so the lookup
// recomputes. Progress is reported as (completed, total) after each
// concurrency window.
func (e *Enricher) EnrichRace(ctx context.Context, entries []domain.RaceEntry, forceRefresh bool, onProgress func(completed, total int)) []domain.EnrichedEntry {
	lookups := dedupeLookups(entries)

	var (
		mu       sync.Mutex
		horses   = make(map[string]*domain.HorseDetail)
		jockeys  = make(map[string]*domain.JockeyDetail)
		trainers = make(map[string]*domain.TrainerDetail)
	)

	completed := 0

	for start := 0; start < len(lookups); start += e.concurrency {
		end := min(start+e.concurrency, len(lookups))
		window := lookups[start:end]

		g, gctx := errgroup.WithContext(ctx)

		for _, lk := range window {
			lk := lk
			g.Go(func() error {
				switch lk.kind {
				case kindHorse:
					d := resolve[domain.HorseDetail](gctx, e, cache.KeyHorseDetail, lk.id, forceRefresh, e.client.HorseDetail)
					mu.Lock()
					horses[lk.id] = d
					mu.Unlock()
				case kindJockey:
					d := resolve[domain.JockeyDetail](gctx, e, cache.KeyJockeyDetail, lk.id, forceRefresh, e.client.JockeyDetail)
					mu.Lock()
					jockeys[lk.id] = d
					mu.Unlock()
				case kindTrainer:
					d := resolve[domain.TrainerDetail](gctx, e, cache.KeyTrainerDetail, lk.id, forceRefresh, e.client.TrainerDetail)
					mu.Lock()
					trainers[lk.id] = d
					mu.Unlock()
				}

				return nil
			})
		}

		_ = g.Wait()

		completed += len(window)
		if onProgress != nil {
			onProgress(completed, len(lookups))
		}
	}

	enriched := make([]domain.EnrichedEntry, 0, len(entries))
	for _, entry := range entries {
		enriched = append(enriched, domain.EnrichedEntry{
			RaceEntry: entry,
			Horse:     horses[entry.HorseID],
			Jockey:    jockeys[entry.JockeyID],
			Trainer:   trainers[entry.TrainerID],
		})
	}

	return enriched
}

// resolve fetches one entity detail through the cache. Lookup failures and
// unknown entities both yield nil.
func resolve[T any](ctx context.Context, e *Enricher, typ cache.KeyType, id string, forceRefresh bool, fetch func(context.Context, string) (*T, error)) *T {
	params := map[string]string{"id": id}

	if forceRefresh {
		e.store.Delete(ctx, typ, params)
	}

	var detail T

	err := e.store.GetOrSet(ctx, typ, params, &detail, 0, func(ctx context.Context) (any, error) {
		d, err := fetch(ctx, id)
		if err != nil {
			return nil, err
		}

		if d == nil {
			return nil, errNoDetail
		}

		return d, nil
	})
	if err != nil {
		if !errors.Is(err, errNoDetail) {
			log.Printf("enrich: %s lookup for %s failed: %v", typ, id, err)
		}

		return nil
	}

	return &detail
}

// dedupeLookups collects the unique entity ids referenced by the entries,
// preserving first-seen order.
func dedupeLookups(entries []domain.RaceEntry) []lookup {
	seen := make(map[lookup]struct{})
	lookups := make([]lookup, 0, len(entries)*3)

	add := func(kind entityKind, id string) {
		if id == "" {
			return
		}

		lk := lookup{kind: kind, id: id}
		if _, ok := seen[lk]; ok {
			return
		}

		seen[lk] = struct{}{}
		lookups = append(lookups, lk)
	}

	for _, e := range entries {
		add(kindHorse, e.HorseID)
		add(kindJockey, e.JockeyID)
		add(kindTrainer, e.TrainerID)
	}

	return lookups
}
