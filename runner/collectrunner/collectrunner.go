// Package collectrunner wires the cache tiers, provider client, and
// collector together and drives one collection run from the CLI flags.
package collectrunner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/sadewadee/kra-collector/internal/cache"
	"github.com/sadewadee/kra-collector/internal/collector"
	"github.com/sadewadee/kra-collector/internal/domain"
	"github.com/sadewadee/kra-collector/internal/enrich"
	"github.com/sadewadee/kra-collector/internal/kra"
	"github.com/sadewadee/kra-collector/runner"
	"github.com/sadewadee/kra-collector/tlmt"
)

type collectRunner struct {
	cfg   *runner.Config
	store *cache.Store
	coll  *collector.Collector
}

// New builds the collection pipeline from the configuration. The primary
// cache tier is Redis when an address is configured, in-memory otherwise;
// the durable tier is always the filesystem.
func New(cfg *runner.Config) (runner.Runner, error) {
	var primary cache.Tier

	if cfg.RedisAddr != "" {
		redisTier, err := cache.NewRedisTier(cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPass,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, err
		}

		primary = redisTier
	} else {
		primary = cache.NewMemoryTier()
	}

	durable, err := cache.NewFileTier(cfg.CacheDir)
	if err != nil {
		return nil, err
	}

	store := cache.NewStore(primary, durable)

	client := kra.New(kra.Config{
		BaseURL:       cfg.APIBaseURL,
		ServiceKey:    cfg.ServiceKey,
		Timeout:       cfg.RequestTimeout,
		RetryAttempts: cfg.RetryAttempts,
		RetryDelay:    cfg.RetryDelay,
	})

	enricher := enrich.New(store, client, enrich.DefaultConcurrency)

	return &collectRunner{
		cfg:   cfg,
		store: store,
		coll:  collector.New(store, client, enricher),
	}, nil
}

func (r *collectRunner) Run(ctx context.Context) error {
	start := time.Now()
	opts := collector.Options{UseCache: !r.cfg.NoCache}

	onProgress := func(p domain.Progress) {
		log.Printf("%s: %d%% (%s)", p.Operation, p.Progress, p.CurrentRace)
	}

	var (
		output    any
		mode      string
		collected int
		err       error
	)

	switch {
	case r.cfg.StartDate != "" && r.cfg.EndDate != "":
		mode = "batch"

		var result *domain.BatchCollectionResult

		result, err = r.coll.CollectBatch(ctx, domain.BatchCollectionRequest{
			StartDate:    r.cfg.StartDate,
			EndDate:      r.cfg.EndDate,
			Meets:        r.meets(),
			EnrichData:   r.cfg.Enrich,
			Concurrency:  r.cfg.Concurrency,
			ForceRefresh: r.cfg.ForceRefresh,
		}, onProgress)
		if result != nil {
			output = result
			collected = result.Summary.TotalCollected
		}

	case r.cfg.Date != "" && r.cfg.RaceNo > 0:
		mode = "race"

		var data *domain.CollectedRaceData

		data, err = r.coll.CollectRace(ctx, domain.CollectionRequest{
			Date:         r.cfg.Date,
			RaceNo:       r.cfg.RaceNo,
			Meet:         domain.Meet(r.cfg.Meet),
			EnrichData:   r.cfg.Enrich,
			ForceRefresh: r.cfg.ForceRefresh,
		}, opts, onProgress)
		if data != nil {
			output = data
			collected = 1
		}

	case r.cfg.Date != "":
		mode = "day"

		var races []*domain.CollectedRaceData

		races, err = r.coll.CollectDay(ctx, r.cfg.Date, domain.Meet(r.cfg.Meet), r.cfg.Enrich, opts, onProgress)
		if races != nil {
			output = races
			collected = len(races)
		}

	default:
		return errors.New("no collection target: provide -date or -start-date/-end-date")
	}

	if err != nil {
		return err
	}

	if !r.cfg.DisableTelemetry {
		_ = runner.Telemetry().Send(ctx, tlmt.NewEvent("collect", map[string]any{
			"mode":        mode,
			"collected":   collected,
			"duration_ms": time.Since(start).Milliseconds(),
		}))
	}

	stats := r.store.GetStats()
	log.Printf("cache: %d hits, %d misses (%.0f%% hit rate)", stats.Hits, stats.Misses, stats.HitRate*100)

	return r.write(output)
}

func (r *collectRunner) meets() []domain.Meet {
	if r.cfg.Meet == "" {
		return nil
	}

	return []domain.Meet{domain.Meet(r.cfg.Meet)}
}

func (r *collectRunner) write(output any) error {
	raw, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}

	raw = append(raw, '\n')

	if r.cfg.ResultsFile == "stdout" {
		_, err = os.Stdout.Write(raw)

		return err
	}

	return os.WriteFile(r.cfg.ResultsFile, raw, 0o644)
}

func (r *collectRunner) Close(context.Context) error {
	return r.store.Close()
}
