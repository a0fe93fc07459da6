// Package collector is the top-level collection API: one race, a full
// day, or a date-range batch. It coordinates cache-first reads, provider
// fetches, optional enrichment, cache writes, and progress reporting.
package collector

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/sadewadee/kra-collector/internal/cache"
	"github.com/sadewadee/kra-collector/internal/domain"
	"github.com/sadewadee/kra-collector/internal/enrich"
)

const dataSourceName = "kra-api"

// Options controls single-race collection behavior.
type Options struct {
	// UseCache enables the cache-first read. Cache writes happen
	// regardless so later reads benefit.
	UseCache bool
}

// Collector coordinates the collection pipeline.
type Collector struct {
	store    *cache.Store
	client   domain.RaceDataClient
	enricher *enrich.Enricher
}

// New creates a Collector.
func New(store *cache.Store, client domain.RaceDataClient, enricher *enrich.Enricher) *Collector {
	return &Collector{
		store:    store,
		client:   client,
		enricher: enricher,
	}
}

func raceParams(date string, meet domain.Meet, raceNo int) map[string]string {
	return map[string]string{
		"date":    date,
		"meet":    string(meet),
		"race_no": strconv.Itoa(raceNo),
	}
}

func raceLabel(date string, meet domain.Meet, raceNo int) string {
	return fmt.Sprintf("%s %s R%d", date, meet, raceNo)
}

// CollectRace collects one race: cache check, fetch, optional enrichment,
// cache write. Progress milestones are reported monotonically through
// onProgress. A race the provider has no data for raises NotFoundError.
func (c *Collector) CollectRace(ctx context.Context, req domain.CollectionRequest, opts Options, onProgress domain.ProgressFunc) (*domain.CollectedRaceData, error) {
	if err := validateCollection(req); err != nil {
		return nil, err
	}

	startTime := time.Now()
	label := raceLabel(req.Date, req.Meet, req.RaceNo)
	params := raceParams(req.Date, req.Meet, req.RaceNo)

	report := func(operation string, progress int) {
		if onProgress != nil {
			onProgress(domain.Progress{
				Operation:   operation,
				Progress:    progress,
				CurrentRace: label,
				StartTime:   startTime,
			})
		}
	}

	report("Checking cache", 5)

	if opts.UseCache && !req.ForceRefresh {
		var data domain.CollectedRaceData
		if c.store.Get(ctx, cache.KeyRaceResult, params, &data) {
			report("Completed (from cache)", 100)

			return &data, nil
		}
	}

	report("Fetching race result", 20)

	entries, err := c.client.RaceResult(ctx, req.Date, req.Meet, req.RaceNo)
	if err != nil {
		var apiErr *domain.ExternalAPIError
		if errors.As(err, &apiErr) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}

		return nil, domain.NewAppError("race collection failed", err, map[string]any{
			"date":    req.Date,
			"meet":    string(req.Meet),
			"race_no": req.RaceNo,
		})
	}

	if len(entries) == 0 {
		return nil, &domain.NotFoundError{Resource: "race", Key: label}
	}

	report("Building result", 50)

	first := entries[0]
	data := &domain.CollectedRaceData{
		RaceInfo: domain.RaceInfo{
			Date:        req.Date,
			Meet:        req.Meet,
			RaceNo:      req.RaceNo,
			Name:        first.RaceName,
			Distance:    first.Distance,
			Track:       first.Track,
			Weather:     first.Weather,
			TotalHorses: len(entries),
		},
		CollectionMeta: domain.CollectionMeta{
			CollectedAt: time.Now(),
			IsEnriched:  false,
			DataSource:  dataSourceName,
		},
	}

	if req.EnrichData {
		report("Enriching entries", 60)

		data.RaceResult = c.enricher.EnrichRace(ctx, entries, req.ForceRefresh, func(completed, total int) {
			if total == 0 {
				return
			}
			// Enrichment spans the 60..90 progress band.
			report("Enriching entries", 60+30*completed/total)
		})
		data.CollectionMeta.IsEnriched = true
	} else {
		data.RaceResult = make([]domain.EnrichedEntry, 0, len(entries))
		for _, entry := range entries {
			data.RaceResult = append(data.RaceResult, domain.EnrichedEntry{RaceEntry: entry})
		}
	}

	report("Writing cache", 95)

	if err := c.store.Set(ctx, cache.KeyRaceResult, params, data, 0); err != nil {
		log.Printf("collector: cache write for %s failed: %v", label, err)
	}

	report("Completed", 100)

	return data, nil
}

// CollectDay sequentially collects every race of one day. When meet is
// empty, all venues are covered. A single race's failure is logged and
// skipped; "no data" for a race number past the day's schedule is the
// expected stop condition, not an error.
func (c *Collector) CollectDay(ctx context.Context, date string, meet domain.Meet, enrichData bool, opts Options, onProgress domain.ProgressFunc) ([]*domain.CollectedRaceData, error) {
	if err := validateDay(date, meet); err != nil {
		return nil, err
	}

	meets := []domain.Meet{meet}
	if meet == "" {
		meets = domain.AllMeets()
	}

	startTime := time.Now()

	var collected []*domain.CollectedRaceData

	total := len(meets) * domain.MaxRaceNo
	done := 0

	for _, m := range meets {
		for raceNo := domain.MinRaceNo; raceNo <= domain.MaxRaceNo; raceNo++ {
			req := domain.CollectionRequest{
				Date:       date,
				RaceNo:     raceNo,
				Meet:       m,
				EnrichData: enrichData,
			}

			data, err := c.CollectRace(ctx, req, opts, nil)

			done++

			if onProgress != nil {
				onProgress(domain.Progress{
					Operation:   "Collecting day",
					Progress:    100 * done / total,
					CurrentRace: raceLabel(date, m, raceNo),
					StartTime:   startTime,
				})
			}

			if err != nil {
				if domain.IsNotFound(err) {
					continue
				}

				if ctx.Err() != nil {
					return collected, ctx.Err()
				}

				log.Printf("collector: %s failed, skipping: %v", raceLabel(date, m, raceNo), err)

				continue
			}

			collected = append(collected, data)
		}
	}

	return collected, nil
}
