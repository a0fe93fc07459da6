package collector

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sadewadee/kra-collector/internal/domain"
)

// DefaultBatchConcurrency is used when a batch request leaves the bound
// unset.
const DefaultBatchConcurrency = 3

// raceRef is one concrete (date, meet, raceNo) a batch expands to.
type raceRef struct {
	date   string
	meet   domain.Meet
	raceNo int
}

// expandBatch turns the request into concrete race references: every
// calendar day in range × every requested meet × the fixed candidate race
// number range. Per-day race counts are not queried in advance, so "not
// found" for a high race number is an expected skip.
func expandBatch(req domain.BatchCollectionRequest) []raceRef {
	start, _ := parseDate(req.StartDate)
	end, _ := parseDate(req.EndDate)

	meets := req.Meets
	if len(meets) == 0 {
		meets = domain.AllMeets()
	}

	var refs []raceRef

	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		date := day.Format("20060102")

		for _, meet := range meets {
			for raceNo := domain.MinRaceNo; raceNo <= domain.MaxRaceNo; raceNo++ {
				refs = append(refs, raceRef{date: date, meet: meet, raceNo: raceNo})
			}
		}
	}

	return refs
}

// CollectBatch collects a date range in fixed-size concurrency windows.
// Each window is fully awaited before the next starts, and one member's
// failure never cancels its siblings. The call returns normally even when
// individual races fail; callers inspect the summary.
func (c *Collector) CollectBatch(ctx context.Context, req domain.BatchCollectionRequest, onProgress domain.ProgressFunc) (*domain.BatchCollectionResult, error) {
	if err := validateBatch(req); err != nil {
		return nil, err
	}

	concurrency := req.Concurrency
	if concurrency == 0 {
		concurrency = DefaultBatchConcurrency
	}

	refs := expandBatch(req)
	startTime := time.Now()

	outcomes := make([]domain.RaceOutcome, len(refs))

	var mu sync.Mutex

	for start := 0; start < len(refs); start += concurrency {
		end := min(start+concurrency, len(refs))

		g, gctx := errgroup.WithContext(ctx)

		for i := start; i < end; i++ {
			i := i
			ref := refs[i]

			g.Go(func() error {
				outcome := c.collectOne(gctx, ref, req)

				mu.Lock()
				outcomes[i] = outcome
				mu.Unlock()

				return nil
			})
		}

		_ = g.Wait()

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if onProgress != nil {
			done := end
			elapsed := time.Since(startTime)

			var eta time.Duration
			if done > 0 {
				eta = elapsed / time.Duration(done) * time.Duration(len(refs)-done)
			}

			last := refs[end-1]

			onProgress(domain.Progress{
				Operation:              "Collecting batch",
				Progress:               100 * done / len(refs),
				CurrentRace:            raceLabel(last.date, last.meet, last.raceNo),
				EstimatedTimeRemaining: eta,
				StartTime:              startTime,
			})
		}
	}

	result := &domain.BatchCollectionResult{
		Summary: domain.BatchSummary{
			BatchID:        uuid.New(),
			TotalRequested: len(refs),
			Duration:       time.Since(startTime),
		},
		Results: outcomes,
	}

	for _, outcome := range outcomes {
		switch outcome.Status {
		case domain.OutcomeSuccess:
			result.Summary.TotalCollected++
		case domain.OutcomeFailed:
			result.Summary.TotalFailed++
			result.Errors = append(result.Errors, raceLabel(outcome.Date, outcome.Meet, outcome.RaceNo)+": "+outcome.Error)
		case domain.OutcomeSkipped:
			result.Summary.TotalSkipped++
		}
	}

	return result, nil
}

// collectOne runs a single batch member and folds its result into an
// outcome record. Errors degrade the member, never the batch.
func (c *Collector) collectOne(ctx context.Context, ref raceRef, req domain.BatchCollectionRequest) domain.RaceOutcome {
	outcome := domain.RaceOutcome{
		Date:   ref.date,
		RaceNo: ref.raceNo,
		Meet:   ref.meet,
	}

	data, err := c.CollectRace(ctx, domain.CollectionRequest{
		Date:         ref.date,
		RaceNo:       ref.raceNo,
		Meet:         ref.meet,
		EnrichData:   req.EnrichData,
		ForceRefresh: req.ForceRefresh,
	}, Options{UseCache: !req.ForceRefresh}, nil)

	switch {
	case err == nil:
		outcome.Status = domain.OutcomeSuccess
		if raw, merr := json.Marshal(data); merr == nil {
			outcome.DataSize = len(raw)
		}
	case domain.IsNotFound(err):
		outcome.Status = domain.OutcomeSkipped
	default:
		outcome.Status = domain.OutcomeFailed
		outcome.Error = err.Error()
	}

	return outcome
}
