package collector_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sadewadee/kra-collector/internal/cache"
	"github.com/sadewadee/kra-collector/internal/collector"
	"github.com/sadewadee/kra-collector/internal/domain"
	"github.com/sadewadee/kra-collector/internal/enrich"
)

// fakeClient serves canned race results keyed by (date, meet, raceNo) and
// counts provider calls so tests can distinguish cache hits from fetches.
type fakeClient struct {
	mu        sync.Mutex
	races     map[string][]domain.RaceEntry
	failRaces map[string]error
	raceCalls map[string]int
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		races:     make(map[string][]domain.RaceEntry),
		failRaces: make(map[string]error),
		raceCalls: make(map[string]int),
	}
}

func raceKey(date string, meet domain.Meet, raceNo int) string {
	return fmt.Sprintf("%s|%s|%d", date, meet, raceNo)
}

func (f *fakeClient) addRace(date string, meet domain.Meet, raceNo, horses int) {
	entries := make([]domain.RaceEntry, 0, horses)
	for i := 1; i <= horses; i++ {
		entries = append(entries, domain.RaceEntry{
			Date:      date,
			Meet:      meet,
			RaceNo:    raceNo,
			RaceName:  "테스트경주",
			Distance:  1200,
			Rank:      i,
			GateNo:    i,
			HorseID:   fmt.Sprintf("H%d-%d", raceNo, i),
			JockeyID:  fmt.Sprintf("J%d", i),
			TrainerID: "T1",
		})
	}

	f.races[raceKey(date, meet, raceNo)] = entries
}

func (f *fakeClient) calls(date string, meet domain.Meet, raceNo int) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.raceCalls[raceKey(date, meet, raceNo)]
}

func (f *fakeClient) RaceResult(_ context.Context, date string, meet domain.Meet, raceNo int) ([]domain.RaceEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := raceKey(date, meet, raceNo)
	f.raceCalls[key]++

	if err := f.failRaces[key]; err != nil {
		return nil, err
	}

	return f.races[key], nil
}

func (f *fakeClient) HorseDetail(_ context.Context, id string) (*domain.HorseDetail, error) {
	return &domain.HorseDetail{ID: id, Name: "horse-" + id}, nil
}

func (f *fakeClient) JockeyDetail(_ context.Context, id string) (*domain.JockeyDetail, error) {
	return &domain.JockeyDetail{ID: id, Name: "jockey-" + id}, nil
}

func (f *fakeClient) TrainerDetail(_ context.Context, id string) (*domain.TrainerDetail, error) {
	return &domain.TrainerDetail{ID: id, Name: "trainer-" + id}, nil
}

func newTestCollector(t *testing.T, client *fakeClient) *collector.Collector {
	t.Helper()

	file, err := cache.NewFileTier(t.TempDir())
	require.NoError(t, err)

	store := cache.NewStore(cache.NewMemoryTier(), file)
	t.Cleanup(func() { _ = store.Close() })

	return collector.New(store, client, enrich.New(store, client, 2))
}

func TestCollectRaceColdCache(t *testing.T) {
	client := newFakeClient()
	client.addRace("20241201", domain.MeetSeoul, 1, 8)

	c := newTestCollector(t, client)

	req := domain.CollectionRequest{Date: "20241201", RaceNo: 1, Meet: domain.MeetSeoul}

	data, err := c.CollectRace(context.Background(), req, collector.Options{UseCache: true}, nil)
	require.NoError(t, err)
	require.NotNil(t, data)

	assert.Equal(t, 1, client.calls("20241201", domain.MeetSeoul, 1))
	assert.Equal(t, "테스트경주", data.RaceInfo.Name)
	assert.Equal(t, 8, data.RaceInfo.TotalHorses)
	assert.Len(t, data.RaceResult, 8)
	assert.False(t, data.CollectionMeta.IsEnriched)
	assert.False(t, data.CollectionMeta.CollectedAt.IsZero())

	// Without enrichment every detail pointer stays nil.
	assert.Nil(t, data.RaceResult[0].Horse)
}

func TestCollectRaceServedFromCache(t *testing.T) {
	client := newFakeClient()
	client.addRace("20241201", domain.MeetSeoul, 1, 8)

	c := newTestCollector(t, client)
	ctx := context.Background()

	req := domain.CollectionRequest{Date: "20241201", RaceNo: 1, Meet: domain.MeetSeoul}
	opts := collector.Options{UseCache: true}

	_, err := c.CollectRace(ctx, req, opts, nil)
	require.NoError(t, err)

	var lastOp string

	data, err := c.CollectRace(ctx, req, opts, func(p domain.Progress) { lastOp = p.Operation })
	require.NoError(t, err)
	require.NotNil(t, data)

	assert.Equal(t, 1, client.calls("20241201", domain.MeetSeoul, 1))
	assert.Equal(t, "Completed (from cache)", lastOp)
	assert.Equal(t, 8, data.RaceInfo.TotalHorses)
}

func TestCollectRaceForceRefresh(t *testing.T) {
	client := newFakeClient()
	client.addRace("20241201", domain.MeetSeoul, 1, 8)

	c := newTestCollector(t, client)
	ctx := context.Background()

	req := domain.CollectionRequest{Date: "20241201", RaceNo: 1, Meet: domain.MeetSeoul}

	_, err := c.CollectRace(ctx, req, collector.Options{UseCache: true}, nil)
	require.NoError(t, err)

	req.ForceRefresh = true

	_, err = c.CollectRace(ctx, req, collector.Options{UseCache: true}, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, client.calls("20241201", domain.MeetSeoul, 1))
}

func TestCollectRaceEnriched(t *testing.T) {
	client := newFakeClient()
	client.addRace("20241201", domain.MeetBusan, 3, 2)

	c := newTestCollector(t, client)

	req := domain.CollectionRequest{Date: "20241201", RaceNo: 3, Meet: domain.MeetBusan, EnrichData: true}

	data, err := c.CollectRace(context.Background(), req, collector.Options{UseCache: true}, nil)
	require.NoError(t, err)

	assert.True(t, data.CollectionMeta.IsEnriched)
	require.Len(t, data.RaceResult, 2)
	require.NotNil(t, data.RaceResult[0].Horse)
	assert.Equal(t, "horse-H3-1", data.RaceResult[0].Horse.Name)
	require.NotNil(t, data.RaceResult[1].Trainer)
}

func TestCollectRaceNotFound(t *testing.T) {
	client := newFakeClient()
	c := newTestCollector(t, client)
	ctx := context.Background()

	req := domain.CollectionRequest{Date: "20241225", RaceNo: 11, Meet: domain.MeetJeju}

	_, err := c.CollectRace(ctx, req, collector.Options{UseCache: true}, nil)
	require.Error(t, err)
	assert.True(t, domain.IsNotFound(err))

	// Negative results are not cached: a retry hits the provider again.
	_, err = c.CollectRace(ctx, req, collector.Options{UseCache: true}, nil)
	require.Error(t, err)
	assert.Equal(t, 2, client.calls("20241225", domain.MeetJeju, 11))
}

func TestCollectRaceValidationAggregates(t *testing.T) {
	c := newTestCollector(t, newFakeClient())

	req := domain.CollectionRequest{Date: "2024-12-01", RaceNo: 99, Meet: "대구"}

	_, err := c.CollectRace(context.Background(), req, collector.Options{}, nil)
	require.Error(t, err)

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Violations, 3)
}

func TestCollectRaceProgressMonotonic(t *testing.T) {
	client := newFakeClient()
	client.addRace("20241201", domain.MeetSeoul, 1, 8)

	c := newTestCollector(t, client)

	var progress []int

	req := domain.CollectionRequest{Date: "20241201", RaceNo: 1, Meet: domain.MeetSeoul, EnrichData: true}

	_, err := c.CollectRace(context.Background(), req, collector.Options{UseCache: true}, func(p domain.Progress) {
		progress = append(progress, p.Progress)
	})
	require.NoError(t, err)
	require.NotEmpty(t, progress)

	for i := 1; i < len(progress); i++ {
		assert.GreaterOrEqual(t, progress[i], progress[i-1])
	}

	assert.Equal(t, 100, progress[len(progress)-1])
}

func TestCollectDaySkipsMissingRaces(t *testing.T) {
	client := newFakeClient()
	client.addRace("20241201", domain.MeetSeoul, 1, 8)
	client.addRace("20241201", domain.MeetSeoul, 2, 10)
	client.addRace("20241201", domain.MeetSeoul, 3, 6)

	c := newTestCollector(t, client)

	collected, err := c.CollectDay(context.Background(), "20241201", domain.MeetSeoul, false, collector.Options{UseCache: true}, nil)
	require.NoError(t, err)
	require.Len(t, collected, 3)

	// Every candidate race number was probed.
	assert.Equal(t, 1, client.calls("20241201", domain.MeetSeoul, domain.MaxRaceNo))
}

func TestCollectDayRejectsMalformedInput(t *testing.T) {
	client := newFakeClient()
	c := newTestCollector(t, client)

	_, err := c.CollectDay(context.Background(), "2024-12-01", "대구", false, collector.Options{UseCache: true}, nil)
	require.Error(t, err)

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Violations, 2)

	// Rejected before any provider call.
	assert.Empty(t, client.raceCalls)
}

func TestCollectDayEmptyMeetAllowed(t *testing.T) {
	client := newFakeClient()
	client.addRace("20241201", domain.MeetJeju, 1, 5)

	c := newTestCollector(t, client)

	collected, err := c.CollectDay(context.Background(), "20241201", "", false, collector.Options{UseCache: true}, nil)
	require.NoError(t, err)
	require.Len(t, collected, 1)
	assert.Equal(t, domain.MeetJeju, collected[0].RaceInfo.Meet)

	// All three venues were probed.
	assert.Equal(t, 1, client.calls("20241201", domain.MeetBusan, 1))
}

func TestCollectDayToleratesFailures(t *testing.T) {
	client := newFakeClient()
	client.addRace("20241201", domain.MeetSeoul, 1, 8)
	client.addRace("20241201", domain.MeetSeoul, 3, 6)
	client.failRaces[raceKey("20241201", domain.MeetSeoul, 2)] = errors.New("provider down")

	c := newTestCollector(t, client)

	collected, err := c.CollectDay(context.Background(), "20241201", domain.MeetSeoul, false, collector.Options{UseCache: true}, nil)
	require.NoError(t, err)
	assert.Len(t, collected, 2)
}

func TestCollectBatchPartialFailure(t *testing.T) {
	client := newFakeClient()
	client.addRace("20241201", domain.MeetSeoul, 1, 8)
	client.addRace("20241201", domain.MeetSeoul, 2, 10)
	client.failRaces[raceKey("20241201", domain.MeetSeoul, 3)] = errors.New("provider down")

	c := newTestCollector(t, client)

	req := domain.BatchCollectionRequest{
		StartDate:   "20241201",
		EndDate:     "20241201",
		Meets:       []domain.Meet{domain.MeetSeoul},
		Concurrency: 4,
	}

	result, err := c.CollectBatch(context.Background(), req, nil)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, 12, result.Summary.TotalRequested)
	assert.Equal(t, 2, result.Summary.TotalCollected)
	assert.Equal(t, 1, result.Summary.TotalFailed)
	assert.Equal(t, 9, result.Summary.TotalSkipped)
	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", result.Summary.BatchID.String())

	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "provider down")

	require.Len(t, result.Results, 12)
	assert.Equal(t, domain.OutcomeSuccess, result.Results[0].Status)
	assert.Equal(t, domain.OutcomeFailed, result.Results[2].Status)
	assert.Equal(t, domain.OutcomeSkipped, result.Results[11].Status)
	assert.Positive(t, result.Results[0].DataSize)
}

func TestCollectBatchMultiDayExpansion(t *testing.T) {
	client := newFakeClient()
	client.addRace("20241201", domain.MeetSeoul, 1, 5)
	client.addRace("20241202", domain.MeetSeoul, 1, 5)

	c := newTestCollector(t, client)

	req := domain.BatchCollectionRequest{
		StartDate: "20241201",
		EndDate:   "20241202",
		Meets:     []domain.Meet{domain.MeetSeoul},
	}

	var progress []int

	result, err := c.CollectBatch(context.Background(), req, func(p domain.Progress) {
		progress = append(progress, p.Progress)
	})
	require.NoError(t, err)

	// 2 days × 1 meet × 12 race numbers.
	assert.Equal(t, 24, result.Summary.TotalRequested)
	assert.Equal(t, 2, result.Summary.TotalCollected)

	require.NotEmpty(t, progress)
	assert.Equal(t, 100, progress[len(progress)-1])
}

func TestCollectBatchValidationAggregates(t *testing.T) {
	c := newTestCollector(t, newFakeClient())

	req := domain.BatchCollectionRequest{
		StartDate:   "20241210",
		EndDate:     "20241201",
		Concurrency: 99,
	}

	_, err := c.CollectBatch(context.Background(), req, nil)
	require.Error(t, err)

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.GreaterOrEqual(t, len(verr.Violations), 2)
}

func TestCollectBatchDefaultsAllMeets(t *testing.T) {
	client := newFakeClient()
	c := newTestCollector(t, client)

	req := domain.BatchCollectionRequest{StartDate: "20241201", EndDate: "20241201"}

	result, err := c.CollectBatch(context.Background(), req, nil)
	require.NoError(t, err)

	// 1 day × 3 meets × 12 race numbers, all empty.
	assert.Equal(t, 36, result.Summary.TotalRequested)
	assert.Equal(t, 36, result.Summary.TotalSkipped)
}

func TestCollectBatchCanceledContext(t *testing.T) {
	client := newFakeClient()
	c := newTestCollector(t, client)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := domain.BatchCollectionRequest{StartDate: "20241201", EndDate: "20241201"}

	_, err := c.CollectBatch(ctx, req, nil)
	require.ErrorIs(t, err, context.Canceled)
}
