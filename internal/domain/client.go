package domain

import "context"

// RaceDataClient fetches race and entity data from the remote provider.
// A nil detail with a nil error means the entity is unknown upstream;
// callers treat that as "no enrichment available".
type RaceDataClient interface {
	// RaceResult returns every finish record of one race. A race the
	// provider has no data for yields an empty slice, not an error.
	RaceResult(ctx context.Context, date string, meet Meet, raceNo int) ([]RaceEntry, error)

	// HorseDetail returns a horse's career statistics.
	HorseDetail(ctx context.Context, id string) (*HorseDetail, error)

	// JockeyDetail returns a jockey's career statistics.
	JockeyDetail(ctx context.Context, id string) (*JockeyDetail, error)

	// TrainerDetail returns a trainer's career statistics.
	TrainerDetail(ctx context.Context, id string) (*TrainerDetail, error)
}
