package domain

import "time"

// Meet is one of the three physical race venues.
type Meet string

const (
	MeetSeoul Meet = "서울"
	MeetJeju  Meet = "제주"
	MeetBusan Meet = "부산경남"
)

// Code returns the provider's numeric venue code.
func (m Meet) Code() string {
	switch m {
	case MeetSeoul:
		return "1"
	case MeetJeju:
		return "2"
	case MeetBusan:
		return "3"
	default:
		return ""
	}
}

// Valid reports whether the meet is one of the known venues.
func (m Meet) Valid() bool {
	return m == MeetSeoul || m == MeetJeju || m == MeetBusan
}

// AllMeets returns every known venue.
func AllMeets() []Meet {
	return []Meet{MeetSeoul, MeetJeju, MeetBusan}
}

// Race numbers per day are not known in advance; the provider schedules
// at most this many races per meet per day.
const (
	MinRaceNo = 1
	MaxRaceNo = 12
)

// RaceEntry is one horse's finish record in a race, including the race
// metadata the provider repeats on every row.
type RaceEntry struct {
	Date     string `json:"date"`
	Meet     Meet   `json:"meet"`
	RaceNo   int    `json:"race_no"`
	RaceName string `json:"race_name"`
	Distance int    `json:"distance"`
	Track    string `json:"track"`
	Weather  string `json:"weather"`

	Rank        int     `json:"rank"`
	GateNo      int     `json:"gate_no"`
	HorseID     string  `json:"horse_id"`
	HorseName   string  `json:"horse_name"`
	JockeyID    string  `json:"jockey_id"`
	JockeyName  string  `json:"jockey_name"`
	TrainerID   string  `json:"trainer_id"`
	TrainerName string  `json:"trainer_name"`
	Weight      float64 `json:"weight"`
	FinishTime  float64 `json:"finish_time"`
	WinOdds     float64 `json:"win_odds"`
}

// HorseDetail holds a horse's career statistics.
type HorseDetail struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Sex       string  `json:"sex"`
	Birthday  string  `json:"birthday"`
	Rating    int     `json:"rating"`
	Starts    int     `json:"starts"`
	Firsts    int     `json:"firsts"`
	Seconds   int     `json:"seconds"`
	WinRate   float64 `json:"win_rate"`
	PlaceRate float64 `json:"place_rate"`
}

// JockeyDetail holds a jockey's career statistics.
type JockeyDetail struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Birthday  string  `json:"birthday"`
	Debut     string  `json:"debut"`
	Starts    int     `json:"starts"`
	Firsts    int     `json:"firsts"`
	Seconds   int     `json:"seconds"`
	WinRate   float64 `json:"win_rate"`
	PlaceRate float64 `json:"place_rate"`
}

// TrainerDetail holds a trainer's career statistics.
type TrainerDetail struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Starts    int     `json:"starts"`
	Firsts    int     `json:"firsts"`
	Seconds   int     `json:"seconds"`
	WinRate   float64 `json:"win_rate"`
	PlaceRate float64 `json:"place_rate"`
}

// EnrichedEntry is a race entry with optional per-entity details attached.
// A nil detail means no enrichment was available for that entity.
type EnrichedEntry struct {
	RaceEntry
	Horse   *HorseDetail   `json:"horse,omitempty"`
	Jockey  *JockeyDetail  `json:"jockey,omitempty"`
	Trainer *TrainerDetail `json:"trainer,omitempty"`
}

// RaceInfo is the shared race metadata lifted from the first entry.
type RaceInfo struct {
	Date        string `json:"date"`
	Meet        Meet   `json:"meet"`
	RaceNo      int    `json:"race_no"`
	Name        string `json:"name"`
	Distance    int    `json:"distance"`
	Track       string `json:"track"`
	Weather     string `json:"weather"`
	TotalHorses int    `json:"total_horses"`
}

// CollectionMeta describes how a race result was obtained.
type CollectionMeta struct {
	CollectedAt time.Time `json:"collected_at"`
	IsEnriched  bool      `json:"is_enriched"`
	DataSource  string    `json:"data_source"`
}

// CollectedRaceData is the envelope returned by a successful collection.
type CollectedRaceData struct {
	RaceInfo       RaceInfo        `json:"race_info"`
	RaceResult     []EnrichedEntry `json:"race_result"`
	CollectionMeta CollectionMeta  `json:"collection_meta"`
}
