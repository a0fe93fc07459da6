package kra

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/sadewadee/kra-collector/internal/domain"
)

// The provider serializes numeric fields inconsistently: sometimes as JSON
// numbers, sometimes as quoted strings. The flex types absorb both shapes
// so the rest of the codebase only ever sees canonical Go types.

type flexInt int

func (n *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(strings.Trim(string(b), `"`))
	if s == "" || s == "null" {
		*n = 0

		return nil
	}

	v, err := strconv.Atoi(s)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return err
		}

		*n = flexInt(int(f))

		return nil
	}

	*n = flexInt(v)

	return nil
}

type flexFloat float64

func (n *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(strings.Trim(string(b), `"`))
	if s == "" || s == "null" {
		*n = 0

		return nil
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}

	*n = flexFloat(f)

	return nil
}

// flexString accepts both quoted strings and bare numbers (entity ids are
// digit strings the provider occasionally emits unquoted).
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}

		*s = flexString(v)

		return nil
	}

	*s = flexString(strings.TrimSpace(string(b)))
	if *s == "null" {
		*s = ""
	}

	return nil
}

// apiResponse is the provider's wire envelope.
type apiResponse struct {
	Header struct {
		ResultCode string `json:"resultCode"`
		ResultMsg  string `json:"resultMsg"`
	} `json:"header"`
	Body struct {
		Items struct {
			Item json.RawMessage `json:"item"`
		} `json:"items"`
		NumOfRows  flexInt `json:"numOfRows"`
		PageNo     flexInt `json:"pageNo"`
		TotalCount flexInt `json:"totalCount"`
	} `json:"body"`
}

// itemsOf decodes the items.item field, which the provider serializes as a
// single object when one row matches and as an array otherwise.
func itemsOf[T any](raw json.RawMessage) ([]T, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte(`""`)) {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var list []T
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, err
		}

		return list, nil
	}

	var one T
	if err := json.Unmarshal(trimmed, &one); err != nil {
		return nil, err
	}

	return []T{one}, nil
}

// raceResultItem is one finish record as the provider serializes it.
type raceResultItem struct {
	RcDate  flexString `json:"rcDate"`
	Meet    string     `json:"meet"`
	RcNo    flexInt    `json:"rcNo"`
	RcName  string     `json:"rcName"`
	RcDist  flexInt    `json:"rcDist"`
	Track   string     `json:"track"`
	Weather string     `json:"weather"`
	Ord     flexInt    `json:"ord"`
	ChulNo  flexInt    `json:"chulNo"`
	HrNo    flexString `json:"hrNo"`
	HrName  string     `json:"hrName"`
	JkNo    flexString `json:"jkNo"`
	JkName  string     `json:"jkName"`
	TrNo    flexString `json:"trNo"`
	TrName  string     `json:"trName"`
	WgBudam flexFloat  `json:"wgBudam"`
	RcTime  flexFloat  `json:"rcTime"`
	WinOdds flexFloat  `json:"winOdds"`
}

func (it raceResultItem) normalize() domain.RaceEntry {
	return domain.RaceEntry{
		Date:        string(it.RcDate),
		Meet:        domain.Meet(it.Meet),
		RaceNo:      int(it.RcNo),
		RaceName:    it.RcName,
		Distance:    int(it.RcDist),
		Track:       it.Track,
		Weather:     it.Weather,
		Rank:        int(it.Ord),
		GateNo:      int(it.ChulNo),
		HorseID:     string(it.HrNo),
		HorseName:   it.HrName,
		JockeyID:    string(it.JkNo),
		JockeyName:  it.JkName,
		TrainerID:   string(it.TrNo),
		TrainerName: it.TrName,
		Weight:      float64(it.WgBudam),
		FinishTime:  float64(it.RcTime),
		WinOdds:     float64(it.WinOdds),
	}
}

type horseItem struct {
	HrNo     flexString `json:"hrNo"`
	HrName   string     `json:"hrName"`
	Sex      string     `json:"sex"`
	Birthday flexString `json:"birthday"`
	Rating   flexInt    `json:"rating"`
	RcCntT   flexInt    `json:"rcCntT"`
	Ord1CntT flexInt    `json:"ord1CntT"`
	Ord2CntT flexInt    `json:"ord2CntT"`
	WinRateT flexFloat  `json:"winRateT"`
	PlcRateT flexFloat  `json:"plcRateT"`
}

func (it horseItem) normalize() *domain.HorseDetail {
	return &domain.HorseDetail{
		ID:        string(it.HrNo),
		Name:      it.HrName,
		Sex:       it.Sex,
		Birthday:  string(it.Birthday),
		Rating:    int(it.Rating),
		Starts:    int(it.RcCntT),
		Firsts:    int(it.Ord1CntT),
		Seconds:   int(it.Ord2CntT),
		WinRate:   float64(it.WinRateT),
		PlaceRate: float64(it.PlcRateT),
	}
}

type jockeyItem struct {
	JkNo     flexString `json:"jkNo"`
	JkName   string     `json:"jkName"`
	Birthday flexString `json:"birthday"`
	Debut    flexString `json:"debut"`
	RcCntT   flexInt    `json:"rcCntT"`
	Ord1CntT flexInt    `json:"ord1CntT"`
	Ord2CntT flexInt    `json:"ord2CntT"`
	WinRateT flexFloat  `json:"winRateT"`
	PlcRateT flexFloat  `json:"plcRateT"`
}

func (it jockeyItem) normalize() *domain.JockeyDetail {
	return &domain.JockeyDetail{
		ID:        string(it.JkNo),
		Name:      it.JkName,
		Birthday:  string(it.Birthday),
		Debut:     string(it.Debut),
		Starts:    int(it.RcCntT),
		Firsts:    int(it.Ord1CntT),
		Seconds:   int(it.Ord2CntT),
		WinRate:   float64(it.WinRateT),
		PlaceRate: float64(it.PlcRateT),
	}
}

type trainerItem struct {
	TrNo     flexString `json:"trNo"`
	TrName   string     `json:"trName"`
	RcCntT   flexInt    `json:"rcCntT"`
	Ord1CntT flexInt    `json:"ord1CntT"`
	Ord2CntT flexInt    `json:"ord2CntT"`
	WinRateT flexFloat  `json:"winRateT"`
	PlcRateT flexFloat  `json:"plcRateT"`
}

func (it trainerItem) normalize() *domain.TrainerDetail {
	return &domain.TrainerDetail{
		ID:        string(it.TrNo),
		Name:      it.TrName,
		Starts:    int(it.RcCntT),
		Firsts:    int(it.Ord1CntT),
		Seconds:   int(it.Ord2CntT),
		WinRate:   float64(it.WinRateT),
		PlaceRate: float64(it.PlcRateT),
	}
}
