package domain

import (
	"time"

	"github.com/google/uuid"
)

// CollectionRequest asks for a single race.
type CollectionRequest struct {
	Date         string `json:"date"`
	RaceNo       int    `json:"race_no"`
	Meet         Meet   `json:"meet"`
	EnrichData   bool   `json:"enrich_data"`
	ForceRefresh bool   `json:"force_refresh"`
}

// BatchCollectionRequest asks for every race in a date range across meets.
type BatchCollectionRequest struct {
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
	Meets        []Meet `json:"meets,omitempty"`
	EnrichData   bool   `json:"enrich_data"`
	Concurrency  int    `json:"concurrency"`
	ForceRefresh bool   `json:"force_refresh"`
}

// Batch concurrency bounds.
const (
	MinBatchConcurrency = 1
	MaxBatchConcurrency = 10
)

// OutcomeStatus is the per-race result of a batch collection.
type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeFailed  OutcomeStatus = "failed"
	OutcomeSkipped OutcomeStatus = "skipped"
)

// RaceOutcome records what happened to one (date, meet, raceNo) in a batch.
type RaceOutcome struct {
	Date     string        `json:"date"`
	RaceNo   int           `json:"race_no"`
	Meet     Meet          `json:"meet"`
	Status   OutcomeStatus `json:"status"`
	Error    string        `json:"error,omitempty"`
	DataSize int           `json:"data_size,omitempty"`
}

// BatchSummary aggregates a batch run.
type BatchSummary struct {
	BatchID        uuid.UUID     `json:"batch_id"`
	TotalRequested int           `json:"total_requested"`
	TotalCollected int           `json:"total_collected"`
	TotalFailed    int           `json:"total_failed"`
	TotalSkipped   int           `json:"total_skipped"`
	Duration       time.Duration `json:"duration"`
}

// BatchCollectionResult is returned by a batch collection. The call itself
// succeeds even when individual races fail; callers inspect the summary.
type BatchCollectionResult struct {
	Summary BatchSummary  `json:"summary"`
	Results []RaceOutcome `json:"results"`
	Errors  []string      `json:"errors,omitempty"`
}

// Progress is a transient progress report delivered through callbacks.
type Progress struct {
	Operation              string        `json:"operation"`
	Progress               int           `json:"progress"`
	CurrentRace            string        `json:"current_race,omitempty"`
	EstimatedTimeRemaining time.Duration `json:"estimated_time_remaining,omitempty"`
	StartTime              time.Time     `json:"start_time"`
}

// ProgressFunc receives progress updates. Implementations must be fast;
// they are called synchronously from collection loops.
type ProgressFunc func(Progress)
