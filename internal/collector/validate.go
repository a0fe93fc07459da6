package collector

import (
	"fmt"
	"regexp"
	"time"

	"github.com/sadewadee/kra-collector/internal/domain"
)

var datePattern = regexp.MustCompile(`^\d{8}$`)

// validateCollection checks a single-race request. All violations are
// collected into one ValidationError before any I/O happens. Meet is
// required here: a (date, raceNo) pair is ambiguous across venues, so the
// all-venues default applies only to day and batch collection.
func validateCollection(req domain.CollectionRequest) error {
	var violations []domain.FieldViolation

	if !datePattern.MatchString(req.Date) {
		violations = append(violations, domain.FieldViolation{
			Field:   "date",
			Message: "must be an 8-digit date (YYYYMMDD)",
			Value:   req.Date,
		})
	}

	if req.RaceNo < domain.MinRaceNo || req.RaceNo > domain.MaxRaceNo {
		violations = append(violations, domain.FieldViolation{
			Field:   "race_no",
			Message: fmt.Sprintf("must be between %d and %d", domain.MinRaceNo, domain.MaxRaceNo),
			Value:   req.RaceNo,
		})
	}

	if !req.Meet.Valid() {
		violations = append(violations, domain.FieldViolation{
			Field:   "meet",
			Message: "must be one of the known venues",
			Value:   string(req.Meet),
		})
	}

	if len(violations) > 0 {
		return &domain.ValidationError{Violations: violations}
	}

	return nil
}

// validateDay checks day-collection input. Meet is optional; empty means
// every venue.
func validateDay(date string, meet domain.Meet) error {
	var violations []domain.FieldViolation

	if !datePattern.MatchString(date) {
		violations = append(violations, domain.FieldViolation{
			Field:   "date",
			Message: "must be an 8-digit date (YYYYMMDD)",
			Value:   date,
		})
	}

	if meet != "" && !meet.Valid() {
		violations = append(violations, domain.FieldViolation{
			Field:   "meet",
			Message: "must be one of the known venues",
			Value:   string(meet),
		})
	}

	if len(violations) > 0 {
		return &domain.ValidationError{Violations: violations}
	}

	return nil
}

// validateBatch checks a batch request the same way: every violation in
// one error, raised before any network I/O.
func validateBatch(req domain.BatchCollectionRequest) error {
	var violations []domain.FieldViolation

	start, startErr := parseDate(req.StartDate)
	if startErr != nil {
		violations = append(violations, domain.FieldViolation{
			Field:   "start_date",
			Message: "must be an 8-digit date (YYYYMMDD)",
			Value:   req.StartDate,
		})
	}

	end, endErr := parseDate(req.EndDate)
	if endErr != nil {
		violations = append(violations, domain.FieldViolation{
			Field:   "end_date",
			Message: "must be an 8-digit date (YYYYMMDD)",
			Value:   req.EndDate,
		})
	}

	if startErr == nil && endErr == nil && start.After(end) {
		violations = append(violations, domain.FieldViolation{
			Field:   "start_date",
			Message: "must not be after end_date",
			Value:   req.StartDate,
		})
	}

	if req.Concurrency != 0 && (req.Concurrency < domain.MinBatchConcurrency || req.Concurrency > domain.MaxBatchConcurrency) {
		violations = append(violations, domain.FieldViolation{
			Field:   "concurrency",
			Message: fmt.Sprintf("must be between %d and %d", domain.MinBatchConcurrency, domain.MaxBatchConcurrency),
			Value:   req.Concurrency,
		})
	}

	for _, meet := range req.Meets {
		if !meet.Valid() {
			violations = append(violations, domain.FieldViolation{
				Field:   "meets",
				Message: "must contain only known venues",
				Value:   string(meet),
			})
		}
	}

	if len(violations) > 0 {
		return &domain.ValidationError{Violations: violations}
	}

	return nil
}

func parseDate(s string) (time.Time, error) {
	if !datePattern.MatchString(s) {
		return time.Time{}, fmt.Errorf("not an 8-digit date: %q", s)
	}

	return time.Parse("20060102", s)
}
