// Package kra wraps the KRA public data API: race results plus horse,
// jockey, and trainer detail lookups. It owns the timeout/retry policy and
// normalizes the provider's loosely typed payloads at this boundary.
package kra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/sadewadee/kra-collector/internal/domain"
)

const (
	endpointRaceResult = "/API214_1/RaceDetailResult_1"
	endpointHorse      = "/API8_2/raceHorseInfo_2"
	endpointJockey     = "/API12_1/jockeyInfo_1"
	endpointTrainer    = "/API19_1/trainerInfo_1"

	resultCodeOK     = "00"
	resultCodeNoData = "03"

	defaultTimeout       = 10 * time.Second
	defaultRetryAttempts = 3
	defaultRetryDelay    = time.Second
	defaultRatePerSecond = 5
)

// Config holds client configuration. Zero values select defaults.
type Config struct {
	BaseURL    string
	ServiceKey string
	Timeout    time.Duration

	// RetryAttempts bounds the total number of attempts per request,
	// including the first. 3 means one initial call plus two retries.
	RetryAttempts int
	RetryDelay    time.Duration
	RatePerSecond float64
}

// Client is the HTTP client for the provider. It implements
// domain.RaceDataClient.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
}

// New creates a Client.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = defaultRetryAttempts
	}

	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}

	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = defaultRatePerSecond
	}

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1),
	}
}

// RaceResult fetches every finish record of one race. Races the provider
// has no data for yield an empty slice.
func (c *Client) RaceResult(ctx context.Context, date string, meet domain.Meet, raceNo int) ([]domain.RaceEntry, error) {
	params := url.Values{}
	params.Set("rc_date", date)
	params.Set("meet", meet.Code())
	params.Set("rc_no", strconv.Itoa(raceNo))

	raw, err := c.fetch(ctx, endpointRaceResult, params)
	if err != nil {
		return nil, err
	}

	items, err := itemsOf[raceResultItem](raw)
	if err != nil {
		return nil, &domain.ExternalAPIError{
			Endpoint: endpointRaceResult,
			Message:  "response items do not decode",
			Err:      err,
		}
	}

	entries := make([]domain.RaceEntry, 0, len(items))
	for _, it := range items {
		entries = append(entries, it.normalize())
	}

	return entries, nil
}

// HorseDetail fetches a horse's career statistics. Unknown or malformed
// ids return nil, not an error.
func (c *Client) HorseDetail(ctx context.Context, id string) (*domain.HorseDetail, error) {
	items, err := fetchDetail[horseItem](ctx, c, endpointHorse, "hr_no", id)
	if err != nil || len(items) == 0 {
		return nil, err
	}

	return items[0].normalize(), nil
}

// JockeyDetail fetches a jockey's career statistics.
func (c *Client) JockeyDetail(ctx context.Context, id string) (*domain.JockeyDetail, error) {
	items, err := fetchDetail[jockeyItem](ctx, c, endpointJockey, "jk_no", id)
	if err != nil || len(items) == 0 {
		return nil, err
	}

	return items[0].normalize(), nil
}

// TrainerDetail fetches a trainer's career statistics.
func (c *Client) TrainerDetail(ctx context.Context, id string) (*domain.TrainerDetail, error) {
	items, err := fetchDetail[trainerItem](ctx, c, endpointTrainer, "tr_no", id)
	if err != nil || len(items) == 0 {
		return nil, err
	}

	return items[0].normalize(), nil
}

func fetchDetail[T any](ctx context.Context, c *Client, endpoint, idParam, id string) ([]T, error) {
	if id == "" {
		return nil, nil
	}

	params := url.Values{}
	params.Set(idParam, id)

	raw, err := c.fetch(ctx, endpoint, params)
	if err != nil {
		return nil, err
	}

	items, err := itemsOf[T](raw)
	if err != nil {
		// Malformed detail payloads mean no enrichment, not a fault.
		log.Printf("kra: %s payload for %s does not decode: %v", endpoint, id, err)

		return nil, nil
	}

	return items, nil
}

// fetch performs one provider call with the retry policy: transient
// failures (network errors, timeouts, 5xx) are retried with a fixed delay;
// 4xx and provider-level errors are terminal. A "no data" response yields
// a nil items payload and no error.
func (c *Client) fetch(ctx context.Context, endpoint string, params url.Values) (json.RawMessage, error) {
	params.Set("serviceKey", c.cfg.ServiceKey)
	params.Set("numOfRows", "50")
	params.Set("pageNo", "1")
	params.Set("_type", "json")

	reqURL := c.cfg.BaseURL + endpoint + "?" + params.Encode()

	var lastErr error

	for attempt := 1; attempt <= c.cfg.RetryAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.cfg.RetryDelay):
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		raw, retryable, err := c.doOnce(ctx, endpoint, reqURL)
		if err == nil {
			return raw, nil
		}

		if !retryable {
			return nil, err
		}

		lastErr = err
		log.Printf("kra: %s attempt %d/%d failed: %v", endpoint, attempt, c.cfg.RetryAttempts, err)
	}

	return nil, lastErr
}

func (c *Client) doOnce(ctx context.Context, endpoint, reqURL string) (json.RawMessage, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, false, &domain.ExternalAPIError{Endpoint: endpoint, Message: "build request", Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, false, err
		}

		return nil, true, &domain.ExternalAPIError{Endpoint: endpoint, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, &domain.ExternalAPIError{Endpoint: endpoint, Status: resp.StatusCode, Message: "read body", Err: err}
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, true, &domain.ExternalAPIError{
			Endpoint: endpoint,
			Status:   resp.StatusCode,
			Message:  fmt.Sprintf("server error: %s", http.StatusText(resp.StatusCode)),
		}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, false, &domain.ExternalAPIError{
			Endpoint: endpoint,
			Status:   resp.StatusCode,
			Message:  fmt.Sprintf("unexpected status: %s", http.StatusText(resp.StatusCode)),
		}
	}

	var env apiResponse
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, false, &domain.ExternalAPIError{Endpoint: endpoint, Status: resp.StatusCode, Message: "response does not decode", Err: err}
	}

	switch env.Header.ResultCode {
	case resultCodeOK:
		if int(env.Body.TotalCount) == 0 {
			return nil, false, nil
		}

		return env.Body.Items.Item, false, nil
	case resultCodeNoData:
		return nil, false, nil
	default:
		return nil, false, &domain.ExternalAPIError{
			Endpoint: endpoint,
			Status:   resp.StatusCode,
			Message:  fmt.Sprintf("provider error %s: %s", env.Header.ResultCode, env.Header.ResultMsg),
		}
	}
}
