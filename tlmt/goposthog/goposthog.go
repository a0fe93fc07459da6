// Package goposthog sends telemetry events to PostHog.
package goposthog

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/posthog/posthog-go"

	"github.com/sadewadee/kra-collector/tlmt"
)

type service struct {
	client     posthog.Client
	distinctID string
}

// New creates a PostHog-backed telemetry service. The endpoint may be
// empty to use the PostHog default.
func New(apiKey, endpoint string) (tlmt.Telemetry, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("posthog api key is required")
	}

	cfg := posthog.Config{}
	if endpoint != "" {
		cfg.Endpoint = endpoint
	}

	client, err := posthog.NewWithConfig(apiKey, cfg)
	if err != nil {
		return nil, err
	}

	return &service{
		client:     client,
		distinctID: uuid.NewString(),
	}, nil
}

func (s *service) Send(_ context.Context, event tlmt.Event) error {
	return s.client.Enqueue(posthog.Capture{
		DistinctId: s.distinctID,
		Event:      event.Name,
		Properties: posthog.Properties(event.Properties),
	})
}

func (s *service) Close() error {
	return s.client.Close()
}
