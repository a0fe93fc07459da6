// Package runner holds the application configuration and the run-mode
// contract the entry point dispatches on.
package runner

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sadewadee/kra-collector/tlmt"
	"github.com/sadewadee/kra-collector/tlmt/gonoop"
	"github.com/sadewadee/kra-collector/tlmt/goposthog"
)

// Runner is one run mode of the application.
type Runner interface {
	Run(context.Context) error
	Close(context.Context) error
}

// Config is the flag-parsed application configuration.
type Config struct {
	// Collection target. A date range selects batch mode; a date plus a
	// race number selects single-race mode; a date alone collects the
	// whole day.
	Date      string
	StartDate string
	EndDate   string
	Meet      string
	RaceNo    int

	Enrich       bool
	Concurrency  int
	ForceRefresh bool
	NoCache      bool

	CacheDir    string
	ResultsFile string

	// Provider access.
	APIBaseURL     string
	ServiceKey     string
	RequestTimeout time.Duration
	RetryAttempts  int
	RetryDelay     time.Duration

	// Redis primary cache tier (in-memory when unset).
	RedisAddr string
	RedisPass string
	RedisDB   int

	DisableTelemetry bool
}

// ParseConfig parses flags into a Config, with environment fallbacks for
// secrets.
func ParseConfig() *Config {
	cfg := Config{}

	flag.StringVar(&cfg.Date, "date", "", "race date to collect (YYYYMMDD)")
	flag.StringVar(&cfg.StartDate, "start-date", "", "batch range start (YYYYMMDD)")
	flag.StringVar(&cfg.EndDate, "end-date", "", "batch range end (YYYYMMDD)")
	flag.StringVar(&cfg.Meet, "meet", "", "venue name (서울, 제주, 부산경남) [default: all]")
	flag.IntVar(&cfg.RaceNo, "race", 0, "race number (1-12), 0 collects the whole day")
	flag.BoolVar(&cfg.Enrich, "enrich", false, "enrich entries with horse/jockey/trainer statistics")
	flag.IntVar(&cfg.Concurrency, "c", 3, "batch concurrency (1-10)")
	flag.BoolVar(&cfg.ForceRefresh, "force-refresh", false, "bypass cached results and re-fetch")
	flag.BoolVar(&cfg.NoCache, "no-cache", false, "disable cache-first reads")
	flag.StringVar(&cfg.CacheDir, "cache", "cache", "durable cache directory")
	flag.StringVar(&cfg.ResultsFile, "results", "stdout", "path to the results file [default: stdout]")
	flag.StringVar(&cfg.APIBaseURL, "api-url", "https://apis.data.go.kr/B551015", "KRA API base URL")
	flag.StringVar(&cfg.ServiceKey, "service-key", "", "KRA API service key (or KRA_SERVICE_KEY env)")
	flag.DurationVar(&cfg.RequestTimeout, "timeout", 10*time.Second, "per-request timeout")
	flag.IntVar(&cfg.RetryAttempts, "retries", 3, "total provider attempts per request, including the first")
	flag.DurationVar(&cfg.RetryDelay, "retry-delay", time.Second, "delay between retry attempts")
	flag.StringVar(&cfg.RedisAddr, "redis-addr", "", "Redis address for the primary cache tier (host:port)")
	flag.StringVar(&cfg.RedisPass, "redis-pass", "", "Redis password")
	flag.IntVar(&cfg.RedisDB, "redis-db", 0, "Redis database number")
	flag.BoolVar(&cfg.DisableTelemetry, "disable-telemetry", false, "disable anonymous usage telemetry")

	flag.Parse()

	if cfg.ServiceKey == "" {
		cfg.ServiceKey = os.Getenv("KRA_SERVICE_KEY")
	}

	if os.Getenv("DISABLE_TELEMETRY") != "" {
		cfg.DisableTelemetry = true
	}

	return &cfg
}

var (
	telemetryOnce     sync.Once
	telemetryInstance tlmt.Telemetry
)

// Telemetry returns the process-wide telemetry instance. PostHog is used
// only when POSTHOG_API_KEY is set and telemetry is not disabled.
func Telemetry() tlmt.Telemetry {
	telemetryOnce.Do(func() {
		if os.Getenv("DISABLE_TELEMETRY") != "" {
			telemetryInstance = gonoop.New()

			return
		}

		apiKey := os.Getenv("POSTHOG_API_KEY")
		if apiKey == "" {
			telemetryInstance = gonoop.New()

			return
		}

		svc, err := goposthog.New(apiKey, os.Getenv("POSTHOG_ENDPOINT"))
		if err != nil {
			telemetryInstance = gonoop.New()

			return
		}

		telemetryInstance = svc
	})

	return telemetryInstance
}

// Banner prints the startup banner.
func Banner() {
	fmt.Fprintf(os.Stderr, "kra-collector %s (built %s, commit %s)\n", Version, BuildDate, Commit)
}
