package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ServerConfig captures all tunable parameters for the dispatch API process.
// Values are primarily loaded from environment variables with sane defaults
// so the binary can run locally without excessive setup.
type ServerConfig struct {
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	RedisAddr     string
	RedisPassword string
	RedisGeoKey   string

	KafkaBrokers []string
	KafkaTopic   string

	PGDSN string

	RoutePrimaryURL   string
	RouteSecondaryURL string
	RouteTimeout      time.Duration

	DiscoverRadiusM float64
	RankTopN        int

	TickInterval time.Duration
	PollInterval time.Duration
	StaleAfter   time.Duration
	SubscribeURL string

	LogLevel      string
	RunMigrations bool
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPAddr:        ":8080",
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    10 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		RedisGeoKey:     "hospitals_geo",
		KafkaTopic:      "responder-locations",
		RouteTimeout:    2 * time.Second,
		DiscoverRadiusM: 10000,
		RankTopN:        8,
		TickInterval:    250 * time.Millisecond,
		PollInterval:    10 * time.Second,
		StaleAfter:      30 * time.Second,
		LogLevel:        "info",
	}
}

func LoadServerConfig() (ServerConfig, error) {
	cfg := defaultServerConfig()
	var errs []error

	setStringFromEnv(&cfg.HTTPAddr, "HTTP_ADDR")
	setDurationFromEnv(&cfg.ReadTimeout, "HTTP_READ_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.WriteTimeout, "HTTP_WRITE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.IdleTimeout, "HTTP_IDLE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT", &errs)

	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	setStringFromEnv(&cfg.RedisGeoKey, "REDIS_GEO_KEY")

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaTopic, "KAFKA_TOPIC")

	cfg.PGDSN = os.Getenv("PG_DSN")

	setStringFromEnv(&cfg.RoutePrimaryURL, "ROUTE_PRIMARY_URL")
	setStringFromEnv(&cfg.RouteSecondaryURL, "ROUTE_SECONDARY_URL")
	setDurationFromEnv(&cfg.RouteTimeout, "ROUTE_TIMEOUT", &errs)

	setFloatFromEnv(&cfg.DiscoverRadiusM, "DISCOVER_RADIUS_M", &errs)
	setIntFromEnv(&cfg.RankTopN, "RANK_TOP_N", &errs)

	setDurationFromEnv(&cfg.TickInterval, "TRACKER_TICK_INTERVAL", &errs)
	setDurationFromEnv(&cfg.PollInterval, "RECONCILER_POLL_INTERVAL", &errs)
	setDurationFromEnv(&cfg.StaleAfter, "RECONCILER_STALE_AFTER", &errs)
	setStringFromEnv(&cfg.SubscribeURL, "SUBSCRIBE_URL")

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	cfg.RunMigrations = strings.EqualFold(os.Getenv("MIGRATE"), "true")

	if cfg.RankTopN <= 0 {
		errs = append(errs, fmt.Errorf("RANK_TOP_N must be > 0"))
	}
	if cfg.RouteTimeout <= 0 {
		errs = append(errs, fmt.Errorf("ROUTE_TIMEOUT must be > 0"))
	}
	if cfg.TickInterval <= 0 {
		errs = append(errs, fmt.Errorf("TRACKER_TICK_INTERVAL must be > 0"))
	}

	return cfg, errors.Join(errs...)
}

func setDurationFromEnv(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func setFloatFromEnv(target *float64, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = f
	}
}

func setIntFromEnv(target *int, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = i
	}
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
