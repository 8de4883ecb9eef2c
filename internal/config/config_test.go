package config

import (
	"testing"
	"time"
)

func TestLoadServerConfigDefaults(t *testing.T) {
	cfg, err := LoadServerConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("HTTPAddr default = %q", cfg.HTTPAddr)
	}
	if cfg.RouteTimeout != 2*time.Second {
		t.Fatalf("RouteTimeout default = %v", cfg.RouteTimeout)
	}
	if cfg.TickInterval != 250*time.Millisecond {
		t.Fatalf("TickInterval default = %v", cfg.TickInterval)
	}
	if cfg.KafkaTopic != "responder-locations" || cfg.RedisGeoKey != "hospitals_geo" {
		t.Fatalf("unexpected topic/key defaults: %q %q", cfg.KafkaTopic, cfg.RedisGeoKey)
	}
	if cfg.RankTopN != 8 || cfg.DiscoverRadiusM != 10000 {
		t.Fatalf("unexpected discovery defaults: %d %v", cfg.RankTopN, cfg.DiscoverRadiusM)
	}
}

func TestLoadServerConfigOverridesAndErrors(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("ROUTE_TIMEOUT", "750ms")
	t.Setenv("RANK_TOP_N", "3")

	cfg, err := LoadServerConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTPAddr != ":9090" || cfg.RouteTimeout != 750*time.Millisecond || cfg.RankTopN != 3 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "k2:9092" {
		t.Fatalf("brokers not split: %v", cfg.KafkaBrokers)
	}

	t.Setenv("TRACKER_TICK_INTERVAL", "not-a-duration")
	if _, err := LoadServerConfig(); err == nil {
		t.Fatal("expected error for malformed duration")
	}
}
