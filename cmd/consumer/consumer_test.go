package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/emergency-dispatch/internal/models"
)

// fakeUpdater implements RedisUpdater for tests
type fakeUpdater struct {
	failGeo  int // number of times to fail GeoAdd before succeeding
	failH    int // number of times to fail HSet before succeeding
	geoCalls int
	hCalls   int
	lastMeta map[string]interface{}
}

func (f *fakeUpdater) GeoAdd(ctx context.Context, key string, loc *redis.GeoLocation) error {
	f.geoCalls++
	if f.geoCalls <= f.failGeo {
		return errors.New("geo fail")
	}
	return nil
}

func (f *fakeUpdater) HSet(ctx context.Context, key string, values map[string]interface{}) error {
	f.hCalls++
	if f.hCalls <= f.failH {
		return errors.New("hset fail")
	}
	f.lastMeta = values
	return nil
}

func testFix() *models.ResponderFix {
	return &models.ResponderFix{
		ResponderID: "amb-1",
		Loc:         models.Coordinate{Lat: 12.97, Lng: 77.59},
		Heading:     42,
		Recorded:    time.Now(),
	}
}

func TestUpdateRedisWithRetry_SucceedsAfterRetries(t *testing.T) {
	f := &fakeUpdater{failGeo: 1, failH: 1}
	start := time.Now()
	if err := updateRedisWithRetry(context.Background(), f, testFix(), 3, 10*time.Millisecond); err != nil {
		t.Fatalf("expected success, got err=%v", err)
	}
	if f.geoCalls < 2 || f.hCalls < 2 {
		t.Fatalf("expected retries, got geo=%d h=%d", f.geoCalls, f.hCalls)
	}
	if time.Since(start) < 10*time.Millisecond {
		t.Fatalf("expected at least one backoff")
	}
	if f.lastMeta["heading"] != 42.0 {
		t.Fatalf("meta hash missing heading: %v", f.lastMeta)
	}
}

func TestUpdateRedisWithRetry_FailsWhenExhausted(t *testing.T) {
	f := &fakeUpdater{failGeo: 5, failH: 0}
	if err := updateRedisWithRetry(context.Background(), f, testFix(), 3, 5*time.Millisecond); err == nil {
		t.Fatalf("expected error after retries")
	}
}

func TestSplitBrokers(t *testing.T) {
	got := splitBrokers(" kafka1:9092, kafka2:9092 ,")
	if len(got) != 2 || got[0] != "kafka1:9092" || got[1] != "kafka2:9092" {
		t.Fatalf("unexpected brokers: %v", got)
	}
	if splitBrokers("") != nil {
		t.Fatalf("expected nil for empty input")
	}
}
