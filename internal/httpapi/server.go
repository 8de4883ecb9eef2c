package httpapi

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/emergency-dispatch/internal/config"
	"github.com/example/emergency-dispatch/internal/directory"
	"github.com/example/emergency-dispatch/internal/ingest"
	"github.com/example/emergency-dispatch/internal/logging"
	"github.com/example/emergency-dispatch/internal/routing"
	"github.com/example/emergency-dispatch/internal/state"
	"github.com/example/emergency-dispatch/internal/storage"
	"github.com/example/emergency-dispatch/internal/subs"
	"github.com/example/emergency-dispatch/internal/tracker"
)

type Server struct {
	cfg    config.ServerConfig
	logger *slog.Logger

	Directory  directory.Directory
	Fetcher    *routing.Fetcher
	Tracker    *tracker.Engine
	Reconciler *state.Reconciler
	Store      storage.RequestStore
	Kafka      *ingest.KafkaProducer
	Hub        *subs.Hub

	resumed atomic.Bool
	mux     *mux.Router
}

func NewServer(cfg config.ServerConfig, logger *slog.Logger, dir directory.Directory,
	fetcher *routing.Fetcher, eng *tracker.Engine, rec *state.Reconciler,
	store storage.RequestStore, kp *ingest.KafkaProducer, hub *subs.Hub) *Server {
	s := &Server{
		cfg: cfg, logger: logger,
		Directory: dir, Fetcher: fetcher, Tracker: eng, Reconciler: rec,
		Store: store, Kafka: kp, Hub: hub,
		mux: mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

// NewServerFromEnv wires the server from environment variables with in-process
// fallbacks: a memory directory without Redis, a memory store without Postgres,
// no ingest producer without Kafka.
func NewServerFromEnv() (*Server, error) {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		return nil, err
	}
	logger := logging.NewLogger("server", cfg.LogLevel)

	var dir directory.Directory
	var lookup directory.ResponderLookup
	if cfg.RedisAddr != "" {
		dir = directory.NewRedisDirectory(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisGeoKey)
		lookup = directory.NewRedisRespondersFromAddr(cfg.RedisAddr, cfg.RedisPassword)
	} else {
		dir = directory.NewMemoryDirectory()
		lookup = directory.NewMemoryResponders()
	}

	var store storage.RequestStore
	if cfg.PGDSN != "" {
		if ps, err := storage.NewPostgresStore(cfg.PGDSN); err == nil {
			store = ps
		} else {
			logger.Warn("postgres unavailable, using memory store", "error", err)
		}
	}
	if store == nil {
		store = storage.NewMemoryStore()
	}

	var kp *ingest.KafkaProducer
	if len(cfg.KafkaBrokers) > 0 {
		kp = ingest.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	}

	eng := tracker.New(cfg.TickInterval, logger)

	fetcher := routing.NewFetcher(
		routing.NewOSRMProvider(cfg.RoutePrimaryURL),
		routing.NewPolylineProvider(cfg.RouteSecondaryURL),
		logger,
	)
	fetcher.Timeout = cfg.RouteTimeout

	rec := state.NewReconciler()
	rec.Lookup = lookup
	rec.Store = store
	rec.Tracker = eng
	rec.PollInterval = cfg.PollInterval
	rec.StaleAfter = cfg.StaleAfter
	rec.Log = logger
	if cfg.SubscribeURL != "" {
		rec.Subscriber = wsSubscriber{&subs.WSSubscriber{BaseURL: cfg.SubscribeURL, Log: logger}}
	}

	return NewServer(cfg, logger, dir, fetcher, eng, rec, store, kp, subs.NewHub(logger)), nil
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/v1/dispatch/request", s.handleDispatchRequest).Methods("POST")
	s.mux.HandleFunc("/api/v1/beds/reserve", s.handleReserveBed).Methods("POST")
	s.mux.HandleFunc("/api/v1/session/resume", s.handleResumeSession).Methods("POST")
	s.mux.HandleFunc("/api/v1/trips/current", s.handleCurrentTrip).Methods("GET")
	s.mux.HandleFunc("/api/v1/bookings/current", s.handleCurrentBooking).Methods("GET")
	s.mux.HandleFunc("/api/v1/trips/position", s.handlePosition).Methods("GET")
	s.mux.HandleFunc("/internal/responder/locations", s.handleResponderLocation).Methods("POST")
	s.mux.HandleFunc("/ws/updates/{user_id}", s.handleWS)
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

func (s *Server) Config() config.ServerConfig { return s.cfg }

// Close tears down background work: the reconciler loop, its subscription
// handle, the animation timer, and the kafka writer.
func (s *Server) Close() {
	if s.Reconciler != nil {
		s.Reconciler.Close()
	}
	if s.Tracker != nil {
		s.Tracker.Stop()
	}
	if s.Kafka != nil {
		_ = s.Kafka.Close()
	}
}

// wsSubscriber bridges the concrete dialer to the reconciler's contract.
type wsSubscriber struct{ d *subs.WSSubscriber }

func (w wsSubscriber) Subscribe(ctx context.Context, userID string) (state.Subscription, error) {
	sub, err := w.d.Subscribe(ctx, userID)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func newID() string { b := make([]byte, 8); _, _ = rand.Read(b); return hex.EncodeToString(b) }
