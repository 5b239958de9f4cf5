package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/example/ride-exchange/internal/broadcast"
	"github.com/example/ride-exchange/internal/config"
	"github.com/example/ride-exchange/internal/exchange"
	"github.com/example/ride-exchange/internal/geocode"
	"github.com/example/ride-exchange/internal/ingest"
	"github.com/example/ride-exchange/internal/notify"
	"github.com/example/ride-exchange/internal/registry"
	"github.com/example/ride-exchange/internal/ridesession"
	"github.com/example/ride-exchange/internal/session"
	"github.com/example/ride-exchange/internal/storage"
)

// Server is the HTTP surface: the three websocket channels plus the JSON
// read endpoints the ride pages are built on.
type Server struct {
	exchange *exchange.Coordinator
	rides    *ridesession.Coordinator
	store    storage.RideStore
	gateway  broadcast.Gateway
	geocoder geocode.Resolver
	identity IdentityProvider
	logger   *slog.Logger
	mux      *mux.Router
}

// Deps bundles the collaborators the server mediates between.
type Deps struct {
	Exchange *exchange.Coordinator
	Rides    *ridesession.Coordinator
	Store    storage.RideStore
	Gateway  broadcast.Gateway
	Geocoder geocode.Resolver
	Identity IdentityProvider
	Logger   *slog.Logger
}

func NewServer(d Deps) *Server {
	if d.Identity == nil {
		d.Identity = HeaderIdentity{}
	}
	s := &Server{
		exchange: d.Exchange,
		rides:    d.Rides,
		store:    d.Store,
		gateway:  d.Gateway,
		geocoder: d.Geocoder,
		identity: d.Identity,
		logger:   d.Logger,
		mux:      mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

// NewServerFromConfig wires the full production dependency graph: postgres
// when a DSN is configured (memory store otherwise), the Redis broadcast
// bridge when Redis is configured, Kafka lifecycle events when brokers are
// configured. Anything unconfigured degrades to in-process behavior.
func NewServerFromConfig(cfg config.ServerConfig, logger *slog.Logger) (*Server, func(), error) {
	var store storage.RideStore
	if cfg.PGDSN != "" {
		ps, err := storage.NewPostgresStore(cfg.PGDSN)
		if err != nil {
			return nil, nil, err
		}
		store = ps
	} else {
		store = storage.NewMemoryStore()
	}

	hub := broadcast.NewHub(logger)
	var gateway broadcast.Gateway = hub
	cleanup := func() {}
	if cfg.RedisAddr != "" {
		rc := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		bridge := broadcast.NewRedisBridge(hub, rc, logger)
		gateway = bridge
		ctx, cancel := context.WithCancel(context.Background())
		go bridge.Run(ctx)
		cleanup = func() {
			cancel()
			_ = rc.Close()
		}
	}

	var events exchange.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		producer := ingest.NewRideEventProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		events = producer
		prev := cleanup
		cleanup = func() {
			prev()
			_ = producer.Close()
		}
	}

	var notifier notify.Notifier = notify.NopNotifier{}
	switch {
	case cfg.NotifyWebhookEndpoint != "":
		notifier = notify.NewWebhookNotifier(cfg.NotifyWebhookEndpoint, cfg.NotifyWebhookKey)
	case cfg.SMTPAddr != "" && cfg.UserDirectoryEndpoint != "":
		book := notify.NewHTTPAddressBook(cfg.UserDirectoryEndpoint)
		notifier = notify.NewSMTPNotifier(cfg.SMTPAddr, cfg.SMTPUsername, cfg.SMTPPassword, cfg.MailFrom, book)
	}

	pending := registry.NewPending()
	sessions := session.NewDirectory()
	ex := exchange.NewCoordinator(pending, store, sessions, events, logger)
	rs := ridesession.NewCoordinator(store, sessions, notifier, events, logger)

	srv := NewServer(Deps{
		Exchange: ex,
		Rides:    rs,
		Store:    store,
		Gateway:  gateway,
		Geocoder: geocode.NewClient(cfg.GeocoderEndpoint),
		Logger:   logger,
	})
	return srv, cleanup, nil
}

func (s *Server) routes() {
	s.mux.HandleFunc("/ws/exchange", s.handleExchangeWS)
	s.mux.HandleFunc("/ws/ride", s.handleRideWS)
	s.mux.HandleFunc("/ws/chat", s.handleChatWS)

	s.mux.HandleFunc("/api/v1/rides/{id}", s.handleGetRide).Methods(http.MethodGet)
	s.mux.HandleFunc("/api/v1/rides/{id}/chat", s.handleGetRideChat).Methods(http.MethodGet)
	s.mux.HandleFunc("/api/v1/rides/{id}/invoice", s.handleGetInvoice).Methods(http.MethodGet)
	s.mux.HandleFunc("/api/v1/geocode", s.handleGeocode).Methods(http.MethodPost)

	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	s.mux.Handle("/metrics", promhttp.Handler())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }
