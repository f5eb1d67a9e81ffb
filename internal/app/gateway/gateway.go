package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bkohler93/match-engine/internal/app/matchmake"
	"github.com/bkohler93/match-engine/internal/shared/clock"
	"github.com/bkohler93/match-engine/internal/shared/logger"
	"github.com/bkohler93/match-engine/internal/shared/queue"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

// Gateway is the HTTP surface of the engine: enqueue, cancel, poll and a websocket that
// pushes the poll result when a match event arrives.
type Gateway struct {
	addr         string
	repo         *queue.Repository
	resolver     *queue.Resolver
	bus          *matchmake.TransportBus
	hub          *Hub
	limiter      *RateLimiter
	log          *logger.Logger
	pollInterval time.Duration
}

// New wires a gateway over store. bus may be nil, in which case websocket clients only poll.
func New(addr string, store queue.Store, c clock.Clock, bus *matchmake.TransportBus, log *logger.Logger, pollInterval time.Duration) *Gateway {
	log = log.With("service", "Gateway")
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &Gateway{
		addr:         addr,
		repo:         queue.NewRepository(store, c),
		resolver:     queue.NewResolver(store),
		bus:          bus,
		hub:          NewHub(log),
		limiter:      NewRateLimiter(c),
		log:          log,
		pollInterval: pollInterval,
	}
}

func (g *Gateway) Router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/health", g.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/match/requests", g.handleEnqueue).Methods(http.MethodPost)
	r.HandleFunc("/match/requests/{userId}", g.handleCancel).Methods(http.MethodDelete)
	r.HandleFunc("/match/requests/{userId}/status", g.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/match/requests/{userId}/queued", g.handleQueued).Methods(http.MethodGet)
	r.HandleFunc("/ws", g.handleWS).Methods(http.MethodGet)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})
	return c.Handler(r)
}

// Start serves until ctx is cancelled, then drains in-flight requests.
func (g *Gateway) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", g.addr),
		Handler:           g.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		g.hub.Run(egCtx, g.bus)
		return nil
	})
	eg.Go(func() error {
		g.log.Info("starting server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("ListenAndServe error: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		<-egCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		g.log.Info("server gracefully stopped")
		return nil
	})
	return eg.Wait()
}
