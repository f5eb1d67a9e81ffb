package gateway

import (
	"context"
	"errors"
	"sync"

	"github.com/bkohler93/match-engine/internal/app/matchmake"
	"github.com/bkohler93/match-engine/internal/shared/logger"
)

// Hub tracks connected websocket clients by user and wakes them when a match event names them.
type Hub struct {
	mu      sync.Mutex
	clients map[string]map[*Client]struct{}
	log     *logger.Logger
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		log:     log,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c.userID] == nil {
		h.clients[c.userID] = make(map[*Client]struct{})
	}
	h.clients[c.userID][c] = struct{}{}
	h.log.Debug("registered client", "userId", c.userID)
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients[c.userID], c)
	if len(h.clients[c.userID]) == 0 {
		delete(h.clients, c.userID)
	}
	h.log.Debug("unregistered client", "userId", c.userID)
}

func (h *Hub) dispatch(e matchmake.MatchEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, userID := range []string{e.User1ID, e.User2ID} {
		for c := range h.clients[userID] {
			c.wakeUp()
		}
	}
}

// Run forwards match events to registered clients until ctx is done. Without a bus clients
// fall back to their poll interval.
func (h *Hub) Run(ctx context.Context, bus *matchmake.TransportBus) {
	if bus == nil {
		<-ctx.Done()
		return
	}
	events, errCh := bus.ListenForMatchEvents(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			h.dispatch(e)
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if !errors.Is(err, context.Canceled) {
				h.log.Warn("match event listener failed, clients will poll", "error", err)
			}
			errCh = nil
		}
	}
}
