package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bkohler93/match-engine/internal/shared/logger"
	"github.com/bkohler93/match-engine/internal/shared/queue"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
)

const (
	pingInterval   = 10 * time.Second
	pongWait       = 60 * time.Second
	writeWait      = 5 * time.Second
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Client is one websocket watching a user's match status.
type Client struct {
	conn   *websocket.Conn
	userID string
	wake   chan struct{}
	log    *logger.Logger
}

func NewClient(w http.ResponseWriter, r *http.Request, userID string, log *logger.Logger) (*Client, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	return &Client{
		conn:   conn,
		userID: userID,
		wake:   make(chan struct{}, 1),
		log:    log.With("userId", userID),
	}, nil
}

func (c *Client) wakeUp() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (g *Gateway) handleWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		g.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "userId is required"})
		return
	}
	client, err := NewClient(w, r, userID, g.log)
	if err != nil {
		g.log.Warn("failed to initialize client websocket", "userId", userID, "error", err)
		return
	}
	defer func() {
		if err := client.conn.Close(); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
			client.log.Debug("failed to close connection", "error", err)
		}
	}()

	g.hub.Register(client)
	defer g.hub.Unregister(client)

	if err := client.Serve(r.Context(), g.resolver, g.pollInterval); err != nil {
		client.log.Debug("websocket ended", "error", err)
	}
}

// Serve runs until the user is matched or removed, the peer goes away, or ctx is done.
func (c *Client) Serve(ctx context.Context, resolver *queue.Resolver, pollInterval time.Duration) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	eg, eCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		defer cancel()
		return c.pingLoop(eCtx)
	})
	eg.Go(func() error {
		defer cancel()
		return c.readPump()
	})
	eg.Go(func() error {
		defer cancel()
		defer c.conn.Close()
		return c.watch(eCtx, resolver, pollInterval)
	})
	return eg.Wait()
}

func (c *Client) pingLoop(ctx context.Context) error {
	t := time.NewTicker(pingInterval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return fmt.Errorf("failed to send PING: %w", err)
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// readPump discards inbound messages. It returns once the connection is closed by either side.
func (c *Client) readPump() error {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Debug("websocket unexpectedly closed", "error", err)
			}
			return nil
		}
	}
}

// watch resolves the status on every wake up or poll tick and writes it whenever it changes.
// MATCHED and REMOVED are final.
func (c *Client) watch(ctx context.Context, resolver *queue.Resolver, pollInterval time.Duration) error {
	t := time.NewTicker(pollInterval)
	defer t.Stop()

	var last queue.State
	for {
		st, err := resolver.Resolve(ctx, c.userID)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Warn("status check failed", "error", err)
		} else if st.State != last {
			last = st.State
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(newStatusResponse(st)); err != nil {
				return fmt.Errorf("failed to write status: %w", err)
			}
			if st.State != queue.StateWaiting {
				closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(st.State))
				_ = c.conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(writeWait))
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		case <-c.wake:
		}
	}
}
