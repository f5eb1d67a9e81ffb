package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bkohler93/match-engine/internal/app/matchmake"
	"github.com/bkohler93/match-engine/internal/shared/clock"
	"github.com/bkohler93/match-engine/internal/shared/logger"
	"github.com/bkohler93/match-engine/internal/shared/queue"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.UnixMilli(1_700_000_000_000)

type testGateway struct {
	g     *Gateway
	store *queue.MemoryStore
	clock *clock.Manual
	bus   *matchmake.TransportBus
	srv   *httptest.Server
}

func startup(t *testing.T, pollInterval time.Duration) *testGateway {
	t.Helper()
	store := queue.NewMemoryStore()
	clk := clock.NewManual(t0)
	bus := matchmake.NewLocalBus()
	g := New("0", store, clk, bus, logger.Nop(), pollInterval)
	srv := httptest.NewServer(g.Router())
	t.Cleanup(srv.Close)
	return &testGateway{g: g, store: store, clock: clk, bus: bus, srv: srv}
}

func (tg *testGateway) do(t *testing.T, method, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequestWithContext(t.Context(), method, tg.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := tg.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func (tg *testGateway) enqueue(t *testing.T, userID, category, difficulty string) *http.Response {
	t.Helper()
	body, err := json.Marshal(queue.EnqueueRequest{UserID: userID, Username: "name-" + userID, Category: category, Difficulty: difficulty})
	require.NoError(t, err)
	resp, _ := tg.do(t, http.MethodPost, "/match/requests", string(body))
	return resp
}

func (tg *testGateway) pair(t *testing.T, a, b string) {
	t.Helper()
	ra, err := tg.store.Get(t.Context(), a)
	require.NoError(t, err)
	rb, err := tg.store.Get(t.Context(), b)
	require.NoError(t, err)
	require.NoError(t, tg.store.PairRequests(t.Context(), queue.NewPairUpdate("match-1", tg.clock.Now(), ra, rb)))
}

func TestGatewayHTTP(t *testing.T) {
	t.Run("health", func(t *testing.T) {
		tg := startup(t, time.Second)
		resp, _ := tg.do(t, http.MethodGet, "/health", "")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("enqueue validates the difficulty", func(t *testing.T) {
		tg := startup(t, time.Second)
		assert.Equal(t, http.StatusBadRequest, tg.enqueue(t, "a", "Array", "IMPOSSIBLE").StatusCode)
		assert.Equal(t, http.StatusCreated, tg.enqueue(t, "a", "Array", "easy").StatusCode)

		r, err := tg.store.Get(t.Context(), "a")
		require.NoError(t, err)
		assert.Equal(t, queue.Easy, r.Difficulty)
	})

	t.Run("a rejected enqueue does not use up the rate limit", func(t *testing.T) {
		tg := startup(t, time.Second)
		assert.Equal(t, http.StatusBadRequest, tg.enqueue(t, "a", "", "EASY").StatusCode)
		assert.Equal(t, http.StatusBadRequest, tg.enqueue(t, "a", "Array", "EXPERT").StatusCode)
		assert.Equal(t, http.StatusCreated, tg.enqueue(t, "a", "Array", "EASY").StatusCode)
		assert.Equal(t, http.StatusTooManyRequests, tg.enqueue(t, "a", "Array", "HARD").StatusCode)
	})

	t.Run("malformed bodies are rejected", func(t *testing.T) {
		tg := startup(t, time.Second)
		resp, out := tg.do(t, http.MethodPost, "/match/requests", "{not json")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "malformed request body", out["error"])
	})

	t.Run("repeated enqueues are throttled", func(t *testing.T) {
		tg := startup(t, time.Second)
		assert.Equal(t, http.StatusCreated, tg.enqueue(t, "a", "Array", "EASY").StatusCode)
		assert.Equal(t, http.StatusTooManyRequests, tg.enqueue(t, "a", "Array", "HARD").StatusCode)
		assert.Equal(t, http.StatusCreated, tg.enqueue(t, "b", "Array", "HARD").StatusCode)
		tg.clock.Advance(AllowableEnqueuePeriod)
		assert.Equal(t, http.StatusCreated, tg.enqueue(t, "a", "Array", "HARD").StatusCode)
	})

	t.Run("enqueue notifies the matchmake workers", func(t *testing.T) {
		tg := startup(t, time.Second)
		ctx, cancel := context.WithCancel(t.Context())
		defer cancel()
		alerts, _ := tg.bus.ListenForMatchmakeWorkerNotifications(ctx)

		require.Equal(t, http.StatusCreated, tg.enqueue(t, "a", "Array", "EASY").StatusCode)
		select {
		case userID := <-alerts:
			assert.Equal(t, "a", userID)
		case <-time.After(time.Second):
			t.Fatal("expected a worker notification")
		}
	})

	t.Run("status reports waiting, then the match once, then removed", func(t *testing.T) {
		tg := startup(t, time.Second)
		require.Equal(t, http.StatusCreated, tg.enqueue(t, "x", "Array", "EASY").StatusCode)
		require.Equal(t, http.StatusCreated, tg.enqueue(t, "y", "Array", "HARD").StatusCode)

		resp, out := tg.do(t, http.MethodGet, "/match/requests/x/status", "")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, map[string]any{"matched": false}, out)

		tg.pair(t, "x", "y")
		_, out = tg.do(t, http.MethodGet, "/match/requests/y/status", "")
		assert.Equal(t, map[string]any{
			"matched":            true,
			"partnerId":          "x",
			"partnerUsername":    "name-x",
			"categoryAssigned":   "Array",
			"difficultyAssigned": "EASY",
			"matchId":            "match-1",
		}, out)

		_, out = tg.do(t, http.MethodGet, "/match/requests/y/status", "")
		assert.Equal(t, map[string]any{"removed": true}, out)
	})

	t.Run("queued does not consume a match", func(t *testing.T) {
		tg := startup(t, time.Second)
		require.Equal(t, http.StatusCreated, tg.enqueue(t, "x", "Array", "EASY").StatusCode)
		require.Equal(t, http.StatusCreated, tg.enqueue(t, "y", "Array", "EASY").StatusCode)
		tg.pair(t, "x", "y")

		for range 2 {
			_, out := tg.do(t, http.MethodGet, "/match/requests/x/queued", "")
			assert.Equal(t, map[string]any{"inQueue": true}, out)
		}
		_, out := tg.do(t, http.MethodGet, "/match/requests/x/status", "")
		assert.Equal(t, true, out["matched"])
	})

	t.Run("cancel removes the request", func(t *testing.T) {
		tg := startup(t, time.Second)
		require.Equal(t, http.StatusCreated, tg.enqueue(t, "x", "Array", "EASY").StatusCode)

		resp, _ := tg.do(t, http.MethodDelete, "/match/requests/x", "")
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)

		_, out := tg.do(t, http.MethodGet, "/match/requests/x/queued", "")
		assert.Equal(t, map[string]any{"inQueue": false}, out)
		_, out = tg.do(t, http.MethodGet, "/match/requests/x/status", "")
		assert.Equal(t, map[string]any{"removed": true}, out)
	})

	t.Run("cors preflight is answered", func(t *testing.T) {
		tg := startup(t, time.Second)
		req, err := http.NewRequestWithContext(t.Context(), http.MethodOptions, tg.srv.URL+"/match/requests", nil)
		require.NoError(t, err)
		req.Header.Set("Origin", "http://frontend.local")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		resp, err := tg.srv.Client().Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	})
}

func dialWS(t *testing.T, tg *testGateway, userID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(tg.srv.URL, "http") + "/ws?userId=" + userID
	conn, _, err := websocket.DefaultDialer.DialContext(t.Context(), url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	return conn
}

func TestGatewayWebsocket(t *testing.T) {
	t.Run("pushes the match after a match event", func(t *testing.T) {
		tg := startup(t, time.Hour)
		ctx, cancel := context.WithCancel(t.Context())
		defer cancel()
		go tg.g.hub.Run(ctx, tg.bus)

		require.Equal(t, http.StatusCreated, tg.enqueue(t, "x", "Array", "EASY").StatusCode)
		require.Equal(t, http.StatusCreated, tg.enqueue(t, "y", "Array", "EASY").StatusCode)

		conn := dialWS(t, tg, "x")
		var first map[string]any
		require.NoError(t, conn.ReadJSON(&first))
		assert.Equal(t, map[string]any{"matched": false}, first)

		tg.pair(t, "x", "y")
		require.Eventually(t, func() bool {
			_ = tg.bus.PublishMatchEvent(ctx, matchmake.MatchEvent{MatchID: "match-1", User1ID: "x", User2ID: "y"})
			_, err := tg.store.Get(ctx, "x")
			return err != nil
		}, 2*time.Second, 20*time.Millisecond)

		var second map[string]any
		require.NoError(t, conn.ReadJSON(&second))
		assert.Equal(t, true, second["matched"])
		assert.Equal(t, "y", second["partnerId"])

		_, _, err := conn.ReadMessage()
		assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
	})

	t.Run("polls without a match event", func(t *testing.T) {
		tg := startup(t, 20*time.Millisecond)
		require.Equal(t, http.StatusCreated, tg.enqueue(t, "z", "Array", "EASY").StatusCode)

		conn := dialWS(t, tg, "z")
		var first map[string]any
		require.NoError(t, conn.ReadJSON(&first))
		assert.Equal(t, map[string]any{"matched": false}, first)

		require.NoError(t, tg.store.Delete(t.Context(), "z"))
		var second map[string]any
		require.NoError(t, conn.ReadJSON(&second))
		assert.Equal(t, map[string]any{"removed": true}, second)
	})

	t.Run("userId is required", func(t *testing.T) {
		tg := startup(t, time.Second)
		resp, _ := tg.do(t, http.MethodGet, "/ws", "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestRateLimiter(t *testing.T) {
	clk := clock.NewManual(t0)
	rl := NewRateLimiter(clk)

	t.Run("first request is always allowed", func(t *testing.T) {
		assert.False(t, rl.DenyEnqueue("a"))
	})

	t.Run("second request sent immediately after should be denied", func(t *testing.T) {
		assert.True(t, rl.DenyEnqueue("a"))
		assert.False(t, rl.DenyEnqueue("b"))
	})

	t.Run("a denied request does not extend the period", func(t *testing.T) {
		clk.Advance(AllowableEnqueuePeriod / 2)
		assert.True(t, rl.DenyEnqueue("a"))
		clk.Advance(AllowableEnqueuePeriod / 2)
		assert.False(t, rl.DenyEnqueue("a"))
	})

	t.Run("a request after the period is allowed", func(t *testing.T) {
		clk.Advance(AllowableEnqueuePeriod)
		assert.False(t, rl.DenyEnqueue("a"))
	})
}
