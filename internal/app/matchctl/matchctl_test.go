package matchctl

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/bkohler93/match-engine/internal/shared/clock"
	"github.com/bkohler93/match-engine/internal/shared/config"
	"github.com/bkohler93/match-engine/internal/shared/logger"
	"github.com/bkohler93/match-engine/internal/shared/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	env   *Env
	clock *clock.Manual
}

func newTestEnv() *testEnv {
	clk := clock.NewManual(time.UnixMilli(1_700_000_000_000))
	return &testEnv{
		clock: clk,
		env: &Env{
			Store:  queue.NewMemoryStore(),
			Clock:  clk,
			Log:    logger.Nop(),
			Policy: config.DefaultPolicy(),
		},
	}
}

func (te *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRootCommand(func(ctx context.Context) (*Env, func(), error) {
		return te.env, func() {}, nil
	})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func (te *testEnv) enqueue(t *testing.T, userID, category, difficulty string) {
	t.Helper()
	_, err := te.run(t, "enqueue", "--user-id", userID, "--username", "name-"+userID, "--category", category, "--difficulty", difficulty)
	require.NoError(t, err)
}

func TestMatchctl(t *testing.T) {
	t.Run("enqueue, sweep and poll a pair", func(t *testing.T) {
		te := newTestEnv()
		te.enqueue(t, "x", "Array", "easy")
		te.clock.Advance(time.Second)
		te.enqueue(t, "y", "Array", "HARD")

		out, err := te.run(t, "list")
		require.NoError(t, err)
		assert.Contains(t, out, "2 waiting")

		te.clock.Advance(15 * time.Second)
		out, err = te.run(t, "sweep", "--format", "json")
		require.NoError(t, err)
		var res struct {
			Scanned int `json:"scanned"`
			Pairs   []struct {
				User1ID string `json:"user1Id"`
				Tier    string `json:"tier"`
			} `json:"pairs"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &res))
		assert.Equal(t, 2, res.Scanned)
		require.Len(t, res.Pairs, 1)
		assert.Equal(t, "x", res.Pairs[0].User1ID)
		assert.Equal(t, "category", res.Pairs[0].Tier)

		out, err = te.run(t, "queued", "y")
		require.NoError(t, err)
		assert.Contains(t, out, "y in queue: true")

		out, err = te.run(t, "status", "y")
		require.NoError(t, err)
		assert.Contains(t, out, "MATCHED with x (name-x) on Array/EASY")

		out, err = te.run(t, "status", "y")
		require.NoError(t, err)
		assert.Contains(t, out, "REMOVED")
	})

	t.Run("expire removes stale requests", func(t *testing.T) {
		te := newTestEnv()
		te.enqueue(t, "z", "Array", "EASY")
		te.clock.Advance(50 * time.Second)

		out, err := te.run(t, "expire")
		require.NoError(t, err)
		assert.Contains(t, out, "expired 1")

		out, err = te.run(t, "status", "z")
		require.NoError(t, err)
		assert.Contains(t, out, "REMOVED")
	})

	t.Run("cancel", func(t *testing.T) {
		te := newTestEnv()
		te.enqueue(t, "a", "Array", "EASY")
		_, err := te.run(t, "cancel", "a")
		require.NoError(t, err)
		out, err := te.run(t, "queued", "a", "--format", "json")
		require.NoError(t, err)
		assert.JSONEq(t, `{"inQueue": false}`, out)
	})

	t.Run("invalid input is reported", func(t *testing.T) {
		te := newTestEnv()
		_, err := te.run(t, "enqueue", "--user-id", "a", "--username", "a", "--category", "Array", "--difficulty", "EXPERT")
		assert.ErrorIs(t, err, queue.ErrInvalidRequest)

		_, err = te.run(t, "enqueue", "--user-id", "a")
		assert.Error(t, err)

		_, err = te.run(t, "list", "--format", "yaml")
		assert.ErrorContains(t, err, "invalid format")

		_, err = te.run(t, "status")
		assert.ErrorContains(t, err, "accepts 1 arg")
	})
}
