package bootstrap

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/bkohler93/match-engine/internal/shared/config"
	"github.com/bkohler93/match-engine/internal/shared/logger"
	"github.com/bkohler93/match-engine/internal/shared/queue"
	"github.com/bkohler93/match-engine/internal/shared/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild(t *testing.T) {
	t.Run("memory backend gets a local bus", func(t *testing.T) {
		d, err := Build(t.Context(), config.Config{Backend: config.BackendMemory, Policy: config.DefaultPolicy()}, logger.Nop(), "test")
		require.NoError(t, err)
		defer d.Close(t.Context())
		assert.IsType(t, &queue.MemoryStore{}, d.Store)
		assert.NotNil(t, d.Bus)
		assert.Nil(t, d.Handoff())
	})

	t.Run("redis backend connects and loads its scripts", func(t *testing.T) {
		mr := miniredis.RunT(t)
		d, err := Build(t.Context(), config.Config{Backend: config.BackendRedis, RedisAddr: mr.Addr()}, logger.Nop(), "test")
		require.NoError(t, err)
		defer d.Close(t.Context())
		assert.IsType(t, &queue.RedisStore{}, d.Store)
		assert.NotNil(t, d.Redis)
	})

	t.Run("an unreachable redis is an error", func(t *testing.T) {
		_, err := Build(t.Context(), config.Config{Backend: config.BackendRedis, RedisAddr: "127.0.0.1:1"}, logger.Nop(), "test")
		assert.Error(t, err)
	})

	t.Run("handoff is built from the collaboration url", func(t *testing.T) {
		d, err := Build(t.Context(), config.Config{Backend: config.BackendMemory, CollabServiceURL: "http://collab", JWTSecret: "s"}, logger.Nop(), "test")
		require.NoError(t, err)
		assert.IsType(t, &session.HTTPHandoff{}, d.Handoff())
	})
}
