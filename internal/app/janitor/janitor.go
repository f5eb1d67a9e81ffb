package janitor

import (
	"context"
	"fmt"
	"time"

	"github.com/bkohler93/match-engine/internal/shared/clock"
	"github.com/bkohler93/match-engine/internal/shared/config"
	"github.com/bkohler93/match-engine/internal/shared/logger"
	"github.com/bkohler93/match-engine/internal/shared/observability"
	"github.com/bkohler93/match-engine/internal/shared/queue"
	"github.com/bkohler93/match-engine/internal/shared/utils"
	"go.opentelemetry.io/otel/attribute"
)

// Janitor evicts requests that waited longer than the expiry timeout without a match.
type Janitor struct {
	Store  queue.Store
	Clock  clock.Clock
	Log    *logger.Logger
	Policy config.Policy
}

func New(store queue.Store, c clock.Clock, log *logger.Logger, policy config.Policy) *Janitor {
	return &Janitor{
		Store:  store,
		Clock:  c,
		Log:    log.With("service", "Janitor"),
		Policy: policy,
	}
}

func (j *Janitor) Start(ctx context.Context) {
	t := time.NewTicker(j.Policy.ExpiryInterval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			innerCtx, cancel := context.WithTimeout(ctx, j.Policy.SweepTimeout)
			n, err := j.Sweep(innerCtx)
			cancel()
			if utils.ErrorsIsAny(err, context.DeadlineExceeded, context.Canceled) {
				j.Log.Warn("expiry sweep cut short", "expired", n, "error", err)
				continue
			}
			if err != nil {
				j.Log.Error("expiry sweep failed", "error", err)
				continue
			}
			if n > 0 {
				j.Log.Info("expired match requests", "count", n)
			}
		case <-ctx.Done():
			j.Log.Info("shutting down gracefully")
			return
		}
	}
}

// Sweep deletes every request older than the expiry timeout that is still unmatched when its
// delete runs. A request paired between the listing and the delete is left alone.
func (j *Janitor) Sweep(ctx context.Context) (int, error) {
	ctx, span := observability.Tracer().Start(ctx, "janitor.sweep")
	defer span.End()

	cutoff := j.Clock.Now().Add(-j.Policy.ExpireAfter)
	stale, err := j.Store.ListStale(ctx, cutoff)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to list stale requests: %w", err)
	}

	expired := 0
	var firstErr error
	utils.SliceForeachContext(ctx, stale, func(ctx context.Context, userID string) {
		ok, err := j.Store.ExpireIfStale(ctx, userID, cutoff)
		if err != nil {
			j.Log.Warn("failed to expire request", "userId", userID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			return
		}
		if ok {
			expired++
			j.Log.Debug("expired request", "userId", userID)
		}
	})
	span.SetAttributes(attribute.Int("expiry.candidates", len(stale)), attribute.Int("expiry.evicted", expired))
	if firstErr != nil {
		return expired, fmt.Errorf("failed to expire some requests: %w", firstErr)
	}
	return expired, ctx.Err()
}
