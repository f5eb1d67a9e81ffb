// Command matchengine runs the gateway, the match sweep and the expiry sweep in one process.
// It is the only way to run with QUEUE_BACKEND=memory.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/bkohler93/match-engine/internal/app/bootstrap"
	"github.com/bkohler93/match-engine/internal/app/gateway"
	"github.com/bkohler93/match-engine/internal/app/janitor"
	"github.com/bkohler93/match-engine/internal/app/matchmake"
	"github.com/bkohler93/match-engine/internal/shared/clock"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	deps, err := bootstrap.Load(ctx, "matchengine")
	if err != nil {
		panic(err)
	}
	defer deps.Close(context.Background())

	c := clock.Real{}
	policy := deps.Config.Policy
	m := matchmake.New(deps.Store, c, deps.Handoff(), deps.Bus, deps.Log, policy)
	j := janitor.New(deps.Store, c, deps.Log, policy)
	g := gateway.New(deps.Config.GatewayPort, deps.Store, c, deps.Bus, deps.Log, policy.StatusPushInterval)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error { return m.Start(egCtx) })
	eg.Go(func() error {
		j.Start(egCtx)
		return nil
	})
	eg.Go(func() error { return g.Start(egCtx) })
	if err := eg.Wait(); err != nil {
		deps.Log.Error("match engine stopped", "error", err)
	}
}
