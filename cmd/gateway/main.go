package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/bkohler93/match-engine/internal/app/bootstrap"
	"github.com/bkohler93/match-engine/internal/app/gateway"
	"github.com/bkohler93/match-engine/internal/shared/clock"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	deps, err := bootstrap.Load(ctx, "gateway")
	if err != nil {
		panic(err)
	}
	defer deps.Close(context.Background())

	g := gateway.New(deps.Config.GatewayPort, deps.Store, clock.Real{}, deps.Bus, deps.Log, deps.Config.Policy.StatusPushInterval)
	if err := g.Start(ctx); err != nil {
		deps.Log.Error("gateway stopped", "error", err)
	}
}
