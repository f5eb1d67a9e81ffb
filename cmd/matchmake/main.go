package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/bkohler93/match-engine/internal/app/bootstrap"
	"github.com/bkohler93/match-engine/internal/app/matchmake"
	"github.com/bkohler93/match-engine/internal/shared/clock"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	deps, err := bootstrap.Load(ctx, "matchmake")
	if err != nil {
		panic(err)
	}
	defer deps.Close(context.Background())

	m := matchmake.New(deps.Store, clock.Real{}, deps.Handoff(), deps.Bus, deps.Log, deps.Config.Policy)
	if err := m.Start(ctx); err != nil {
		deps.Log.Error("matchmaker stopped", "error", err)
	}
}
