package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/bkohler93/match-engine/internal/app/bootstrap"
	"github.com/bkohler93/match-engine/internal/app/janitor"
	"github.com/bkohler93/match-engine/internal/shared/clock"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	deps, err := bootstrap.Load(ctx, "janitor")
	if err != nil {
		panic(err)
	}
	defer deps.Close(context.Background())

	j := janitor.New(deps.Store, clock.Real{}, deps.Log, deps.Config.Policy)
	j.Start(ctx)
}
