package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bkohler93/match-engine/internal/app/bootstrap"
	"github.com/bkohler93/match-engine/internal/app/matchctl"
	"github.com/bkohler93/match-engine/internal/shared/clock"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	load := func(ctx context.Context) (*matchctl.Env, func(), error) {
		deps, err := bootstrap.Load(ctx, "matchctl")
		if err != nil {
			return nil, nil, err
		}
		env := &matchctl.Env{
			Store:   deps.Store,
			Clock:   clock.Real{},
			Log:     deps.Log,
			Policy:  deps.Config.Policy,
			Handoff: deps.Handoff(),
			Bus:     deps.Bus,
		}
		return env, func() { deps.Close(context.Background()) }, nil
	}

	if err := matchctl.NewRootCommand(load).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
