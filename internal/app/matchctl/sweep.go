package matchctl

import (
	"context"
	"fmt"
	"strings"

	"github.com/bkohler93/match-engine/internal/app/janitor"
	"github.com/bkohler93/match-engine/internal/app/matchmake"
	"github.com/spf13/cobra"
)

func NewSweepCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one match sweep now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withEnv(cmd, func(ctx context.Context, env *Env) error {
				m := matchmake.New(env.Store, env.Clock, env.Handoff, env.Bus, env.Log, env.Policy)
				res, err := m.Sweep(ctx)
				m.Wait()
				if err != nil {
					return err
				}
				var b strings.Builder
				for _, p := range res.Pairs {
					fmt.Fprintf(&b, "%s\t%s + %s\t%s/%s\t%s\n", p.MatchID, p.User1ID, p.User2ID, p.Category, p.Difficulty, p.Tier)
				}
				fmt.Fprintf(&b, "scanned %d, paired %d, conflicts %d", res.Scanned, len(res.Pairs), res.Conflicts)
				return opts.print(cmd.OutOrStdout(), res, b.String())
			})
		},
	}
}

func NewExpireCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "expire",
		Short: "Run one expiry sweep now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withEnv(cmd, func(ctx context.Context, env *Env) error {
				n, err := janitor.New(env.Store, env.Clock, env.Log, env.Policy).Sweep(ctx)
				if err != nil {
					return err
				}
				return opts.print(cmd.OutOrStdout(), map[string]int{"expired": n}, fmt.Sprintf("expired %d", n))
			})
		},
	}
}
