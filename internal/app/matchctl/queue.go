package matchctl

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bkohler93/match-engine/internal/shared/queue"
	"github.com/spf13/cobra"
)

func NewEnqueueCommand(opts *RootOptions) *cobra.Command {
	var e queue.EnqueueRequest
	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Add or replace a user's match request",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withEnv(cmd, func(ctx context.Context, env *Env) error {
				req, err := queue.NewRepository(env.Store, env.Clock).Enqueue(ctx, e)
				if err != nil {
					return err
				}
				if env.Bus != nil {
					if err := env.Bus.NotifyMatchmakeWorkers(ctx, req.UserID); err != nil {
						env.Log.Warn("failed to notify matchmake workers", "error", err)
					}
				}
				return opts.print(cmd.OutOrStdout(), req, fmt.Sprintf("enqueued %s (%s, %s)", req.UserID, req.Category, req.Difficulty))
			})
		},
	}
	cmd.Flags().StringVar(&e.UserID, "user-id", "", "user id")
	cmd.Flags().StringVar(&e.Username, "username", "", "display name")
	cmd.Flags().StringVar(&e.Category, "category", "", "question category")
	cmd.Flags().StringVar(&e.Difficulty, "difficulty", "", "EASY, MEDIUM or HARD")
	for _, f := range []string{"user-id", "username", "category", "difficulty"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

func NewCancelCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <user-id>",
		Short: "Remove a user's match request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withEnv(cmd, func(ctx context.Context, env *Env) error {
				if err := queue.NewRepository(env.Store, env.Clock).Cancel(ctx, args[0]); err != nil {
					return err
				}
				return opts.print(cmd.OutOrStdout(), map[string]string{"cancelled": args[0]}, "cancelled "+args[0])
			})
		},
	}
}

func NewStatusCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status <user-id>",
		Short: "Poll a user's status like the client would",
		Long: `Poll a user's status like the client would.

A MATCHED result consumes the user's record, exactly as a client poll does.
Use "queued" to look without consuming.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withEnv(cmd, func(ctx context.Context, env *Env) error {
				st, err := queue.NewResolver(env.Store).Resolve(ctx, args[0])
				if err != nil {
					return err
				}
				text := string(st.State)
				if st.State == queue.StateMatched {
					text = fmt.Sprintf("%s with %s (%s) on %s/%s, match %s",
						st.State, st.PartnerID, st.PartnerUsername, st.CategoryAssigned, st.DifficultyAssigned, st.MatchID)
				}
				return opts.print(cmd.OutOrStdout(), st, text)
			})
		},
	}
}

func NewQueuedCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "queued <user-id>",
		Short: "Report whether a user has a request in the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withEnv(cmd, func(ctx context.Context, env *Env) error {
				in, err := queue.NewRepository(env.Store, env.Clock).InQueue(ctx, args[0])
				if err != nil {
					return err
				}
				return opts.print(cmd.OutOrStdout(), map[string]bool{"inQueue": in}, fmt.Sprintf("%s in queue: %t", args[0], in))
			})
		},
	}
}

func NewListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List waiting requests, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withEnv(cmd, func(ctx context.Context, env *Env) error {
				reqs, err := env.Store.ScanUnmatched(ctx)
				if err != nil {
					return err
				}
				now := env.Clock.Now()
				var b strings.Builder
				for _, r := range reqs {
					fmt.Fprintf(&b, "%s\t%s\t%s\twaiting %s\n", r.UserID, r.Category, r.Difficulty, r.Age(now).Truncate(time.Second))
				}
				fmt.Fprintf(&b, "%d waiting", len(reqs))
				if reqs == nil {
					reqs = []queue.MatchRequest{}
				}
				return opts.print(cmd.OutOrStdout(), reqs, b.String())
			})
		},
	}
}
