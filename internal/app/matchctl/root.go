package matchctl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/bkohler93/match-engine/internal/app/matchmake"
	"github.com/bkohler93/match-engine/internal/shared/clock"
	"github.com/bkohler93/match-engine/internal/shared/config"
	"github.com/bkohler93/match-engine/internal/shared/logger"
	"github.com/bkohler93/match-engine/internal/shared/queue"
	"github.com/bkohler93/match-engine/internal/shared/session"
	"github.com/spf13/cobra"
)

// Env is what the commands operate on.
type Env struct {
	Store   queue.Store
	Clock   clock.Clock
	Log     *logger.Logger
	Policy  config.Policy
	Handoff session.Handoff
	Bus     *matchmake.TransportBus
}

// Loader builds the Env for one command run. The returned func releases it.
type Loader func(ctx context.Context) (*Env, func(), error)

type RootOptions struct {
	Format string // "json" | "text"
	load   Loader
}

var ValidFormats = []string{"text", "json"}

func NewRootCommand(load Loader) *cobra.Command {
	opts := &RootOptions{load: load}

	cmd := &cobra.Command{
		Use:   "matchctl",
		Short: "Inspect and drive the match queue",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewEnqueueCommand(opts))
	cmd.AddCommand(NewCancelCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewQueuedCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewSweepCommand(opts))
	cmd.AddCommand(NewExpireCommand(opts))
	return cmd
}

// withEnv loads the Env around fn.
func (o *RootOptions) withEnv(cmd *cobra.Command, fn func(ctx context.Context, env *Env) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	env, release, err := o.load(ctx)
	if err != nil {
		return err
	}
	defer release()
	return fn(ctx, env)
}

// print writes v as indented JSON, or text as given for the text format.
func (o *RootOptions) print(w io.Writer, v any, text string) error {
	if o.Format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	_, err := fmt.Fprintln(w, text)
	return err
}
