// Command agentbridge supervises an agent runtime and exposes it on the
// terminal, over websocket, or as MCP tools.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/wagiedev/agentbridge"
	"github.com/wagiedev/agentbridge/internal/config"
	"github.com/wagiedev/agentbridge/internal/transcript"
)

var version = "dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// app holds state shared by every subcommand.
type app struct {
	env            *config.Env
	log            *slog.Logger
	runtimeDir     string
	transcriptPath string
}

func newRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "agentbridge",
		Short:         "Supervise an agent runtime over newline-delimited JSON",
		Version:       version,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.runtimeDir, "runtime-dir", "",
		"working directory of the agent runtime (env AGENTBRIDGE_RUNTIME_DIR)")
	root.PersistentFlags().StringVar(&a.transcriptPath, "transcript", "",
		"SQLite file recording every event (env AGENTBRIDGE_TRANSCRIPT)")

	root.AddCommand(
		newRunCommand(a),
		newServeCommand(a),
		newMCPCommand(a),
		newHistoryCommand(a),
	)

	return root
}

func (a *app) load(cmd *cobra.Command) error {
	env, err := config.FromEnv()
	if err != nil {
		return err
	}

	a.env = env
	a.log = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: env.Level()}))

	if a.runtimeDir == "" {
		a.runtimeDir = env.RuntimeDir
	}

	if a.transcriptPath == "" {
		a.transcriptPath = env.TranscriptPath
	}

	return nil
}

// options returns the bridge options from the environment and flags,
// followed by extra.
func (a *app) options(extra ...agentbridge.Option) []agentbridge.Option {
	base := &config.Options{}
	a.env.Apply(base)

	if a.runtimeDir != "" {
		base.RuntimeDir = a.runtimeDir
	}

	return append([]agentbridge.Option{
		agentbridge.WithOptions(base),
		agentbridge.WithLogger(a.log),
	}, extra...)
}

// openTranscript opens the configured transcript, or returns nil if none is
// configured.
func (a *app) openTranscript(ctx context.Context) (*transcript.Store, error) {
	if a.transcriptPath == "" {
		return nil, nil
	}

	store, err := transcript.Open(ctx, a.log, a.transcriptPath)
	if err != nil {
		return nil, fmt.Errorf("open transcript: %w", err)
	}

	return store, nil
}

func (a *app) closeTranscript(store *transcript.Store) {
	if store == nil {
		return
	}

	if err := store.Close(); err != nil {
		a.log.Warn("failed to close transcript", "error", err)
	}
}
