package main

import (
	"os"
	"os/signal"
	"syscall"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/wagiedev/agentbridge"
	"github.com/wagiedev/agentbridge/internal/mcp"
	"github.com/wagiedev/agentbridge/internal/sink"
)

const eventRingSize = 4096

func newMCPCommand(a *app) *cobra.Command {
	var spawn bool

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Expose the agent commands as MCP tools on stdio",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			store, err := a.openTranscript(ctx)
			if err != nil {
				return err
			}
			defer a.closeTranscript(store)

			ring := sink.NewRing(eventRingSize)

			sinks := sink.Fanout{ring}
			if store != nil {
				sinks = append(sinks, store)
			}

			b := agentbridge.NewBridge(a.options(agentbridge.WithSink(sinks))...)

			defer func() {
				if err := b.Close(); err != nil {
					a.log.Warn("failed to close bridge", "error", err)
				}
			}()

			if spawn {
				if _, err := b.Spawn(ctx); err != nil {
					return err
				}
			}

			server := mcp.NewServer(a.log, "agentbridge", version)
			mcp.RegisterCommands(server, b, ring)

			return server.Serve(ctx, &mcpsdk.StdioTransport{})
		},
	}

	cmd.Flags().BoolVar(&spawn, "spawn", false, "start the agent runtime before serving")

	return cmd
}
