package main

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wagiedev/agentbridge"
	"github.com/wagiedev/agentbridge/internal/server"
)

const shutdownTimeout = 5 * time.Second

func newServeCommand(a *app) *cobra.Command {
	var (
		addr    string
		origins []string
		spawn   bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve agent events and commands over websocket",
		Long: `Serve agent events and commands over websocket at /ws.

Every event is sent to every client as {"event": topic, "payload": event}.
Clients send commands as {"command": name, ...} and receive a
command_result reply. /healthz reports the runtime state.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if addr == "" {
				addr = a.env.ListenAddr
			}

			listener, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("listen on %s: %w", addr, err)
			}

			return a.serve(ctx, listener, origins, spawn)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (env AGENTBRIDGE_LISTEN_ADDR)")
	cmd.Flags().StringSliceVar(&origins, "origin", nil, "allowed browser origins")
	cmd.Flags().BoolVar(&spawn, "spawn", true, "start the agent runtime immediately")

	return cmd
}

func (a *app) serve(ctx context.Context, listener net.Listener, origins []string, spawn bool) error {
	store, err := a.openTranscript(ctx)
	if err != nil {
		return err
	}
	defer a.closeTranscript(store)

	opts := a.options()
	if store != nil {
		opts = append(opts, agentbridge.WithSink(store))
	}

	b := agentbridge.NewBridge(opts...)

	defer func() {
		if err := b.Close(); err != nil {
			a.log.Warn("failed to close bridge", "error", err)
		}
	}()

	hub := server.NewHub(a.log, b, func(origin string) bool {
		return slices.Contains(origins, origin)
	})
	defer hub.Close()

	sub := b.SubscribeQueue(nil)

	go func() {
		for ev := range sub.Events(ctx) {
			hub.Publish(ev)
		}
	}()

	if spawn {
		if _, err := b.Spawn(ctx); err != nil {
			return err
		}
	}

	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"state":      b.State().String(),
			"process_id": b.ProcessID(),
			"clients":    hub.ClientCount(),
		})
	})

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		errCh <- srv.Serve(listener)
	}()

	a.log.Info("Serving websocket", "addr", listener.Addr().String())

	select {
	case err := <-errCh:
		if !stderrors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}

		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	hub.Close()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	return nil
}
