package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wagiedev/agentbridge"
)

func newRunCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run [message...]",
		Short: "Ask the agent one question, or chat interactively when no message is given",
		Long: `Ask the agent one question, or chat interactively when no message is given.

In interactive mode each line is sent as a user message. Lines starting
with a slash are commands:

  /clear          clear the current conversation
  /interrupt      stop the request in progress
  /list           list stored conversations
  /new            start a fresh conversation
  /load <id>      switch to a stored conversation
  /delete <id>    delete a stored conversation
  /quit           exit`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			store, err := a.openTranscript(ctx)
			if err != nil {
				return err
			}
			defer a.closeTranscript(store)

			opts := a.options()
			if store != nil {
				opts = append(opts, agentbridge.WithSink(store))
			}

			return agentbridge.WithBridge(ctx, func(b agentbridge.Bridge) error {
				if len(args) > 0 {
					return ask(ctx, cmd.OutOrStdout(), b, strings.Join(args, " "))
				}

				return chat(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), b)
			}, opts...)
		},
	}
}

// ask sends one message and prints its responses.
func ask(ctx context.Context, out io.Writer, b agentbridge.Bridge, text string) error {
	for resp, err := range b.Ask(ctx, text, nil) {
		if err != nil {
			return err
		}

		if err := printResponse(out, resp); err != nil {
			return err
		}
	}

	return nil
}

// chat reads lines from in until end of input or /quit and prints every
// event the runtime produces.
func chat(ctx context.Context, in io.Reader, out io.Writer, b agentbridge.Bridge) error {
	out = &lockedWriter{w: out}

	sub := b.SubscribeQueue(nil)
	defer b.Unsubscribe(sub)

	printed := make(chan struct{})

	go func() {
		defer close(printed)

		for ev := range sub.Events(ctx) {
			if resp, ok := ev.(agentbridge.Response); ok {
				_ = printResponse(out, resp)
			}
		}
	}()

	scanner := bufio.NewScanner(in)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if line == "/quit" {
			break
		}

		if err := dispatch(ctx, b, line); err != nil {
			fmt.Fprintln(out, "error:", err)
		}
	}

	b.Unsubscribe(sub)
	<-printed

	return scanner.Err()
}

// dispatch sends line as a command or a user message.
func dispatch(ctx context.Context, b agentbridge.Bridge, line string) error {
	if !strings.HasPrefix(line, "/") {
		_, err := b.SendMessage(ctx, "", line, nil)

		return err
	}

	name, arg, _ := strings.Cut(strings.TrimPrefix(line, "/"), " ")
	arg = strings.TrimSpace(arg)

	var err error

	switch name {
	case "clear":
		_, err = b.ClearHistory(ctx)
	case "interrupt":
		_, err = b.Interrupt(ctx)
	case "list":
		_, err = b.ListConversations(ctx)
	case "new":
		_, err = b.NewConversation(ctx)
	case "load":
		_, err = b.LoadConversation(ctx, arg)
	case "delete":
		_, err = b.DeleteConversation(ctx, arg)
	default:
		err = fmt.Errorf("unknown command /%s", name)
	}

	return err
}

// printResponse renders a response for the terminal.
func printResponse(out io.Writer, resp agentbridge.Response) error {
	var err error

	switch r := resp.(type) {
	case *agentbridge.Token:
		_, err = fmt.Fprint(out, r.Token)
	case *agentbridge.ToolUse:
		_, err = fmt.Fprintf(out, "\n[tool] %s\n", r.Data)
	case *agentbridge.ToolResult:
		_, err = fmt.Fprintf(out, "[result] %s\n", r.Data)
	case *agentbridge.Done:
		if len(r.Data) > 0 {
			_, err = fmt.Fprintf(out, "\n%s\n", r.Data)
		} else {
			_, err = fmt.Fprintln(out)
		}
	case *agentbridge.Error:
		_, err = fmt.Fprintf(out, "\nagent error: %s\n", r.Error)
	}

	return err
}

// lockedWriter serializes writes from the printer and the input loop.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.w.Write(p)
}
