// Package agentbridge supervises a child agent runtime and speaks to it over
// newline-delimited JSON on its standard streams.
//
// The bridge starts the runtime as a child process, writes requests to its
// standard input one line at a time, and turns every line the child writes
// into an event: structured responses from standard output, and log events
// for everything else. Events are delivered to a Sink and to any number of
// subscribers.
//
// # Basic Usage
//
// For a single question, use the Query function:
//
//	for resp, err := range agentbridge.Query(ctx, "What is 2+2?") {
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    if tok, ok := resp.(*agentbridge.Token); ok {
//	        fmt.Print(tok.Token)
//	    }
//	}
//
// # Interactive Sessions
//
// For a long-lived runtime, use NewBridge or the WithBridge helper:
//
//	err := agentbridge.WithBridge(ctx, func(b agentbridge.Bridge) error {
//	    for resp, err := range b.Ask(ctx, "Hello", nil) {
//	        if err != nil {
//	            return err
//	        }
//	        // process response...
//	    }
//
//	    _, err := b.ListConversations(ctx)
//	    return err
//	},
//	    agentbridge.WithLogger(slog.Default()),
//	    agentbridge.WithRuntimeDir("./agent-runtime"),
//	)
//
// # Events
//
// Every request carries an id, and the runtime echoes that id on each
// response it produces. Ask correlates responses for you. To observe the
// raw stream, range over Bridge.Events or install a Sink with WithSink.
// Lines the child writes that are not responses arrive as *LogEvent with
// their source stream.
//
// # Error Handling
//
// Failures are reported as typed errors:
//
//	if _, err := b.Spawn(ctx); err != nil {
//	    if notFound, ok := errors.AsType[*agentbridge.RuntimeNotFoundError](err); ok {
//	        log.Printf("runtime not found, searched %v", notFound.SearchedPaths)
//	    }
//	}
//
// Commands sent while no child is running return ErrAgentNotRunning.
package agentbridge
