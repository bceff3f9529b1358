package agentbridge

import (
	"context"
	"fmt"
)

// WithBridge manages bridge lifecycle with automatic cleanup.
//
// It creates a bridge, spawns the runtime, runs fn, and closes the bridge
// when fn returns. If Close fails, a warning is logged but does not
// override fn's error.
//
// Example usage:
//
//	err := agentbridge.WithBridge(ctx, func(b agentbridge.Bridge) error {
//	    for resp, err := range b.Ask(ctx, "Hello", nil) {
//	        if err != nil {
//	            return err
//	        }
//	        // process response...
//	    }
//	    return nil
//	},
//	    agentbridge.WithLogger(log),
//	)
func WithBridge(ctx context.Context, fn func(Bridge) error, opts ...Option) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	options := applyOptions(opts)

	log := options.Logger
	if log == nil {
		log = NopLogger()
	}

	b := newBridge(options)

	defer func() {
		if closeErr := b.Close(); closeErr != nil {
			log.Warn("failed to close bridge", "error", closeErr)
		}
	}()

	if _, err := b.Spawn(ctx); err != nil {
		return fmt.Errorf("failed to spawn agent runtime: %w", err)
	}

	return fn(b)
}
