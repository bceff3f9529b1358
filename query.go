package agentbridge

import (
	"context"
	"iter"
)

// Query starts an agent runtime, asks it a single question, and yields the
// responses to it. The runtime is stopped when iteration ends.
//
// Example usage:
//
//	for resp, err := range agentbridge.Query(ctx, "What is 2+2?") {
//	    if err != nil {
//	        return err
//	    }
//
//	    if tok, ok := resp.(*agentbridge.Token); ok {
//	        fmt.Print(tok.Token)
//	    }
//	}
func Query(ctx context.Context, prompt string, opts ...Option) iter.Seq2[Response, error] {
	return func(yield func(Response, error) bool) {
		options := applyOptions(opts)

		log := options.Logger
		if log == nil {
			log = NopLogger()
		}

		b := newBridge(options)

		defer func() {
			if err := b.Close(); err != nil {
				log.Warn("failed to close bridge", "error", err)
			}
		}()

		if _, err := b.Spawn(ctx); err != nil {
			yield(nil, err)

			return
		}

		for resp, err := range b.Ask(ctx, prompt, nil) {
			if !yield(resp, err) {
				return
			}
		}
	}
}
