package agentbridge

import (
	"context"
	"iter"

	"github.com/wagiedev/agentbridge/internal/client"
)

// bridge implements Bridge on top of the internal command surface.
type bridge struct {
	*client.Bridge
}

// Compile-time verification that bridge implements Bridge.
var _ Bridge = (*bridge)(nil)

func newBridge(options *Options) *bridge {
	return &bridge{Bridge: client.New(options)}
}

// SendAll implements Bridge.
func (b *bridge) SendAll(ctx context.Context, requests iter.Seq[Request]) error {
	for req := range requests {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := b.Send(ctx, req); err != nil {
			return err
		}
	}

	return nil
}

// ProcessID implements Bridge.
func (b *bridge) ProcessID() string {
	if p := b.Process(); p != nil {
		return p.ID()
	}

	return ""
}
