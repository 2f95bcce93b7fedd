package engine

import (
	"context"

	"github.com/zapflow/zapflow/model"
)

// Sender is the injected WhatsApp send capability. The transport session
// lifecycle lives outside the core.
type Sender interface {
	Send(ctx context.Context, msg model.OutboundMessage) error
}

type SendFunc func(ctx context.Context, msg model.OutboundMessage) error

func (f SendFunc) Send(ctx context.Context, msg model.OutboundMessage) error {
	return f(ctx, msg)
}
