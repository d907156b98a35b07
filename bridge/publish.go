// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"fmt"

	"github.com/bureau-foundation/xdebugbus/debugvalue"
	"github.com/bureau-foundation/xdebugbus/lib/codec"
	"github.com/bureau-foundation/xdebugbus/messaging"
)

// Event names published to the bus, as understood by the debug
// console on the other side.
const (
	EventLog    = "log"
	EventXdebug = "xdebug"
)

// Publisher receives debugger events bound for the message bus. args
// may contain debugvalue.Value trees; it is the publisher's job to
// render them.
type Publisher interface {
	Publish(ctx context.Context, event string, args []any, meta codec.OrderedMap) error
}

// TopicPublisher publishes every event to one WAMP topic as the
// positional arguments [event, renderedArgs, meta].
type TopicPublisher struct {
	Client *messaging.Client
	Topic  string
}

func (p *TopicPublisher) Publish(ctx context.Context, event string, args []any, meta codec.OrderedMap) error {
	if meta == nil {
		meta = codec.OrderedMap{}
	}
	payload := []any{event, debugvalue.RenderArgs(args), meta}
	if err := p.Client.Publish(ctx, p.Topic, payload, nil); err != nil {
		return fmt.Errorf("bridge: publishing %s: %w", event, err)
	}
	return nil
}
