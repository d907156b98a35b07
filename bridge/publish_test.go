// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"errors"
	"testing"

	"github.com/bureau-foundation/xdebugbus/messaging"
)

func TestTopicPublisherWhileDisconnected(t *testing.T) {
	t.Parallel()

	client, err := messaging.NewClient(messaging.ClientConfig{URL: "ws://127.0.0.1:1/", Realm: "debug"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	publisher := &TopicPublisher{Client: client, Topic: "bdk.debug.xdebug"}
	err = publisher.Publish(context.Background(), EventLog, []any{"globals"}, nil)
	if !errors.Is(err, messaging.ErrNotConnected) {
		t.Errorf("Publish: got %v, want ErrNotConnected", err)
	}
}
