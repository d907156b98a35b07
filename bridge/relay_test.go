// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/bureau-foundation/xdebugbus/lib/testutil"
)

func readExactly(t *testing.T, conn net.Conn, n int) string {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(testutil.Timeout)); err != nil {
		t.Fatalf("SetReadDeadline: %v", err)
	}
	buffer := make([]byte, n)
	if _, err := io.ReadFull(conn, buffer); err != nil {
		t.Fatalf("reading %d bytes: %v", n, err)
	}
	return string(buffer)
}

func TestRelayFlushesQueueInOrder(t *testing.T) {
	t.Parallel()

	listener := testutil.Listen(t)
	relay := NewRelaySession(nil)
	if relay.Status() != RelayUnattempted {
		t.Fatalf("initial status: got %s", relay.Status())
	}

	chunk := []byte("one|")
	relay.Forward(chunk)
	// The queued chunk is a copy.
	copy(chunk, "XXXX")
	relay.Forward([]byte("two|"))

	if err := relay.Connect(context.Background(), &net.Dialer{}, listener.Addr().String()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer relay.Close()
	if relay.Status() != RelayEstablished {
		t.Fatalf("status after Connect: got %s", relay.Status())
	}
	ide := testutil.Accept(t, listener)

	relay.Forward([]byte("three"))
	if got := readExactly(t, ide, len("one|two|three")); got != "one|two|three" {
		t.Errorf("relayed bytes: got %q", got)
	}
}

func TestRelayDialFailureDropsEverything(t *testing.T) {
	t.Parallel()

	listener := testutil.Listen(t)
	address := listener.Addr().String()
	listener.Close()

	relay := NewRelaySession(nil)
	relay.Forward([]byte("queued"))
	if err := relay.Connect(context.Background(), &net.Dialer{Timeout: time.Second}, address); err == nil {
		t.Fatal("Connect to a closed port succeeded")
	}
	if relay.Status() != RelayFailed {
		t.Fatalf("status: got %s, want failed", relay.Status())
	}
	// Dropped silently.
	relay.Forward([]byte("after"))

	if err := relay.Connect(context.Background(), &net.Dialer{}, address); err == nil {
		t.Error("second Connect should be refused")
	}
}

type chanWriter chan []byte

func (w chanWriter) Write(p []byte) (int, error) {
	w <- append([]byte(nil), p...)
	return len(p), nil
}

func TestRelayReverseCopiesIDEBytes(t *testing.T) {
	t.Parallel()

	listener := testutil.Listen(t)
	relay := NewRelaySession(nil)
	if err := relay.Connect(context.Background(), &net.Dialer{}, listener.Addr().String()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	ide := testutil.Accept(t, listener)

	debugger := make(chan []byte, 4)
	reversed := make(chan struct{})
	go func() {
		defer close(reversed)
		relay.Reverse(chanWriter(debugger))
	}()

	if _, err := ide.Write([]byte("step_into -i 1\x00")); err != nil {
		t.Fatalf("ide write: %v", err)
	}
	if got := string(testutil.Receive(t, debugger, "reversed command")); got != "step_into -i 1\x00" {
		t.Errorf("reversed bytes: got %q", got)
	}

	ide.Close()
	testutil.WaitClosed(t, reversed, "Reverse to return")
	if relay.Status() != RelayFailed {
		t.Errorf("status after IDE hung up: got %s, want failed", relay.Status())
	}
}

func TestRelayReverseWithoutConnection(t *testing.T) {
	t.Parallel()

	relay := NewRelaySession(nil)
	done := make(chan struct{})
	go func() {
		defer close(done)
		relay.Reverse(io.Discard)
	}()
	testutil.WaitClosed(t, done, "Reverse on an unconnected relay")
}
