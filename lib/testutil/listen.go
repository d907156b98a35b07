// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"net"
	"testing"
)

// Listen opens a TCP listener on an ephemeral loopback port. The
// listener is closed when the test completes.
func Listen(t testing.TB) net.Listener {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listening on loopback: %v", err)
	}
	t.Cleanup(func() {
		_ = listener.Close()
	})
	return listener
}

// Accept waits for one connection on listener, failing the test after
// Timeout.
func Accept(t testing.TB, listener net.Listener) net.Conn {
	t.Helper()
	accepted := make(chan net.Conn, 1)
	failed := make(chan error, 1)
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			failed <- err
			return
		}
		accepted <- conn
	}()
	select {
	case conn := <-accepted:
		t.Cleanup(func() {
			_ = conn.Close()
		})
		return conn
	case err := <-failed:
		t.Fatalf("accept: %v", err)
	case <-timeAfter():
		t.Fatalf("timed out after %v waiting for a connection", Timeout)
	}
	panic("unreachable")
}
