// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"testing"
	"time"
)

// Timeout bounds every wait performed by this package.
const Timeout = 5 * time.Second

// Receive returns the next value from ch, failing the test after
// Timeout or when ch is closed first.
//
//	message := testutil.Receive(t, handler.messages, "init frame")
func Receive[T any](t testing.TB, ch <-chan T, what string) T {
	t.Helper()
	select {
	case value, ok := <-ch:
		if !ok {
			t.Fatalf("channel closed while waiting for %s", what)
		}
		return value
	case <-time.After(Timeout):
		t.Fatalf("timed out after %v waiting for %s", Timeout, what)
	}
	panic("unreachable")
}

// RequireNone fails the test if ch already holds a value. It does not
// wait: callers use it after a synchronization point that guarantees
// any value would already have been delivered.
func RequireNone[T any](t testing.TB, ch <-chan T, what string) {
	t.Helper()
	select {
	case value, ok := <-ch:
		if ok {
			t.Fatalf("unexpected %s: %v", what, value)
		}
	default:
	}
}

// WaitClosed waits for ch to be closed or to deliver a value.
func WaitClosed(t testing.TB, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(Timeout):
		t.Fatalf("timed out after %v waiting for %s", Timeout, what)
	}
}

// WaitFor polls condition until it holds, failing the test after
// Timeout. Use it for state that is not signalled on a channel.
func WaitFor(t testing.TB, what string, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(Timeout)
	for !condition() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out after %v waiting for %s", Timeout, what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func timeAfter() <-chan time.Time {
	return time.After(Timeout)
}
