// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/bureau-foundation/xdebugbus/lib/netutil"
)

// RelayStatus is the lifecycle state of a RelaySession.
type RelayStatus int

const (
	// RelayUnattempted: no dial has started yet. Chunks are queued.
	RelayUnattempted RelayStatus = iota
	// RelayConnecting: the dial is in flight. Chunks are queued.
	RelayConnecting
	// RelayEstablished: chunks are written straight through.
	RelayEstablished
	// RelayFailed: the dial failed or the target went away. Chunks are
	// dropped.
	RelayFailed
)

func (s RelayStatus) String() string {
	switch s {
	case RelayUnattempted:
		return "unattempted"
	case RelayConnecting:
		return "connecting"
	case RelayEstablished:
		return "established"
	case RelayFailed:
		return "failed"
	default:
		return fmt.Sprintf("RelayStatus(%d)", int(s))
	}
}

// RelaySession mirrors the bytes of one debugger connection to a second
// listener, typically an IDE. Bytes that arrive before the relay
// connection is up are queued and flushed, in order, the moment it is.
type RelaySession struct {
	logger *slog.Logger

	// mu is held across writes to target so that a flush and the
	// chunks arriving during it cannot interleave.
	mu     sync.Mutex
	status RelayStatus
	queue  [][]byte
	queued int
	target net.Conn
}

// NewRelaySession returns a session in the RelayUnattempted state.
func NewRelaySession(logger *slog.Logger) *RelaySession {
	if logger == nil {
		logger = slog.Default()
	}
	return &RelaySession{logger: logger}
}

// Status returns the current state.
func (r *RelaySession) Status() RelayStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Forward mirrors one chunk read from the debugger. It has the shape of
// dbgp.Options.Tap; chunk is copied before being queued.
func (r *RelaySession) Forward(chunk []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.status {
	case RelayUnattempted, RelayConnecting:
		r.queue = append(r.queue, append([]byte(nil), chunk...))
		r.queued += len(chunk)
		r.logger.Debug("relay queueing", "bytes", len(chunk), "queued_bytes", r.queued)
	case RelayEstablished:
		if _, err := r.target.Write(chunk); err != nil {
			r.failLocked(err)
		}
	}
}

// Connect dials address and flushes the queue. On failure, including
// the dial timeout, the session moves to RelayFailed and the queue is
// discarded; the error is returned for logging only.
func (r *RelaySession) Connect(ctx context.Context, dialer *net.Dialer, address string) error {
	r.mu.Lock()
	if r.status != RelayUnattempted {
		status := r.status
		r.mu.Unlock()
		return fmt.Errorf("bridge: relay already %s", status)
	}
	r.status = RelayConnecting
	r.mu.Unlock()

	r.logger.Info("relay connecting", "address", address)
	target, err := dialer.DialContext(ctx, "tcp", address)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.status = RelayFailed
		r.queue = nil
		r.queued = 0
		return fmt.Errorf("bridge: relay to %s: %w", address, err)
	}
	if r.status == RelayFailed {
		// Closed while dialing.
		target.Close()
		return fmt.Errorf("bridge: relay to %s: session closed", address)
	}

	for len(r.queue) > 0 {
		chunk := r.queue[0]
		r.queue[0] = nil
		r.queue = r.queue[1:]
		if _, err := target.Write(chunk); err != nil {
			target.Close()
			r.status = RelayFailed
			r.queue = nil
			r.queued = 0
			return fmt.Errorf("bridge: relay to %s: flushing queue: %w", address, err)
		}
	}
	r.queue = nil
	r.queued = 0
	r.target = target
	r.status = RelayEstablished
	return nil
}

// Reverse copies bytes from the relay target to debugger until either
// side closes, so that commands from the IDE reach the engine. It
// returns immediately unless the session is established.
func (r *RelaySession) Reverse(debugger io.Writer) {
	r.mu.Lock()
	target := r.target
	established := r.status == RelayEstablished
	r.mu.Unlock()
	if !established {
		return
	}

	copied, err := io.Copy(debugger, target)
	if err != nil && !netutil.IsExpectedCloseError(err) {
		r.logger.Warn("relay reverse copy failed", "bytes_copied", copied, "error", err)
	}
	r.logger.Info("relay target closed", "bytes_copied", copied)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status == RelayEstablished {
		r.status = RelayFailed
		r.target.Close()
	}
}

// Close discards the queue and closes the target connection.
func (r *RelaySession) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queue = nil
	r.queued = 0
	if r.target != nil {
		r.target.Close()
	}
	r.status = RelayFailed
}

// failLocked drops the relay after a write error. r.mu must be held.
func (r *RelaySession) failLocked(err error) {
	if !netutil.IsExpectedCloseError(err) {
		r.logger.Warn("relay write failed, relay disabled", "error", err)
	} else {
		r.logger.Info("relay target closed, relay disabled")
	}
	r.target.Close()
	r.status = RelayFailed
}
