// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bureau-foundation/xdebugbus/dbgp"
	"github.com/bureau-foundation/xdebugbus/lib/codec"
	"github.com/bureau-foundation/xdebugbus/lib/logging"
	"github.com/bureau-foundation/xdebugbus/lib/netutil"
	"github.com/bureau-foundation/xdebugbus/messaging"
)

const (
	defaultRelayTimeout = time.Second
	publishTimeout      = 5 * time.Second
)

// Bridge accepts debugger engine connections and publishes what they
// report to the message bus.
type Bridge struct {
	// ListenAddr is the TCP address engines connect to (e.g. "127.0.0.1:9000").
	ListenAddr string

	// IDEKey is sent to the DBGp proxy with proxyinit.
	IDEKey string

	// ProxyAddr, when set, is the DBGp proxy to register with once the
	// listener is up.
	ProxyAddr string

	// RelayAddr, when set, receives a mirror of every engine connection.
	RelayAddr string

	// RelayTimeout bounds the relay dial. Zero selects one second.
	RelayTimeout time.Duration

	// TransactionPrefix is prepended to the transaction ids of commands
	// the bridge sends. Empty selects a random prefix per connection.
	TransactionPrefix string

	// Publisher receives the events. Required.
	Publisher Publisher

	// Metrics receives counters. If nil, collectors are created on a
	// private registry.
	Metrics *Metrics

	// Logger receives structured log output. If nil, slog.Default() is
	// used.
	Logger *slog.Logger

	registry    *Registry
	listener    net.Listener
	ctx         context.Context
	cancel      context.CancelFunc
	done        chan struct{}
	connections sync.WaitGroup

	mu     sync.Mutex
	active map[*dbgp.Conn]struct{}
}

// logger returns the configured logger or the default.
func (b *Bridge) logger() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return slog.Default()
}

// Registry returns the app id table. Valid after Start.
func (b *Bridge) Registry() *Registry {
	return b.registry
}

// Start binds the listener and begins accepting engine connections in
// the background. It returns an error only if binding fails. The
// bridge runs until Stop is called or ctx is cancelled.
func (b *Bridge) Start(ctx context.Context) error {
	if b.ListenAddr == "" {
		return fmt.Errorf("bridge: ListenAddr is required")
	}
	if b.Publisher == nil {
		return fmt.Errorf("bridge: Publisher is required")
	}
	if b.Metrics == nil {
		b.Metrics = NewMetrics(prometheus.NewRegistry())
	}

	listener, err := net.Listen("tcp", b.ListenAddr)
	if err != nil {
		return fmt.Errorf("bridge: failed to listen on %s: %w", b.ListenAddr, err)
	}

	b.listener = listener
	b.registry = NewRegistry()
	b.active = make(map[*dbgp.Conn]struct{})

	b.ctx, b.cancel = context.WithCancel(ctx)
	b.done = make(chan struct{})

	// The registration goroutine joins connections before acceptLoop
	// can reach connections.Wait.
	if b.ProxyAddr != "" {
		registration := ProxyRegistration{
			Address: b.ProxyAddr,
			Port:    listener.Addr().(*net.TCPAddr).Port,
			IDEKey:  b.IDEKey,
			Logger:  b.logger(),
		}
		b.connections.Add(1)
		go func() {
			defer b.connections.Done()
			if err := registration.Register(b.ctx); err != nil && !errors.Is(err, context.Canceled) {
				b.logger().Error("dbgp proxy registration abandoned", "error", err)
			}
		}()
	}

	go func() {
		defer close(b.done)
		b.acceptLoop(b.ctx)
	}()

	logging.Notice(b.logger(), "bridge started",
		"listen_addr", listener.Addr().String(),
		"relay_addr", b.RelayAddr,
		"proxy_addr", b.ProxyAddr,
	)
	return nil
}

// Addr returns the listener's address, useful when binding to port 0.
// Returns nil if the bridge has not been started.
func (b *Bridge) Addr() net.Addr {
	if b.listener == nil {
		return nil
	}
	return b.listener.Addr()
}

// Stop shuts down the bridge: it closes the listener and every engine
// connection, then waits for their goroutines to finish.
func (b *Bridge) Stop() {
	if b.cancel != nil {
		b.cancel()
	}
	if b.listener != nil {
		b.listener.Close()
	}
	b.mu.Lock()
	for conn := range b.active {
		conn.Close()
	}
	b.mu.Unlock()
	if b.done != nil {
		<-b.done
	}
}

// Wait blocks until the bridge has stopped.
func (b *Bridge) Wait() {
	if b.done != nil {
		<-b.done
	}
}

// acceptLoop accepts connections and serves them. It waits for all
// in-flight connection goroutines to finish before returning, so that
// closing the done channel signals full quiescence.
func (b *Bridge) acceptLoop(ctx context.Context) {
	var connectionCount int64

	for {
		connection, err := b.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				b.connections.Wait()
				return
			default:
				b.logger().Error("accept failed", "error", err)
				continue
			}
		}

		connectionCount++
		connectionID := connectionCount
		b.connections.Add(1)
		go func() {
			defer b.connections.Done()
			b.handleConnection(ctx, connection, connectionID)
		}()
	}
}

// handleConnection runs one engine connection: dispatch is paused until
// the relay is either connected or given up on.
func (b *Bridge) handleConnection(ctx context.Context, netConn net.Conn, connectionID int64) {
	logger := b.logger().With("connection_id", connectionID)
	logging.Notice(logger, "debugger connection accepted", "remote_addr", netConn.RemoteAddr())
	b.Metrics.ConnectionsAccepted.Inc()
	b.Metrics.ConnectionsActive.Inc()
	defer b.Metrics.ConnectionsActive.Dec()

	options := dbgp.Options{
		Role:              "debugger",
		TransactionIDs:    true,
		TransactionPrefix: b.transactionPrefix(),
		Logger:            logger,
	}
	var relay *RelaySession
	if b.RelayAddr != "" {
		relay = NewRelaySession(logger.With("relay_addr", b.RelayAddr))
		options.Tap = relay.Forward
	}

	conn := dbgp.NewConn(netConn, options)
	conn.Pause()
	if !b.track(conn) {
		conn.Close()
		return
	}
	defer b.untrack(conn)

	served := make(chan error, 1)
	go func() {
		served <- conn.Serve(b)
	}()

	var reverse sync.WaitGroup
	if relay != nil {
		dialer := &net.Dialer{Timeout: b.relayTimeout()}
		if err := relay.Connect(ctx, dialer, b.RelayAddr); err != nil {
			logger.Error("relay unavailable, continuing without it", "error", err, "timed_out", netutil.IsTimeout(err))
			b.Metrics.RelayOutcomes.WithLabelValues(relayFailed).Inc()
		} else {
			logging.Notice(logger, "relay connected")
			b.Metrics.RelayOutcomes.WithLabelValues(relayConnected).Inc()
			reverse.Add(1)
			go func() {
				defer reverse.Done()
				relay.Reverse(conn)
			}()
		}
	} else {
		b.Metrics.RelayOutcomes.WithLabelValues(relayDisabled).Inc()
	}
	conn.Resume()

	if err := <-served; err != nil {
		logger.Warn("debugger connection ended with error", "error", err)
	}
	if relay != nil {
		relay.Close()
		reverse.Wait()
	}
}

func (b *Bridge) transactionPrefix() string {
	if b.TransactionPrefix != "" {
		return b.TransactionPrefix
	}
	return uuid.NewString()[:8] + "."
}

func (b *Bridge) relayTimeout() time.Duration {
	if b.RelayTimeout > 0 {
		return b.RelayTimeout
	}
	return defaultRelayTimeout
}

// track records a live connection so Stop can close it. It refuses
// once the bridge is stopping.
func (b *Bridge) track(conn *dbgp.Conn) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ctx.Err() != nil {
		return false
	}
	b.active[conn] = struct{}{}
	return true
}

func (b *Bridge) untrack(conn *dbgp.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.active, conn)
}

// HandleEvent routes one control event from the bus to its debugger
// connection. It has the shape of messaging.EventHandler.
func (b *Bridge) HandleEvent(event messaging.Event) {
	logger := b.logger().With("topic", event.Topic)
	logger.Info("bus command received", "args", logJSON(event.Args))

	command, err := ParseCommand(event.Args)
	if err != nil {
		logger.Warn("dropping bus command", "error", err)
		b.Metrics.CommandsRouted.WithLabelValues("malformed").Inc()
		return
	}
	if err := b.registry.Send(command); err != nil {
		if errors.Is(err, ErrUnknownApp) {
			logger.Warn("bus command for unknown app id", "app_id", command.AppID, "command", command.Name)
			b.Metrics.CommandsRouted.WithLabelValues("unknown_app").Inc()
			return
		}
		logger.Error("forwarding bus command failed", "app_id", command.AppID, "command", command.Name, "error", err)
		b.Metrics.CommandsRouted.WithLabelValues("failed").Inc()
		return
	}
	b.Metrics.CommandsRouted.WithLabelValues("sent").Inc()
}

// publish hands one event to the Publisher. Failures are logged; an
// event is never retried.
func (b *Bridge) publish(conn *dbgp.Conn, event string, args []any, meta codec.OrderedMap) {
	ctx, cancel := context.WithTimeout(b.ctx, publishTimeout)
	defer cancel()

	err := b.Publisher.Publish(ctx, event, args, meta)
	switch {
	case err == nil:
		b.Metrics.EventsPublished.WithLabelValues(event, "published").Inc()
	case errors.Is(err, messaging.ErrNotConnected):
		b.logger().Warn("message bus not connected, event dropped", "event", event, "app_id", conn.AppID())
		b.Metrics.EventsPublished.WithLabelValues(event, "dropped").Inc()
	default:
		b.logger().Error("publishing event failed", "event", event, "app_id", conn.AppID(), "error", err)
		b.Metrics.EventsPublished.WithLabelValues(event, "failed").Inc()
	}
}

// appIDValue renders an app id for event metadata.
func appIDValue(conn *dbgp.Conn) any {
	if appID := conn.AppID(); appID != "" {
		return appID
	}
	return nil
}

// lineNumber parses a lineno attribute; junk reads as 0.
func lineNumber(text string) int {
	line, err := strconv.Atoi(text)
	if err != nil {
		return 0
	}
	return line
}
