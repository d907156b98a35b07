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
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/bureau-foundation/xdebugbus/dbgp"
)

const (
	proxyDialTimeout  = 5 * time.Second
	proxyReplyTimeout = 5 * time.Second
)

// ProxyRegistration announces the bridge's listen port and IDE key to
// an upstream DBGp proxy, so the proxy hands matching engine sessions
// to the bridge.
type ProxyRegistration struct {
	// Address is the proxy's IDE registration host:port.
	Address string
	// Port is the port the bridge listens on for engines.
	Port int
	// IDEKey selects which engine sessions the proxy forwards.
	IDEKey string
	// InitialInterval is the first retry delay. Zero selects 500ms.
	InitialInterval time.Duration
	// MaxInterval caps the retry backoff. Zero selects 30s.
	MaxInterval time.Duration
	Logger      *slog.Logger
}

// errProxyRejected marks a registration the proxy refused. Retrying
// would not change the answer.
var errProxyRejected = errors.New("bridge: proxy rejected registration")

// Register sends proxyinit, retrying with exponential backoff until the
// proxy answers, rejects the registration or ctx is done.
func (p ProxyRegistration) Register(ctx context.Context) error {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("proxy", p.Address)

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = 0
	if p.InitialInterval > 0 {
		policy.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		policy.MaxInterval = p.MaxInterval
	}

	operation := func() error {
		err := p.registerOnce(ctx, logger)
		if errors.Is(err, errProxyRejected) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		logger.Warn("proxy registration failed, retrying", "error", err, "retry_in", wait)
	}
	if err := backoff.RetryNotify(operation, backoff.WithContext(policy, ctx), notify); err != nil {
		return err
	}
	logger.Info("registered with dbgp proxy", "port", p.Port, "ide_key", p.IDEKey)
	return nil
}

// proxyReply captures the proxy's answer to proxyinit.
type proxyReply struct {
	replies chan *dbgp.Message
	closed  chan struct{}
}

func (r *proxyReply) HandleMessage(_ *dbgp.Conn, message *dbgp.Message) {
	select {
	case r.replies <- message:
	default:
	}
}

func (r *proxyReply) HandleClose(*dbgp.Conn) {
	close(r.closed)
}

// check interprets the proxy's answer.
func (r *proxyReply) check(reply *dbgp.Message) error {
	if reply.Attr("success") == "0" {
		_, message, _ := reply.Error()
		return fmt.Errorf("%w: %s", errProxyRejected, message)
	}
	return nil
}

func (p ProxyRegistration) registerOnce(ctx context.Context, logger *slog.Logger) error {
	dialer := net.Dialer{Timeout: proxyDialTimeout}
	netConn, err := dialer.DialContext(ctx, "tcp", p.Address)
	if err != nil {
		return fmt.Errorf("bridge: connecting to proxy: %w", err)
	}

	conn := dbgp.NewConn(netConn, dbgp.Options{Role: "proxy", Logger: logger})
	defer conn.Close()
	handler := &proxyReply{replies: make(chan *dbgp.Message, 1), closed: make(chan struct{})}
	go conn.Serve(handler)

	args := dbgp.Args{
		{Key: "p", Value: strconv.Itoa(p.Port)},
		{Key: "k", Value: p.IDEKey},
	}
	if _, err := conn.Send("proxyinit", args, nil, nil); err != nil {
		return err
	}

	timer := time.NewTimer(proxyReplyTimeout)
	defer timer.Stop()
	select {
	case reply := <-handler.replies:
		return handler.check(reply)
	case <-handler.closed:
		// The answer, if any, was dispatched before the close.
		select {
		case reply := <-handler.replies:
			return handler.check(reply)
		default:
			return errors.New("bridge: proxy closed the connection without answering proxyinit")
		}
	case <-timer.C:
		return fmt.Errorf("bridge: proxy did not answer proxyinit within %s", proxyReplyTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}
