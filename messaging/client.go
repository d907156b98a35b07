// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"github.com/bureau-foundation/xdebugbus/lib/netutil"
	"github.com/bureau-foundation/xdebugbus/lib/version"
)

const (
	// handshakeTimeout bounds the websocket upgrade plus HELLO/WELCOME.
	handshakeTimeout = 10 * time.Second

	// defaultKeepAlive is the ping period when ClientConfig.KeepAlive is
	// zero. A session that sees neither a message nor a pong for two
	// periods is considered dead.
	defaultKeepAlive = 30 * time.Second

	// goodbyeTimeout bounds the wait for the router's GOODBYE reply.
	goodbyeTimeout = time.Second

	defaultMaxReconnectInterval = 30 * time.Second

	eventQueueSize = 64
)

// ClientConfig holds configuration for creating a Client.
type ClientConfig struct {
	// URL is the router's websocket URL (e.g., "ws://127.0.0.1:9090/").
	URL string
	// Realm is the WAMP realm to join.
	Realm string
	// Serialization is SerializationJSON (default) or SerializationCBOR.
	Serialization string
	// Dialer is used for the websocket upgrade. If nil, a copy of
	// websocket.DefaultDialer is used.
	Dialer *websocket.Dialer
	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
	// MaxReconnectInterval caps the exponential backoff used by Run.
	MaxReconnectInterval time.Duration
	// KeepAlive is the websocket ping period. Zero selects the default;
	// negative disables pings.
	KeepAlive time.Duration
	// Acknowledge asks the router to confirm every publication, so
	// Publish reports router-side rejections.
	Acknowledge bool
}

// Event is one publication delivered to a subscriber.
type Event struct {
	Topic         string
	PublicationID uint64
	Details       map[string]any
	Args          []any
	Kwargs        map[string]any
}

// EventHandler receives events for one subscription. Handlers of a
// session run sequentially on a dedicated goroutine, in arrival order.
// A handler must not wait for an acknowledged Publish: while it runs,
// the event queue stops draining.
type EventHandler func(Event)

// Client is a WAMP v2 publisher and subscriber. It holds at most one
// live session; subscriptions are remembered across sessions and
// re-established after every reconnect.
type Client struct {
	url                  string
	realm                string
	serializer           serializer
	dialer               websocket.Dialer
	logger               *slog.Logger
	maxReconnectInterval time.Duration
	keepAlive            time.Duration
	acknowledge          bool

	mu            sync.Mutex
	session       *session
	subscriptions map[string]*subscription
}

type subscription struct {
	topic   string
	handler EventHandler
}

// NewClient validates config and returns a disconnected client.
func NewClient(config ClientConfig) (*Client, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("messaging: URL is required")
	}
	parsed, err := url.Parse(config.URL)
	if err != nil {
		return nil, fmt.Errorf("messaging: invalid URL %q: %w", config.URL, err)
	}
	if parsed.Scheme != "ws" && parsed.Scheme != "wss" {
		return nil, fmt.Errorf("messaging: URL %q must use ws or wss", config.URL)
	}
	if config.Realm == "" {
		return nil, fmt.Errorf("messaging: Realm is required")
	}
	serializer, err := newSerializer(config.Serialization)
	if err != nil {
		return nil, err
	}

	dialer := *websocket.DefaultDialer
	if config.Dialer != nil {
		dialer = *config.Dialer
	}
	dialer.Subprotocols = []string{serializer.subprotocol()}
	if dialer.HandshakeTimeout == 0 {
		dialer.HandshakeTimeout = handshakeTimeout
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxReconnectInterval := config.MaxReconnectInterval
	if maxReconnectInterval <= 0 {
		maxReconnectInterval = defaultMaxReconnectInterval
	}
	keepAlive := config.KeepAlive
	if keepAlive == 0 {
		keepAlive = defaultKeepAlive
	}

	return &Client{
		url:                  config.URL,
		realm:                config.Realm,
		serializer:           serializer,
		dialer:               dialer,
		logger:               logger.With("realm", config.Realm),
		maxReconnectInterval: maxReconnectInterval,
		keepAlive:            keepAlive,
		acknowledge:          config.Acknowledge,
		subscriptions:        make(map[string]*subscription),
	}, nil
}

// Connected reports whether a session is live.
func (c *Client) Connected() bool {
	return c.current() != nil
}

func (c *Client) current() *session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Connect establishes a session if none is live, and subscribes every
// registered topic on it.
func (c *Client) Connect(ctx context.Context) error {
	if c.current() != nil {
		return nil
	}
	s, err := c.open(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.session = s
	pending := make([]*subscription, 0, len(c.subscriptions))
	for _, sub := range c.subscriptions {
		pending = append(pending, sub)
	}
	c.mu.Unlock()

	for _, sub := range pending {
		if err := s.subscribe(ctx, sub); err != nil {
			s.finish(err)
			return fmt.Errorf("messaging: subscribing %s: %w", sub.topic, err)
		}
	}
	c.logger.Info("wamp session established", "url", c.url, "session_id", s.id)
	return nil
}

// Run keeps the client connected until ctx is cancelled, reconnecting
// with exponential backoff whenever the session ends. It returns nil
// after ctx is cancelled, or the error that made reconnecting pointless
// (the router does not know the realm, or refuses the client).
func (c *Client) Run(ctx context.Context) error {
	for {
		if s := c.current(); s != nil {
			select {
			case <-ctx.Done():
				c.Close()
				return nil
			case <-s.done:
				c.logger.Warn("wamp session lost", "session_id", s.id, "error", s.err)
			}
		}

		policy := backoff.NewExponentialBackOff()
		policy.MaxInterval = c.maxReconnectInterval
		policy.MaxElapsedTime = 0 // Only stop when ctx is cancelled.

		err := backoff.RetryNotify(
			func() error {
				err := c.Connect(ctx)
				if IsError(err, ErrURINoSuchRealm) || IsError(err, ErrURINotAuthorized) {
					return backoff.Permanent(err)
				}
				return err
			},
			backoff.WithContext(policy, ctx),
			func(err error, delay time.Duration) {
				c.logger.Warn("wamp connect failed, retrying", "error", err, "delay", delay)
			},
		)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// Close ends the live session with a GOODBYE. Subscriptions stay
// registered for a later Connect.
func (c *Client) Close() error {
	s := c.current()
	if s == nil {
		return nil
	}
	return s.goodbye()
}

// Subscribe registers handler for topic. With a live session the
// subscription is made immediately and router errors are returned;
// otherwise it is made on the next Connect.
func (c *Client) Subscribe(ctx context.Context, topic string, handler EventHandler) error {
	if handler == nil {
		return fmt.Errorf("messaging: nil handler for %s", topic)
	}
	c.mu.Lock()
	if _, exists := c.subscriptions[topic]; exists {
		c.mu.Unlock()
		return fmt.Errorf("messaging: already subscribed to %s", topic)
	}
	sub := &subscription{topic: topic, handler: handler}
	c.subscriptions[topic] = sub
	s := c.session
	c.mu.Unlock()

	if s == nil {
		return nil
	}
	if err := s.subscribe(ctx, sub); err != nil {
		c.mu.Lock()
		delete(c.subscriptions, topic)
		c.mu.Unlock()
		return fmt.Errorf("messaging: subscribing %s: %w", topic, err)
	}
	return nil
}

// Publish sends one publication. It returns ErrNotConnected while no
// session is live. With Acknowledge set it waits for PUBLISHED.
func (c *Client) Publish(ctx context.Context, topic string, args []any, kwargs map[string]any) error {
	s := c.current()
	if s == nil {
		return ErrNotConnected
	}
	requestID := s.nextRequestID()
	options := map[string]any{}
	if c.acknowledge {
		options["acknowledge"] = true
	}
	message := []any{codePublish, requestID, options, topic}
	if len(args) > 0 || len(kwargs) > 0 {
		if args == nil {
			args = []any{}
		}
		message = append(message, args)
	}
	if len(kwargs) > 0 {
		message = append(message, kwargs)
	}

	if !c.acknowledge {
		if err := s.send(message); err != nil {
			return fmt.Errorf("messaging: publishing to %s: %w", topic, err)
		}
		return nil
	}
	reply, err := s.request(ctx, requestID, message, nil)
	if err != nil {
		return fmt.Errorf("messaging: publishing to %s: %w", topic, err)
	}
	if code, _ := ID(reply[0]); code == codeError {
		return fmt.Errorf("messaging: publishing to %s: %w", topic, errorFromReply(reply))
	}
	return nil
}

// open dials the router and completes the HELLO/WELCOME handshake.
func (c *Client) open(ctx context.Context) (*session, error) {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("messaging: dialing %s: %w", c.url, err)
	}
	if conn.Subprotocol() != c.serializer.subprotocol() {
		conn.Close()
		return nil, fmt.Errorf("messaging: router at %s did not accept subprotocol %s", c.url, c.serializer.subprotocol())
	}

	s := &session{
		client:  c,
		conn:    conn,
		pending: make(map[uint64]*pendingRequest),
		byID:    make(map[uint64]*subscription),
		events:  make(chan delivery, eventQueueSize),
		done:    make(chan struct{}),
	}

	hello := []any{codeHello, c.realm, map[string]any{
		"agent": version.Agent(),
		"roles": map[string]any{
			"publisher":  map[string]any{},
			"subscriber": map[string]any{},
		},
	}}
	if err := s.send(hello); err != nil {
		conn.Close()
		return nil, fmt.Errorf("messaging: sending HELLO: %w", err)
	}

	deadline := time.Now().Add(handshakeTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	conn.SetReadDeadline(deadline)
	reply, err := s.readMessage()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("messaging: waiting for WELCOME: %w", err)
	}
	code, _ := ID(reply[0])
	switch {
	case code == codeWelcome && len(reply) >= 2:
		s.id, _ = ID(reply[1])
	case code == codeAbort && len(reply) >= 3:
		conn.Close()
		reason, _ := reply[2].(string)
		return nil, &Error{URI: reason, Details: dict(reply[1])}
	default:
		conn.Close()
		return nil, &Error{URI: ErrURIProtocolViolation, Details: map[string]any{
			"message": fmt.Sprintf("unexpected message %v in reply to HELLO", reply[0]),
		}}
	}
	conn.SetReadDeadline(time.Time{})

	if c.keepAlive > 0 {
		s.extendDeadline()
		conn.SetPongHandler(func(string) error {
			s.extendDeadline()
			return nil
		})
		go s.ping()
	}
	go s.readLoop()
	go s.dispatchLoop()
	return s, nil
}

type pendingRequest struct {
	reply chan []any
	// subscription is registered under the returned subscription id by
	// the reader, before any EVENT for it can be dispatched.
	subscription *subscription
}

type delivery struct {
	handler EventHandler
	event   Event
}

// session is one joined WAMP session over one websocket.
type session struct {
	client *Client
	conn   *websocket.Conn
	id     uint64

	writeMu sync.Mutex

	mu        sync.Mutex
	requestID uint64
	pending   map[uint64]*pendingRequest
	byID      map[uint64]*subscription
	leaving   bool

	events chan delivery

	done      chan struct{}
	err       error
	closeOnce sync.Once
}

func (s *session) nextRequestID() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requestID++
	return s.requestID
}

func (s *session) send(message []any) error {
	data, err := s.client.serializer.encode(message)
	if err != nil {
		return fmt.Errorf("encoding message: %w", err)
	}
	select {
	case <-s.done:
		return ErrNotConnected
	default:
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(s.client.serializer.frameType(), data)
}

// request sends message and waits for the reply correlated by
// requestID.
func (s *session) request(ctx context.Context, requestID uint64, message []any, sub *subscription) ([]any, error) {
	entry := &pendingRequest{reply: make(chan []any, 1), subscription: sub}
	s.mu.Lock()
	s.pending[requestID] = entry
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.pending, requestID)
		s.mu.Unlock()
	}()

	if err := s.send(message); err != nil {
		return nil, err
	}
	select {
	case reply := <-entry.reply:
		return reply, nil
	case <-s.done:
		return nil, ErrNotConnected
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *session) subscribe(ctx context.Context, sub *subscription) error {
	requestID := s.nextRequestID()
	reply, err := s.request(ctx, requestID, []any{codeSubscribe, requestID, map[string]any{}, sub.topic}, sub)
	if err != nil {
		return err
	}
	if code, _ := ID(reply[0]); code == codeError {
		return errorFromReply(reply)
	}
	s.client.logger.Info("wamp subscribed", "topic", sub.topic)
	return nil
}

func (s *session) readMessage() ([]any, error) {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		message, err := s.client.serializer.decode(data)
		if err != nil || len(message) == 0 {
			s.client.logger.Warn("dropping undecodable wamp message", "bytes", len(data), "error", err)
			continue
		}
		if _, ok := ID(message[0]); !ok {
			s.client.logger.Warn("dropping wamp message without type code", "type", message[0])
			continue
		}
		return message, nil
	}
}

func (s *session) readLoop() {
	for {
		message, err := s.readMessage()
		if err != nil {
			s.finish(err)
			return
		}
		if s.client.keepAlive > 0 {
			s.extendDeadline()
		}
		code, _ := ID(message[0])
		switch code {
		case codeEvent:
			s.handleEvent(message)
		case codeSubscribed, codePublished:
			if len(message) >= 3 {
				requestID, _ := ID(message[1])
				s.resolve(requestID, message)
			}
		case codeError:
			if len(message) >= 5 {
				requestID, _ := ID(message[2])
				s.resolve(requestID, message)
			}
		case codeGoodbye:
			reason, _ := at(message, 2).(string)
			s.mu.Lock()
			leaving := s.leaving
			s.mu.Unlock()
			if !leaving {
				s.send([]any{codeGoodbye, map[string]any{}, ErrURIGoodbyeAndOut})
			}
			s.finish(&Error{URI: reason, Details: dict(at(message, 1))})
			return
		case codeAbort:
			reason, _ := at(message, 2).(string)
			s.finish(&Error{URI: reason, Details: dict(at(message, 1))})
			return
		default:
			s.client.logger.Debug("ignoring wamp message", "code", code)
		}
	}
}

func (s *session) resolve(requestID uint64, message []any) {
	s.mu.Lock()
	entry := s.pending[requestID]
	delete(s.pending, requestID)
	if entry != nil && entry.subscription != nil {
		if code, _ := ID(message[0]); code == codeSubscribed {
			if subscriptionID, ok := ID(message[2]); ok {
				s.byID[subscriptionID] = entry.subscription
			}
		}
	}
	s.mu.Unlock()
	if entry == nil {
		s.client.logger.Debug("wamp reply for unknown request", "request_id", requestID)
		return
	}
	entry.reply <- message
}

// handleEvent queues [EVENT, subscription, publication, details, args?, kwargs?].
func (s *session) handleEvent(message []any) {
	if len(message) < 4 {
		s.client.logger.Warn("dropping short wamp EVENT", "length", len(message))
		return
	}
	subscriptionID, _ := ID(message[1])
	s.mu.Lock()
	sub := s.byID[subscriptionID]
	s.mu.Unlock()
	if sub == nil {
		s.client.logger.Debug("wamp EVENT for unknown subscription", "subscription_id", subscriptionID)
		return
	}
	event := Event{Topic: sub.topic, Details: dict(message[3])}
	event.PublicationID, _ = ID(message[2])
	if len(message) > 4 {
		event.Args = list(message[4])
	}
	if len(message) > 5 {
		event.Kwargs = dict(message[5])
	}
	select {
	case s.events <- delivery{handler: sub.handler, event: event}:
	case <-s.done:
	}
}

func (s *session) dispatchLoop() {
	for {
		select {
		case item := <-s.events:
			item.handler(item.event)
		case <-s.done:
			return
		}
	}
}

func (s *session) extendDeadline() {
	s.conn.SetReadDeadline(time.Now().Add(2 * s.client.keepAlive))
}

func (s *session) ping() {
	ticker := time.NewTicker(s.client.keepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.client.keepAlive))
			if err != nil {
				s.client.logger.Debug("wamp ping failed", "error", err)
			}
		}
	}
}

// goodbye leaves the realm and closes the websocket.
func (s *session) goodbye() error {
	s.mu.Lock()
	s.leaving = true
	s.mu.Unlock()
	err := s.send([]any{codeGoodbye, map[string]any{}, ErrURISystemShutdown})
	if err == nil {
		select {
		case <-s.done:
		case <-time.After(goodbyeTimeout):
		}
	}
	s.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(100*time.Millisecond),
	)
	s.finish(ErrNotConnected)
	if err != nil && !errors.Is(err, ErrNotConnected) && !netutil.IsExpectedCloseError(err) {
		return fmt.Errorf("messaging: sending GOODBYE: %w", err)
	}
	return nil
}

// finish marks the session dead exactly once and detaches it from the
// client.
func (s *session) finish(err error) {
	s.closeOnce.Do(func() {
		s.err = err
		close(s.done)
		s.conn.Close()

		c := s.client
		c.mu.Lock()
		if c.session == s {
			c.session = nil
		}
		c.mu.Unlock()
	})
}

// errorFromReply converts [ERROR, type, request, details, error, ...].
func errorFromReply(reply []any) error {
	requestType, _ := ID(reply[1])
	reason, _ := reply[4].(string)
	return &Error{URI: reason, Request: int(requestType), Details: dict(reply[3])}
}
