// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package dbgp

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"

	"github.com/bureau-foundation/xdebugbus/lib/netutil"
)

// readBufferSize is the size of each socket read.
const readBufferSize = 32 * 1024

// ErrClosed is returned by Send and WriteRaw after Close.
var ErrClosed = errors.New("dbgp: connection closed")

// ReplyFunc receives the response frame correlated with a sent command.
type ReplyFunc func(*Message)

// Handler observes the frames and the end of one connection. Both
// methods are called from the connection's dispatch goroutine, in frame
// arrival order.
type Handler interface {
	HandleMessage(conn *Conn, message *Message)
	HandleClose(conn *Conn)
}

// DecodeErrorHandler is an optional Handler extension notified when a
// frame is dropped because its payload could not be decoded.
type DecodeErrorHandler interface {
	HandleDecodeError(conn *Conn, err error)
}

// Options configures a Conn.
type Options struct {
	// Role labels log output ("debugger", "proxy").
	Role string

	// TransactionIDs enables assignment of an "-i" argument to every
	// sent command. TransactionPrefix is prepended to the per-connection
	// counter so that ids never collide with those of another client
	// sharing the engine (a relayed IDE numbers its commands from 1).
	TransactionIDs    bool
	TransactionPrefix string

	// Tap, when set, receives every chunk read from the socket before
	// it is framed. The slice is reused after Tap returns.
	Tap func(chunk []byte)

	// Logger receives structured log output. If nil, slog.Default() is
	// used.
	Logger *slog.Logger
}

// Conn is one live binding to a debugger engine.
type Conn struct {
	netConn net.Conn
	options Options
	logger  *slog.Logger

	// writeMu serializes writes of commands and relayed bytes.
	writeMu sync.Mutex

	mu       sync.Mutex
	cond     *sync.Cond
	pending  map[string]ReplyFunc
	counter  uint64
	appID    string
	paused   bool
	closed   bool
	frames   [][]byte
	readDone bool
}

// NewConn binds a Conn to an established socket. Nothing is read until
// Serve is called.
func NewConn(netConn net.Conn, options Options) *Conn {
	if options.Role == "" {
		options.Role = "debugger"
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	conn := &Conn{
		netConn: netConn,
		options: options,
		logger:  logger.With("role", options.Role),
		pending: make(map[string]ReplyFunc),
	}
	conn.cond = sync.NewCond(&conn.mu)
	return conn
}

// AppID returns the application id announced by the engine's init
// frame, or "" before init has been seen.
func (c *Conn) AppID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.appID
}

// RemoteAddr returns the engine's network address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.netConn.RemoteAddr()
}

// Pause holds back frame dispatch. The socket keeps being read, so
// bytes are neither lost nor withheld from the Tap.
func (c *Conn) Pause() {
	c.mu.Lock()
	c.paused = true
	c.mu.Unlock()
}

// Resume releases frame dispatch held by Pause.
func (c *Conn) Resume() {
	c.mu.Lock()
	c.paused = false
	c.mu.Unlock()
	c.cond.Broadcast()
}

// Close closes the socket. Frames that were not yet dispatched are
// discarded and pending reply callbacks are never invoked.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	c.cond.Broadcast()
	return c.netConn.Close()
}

// Send encodes and writes one command. When transaction ids are enabled
// the command gets an "i" argument, which is returned. onReply, when
// non-nil, is invoked once with the response carrying the same id;
// it requires transaction ids.
func (c *Conn) Send(name string, args Args, data []byte, onReply ReplyFunc) (string, error) {
	args = append(Args(nil), args...)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return "", ErrClosed
	}
	var transactionID string
	if c.options.TransactionIDs {
		c.counter++
		transactionID = c.options.TransactionPrefix + strconv.FormatUint(c.counter, 10)
		args.Set("i", transactionID)
	}
	if onReply != nil {
		if transactionID == "" {
			c.mu.Unlock()
			return "", fmt.Errorf("dbgp: %s: reply callback requires transaction ids", name)
		}
		// Registered before the write: the reply may arrive before
		// Write returns.
		c.pending[transactionID] = onReply
	}
	appID := c.appID
	c.mu.Unlock()

	command := EncodeCommand(name, args, data)
	c.logger.Info("dbgp command sent",
		"app_id", appID,
		"command", string(command[:len(command)-1]),
	)
	if err := c.WriteRaw(command); err != nil {
		if transactionID != "" {
			c.mu.Lock()
			delete(c.pending, transactionID)
			c.mu.Unlock()
		}
		return "", fmt.Errorf("dbgp: sending %s: %w", name, err)
	}
	return transactionID, nil
}

// WriteRaw writes bytes to the engine verbatim. Used to relay traffic
// from a mirrored IDE connection.
func (c *Conn) WriteRaw(p []byte) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err := c.netConn.Write(p)
	return err
}

// Write implements io.Writer over WriteRaw.
func (c *Conn) Write(p []byte) (int, error) {
	if err := c.WriteRaw(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Serve reads and dispatches frames until the socket closes, then calls
// handler.HandleClose. handler may be nil when the peer's messages are
// only logged. Serve returns nil when the connection ended normally.
func (c *Conn) Serve(handler Handler) error {
	c.logger.Info("dbgp connected", "remote_addr", c.netConn.RemoteAddr())

	readResult := make(chan error, 1)
	go func() {
		readResult <- c.readLoop()
	}()

	for {
		payload, ok := c.nextFrame()
		if !ok {
			break
		}
		c.dispatch(handler, payload)
	}
	// Dispatch can stop before the reader does (local Close).
	c.netConn.Close()
	readErr := <-readResult

	c.mu.Lock()
	c.closed = true
	unanswered := len(c.pending)
	c.pending = make(map[string]ReplyFunc)
	appID := c.appID
	c.mu.Unlock()

	if unanswered > 0 {
		c.logger.Debug("dbgp connection closed with unanswered commands",
			"app_id", appID,
			"unanswered", unanswered,
		)
	}
	c.logger.Info("dbgp connection closed", "app_id", appID)
	if handler != nil {
		handler.HandleClose(c)
	}
	if readErr != nil && !netutil.IsExpectedCloseError(readErr) {
		return readErr
	}
	return nil
}

// readLoop feeds socket bytes through the tap and the splitter and
// queues complete payloads for dispatch.
func (c *Conn) readLoop() error {
	var splitter Splitter
	buffer := make([]byte, readBufferSize)
	for {
		count, err := c.netConn.Read(buffer)
		if count > 0 {
			chunk := buffer[:count]
			c.logger.Debug("dbgp data received", "app_id", c.AppID(), "bytes", count)
			if c.options.Tap != nil {
				c.options.Tap(chunk)
			}
			splitter.Write(chunk)
			for {
				payload, ok, frameErr := splitter.Next()
				if frameErr != nil {
					c.logger.Error("dbgp stream desynchronized, closing", "error", frameErr)
					c.finishReading()
					return frameErr
				}
				if !ok {
					break
				}
				c.enqueue(payload)
			}
		}
		if err != nil {
			if splitter.Buffered() > 0 {
				c.logger.Debug("dbgp partial frame discarded at close", "bytes", splitter.Buffered())
			}
			c.finishReading()
			return err
		}
	}
}

func (c *Conn) enqueue(payload []byte) {
	c.mu.Lock()
	c.frames = append(c.frames, payload)
	c.mu.Unlock()
	c.cond.Broadcast()
}

func (c *Conn) finishReading() {
	c.mu.Lock()
	c.readDone = true
	c.mu.Unlock()
	c.cond.Broadcast()
}

// nextFrame blocks until a payload may be dispatched. It returns false
// once the connection was closed locally, or the reader finished and
// every queued payload has been dispatched.
func (c *Conn) nextFrame() ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for {
		if c.closed {
			return nil, false
		}
		if !c.paused && len(c.frames) > 0 {
			payload := c.frames[0]
			c.frames[0] = nil
			c.frames = c.frames[1:]
			return payload, true
		}
		if c.readDone && len(c.frames) == 0 {
			return nil, false
		}
		c.cond.Wait()
	}
}

func (c *Conn) dispatch(handler Handler, payload []byte) {
	message, err := ParseMessage(payload)
	if err != nil {
		c.logger.Warn("dropping undecodable dbgp frame",
			"app_id", c.AppID(),
			"bytes", len(payload),
			"error", err,
		)
		if observer, ok := handler.(DecodeErrorHandler); ok {
			observer.HandleDecodeError(c, err)
		}
		return
	}

	if transactionID, ok := message.TransactionID(); ok {
		c.mu.Lock()
		reply := c.pending[transactionID]
		delete(c.pending, transactionID)
		c.mu.Unlock()
		if reply != nil {
			reply(message)
		}
	}

	if message.Kind == KindInit {
		c.mu.Lock()
		c.appID = message.Attr("appid")
		c.mu.Unlock()
	}

	if handler != nil {
		handler.HandleMessage(c, message)
		return
	}
	c.logger.Info("dbgp message received",
		"kind", message.Kind,
		"attributes", attributeText(message),
	)
}

// attributeText renders root attributes for log output, skipping
// namespace declarations.
func attributeText(message *Message) string {
	var text []byte
	for _, attribute := range message.Root.Attributes {
		if IsNamespaceAttr(attribute.Name) {
			continue
		}
		if len(text) > 0 {
			text = append(text, ' ')
		}
		text = append(text, attribute.Name...)
		text = append(text, '=')
		text = strconv.AppendQuote(text, attribute.Value)
	}
	return string(text)
}
