// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package bridge connects DBGp debugger engines to the message bus.
//
// An engine such as Xdebug connects to the [Bridge] listener at the
// start of a debugging session. Each connection is served by a
// [dbgp.Conn] whose frame dispatch is paused until the optional relay
// to an IDE is either connected or given up on; bytes read in the
// meantime are queued by the [RelaySession] and flushed in order, so
// the IDE sees the session from its first byte. A relay failure never
// affects the engine connection.
//
// The bridge interprets the frames it sees:
//
//   - init registers the connection under its app id in the [Registry],
//     so commands arriving on the control topic can be routed to it.
//   - a break fetches [SourceWindow] lines around the break location
//     with the source command and publishes a "break on" notice and the
//     numbered lines.
//   - stopping publishes the frame's attributes and closes the
//     connection.
//   - context_get publishes the converted variables; the global scope
//     is rearranged with [ArrangeGlobals] first.
//   - property_get and property_value publish the single converted
//     property with its full name.
//
// Events leave through a [Publisher]; [TopicPublisher] renders the
// value trees and publishes [event, args, meta] to one WAMP topic.
// [Bridge.HandleEvent] is the subscriber for the control topic: each
// event's arguments [appId, command, params, data] are decoded by
// [ParseCommand] and sent to the matching engine.
//
// When ProxyAddr is set, [ProxyRegistration] announces the listen port
// and IDE key to an upstream DBGp proxy with proxyinit, retrying with
// backoff until the proxy answers.
package bridge
