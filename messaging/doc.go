// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package messaging is a WAMP v2 client for the message bus the bridge
// publishes debugger events to and receives debugger commands from.
//
// [Client] implements the publisher and subscriber roles over a
// websocket (gorilla/websocket), negotiating either the "wamp.2.json"
// or the "wamp.2.cbor" subprotocol. A Client holds at most one joined
// session at a time. [Client.Connect] joins once; [Client.Run] keeps a
// session alive, reconnecting with exponential backoff and
// re-subscribing every topic registered through [Client.Subscribe].
//
// [Client.Publish] is fire-and-forget unless acknowledgements are
// enabled, in which case it waits for PUBLISHED and surfaces router
// rejections. While no session is live it fails fast with
// [ErrNotConnected]; publications are never buffered across sessions.
//
// Router errors (ERROR and ABORT messages) are returned as [*Error]
// carrying the reason URI. [IsError] tests for a specific URI.
//
// The JSON serializer decodes numbers as json.Number and the CBOR
// serializer as uint64/int64; [ID] accepts either.
package messaging
