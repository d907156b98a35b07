// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package dbgp implements the framed request/response engine that talks
// to a DBGP debugger engine (Xdebug and friends) over a stream socket.
//
// The package is organized around the protocol data flow:
//
//   - frame.go: splitting the inbound byte stream into
//     "<decimal length>\0<payload>\0" frames ([Splitter], [AppendFrame])
//   - command.go: encoding outbound command lines with an ordered
//     argument list ([Args], [EncodeCommand])
//   - message.go: the decoded view of one frame ([Message])
//   - conn.go: one live binding to one engine ([Conn]): read loop,
//     transaction id assignment, reply correlation, pause/resume of
//     dispatch, and a raw byte tap used to mirror traffic elsewhere
//
// Each frame payload is decoded with [xmltree.Decode], forcing the
// "property" tag to a sequence so object and array children can be
// walked uniformly.
//
// Reply callbacks registered with [Conn.Send] run on the connection's
// dispatch goroutine immediately before the [Handler] sees the same
// frame. A callback whose reply never arrives because the connection
// closed is dropped without an error; the count of such calls is logged
// when the connection closes.
package dbgp
