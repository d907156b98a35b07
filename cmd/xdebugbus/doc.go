// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Xdebugbus bridges DBGp debugger engines (Xdebug) to a WAMP message
// bus. Engines connect to the DBGp listener; their breaks, variable
// listings and property values are published to a topic, and commands
// published on the control topic are sent back to the engine whose app
// id they name. Optionally the bridge registers with a DBGp proxy and
// mirrors each session to an IDE.
package main
