// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides the binary entrypoint error helpers for
// xdebugbus. These cover the two places where raw stderr output is
// legitimate: before the structured logger exists, and when main()
// gives up after an unrecoverable error such as a listen failure or an
// unreachable message bus at startup.
package process
