// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers.
//
// [Receive], [RequireNone] and [WaitClosed] encapsulate the timeout
// safety valve pattern (select with a time.After fallback) so that
// individual tests never hang and never sleep. [WaitFor] polls state
// that has no channel to wait on. [Listen] opens a loopback
// TCP listener that is closed when the test completes.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
package testutil
