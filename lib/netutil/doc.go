// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil classifies network errors so that normal connection
// teardown is not reported as a failure.
package netutil
