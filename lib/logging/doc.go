// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package logging provides the process's log/slog handlers.
//
// Eight level names (emergency, alert, critical, error, warning,
// notice, info, debug) are mapped onto slog levels; [Notice] and
// [Critical] log at the two that slog has no method for. Output is
// selected by a [LevelSet], so an operator can enable any combination
// of levels rather than a single threshold.
//
// [ConsoleHandler] writes one line per record with a microsecond
// timestamp, a padded level column and key=value attributes, coloured
// with lipgloss when the output is a terminal. [FanoutHandler] sends
// records to several handlers, typically the console plus a JSON file
// opened with [OpenFileHandler].
package logging
