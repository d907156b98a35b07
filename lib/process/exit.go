// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/bureau-foundation/xdebugbus/lib/logging"
)

// exit is replaced in tests.
var exit = os.Exit

// Fatal writes "error: err" to stderr and exits with code 1. Use it in
// main() for errors from run() where the structured logger may not be
// initialized.
func Fatal(err error) {
	report(os.Stderr, err)
	exit(1)
}

// FatalLogged records err on logger at the highest level and exits
// with code 1. Use it once the logger is running so the failure also
// reaches any log file.
func FatalLogged(logger *slog.Logger, message string, err error) {
	logger.Log(context.Background(), logging.LevelEmergency, message, "error", err)
	exit(1)
}

func report(w io.Writer, err error) {
	fmt.Fprintf(w, "error: %v\n", err)
}
