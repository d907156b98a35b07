// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"
)

func TestReport(t *testing.T) {
	var buffer bytes.Buffer
	report(&buffer, errors.New("listen tcp 127.0.0.1:9000: address already in use"))
	if got, want := buffer.String(), "error: listen tcp 127.0.0.1:9000: address already in use\n"; got != want {
		t.Errorf("report wrote %q, want %q", got, want)
	}
}

func TestFatalLogged(t *testing.T) {
	var code int
	exit = func(status int) { code = status }
	t.Cleanup(func() { exit = os.Exit })

	var buffer bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buffer, nil))
	FatalLogged(logger, "wamp connect failed", errors.New("no_such_realm"))

	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if output := buffer.String(); !strings.Contains(output, "wamp connect failed") || !strings.Contains(output, "no_such_realm") {
		t.Errorf("log output %q lacks the failure", output)
	}
}
