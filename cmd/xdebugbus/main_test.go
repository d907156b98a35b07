// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/xdebugbus/lib/config"
	"github.com/bureau-foundation/xdebugbus/lib/logging"
)

func parse(t *testing.T, args ...string) (*flags, *pflag.FlagSet) {
	t.Helper()
	var commandLine flags
	flagSet := pflag.NewFlagSet("xdebugbus", pflag.ContinueOnError)
	commandLine.register(flagSet)
	if err := flagSet.Parse(args); err != nil {
		t.Fatalf("Parse(%v): %v", args, err)
	}
	return &commandLine, flagSet
}

func TestFlagsOverrideOnlyWhenSet(t *testing.T) {
	t.Parallel()

	commandLine, flagSet := parse(t,
		"--listen", "0.0.0.0:9003",
		"--relay", "127.0.0.1:9010",
		"--serialization", "cbor",
		"--log-levels", "error,warning",
	)
	cfg := config.Default()
	if err := commandLine.apply(flagSet, cfg); err != nil {
		t.Fatalf("apply: %v", err)
	}

	want := config.Default()
	want.DBGP.Host = "0.0.0.0"
	want.DBGP.Port = 9003
	want.DBGPRepeat.Enabled = true
	want.DBGPRepeat.URI = "127.0.0.1:9010"
	want.WAMP.Serialization = "cbor"
	want.LogLevels = []string{"error", "warning"}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestFlagsEmptyProxyDisables(t *testing.T) {
	t.Parallel()

	commandLine, flagSet := parse(t, "--proxy", "")
	cfg := config.Default()
	cfg.DBGPProxy.Enabled = true
	if err := commandLine.apply(flagSet, cfg); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if cfg.DBGPProxy.Enabled {
		t.Error("proxy still enabled")
	}
	if cfg.DBGPProxy.URI != "127.0.0.1:9001" {
		t.Errorf("proxy URI: got %q, want the default kept", cfg.DBGPProxy.URI)
	}
}

func TestFlagsRejectBadListen(t *testing.T) {
	t.Parallel()

	for _, listen := range []string{"9000", "127.0.0.1:port"} {
		commandLine, flagSet := parse(t, "--listen", listen)
		if err := commandLine.apply(flagSet, config.Default()); err == nil {
			t.Errorf("--listen %q accepted", listen)
		}
	}
}

func TestLoadConfigFromFileThenFlags(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "xdebugbus.yaml")
	err := os.WriteFile(path, []byte("wamp:\n  realm: staging\n  topic: debug.events\n"), 0o600)
	if err != nil {
		t.Fatalf("writing config: %v", err)
	}

	commandLine, flagSet := parse(t, "--config", path, "--topic", "debug.override")
	cfg, err := commandLine.loadConfig(flagSet)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.WAMP.Realm != "staging" {
		t.Errorf("realm: got %q, want the file's", cfg.WAMP.Realm)
	}
	if cfg.WAMP.Topic != "debug.override" {
		t.Errorf("topic: got %q, want the flag's", cfg.WAMP.Topic)
	}
}

func TestLoadConfigValidates(t *testing.T) {
	t.Parallel()

	commandLine, flagSet := parse(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := commandLine.loadConfig(flagSet); err == nil {
		t.Error("missing config file accepted")
	}

	commandLine, flagSet = parse(t, "--config", writeEmpty(t), "--serialization", "msgpack")
	if _, err := commandLine.loadConfig(flagSet); err == nil {
		t.Error("unknown serialization accepted")
	}
}

func TestColorMode(t *testing.T) {
	t.Parallel()

	tests := map[string]logging.ColorMode{
		"auto":   logging.ColorAuto,
		"always": logging.ColorAlways,
		"never":  logging.ColorNever,
	}
	for name, want := range tests {
		commandLine, _ := parse(t, "--color", name)
		got, err := commandLine.colorMode()
		if err != nil || got != want {
			t.Errorf("--color %s: got %v, %v", name, got, err)
		}
	}
	commandLine, _ := parse(t, "--color", "sometimes")
	if _, err := commandLine.colorMode(); err == nil {
		t.Error("--color sometimes accepted")
	}
}

func TestNewLoggerWithFile(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.LogFile = filepath.Join(t.TempDir(), "xdebugbus.jsonl")
	logger, closeLog, err := newLogger(cfg, logging.ColorNever)
	if err != nil {
		t.Fatalf("newLogger: %v", err)
	}
	logger.Debug("written to the file")
	closeLog()

	data, err := os.ReadFile(cfg.LogFile)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if len(data) == 0 {
		t.Error("log file is empty")
	}
}

func writeEmpty(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "empty.yaml")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestPrintVersionIncludesToolchain(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	printVersion(&out)
	got := out.String()
	for _, want := range []string{"xdebugbus ", "Go: ", "Platform: "} {
		if !strings.Contains(got, want) {
			t.Errorf("version output %q is missing %q", got, want)
		}
	}
}
