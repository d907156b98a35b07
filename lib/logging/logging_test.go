// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var fixedTime = time.Date(2026, 10, 14, 17, 24, 1, 123456789, time.UTC)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	for _, name := range LevelNames() {
		level, err := ParseLevel(name)
		if err != nil {
			t.Fatalf("ParseLevel(%q): %v", name, err)
		}
		if got := LevelName(level); got != name {
			t.Errorf("LevelName(ParseLevel(%q)) = %q", name, got)
		}
	}
	if level, err := ParseLevel("WARN"); err != nil || level != LevelWarning {
		t.Errorf("ParseLevel(WARN): got %v, %v", level, err)
	}
	if _, err := ParseLevel("verbose"); err == nil {
		t.Error("ParseLevel(verbose) accepted")
	}
}

func TestLevelNameBetweenLevels(t *testing.T) {
	t.Parallel()

	if got := LevelName(slog.LevelInfo + 1); got != "info" {
		t.Errorf("info+1: got %q", got)
	}
	if got := LevelName(slog.LevelDebug - 4); got != "debug" {
		t.Errorf("below debug: got %q", got)
	}
	if got := LevelName(LevelEmergency + 100); got != "emergency" {
		t.Errorf("above emergency: got %q", got)
	}
}

func TestLevelSetIsNotAThreshold(t *testing.T) {
	t.Parallel()

	set, err := ParseLevels([]string{"notice", "error"})
	if err != nil {
		t.Fatalf("ParseLevels: %v", err)
	}
	for level, want := range map[slog.Level]bool{
		LevelDebug:    false,
		LevelInfo:     false,
		LevelNotice:   true,
		LevelWarning:  false,
		LevelError:    true,
		LevelCritical: false,
	} {
		if got := set.Contains(level); got != want {
			t.Errorf("Contains(%s) = %v, want %v", LevelName(level), got, want)
		}
	}
	if got := set.Lowest(); got != LevelNotice {
		t.Errorf("Lowest: got %v", got)
	}
	if _, err := ParseLevels([]string{"info", "loud"}); err == nil {
		t.Error("ParseLevels accepted an unknown level")
	}
}

func TestConsoleHandlerFormat(t *testing.T) {
	t.Parallel()

	var buffer bytes.Buffer
	handler := NewConsoleHandler(&buffer, ConsoleOptions{Levels: AllLevels(), Color: ColorNever})
	logger := slog.New(handler).With("role", "debugger")

	record := slog.NewRecord(fixedTime, LevelNotice, "dbgp connected", 0)
	record.AddAttrs(slog.String("remote_addr", "127.0.0.1:50712"), slog.Int("bytes", 42))
	if err := logger.Handler().Handle(t.Context(), record); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	want := "2026-10-14 17:24:01.123456 notice    dbgp connected role=debugger remote_addr=127.0.0.1:50712 bytes=42\n"
	if got := buffer.String(); got != want {
		t.Errorf("got  %q\nwant %q", got, want)
	}
}

func TestConsoleHandlerQuotingAndGroups(t *testing.T) {
	t.Parallel()

	var buffer bytes.Buffer
	handler := NewConsoleHandler(&buffer, ConsoleOptions{Levels: AllLevels(), Color: ColorNever})
	logger := slog.New(handler).WithGroup("relay")
	logger.Error("relay failed",
		"error", errors.New("dial tcp: connection refused"),
		"target", "",
		slog.Group("queue", "chunks", 3),
	)

	got := buffer.String()
	for _, fragment := range []string{
		` error     relay failed `,
		`relay.error="dial tcp: connection refused"`,
		`relay.target=""`,
		`relay.queue.chunks=3`,
	} {
		if !strings.Contains(got, fragment) {
			t.Errorf("output %q lacks %q", got, fragment)
		}
	}
}

func TestConsoleHandlerFiltersLevels(t *testing.T) {
	t.Parallel()

	set, _ := ParseLevels([]string{"warning"})
	var buffer bytes.Buffer
	logger := slog.New(NewConsoleHandler(&buffer, ConsoleOptions{Levels: set, Color: ColorNever}))
	logger.Info("hidden")
	logger.Error("hidden too")
	logger.Warn("shown")
	if got := buffer.String(); strings.Contains(got, "hidden") || !strings.Contains(got, "shown") {
		t.Errorf("unexpected output %q", got)
	}
}

func TestConsoleHandlerColor(t *testing.T) {
	t.Parallel()

	var buffer bytes.Buffer
	logger := slog.New(NewConsoleHandler(&buffer, ConsoleOptions{Levels: AllLevels(), Color: ColorAlways}))
	Critical(logger, "engine gone")
	if got := buffer.String(); !strings.Contains(got, "\x1b[") || !strings.Contains(got, "critical") {
		t.Errorf("expected ANSI colour codes, got %q", got)
	}

	buffer.Reset()
	logger.Debug("plain")
	if !strings.Contains(buffer.String(), " debug     plain") {
		t.Errorf("debug line should stay unstyled: %q", buffer.String())
	}
}

func TestFanoutHandler(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "xdebugbus.jsonl")
	fileHandler, closeFile, err := OpenFileHandler(path)
	if err != nil {
		t.Fatalf("OpenFileHandler: %v", err)
	}

	var console bytes.Buffer
	set, _ := ParseLevels([]string{"error"})
	logger := slog.New(FanoutHandler{
		NewConsoleHandler(&console, ConsoleOptions{Levels: set, Color: ColorNever}),
		fileHandler,
	}).With("app_id", "4242")

	logger.Debug("only in file")
	logger.Error("in both")
	closeFile()

	if strings.Contains(console.String(), "only in file") || !strings.Contains(console.String(), "in both app_id=4242") {
		t.Errorf("console output %q", console.String())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("file lines: got %d, want 2: %q", len(lines), data)
	}
	var first map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("decoding file line: %v", err)
	}
	if first["msg"] != "only in file" || first["app_id"] != "4242" {
		t.Errorf("file record: %v", first)
	}
}
