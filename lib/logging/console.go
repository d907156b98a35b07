// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// levelWidth is the column width of the level name.
const levelWidth = 9

// ColorMode selects whether the console handler emits ANSI colours.
type ColorMode int

const (
	// ColorAuto colours output when it is a terminal.
	ColorAuto ColorMode = iota
	ColorAlways
	ColorNever
)

// ConsoleOptions configures a ConsoleHandler.
type ConsoleOptions struct {
	// Levels selects the written levels. The zero value writes nothing;
	// use AllLevels for everything.
	Levels LevelSet
	Color  ColorMode
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// ConsoleHandler is a slog.Handler writing one human-readable line per
// record:
//
//	2026-10-14 17:24:01.123456 notice    dbgp connected remote_addr=127.0.0.1:50712
type ConsoleHandler struct {
	output  *consoleOutput
	levels  LevelSet
	now     func() time.Time
	prefix  string
	grouped string
}

// consoleOutput is shared by every handler derived from one root.
type consoleOutput struct {
	mu     sync.Mutex
	writer io.Writer
	styles *consoleStyles
}

type consoleStyles struct {
	time   lipgloss.Style
	levels map[string]lipgloss.Style
}

// NewConsoleHandler returns a handler writing to writer.
func NewConsoleHandler(writer io.Writer, options ConsoleOptions) *ConsoleHandler {
	now := options.Now
	if now == nil {
		now = time.Now
	}
	output := &consoleOutput{writer: writer}
	if useColor(writer, options.Color) {
		output.styles = newConsoleStyles(writer)
	}
	return &ConsoleHandler{output: output, levels: options.Levels, now: now}
}

func useColor(writer io.Writer, mode ColorMode) bool {
	switch mode {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	}
	file, ok := writer.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}

// newConsoleStyles uses 256-colour styles. The profile is forced so
// lipgloss does not re-detect the terminal from the environment.
func newConsoleStyles(writer io.Writer) *consoleStyles {
	renderer := lipgloss.NewRenderer(writer, termenv.WithProfile(termenv.ANSI256))
	renderer.SetColorProfile(termenv.ANSI256)
	foreground := func(color string) lipgloss.Style {
		return renderer.NewStyle().Foreground(lipgloss.Color(color))
	}
	return &consoleStyles{
		time: foreground("247"),
		levels: map[string]lipgloss.Style{
			"emergency": foreground("11").Bold(true).Underline(true),
			"alert":     foreground("226"),
			"critical":  foreground("220").Bold(true),
			"error":     foreground("220"),
			"warning":   foreground("214").Background(lipgloss.Color("0")),
			"notice":    foreground("208"),
			"info":      foreground("51"),
		},
	}
}

func (h *ConsoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return h.levels.Contains(level)
}

func (h *ConsoleHandler) Handle(_ context.Context, record slog.Record) error {
	timestamp := record.Time
	if timestamp.IsZero() {
		timestamp = h.now()
	}
	stamp := timestamp.Format("2006-01-02 15:04:05.000000")
	level := LevelName(record.Level)
	padding := strings.Repeat(" ", max(levelWidth-len(level), 0))

	var line strings.Builder
	if styles := h.output.styles; styles != nil {
		line.WriteString(styles.time.Render(stamp))
		line.WriteByte(' ')
		if style, ok := styles.levels[level]; ok {
			line.WriteString(style.Render(level))
		} else {
			line.WriteString(level)
		}
	} else {
		line.WriteString(stamp)
		line.WriteByte(' ')
		line.WriteString(level)
	}
	line.WriteString(padding)
	line.WriteByte(' ')
	line.WriteString(record.Message)
	line.WriteString(h.prefix)
	record.Attrs(func(attr slog.Attr) bool {
		appendAttr(&line, h.grouped, attr)
		return true
	})
	line.WriteByte('\n')

	h.output.mu.Lock()
	defer h.output.mu.Unlock()
	_, err := io.WriteString(h.output.writer, line.String())
	return err
}

func (h *ConsoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	var prefix strings.Builder
	prefix.WriteString(h.prefix)
	for _, attr := range attrs {
		appendAttr(&prefix, h.grouped, attr)
	}
	derived := *h
	derived.prefix = prefix.String()
	return &derived
}

func (h *ConsoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	derived := *h
	derived.grouped = h.grouped + name + "."
	return &derived
}

func appendAttr(line *strings.Builder, group string, attr slog.Attr) {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return
	}
	if attr.Value.Kind() == slog.KindGroup {
		nested := group
		if attr.Key != "" {
			nested = group + attr.Key + "."
		}
		for _, member := range attr.Value.Group() {
			appendAttr(line, nested, member)
		}
		return
	}
	line.WriteByte(' ')
	line.WriteString(group)
	line.WriteString(attr.Key)
	line.WriteByte('=')
	line.WriteString(formatValue(attr.Value))
}

func formatValue(value slog.Value) string {
	var text string
	switch value.Kind() {
	case slog.KindString:
		text = value.String()
	case slog.KindTime:
		text = value.Time().Format(time.RFC3339Nano)
	case slog.KindAny:
		if err, ok := value.Any().(error); ok {
			text = err.Error()
		} else {
			text = value.String()
		}
	default:
		text = value.String()
	}
	if needsQuoting(text) {
		return strconv.Quote(text)
	}
	return text
}

func needsQuoting(text string) bool {
	if text == "" {
		return true
	}
	for _, r := range text {
		if r <= ' ' || r == '=' || r == '"' || r == 0x7f {
			return true
		}
	}
	return false
}
