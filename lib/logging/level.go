// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package logging

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// The eight syslog-style levels, mapped onto slog so that the four slog
// levels keep their usual meaning.
const (
	LevelDebug     = slog.LevelDebug
	LevelInfo      = slog.LevelInfo
	LevelNotice    = slog.LevelInfo + 2
	LevelWarning   = slog.LevelWarn
	LevelError     = slog.LevelError
	LevelCritical  = slog.LevelError + 4
	LevelAlert     = slog.LevelError + 8
	LevelEmergency = slog.LevelError + 12
)

// levels lists every level from most to least severe.
var levels = []struct {
	level slog.Level
	name  string
}{
	{LevelEmergency, "emergency"},
	{LevelAlert, "alert"},
	{LevelCritical, "critical"},
	{LevelError, "error"},
	{LevelWarning, "warning"},
	{LevelNotice, "notice"},
	{LevelInfo, "info"},
	{LevelDebug, "debug"},
}

// LevelNames returns the level names from most to least severe.
func LevelNames() []string {
	names := make([]string, len(levels))
	for index, entry := range levels {
		names[index] = entry.name
	}
	return names
}

// ParseLevel resolves a level name. "warn" is accepted for warning.
func ParseLevel(name string) (slog.Level, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "warn" {
		name = "warning"
	}
	for _, entry := range levels {
		if entry.name == name {
			return entry.level, nil
		}
	}
	return 0, fmt.Errorf("logging: %q is not a valid level (want one of %s)", name, strings.Join(LevelNames(), ", "))
}

// LevelName returns the name of the most severe named level at or below
// level. Levels below debug are reported as debug.
func LevelName(level slog.Level) string {
	return levels[levelIndex(level)].name
}

func levelIndex(level slog.Level) int {
	for index, entry := range levels {
		if level >= entry.level {
			return index
		}
	}
	return len(levels) - 1
}

// LevelSet selects which levels are written. Unlike a threshold, any
// combination may be enabled, e.g. only notice and error.
type LevelSet struct {
	enabled [8]bool
}

// AllLevels enables every level.
func AllLevels() LevelSet {
	var set LevelSet
	for index := range set.enabled {
		set.enabled[index] = true
	}
	return set
}

// ParseLevels builds a set from level names.
func ParseLevels(names []string) (LevelSet, error) {
	var set LevelSet
	for _, name := range names {
		level, err := ParseLevel(name)
		if err != nil {
			return LevelSet{}, err
		}
		set.enabled[levelIndex(level)] = true
	}
	return set, nil
}

// Contains reports whether records at level are written.
func (s LevelSet) Contains(level slog.Level) bool {
	return s.enabled[levelIndex(level)]
}

// Lowest returns the least severe enabled level, for handlers that
// only understand thresholds. An empty set returns LevelEmergency.
func (s LevelSet) Lowest() slog.Level {
	for index := len(levels) - 1; index >= 0; index-- {
		if s.enabled[index] {
			return levels[index].level
		}
	}
	return LevelEmergency
}

// Notice logs at LevelNotice.
func Notice(logger *slog.Logger, message string, args ...any) {
	logger.Log(context.Background(), LevelNotice, message, args...)
}

// Critical logs at LevelCritical.
func Critical(logger *slog.Logger, message string, args ...any) {
	logger.Log(context.Background(), LevelCritical, message, args...)
}
