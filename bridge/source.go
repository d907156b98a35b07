// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/bureau-foundation/xdebugbus/debugvalue"
	"github.com/bureau-foundation/xdebugbus/lib/codec"
)

// SourceWindow is the number of source lines fetched around a break.
const SourceWindow = 19

// BreakWindow returns the line range [begin, end) requested for a break
// on line: SourceWindow lines centred on it, clamped at zero.
func BreakWindow(line int) (begin, end int) {
	begin = max(line-SourceWindow/2, 0)
	return begin, begin + SourceWindow
}

var lineBreak = regexp.MustCompile(`\r?\n`)

// SourceLines splits source text into at most end-begin lines. Every
// line but the last keeps a trailing "\n".
func SourceLines(text string, begin, end int) []string {
	lines := lineBreak.Split(text, -1)
	if limit := end - begin; limit >= 0 && len(lines) > limit {
		lines = lines[:limit]
	}
	if len(lines) == 0 {
		return lines
	}
	for index := range lines[:len(lines)-1] {
		lines[index] += "\n"
	}
	return lines
}

// NumberedLines keys lines by line number starting at begin, rendered
// for publication.
func NumberedLines(lines []string, begin int) codec.OrderedMap {
	numbered := make(codec.OrderedMap, 0, len(lines))
	for index, line := range lines {
		numbered = append(numbered, codec.Pair{
			Key:   strconv.Itoa(begin + index),
			Value: debugvalue.Render(debugvalue.String(line)),
		})
	}
	return numbered
}

// displayFile strips the file:// scheme from an engine file URI.
func displayFile(fileURI string) string {
	return strings.ReplaceAll(fileURI, "file://", "")
}
