// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/bureau-foundation/xdebugbus/lib/codec"
)

func TestBreakWindow(t *testing.T) {
	t.Parallel()

	tests := []struct {
		line       int
		begin, end int
	}{
		{line: 100, begin: 91, end: 110},
		{line: 10, begin: 1, end: 20},
		{line: 9, begin: 0, end: 19},
		{line: 3, begin: 0, end: 19},
		{line: 0, begin: 0, end: 19},
	}
	for _, test := range tests {
		begin, end := BreakWindow(test.line)
		if begin != test.begin || end != test.end {
			t.Errorf("BreakWindow(%d) = %d, %d; want %d, %d", test.line, begin, end, test.begin, test.end)
		}
	}
}

func TestSourceLines(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		text       string
		begin, end int
		want       []string
	}{
		{
			name:  "trailing newline leaves an empty last line",
			text:  "<?php\n$a = 1;\n",
			begin: 0, end: 19,
			want: []string{"<?php\n", "$a = 1;\n", ""},
		},
		{
			name:  "crlf",
			text:  "one\r\ntwo\r\nthree",
			begin: 4, end: 23,
			want: []string{"one\n", "two\n", "three"},
		},
		{
			name:  "truncated to the window",
			text:  "a\nb\nc\nd\ne",
			begin: 10, end: 13,
			want: []string{"a\n", "b\n", "c"},
		},
		{
			name:  "single line",
			text:  "echo 1;",
			begin: 0, end: 19,
			want: []string{"echo 1;"},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			if diff := cmp.Diff(test.want, SourceLines(test.text, test.begin, test.end)); diff != "" {
				t.Errorf("SourceLines mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNumberedLines(t *testing.T) {
	t.Parallel()

	got := NumberedLines([]string{"$a = 1;\n", "echo $a;"}, 0)
	want := codec.OrderedMap{
		{Key: "0", Value: "$a = 1;\n"},
		{Key: "1", Value: "echo $a;"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("NumberedLines mismatch (-want +got):\n%s", diff)
	}

	got = NumberedLines([]string{"x"}, 91)
	if got[0].Key != "91" {
		t.Errorf("first key: got %q, want 91", got[0].Key)
	}
}

func TestDisplayFile(t *testing.T) {
	t.Parallel()

	if got := displayFile("file:///srv/app/index.php"); got != "/srv/app/index.php" {
		t.Errorf("displayFile: got %q", got)
	}
	if got := displayFile("dbgp://eval/1"); got != "dbgp://eval/1" {
		t.Errorf("displayFile: got %q", got)
	}
}
