// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"bytes"
	"slices"

	"github.com/bureau-foundation/xdebugbus/debugvalue"
)

// globalsOrder lists the superglobals that sort ahead of everything
// else, in this order. The $-prefixed names are the top-level context
// entries; the bare names are their keys inside $GLOBALS.
var globalsOrder = []string{
	"$_COOKIE",
	"$_ENV",
	"$_FILES",
	"$_GET",
	"$_POST",
	"$_REQUEST",
	"$_SERVER",
	"$GLOBALS",
	"_COOKIE",
	"_ENV",
	"_FILES",
	"_GET",
	"_POST",
	"_REQUEST",
	"_SERVER",
	"GLOBALS",
}

// relocatedGlobals move from $GLOBALS into the server sub-arrays.
var relocatedGlobals = []string{"argv", "argc"}

// CompareGlobalKeys orders superglobals first, in globalsOrder, and
// everything else after them, case-insensitively with "_" sorting
// before every letter and digit.
func CompareGlobalKeys(a, b string) int {
	aPosition := slices.Index(globalsOrder, a)
	bPosition := slices.Index(globalsOrder, b)
	switch {
	case aPosition < 0 && bPosition < 0:
		return bytes.Compare(foldKey(a), foldKey(b))
	case aPosition < 0:
		return 1
	case bPosition < 0:
		return -1
	default:
		return aPosition - bPosition
	}
}

// foldKey lowercases ASCII letters and maps "_" to 0x1f.
func foldKey(key string) []byte {
	folded := []byte(key)
	for index, c := range folded {
		switch {
		case c == '_':
			folded[index] = 0x1f
		case 'A' <= c && c <= 'Z':
			folded[index] = c + 'a' - 'A'
		}
	}
	return folded
}

// ArrangeGlobals prepares a global-scope context for display: argv and
// argc move from $GLOBALS into $_SERVER and $GLOBALS._SERVER, and the
// server and globals arrays are sorted with CompareGlobalKeys. Missing
// arrays are created as needed; a depth-truncated array is left alone.
func ArrangeGlobals(values *debugvalue.Array) {
	globals := editableArray(values, "$GLOBALS", false)
	for _, key := range relocatedGlobals {
		if globals == nil {
			break
		}
		value, ok := globals.Get(key)
		if !ok {
			continue
		}
		if nestedServer := editableArray(globals, "_SERVER", true); nestedServer != nil {
			nestedServer.Set(key, value)
		}
		if server := editableArray(values, "$_SERVER", true); server != nil {
			server.Set(key, value)
		}
		globals.Delete(key)
	}

	for _, array := range []*debugvalue.Array{
		editableArray(values, "$_SERVER", false),
		globals,
		nestedArray(globals, "_SERVER"),
	} {
		if array != nil {
			array.SortKeys(CompareGlobalKeys)
		}
	}
}

// editableArray returns the untruncated array stored under name,
// creating an empty one when create is set and name is absent.
func editableArray(parent *debugvalue.Array, name string, create bool) *debugvalue.Array {
	if parent == nil {
		return nil
	}
	value, ok := parent.Get(name)
	if !ok {
		if !create {
			return nil
		}
		array := &debugvalue.Array{}
		parent.Set(name, array)
		return array
	}
	array, ok := value.(*debugvalue.Array)
	if !ok || array.Truncated {
		return nil
	}
	return array
}

func nestedArray(parent *debugvalue.Array, name string) *debugvalue.Array {
	return editableArray(parent, name, false)
}
