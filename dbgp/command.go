// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package dbgp

import (
	"encoding/base64"
	"strconv"
	"strings"
)

// Arg is one command argument: "-<Key> <Value>" on the wire.
type Arg struct {
	Key   string
	Value string
}

// Args is an ordered argument list. Iteration order is wire order.
type Args []Arg

// Get returns the value of key.
func (a Args) Get(key string) (string, bool) {
	for _, arg := range a {
		if arg.Key == key {
			return arg.Value, true
		}
	}
	return "", false
}

// Set replaces the value of key in place, or appends it.
func (a *Args) Set(key, value string) {
	for index := range *a {
		if (*a)[index].Key == key {
			(*a)[index].Value = value
			return
		}
	}
	*a = append(*a, Arg{Key: key, Value: value})
}

// Int formats an integer argument value.
func Int(value int) string {
	return strconv.Itoa(value)
}

// Bool formats a boolean argument value as "1" or "0".
func Bool(value bool) string {
	if value {
		return "1"
	}
	return "0"
}

var valueEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\x00", `\0`)

// quoteValue wraps values containing a space or NUL in double quotes.
// Empty values are quoted too: a bare empty value would shift every
// following argument on the engine's side.
func quoteValue(value string) string {
	if value != "" && !strings.ContainsAny(value, " \x00") {
		return value
	}
	return `"` + valueEscaper.Replace(value) + `"`
}

// EncodeCommand returns the wire form of one command:
//
//	name [-key value]... [-- base64(data)] NUL
//
// data is omitted when empty.
func EncodeCommand(name string, args Args, data []byte) []byte {
	var builder strings.Builder
	builder.WriteString(name)
	for _, arg := range args {
		builder.WriteString(" -")
		builder.WriteString(arg.Key)
		builder.WriteByte(' ')
		builder.WriteString(quoteValue(arg.Value))
	}
	if len(data) > 0 {
		builder.WriteString(" --")
		builder.WriteString(base64.StdEncoding.EncodeToString(data))
	}
	builder.WriteByte(0)
	return []byte(builder.String())
}
