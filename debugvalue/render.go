// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package debugvalue

import (
	"encoding/base64"
	"strconv"
	"unicode/utf8"

	"github.com/bureau-foundation/xdebugbus/lib/codec"
)

// AbstractionMarker is the value of the "debug" key that tells the
// console a map is a typed abstraction rather than array data.
const AbstractionMarker = "\x00debug\x00"

// RecursionMarker replaces an array that refers back to itself.
const RecursionMarker = "\x00recursion\x00"

// Render converts a Value into plain data: nil, bool, int64, float64,
// string, []any and codec.OrderedMap.
func Render(value Value) any {
	switch value := value.(type) {
	case nil, Null:
		return nil
	case Bool:
		return bool(value)
	case Int:
		return int64(value)
	case Float:
		return renderFloat(value)
	case String:
		return renderString(string(value))
	case Resource:
		return abstraction("resource", codec.Pair{Key: "value", Value: renderString(value.Descriptor)})
	case Recursion:
		return RecursionMarker
	case *Array:
		return renderArray(value)
	case *Object:
		return renderObject(value)
	default:
		return "unknown type: " + string(value.Kind())
	}
}

// RenderAny renders Values and passes every other argument through, so
// event arguments can mix plain data with converted values.
func RenderAny(argument any) any {
	if value, ok := argument.(Value); ok {
		return Render(value)
	}
	return argument
}

// RenderArgs applies RenderAny to every element.
func RenderArgs(arguments []any) []any {
	rendered := make([]any, len(arguments))
	for index, argument := range arguments {
		rendered[index] = RenderAny(argument)
	}
	return rendered
}

func abstraction(kind string, fields ...codec.Pair) codec.OrderedMap {
	result := make(codec.OrderedMap, 0, len(fields)+2)
	result = append(result,
		codec.Pair{Key: "debug", Value: AbstractionMarker},
		codec.Pair{Key: "type", Value: kind},
	)
	return append(result, fields...)
}

func renderFloat(value Float) any {
	switch value.Class {
	case FloatInfinity:
		name := "INF"
		if value.Value < 0 {
			name = "-INF"
		}
		return abstraction("float",
			codec.Pair{Key: "typeMore", Value: name},
			codec.Pair{Key: "value", Value: name},
		)
	case FloatNaN:
		return abstraction("float",
			codec.Pair{Key: "typeMore", Value: "NaN"},
			codec.Pair{Key: "value", Value: "NaN"},
		)
	default:
		return value.Value
	}
}

// renderString keeps valid UTF-8 as is. Anything else would be mangled
// by a JSON transport, so it travels base64 encoded.
func renderString(text string) any {
	if utf8.ValidString(text) {
		return text
	}
	return abstraction("string",
		codec.Pair{Key: "encoding", Value: "base64"},
		codec.Pair{Key: "value", Value: base64.StdEncoding.EncodeToString([]byte(text))},
	)
}

func renderArray(array *Array) any {
	if array.Truncated {
		return abstraction("array",
			codec.Pair{Key: "isMaxDepth", Value: true},
			codec.Pair{Key: "value", Value: []any{}},
			codec.Pair{Key: "attribs", Value: codec.OrderedMap{{Key: "data-fullname", Value: array.Fullname}}},
		)
	}
	if isList(array) {
		list := make([]any, len(array.Entries))
		for index, entry := range array.Entries {
			list[index] = Render(entry.Value)
		}
		return list
	}
	result := make(codec.OrderedMap, 0, len(array.Entries))
	for _, entry := range array.Entries {
		result = append(result, codec.Pair{Key: entry.Name, Value: Render(entry.Value)})
	}
	return result
}

// isList reports whether the keys are exactly 0..n-1 in order. Such
// arrays render as lists, the way the console's own serializer does.
func isList(array *Array) bool {
	for index, entry := range array.Entries {
		if entry.Name != strconv.Itoa(index) {
			return false
		}
	}
	return true
}

func renderObject(object *Object) any {
	properties := make(codec.OrderedMap, 0, len(object.Properties))
	for _, property := range object.Properties {
		properties = append(properties, codec.Pair{Key: property.Name, Value: codec.OrderedMap{
			{Key: "value", Value: Render(property.Value)},
			{Key: "isStatic", Value: property.IsStatic},
			{Key: "visibility", Value: string(property.Visibility)},
		}})
	}
	methods := make(codec.OrderedMap, 0, len(object.Methods))
	for _, method := range object.Methods {
		params := make([]any, len(method.Params))
		for index, param := range method.Params {
			params[index] = codec.OrderedMap{
				{Key: "name", Value: param.Name},
				{Key: "isOptional", Value: param.IsOptional},
			}
		}
		methods = append(methods, codec.Pair{Key: method.Name, Value: codec.OrderedMap{
			{Key: "params", Value: params},
			{Key: "visibility", Value: string(method.Visibility)},
		}})
	}

	fields := []codec.Pair{
		{Key: "className", Value: object.ClassName},
		{Key: "properties", Value: properties},
		{Key: "methods", Value: methods},
	}
	if object.Truncated {
		fields = append(fields,
			codec.Pair{Key: "isMaxDepth", Value: true},
			codec.Pair{Key: "attribs", Value: codec.OrderedMap{{Key: "data-fullname", Value: object.Fullname}}},
		)
	}
	return abstraction("object", fields...)
}
