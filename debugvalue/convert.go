// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package debugvalue

import (
	"encoding/base64"
	"errors"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/bureau-foundation/xdebugbus/lib/xmltree"
)

// closureClass is the class the engine reports for anonymous functions.
// Its "parameter" pseudo-property describes the call signature.
const closureClass = "Closure"

// optionalMarker is the value the engine gives an optional closure
// parameter.
const optionalMarker = "<optional>"

// Convert maps one property element onto a Value.
func Convert(property *xmltree.Node) Value {
	switch kind := property.AttrOr("type", ""); kind {
	case "array":
		return convertArray(property)
	case "bool":
		return Bool(isTruthy(propertyValue(property)))
	case "int":
		return Int(parseInt(propertyValue(property)))
	case "float":
		return convertFloat(propertyValue(property))
	case "null", "uninitialized":
		return Null{}
	case "object":
		return convertObject(property)
	case "resource":
		return Resource{Descriptor: propertyValue(property)}
	case "string":
		return String(propertyValue(property))
	default:
		return String("unknown type: " + kind)
	}
}

func convertArray(property *xmltree.Node) Value {
	if isTruthy(property.AttrOr("recursive", "")) {
		return Recursion{}
	}
	array := &Array{}
	if property.AttrOr("numchildren", "") == "0" {
		return array
	}
	children := property.Children("property")
	if len(children) == 0 {
		array.Truncated = true
		array.Fullname = Fullname(property)
		return array
	}
	for _, child := range children {
		array.Set(PropertyName(child), Convert(child))
	}
	return array
}

func convertFloat(text string) Float {
	switch text {
	case "INF":
		return Float{Class: FloatInfinity, Value: math.Inf(1)}
	case "-INF":
		return Float{Class: FloatInfinity, Value: math.Inf(-1)}
	case "NAN":
		return Float{Class: FloatNaN, Value: math.NaN()}
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return Float{}
	}
	return Float{Value: value}
}

func convertObject(property *xmltree.Node) Value {
	object := &Object{ClassName: property.AttrOr("classname", "")}
	children := property.Children("property")
	if len(children) == 0 {
		if property.AttrOr("numchildren", "") != "0" {
			object.Truncated = true
			object.Fullname = Fullname(property)
		}
		return object
	}
	for _, child := range children {
		name := PropertyName(child)
		if object.ClassName == closureClass && name == "parameter" {
			parameters := child.Children("property")
			if len(parameters) == 0 && child.AttrOr("numchildren", "") != "0" {
				object.Truncated = true
				object.Fullname = Fullname(child)
				return object
			}
			method := Method{Name: "__invoke", Visibility: Public}
			for _, parameter := range parameters {
				method.Params = append(method.Params, Param{
					Name:       PropertyName(parameter),
					IsOptional: propertyValue(parameter) == optionalMarker,
				})
			}
			object.Methods = []Method{method}
			continue
		}
		facet := strings.Fields(child.AttrOr("facet", ""))
		object.setProperty(Property{
			Name:       name,
			Value:      Convert(child),
			IsStatic:   slices.Contains(facet, "static"),
			Visibility: visibility(facet),
		})
	}
	return object
}

// visibility picks the first of public, protected and private present in
// the facet list. Members without an access facet are public.
func visibility(facet []string) Visibility {
	for _, candidate := range []Visibility{Public, Protected, Private} {
		if slices.Contains(facet, string(candidate)) {
			return candidate
		}
	}
	return Public
}

// Fullname returns the expression that names a property: the fullname
// child element when the engine sent one (extended properties), else
// the fullname attribute.
func Fullname(property *xmltree.Node) string {
	return extendedAttr(property, "fullname")
}

// PropertyName returns a property's name, from the name child element
// or the name attribute.
func PropertyName(property *xmltree.Node) string {
	return extendedAttr(property, "name")
}

// extendedAttr reads a field the engine either sends as an attribute or,
// with extended_properties enabled, as a child element that may be
// base64 encoded.
func extendedAttr(property *xmltree.Node, name string) string {
	if element := property.Child(name); element != nil {
		return elementText(element)
	}
	return property.AttrOr(name, "")
}

// propertyValue returns the decoded text of a property: the value child
// element takes precedence over the property's own content.
func propertyValue(property *xmltree.Node) string {
	if element := property.Child("value"); element != nil {
		return elementText(element)
	}
	return elementText(property)
}

func elementText(element *xmltree.Node) string {
	if element.AttrOr("encoding", "") == "base64" {
		return decodeBase64(element.Text)
	}
	return element.Text
}

// decodeBase64 decodes leniently: whitespace is ignored, and text that
// is not base64 after all is returned unchanged.
func decodeBase64(text string) string {
	compact := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\r', '\n':
			return -1
		}
		return r
	}, text)
	decoded, err := base64.StdEncoding.DecodeString(compact)
	if err != nil {
		decoded, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(compact, "="))
		if err != nil {
			return text
		}
	}
	return string(decoded)
}

// parseInt accepts the engine's decimal text. Values outside int64 range
// saturate.
func parseInt(text string) int64 {
	text = strings.TrimSpace(text)
	value, err := strconv.ParseInt(text, 10, 64)
	if err == nil {
		return value
	}
	var numError *strconv.NumError
	if errors.As(err, &numError) && numError.Err == strconv.ErrRange {
		return value
	}
	return 0
}

func isTruthy(value string) bool {
	return value != "" && value != "0"
}
