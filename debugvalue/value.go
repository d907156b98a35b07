// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package debugvalue

import (
	"math"
	"slices"
)

// Kind identifies the variant of a Value.
type Kind string

const (
	KindNull      Kind = "null"
	KindBool      Kind = "bool"
	KindInt       Kind = "int"
	KindFloat     Kind = "float"
	KindString    Kind = "string"
	KindArray     Kind = "array"
	KindRecursion Kind = "recursion"
	KindObject    Kind = "object"
	KindResource  Kind = "resource"
)

// Value is one runtime value of the debuggee.
type Value interface {
	Kind() Kind
}

// Null is the null value.
type Null struct{}

func (Null) Kind() Kind { return KindNull }

// Bool is a boolean.
type Bool bool

func (Bool) Kind() Kind { return KindBool }

// Int is an integer.
type Int int64

func (Int) Kind() Kind { return KindInt }

// String is a decoded string. It is binary: the debuggee's strings are
// byte strings and need not be valid UTF-8.
type String string

func (String) Kind() Kind { return KindString }

// Resource is an opaque resource descriptor such as
// "resource id='90' type='stream'".
type Resource struct {
	Descriptor string
}

func (Resource) Kind() Kind { return KindResource }

// FloatClass distinguishes ordinary floats from the special values the
// engine reports by name.
type FloatClass int

const (
	FloatNormal FloatClass = iota
	FloatInfinity
	FloatNaN
)

// Float is a floating point number. For FloatInfinity the sign of Value
// carries the direction; for FloatNaN Value is NaN.
type Float struct {
	Class FloatClass
	Value float64
}

func (Float) Kind() Kind { return KindFloat }

// Equal compares by class first, so NaN equals NaN.
func (f Float) Equal(other Float) bool {
	if f.Class != other.Class {
		return false
	}
	switch f.Class {
	case FloatNaN:
		return true
	case FloatInfinity:
		return math.Signbit(f.Value) == math.Signbit(other.Value)
	default:
		return f.Value == other.Value
	}
}

// Recursion marks a reference back to an array already being printed.
type Recursion struct{}

func (Recursion) Kind() Kind { return KindRecursion }

// Entry is one key of an Array.
type Entry struct {
	Name  string
	Value Value
}

// Array is an ordered mapping of names to values. When Truncated is set
// the engine stopped at its depth limit: Entries is empty and Fullname
// is the expression that fetches the array.
type Array struct {
	Entries   []Entry
	Truncated bool
	Fullname  string
}

func (*Array) Kind() Kind { return KindArray }

// Len returns the number of entries.
func (a *Array) Len() int { return len(a.Entries) }

// Get returns the value stored under name.
func (a *Array) Get(name string) (Value, bool) {
	if index := a.find(name); index >= 0 {
		return a.Entries[index].Value, true
	}
	return nil, false
}

// Set replaces the value under name in place, or appends it.
func (a *Array) Set(name string, value Value) {
	if index := a.find(name); index >= 0 {
		a.Entries[index].Value = value
		return
	}
	a.Entries = append(a.Entries, Entry{Name: name, Value: value})
}

// Delete removes name and reports whether it was present.
func (a *Array) Delete(name string) bool {
	index := a.find(name)
	if index < 0 {
		return false
	}
	a.Entries = slices.Delete(a.Entries, index, index+1)
	return true
}

// Names returns the keys in order.
func (a *Array) Names() []string {
	names := make([]string, len(a.Entries))
	for index, entry := range a.Entries {
		names[index] = entry.Name
	}
	return names
}

// SortKeys stable-sorts the entries by key.
func (a *Array) SortKeys(compare func(a, b string) int) {
	slices.SortStableFunc(a.Entries, func(x, y Entry) int {
		return compare(x.Name, y.Name)
	})
}

func (a *Array) find(name string) int {
	for index := range a.Entries {
		if a.Entries[index].Name == name {
			return index
		}
	}
	return -1
}

// Visibility is a member's access modifier.
type Visibility string

const (
	Public    Visibility = "public"
	Protected Visibility = "protected"
	Private   Visibility = "private"
)

// Property is one object member.
type Property struct {
	Name       string
	Value      Value
	IsStatic   bool
	Visibility Visibility
}

// Param is one parameter of a synthesized method.
type Param struct {
	Name       string
	IsOptional bool
}

// Method is a synthesized method signature. The engine does not report
// methods; the only source is a closure's parameter list.
type Method struct {
	Name       string
	Params     []Param
	Visibility Visibility
}

// Object is an object instance. Truncated and Fullname follow the same
// rules as for Array.
type Object struct {
	ClassName  string
	Properties []Property
	Methods    []Method
	Truncated  bool
	Fullname   string
}

func (*Object) Kind() Kind { return KindObject }

// Property returns the named member.
func (o *Object) Property(name string) (Property, bool) {
	for _, property := range o.Properties {
		if property.Name == name {
			return property, true
		}
	}
	return Property{}, false
}

func (o *Object) setProperty(property Property) {
	for index := range o.Properties {
		if o.Properties[index].Name == property.Name {
			o.Properties[index] = property
			return
		}
	}
	o.Properties = append(o.Properties, property)
}
