// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestOrderedMapJSONKeepsInsertionOrder(t *testing.T) {
	t.Parallel()

	var inner OrderedMap
	inner.Set("z", 1)
	inner.Set("a", true)

	var outer OrderedMap
	outer.Set("second", "x")
	outer.Set("first", inner)
	outer.Set("second", "y")

	data, err := json.Marshal([]any{"log", outer})
	if err != nil {
		t.Fatalf("json.Marshal: %v", err)
	}
	want := `["log",{"second":"y","first":{"z":1,"a":true}}]`
	if string(data) != want {
		t.Errorf("got %s, want %s", data, want)
	}
}

func TestOrderedMapCBORKeepsInsertionOrder(t *testing.T) {
	t.Parallel()

	var m OrderedMap
	m.Set("zeta", 1)
	m.Set("alpha", "two")

	data, err := Marshal(m)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	notation, err := Diagnose(data)
	if err != nil {
		t.Fatalf("Diagnose: %v", err)
	}
	if strings.Index(notation, `"zeta"`) > strings.Index(notation, `"alpha"`) {
		t.Errorf("CBOR map keys reordered: %s", notation)
	}

	var decoded map[string]any
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded["alpha"] != "two" {
		t.Errorf("alpha: got %v, want two", decoded["alpha"])
	}
}

func TestOrderedMapCBORLongHeader(t *testing.T) {
	t.Parallel()

	var m OrderedMap
	for index := 0; index < 300; index++ {
		m.Set(strings.Repeat("k", index+1), index)
	}
	data, err := Marshal(m)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if data[0] != 0xb9 {
		t.Errorf("header byte: got %#x, want 0xb9 (two-byte length)", data[0])
	}
	var decoded map[string]any
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(decoded) != 300 {
		t.Errorf("decoded %d entries, want 300", len(decoded))
	}
}

func TestUnmarshalUntypedMapsAreStringKeyed(t *testing.T) {
	t.Parallel()

	data, err := Marshal([]any{"app", map[string]any{"n": "$x"}})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded []any
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if _, ok := decoded[1].(map[string]any); !ok {
		t.Errorf("decoded map type: got %T, want map[string]any", decoded[1])
	}
}

func TestUnmarshalInvalidCBOR(t *testing.T) {
	t.Parallel()

	var value any
	if err := Unmarshal([]byte{0xFF, 0xFE, 0xFD}, &value); err == nil {
		t.Error("Unmarshal should reject invalid CBOR")
	}
}
