// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
)

// Pair is one entry of an OrderedMap.
type Pair struct {
	Key   string
	Value any
}

// OrderedMap is a string-keyed mapping that serializes its entries in
// insertion order, to JSON and to CBOR alike.
type OrderedMap []Pair

// Set replaces the value for key, or appends a new entry.
func (m *OrderedMap) Set(key string, value any) {
	for index := range *m {
		if (*m)[index].Key == key {
			(*m)[index].Value = value
			return
		}
	}
	*m = append(*m, Pair{Key: key, Value: value})
}

// Get returns the value stored under key.
func (m OrderedMap) Get(key string) (any, bool) {
	for _, pair := range m {
		if pair.Key == key {
			return pair.Value, true
		}
	}
	return nil, false
}

// Keys returns the keys in order.
func (m OrderedMap) Keys() []string {
	keys := make([]string, len(m))
	for index, pair := range m {
		keys[index] = pair.Key
	}
	return keys
}

// MarshalJSON writes a JSON object with keys in insertion order.
func (m OrderedMap) MarshalJSON() ([]byte, error) {
	var buffer bytes.Buffer
	buffer.WriteByte('{')
	for index, pair := range m {
		if index > 0 {
			buffer.WriteByte(',')
		}
		key, err := json.Marshal(pair.Key)
		if err != nil {
			return nil, err
		}
		buffer.Write(key)
		buffer.WriteByte(':')
		value, err := json.Marshal(pair.Value)
		if err != nil {
			return nil, fmt.Errorf("codec: marshaling %q: %w", pair.Key, err)
		}
		buffer.Write(value)
	}
	buffer.WriteByte('}')
	return buffer.Bytes(), nil
}

// MarshalCBOR writes a definite-length CBOR map (major type 5) with
// keys in insertion order.
func (m OrderedMap) MarshalCBOR() ([]byte, error) {
	var buffer bytes.Buffer
	writeMapHeader(&buffer, uint64(len(m)))
	for _, pair := range m {
		key, err := encMode.Marshal(pair.Key)
		if err != nil {
			return nil, err
		}
		buffer.Write(key)
		value, err := encMode.Marshal(pair.Value)
		if err != nil {
			return nil, fmt.Errorf("codec: marshaling %q: %w", pair.Key, err)
		}
		buffer.Write(value)
	}
	return buffer.Bytes(), nil
}

// writeMapHeader encodes the map head with the shortest argument form.
func writeMapHeader(buffer *bytes.Buffer, length uint64) {
	const majorMap = 0xa0
	switch {
	case length < 24:
		buffer.WriteByte(majorMap | byte(length))
	case length <= 0xff:
		buffer.WriteByte(majorMap | 24)
		buffer.WriteByte(byte(length))
	case length <= 0xffff:
		buffer.WriteByte(majorMap | 25)
		buffer.Write(binary.BigEndian.AppendUint16(nil, uint16(length)))
	case length <= 0xffffffff:
		buffer.WriteByte(majorMap | 26)
		buffer.Write(binary.BigEndian.AppendUint32(nil, uint32(length)))
	default:
		buffer.WriteByte(majorMap | 27)
		buffer.Write(binary.BigEndian.AppendUint64(nil, length))
	}
}
