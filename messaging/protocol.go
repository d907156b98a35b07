// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/gorilla/websocket"

	"github.com/bureau-foundation/xdebugbus/lib/codec"
)

// WAMP v2 message type codes used by a publisher/subscriber client.
const (
	codeHello      = 1
	codeWelcome    = 2
	codeAbort      = 3
	codeGoodbye    = 6
	codeError      = 8
	codePublish    = 16
	codePublished  = 17
	codeSubscribe  = 32
	codeSubscribed = 33
	codeEvent      = 36
)

// Serialization names accepted by ClientConfig.
const (
	SerializationJSON = "json"
	SerializationCBOR = "cbor"
)

// serializer converts WAMP messages (arrays) to websocket payloads.
type serializer interface {
	subprotocol() string
	frameType() int
	encode(message []any) ([]byte, error)
	decode(data []byte) ([]any, error)
}

func newSerializer(name string) (serializer, error) {
	switch name {
	case "", SerializationJSON:
		return jsonSerializer{}, nil
	case SerializationCBOR:
		return cborSerializer{}, nil
	}
	return nil, fmt.Errorf("messaging: unsupported serialization %q", name)
}

type jsonSerializer struct{}

func (jsonSerializer) subprotocol() string { return "wamp.2.json" }
func (jsonSerializer) frameType() int      { return websocket.TextMessage }

func (jsonSerializer) encode(message []any) ([]byte, error) {
	return json.Marshal(message)
}

// decode keeps numbers as json.Number: WAMP ids use the full 53-bit
// range and must not round-trip through float64 formatting.
func (jsonSerializer) decode(data []byte) ([]any, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	var message []any
	if err := decoder.Decode(&message); err != nil {
		return nil, err
	}
	return message, nil
}

type cborSerializer struct{}

func (cborSerializer) subprotocol() string { return "wamp.2.cbor" }
func (cborSerializer) frameType() int      { return websocket.BinaryMessage }

func (cborSerializer) encode(message []any) ([]byte, error) {
	return codec.Marshal(message)
}

func (cborSerializer) decode(data []byte) ([]any, error) {
	var message []any
	if err := codec.Unmarshal(data, &message); err != nil {
		return nil, err
	}
	return message, nil
}

// ID converts a decoded WAMP id or integer to uint64. Both serializers
// are accepted: JSON yields json.Number, CBOR yields uint64 or int64.
func ID(value any) (uint64, bool) {
	switch value := value.(type) {
	case json.Number:
		parsed, err := value.Int64()
		if err != nil || parsed < 0 {
			return 0, false
		}
		return uint64(parsed), true
	case uint64:
		return value, true
	case int64:
		if value < 0 {
			return 0, false
		}
		return uint64(value), true
	case int:
		if value < 0 {
			return 0, false
		}
		return uint64(value), true
	case float64:
		if value < 0 || value != math.Trunc(value) {
			return 0, false
		}
		return uint64(value), true
	}
	return 0, false
}

// dict returns value as a WAMP dictionary, or an empty one.
func dict(value any) map[string]any {
	if mapping, ok := value.(map[string]any); ok {
		return mapping
	}
	return map[string]any{}
}

// list returns value as a WAMP list, or nil.
func list(value any) []any {
	if items, ok := value.([]any); ok {
		return items
	}
	return nil
}

// at returns message[index], or nil past the end.
func at(message []any, index int) any {
	if index < len(message) {
		return message[index]
	}
	return nil
}
