// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the shared serialization configuration for the
// key-ordered payloads the bridge publishes.
//
// Two wire formats are in play. JSON serves the "wamp.2.json" message
// bus subprotocol; CBOR serves "wamp.2.cbor". Both must carry debugger
// values whose keys have a meaningful order (PHP arrays, object property
// declaration order, source line numbers), which neither a Go map nor
// CBOR Core Deterministic Encoding preserves. [OrderedMap] fills that
// gap: it marshals to a JSON object or CBOR map whose keys appear in
// insertion order.
//
// The CBOR modes follow RFC 8949 §4.2 for everything except
// [OrderedMap], and decode maps into map[string]any so decoded frames
// interoperate with code written against encoding/json:
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
package codec
