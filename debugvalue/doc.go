// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package debugvalue maps DBGP property trees onto a typed model of the
// debuggee's runtime values, and renders that model into a
// serializer-neutral tree for publishing.
//
// [Convert] is a pure function over an [xmltree.Node] produced by the
// dbgp package (with "property" decoded as a sequence). It never fails:
// an unrecognized property type becomes a placeholder [String], and
// depth-limited composites become truncation markers carrying the
// fullname a consumer can use to fetch them later with property_get.
//
// [Render] produces the payload shape consumed by the debug console:
// scalars stay scalars, and everything the console needs to tell apart
// (special floats, resources, truncated arrays, objects, non-UTF-8
// strings) becomes an abstraction map tagged with [AbstractionMarker].
// Maps are [codec.OrderedMap] so key order survives both JSON and CBOR.
package debugvalue
