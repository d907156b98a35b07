// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package xmltree decodes a markup document into a generic ordered tree.
//
// The decoder performs a single forward scan over the token stream and
// keeps an explicit stack of node builders, one per open element. It has
// no knowledge of any particular protocol; callers supply the set of
// element names that must always decode as sequences so that downstream
// code can treat repeated and single occurrences uniformly.
//
// Two collapsing rules shape the result:
//
//   - An element whose only content is one run of character data takes
//     that text as [Node.Text] and keeps no children.
//   - If such an element also carries no attributes it is scalar
//     ([Node.IsScalar]): the protocol uses this form for leaf value
//     elements that serialize as plain character data.
//
// Whitespace-only character data is ignored. Consecutive text and CDATA
// runs inside one element are joined into a single text entry. Element
// and attribute names keep their namespace prefix ("xdebug:message",
// "xmlns:xdebug"); prefixes are never resolved.
//
// Only the subset of XML emitted by debugger engines is supported.
// Malformed input (unterminated or mismatched elements, several root
// elements, no root element) is rejected with an error wrapping
// [ErrMalformed]; the decoder never attempts repair. Documents declaring
// ISO-8859-1 or US-ASCII are transcoded to UTF-8 while decoding.
package xmltree
