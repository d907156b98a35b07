// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package dbgp

import (
	"fmt"

	"github.com/bureau-foundation/xdebugbus/lib/xmltree"
)

// Frame kinds the engine sends.
const (
	KindInit     = "init"
	KindResponse = "response"
	KindStream   = "stream"
	KindNotify   = "notify"
)

// Message is one decoded frame. Kind is the root element name.
type Message struct {
	Kind string
	Root *xmltree.Node
}

// ParseMessage decodes one frame payload.
func ParseMessage(payload []byte) (*Message, error) {
	root, err := xmltree.Decode(payload, "property")
	if err != nil {
		return nil, fmt.Errorf("dbgp: decoding frame: %w", err)
	}
	return &Message{Kind: root.Name, Root: root}, nil
}

// Attr returns a root attribute, or "" when absent.
func (m *Message) Attr(name string) string {
	return m.Root.AttrOr(name, "")
}

// TransactionID returns the transaction_id attribute.
func (m *Message) TransactionID() (string, bool) {
	return m.Root.Attr("transaction_id")
}

// Command returns the command attribute of a response.
func (m *Message) Command() string {
	return m.Attr("command")
}

// Status returns the status attribute of a response.
func (m *Message) Status() string {
	return m.Attr("status")
}

// Properties returns the top-level property children.
func (m *Message) Properties() []*xmltree.Node {
	return m.Root.Children("property")
}

// Error returns the engine's error code and message when the response
// carries an <error> element.
func (m *Message) Error() (code, message string, ok bool) {
	element := m.Root.Child("error")
	if element == nil {
		return "", "", false
	}
	code = element.AttrOr("code", "")
	if text := element.Child("message"); text != nil {
		message = text.Text
	}
	return code, message, true
}

// IsNamespaceAttr reports whether an attribute is an XML namespace
// declaration rather than protocol data.
func IsNamespaceAttr(name string) bool {
	return name == "xmlns" || len(name) > 6 && name[:6] == "xmlns:"
}
