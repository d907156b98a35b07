// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"encoding/json"

	"github.com/bureau-foundation/xdebugbus/dbgp"
	"github.com/bureau-foundation/xdebugbus/lib/codec"
	"github.com/bureau-foundation/xdebugbus/lib/xmltree"
)

// frameAttributes returns the root attributes of message without XML
// namespace declarations.
func frameAttributes(message *dbgp.Message) codec.OrderedMap {
	attributes := make(codec.OrderedMap, 0, len(message.Root.Attributes))
	for _, attribute := range message.Root.Attributes {
		if dbgp.IsNamespaceAttr(attribute.Name) {
			continue
		}
		attributes = append(attributes, codec.Pair{Key: attribute.Name, Value: attribute.Value})
	}
	return attributes
}

// nodeData converts a decoded element into plain data for logging. A
// scalar child collapses to its text and a sequence slot to a list.
func nodeData(node *xmltree.Node) codec.OrderedMap {
	data := codec.OrderedMap{{Key: "name", Value: node.Name}}
	if len(node.Attributes) > 0 {
		attributes := make(codec.OrderedMap, 0, len(node.Attributes))
		for _, attribute := range node.Attributes {
			if dbgp.IsNamespaceAttr(attribute.Name) {
				continue
			}
			attributes = append(attributes, codec.Pair{Key: attribute.Name, Value: attribute.Value})
		}
		data = append(data, codec.Pair{Key: "attribs", Value: attributes})
	}
	if node.HasText {
		data = append(data, codec.Pair{Key: "text", Value: node.Text})
	}
	if slots := node.Slots(); len(slots) > 0 {
		children := make(codec.OrderedMap, 0, len(slots))
		for _, slot := range slots {
			if !slot.Sequence {
				children = append(children, codec.Pair{Key: slot.Name, Value: childData(slot.Nodes[0])})
				continue
			}
			list := make([]any, len(slot.Nodes))
			for index, child := range slot.Nodes {
				list[index] = childData(child)
			}
			children = append(children, codec.Pair{Key: slot.Name, Value: list})
		}
		data = append(data, codec.Pair{Key: "children", Value: children})
	}
	return data
}

func childData(node *xmltree.Node) any {
	if node.IsScalar() {
		return node.Text
	}
	return nodeData(node)
}

// logJSON formats data for a log attribute.
func logJSON(data any) string {
	encoded, err := json.Marshal(data)
	if err != nil {
		return err.Error()
	}
	return string(encoded)
}
