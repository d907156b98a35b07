// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package xmltree

// Attr is one element attribute. Attributes keep document order.
type Attr struct {
	Name  string
	Value string
}

// Slot holds every child element that shares one tag name. Sequence
// reports whether the slot is sequence-typed: true once a second element
// with the same name arrives, and always true for names the caller
// listed as always-array.
type Slot struct {
	Name     string
	Nodes    []*Node
	Sequence bool
}

// Node is one decoded element.
type Node struct {
	// Name is the element tag including any namespace prefix.
	Name string

	// Attributes in document order.
	Attributes []Attr

	// Text is the element's character data when it is the element's
	// only content. HasText distinguishes an empty text run from none.
	Text    string
	HasText bool

	// Texts holds raw text runs of an element whose content mixes
	// character data with child elements. Empty for every other node.
	Texts []string

	slots []*Slot
	index map[string]int
}

// IsScalar reports whether the node degenerated to bare text: it has
// text, no attributes and no children.
func (n *Node) IsScalar() bool {
	return n.HasText && len(n.Attributes) == 0 && len(n.slots) == 0
}

// Attr returns the value of the named attribute.
func (n *Node) Attr(name string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, attribute := range n.Attributes {
		if attribute.Name == name {
			return attribute.Value, true
		}
	}
	return "", false
}

// AttrOr returns the named attribute or fallback when absent.
func (n *Node) AttrOr(name, fallback string) string {
	if value, ok := n.Attr(name); ok {
		return value
	}
	return fallback
}

// Slots returns the child slots in order of first appearance.
func (n *Node) Slots() []*Slot {
	if n == nil {
		return nil
	}
	return n.slots
}

// Slot returns the slot for a tag name, or nil.
func (n *Node) Slot(name string) *Slot {
	if n == nil || n.index == nil {
		return nil
	}
	position, ok := n.index[name]
	if !ok {
		return nil
	}
	return n.slots[position]
}

// Child returns the first child element with the given name, or nil.
func (n *Node) Child(name string) *Node {
	slot := n.Slot(name)
	if slot == nil || len(slot.Nodes) == 0 {
		return nil
	}
	return slot.Nodes[0]
}

// Children returns every child element with the given name.
func (n *Node) Children(name string) []*Node {
	slot := n.Slot(name)
	if slot == nil {
		return nil
	}
	return slot.Nodes
}

// HasChildren reports whether the node has any child element.
func (n *Node) HasChildren() bool {
	return n != nil && len(n.slots) > 0
}

// attach appends child under its tag name following the sequence rules.
func (n *Node) attach(child *Node, alwaysArray bool) {
	if n.index == nil {
		n.index = make(map[string]int)
	}
	position, ok := n.index[child.Name]
	if !ok {
		n.index[child.Name] = len(n.slots)
		n.slots = append(n.slots, &Slot{
			Name:     child.Name,
			Nodes:    []*Node{child},
			Sequence: alwaysArray,
		})
		return
	}
	slot := n.slots[position]
	slot.Nodes = append(slot.Nodes, child)
	slot.Sequence = true
}
