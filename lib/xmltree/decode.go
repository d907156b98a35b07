// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package xmltree

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// ErrMalformed is wrapped by every error Decode returns for input that is
// not a well-formed single-root document.
var ErrMalformed = errors.New("xmltree: malformed markup")

// builder accumulates one open element until its end tag.
type builder struct {
	node  *Node
	texts []string
	// textOpen is true while consecutive character data runs are being
	// joined into the last entry of texts.
	textOpen bool
}

// Decode parses markup and returns its single root element. Child
// elements whose tag appears in alwaysArray always decode into a
// sequence-typed slot, even for a single occurrence.
func Decode(markup []byte, alwaysArray ...string) (*Node, error) {
	forced := make(map[string]bool, len(alwaysArray))
	for _, name := range alwaysArray {
		forced[name] = true
	}

	decoder := xml.NewDecoder(bytes.NewReader(markup))
	decoder.Strict = true
	decoder.CharsetReader = charsetReader

	var (
		stack []*builder
		root  *Node
	)
	for {
		token, err := decoder.RawToken()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}

		switch token := token.(type) {
		case xml.StartElement:
			node := &Node{Name: qualifiedName(token.Name)}
			for _, attribute := range token.Attr {
				node.Attributes = append(node.Attributes, Attr{
					Name:  qualifiedName(attribute.Name),
					Value: attribute.Value,
				})
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("%w: second root element <%s>", ErrMalformed, node.Name)
				}
				root = node
			} else {
				parent := stack[len(stack)-1]
				parent.textOpen = false
				parent.node.attach(node, forced[node.Name])
			}
			stack = append(stack, &builder{node: node})

		case xml.EndElement:
			name := qualifiedName(token.Name)
			if len(stack) == 0 {
				return nil, fmt.Errorf("%w: unexpected end element </%s>", ErrMalformed, name)
			}
			current := stack[len(stack)-1]
			if current.node.Name != name {
				return nil, fmt.Errorf("%w: element <%s> closed by </%s>", ErrMalformed, current.node.Name, name)
			}
			current.finish()
			stack = stack[:len(stack)-1]

		case xml.CharData:
			if len(stack) == 0 {
				if len(bytes.TrimSpace(token)) != 0 {
					return nil, fmt.Errorf("%w: character data outside root element", ErrMalformed)
				}
				continue
			}
			if len(bytes.TrimSpace(token)) == 0 {
				continue
			}
			current := stack[len(stack)-1]
			if current.textOpen {
				current.texts[len(current.texts)-1] += string(token)
			} else {
				current.texts = append(current.texts, string(token))
				current.textOpen = true
			}
		}
	}

	if len(stack) != 0 {
		return nil, fmt.Errorf("%w: unterminated element <%s>", ErrMalformed, stack[len(stack)-1].node.Name)
	}
	if root == nil {
		return nil, fmt.Errorf("%w: no root element", ErrMalformed)
	}
	return root, nil
}

// finish applies the collapsing rule when the element closes.
func (b *builder) finish() {
	for index, text := range b.texts {
		b.texts[index] = strings.TrimSpace(text)
	}
	if len(b.node.slots) == 0 && len(b.texts) == 1 {
		b.node.Text = b.texts[0]
		b.node.HasText = true
		return
	}
	if len(b.texts) > 0 {
		b.node.Texts = b.texts
	}
}

func qualifiedName(name xml.Name) string {
	if name.Space == "" {
		return name.Local
	}
	return name.Space + ":" + name.Local
}

// charsetReader transcodes the legacy single-byte encodings debugger
// engines declare. UTF-8 never reaches this function.
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(label) {
	case "iso-8859-1", "iso8859-1", "latin1", "latin-1":
		return charmap.ISO8859_1.NewDecoder().Reader(input), nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252.NewDecoder().Reader(input), nil
	case "us-ascii", "ascii":
		return input, nil
	}
	return nil, fmt.Errorf("unsupported charset %q", label)
}
