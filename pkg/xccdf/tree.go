package xccdf

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"
)

// Node is an element in a loaded XML document. Names are kept qualified but
// every lookup helper matches on the local name only, so documents using a
// default namespace that changes between releases still resolve.
type Node struct {
	Name     xml.Name
	Attrs    []xml.Attr
	Parent   *Node
	Children []*Node

	content []nodeContent
	start   int64
	end     int64
}

// nodeContent preserves document order of text and child elements so that
// InnerText reads mixed content correctly.
type nodeContent struct {
	text  string
	child *Node
}

// Document is a fully loaded XML file. The raw bytes are retained so element
// snippets can be cut from the original text instead of re-serialized.
type Document struct {
	Path string
	Root *Node
	raw  []byte
}

// Attr returns the value of the attribute with the given local name,
// ignoring case and namespace.
func (n *Node) Attr(local string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, attr := range n.Attrs {
		if strings.EqualFold(attr.Name.Local, local) {
			return attr.Value, true
		}
	}
	return "", false
}

// Is reports whether the element's local name equals local, ignoring case.
func (n *Node) Is(local string) bool {
	return n != nil && strings.EqualFold(n.Name.Local, local)
}

// Child returns the first direct child with the given local name.
func (n *Node) Child(local string) *Node {
	if n == nil {
		return nil
	}
	for _, child := range n.Children {
		if child.Is(local) {
			return child
		}
	}
	return nil
}

// ChildrenNamed returns every direct child with the given local name.
func (n *Node) ChildrenNamed(local string) []*Node {
	if n == nil {
		return nil
	}
	var matches []*Node
	for _, child := range n.Children {
		if child.Is(local) {
			matches = append(matches, child)
		}
	}
	return matches
}

// Text returns the character data directly inside the element, trimmed.
func (n *Node) Text() string {
	if n == nil {
		return ""
	}
	var builder strings.Builder
	for _, item := range n.content {
		if item.child == nil {
			builder.WriteString(item.text)
		}
	}
	return strings.TrimSpace(builder.String())
}

// InnerText returns all character data under the element in document order,
// trimmed.
func (n *Node) InnerText() string {
	if n == nil {
		return ""
	}
	var builder strings.Builder
	n.writeInnerText(&builder)
	return strings.TrimSpace(builder.String())
}

func (n *Node) writeInnerText(builder *strings.Builder) {
	for _, item := range n.content {
		if item.child != nil {
			item.child.writeInnerText(builder)
			continue
		}
		builder.WriteString(item.text)
	}
}

// Walk visits n and its descendants depth-first in document order. Returning
// false from visit stops the walk.
func (n *Node) Walk(visit func(*Node) bool) bool {
	if n == nil {
		return true
	}
	if !visit(n) {
		return false
	}
	for _, child := range n.Children {
		if !child.Walk(visit) {
			return false
		}
	}
	return true
}

// Find returns the first node in document order for which match is true.
func (n *Node) Find(match func(*Node) bool) *Node {
	var found *Node
	n.Walk(func(node *Node) bool {
		if match(node) {
			found = node
			return false
		}
		return true
	})
	return found
}

// Snippet returns the original XML text of the element.
func (d *Document) Snippet(n *Node) string {
	if d == nil || n == nil || n.start < 0 || n.end > int64(len(d.raw)) || n.start >= n.end {
		return ""
	}
	return string(d.raw[n.start:n.end])
}

// LoadFile reads and parses the XML file at path.
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	document, err := Load(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	document.Path = path
	return document, nil
}

// Load parses data into a Document. A document that ends before its root
// element closes is an error.
func Load(data []byte) (*Document, error) {
	decoder := newDecoder(bytes.NewReader(data))

	var root *Node
	var current *Node

	for {
		offset := decoder.InputOffset()
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse XML: %w", err)
		}

		switch typed := token.(type) {
		case xml.StartElement:
			node := &Node{
				Name:   typed.Name,
				Attrs:  append([]xml.Attr(nil), typed.Attr...),
				Parent: current,
				start:  offset,
			}
			if current == nil {
				if root != nil {
					return nil, fmt.Errorf("failed to parse XML: multiple root elements")
				}
				root = node
			} else {
				current.Children = append(current.Children, node)
				current.content = append(current.content, nodeContent{child: node})
			}
			current = node

		case xml.EndElement:
			if current == nil {
				continue
			}
			current.end = decoder.InputOffset()
			current = current.Parent

		case xml.CharData:
			if current != nil {
				current.content = append(current.content, nodeContent{text: string(typed)})
			}
		}
	}

	if root == nil {
		return nil, fmt.Errorf("failed to parse XML: no root element")
	}
	if current != nil {
		return nil, fmt.Errorf("failed to parse XML: element <%s> not closed: %w", current.Name.Local, io.ErrUnexpectedEOF)
	}

	return &Document{Root: root, raw: data}, nil
}
