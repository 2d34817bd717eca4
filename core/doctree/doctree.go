// Package doctree provides a parsed markup document as an arena of nodes.
//
// Nodes are addressed by NodeID handles into a flat slice. Every node keeps
// its parent's handle and its children's handles, so upward lookups such as
// parent text or attributes need no back pointers.
//
// Only elements and character data are kept. Comments, processing
// instructions and the XML declaration are dropped at parse time; CDATA
// sections become ordinary text nodes.
package doctree

import (
	"fmt"
	"strings"
)

// NodeID is a handle to a node within a Tree.
type NodeID int

// NoNode is returned by lookups that find nothing.
const NoNode NodeID = -1

// Kind is the kind of a tree node.
type Kind uint8

const (
	// KindDocument is the single document node at handle 0.
	KindDocument Kind = iota
	// KindElement is an element node.
	KindElement
	// KindText is a text (or CDATA) node.
	KindText
)

// Attr is a namespace-resolved attribute.
type Attr struct {
	Namespace string // namespace URI, empty for unqualified attributes
	Prefix    string // prefix as written in the source, if any
	Local     string
	Value     string
}

// Node is a single entry in the arena.
type Node struct {
	Kind      Kind
	Local     string // element local name
	Namespace string // element namespace URI
	Prefix    string // element prefix as written in the source
	Text      string // character data for text nodes
	Attrs     []Attr
	Parent    NodeID
	Children  []NodeID
}

// Tree is a parsed document.
type Tree struct {
	// Source names where the document came from (usually a file path).
	Source string
	nodes  []Node
}

func newTree(source string) *Tree {
	t := &Tree{Source: source}
	t.nodes = append(t.nodes, Node{Kind: KindDocument, Parent: NoNode})
	return t
}

func (t *Tree) add(parent NodeID, n Node) NodeID {
	n.Parent = parent
	id := NodeID(len(t.nodes))
	t.nodes = append(t.nodes, n)
	t.nodes[parent].Children = append(t.nodes[parent].Children, id)
	return id
}

// Len returns the number of nodes, including the document node.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Node returns the node for id. It panics if id is out of range.
func (t *Tree) Node(id NodeID) *Node {
	return &t.nodes[id]
}

// Document returns the handle of the document node.
func (t *Tree) Document() NodeID {
	return 0
}

// Root returns the document element, or NoNode for an empty document.
func (t *Tree) Root() NodeID {
	for _, c := range t.nodes[0].Children {
		if t.nodes[c].Kind == KindElement {
			return c
		}
	}
	return NoNode
}

// IsElement reports whether id is an element.
func (t *Tree) IsElement(id NodeID) bool {
	return id >= 0 && int(id) < len(t.nodes) && t.nodes[id].Kind == KindElement
}

// Parent returns the parent element of id, or NoNode when id is the
// document element or the document node.
func (t *Tree) Parent(id NodeID) NodeID {
	p := t.nodes[id].Parent
	if p == NoNode || t.nodes[p].Kind != KindElement {
		return NoNode
	}
	return p
}

// Children returns the child handles of id in document order.
func (t *Tree) Children(id NodeID) []NodeID {
	return t.nodes[id].Children
}

// HasElementChildren reports whether id has at least one child element.
func (t *Tree) HasElementChildren(id NodeID) bool {
	for _, c := range t.nodes[id].Children {
		if t.nodes[c].Kind == KindElement {
			return true
		}
	}
	return false
}

// Attr looks up an attribute by namespace URI and local name.
func (t *Tree) Attr(id NodeID, namespace, local string) (string, bool) {
	for _, a := range t.nodes[id].Attrs {
		if a.Local == local && a.Namespace == namespace {
			return a.Value, true
		}
	}
	return "", false
}

// DirectText concatenates the text children of id, ignoring text inside
// child elements.
func (t *Tree) DirectText(id NodeID) string {
	var sb strings.Builder
	for _, c := range t.nodes[id].Children {
		if t.nodes[c].Kind == KindText {
			sb.WriteString(t.nodes[c].Text)
		}
	}
	return sb.String()
}

// RecursiveText concatenates all descendant text of id in document order.
func (t *Tree) RecursiveText(id NodeID) string {
	n := &t.nodes[id]
	if n.Kind == KindText {
		return n.Text
	}
	var sb strings.Builder
	t.appendText(&sb, id)
	return sb.String()
}

func (t *Tree) appendText(sb *strings.Builder, id NodeID) {
	for _, c := range t.nodes[id].Children {
		if t.nodes[c].Kind == KindText {
			sb.WriteString(t.nodes[c].Text)
		} else {
			t.appendText(sb, c)
		}
	}
}

// FirstChildElement returns the first child element of id with the given
// namespace URI and local name.
func (t *Tree) FirstChildElement(id NodeID, namespace, local string) NodeID {
	for _, c := range t.nodes[id].Children {
		n := &t.nodes[c]
		if n.Kind == KindElement && n.Local == local && n.Namespace == namespace {
			return c
		}
	}
	return NoNode
}

// Position returns the 1-based position of id among its sibling elements.
func (t *Tree) Position(id NodeID) int {
	p := t.nodes[id].Parent
	if p == NoNode {
		return 0
	}
	pos := 0
	for _, c := range t.nodes[p].Children {
		if t.nodes[c].Kind != KindElement {
			continue
		}
		pos++
		if c == id {
			return pos
		}
	}
	return 0
}

// Depth returns the number of element ancestors of id.
func (t *Tree) Depth(id NodeID) int {
	d := 0
	for p := t.Parent(id); p != NoNode; p = t.Parent(p) {
		d++
	}
	return d
}

// QualifiedName returns prefix:local for prefixed elements, local otherwise.
func (t *Tree) QualifiedName(id NodeID) string {
	n := &t.nodes[id]
	if n.Prefix != "" {
		return n.Prefix + ":" + n.Local
	}
	return n.Local
}

// Path returns a human-readable location such as /TEI/text/body/p[2], used
// in diagnostics. An index is added when siblings share the same name.
func (t *Tree) Path(id NodeID) string {
	if id == NoNode || id == 0 {
		return "/"
	}
	var parts []string
	for cur := id; cur != NoNode && cur != 0; cur = t.nodes[cur].Parent {
		n := &t.nodes[cur]
		if n.Kind == KindText {
			parts = append(parts, "text()")
			continue
		}
		name := t.QualifiedName(cur)
		idx, total := t.sameNameIndex(cur)
		if total > 1 {
			name = fmt.Sprintf("%s[%d]", name, idx)
		}
		parts = append(parts, name)
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return "/" + strings.Join(parts, "/")
}

func (t *Tree) sameNameIndex(id NodeID) (idx, total int) {
	n := &t.nodes[id]
	for _, c := range t.nodes[n.Parent].Children {
		s := &t.nodes[c]
		if s.Kind == KindElement && s.Local == n.Local && s.Namespace == n.Namespace {
			total++
			if c == id {
				idx = total
			}
		}
	}
	return idx, total
}
