package doctree

import (
	"fmt"

	"github.com/antchfx/xpath"

	"github.com/FocuswithJustin/standoff/core/errors"
)

// XPath evaluates an XPath 1.0 expression against the tree and returns the
// matching elements in document order. Attribute and text matches are
// reported as their owning element. Prefixes in expr resolve through
// namespaces.
func (t *Tree) XPath(expr string, namespaces map[string]string) ([]NodeID, error) {
	compiled, err := xpath.CompileWithNS(expr, namespaces)
	if err != nil {
		return nil, errors.Wrapf(err, "compiling xpath %q", expr)
	}
	nav := &navigator{tree: t, cur: 0, attr: -1}
	iter := compiled.Select(nav)

	var out []NodeID
	seen := map[NodeID]bool{}
	for iter.MoveNext() {
		n, ok := iter.Current().(*navigator)
		if !ok {
			return nil, fmt.Errorf("xpath %q: unexpected navigator %T", expr, iter.Current())
		}
		id := n.cur
		if t.nodes[id].Kind == KindText {
			id = t.nodes[id].Parent
		}
		if t.nodes[id].Kind != KindElement || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out, nil
}

// navigator implements xpath.NodeNavigator over the arena.
type navigator struct {
	tree *Tree
	cur  NodeID
	attr int // index into the current element's Attrs, -1 when on the element
}

func (n *navigator) node() *Node {
	return &n.tree.nodes[n.cur]
}

func (n *navigator) NodeType() xpath.NodeType {
	if n.attr >= 0 {
		return xpath.AttributeNode
	}
	switch n.node().Kind {
	case KindElement:
		return xpath.ElementNode
	case KindText:
		return xpath.TextNode
	}
	return xpath.RootNode
}

func (n *navigator) LocalName() string {
	if n.attr >= 0 {
		return n.node().Attrs[n.attr].Local
	}
	return n.node().Local
}

func (n *navigator) Prefix() string {
	if n.attr >= 0 {
		return n.node().Attrs[n.attr].Prefix
	}
	return n.node().Prefix
}

// NamespaceURL is consulted by xpath for prefixed name tests.
func (n *navigator) NamespaceURL() string {
	if n.attr >= 0 {
		return n.node().Attrs[n.attr].Namespace
	}
	return n.node().Namespace
}

func (n *navigator) Value() string {
	if n.attr >= 0 {
		return n.node().Attrs[n.attr].Value
	}
	return n.tree.RecursiveText(n.cur)
}

func (n *navigator) Copy() xpath.NodeNavigator {
	cp := *n
	return &cp
}

func (n *navigator) MoveToRoot() {
	n.cur = 0
	n.attr = -1
}

func (n *navigator) MoveToParent() bool {
	if n.attr >= 0 {
		n.attr = -1
		return true
	}
	p := n.node().Parent
	if p == NoNode {
		return false
	}
	n.cur = p
	return true
}

func (n *navigator) MoveToNextAttribute() bool {
	if n.node().Kind != KindElement || n.attr+1 >= len(n.node().Attrs) {
		return false
	}
	n.attr++
	return true
}

func (n *navigator) MoveToChild() bool {
	if n.attr >= 0 {
		return false
	}
	children := n.node().Children
	if len(children) == 0 {
		return false
	}
	n.cur = children[0]
	return true
}

func (n *navigator) MoveToFirst() bool {
	if n.attr >= 0 {
		return false
	}
	siblings, idx := n.siblings()
	if idx <= 0 {
		return false
	}
	n.cur = siblings[0]
	return true
}

func (n *navigator) MoveToNext() bool {
	if n.attr >= 0 {
		return false
	}
	siblings, idx := n.siblings()
	if idx < 0 || idx+1 >= len(siblings) {
		return false
	}
	n.cur = siblings[idx+1]
	return true
}

func (n *navigator) MoveToPrevious() bool {
	if n.attr >= 0 {
		return false
	}
	siblings, idx := n.siblings()
	if idx <= 0 {
		return false
	}
	n.cur = siblings[idx-1]
	return true
}

func (n *navigator) MoveTo(other xpath.NodeNavigator) bool {
	o, ok := other.(*navigator)
	if !ok || o.tree != n.tree {
		return false
	}
	n.cur = o.cur
	n.attr = o.attr
	return true
}

func (n *navigator) siblings() ([]NodeID, int) {
	p := n.node().Parent
	if p == NoNode {
		return nil, -1
	}
	siblings := n.tree.nodes[p].Children
	for i, c := range siblings {
		if c == n.cur {
			return siblings, i
		}
	}
	return nil, -1
}
