package projector

import (
	"github.com/FocuswithJustin/standoff/core/doctree"
	"github.com/FocuswithJustin/standoff/core/template"
)

// nodeContext resolves template variables for one element. begin and end
// are -1 while unknown.
type nodeContext struct {
	run   *run
	doc   *document
	id    doctree.NodeID
	begin int
	end   int
}

func (r *run) context(d *document, id doctree.NodeID) *nodeContext {
	return &nodeContext{run: r, doc: d, id: id, begin: -1, end: -1}
}

func (c *nodeContext) withSpan(begin, end int) *nodeContext {
	cp := *c
	cp.begin, cp.end = begin, end
	return &cp
}

// Resolve implements template.Resolver.
func (c *nodeContext) Resolve(v *template.Variable) (template.Value, bool, error) {
	if v.Kind == template.VarXML {
		val, ok := c.document(v)
		return val, ok, nil
	}
	val, ok := c.named(v.Name)
	if !ok {
		return template.None(), false, nil
	}
	out, ok := template.FieldPath(val, v.Fields)
	return out, ok, nil
}

func (c *nodeContext) named(name string) (template.Value, bool) {
	tree := c.doc.tree
	n := tree.Node(c.id)
	cfg := c.run.cfg
	switch name {
	case "localname":
		return template.String(n.Local), true
	case "name":
		return template.String(c.run.qualifiedName(n)), true
	case "namespace":
		if n.Namespace == "" {
			return template.None(), false
		}
		return template.String(n.Namespace), true
	case "resource":
		return template.String(c.run.resource), true
	case "inputfile":
		if c.doc.inputFile == "" {
			return template.None(), false
		}
		return template.String(c.doc.inputFile), true
	case "doc_num":
		return template.Int(int64(c.doc.num)), true
	case "begin":
		if c.begin < 0 {
			return template.None(), false
		}
		return template.Int(int64(c.begin)), true
	case "end":
		if c.end < 0 {
			return template.None(), false
		}
		return template.Int(int64(c.end)), true
	case "length":
		if c.begin < 0 || c.end < 0 {
			return template.None(), false
		}
		return template.Int(int64(c.end - c.begin)), true
	case "position":
		return template.Int(int64(tree.Position(c.id))), true
	case "depth":
		return template.Int(int64(tree.Depth(c.id))), true
	case "default_set":
		return template.String(cfg.DefaultSet), true
	case "context":
		return cfg.ContextValue(), true
	case "namespaces":
		return c.run.namespaces, true
	}
	return cfg.ContextValue().Field(name)
}

// document resolves @attr, $child, $., $.. and paths built from them.
func (c *nodeContext) document(v *template.Variable) (template.Value, bool) {
	tree := c.doc.tree
	cur := c.id
	for _, step := range v.Steps {
		switch step.Kind {
		case template.StepSelf:
		case template.StepParent:
			cur = tree.Parent(cur)
		case template.StepChild:
			ns, ok := c.run.namespaceURI(step.Name.Prefix)
			if !ok {
				return template.None(), false
			}
			cur = tree.FirstChildElement(cur, ns, step.Name.Local)
		}
		if cur == doctree.NoNode {
			return template.None(), false
		}
	}
	if v.Attr != nil {
		ns, ok := c.run.namespaceURI(v.Attr.Prefix)
		if !ok {
			return template.None(), false
		}
		val, ok := tree.Attr(cur, ns, v.Attr.Local)
		if !ok {
			return template.None(), false
		}
		return template.String(val), true
	}
	if v.Recursive() {
		return template.String(tree.RecursiveText(cur)), true
	}
	return template.String(tree.DirectText(cur)), true
}
