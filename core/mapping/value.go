package mapping

import (
	"fmt"
	"sort"

	"github.com/FocuswithJustin/standoff/core/template"
)

// valueNode is a compiled data value: a template leaf, a literal scalar, or
// a list/map of further nodes.
type valueNode struct {
	tpl    *template.Template
	lit    template.Value
	list   []*valueNode
	keys   []string
	fields map[string]*valueNode
	isList bool
	isMap  bool
}

func compileValue(v any) (*valueNode, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case string:
		tpl, err := template.Compile(x)
		if err != nil {
			return nil, err
		}
		return &valueNode{tpl: tpl}, nil
	case []any:
		n := &valueNode{isList: true}
		for _, item := range x {
			child, err := compileValue(item)
			if err != nil {
				return nil, err
			}
			if child == nil {
				child = &valueNode{lit: template.None()}
			}
			n.list = append(n.list, child)
		}
		return n, nil
	case map[string]any:
		n := &valueNode{isMap: true, fields: map[string]*valueNode{}}
		for k := range x {
			n.keys = append(n.keys, k)
		}
		sort.Strings(n.keys)
		for _, k := range n.keys {
			child, err := compileValue(x[k])
			if err != nil {
				return nil, err
			}
			if child == nil {
				child = &valueNode{lit: template.None()}
			}
			n.fields[k] = child
		}
		return n, nil
	case bool, float64, int, int64:
		return &valueNode{lit: template.FromAny(x)}, nil
	}
	return nil, fmt.Errorf("unsupported value type %T", v)
}

func (n *valueNode) eval(r template.Resolver) (template.Value, error) {
	switch {
	case n.tpl != nil:
		return n.tpl.Eval(r)
	case n.isList:
		items := make([]template.Value, len(n.list))
		for i, child := range n.list {
			v, err := child.eval(r)
			if err != nil {
				return template.None(), err
			}
			items[i] = v
		}
		return template.List(items...), nil
	case n.isMap:
		m := make(map[string]template.Value, len(n.keys))
		for _, k := range n.keys {
			v, err := n.fields[k].eval(r)
			if err != nil {
				return template.None(), err
			}
			m[k] = v
		}
		return template.Map(m), nil
	}
	return n.lit, nil
}

// templates lists every template leaf, for prefix validation.
func (n *valueNode) templates() []*template.Template {
	if n == nil {
		return nil
	}
	if n.tpl != nil {
		return []*template.Template{n.tpl}
	}
	var out []*template.Template
	for _, child := range n.list {
		out = append(out, child.templates()...)
	}
	for _, k := range n.keys {
		out = append(out, n.fields[k].templates()...)
	}
	return out
}
