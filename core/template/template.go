// Package template implements the small template language used in mapping
// files for identifiers, text prefixes and annotation data.
//
// A template is literal text with {{ expr }} interpolations and
// {% if %} / {% for %} / {% with %} blocks. Expressions name a variable or
// literal and pipe it through filters:
//
//	{{ @xml:id }}
//	{{ $title | trim | lower }}
//	{% if ?.@n %}n={{ @n | int | plus: 1 }}{% endif %}
//
// Variables are looked up through a Resolver supplied by the caller; the
// package itself knows nothing about documents.
package template

import (
	"fmt"
	"strings"

	"github.com/FocuswithJustin/standoff/core/errors"
)

// Resolver answers variable lookups. ok is false when the variable has no
// value; the template decides whether that is fatal.
type Resolver interface {
	Resolve(v *Variable) (value Value, ok bool, err error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(v *Variable) (Value, bool, error)

// Resolve implements Resolver.
func (f ResolverFunc) Resolve(v *Variable) (Value, bool, error) {
	return f(v)
}

// Template is a compiled template. It is safe for concurrent use.
type Template struct {
	source  string
	literal bool
	nodes   []node
	vars    []*Variable
}

type node interface{}

type textNode string

type outputNode struct {
	expr *expr
}

type ifBranch struct {
	cond *expr
	body []node
}

type ifNode struct {
	branches []ifBranch
	elseBody []node
}

type forNode struct {
	first, second string
	expr          *expr
	body          []node
}

type withNode struct {
	expr *expr
	name string
	body []node
}

type operandKind int

const (
	operandLiteral operandKind = iota
	operandVar
)

type operand struct {
	kind    operandKind
	literal Value
	v       *Variable
}

type filterCall struct {
	name string
	fn   filterFunc
	args []operand
}

type expr struct {
	src     string
	not     bool
	operand operand
	filters []filterCall
}

// segment is a raw piece of template source.
type segment struct {
	kind    byte // 't' text, 'o' output, 'b' block tag
	content string
}

// Compile parses src. Text without "{{" or "{%" is a literal and bypasses
// the engine entirely.
func Compile(src string) (*Template, error) {
	t := &Template{source: src}
	if !strings.Contains(src, "{{") && !strings.Contains(src, "{%") {
		t.literal = true
		return t, nil
	}
	segs, err := scan(src)
	if err != nil {
		return nil, t.compileError(err)
	}
	c := &compiler{t: t, segs: segs}
	nodes, end, err := c.block()
	if err != nil {
		return nil, t.compileError(err)
	}
	if end != "" {
		return nil, t.compileError(fmt.Errorf("unexpected {%% %s %%}", end))
	}
	t.nodes = nodes
	return t, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(src string) *Template {
	t, err := Compile(src)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Template) compileError(err error) error {
	return &errors.TemplateError{Template: t.source, Message: "compile", Err: err}
}

// Source returns the template text.
func (t *Template) Source() string { return t.source }

// IsLiteral reports whether the template contains no template syntax.
func (t *Template) IsLiteral() bool { return t.literal }

// Variables returns every variable the template references, in source
// order. Loop and with-block names are included as VarName references.
func (t *Template) Variables() []*Variable { return t.vars }

func scan(src string) ([]segment, error) {
	var segs []segment
	for len(src) > 0 {
		i := indexOpen(src)
		if i < 0 {
			segs = append(segs, segment{kind: 't', content: src})
			break
		}
		if i > 0 {
			segs = append(segs, segment{kind: 't', content: src[:i]})
		}
		closer, kind := "}}", byte('o')
		if src[i+1] == '%' {
			closer, kind = "%}", 'b'
		}
		j := strings.Index(src[i+2:], closer)
		if j < 0 {
			return nil, fmt.Errorf("unterminated %s", src[i:i+2])
		}
		segs = append(segs, segment{kind: kind, content: strings.TrimSpace(src[i+2 : i+2+j])})
		src = src[i+2+j+2:]
	}
	return segs, nil
}

func indexOpen(s string) int {
	for i := 0; i+1 < len(s); i++ {
		if s[i] == '{' && (s[i+1] == '{' || s[i+1] == '%') {
			return i
		}
	}
	return -1
}

type compiler struct {
	t    *Template
	segs []segment
	pos  int
	// pendingTag holds the tag that ended the last block.
	pendingTag *tagGrammar
}

// block parses nodes until a closing or intermediate tag. It returns the
// name of that tag ("" at end of input).
func (c *compiler) block() ([]node, string, error) {
	var nodes []node
	for c.pos < len(c.segs) {
		seg := c.segs[c.pos]
		c.pos++
		switch seg.kind {
		case 't':
			nodes = append(nodes, textNode(seg.content))
		case 'o':
			e, err := c.expr(seg.content)
			if err != nil {
				return nil, "", err
			}
			nodes = append(nodes, outputNode{expr: e})
		case 'b':
			tag, err := tagParser.ParseString("", seg.content)
			if err != nil {
				return nil, "", fmt.Errorf("block {%% %s %%}: %w", seg.content, err)
			}
			switch {
			case tag.If != nil:
				n, err := c.ifBlock(tag.If)
				if err != nil {
					return nil, "", err
				}
				nodes = append(nodes, n)
			case tag.For != nil:
				n, err := c.forBlock(tag.For)
				if err != nil {
					return nil, "", err
				}
				nodes = append(nodes, n)
			case tag.With != nil:
				n, err := c.withBlock(tag.With)
				if err != nil {
					return nil, "", err
				}
				nodes = append(nodes, n)
			case tag.ElseIf != nil:
				c.pendingTag = tag
				return nodes, "elif", nil
			case tag.Else:
				return nodes, "else", nil
			case tag.EndIf:
				return nodes, "endif", nil
			case tag.EndFor:
				return nodes, "endfor", nil
			case tag.EndWith:
				return nodes, "endwith", nil
			}
		}
	}
	return nodes, "", nil
}

func (c *compiler) ifBlock(cond *exprGrammar) (node, error) {
	e, err := c.exprFrom(cond)
	if err != nil {
		return nil, err
	}
	n := ifNode{}
	for {
		body, end, err := c.block()
		if err != nil {
			return nil, err
		}
		n.branches = append(n.branches, ifBranch{cond: e, body: body})
		switch end {
		case "endif":
			return n, nil
		case "elif":
			e, err = c.exprFrom(c.pendingTag.ElseIf)
			if err != nil {
				return nil, err
			}
		case "else":
			body, end, err := c.block()
			if err != nil {
				return nil, err
			}
			if end != "endif" {
				return nil, fmt.Errorf("expected {%% endif %%} after {%% else %%}")
			}
			n.elseBody = body
			return n, nil
		default:
			return nil, fmt.Errorf("unterminated {%% if %%}")
		}
	}
}

func (c *compiler) forBlock(fg *forGrammar) (node, error) {
	e, err := c.exprFrom(fg.In)
	if err != nil {
		return nil, err
	}
	n := forNode{first: fg.First, expr: e}
	if fg.Second != nil {
		n.second = *fg.Second
	}
	body, end, err := c.block()
	if err != nil {
		return nil, err
	}
	if end != "endfor" {
		return nil, fmt.Errorf("unterminated {%% for %%}")
	}
	n.body = body
	return n, nil
}

func (c *compiler) withBlock(wg *withGrammar) (node, error) {
	e, err := c.exprFrom(wg.Expr)
	if err != nil {
		return nil, err
	}
	body, end, err := c.block()
	if err != nil {
		return nil, err
	}
	if end != "endwith" {
		return nil, fmt.Errorf("unterminated {%% with %%}")
	}
	return withNode{expr: e, name: wg.As, body: body}, nil
}

func (c *compiler) expr(src string) (*expr, error) {
	g, err := exprParser.ParseString("", src)
	if err != nil {
		return nil, fmt.Errorf("expression %q: %w", src, err)
	}
	e, err := c.exprFrom(g)
	if err != nil {
		return nil, err
	}
	e.src = src
	return e, nil
}

func (c *compiler) exprFrom(g *exprGrammar) (*expr, error) {
	e := &expr{not: g.Not}
	op, err := c.operand(g.Operand)
	if err != nil {
		return nil, err
	}
	e.operand = op
	for _, fg := range g.Filters {
		fn, ok := filters[fg.Name]
		if !ok {
			return nil, fmt.Errorf("unknown filter %q", fg.Name)
		}
		call := filterCall{name: fg.Name, fn: fn}
		for _, a := range fg.Args {
			arg, err := c.operand(a)
			if err != nil {
				return nil, err
			}
			call.args = append(call.args, arg)
		}
		e.filters = append(e.filters, call)
	}
	return e, nil
}

func (c *compiler) operand(g *operandGrammar) (operand, error) {
	switch {
	case g.Str != nil:
		return operand{kind: operandLiteral, literal: String(*g.Str)}, nil
	case g.Int != nil:
		return operand{kind: operandLiteral, literal: Int(*g.Int)}, nil
	case g.Ident != nil && (*g.Ident == "true" || *g.Ident == "false"):
		return operand{kind: operandLiteral, literal: Bool(*g.Ident == "true")}, nil
	}
	raw := ""
	if g.Var != nil {
		raw = *g.Var
	} else if g.Ident != nil {
		raw = *g.Ident
	}
	v, err := ParseVariable(raw)
	if err != nil {
		return operand{}, err
	}
	c.t.vars = append(c.t.vars, v)
	return operand{kind: operandVar, v: v}, nil
}

// scope holds loop and with-block bindings.
type scope struct {
	parent *scope
	name   string
	value  Value
}

func (s *scope) lookup(name string) (Value, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if cur.name == name {
			return cur.value, true
		}
	}
	return None(), false
}

func (s *scope) bind(name string, v Value) *scope {
	return &scope{parent: s, name: name, value: v}
}

// Render evaluates the template to text.
func (t *Template) Render(r Resolver) (string, error) {
	if t.literal {
		return t.source, nil
	}
	var sb strings.Builder
	if err := t.renderNodes(&sb, t.nodes, r, nil); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// Eval evaluates the template to a typed value. A template consisting of a
// single {{ expr }} yields that expression's value unchanged, so lists and
// integers survive; anything else renders to a string.
func (t *Template) Eval(r Resolver) (Value, error) {
	if !t.literal && len(t.nodes) == 1 {
		if out, ok := t.nodes[0].(outputNode); ok {
			return t.eval(out.expr, r, nil)
		}
	}
	s, err := t.Render(r)
	if err != nil {
		return None(), err
	}
	return String(s), nil
}

func (t *Template) renderNodes(sb *strings.Builder, nodes []node, r Resolver, sc *scope) error {
	for _, n := range nodes {
		switch n := n.(type) {
		case textNode:
			sb.WriteString(string(n))
		case outputNode:
			v, err := t.eval(n.expr, r, sc)
			if err != nil {
				return err
			}
			s, err := v.Render()
			if err != nil {
				return &errors.TemplateError{Template: t.source, Message: fmt.Sprintf("{{ %s }}", n.expr.src), Err: err}
			}
			sb.WriteString(s)
		case ifNode:
			done := false
			for _, b := range n.branches {
				v, err := t.eval(b.cond, r, sc)
				if err != nil {
					return err
				}
				if v.Truthy() {
					if err := t.renderNodes(sb, b.body, r, sc); err != nil {
						return err
					}
					done = true
					break
				}
			}
			if !done && n.elseBody != nil {
				if err := t.renderNodes(sb, n.elseBody, r, sc); err != nil {
					return err
				}
			}
		case forNode:
			if err := t.renderFor(sb, n, r, sc); err != nil {
				return err
			}
		case withNode:
			v, err := t.eval(n.expr, r, sc)
			if err != nil {
				return err
			}
			if err := t.renderNodes(sb, n.body, r, sc.bind(n.name, v)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *Template) renderFor(sb *strings.Builder, n forNode, r Resolver, sc *scope) error {
	v, err := t.eval(n.expr, r, sc)
	if err != nil {
		return err
	}
	switch v.Kind() {
	case KindNone:
		return nil
	case KindList:
		for i, item := range v.Items() {
			inner := sc.bind(n.first, item)
			if n.second != "" {
				inner = sc.bind(n.first, Int(int64(i))).bind(n.second, item)
			}
			if err := t.renderNodes(sb, n.body, r, inner); err != nil {
				return err
			}
		}
	case KindMap:
		for _, k := range v.Keys() {
			item, _ := v.Field(k)
			inner := sc.bind(n.first, String(k))
			if n.second != "" {
				inner = inner.bind(n.second, item)
			}
			if err := t.renderNodes(sb, n.body, r, inner); err != nil {
				return err
			}
		}
	default:
		return &errors.TemplateError{Template: t.source, Message: fmt.Sprintf("cannot iterate over a %s", v.Kind())}
	}
	return nil
}

func (t *Template) eval(e *expr, r Resolver, sc *scope) (Value, error) {
	v, err := t.operandValue(e.operand, r, sc)
	if err != nil {
		return None(), err
	}
	for _, f := range e.filters {
		args := make([]Value, len(f.args))
		for i, a := range f.args {
			if args[i], err = t.operandValue(a, r, sc); err != nil {
				return None(), err
			}
		}
		v, err = f.fn(v, args)
		if err != nil {
			return None(), &errors.TemplateError{Template: t.source, Message: "filter " + f.name, Err: err}
		}
	}
	if e.not {
		return Bool(!v.Truthy()), nil
	}
	return v, nil
}

func (t *Template) operandValue(op operand, r Resolver, sc *scope) (Value, error) {
	if op.kind == operandLiteral {
		return op.literal, nil
	}
	v := op.v
	if v.Kind == VarName {
		if bound, ok := sc.lookup(v.Name); ok {
			out, found := FieldPath(bound, v.Fields)
			if !found {
				return t.missing(v)
			}
			return out, nil
		}
	}
	if r == nil {
		return t.missing(v)
	}
	out, ok, err := r.Resolve(v)
	if err != nil {
		return None(), err
	}
	if !ok {
		return t.missing(v)
	}
	return out, nil
}

func (t *Template) missing(v *Variable) (Value, error) {
	if v.Optional {
		return None(), nil
	}
	return None(), errors.NewMissingVariable(v.Raw)
}

// FieldPath walks fields of nested maps, as in context.author.name.
func FieldPath(v Value, fields []string) (Value, bool) {
	for _, f := range fields {
		next, ok := v.Field(f)
		if !ok {
			return None(), false
		}
		v = next
	}
	return v, true
}
