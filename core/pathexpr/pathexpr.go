// Package pathexpr compiles and evaluates the path patterns that select
// which element rule applies to a node.
//
// The language is a small XPath-like subset: absolute paths (/a/b),
// descendant steps (//a), wildcards (* and pfx:*), and one optional
// predicate per step testing an attribute ([@n=1], [@n!=1], [@n]) or the
// element's own text ([text()='x'], [text()]). A pattern that does not
// start with a slash may match at any depth, as if written with "//".
package pathexpr

import (
	"fmt"
	"strings"

	"github.com/FocuswithJustin/standoff/core/doctree"
	"github.com/FocuswithJustin/standoff/core/errors"
)

// Axis relates a step to the step before it.
type Axis int

const (
	// Child requires the element to be a direct child.
	Child Axis = iota
	// Descendant allows any number of intermediate elements.
	Descendant
)

// PredicateKind says what a predicate tests.
type PredicateKind int

const (
	// PredAttr tests an attribute.
	PredAttr PredicateKind = iota
	// PredText tests the element's direct text.
	PredText
)

// Op is a predicate comparison.
type Op int

const (
	// OpExists requires a non-empty value.
	OpExists Op = iota
	// OpEq requires equality.
	OpEq
	// OpNe requires inequality.
	OpNe
)

// Predicate is a compiled bracketed condition.
type Predicate struct {
	Kind          PredicateKind
	AttrNamespace string
	AttrLocal     string
	Op            Op
	Value         string
}

// Step is one compiled path segment.
type Step struct {
	Axis Axis
	// Any matches every element regardless of namespace ("*").
	Any bool
	// AnyLocal matches every element in Namespace ("pfx:*").
	AnyLocal  bool
	Namespace string
	Local     string
	Predicate *Predicate
}

// Pattern is a compiled path pattern.
type Pattern struct {
	Source string
	Steps  []Step
}

func (p *Pattern) String() string {
	return p.Source
}

// Compile parses expr and resolves its prefixes through namespaces.
// Failures are ConfigErrors naming the pattern.
func Compile(expr string, namespaces map[string]string) (*Pattern, error) {
	src := strings.TrimSpace(expr)
	if src == "" {
		return nil, errors.NewConfig(expr, "empty path")
	}
	parsed, err := pathParser.ParseString("", src)
	if err != nil {
		return nil, &errors.ConfigError{Rule: expr, Message: "malformed path", Err: err}
	}

	p := &Pattern{Source: src}
	for i, sg := range parsed.Steps {
		step := Step{}
		switch sg.Axis {
		case "//":
			step.Axis = Descendant
		case "/":
			step.Axis = Child
		default:
			if i > 0 {
				return nil, errors.NewConfig(expr, fmt.Sprintf("missing separator before %q", sg.Name))
			}
			step.Axis = Descendant
		}

		ns := ""
		if sg.Prefix != nil {
			uri, ok := namespaces[*sg.Prefix]
			if !ok {
				return nil, errors.NewConfig(expr, fmt.Sprintf("unknown namespace prefix %q", *sg.Prefix))
			}
			ns = uri
		}
		switch {
		case sg.Name == "*" && sg.Prefix == nil:
			step.Any = true
		case sg.Name == "*":
			step.AnyLocal = true
			step.Namespace = ns
		default:
			step.Namespace = ns
			step.Local = sg.Name
		}

		if sg.Predicate != nil {
			pred, err := compilePredicate(expr, sg.Predicate, namespaces)
			if err != nil {
				return nil, err
			}
			step.Predicate = pred
		}
		p.Steps = append(p.Steps, step)
	}
	return p, nil
}

func compilePredicate(expr string, pg *predicateGrammar, namespaces map[string]string) (*Predicate, error) {
	pred := &Predicate{Kind: PredText}
	if pg.Attr != nil {
		pred.Kind = PredAttr
		pred.AttrLocal = pg.Attr.Name
		if pg.Attr.Prefix != nil {
			uri, ok := namespaces[*pg.Attr.Prefix]
			if !ok {
				return nil, errors.NewConfig(expr, fmt.Sprintf("unknown namespace prefix %q", *pg.Attr.Prefix))
			}
			pred.AttrNamespace = uri
		}
	}
	switch pg.Op {
	case "":
		pred.Op = OpExists
	case "=":
		pred.Op = OpEq
	case "!=":
		pred.Op = OpNe
	}
	if pred.Op != OpExists {
		if pg.Value == nil {
			return nil, errors.NewConfig(expr, "predicate comparison without a value")
		}
		pred.Value = unquote(*pg.Value)
	}
	return pred, nil
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}

// Matches reports whether the element id in tree satisfies the pattern.
func (p *Pattern) Matches(tree *doctree.Tree, id doctree.NodeID) bool {
	if !tree.IsElement(id) {
		return false
	}
	var chain []doctree.NodeID
	for cur := id; cur != doctree.NoNode; cur = tree.Parent(cur) {
		chain = append(chain, cur)
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return p.matchFrom(tree, chain, 0, 0)
}

// matchFrom tries to place step si at some chain position >= start.
func (p *Pattern) matchFrom(tree *doctree.Tree, chain []doctree.NodeID, si, start int) bool {
	step := &p.Steps[si]
	last := si == len(p.Steps)-1
	end := start
	if step.Axis == Descendant {
		end = len(chain) - 1
	}
	for pos := start; pos <= end && pos < len(chain); pos++ {
		if last && pos != len(chain)-1 {
			continue
		}
		if !step.matches(tree, chain[pos]) {
			continue
		}
		if last {
			return true
		}
		if p.matchFrom(tree, chain, si+1, pos+1) {
			return true
		}
	}
	return false
}

func (s *Step) matches(tree *doctree.Tree, id doctree.NodeID) bool {
	n := tree.Node(id)
	switch {
	case s.Any:
	case s.AnyLocal:
		if n.Namespace != s.Namespace {
			return false
		}
	default:
		if n.Local != s.Local || n.Namespace != s.Namespace {
			return false
		}
	}
	if s.Predicate == nil {
		return true
	}
	return s.Predicate.test(tree, id)
}

func (pr *Predicate) test(tree *doctree.Tree, id doctree.NodeID) bool {
	var (
		value string
		ok    bool
	)
	switch pr.Kind {
	case PredAttr:
		value, ok = tree.Attr(id, pr.AttrNamespace, pr.AttrLocal)
	case PredText:
		if !tree.HasElementChildren(id) {
			value, ok = strings.TrimSpace(tree.DirectText(id)), true
		}
	}
	switch pr.Op {
	case OpEq:
		return ok && value == pr.Value
	case OpNe:
		if pr.Kind == PredText && !ok {
			return false
		}
		return !ok || value != pr.Value
	}
	return ok && value != ""
}

// Match scans patterns in declaration order and returns the index of the
// last one matching id, or -1 when none does. Later declarations therefore
// take precedence.
func Match(patterns []*Pattern, tree *doctree.Tree, id doctree.NodeID) int {
	for i := len(patterns) - 1; i >= 0; i-- {
		if patterns[i] != nil && patterns[i].Matches(tree, id) {
			return i
		}
	}
	return -1
}
