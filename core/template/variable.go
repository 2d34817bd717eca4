package template

import (
	"fmt"
	"strings"
)

// VarKind distinguishes document variables from named ones.
type VarKind int

const (
	// VarName is a plain identifier such as localname or context.title.
	VarName VarKind = iota
	// VarXML addresses the document: @attr, $child, $., $.. and paths.
	VarXML
)

// QName is a possibly prefixed XML name as written in a template.
type QName struct {
	Prefix string
	Local  string
}

func (q QName) String() string {
	if q.Prefix != "" {
		return q.Prefix + ":" + q.Local
	}
	return q.Local
}

// StepKind is the kind of one hop in a document variable.
type StepKind int

const (
	// StepSelf stays on the current element (".").
	StepSelf StepKind = iota
	// StepParent moves to the parent element ("..").
	StepParent
	// StepChild moves to the first child element with the step's name.
	StepChild
)

// Step is one hop of a document variable.
type Step struct {
	Kind StepKind
	Name QName
}

// Variable is a parsed variable reference.
type Variable struct {
	// Raw is the reference as written, including any "?." prefix.
	Raw string
	// Optional is set by the "?." prefix: a missing value becomes None.
	Optional bool
	Kind     VarKind

	// Name and Fields describe VarName references: "context.title" has
	// Name "context" and Fields ["title"].
	Name   string
	Fields []string

	// Steps and Attr describe VarXML references. Steps walk from the current
	// element; a nil Attr selects text. Text is recursive when the last step
	// is "." or "..", and the element's own direct text otherwise.
	Steps []Step
	Attr  *QName
}

// Recursive reports whether a VarXML text reference reads descendant text.
func (v *Variable) Recursive() bool {
	if len(v.Steps) == 0 {
		return false
	}
	return v.Steps[len(v.Steps)-1].Kind != StepChild
}

// Prefixes returns the namespace prefixes the variable depends on.
func (v *Variable) Prefixes() []string {
	var out []string
	for _, s := range v.Steps {
		if s.Kind == StepChild && s.Name.Prefix != "" {
			out = append(out, s.Name.Prefix)
		}
	}
	if v.Attr != nil && v.Attr.Prefix != "" {
		out = append(out, v.Attr.Prefix)
	}
	return out
}

// ParseVariable parses a variable reference token.
func ParseVariable(raw string) (*Variable, error) {
	v := &Variable{Raw: raw}
	s := raw
	if strings.HasPrefix(s, "?.") {
		v.Optional = true
		s = s[2:]
	}
	if s == "" {
		return nil, fmt.Errorf("empty variable %q", raw)
	}

	switch s[0] {
	case '@':
		v.Kind = VarXML
		q, err := parseQName(s[1:])
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", raw, err)
		}
		v.Attr = &q
		return v, nil
	case '$':
		v.Kind = VarXML
		if err := v.parsePath(s[1:]); err != nil {
			return nil, fmt.Errorf("variable %q: %w", raw, err)
		}
		return v, nil
	}

	parts := strings.Split(s, ".")
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("variable %q: empty field", raw)
		}
	}
	v.Kind = VarName
	v.Name = parts[0]
	v.Fields = parts[1:]
	return v, nil
}

func (v *Variable) parsePath(s string) error {
	if s == "" {
		return fmt.Errorf("missing element name after $")
	}
	segments := strings.Split(s, "/")
	for i, seg := range segments {
		last := i == len(segments)-1
		switch {
		case seg == ".":
			v.Steps = append(v.Steps, Step{Kind: StepSelf})
		case seg == "..":
			v.Steps = append(v.Steps, Step{Kind: StepParent})
		case strings.HasPrefix(seg, "@"):
			if !last || i == 0 {
				return fmt.Errorf("attribute must end a path")
			}
			q, err := parseQName(seg[1:])
			if err != nil {
				return err
			}
			v.Attr = &q
		default:
			name, attr, hasAttr := strings.Cut(seg, "@")
			if hasAttr && !last {
				return fmt.Errorf("attribute must end a path")
			}
			q, err := parseQName(name)
			if err != nil {
				return err
			}
			v.Steps = append(v.Steps, Step{Kind: StepChild, Name: q})
			if hasAttr {
				a, err := parseQName(attr)
				if err != nil {
					return err
				}
				v.Attr = &a
			}
		}
	}
	return nil
}

func parseQName(s string) (QName, error) {
	prefix, local, found := strings.Cut(s, ":")
	if !found {
		local, prefix = prefix, ""
	}
	if local == "" || (found && prefix == "") || strings.ContainsAny(local, ":@/") {
		return QName{}, fmt.Errorf("invalid name %q", s)
	}
	return QName{Prefix: prefix, Local: local}, nil
}
