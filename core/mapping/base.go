package mapping

import (
	"fmt"

	"github.com/FocuswithJustin/standoff/core/errors"
)

type visitState uint8

const (
	stateVisiting visitState = iota + 1
	stateDone
)

// baseResolver merges base elements, memoizing each resolved base.
type baseResolver struct {
	bases    map[string]*ElementRule
	states   map[string]visitState
	resolved map[string]*ElementRule
}

func newBaseResolver(bases map[string]*ElementRule) *baseResolver {
	return &baseResolver{
		bases:    bases,
		states:   make(map[string]visitState, len(bases)),
		resolved: make(map[string]*ElementRule, len(bases)),
	}
}

// base returns the fully merged base element name.
func (b *baseResolver) base(name, from string) (*ElementRule, error) {
	switch b.states[name] {
	case stateVisiting:
		return nil, errors.NewConfig("base "+name, "circular base element reference")
	case stateDone:
		return b.resolved[name], nil
	}
	raw, ok := b.bases[name]
	if !ok || raw == nil {
		return nil, errors.NewConfig(from, fmt.Sprintf("no such base element: %s", name))
	}

	b.states[name] = stateVisiting
	merged, err := b.merge(raw, "base "+name)
	if err != nil {
		return nil, err
	}
	b.states[name] = stateDone
	b.resolved[name] = merged
	return merged, nil
}

// merge returns a copy of rule with all of its bases folded in. The rule's
// own scalars win, then the first listed base that sets one. Annotation
// data concatenates in base order, followed by the rule's own entries.
func (b *baseResolver) merge(rule *ElementRule, label string) (*ElementRule, error) {
	out := *rule
	out.Base = nil
	out.Data = nil

	for _, name := range rule.Base {
		base, err := b.base(name, label)
		if err != nil {
			return nil, err
		}
		if out.Text == nil {
			out.Text = base.Text
		}
		if out.TextPrefix == nil {
			out.TextPrefix = base.TextPrefix
		}
		if out.TextSuffix == nil {
			out.TextSuffix = base.TextSuffix
		}
		if out.Stop == nil {
			out.Stop = base.Stop
		}
		if out.Whitespace == nil {
			out.Whitespace = base.Whitespace
		}
		if out.Annotation == nil {
			out.Annotation = base.Annotation
		}
		if out.ID == nil {
			out.ID = base.ID
		}
		out.Data = append(out.Data, base.Data...)
	}
	out.Data = append(out.Data, rule.Data...)
	return &out, nil
}
