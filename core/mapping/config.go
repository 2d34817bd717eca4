package mapping

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/FocuswithJustin/standoff/core/doctree"
	"github.com/FocuswithJustin/standoff/core/pathexpr"
	"github.com/FocuswithJustin/standoff/core/template"
	"github.com/FocuswithJustin/standoff/core/whitespace"
)

// DefaultSet is the annotation set used when neither the data entry nor the
// configuration names one.
const DefaultSet = "urn:stam-fromxml"

// AnnotationKind selects what an element rule's annotation targets.
type AnnotationKind int

const (
	// AnnotateNone produces no annotation.
	AnnotateNone AnnotationKind = iota
	// AnnotateText targets the text the rule emitted for the node.
	AnnotateText
	// AnnotateResource targets the whole output resource.
	AnnotateResource
	// AnnotateBetweenMarkers targets the text between two consecutive
	// occurrences of the same marker element.
	AnnotateBetweenMarkers
)

var annotationNames = map[AnnotationKind]string{
	AnnotateNone:           "None",
	AnnotateText:           "TextSelector",
	AnnotateResource:       "ResourceSelector",
	AnnotateBetweenMarkers: "TextSelectorBetweenMarkers",
}

func (k AnnotationKind) String() string {
	if s, ok := annotationNames[k]; ok {
		return s
	}
	return fmt.Sprintf("AnnotationKind(%d)", int(k))
}

// ParseAnnotationKind parses a selector name, case-insensitively.
func ParseAnnotationKind(s string) (AnnotationKind, error) {
	for k, name := range annotationNames {
		if strings.EqualFold(name, strings.TrimSpace(s)) {
			return k, nil
		}
	}
	if strings.TrimSpace(s) == "" {
		return AnnotateNone, nil
	}
	return AnnotateNone, fmt.Errorf("unknown annotation kind %q", s)
}

// MarshalJSON implements json.Marshaler.
func (k AnnotationKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (k *AnnotationKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseAnnotationKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// DataSpec describes one key/value pair attached to an annotation.
type DataSpec struct {
	// ID is an optional template for the data identifier.
	ID string `json:"id,omitempty"`
	// Set is a template for the annotation set; empty means the default set.
	Set string `json:"set,omitempty"`
	// Key is a template for the data key. Required.
	Key string `json:"key"`
	// Value is a string template, a number, a bool, or a nested list/map
	// whose string leaves are templates. Absent means a null value.
	Value any `json:"value,omitempty"`
	// SkipIfMissing drops this entry when a variable it needs is absent.
	SkipIfMissing bool `json:"skip_if_missing,omitempty"`
	// AllowEmptyValue keeps the entry when its value renders empty.
	AllowEmptyValue bool `json:"allow_empty_value,omitempty"`

	id, set, key *template.Template
	value        *valueNode
}

// ElementRule says how elements matching Path are projected. Scalar fields
// are pointers so that base merging can tell unset from zero.
type ElementRule struct {
	Path       string           `json:"path,omitempty"`
	Text       *bool            `json:"text,omitempty"`
	TextPrefix *string          `json:"textprefix,omitempty"`
	TextSuffix *string          `json:"textsuffix,omitempty"`
	Stop       *bool            `json:"stop,omitempty"`
	Whitespace *whitespace.Mode `json:"whitespace,omitempty"`
	Annotation *AnnotationKind  `json:"annotation,omitempty"`
	ID         *string          `json:"id,omitempty"`
	Data       []DataSpec       `json:"annotationdata,omitempty"`
	Base       []string         `json:"base,omitempty"`

	index   int
	pattern *pathexpr.Pattern
	prefix  *template.Template
	suffix  *template.Template
	id      *template.Template
}

// MetadataRule produces resource-level annotations per document. Without
// XPath it fires once with the document element as context; with XPath it
// fires once per matching element.
type MetadataRule struct {
	ID    string     `json:"id,omitempty"`
	XPath string     `json:"xpath,omitempty"`
	Data  []DataSpec `json:"annotationdata,omitempty"`

	id *template.Template
}

// Config is the whole mapping configuration.
type Config struct {
	InjectDTD     string                  `json:"inject_dtd,omitempty"`
	Whitespace    whitespace.Mode         `json:"whitespace,omitempty"`
	DefaultSet    string                  `json:"default_set,omitempty"`
	Namespaces    map[string]string       `json:"namespaces,omitempty"`
	IDStripSuffix []string                `json:"id_strip_suffix,omitempty"`
	IDPrefix      string                  `json:"id_prefix,omitempty"`
	Elements      []*ElementRule          `json:"elements,omitempty"`
	BaseElements  map[string]*ElementRule `json:"baseelements,omitempty"`
	Context       map[string]any          `json:"context,omitempty"`
	Metadata      []*MetadataRule         `json:"metadata,omitempty"`

	prepared bool
	rules    []*ElementRule
	patterns []*pathexpr.Pattern
	context  template.Value
}

// IsText reports whether the rule emits text.
func (r *ElementRule) IsText() bool { return r.Text != nil && *r.Text }

// IsStop reports whether child elements are skipped.
func (r *ElementRule) IsStop() bool { return r.Stop != nil && *r.Stop }

// WhitespaceMode returns the rule's mode, Inherit when unset.
func (r *ElementRule) WhitespaceMode() whitespace.Mode {
	if r.Whitespace == nil {
		return whitespace.Inherit
	}
	return *r.Whitespace
}

// AnnotationKind returns the rule's annotation target, AnnotateNone when
// unset.
func (r *ElementRule) AnnotationKind() AnnotationKind {
	if r.Annotation == nil {
		return AnnotateNone
	}
	return *r.Annotation
}

// Index is the rule's position in the element list.
func (r *ElementRule) Index() int { return r.index }

// Pattern returns the compiled path.
func (r *ElementRule) Pattern() *pathexpr.Pattern { return r.pattern }

// PrefixTemplate returns the compiled textprefix, or nil.
func (r *ElementRule) PrefixTemplate() *template.Template { return r.prefix }

// SuffixTemplate returns the compiled textsuffix, or nil.
func (r *ElementRule) SuffixTemplate() *template.Template { return r.suffix }

// IDTemplate returns the compiled identifier template, or nil.
func (r *ElementRule) IDTemplate() *template.Template { return r.id }

// IDTemplate returns the compiled identifier template, or nil.
func (m *MetadataRule) IDTemplate() *template.Template { return m.id }

// IDTemplate returns the compiled data identifier template, or nil.
func (d *DataSpec) IDTemplate() *template.Template { return d.id }

// SetTemplate returns the compiled set template, or nil for the default set.
func (d *DataSpec) SetTemplate() *template.Template { return d.set }

// KeyTemplate returns the compiled key template.
func (d *DataSpec) KeyTemplate() *template.Template { return d.key }

// HasValue reports whether the entry declares a value.
func (d *DataSpec) HasValue() bool { return d.value != nil }

// EvalValue evaluates the value, resolving every template leaf.
func (d *DataSpec) EvalValue(r template.Resolver) (template.Value, error) {
	if d.value == nil {
		return template.None(), nil
	}
	return d.value.eval(r)
}

// Prepared reports whether Prepare has completed.
func (c *Config) Prepared() bool { return c.prepared }

// Rules returns the merged, compiled element rules in declaration order.
func (c *Config) Rules() []*ElementRule { return c.rules }

// ContextValue returns the global context as a template value.
func (c *Config) ContextValue() template.Value { return c.context }

// Match returns the rule that applies to element id, or nil when no rule
// matches.
func (c *Config) Match(tree *doctree.Tree, id doctree.NodeID) *ElementRule {
	i := pathexpr.Match(c.patterns, tree, id)
	if i < 0 {
		return nil
	}
	return c.rules[i]
}

// StripSuffixes removes configured suffixes from name until none applies.
func (c *Config) StripSuffixes(name string) string {
	for changed := true; changed; {
		changed = false
		for _, suffix := range c.IDStripSuffix {
			if suffix != "" && strings.HasSuffix(name, suffix) && len(name) > len(suffix) {
				name = strings.TrimSuffix(name, suffix)
				changed = true
			}
		}
	}
	return name
}
