package mapping

import (
	"github.com/FocuswithJustin/standoff/core/whitespace"
)

// RuleOption configures an ElementRule built with WithElement or WithBase.
type RuleOption func(*ElementRule)

// New returns an empty configuration with defaults applied.
func New() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// WithNamespace registers a namespace prefix.
func (c *Config) WithNamespace(prefix, uri string) *Config {
	if c.Namespaces == nil {
		c.Namespaces = map[string]string{}
	}
	c.Namespaces[prefix] = uri
	return c
}

// WithWhitespace sets the global whitespace mode.
func (c *Config) WithWhitespace(mode whitespace.Mode) *Config {
	c.Whitespace = mode
	return c
}

// WithInjectDTD sets the DTD fragment injected into documents without one.
func (c *Config) WithInjectDTD(dtd string) *Config {
	c.InjectDTD = dtd
	return c
}

// WithIDPrefix sets the prefix applied to every annotation identifier.
func (c *Config) WithIDPrefix(prefix string) *Config {
	c.IDPrefix = prefix
	return c
}

// WithDefaultSet sets the default annotation set.
func (c *Config) WithDefaultSet(set string) *Config {
	c.DefaultSet = set
	return c
}

// WithStripSuffix adds suffixes stripped from file names to form resource
// identifiers.
func (c *Config) WithStripSuffix(suffixes ...string) *Config {
	c.IDStripSuffix = append(c.IDStripSuffix, suffixes...)
	return c
}

// WithContext sets a global template variable.
func (c *Config) WithContext(key string, value any) *Config {
	if c.Context == nil {
		c.Context = map[string]any{}
	}
	c.Context[key] = value
	return c
}

// WithElement appends an element rule.
func (c *Config) WithElement(path string, opts ...RuleOption) *Config {
	rule := &ElementRule{Path: path}
	for _, opt := range opts {
		opt(rule)
	}
	c.Elements = append(c.Elements, rule)
	return c
}

// WithBase defines a base element.
func (c *Config) WithBase(name string, opts ...RuleOption) *Config {
	rule := &ElementRule{}
	for _, opt := range opts {
		opt(rule)
	}
	if c.BaseElements == nil {
		c.BaseElements = map[string]*ElementRule{}
	}
	c.BaseElements[name] = rule
	return c
}

// WithMetadata appends a metadata rule.
func (c *Config) WithMetadata(rule *MetadataRule) *Config {
	c.Metadata = append(c.Metadata, rule)
	return c
}

// Text sets the text flag.
func Text(on bool) RuleOption {
	return func(r *ElementRule) { r.Text = &on }
}

// Stop sets the stop flag.
func Stop(on bool) RuleOption {
	return func(r *ElementRule) { r.Stop = &on }
}

// Prefix sets the textprefix template.
func Prefix(tpl string) RuleOption {
	return func(r *ElementRule) { r.TextPrefix = &tpl }
}

// Suffix sets the textsuffix template.
func Suffix(tpl string) RuleOption {
	return func(r *ElementRule) { r.TextSuffix = &tpl }
}

// Whitespace sets the rule's whitespace mode.
func Whitespace(mode whitespace.Mode) RuleOption {
	return func(r *ElementRule) { r.Whitespace = &mode }
}

// Annotate sets the annotation target.
func Annotate(kind AnnotationKind) RuleOption {
	return func(r *ElementRule) { r.Annotation = &kind }
}

// ID sets the identifier template.
func ID(tpl string) RuleOption {
	return func(r *ElementRule) { r.ID = &tpl }
}

// Data appends annotation data entries.
func Data(specs ...DataSpec) RuleOption {
	return func(r *ElementRule) { r.Data = append(r.Data, specs...) }
}

// Bases sets the base element names.
func Bases(names ...string) RuleOption {
	return func(r *ElementRule) { r.Base = append(r.Base, names...) }
}
