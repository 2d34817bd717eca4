package mapping

import (
	"fmt"
	"sort"

	"github.com/antchfx/xpath"

	"github.com/FocuswithJustin/standoff/core/doctree"
	"github.com/FocuswithJustin/standoff/core/errors"
	"github.com/FocuswithJustin/standoff/core/pathexpr"
	"github.com/FocuswithJustin/standoff/core/template"
	"github.com/FocuswithJustin/standoff/core/whitespace"
)

// applyDefaults fills in default values for optional fields.
func (c *Config) applyDefaults() {
	if c.Whitespace == whitespace.Inherit {
		c.Whitespace = whitespace.Collapse
	}
	if c.DefaultSet == "" {
		c.DefaultSet = DefaultSet
	}
	if c.Namespaces == nil {
		c.Namespaces = map[string]string{}
	}
	if _, ok := c.Namespaces["xml"]; !ok {
		c.Namespaces["xml"] = doctree.NamespaceXML
	}
}

// Prepare resolves bases, compiles paths and templates and validates the
// configuration. It is idempotent. All failures are ConfigErrors.
func (c *Config) Prepare() error {
	if c.prepared {
		return nil
	}
	c.applyDefaults()

	resolver := newBaseResolver(c.BaseElements)
	names := make([]string, 0, len(c.BaseElements))
	for name := range c.BaseElements {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, err := resolver.base(name, ""); err != nil {
			return err
		}
	}

	rules := make([]*ElementRule, 0, len(c.Elements))
	patterns := make([]*pathexpr.Pattern, 0, len(c.Elements))
	for i, raw := range c.Elements {
		if raw == nil {
			return errors.NewConfig("", fmt.Sprintf("element rule %d is empty", i))
		}
		if raw.Path == "" {
			return errors.NewConfig("", fmt.Sprintf("element rule %d has no path", i))
		}
		rule, err := resolver.merge(raw, raw.Path)
		if err != nil {
			return err
		}
		rule.index = i
		if err := c.compileRule(rule); err != nil {
			return err
		}
		rules = append(rules, rule)
		patterns = append(patterns, rule.pattern)
	}

	for i, m := range c.Metadata {
		label := fmt.Sprintf("metadata %d", i)
		if m == nil {
			return errors.NewConfig(label, "empty metadata rule")
		}
		if err := c.compileMetadata(m, label); err != nil {
			return err
		}
	}

	c.rules = rules
	c.patterns = patterns
	c.context = template.FromAny(c.Context)
	c.prepared = true
	return nil
}

func (c *Config) compileRule(rule *ElementRule) error {
	label := rule.Path
	pattern, err := pathexpr.Compile(rule.Path, c.Namespaces)
	if err != nil {
		return err
	}
	rule.pattern = pattern

	if rule.AnnotationKind() == AnnotateText && !rule.IsText() {
		return errors.NewConfig(label, "TextSelector annotation requires text = true")
	}

	if rule.prefix, err = c.compileOptional(label, "textprefix", rule.TextPrefix); err != nil {
		return err
	}
	if rule.suffix, err = c.compileOptional(label, "textsuffix", rule.TextSuffix); err != nil {
		return err
	}
	if rule.id, err = c.compileOptional(label, "id", rule.ID); err != nil {
		return err
	}
	for i := range rule.Data {
		if err := c.compileData(label, &rule.Data[i]); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) compileMetadata(m *MetadataRule, label string) error {
	if m.XPath != "" {
		if _, err := xpath.CompileWithNS(m.XPath, c.Namespaces); err != nil {
			return &errors.ConfigError{Rule: label, Message: fmt.Sprintf("malformed xpath %q", m.XPath), Err: err}
		}
	}
	var err error
	if m.ID != "" {
		if m.id, err = c.compile(label, "id", m.ID); err != nil {
			return err
		}
	}
	for i := range m.Data {
		if err := c.compileData(label, &m.Data[i]); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) compileData(label string, d *DataSpec) error {
	if d.Key == "" {
		return errors.NewConfig(label, "annotation data without a key")
	}
	var err error
	if d.key, err = c.compile(label, "key", d.Key); err != nil {
		return err
	}
	if d.Set != "" {
		if d.set, err = c.compile(label, "set", d.Set); err != nil {
			return err
		}
	}
	if d.ID != "" {
		if d.id, err = c.compile(label, "data id", d.ID); err != nil {
			return err
		}
	}
	value, err := compileValue(d.Value)
	if err != nil {
		return &errors.ConfigError{Rule: label, Message: fmt.Sprintf("value of %q", d.Key), Err: err}
	}
	for _, tpl := range value.templates() {
		if err := c.checkPrefixes(label, tpl); err != nil {
			return err
		}
	}
	d.value = value
	return nil
}

func (c *Config) compileOptional(label, field string, src *string) (*template.Template, error) {
	if src == nil || *src == "" {
		return nil, nil
	}
	return c.compile(label, field, *src)
}

func (c *Config) compile(label, field, src string) (*template.Template, error) {
	tpl, err := template.Compile(src)
	if err != nil {
		return nil, &errors.ConfigError{Rule: label, Message: "invalid " + field + " template", Err: err}
	}
	if err := c.checkPrefixes(label, tpl); err != nil {
		return nil, err
	}
	return tpl, nil
}

// checkPrefixes rejects document variables using undeclared prefixes.
func (c *Config) checkPrefixes(label string, tpl *template.Template) error {
	for _, v := range tpl.Variables() {
		for _, p := range v.Prefixes() {
			if _, ok := c.Namespaces[p]; !ok {
				return errors.NewConfig(label, fmt.Sprintf("unknown namespace prefix %q in %s", p, v.Raw))
			}
		}
	}
	return nil
}
