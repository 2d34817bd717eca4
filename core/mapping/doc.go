// Package mapping holds the conversion configuration: global settings,
// element rules, base elements and metadata rules.
//
// A Config is loaded from TOML, YAML or JSON (all three share the same
// keys) or assembled with the builder methods, then Prepared once. Prepare
// merges base elements into rules, compiles path patterns and templates,
// and checks namespace prefixes, so every configuration error surfaces
// before any document is read. A prepared Config is read-only and may be
// shared between concurrent conversions.
//
// Rules are declared generic to specific. When several rules match a node
// the one declared last applies.
package mapping
