package mapping

import (
	"io"

	"github.com/davecgh/go-spew/spew"
)

// ruleView is the debug form of a merged rule.
type ruleView struct {
	Index      int
	Path       string
	Text       bool
	TextPrefix string
	TextSuffix string
	Stop       bool
	Whitespace string
	Annotation string
	ID         string
	Data       []DataSpec
}

var dumpConfig = spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	DisableMethods:          true,
	SortKeys:                true,
	MaxDepth:                6,
}

// Dump writes the merged rules to w for debugging.
func (c *Config) Dump(w io.Writer) {
	views := make([]ruleView, 0, len(c.rules))
	for _, r := range c.rules {
		v := ruleView{
			Index:      r.index,
			Path:       r.Path,
			Text:       r.IsText(),
			Stop:       r.IsStop(),
			Whitespace: r.WhitespaceMode().String(),
			Annotation: r.AnnotationKind().String(),
		}
		if r.TextPrefix != nil {
			v.TextPrefix = *r.TextPrefix
		}
		if r.TextSuffix != nil {
			v.TextSuffix = *r.TextSuffix
		}
		if r.ID != nil {
			v.ID = *r.ID
		}
		for _, d := range r.Data {
			v.Data = append(v.Data, DataSpec{
				ID:              d.ID,
				Set:             d.Set,
				Key:             d.Key,
				Value:           d.Value,
				SkipIfMissing:   d.SkipIfMissing,
				AllowEmptyValue: d.AllowEmptyValue,
			})
		}
		views = append(views, v)
	}
	dumpConfig.Fdump(w, views)
}
