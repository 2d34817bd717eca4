package projector

import (
	"fmt"

	"github.com/FocuswithJustin/standoff/core/doctree"
	"github.com/FocuswithJustin/standoff/core/errors"
	"github.com/FocuswithJustin/standoff/core/store"
)

// metadata applies the configured metadata rules to a document whose text
// occupies [begin, end). Each rule yields resource-level annotations: one
// per XPath hit, or one for the document element when no XPath is given.
func (r *run) metadata(d *document, begin, end int) error {
	for i, m := range r.cfg.Metadata {
		label := fmt.Sprintf("metadata %d", i)
		if m.XPath != "" {
			label = m.XPath
		}
		nodes := []doctree.NodeID{d.tree.Root()}
		if m.XPath != "" {
			hits, err := d.tree.XPath(m.XPath, r.cfg.Namespaces)
			if err != nil {
				return &errors.ConfigError{Rule: label, Message: "malformed xpath", Err: err}
			}
			nodes = hits
		}
		for _, id := range nodes {
			nc := r.context(d, id).withSpan(begin, end)
			ann, err := r.annotate(metadataSource(m, label), nc, store.WholeResource(r.resource))
			if err != nil {
				return err
			}
			r.state.reserve().fill(ann)
		}
	}
	return nil
}
