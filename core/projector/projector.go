// Package projector turns parsed markup documents into one plain-text
// resource and a list of stand-off annotations.
//
// A Projector walks each document depth-first in document order. Every
// element is matched against the mapping rules; the winning rule decides
// whether the element contributes text, whether its subtree is visited and
// which annotation it yields. Offsets are counted in Unicode codepoints and
// continue across documents, so several documents project into a single
// resource.
//
// Annotations are returned in document order of the element that produced
// them. For between-marker annotations that is the order of the opening
// marker.
package projector

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/FocuswithJustin/standoff/core/doctree"
	"github.com/FocuswithJustin/standoff/core/errors"
	"github.com/FocuswithJustin/standoff/core/mapping"
	"github.com/FocuswithJustin/standoff/core/store"
	"github.com/FocuswithJustin/standoff/core/template"
	"github.com/FocuswithJustin/standoff/core/whitespace"
	"github.com/FocuswithJustin/standoff/internal/logging"
)

// Document is one parsed input.
type Document struct {
	Tree      *doctree.Tree
	InputFile string
}

// Options configure a Projector.
type Options struct {
	// Resource is the identifier of the produced text resource.
	Resource string
	// IDPrefix overrides the configuration's id_prefix when non-empty.
	IDPrefix string
	// Provenance records source file, node path and rule on annotations.
	Provenance bool
	// Logger receives trace output. Defaults to the package logger.
	Logger *slog.Logger
}

// Span is the part of the output produced by one document.
type Span struct {
	InputFile string
	Begin     int
	End       int
}

// Result is the outcome of a run.
type Result struct {
	Resource    string
	Text        string
	Annotations []store.Annotation
	Documents   []Span
}

// Projector applies a prepared mapping configuration to documents.
type Projector struct {
	cfg  *mapping.Config
	opts Options
}

// New returns a Projector for cfg, preparing it if needed.
func New(cfg *mapping.Config, opts Options) (*Projector, error) {
	if cfg == nil {
		return nil, errors.NewConfig("", "no configuration")
	}
	if err := cfg.Prepare(); err != nil {
		return nil, err
	}
	if opts.Resource == "" {
		return nil, errors.NewValidation("resource", "resource identifier is required")
	}
	if opts.Logger == nil {
		opts.Logger = logging.GetLogger()
	}
	return &Projector{cfg: cfg, opts: opts}, nil
}

type document struct {
	tree      *doctree.Tree
	inputFile string
	num       int
}

// run is the state of one call to Run.
type run struct {
	cfg        *mapping.Config
	opts       Options
	log        *slog.Logger
	resource   string
	idPrefix   string
	prefixes   map[string]string
	namespaces template.Value
	state      *OutputState
}

// Run projects docs into one resource. Any error aborts the whole run and
// no partial result is returned.
func (p *Projector) Run(ctx context.Context, docs []Document) (*Result, error) {
	r := p.newRun()
	res := &Result{Resource: p.opts.Resource}
	for i, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if doc.Tree == nil {
			return nil, errors.NewValidation("document", "nil document tree")
		}
		d := &document{tree: doc.Tree, inputFile: doc.InputFile, num: i}
		begin := r.state.Len()
		if err := r.document(d); err != nil {
			return nil, err
		}
		res.Documents = append(res.Documents, Span{InputFile: doc.InputFile, Begin: begin, End: r.state.Len()})
		r.log.Debug("document projected",
			"input", doc.InputFile,
			"doc_num", i,
			"begin", begin,
			"end", r.state.Len())
	}
	res.Text = r.state.Text()
	res.Annotations = r.state.annotations()
	return res, nil
}

func (p *Projector) newRun() *run {
	prefix := p.opts.IDPrefix
	if prefix == "" {
		prefix = p.cfg.IDPrefix
	}
	ns := make(map[string]template.Value, len(p.cfg.Namespaces))
	prefixes := make(map[string]string, len(p.cfg.Namespaces))
	keys := make([]string, 0, len(p.cfg.Namespaces))
	for k := range p.cfg.Namespaces {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		uri := p.cfg.Namespaces[k]
		ns[k] = template.String(uri)
		if _, taken := prefixes[uri]; !taken {
			prefixes[uri] = k
		}
	}
	return &run{
		cfg:        p.cfg,
		opts:       p.opts,
		log:        p.opts.Logger,
		resource:   p.opts.Resource,
		idPrefix:   strings.ReplaceAll(prefix, "{resource}", p.opts.Resource),
		prefixes:   prefixes,
		namespaces: template.Map(ns),
		state:      newOutputState(),
	}
}

func (r *run) namespaceURI(prefix string) (string, bool) {
	if prefix == "" {
		return "", true
	}
	uri, ok := r.cfg.Namespaces[prefix]
	return uri, ok
}

// qualifiedName names an element with the configured prefix of its
// namespace, falling back to the local name.
func (r *run) qualifiedName(n *doctree.Node) string {
	if prefix, ok := r.prefixes[n.Namespace]; ok && n.Namespace != "" {
		return prefix + ":" + n.Local
	}
	return n.Local
}

func (r *run) document(d *document) error {
	root := d.tree.Root()
	if root == doctree.NoNode {
		return errors.NewParse("XML", d.inputFile, "document has no root element")
	}
	r.state.resetDocument()
	begin := r.state.Len()
	if err := r.element(d, root, r.cfg.Whitespace); err != nil {
		return err
	}
	return r.metadata(d, begin, r.state.Len())
}

// element projects one element and, unless its rule stops, its subtree.
func (r *run) element(d *document, id doctree.NodeID, inherited whitespace.Mode) error {
	tree := d.tree
	rule := r.cfg.Match(tree, id)

	mode := inherited
	if rule != nil {
		mode = whitespace.Resolve(inherited, rule.WhitespaceMode())
	}
	if xs, ok := tree.Attr(id, doctree.NamespaceXML, "space"); ok {
		mode = whitespace.ResolveXMLSpace(mode, xs)
	}

	if rule == nil {
		r.log.Debug("no rule", "node", tree.Path(id))
		return r.children(d, id, mode, false)
	}
	r.log.Debug("rule matched", "node", tree.Path(id), "rule", rule.Path, "whitespace", mode.String())

	kind := rule.AnnotationKind()
	if kind == mapping.AnnotateBetweenMarkers {
		if err := r.marker(d, id, rule); err != nil {
			return err
		}
		if rule.IsStop() {
			return nil
		}
		return r.children(d, id, mode, false)
	}

	var sl *slot
	if kind == mapping.AnnotateText || kind == mapping.AnnotateResource {
		sl = r.state.reserve()
	}
	nc := r.context(d, id)

	if rule.IsStop() {
		// The whole subtree is skipped, own text and affixes included. An
		// annotation still covers the empty span at the cursor.
		if sl == nil {
			return nil
		}
		at := r.state.Len()
		return r.fillSlot(sl, rule, nc.withSpan(at, at))
	}

	if tpl := rule.PrefixTemplate(); tpl != nil {
		s, err := tpl.Render(nc.withSpan(r.state.Len(), -1))
		if err != nil {
			return r.nodeError(err, nc, tpl.Source())
		}
		r.state.emitAffix(s)
	}

	r.state.push()
	if err := r.children(d, id, mode, rule.IsText()); err != nil {
		return err
	}
	begin := r.state.pop()
	end := r.state.Len()
	nc = nc.withSpan(begin, end)

	if tpl := rule.SuffixTemplate(); tpl != nil {
		s, err := tpl.Render(nc)
		if err != nil {
			return r.nodeError(err, nc, tpl.Source())
		}
		r.state.emitAffix(s)
	}

	if sl == nil {
		return nil
	}
	return r.fillSlot(sl, rule, nc)
}

// fillSlot builds the annotation of rule for the span carried by nc.
func (r *run) fillSlot(sl *slot, rule *mapping.ElementRule, nc *nodeContext) error {
	target := store.TextSpan(r.resource, nc.begin, nc.end)
	if rule.AnnotationKind() == mapping.AnnotateResource {
		target = store.WholeResource(r.resource)
	}
	ann, err := r.annotate(elementSource(rule), nc, target)
	if err != nil {
		return err
	}
	sl.fill(ann)
	return nil
}

// children visits the children of id. Text children are emitted only when
// text is set.
func (r *run) children(d *document, id doctree.NodeID, mode whitespace.Mode, text bool) error {
	for _, c := range d.tree.Children(id) {
		n := d.tree.Node(c)
		switch n.Kind {
		case doctree.KindText:
			if text {
				r.state.emitText(n.Text, mode)
			}
		case doctree.KindElement:
			if err := r.element(d, c, mode); err != nil {
				return err
			}
		}
	}
	return nil
}

// marker records a between-marker event. The previous marker of the same
// element name, if any, is closed with an annotation spanning up to here.
func (r *run) marker(d *document, id doctree.NodeID, rule *mapping.ElementRule) error {
	n := d.tree.Node(id)
	key := "{" + n.Namespace + "}" + n.Local
	offset := r.state.Len()

	if prev, ok := r.state.markers[key]; ok {
		nc := r.context(prev.doc, prev.id).withSpan(prev.offset, offset)
		ann, err := r.annotate(elementSource(prev.rule), nc, store.TextSpan(r.resource, prev.offset, offset))
		if err != nil {
			return err
		}
		prev.slot.fill(ann)
	}
	r.state.markers[key] = &marker{
		doc:    d,
		id:     id,
		rule:   rule,
		offset: offset,
		slot:   r.state.reserve(),
	}
	return nil
}
