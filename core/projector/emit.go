package projector

import (
	"fmt"

	"github.com/FocuswithJustin/standoff/core/errors"
	"github.com/FocuswithJustin/standoff/core/mapping"
	"github.com/FocuswithJustin/standoff/core/store"
	"github.com/FocuswithJustin/standoff/core/template"
)

// source is the part of a rule an annotation is built from.
type source struct {
	label string
	id    *template.Template
	data  []mapping.DataSpec
}

func elementSource(rule *mapping.ElementRule) source {
	return source{label: rule.Path, id: rule.IDTemplate(), data: rule.Data}
}

func metadataSource(rule *mapping.MetadataRule, label string) source {
	return source{label: label, id: rule.IDTemplate(), data: rule.Data}
}

// annotate builds the annotation for one node. The node context must carry
// the final span, if any.
func (r *run) annotate(src source, nc *nodeContext, target store.Selector) (*store.Annotation, error) {
	ann := &store.Annotation{Target: target, Data: []store.Data{}}
	if src.id != nil {
		id, err := src.id.Render(nc)
		if err != nil {
			return nil, r.nodeError(err, nc, src.id.Source())
		}
		if id != "" {
			ann.ID = r.idPrefix + id
		}
	}
	for i := range src.data {
		d, ok, err := r.data(&src.data[i], nc)
		if err != nil {
			return nil, err
		}
		if ok {
			ann.Data = append(ann.Data, d)
		}
	}
	if r.opts.Provenance {
		ann.Provenance = &store.Provenance{
			File: nc.doc.inputFile,
			Node: nc.doc.tree.Path(nc.id),
			Rule: src.label,
		}
	}
	r.log.Debug("annotation",
		"node", nc.doc.tree.Path(nc.id),
		"target", target.String(),
		"id", ann.ID,
		"data", len(ann.Data))
	return ann, nil
}

// data resolves one data entry. ok is false when the entry is skipped.
func (r *run) data(spec *mapping.DataSpec, nc *nodeContext) (d store.Data, ok bool, err error) {
	key, err := spec.KeyTemplate().Render(nc)
	if err != nil {
		return d, false, r.dataFailure(spec, nc, spec.Key, err)
	}
	if key == "" {
		if spec.SkipIfMissing {
			return d, false, nil
		}
		return d, false, &errors.TemplateError{
			Template: spec.Key,
			Node:     nc.doc.tree.Path(nc.id),
			Message:  "annotation data key is empty",
		}
	}

	set := r.cfg.DefaultSet
	if tpl := spec.SetTemplate(); tpl != nil {
		s, err := tpl.Render(nc)
		if err != nil {
			return d, false, r.dataFailure(spec, nc, spec.Set, err)
		}
		if s != "" {
			set = s
		}
	}

	var id string
	if tpl := spec.IDTemplate(); tpl != nil {
		if id, err = tpl.Render(nc); err != nil {
			return d, false, r.dataFailure(spec, nc, spec.ID, err)
		}
	}

	var value any
	if spec.HasValue() {
		v, err := spec.EvalValue(nc)
		if err != nil {
			return d, false, r.dataFailure(spec, nc, fmt.Sprint(spec.Value), err)
		}
		if v.Empty() {
			if !spec.AllowEmptyValue {
				return d, false, nil
			}
			v = template.String("")
		}
		value = v.Any()
	}
	return store.Data{ID: id, Set: set, Key: key, Value: value}, true, nil
}

// dataFailure returns nil when a missing variable may be skipped.
func (r *run) dataFailure(spec *mapping.DataSpec, nc *nodeContext, src string, err error) error {
	if spec.SkipIfMissing && errors.Is(err, errors.ErrMissingVariable) {
		r.log.Debug("skipping annotation data",
			"node", nc.doc.tree.Path(nc.id),
			"key", spec.Key,
			"reason", err.Error())
		return nil
	}
	return r.nodeError(err, nc, src)
}

// nodeError attaches the node path and template source to err.
func (r *run) nodeError(err error, nc *nodeContext, src string) error {
	path := nc.doc.tree.Path(nc.id)
	var mv *errors.MissingVariableError
	if errors.As(err, &mv) {
		if mv.Node == "" {
			mv.Node = path
		}
		return errors.Wrapf(err, "template %q", src)
	}
	var te *errors.TemplateError
	if errors.As(err, &te) {
		if te.Node == "" {
			te.Node = path
		}
		if te.Template == "" {
			te.Template = src
		}
		return err
	}
	return &errors.TemplateError{Template: src, Node: path, Err: err}
}
