// Package convert runs conversions: it reads input files, parses them into
// document trees, projects them through a mapping configuration and hands
// the resulting resource and annotations to a store.
package convert

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/davecgh/go-spew/spew"

	"github.com/FocuswithJustin/standoff/core/doctree"
	"github.com/FocuswithJustin/standoff/core/errors"
	"github.com/FocuswithJustin/standoff/core/mapping"
	"github.com/FocuswithJustin/standoff/core/projector"
	"github.com/FocuswithJustin/standoff/core/store"
	"github.com/FocuswithJustin/standoff/internal/archive"
	"github.com/FocuswithJustin/standoff/internal/logging"
	"github.com/FocuswithJustin/standoff/internal/workerpool"
)

// Options control a Converter.
type Options struct {
	// Provenance records source file, node path and rule on annotations.
	Provenance bool
	// IDPrefix overrides the configuration's id_prefix.
	IDPrefix string
	// HTML parses every input with the HTML parser regardless of extension.
	HTML bool
	// Debug dumps produced annotations to the logger at debug level.
	Debug bool
}

// Converter converts input files into resources.
type Converter struct {
	Config  *mapping.Config
	Options Options
	Logger  *slog.Logger
}

// New returns a Converter for cfg. The configuration is prepared here so
// that configuration errors surface before any input is read.
func New(cfg *mapping.Config, opts Options) (*Converter, error) {
	if cfg == nil {
		return nil, errors.NewConfig("", "no configuration")
	}
	if err := cfg.Prepare(); err != nil {
		return nil, err
	}
	return &Converter{Config: cfg, Options: opts, Logger: logging.GetLogger()}, nil
}

// Unit is one converted resource, ready to be committed.
type Unit struct {
	Resource store.Resource
	Result   *projector.Result
	Inputs   []string
}

// Commit adds the unit's resource and annotations to s.
func (u *Unit) Commit(s *store.Store) error {
	return s.Commit(u.Resource, u.Result.Annotations)
}

var documentExts = map[string]bool{
	".xml":   true,
	".tei":   true,
	".xhtml": true,
	".html":  true,
	".htm":   true,
}

// IsDocument reports whether name looks like a markup document. It is used
// to select the members of tar inputs.
func IsDocument(name string) bool {
	return documentExts[strings.ToLower(filepath.Ext(archive.StripCompression(name)))]
}

func isHTML(name string) bool {
	switch strings.ToLower(filepath.Ext(archive.StripCompression(name))) {
	case ".html", ".htm":
		return true
	}
	return false
}

// ResourceID derives a resource identifier from an input path: the base
// name without compression or tar suffixes, with the configured
// id_strip_suffix entries removed.
func ResourceID(cfg *mapping.Config, path string) string {
	name := filepath.Base(archive.StripCompression(path))
	if archive.IsTar(path) {
		lower := strings.ToLower(name)
		for _, s := range []string{".tar", ".tgz", ".txz"} {
			if strings.HasSuffix(lower, s) && len(name) > len(s) {
				name = name[:len(name)-len(s)]
				break
			}
		}
	}
	return cfg.StripSuffixes(name)
}

// ConvertFiles converts paths, in order, into one resource named after the
// first path. Tar archives contribute each of their document members.
func (c *Converter) ConvertFiles(ctx context.Context, paths []string) (*Unit, error) {
	if len(paths) == 0 {
		return nil, errors.NewValidation("inputs", "no input files")
	}
	id := ResourceID(c.Config, paths[0])
	logging.ConversionStart(ctx, id, paths)
	start := time.Now()

	var docs []projector.Document
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		parsed, err := c.load(path)
		if err != nil {
			return nil, err
		}
		docs = append(docs, parsed...)
	}

	unit, err := c.project(ctx, id, paths[0], docs)
	if err != nil {
		return nil, err
	}
	unit.Inputs = paths
	logging.ConversionDone(ctx, id, utf8.RuneCountInString(unit.Resource.Text), len(unit.Result.Annotations), time.Since(start),
		"documents", len(docs))
	return unit, nil
}

// ConvertBytes converts a single in-memory document into the resource id.
func (c *Converter) ConvertBytes(ctx context.Context, id string, data []byte) (*Unit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tree, err := c.parse(id, data)
	if err != nil {
		return nil, err
	}
	return c.project(ctx, id, "", []projector.Document{{Tree: tree}})
}

func (c *Converter) load(path string) ([]projector.Document, error) {
	if archive.IsTar(path) {
		members, err := archive.ReadMembers(path, IsDocument)
		if err != nil {
			return nil, errors.NewIO("read", path, err)
		}
		if len(members) == 0 {
			return nil, errors.NewValidation("inputs", "archive contains no documents: "+path)
		}
		docs := make([]projector.Document, 0, len(members))
		for _, m := range members {
			tree, err := c.parse(m.Name, m.Data)
			if err != nil {
				return nil, err
			}
			docs = append(docs, projector.Document{Tree: tree, InputFile: m.Name})
		}
		return docs, nil
	}

	data, err := archive.ReadFile(path)
	if err != nil {
		return nil, errors.NewIO("read", path, err)
	}
	tree, err := c.parse(path, data)
	if err != nil {
		return nil, err
	}
	return []projector.Document{{Tree: tree, InputFile: path}}, nil
}

func (c *Converter) parse(name string, data []byte) (*doctree.Tree, error) {
	opts := doctree.Options{Source: name, InjectDTD: c.Config.InjectDTD}
	if c.Options.HTML || isHTML(name) {
		return doctree.ParseHTML(data, opts)
	}
	return doctree.ParseXML(data, opts)
}

func (c *Converter) project(ctx context.Context, id, filename string, docs []projector.Document) (*Unit, error) {
	p, err := projector.New(c.Config, projector.Options{
		Resource:   id,
		IDPrefix:   c.Options.IDPrefix,
		Provenance: c.Options.Provenance,
		Logger:     c.logger(),
	})
	if err != nil {
		return nil, err
	}
	res, err := p.Run(ctx, docs)
	if err != nil {
		return nil, errors.Wrapf(err, "resource %s", id)
	}
	if c.Options.Debug {
		c.logger().Debug("annotations", "resource", id, "dump", spew.Sdump(res.Annotations))
	}
	return &Unit{
		Resource: store.Resource{ID: id, Filename: filename, Text: res.Text},
		Result:   res,
	}, nil
}

func (c *Converter) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return logging.GetLogger()
}

// Outcome is the result of converting one input group.
type Outcome struct {
	Inputs []string
	Unit   *Unit
	Err    error
}

// ConvertGroups converts each group of paths into its own resource on up to
// jobs goroutines. Outcomes are returned in group order so that callers can
// commit deterministically.
func (c *Converter) ConvertGroups(ctx context.Context, groups [][]string, jobs int) []Outcome {
	return workerpool.Map(ctx, jobs, groups, func(ctx context.Context, paths []string) Outcome {
		unit, err := c.ConvertFiles(ctx, paths)
		return Outcome{Inputs: paths, Unit: unit, Err: err}
	})
}

// Commit commits outcomes into s in order. A failed outcome aborts with its
// error unless ignoreErrors is set, in which case it is logged and skipped.
// It returns the number of committed units.
func Commit(ctx context.Context, s *store.Store, outcomes []Outcome, ignoreErrors bool) (int, error) {
	committed := 0
	for _, o := range outcomes {
		err := o.Err
		if err == nil {
			err = o.Unit.Commit(s)
		}
		if err != nil {
			if ignoreErrors {
				logging.ConversionSkipped(ctx, strings.Join(o.Inputs, ","), err)
				continue
			}
			return committed, err
		}
		committed++
	}
	return committed, nil
}
