package doctree

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"
	"golang.org/x/net/html"

	"github.com/FocuswithJustin/standoff/core/errors"
)

// Well-known namespace URIs.
const (
	NamespaceXML   = "http://www.w3.org/XML/1998/namespace"
	NamespaceXHTML = "http://www.w3.org/1999/xhtml"
	NamespaceSVG   = "http://www.w3.org/2000/svg"
	NamespaceMath  = "http://www.w3.org/1998/Math/MathML"
)

// Options controls document parsing.
type Options struct {
	// Source names the document in errors and in Tree.Source.
	Source string
	// InjectDTD is a DTD fragment whose entity declarations apply when the
	// document carries no DOCTYPE of its own, or only an HTML5 one.
	InjectDTD string
}

var (
	doctypePattern = regexp.MustCompile(`(?is)<!DOCTYPE\s+([^\s\[>]+)([^\[>]*)(\[(.*?)\]\s*)?>`)
	entityPattern  = regexp.MustCompile(`(?s)<!ENTITY\s+([^\s%]+)\s+(?:"([^"]*)"|'([^']*)')\s*>`)
	charRefPattern = regexp.MustCompile(`&#(x[0-9a-fA-F]+|[0-9]+);`)
)

// ParseXML parses an XML document. Entities declared in the document's
// internal DTD subset (or in opts.InjectDTD, see Options) are expanded; any
// other undeclared entity fails the parse.
func ParseXML(data []byte, opts Options) (*Tree, error) {
	root, err := xmlquery.ParseWithOptions(bytes.NewReader(data), xmlquery.ParserOptions{
		Decoder: &xmlquery.DecoderOptions{
			Strict: true,
			Entity: EntityTable(data, opts.InjectDTD),
		},
	})
	if err != nil {
		return nil, &errors.ParseError{Format: "XML", Path: opts.Source, Message: err.Error(), Err: err}
	}

	t := newTree(opts.Source)
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode {
			t.addXML(0, c)
		}
	}
	if t.Root() == NoNode {
		return nil, errors.NewParse("XML", opts.Source, "document has no root element")
	}
	return t, nil
}

func (t *Tree) addXML(parent NodeID, n *xmlquery.Node) {
	switch n.Type {
	case xmlquery.TextNode, xmlquery.CharDataNode:
		t.add(parent, Node{Kind: KindText, Text: n.Data})
	case xmlquery.ElementNode:
		el := Node{
			Kind:      KindElement,
			Local:     n.Data,
			Namespace: n.NamespaceURI,
			Prefix:    n.Prefix,
		}
		for _, a := range n.Attr {
			if a.Name.Space == "xmlns" || (a.Name.Space == "" && a.Name.Local == "xmlns") {
				continue
			}
			attr := Attr{Local: a.Name.Local, Value: a.Value, Namespace: a.NamespaceURI}
			switch {
			case a.Name.Space == NamespaceXML || a.Name.Space == "xml":
				attr.Prefix, attr.Namespace = "xml", NamespaceXML
			case a.Name.Space != a.NamespaceURI:
				attr.Prefix = a.Name.Space
			}
			el.Attrs = append(el.Attrs, attr)
		}
		id := t.add(parent, el)
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			t.addXML(id, c)
		}
	}
}

// ParseHTML parses an HTML document. Elements land in the XHTML namespace
// (or SVG/MathML for foreign content).
func ParseHTML(data []byte, opts Options) (*Tree, error) {
	root, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, &errors.ParseError{Format: "HTML", Path: opts.Source, Message: err.Error(), Err: err}
	}
	t := newTree(opts.Source)
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			t.addHTML(0, c)
		}
	}
	if t.Root() == NoNode {
		return nil, errors.NewParse("HTML", opts.Source, "document has no root element")
	}
	return t, nil
}

func (t *Tree) addHTML(parent NodeID, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		t.add(parent, Node{Kind: KindText, Text: n.Data})
	case html.ElementNode:
		el := Node{Kind: KindElement, Local: n.Data, Namespace: htmlNamespace(n.Namespace)}
		for _, a := range n.Attr {
			attr := Attr{Local: a.Key, Value: a.Val}
			if a.Namespace == "xml" {
				attr.Prefix, attr.Namespace = "xml", NamespaceXML
			}
			el.Attrs = append(el.Attrs, attr)
		}
		id := t.add(parent, el)
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			t.addHTML(id, c)
		}
	}
}

func htmlNamespace(ns string) string {
	switch ns {
	case "svg":
		return NamespaceSVG
	case "math":
		return NamespaceMath
	}
	return NamespaceXHTML
}

// EntityTable builds the general-entity table used to parse data. The
// document's internal DTD subset is used when it has one; otherwise the
// declarations in injectDTD apply. A bare HTML5 doctype counts as no
// doctype. Character references in entity values are resolved.
func EntityTable(data []byte, injectDTD string) map[string]string {
	var subset string
	useInjected := true
	if m := doctypePattern.FindSubmatch(data); m != nil {
		isHTML5 := strings.EqualFold(string(m[1]), "html") && strings.TrimSpace(string(m[2])) == "" && m[3] == nil
		if !isHTML5 {
			useInjected = false
			subset = string(m[4])
		}
	}
	if useInjected {
		subset = injectDTD
	}

	table := map[string]string{}
	for _, m := range entityPattern.FindAllStringSubmatch(subset, -1) {
		name := m[1]
		if _, seen := table[name]; seen {
			// first declaration binds
			continue
		}
		value := m[2]
		if value == "" {
			value = m[3]
		}
		table[name] = resolveCharRefs(value)
	}
	return table
}

func resolveCharRefs(s string) string {
	if !strings.Contains(s, "&#") {
		return s
	}
	return charRefPattern.ReplaceAllStringFunc(s, func(ref string) string {
		body := ref[2 : len(ref)-1]
		var (
			n   int64
			err error
		)
		if body[0] == 'x' {
			n, err = strconv.ParseInt(body[1:], 16, 32)
		} else {
			n, err = strconv.ParseInt(body, 10, 32)
		}
		if err != nil {
			return ref
		}
		return string(rune(n))
	})
}
