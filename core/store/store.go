// Package store holds converted resources and their stand-off annotations.
//
// A Store accumulates one Resource per conversion unit together with the
// annotations that point into it. Commit is all-or-nothing: a unit whose
// annotations fail validation leaves the store exactly as it was.
package store

import (
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	"github.com/FocuswithJustin/standoff/core/errors"
)

// SelectorKind is the kind of target an annotation points at.
type SelectorKind string

const (
	// TextSelector targets a [Begin, End) codepoint span of a resource.
	TextSelector SelectorKind = "TextSelector"
	// ResourceSelector targets a resource as a whole.
	ResourceSelector SelectorKind = "ResourceSelector"
)

// Selector is the target of an annotation.
type Selector struct {
	Kind     SelectorKind `json:"kind"`
	Resource string       `json:"resource"`
	Begin    int          `json:"begin"`
	End      int          `json:"end"`
}

// TextSpan returns a selector for [begin, end) of resource.
func TextSpan(resource string, begin, end int) Selector {
	return Selector{Kind: TextSelector, Resource: resource, Begin: begin, End: end}
}

// WholeResource returns a selector for the whole of resource.
func WholeResource(resource string) Selector {
	return Selector{Kind: ResourceSelector, Resource: resource}
}

func (s Selector) String() string {
	if s.Kind == TextSelector {
		return fmt.Sprintf("%s[%d:%d]", s.Resource, s.Begin, s.End)
	}
	return s.Resource
}

// Data is one (set, key, value) triple of an annotation. Value is any
// JSON-compatible value, including nested lists and maps.
type Data struct {
	ID    string `json:"id,omitempty"`
	Set   string `json:"set"`
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// Provenance records where an annotation came from.
type Provenance struct {
	File string `json:"file,omitempty"`
	Node string `json:"node,omitempty"`
	Rule string `json:"rule,omitempty"`
}

// Annotation is a stand-off annotation.
type Annotation struct {
	ID         string      `json:"id,omitempty"`
	Target     Selector    `json:"target"`
	Data       []Data      `json:"data"`
	Provenance *Provenance `json:"provenance,omitempty"`
}

// Resource is a plain-text resource produced by a conversion.
type Resource struct {
	ID       string `json:"id"`
	Filename string `json:"filename,omitempty"`
	Text     string `json:"text"`
	Checksum string `json:"checksum"`
}

// Len returns the resource length in codepoints.
func (r *Resource) Len() int {
	return utf8.RuneCountInString(r.Text)
}

// Checksum returns the hex BLAKE3 digest of text.
func Checksum(text string) string {
	sum := blake3.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Store is an in-memory annotation store. It is safe for concurrent use.
type Store struct {
	ID          string        `json:"id"`
	RunID       string        `json:"run_id"`
	Resources   []*Resource   `json:"resources"`
	Annotations []*Annotation `json:"annotations"`

	mu          sync.RWMutex
	resources   map[string]*Resource
	annotations map[string]*Annotation
}

// New creates an empty store with a fresh run identifier.
func New(id string) *Store {
	s := &Store{ID: id, RunID: uuid.NewString()}
	s.reindex()
	return s
}

func (s *Store) reindex() {
	s.resources = make(map[string]*Resource, len(s.Resources))
	s.annotations = make(map[string]*Annotation)
	for _, r := range s.Resources {
		s.resources[r.ID] = r
	}
	for _, a := range s.Annotations {
		if a.ID != "" {
			s.annotations[a.ID] = a
		}
	}
}

// Commit adds a resource and its annotations. Everything is validated
// before the store is touched; on error nothing is added.
func (s *Store) Commit(res Resource, anns []Annotation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if res.ID == "" {
		return errors.NewValidation("resource", "empty resource id")
	}
	if _, dup := s.resources[res.ID]; dup {
		return errors.NewValidation("resource", fmt.Sprintf("duplicate resource id %q", res.ID))
	}
	length := res.Len()
	seen := make(map[string]bool)
	for i := range anns {
		if err := s.validate(&anns[i], res.ID, length, seen); err != nil {
			return err
		}
	}

	r := res
	r.Checksum = Checksum(r.Text)
	s.Resources = append(s.Resources, &r)
	s.resources[r.ID] = &r
	for i := range anns {
		a := anns[i]
		s.Annotations = append(s.Annotations, &a)
		if a.ID != "" {
			s.annotations[a.ID] = &a
		}
	}
	return nil
}

func (s *Store) validate(a *Annotation, resource string, length int, seen map[string]bool) error {
	if a.ID != "" {
		if _, dup := s.annotations[a.ID]; dup || seen[a.ID] {
			return errors.NewValidation("annotation", fmt.Sprintf("duplicate annotation id %q", a.ID))
		}
		seen[a.ID] = true
	}
	label := a.ID
	if label == "" {
		label = a.Target.String()
	}
	switch a.Target.Kind {
	case TextSelector:
		if a.Target.Resource != resource {
			return errors.NewValidation("target", fmt.Sprintf("annotation %s targets foreign resource %q", label, a.Target.Resource))
		}
		if a.Target.Begin < 0 || a.Target.Begin > a.Target.End {
			return errors.NewValidation("offset", fmt.Sprintf("annotation %s has inverted span", label))
		}
		if a.Target.End > length {
			return errors.NewValidation("offset", fmt.Sprintf("end %d beyond text length %d", a.Target.End, length))
		}
	case ResourceSelector:
		if a.Target.Resource != resource {
			if _, ok := s.resources[a.Target.Resource]; !ok {
				return errors.NewValidation("target", fmt.Sprintf("annotation %s targets unknown resource %q", label, a.Target.Resource))
			}
		}
	default:
		return errors.NewValidation("target", fmt.Sprintf("annotation %s has unknown selector kind %q", label, a.Target.Kind))
	}
	for _, d := range a.Data {
		if d.Key == "" {
			return errors.NewValidation("data", fmt.Sprintf("annotation %s has data without a key", label))
		}
		if d.Set == "" {
			return errors.NewValidation("data", fmt.Sprintf("annotation %s has data without a set", label))
		}
	}
	return nil
}

// Resource returns the resource with the given id.
func (s *Store) Resource(id string) (*Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.resources[id]
	if !ok {
		return nil, errors.NewNotFound("resource", id)
	}
	return r, nil
}

// Annotation returns the annotation with the given id.
func (s *Store) Annotation(id string) (*Annotation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.annotations[id]
	if !ok {
		return nil, errors.NewNotFound("annotation", id)
	}
	return a, nil
}

// AnnotationsOn returns the annotations targeting resource, in commit order.
func (s *Store) AnnotationsOn(resource string) []*Annotation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Annotation
	for _, a := range s.Annotations {
		if a.Target.Resource == resource {
			out = append(out, a)
		}
	}
	return out
}

// Text returns the text a selector points at. A ResourceSelector yields the
// whole resource text.
func (s *Store) Text(sel Selector) (string, error) {
	r, err := s.Resource(sel.Resource)
	if err != nil {
		return "", err
	}
	if sel.Kind == ResourceSelector {
		return r.Text, nil
	}
	text, ok := Substring(r.Text, sel.Begin, sel.End)
	if !ok {
		return "", errors.NewValidation("offset", fmt.Sprintf("span [%d,%d) outside resource %s", sel.Begin, sel.End, r.ID))
	}
	return text, nil
}

// Substring returns the codepoints [begin, end) of s.
func Substring(s string, begin, end int) (string, bool) {
	if begin < 0 || begin > end {
		return "", false
	}
	start, stop := -1, -1
	n := 0
	for i := range s {
		if n == begin {
			start = i
		}
		if n == end {
			stop = i
			break
		}
		n++
	}
	if start < 0 && n == begin {
		start = len(s)
	}
	if stop < 0 && n == end {
		stop = len(s)
	}
	if start < 0 || stop < 0 {
		return "", false
	}
	return s[start:stop], true
}

// Stats summarizes a store.
type Stats struct {
	Resources   int
	Annotations int
	Data        int
	Sets        []string
	Keys        map[string]int
}

// Stats computes a summary of the store contents.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Stats{
		Resources:   len(s.Resources),
		Annotations: len(s.Annotations),
		Keys:        make(map[string]int),
	}
	sets := make(map[string]bool)
	for _, a := range s.Annotations {
		st.Data += len(a.Data)
		for _, d := range a.Data {
			sets[d.Set] = true
			st.Keys[d.Key]++
		}
	}
	for set := range sets {
		st.Sets = append(st.Sets, set)
	}
	sort.Strings(st.Sets)
	return st
}
