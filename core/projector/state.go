package projector

import (
	"strings"

	"github.com/FocuswithJustin/standoff/core/doctree"
	"github.com/FocuswithJustin/standoff/core/mapping"
	"github.com/FocuswithJustin/standoff/core/store"
	"github.com/FocuswithJustin/standoff/core/whitespace"
)

// OutputState is the mutable state of one projection run: the text buffer,
// the codepoint cursor into it, open markers and the annotation slots
// reserved so far. It is owned by a single traversal.
type OutputState struct {
	text   strings.Builder
	cursor int

	// pending is set when collapsed whitespace has been seen but not yet
	// written; it becomes one separator space before the next text.
	pending   bool
	lastSpace bool

	// frames holds the span begin of every element currently being
	// emitted, innermost last.
	frames []int

	markers map[string]*marker
	slots   []*slot
}

type marker struct {
	doc    *document
	id     doctree.NodeID
	rule   *mapping.ElementRule
	offset int
	slot   *slot
}

type slot struct {
	ann    *store.Annotation
	filled bool
}

func newOutputState() *OutputState {
	return &OutputState{
		lastSpace: true,
		markers:   make(map[string]*marker),
	}
}

// Len returns the number of codepoints written so far.
func (s *OutputState) Len() int { return s.cursor }

// Text returns the text written so far.
func (s *OutputState) Text() string { return s.text.String() }

func (s *OutputState) write(str string) {
	if str == "" {
		return
	}
	last := ' '
	for _, r := range str {
		s.cursor++
		last = r
	}
	s.text.WriteString(str)
	s.lastSpace = whitespace.IsSpace(last)
}

// separator writes one space. Elements that have emitted nothing yet start
// after it.
func (s *OutputState) separator() {
	at := s.cursor
	s.write(" ")
	for i := len(s.frames) - 1; i >= 0 && s.frames[i] == at; i-- {
		s.frames[i] = s.cursor
	}
}

// emitText writes the content of one text node under mode.
func (s *OutputState) emitText(text string, mode whitespace.Mode) {
	if mode == whitespace.Collapse {
		seg := whitespace.Prepare(text, s.pending, s.lastSpace)
		if seg.Text == "" {
			s.pending = seg.Pending
			return
		}
		if seg.Separator {
			s.separator()
		}
		s.write(seg.Text)
		s.pending = seg.Pending
		return
	}
	if text == "" {
		return
	}
	if s.pending && !s.lastSpace && !whitespace.IsSpace([]rune(text)[0]) {
		s.separator()
	}
	s.pending = false
	s.write(text)
}

// emitAffix writes rendered prefix or suffix text. It discards any pending
// whitespace.
func (s *OutputState) emitAffix(text string) {
	s.pending = false
	s.write(text)
}

func (s *OutputState) push() {
	s.frames = append(s.frames, s.cursor)
}

func (s *OutputState) pop() int {
	begin := s.frames[len(s.frames)-1]
	s.frames = s.frames[:len(s.frames)-1]
	return begin
}

// reserve claims the next annotation position in document order.
func (s *OutputState) reserve() *slot {
	sl := &slot{}
	s.slots = append(s.slots, sl)
	return sl
}

func (sl *slot) fill(a *store.Annotation) {
	sl.ann = a
	sl.filled = true
}

// annotations returns the filled slots in order.
func (s *OutputState) annotations() []store.Annotation {
	out := make([]store.Annotation, 0, len(s.slots))
	for _, sl := range s.slots {
		if sl.filled && sl.ann != nil {
			out = append(out, *sl.ann)
		}
	}
	return out
}

// resetDocument clears per-document whitespace state. Markers survive.
// Every document starts as if at the beginning of the buffer, so leading
// whitespace of a document is dropped in collapse mode and documents join
// without a separator. Use textsuffix on the document element to separate
// them.
func (s *OutputState) resetDocument() {
	s.pending = false
	s.lastSpace = true
}
