// Package whitespace resolves per-node whitespace handling and implements the
// collapse rules applied when text is emitted.
package whitespace

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
)

// Mode is a whitespace handling mode as written in a mapping file.
type Mode int

const (
	// Inherit takes the effective mode of the nearest ancestor.
	Inherit Mode = iota
	// Preserve emits text exactly as it appears in the source.
	Preserve
	// Collapse replaces every run of whitespace with a single space.
	Collapse
)

func (m Mode) String() string {
	switch m {
	case Preserve:
		return "Preserve"
	case Collapse:
		return "Collapse"
	default:
		return "Inherit"
	}
}

// ParseMode parses a mode name. Matching is case-insensitive; the empty string
// is Inherit.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "inherit":
		return Inherit, nil
	case "preserve":
		return Preserve, nil
	case "collapse":
		return Collapse, nil
	}
	return Inherit, fmt.Errorf("unknown whitespace mode %q", s)
}

// MarshalJSON implements json.Marshaler.
func (m Mode) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Mode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseMode(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Resolve returns the effective mode of a node given its parent's effective
// mode and the mode its rule asks for. The result is never Inherit as long
// as parent is not.
func Resolve(parent, rule Mode) Mode {
	if rule == Inherit {
		return parent
	}
	return rule
}

// ResolveXMLSpace applies an xml:space attribute value on top of the mode
// computed by Resolve. "preserve" forces Preserve, "collapse" and "replace"
// force Collapse, and anything else (including "default") keeps mode.
func ResolveXMLSpace(mode Mode, xmlSpace string) Mode {
	switch xmlSpace {
	case "preserve":
		return Preserve
	case "collapse", "replace":
		return Collapse
	}
	return mode
}

// IsSpace reports whether r counts as whitespace for collapsing.
func IsSpace(r rune) bool {
	return unicode.IsSpace(r)
}

// IsBlank reports whether s is empty or consists only of whitespace.
func IsBlank(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool { return !IsSpace(r) }) < 0
}

// CollapseSpace replaces every maximal run of whitespace in s with one space.
// Leading and trailing runs become a single space too; collapsing an already
// collapsed string returns it unchanged.
func CollapseSpace(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	inSpace := false
	for _, r := range s {
		if IsSpace(r) {
			if !inSpace {
				sb.WriteByte(' ')
				inSpace = true
			}
			continue
		}
		inSpace = false
		sb.WriteRune(r)
	}
	return sb.String()
}

// Segment is the outcome of preparing one text node for emission in collapse
// mode.
type Segment struct {
	// Separator is true when a single space must be written before Text.
	Separator bool
	// Text is the trimmed, collapsed content. Empty for whitespace-only input.
	Text string
	// Pending is the new pending-space state after this segment.
	Pending bool
}

// Prepare computes how a text node is emitted in collapse mode. pending is the
// current pending-space flag and endsInSpace reports whether the output
// buffer already ends in whitespace (or is empty).
func Prepare(s string, pending, endsInSpace bool) Segment {
	if IsBlank(s) {
		if s == "" {
			return Segment{Pending: pending}
		}
		return Segment{Pending: true}
	}
	leading := IsSpace(firstRune(s))
	trailing := IsSpace(lastRune(s))
	body := strings.TrimFunc(CollapseSpace(s), IsSpace)
	return Segment{
		Separator: (pending || leading) && !endsInSpace,
		Text:      body,
		Pending:   trailing,
	}
}

func firstRune(s string) rune {
	for _, r := range s {
		return r
	}
	return 0
}

func lastRune(s string) rune {
	rs := []rune(s)
	if len(rs) == 0 {
		return 0
	}
	return rs[len(rs)-1]
}
