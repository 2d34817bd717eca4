// Package validation checks user-supplied paths and names and sniffs input
// content before it reaches a decompressor or parser.
package validation

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// Limits applied to inputs and names.
const (
	// MaxInputSize is the largest decompressed input document accepted (512 MB).
	MaxInputSize = 512 << 20
	// MaxFilenameLength is the maximum allowed filename length.
	MaxFilenameLength = 255
	// MaxPathLength is the maximum allowed path length.
	MaxPathLength = 4096
)

// Common validation errors.
var (
	ErrInvalidFilename  = errors.New("invalid filename")
	ErrPathTooLong      = errors.New("path too long")
	ErrFilenameTooLong  = errors.New("filename too long")
	ErrInvalidCharacter = errors.New("invalid character in path")
	ErrEmptyPath        = errors.New("path cannot be empty")
	ErrTooLarge         = errors.New("input too large")
	ErrContentMismatch  = errors.New("content does not match file name")
)

// ValidatePath checks a path for length limits and invalid characters.
func ValidatePath(path string) error {
	if path == "" {
		return ErrEmptyPath
	}
	if len(path) > MaxPathLength {
		return ErrPathTooLong
	}
	if strings.Contains(path, "\x00") {
		return fmt.Errorf("%w: null byte not allowed", ErrInvalidCharacter)
	}
	for _, r := range path {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: control character not allowed", ErrInvalidCharacter)
		}
	}
	return nil
}

// ValidateFilename checks that filename is a single, safe path element.
func ValidateFilename(filename string) error {
	if filename == "" {
		return ErrInvalidFilename
	}
	if len(filename) > MaxFilenameLength {
		return ErrFilenameTooLong
	}
	if filename == "." || filename == ".." {
		return fmt.Errorf("%w: reserved name", ErrInvalidFilename)
	}
	if strings.ContainsAny(filename, "/\\") {
		return fmt.Errorf("%w: path separator not allowed", ErrInvalidFilename)
	}
	for _, r := range filename {
		if r == 0 || unicode.IsControl(r) {
			return fmt.Errorf("%w: control character not allowed", ErrInvalidFilename)
		}
	}
	if strings.HasPrefix(filename, "-") {
		return fmt.Errorf("%w: filename cannot start with hyphen", ErrInvalidFilename)
	}
	return nil
}

// SanitizeFilename turns an identifier into a safe file name: separators
// become underscores, control characters and leading hyphens are dropped.
func SanitizeFilename(filename string) (string, error) {
	filename = strings.TrimSpace(filename)
	filename = strings.NewReplacer("/", "_", "\\", "_").Replace(filename)

	var cleaned strings.Builder
	for _, r := range filename {
		if r != 0 && !unicode.IsControl(r) {
			cleaned.WriteRune(r)
		}
	}
	filename = strings.TrimLeft(cleaned.String(), "-")

	if err := ValidateFilename(filename); err != nil {
		return "", err
	}
	return filename, nil
}

// Kind is the content kind detected from leading bytes.
type Kind string

const (
	KindXZ      Kind = "xz"
	KindGzip    Kind = "gzip"
	KindTar     Kind = "tar"
	KindMarkup  Kind = "markup"
	KindUnknown Kind = "unknown"
)

var magicBytes = []struct {
	kind   Kind
	magic  []byte
	offset int
}{
	{KindXZ, []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00}, 0},
	{KindGzip, []byte{0x1f, 0x8b}, 0},
	{KindTar, []byte("ustar"), 257},
}

// Sniff detects the kind of content from its first bytes. 512 bytes are
// enough to see a tar header.
func Sniff(buf []byte) Kind {
	for _, sig := range magicBytes {
		if sig.offset+len(sig.magic) <= len(buf) &&
			bytes.Equal(buf[sig.offset:sig.offset+len(sig.magic)], sig.magic) {
			return sig.kind
		}
	}
	rest := bytes.TrimPrefix(buf, []byte("\xef\xbb\xbf"))
	rest = bytes.TrimLeft(rest, " \t\r\n")
	if len(rest) > 0 && rest[0] == '<' {
		return KindMarkup
	}
	return KindUnknown
}

// Expect returns the kind a file name promises, KindUnknown for names
// without a container or compression suffix.
func Expect(name string) Kind {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".xz"), strings.HasSuffix(lower, ".txz"):
		return KindXZ
	case strings.HasSuffix(lower, ".gz"), strings.HasSuffix(lower, ".tgz"):
		return KindGzip
	case strings.HasSuffix(lower, ".tar"):
		return KindTar
	}
	return KindUnknown
}

// CheckContent reports an error when name promises a compressed or tar
// container that the leading bytes in head do not carry.
func CheckContent(name string, head []byte) error {
	want := Expect(name)
	if want == KindUnknown {
		return nil
	}
	if got := Sniff(head); got != want {
		return fmt.Errorf("%w: %s is named as %s but looks like %s", ErrContentMismatch, name, want, got)
	}
	return nil
}
