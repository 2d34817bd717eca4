package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/pgzip"
	"github.com/ulikunitz/xz"

	"github.com/FocuswithJustin/standoff/core/errors"
	"github.com/FocuswithJustin/standoff/internal/fileutil"
	"github.com/FocuswithJustin/standoff/internal/validation"
)

// Save writes the store as JSON. Paths ending in .xz or .gz are compressed.
// The file is replaced atomically.
func (s *Store) Save(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	err := fileutil.WriteAtomic(path, 0644, func(w io.Writer) error {
		cw, err := compressor(path, w)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cw)
		enc.SetIndent("", "  ")
		if err := enc.Encode(s); err != nil {
			cw.Close()
			return fmt.Errorf("encode store: %w", err)
		}
		return cw.Close()
	})
	if err != nil {
		return errors.NewIO("write", path, err)
	}
	return nil
}

// Load reads a store written by Save and verifies resource checksums.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewIO("read", path, err)
	}
	r, err := decompressor(path, bytes.NewReader(data))
	if err != nil {
		return nil, &errors.ParseError{Format: "store", Path: path, Message: err.Error(), Err: err}
	}
	var s Store
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return nil, &errors.ParseError{Format: "store", Path: path, Message: err.Error(), Err: err}
	}
	for _, res := range s.Resources {
		if res.Checksum != Checksum(res.Text) {
			return nil, errors.NewValidation("checksum", fmt.Sprintf("resource %s does not match its checksum", res.ID))
		}
	}
	s.reindex()
	return &s, nil
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func compressor(path string, w io.Writer) (io.WriteCloser, error) {
	switch {
	case strings.HasSuffix(path, ".xz"):
		xw, err := xz.NewWriter(w)
		if err != nil {
			return nil, fmt.Errorf("xz writer: %w", err)
		}
		return xw, nil
	case strings.HasSuffix(path, ".gz"):
		return pgzip.NewWriter(w), nil
	}
	return nopWriteCloser{w}, nil
}

func decompressor(path string, r io.Reader) (io.Reader, error) {
	switch {
	case strings.HasSuffix(path, ".xz"):
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("xz reader: %w", err)
		}
		return xr, nil
	case strings.HasSuffix(path, ".gz"):
		gr, err := pgzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		return gr, nil
	}
	return r, nil
}

// WriteTexts writes every resource's text to dir as <id>.txt.
func (s *Store) WriteTexts(dir string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var written []string
	for _, r := range s.Resources {
		name, err := textFileName(r.ID)
		if err != nil {
			return written, err
		}
		path := filepath.Join(dir, name)
		if err := fileutil.WriteFileAtomic(path, []byte(r.Text), 0644); err != nil {
			return written, errors.NewIO("write", path, err)
		}
		written = append(written, path)
	}
	return written, nil
}

func textFileName(id string) (string, error) {
	name, err := validation.SanitizeFilename(id)
	if err != nil {
		return "", errors.NewValidation("resource", fmt.Sprintf("no file name for resource %q: %v", id, err))
	}
	if strings.HasSuffix(name, ".txt") {
		return name, nil
	}
	return name + ".txt", nil
}
