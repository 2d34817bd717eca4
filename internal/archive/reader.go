// Package archive opens conversion inputs. Single files may be compressed
// with xz or gzip; tar archives (optionally compressed) are expanded into
// their member documents, which then form one conversion unit.
package archive

import (
	"archive/tar"
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/klauspost/pgzip"
	"github.com/ulikunitz/xz"

	"github.com/FocuswithJustin/standoff/internal/validation"
)

var tarSuffixes = []string{".tar", ".tar.gz", ".tgz", ".tar.xz", ".txz"}

// IsTar reports whether name denotes a (possibly compressed) tar archive.
func IsTar(name string) bool {
	lower := strings.ToLower(name)
	for _, s := range tarSuffixes {
		if strings.HasSuffix(lower, s) {
			return true
		}
	}
	return false
}

// StripCompression removes a trailing .xz or .gz from name.
func StripCompression(name string) string {
	lower := strings.ToLower(name)
	for _, s := range []string{".xz", ".gz"} {
		if strings.HasSuffix(lower, s) {
			return name[:len(name)-len(s)]
		}
	}
	return name
}

// Compressed reports whether name carries an xz or gzip suffix.
func Compressed(name string) bool {
	lower := strings.ToLower(name)
	for _, s := range []string{".xz", ".gz", ".tgz", ".txz"} {
		if strings.HasSuffix(lower, s) {
			return true
		}
	}
	return false
}

// decompress wraps r according to the compression suffix of name.
func decompress(name string, r io.Reader) (io.Reader, io.Closer, error) {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".xz") || strings.HasSuffix(lower, ".txz"):
		xzr, err := xz.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("xz reader: %w", err)
		}
		return xzr, nil, nil
	case strings.HasSuffix(lower, ".gz") || strings.HasSuffix(lower, ".tgz"):
		gzr, err := pgzip.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("gzip reader: %w", err)
		}
		return gzr, gzr, nil
	}
	return r, nil, nil
}

// ReadFile reads a single input file, decompressing .xz and .gz.
func ReadFile(name string) ([]byte, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}
	return Decompress(name, data)
}

// Decompress decompresses data according to the suffix of name. Data of
// uncompressed names is returned as is.
func Decompress(name string, data []byte) ([]byte, error) {
	if !Compressed(name) {
		return data, nil
	}
	if err := validation.CheckContent(name, data[:min(len(data), 512)]); err != nil {
		return nil, err
	}
	r, closer, err := decompress(name, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	out, err := readLimited(r)
	if closer != nil {
		closer.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("decompress %s: %w", name, err)
	}
	return out, nil
}

// readLimited reads r to the end, failing once more than
// validation.MaxInputSize bytes arrive.
func readLimited(r io.Reader) ([]byte, error) {
	out, err := io.ReadAll(io.LimitReader(r, validation.MaxInputSize+1))
	if err != nil {
		return nil, err
	}
	if len(out) > validation.MaxInputSize {
		return nil, validation.ErrTooLarge
	}
	return out, nil
}

// Reader wraps a tar.Reader with automatic decompression handling.
type Reader struct {
	*tar.Reader
	file         *os.File
	decompressor io.Closer
}

// NewReader opens the tar archive at name.
func NewReader(name string) (*Reader, error) {
	if !IsTar(name) {
		return nil, fmt.Errorf("unsupported archive format: %s", name)
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	br := bufio.NewReader(f)
	head, _ := br.Peek(512)
	if err := validation.CheckContent(name, head); err != nil {
		f.Close()
		return nil, err
	}
	r, closer, err := decompress(name, br)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &Reader{
		Reader:       tar.NewReader(r),
		file:         f,
		decompressor: closer,
	}, nil
}

// Close closes the archive reader and any underlying decompressors.
func (r *Reader) Close() error {
	var errs []error
	if r.decompressor != nil {
		if err := r.decompressor.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := r.file.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// Visitor is a callback function for iterating archive entries.
// Return true to stop iteration, false to continue.
type Visitor func(header *tar.Header, content io.Reader) (stop bool, err error)

// Iterate walks through all entries in the archive, calling the visitor for each.
func (r *Reader) Iterate(visitor Visitor) error {
	for {
		header, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read header: %w", err)
		}

		stop, err := visitor(header, r)
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
	}
}

// Member is one document extracted from an archive.
type Member struct {
	// Name is the archive path joined to the archive file name, as in
	// corpus.tar.gz/texts/a.xml.
	Name string
	Data []byte
}

// ReadMembers returns the regular files of the archive accepted by accept,
// sorted by member path. Compressed members are decompressed.
func ReadMembers(name string, accept func(member string) bool) ([]Member, error) {
	r, err := NewReader(name)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var members []Member
	err = r.Iterate(func(header *tar.Header, content io.Reader) (bool, error) {
		if header.Typeflag != tar.TypeReg {
			return false, nil
		}
		member := path.Clean(header.Name)
		if accept != nil && !accept(StripCompression(member)) {
			return false, nil
		}
		raw, err := readLimited(content)
		if err != nil {
			return false, fmt.Errorf("read %s: %w", member, err)
		}
		data, err := Decompress(member, raw)
		if err != nil {
			return false, err
		}
		members = append(members, Member{Name: name + "/" + StripCompression(member), Data: data})
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(members, func(i, j int) bool { return members[i].Name < members[j].Name })
	return members, nil
}
