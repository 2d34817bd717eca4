package validation

import (
	"archive/tar"
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr error
	}{
		{"simple", "out/store.json", nil},
		{"absolute", "/tmp/store.json.xz", nil},
		{"empty", "", ErrEmptyPath},
		{"null byte", "out\x00.json", ErrInvalidCharacter},
		{"control", "out\n.json", ErrInvalidCharacter},
		{"too long", strings.Repeat("a", MaxPathLength+1), ErrPathTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.path)
			if tt.wantErr == nil && err != nil {
				t.Errorf("ValidatePath() = %v, want nil", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidatePath() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateFilename(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"plain", "genesis.txt", nil},
		{"unicode", "δοκιμή.txt", nil},
		{"empty", "", ErrInvalidFilename},
		{"dot", ".", ErrInvalidFilename},
		{"dotdot", "..", ErrInvalidFilename},
		{"separator", "a/b.txt", ErrInvalidFilename},
		{"backslash", "a\\b.txt", ErrInvalidFilename},
		{"hyphen", "-rf", ErrInvalidFilename},
		{"control", "a\tb", ErrInvalidFilename},
		{"too long", strings.Repeat("a", MaxFilenameLength+1), ErrFilenameTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFilename(tt.input)
			if tt.wantErr == nil && err != nil {
				t.Errorf("ValidateFilename() = %v, want nil", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateFilename() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"genesis", "genesis", false},
		{"corpus/a", "corpus_a", false},
		{"..\\x", ".._x", false},
		{"--opt", "opt", false},
		{" spaced ", "spaced", false},
		{"bell\a", "bell", false},
		{"", "", true},
		{"---", "", true},
		{"..", "", true},
	}
	for _, tt := range tests {
		got, err := SanitizeFilename(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("SanitizeFilename(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func tarHeader(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	if err := tw.WriteHeader(&tar.Header{Name: "a.xml", Mode: 0644, Size: 0, Typeflag: tar.TypeReg}); err != nil {
		t.Fatal(err)
	}
	tw.Close()
	return buf.Bytes()
}

func TestSniff(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
		want Kind
	}{
		{"xz", []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00, 0x00}, KindXZ},
		{"gzip", []byte{0x1f, 0x8b, 0x08}, KindGzip},
		{"tar", tarHeader(t), KindTar},
		{"xml", []byte("<?xml version=\"1.0\"?><doc/>"), KindMarkup},
		{"xml with bom and space", []byte("\xef\xbb\xbf\n  <doc/>"), KindMarkup},
		{"text", []byte("plain text"), KindUnknown},
		{"empty", nil, KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sniff(tt.buf); got != tt.want {
				t.Errorf("Sniff() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestCheckContent(t *testing.T) {
	xzHead := []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00}
	tests := []struct {
		name    string
		file    string
		head    []byte
		wantErr bool
	}{
		{"xz matches", "a.xml.xz", xzHead, false},
		{"txz matches", "c.txz", xzHead, false},
		{"gzip matches", "a.xml.GZ", []byte{0x1f, 0x8b}, false},
		{"tar matches", "c.tar", tarHeader(t), false},
		{"plain name", "a.xml", []byte("anything"), false},
		{"xz named but xml", "a.xml.xz", []byte("<doc/>"), true},
		{"gz named but xz", "c.tar.gz", xzHead, true},
		{"tar named but text", "c.tar", []byte("hello"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckContent(tt.file, tt.head)
			if (err != nil) != tt.wantErr {
				t.Errorf("CheckContent() = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrContentMismatch) {
				t.Errorf("error %v should wrap ErrContentMismatch", err)
			}
		})
	}
}
