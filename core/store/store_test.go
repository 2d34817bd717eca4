package store

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/FocuswithJustin/standoff/core/errors"
	"github.com/FocuswithJustin/standoff/core/sqlite"
)

func sampleStore(t *testing.T) *Store {
	t.Helper()
	s := New("test")
	res := Resource{ID: "doc", Filename: "doc.xml", Text: "Hello\nWörld\n"}
	anns := []Annotation{
		{
			ID:     "p1",
			Target: TextSpan("doc", 0, 5),
			Data:   []Data{{Set: "urn:x", Key: "type", Value: "p"}},
		},
		{
			Target: TextSpan("doc", 6, 11),
			Data:   []Data{{Set: "urn:x", Key: "type", Value: "p"}, {Set: "urn:x", Key: "n", Value: int64(2)}},
			Provenance: &Provenance{
				File: "doc.xml",
				Node: "/doc/p[2]",
				Rule: "//p",
			},
		},
		{
			Target: WholeResource("doc"),
			Data:   []Data{{Set: "urn:x", Key: "meta", Value: map[string]any{"lang": "en", "tags": []any{"a", "b"}}}},
		},
	}
	if err := s.Commit(res, anns); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	return s
}

func TestCommitAndText(t *testing.T) {
	s := sampleStore(t)

	if s.RunID == "" {
		t.Error("RunID should be set")
	}
	res, err := s.Resource("doc")
	if err != nil {
		t.Fatalf("Resource: %v", err)
	}
	if res.Checksum != Checksum(res.Text) {
		t.Error("checksum not computed on commit")
	}
	if res.Len() != 12 {
		t.Errorf("Len = %d, want 12", res.Len())
	}

	tests := []struct {
		sel  Selector
		want string
	}{
		{TextSpan("doc", 0, 5), "Hello"},
		{TextSpan("doc", 6, 11), "Wörld"},
		{TextSpan("doc", 12, 12), ""},
		{WholeResource("doc"), "Hello\nWörld\n"},
	}
	for _, tt := range tests {
		got, err := s.Text(tt.sel)
		if err != nil {
			t.Errorf("Text(%v): %v", tt.sel, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Text(%v) = %q, want %q", tt.sel, got, tt.want)
		}
	}

	a, err := s.Annotation("p1")
	if err != nil {
		t.Fatalf("Annotation: %v", err)
	}
	if a.Target.End != 5 {
		t.Errorf("p1 end = %d", a.Target.End)
	}
	if _, err := s.Annotation("nope"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("missing annotation error = %v", err)
	}
	if got := len(s.AnnotationsOn("doc")); got != 3 {
		t.Errorf("AnnotationsOn = %d, want 3", got)
	}
}

func TestCommitIsAllOrNothing(t *testing.T) {
	tests := []struct {
		name string
		res  Resource
		anns []Annotation
	}{
		{
			name: "span beyond text",
			res:  Resource{ID: "r2", Text: "abc"},
			anns: []Annotation{
				{Target: TextSpan("r2", 0, 1), Data: []Data{{Set: "s", Key: "k"}}},
				{Target: TextSpan("r2", 0, 4), Data: []Data{{Set: "s", Key: "k"}}},
			},
		},
		{
			name: "inverted span",
			res:  Resource{ID: "r2", Text: "abc"},
			anns: []Annotation{{Target: TextSpan("r2", 2, 1)}},
		},
		{
			name: "duplicate id with existing",
			res:  Resource{ID: "r2", Text: "abc"},
			anns: []Annotation{{ID: "p1", Target: TextSpan("r2", 0, 1)}},
		},
		{
			name: "duplicate id within batch",
			res:  Resource{ID: "r2", Text: "abc"},
			anns: []Annotation{
				{ID: "x", Target: TextSpan("r2", 0, 1)},
				{ID: "x", Target: TextSpan("r2", 1, 2)},
			},
		},
		{
			name: "duplicate resource",
			res:  Resource{ID: "doc", Text: "abc"},
		},
		{
			name: "empty resource id",
			res:  Resource{Text: "abc"},
		},
		{
			name: "data without key",
			res:  Resource{ID: "r2", Text: "abc"},
			anns: []Annotation{{Target: WholeResource("r2"), Data: []Data{{Set: "s"}}}},
		},
		{
			name: "unknown resource",
			res:  Resource{ID: "r2", Text: "abc"},
			anns: []Annotation{{Target: WholeResource("elsewhere")}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := sampleStore(t)
			before := s.Stats()
			err := s.Commit(tt.res, tt.anns)
			if !errors.Is(err, errors.ErrInvalidInput) {
				t.Fatalf("Commit error = %v, want validation error", err)
			}
			if after := s.Stats(); !reflect.DeepEqual(before, after) {
				t.Errorf("store changed after failed commit: %+v -> %+v", before, after)
			}
			if tt.res.ID == "r2" {
				if _, err := s.Resource("r2"); err == nil {
					t.Error("rejected resource must not be added")
				}
			}
		})
	}
}

func TestSubstring(t *testing.T) {
	tests := []struct {
		s          string
		begin, end int
		want       string
		ok         bool
	}{
		{"abc", 0, 3, "abc", true},
		{"abc", 1, 2, "b", true},
		{"abc", 3, 3, "", true},
		{"", 0, 0, "", true},
		{"añb", 1, 2, "ñ", true},
		{"abc", 0, 4, "", false},
		{"abc", 2, 1, "", false},
		{"abc", -1, 1, "", false},
	}
	for _, tt := range tests {
		got, ok := Substring(tt.s, tt.begin, tt.end)
		if got != tt.want || ok != tt.ok {
			t.Errorf("Substring(%q, %d, %d) = %q, %v; want %q, %v", tt.s, tt.begin, tt.end, got, ok, tt.want, tt.ok)
		}
	}
}

func TestSaveLoad(t *testing.T) {
	for _, name := range []string{"store.json", "store.json.xz", "store.json.gz"} {
		t.Run(name, func(t *testing.T) {
			s := sampleStore(t)
			path := filepath.Join(t.TempDir(), name)
			if err := s.Save(path); err != nil {
				t.Fatalf("Save: %v", err)
			}

			loaded, err := Load(path)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if loaded.RunID != s.RunID || loaded.ID != "test" {
				t.Errorf("identity lost: %q %q", loaded.ID, loaded.RunID)
			}
			if len(loaded.Annotations) != 3 {
				t.Fatalf("annotations = %d", len(loaded.Annotations))
			}
			got, err := loaded.Text(loaded.Annotations[1].Target)
			if err != nil || got != "Wörld" {
				t.Errorf("Text = %q, %v", got, err)
			}
			if loaded.Annotations[1].Provenance == nil || loaded.Annotations[1].Provenance.Node != "/doc/p[2]" {
				t.Errorf("provenance lost: %+v", loaded.Annotations[1].Provenance)
			}
			if _, err := loaded.Annotation("p1"); err != nil {
				t.Errorf("index not rebuilt: %v", err)
			}
		})
	}
}

func TestLoadChecksumMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	data := `{"id":"x","run_id":"r","resources":[{"id":"a","text":"abc","checksum":"00"}],"annotations":[]}`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("Load error = %v, want validation error", err)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
	bad := filepath.Join(dir, "bad.json")
	os.WriteFile(bad, []byte("{"), 0644)
	if _, err := Load(bad); !errors.Is(err, errors.ErrParse) {
		t.Errorf("Load error = %v, want parse error", err)
	}
}

func TestWriteTexts(t *testing.T) {
	s := sampleStore(t)
	dir := t.TempDir()
	paths, err := s.WriteTexts(dir)
	if err != nil {
		t.Fatalf("WriteTexts: %v", err)
	}
	if len(paths) != 1 || filepath.Base(paths[0]) != "doc.txt" {
		t.Fatalf("paths = %v", paths)
	}
	got, _ := os.ReadFile(paths[0])
	if string(got) != "Hello\nWörld\n" {
		t.Errorf("text = %q", got)
	}
}

func TestSaveSQLite(t *testing.T) {
	s := sampleStore(t)
	path := filepath.Join(t.TempDir(), "store.db")
	if err := s.SaveSQLite(context.Background(), path); err != nil {
		t.Fatalf("SaveSQLite: %v", err)
	}

	db, err := sqlite.OpenReadOnly(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM annotations`).Scan(&n); err != nil {
		t.Fatalf("count annotations: %v", err)
	}
	if n != 3 {
		t.Errorf("annotations = %d, want 3", n)
	}
	if err := db.QueryRow(`SELECT COUNT(*) FROM annotation_data`).Scan(&n); err != nil {
		t.Fatalf("count data: %v", err)
	}
	if n != 4 {
		t.Errorf("data rows = %d, want 4", n)
	}

	var value string
	if err := db.QueryRow(`SELECT value FROM annotation_data WHERE key = 'n'`).Scan(&value); err != nil {
		t.Fatalf("query value: %v", err)
	}
	if value != "2" {
		t.Errorf("value = %q, want JSON 2", value)
	}

	var begin, end int
	if err := db.QueryRow(`SELECT begin_offset, end_offset FROM annotations WHERE id = 'p1'`).Scan(&begin, &end); err != nil {
		t.Fatalf("query span: %v", err)
	}
	if begin != 0 || end != 5 {
		t.Errorf("span = [%d,%d)", begin, end)
	}
}

func TestStats(t *testing.T) {
	st := sampleStore(t).Stats()
	if st.Resources != 1 || st.Annotations != 3 || st.Data != 4 {
		t.Errorf("Stats = %+v", st)
	}
	if !reflect.DeepEqual(st.Sets, []string{"urn:x"}) {
		t.Errorf("Sets = %v", st.Sets)
	}
	if st.Keys["type"] != 2 {
		t.Errorf("Keys = %v", st.Keys)
	}
}

func TestTextFileName(t *testing.T) {
	tests := []struct {
		id      string
		want    string
		wantErr bool
	}{
		{"genesis", "genesis.txt", false},
		{"corpus/a", "corpus_a.txt", false},
		{"notes.txt", "notes.txt", false},
		{"..", "", true},
	}
	for _, tt := range tests {
		got, err := textFileName(tt.id)
		if (err != nil) != tt.wantErr {
			t.Errorf("textFileName(%q) error = %v", tt.id, err)
			continue
		}
		if got != tt.want {
			t.Errorf("textFileName(%q) = %q, want %q", tt.id, got, tt.want)
		}
	}
}
