package main

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/FocuswithJustin/standoff/core/errors"
	"github.com/FocuswithJustin/standoff/core/store"
)

const testMapping = `
id_strip_suffix = [".xml"]

[[elements]]
path = "//p"
text = true
textsuffix = "\n"
annotation = "TextSelector"

[[elements.annotationdata]]
key = "type"
value = "paragraph"
`

func createTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}
	return path
}

func captureStdout(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	old := stdout
	stdout = &buf
	t.Cleanup(func() { stdout = old })
	return &buf
}

func TestReadInputList(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  [][]string
	}{
		{
			name:  "one file per line",
			input: "a.xml\nb.xml\n",
			want:  [][]string{{"a.xml"}, {"b.xml"}},
		},
		{
			name:  "tab separated group",
			input: "a.xml\ta2.xml\t\nb.xml",
			want:  [][]string{{"a.xml", "a2.xml"}, {"b.xml"}},
		},
		{
			name:  "comments and blank lines",
			input: "# corpus\n\n  \r\nc.xml\r\n",
			want:  [][]string{{"c.xml"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readInputList(strings.NewReader(tt.input))
			if err != nil {
				t.Fatalf("readInputList: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConvertCmd_Run(t *testing.T) {
	dir := t.TempDir()
	cfg := createTestFile(t, dir, "mapping.toml", testMapping)
	hello := createTestFile(t, dir, "hello.xml", "<doc><p>Hello</p></doc>")
	world := createTestFile(t, dir, "world.xml", "<doc><p>World</p></doc>")
	extra := createTestFile(t, dir, "extra.xml", "<doc><p>Extra</p></doc>")
	list := createTestFile(t, dir, "inputs.tsv", world+"\t"+extra+"\n")

	cmd := &ConvertCmd{
		Config:        cfg,
		Out:           filepath.Join(dir, "out", "store.json.xz"),
		SQLite:        filepath.Join(dir, "out", "store.sqlite"),
		TextDir:       filepath.Join(dir, "texts"),
		InputFile:     []string{hello},
		InputFileList: list,
		Jobs:          2,
		StoreID:       "test",
	}
	if err := cmd.Run(&Globals{}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	s, err := store.Load(cmd.Out)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(s.Resources) != 2 {
		t.Fatalf("resources = %d, want 2", len(s.Resources))
	}
	if s.Resources[0].ID != "hello" || s.Resources[1].ID != "world" {
		t.Errorf("resource ids = %s, %s", s.Resources[0].ID, s.Resources[1].ID)
	}
	if s.Resources[1].Text != "World\nExtra\n" {
		t.Errorf("grouped text = %q", s.Resources[1].Text)
	}
	if _, err := os.Stat(cmd.SQLite); err != nil {
		t.Errorf("sqlite output missing: %v", err)
	}
	text, err := os.ReadFile(filepath.Join(cmd.TextDir, "hello.txt"))
	if err != nil || string(text) != "Hello\n" {
		t.Errorf("hello.txt = %q, %v", text, err)
	}
}

func TestConvertCmd_Errors(t *testing.T) {
	dir := t.TempDir()
	cfg := createTestFile(t, dir, "mapping.toml", testMapping)
	good := createTestFile(t, dir, "good.xml", "<doc><p>ok</p></doc>")
	bad := createTestFile(t, dir, "bad.xml", "<doc><p></doc>")

	if err := (&ConvertCmd{Config: cfg, InputFile: []string{good}}).Run(&Globals{}); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("no output err = %v", err)
	}

	out := filepath.Join(dir, "store.json")
	strict := &ConvertCmd{Config: cfg, Out: out, InputFile: []string{good, bad}, Jobs: 1, StoreID: "s"}
	if err := strict.Run(&Globals{}); !errors.Is(err, errors.ErrParse) {
		t.Errorf("strict err = %v, want parse error", err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Error("store must not be written when the run fails")
	}

	lenient := &ConvertCmd{Config: cfg, Out: out, InputFile: []string{good, bad}, Jobs: 1, StoreID: "s", IgnoreErrors: true}
	if err := lenient.Run(&Globals{}); err != nil {
		t.Fatalf("lenient Run: %v", err)
	}
	s, err := store.Load(out)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(s.Resources) != 1 || s.Resources[0].ID != "good" {
		t.Errorf("resources = %+v", s.Resources)
	}
}

func TestConvertCmd_OutputsAllOrNothing(t *testing.T) {
	dir := t.TempDir()
	cfg := createTestFile(t, dir, "mapping.toml", testMapping)
	in := createTestFile(t, dir, "hello.xml", "<doc><p>Hello</p></doc>")
	createTestFile(t, dir, "blocker", "not a directory")

	cmd := &ConvertCmd{
		Config:    cfg,
		Out:       filepath.Join(dir, "store.json"),
		SQLite:    filepath.Join(dir, "store.sqlite"),
		TextDir:   filepath.Join(dir, "blocker", "texts"),
		InputFile: []string{in},
		Jobs:      1,
		StoreID:   "s",
	}
	if err := cmd.Run(&Globals{}); err == nil {
		t.Fatal("Run should fail when the text directory cannot be created")
	}
	for _, name := range []string{cmd.Out, cmd.SQLite} {
		if _, err := os.Stat(name); !os.IsNotExist(err) {
			t.Errorf("%s written despite the failed run", filepath.Base(name))
		}
	}
	staged, _ := filepath.Glob(filepath.Join(dir, ".staged-*"))
	if len(staged) != 0 {
		t.Errorf("staged leftovers: %v", staged)
	}
}

func TestCheckCmd_Run(t *testing.T) {
	dir := t.TempDir()
	buf := captureStdout(t)
	cfg := createTestFile(t, dir, "mapping.toml", testMapping)
	if err := (&CheckCmd{Config: cfg}).Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"OK", "Rules: 1", "//p", "TextSelector", "Namespace xml"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	broken := createTestFile(t, dir, "broken.toml", "[[elements]]\npath = \"//p\"\nbase = [\"missing\"]\n")
	if err := (&CheckCmd{Config: broken}).Run(); !errors.Is(err, errors.ErrConfig) {
		t.Errorf("broken config err = %v", err)
	}
}

func TestInfoAndViewCmd(t *testing.T) {
	dir := t.TempDir()
	cfg := createTestFile(t, dir, "mapping.toml", testMapping)
	in := createTestFile(t, dir, "hello.xml", "<doc><p>Hello</p><p>World</p></doc>")
	out := filepath.Join(dir, "store.json")
	if err := (&ConvertCmd{Config: cfg, Out: out, Inputs: []string{in}, Jobs: 1, StoreID: "demo"}).Run(&Globals{}); err != nil {
		t.Fatalf("convert: %v", err)
	}

	buf := captureStdout(t)
	if err := (&InfoCmd{Store: out}).Run(); err != nil {
		t.Fatalf("info: %v", err)
	}
	for _, want := range []string{"Store: demo", "Resources: 1", "Annotations: 2", "Data: 2 (1 sets, 1 keys)", "hello: 12 characters, 2 annotations"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("info output missing %q:\n%s", want, buf.String())
		}
	}

	buf.Reset()
	old := color.NoColor
	t.Cleanup(func() { color.NoColor = old })
	if err := (&ViewCmd{Store: out, NoColor: true}).Run(); err != nil {
		t.Fatalf("view: %v", err)
	}
	want := "== hello ==\nHello\nWorld\n- hello[0:5] type=paragraph\n- hello[6:11] type=paragraph\n"
	if buf.String() != want {
		t.Errorf("view output = %q, want %q", buf.String(), want)
	}

	if err := (&ViewCmd{Store: out, Resource: "nope", NoColor: true}).Run(); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("unknown resource err = %v", err)
	}
}

func TestVersionCmd_Run(t *testing.T) {
	buf := captureStdout(t)
	if err := (&VersionCmd{}).Run(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), version) {
		t.Errorf("output = %q", buf.String())
	}
}
