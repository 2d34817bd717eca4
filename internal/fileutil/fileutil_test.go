package fileutil

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteFileAtomic(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "nested", "out.txt")

	if err := WriteFileAtomic(path, []byte("Hello, World!"), 0644); err != nil {
		t.Fatalf("WriteFileAtomic failed: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read output: %v", err)
	}
	if string(got) != "Hello, World!" {
		t.Errorf("content mismatch: got %q", got)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0644 {
		t.Errorf("perm = %v, want 0644", info.Mode().Perm())
	}
}

func TestWriteAtomic_FailureKeepsOriginal(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "out.txt")
	if err := os.WriteFile(path, []byte("original"), 0644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	boom := errors.New("boom")
	err := WriteAtomic(path, 0644, func(w io.Writer) error {
		w.Write([]byte("partial"))
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}

	got, _ := os.ReadFile(path)
	if string(got) != "original" {
		t.Errorf("original overwritten: %q", got)
	}

	entries, _ := os.ReadDir(tempDir)
	if len(entries) != 1 {
		t.Errorf("temp file left behind: %d entries", len(entries))
	}
}

func TestWriteAtomic_RenameError(t *testing.T) {
	orig := osRename
	defer func() { osRename = orig }()
	osRename = func(string, string) error { return errors.New("rename failed") }

	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "out.txt")
	if err := WriteFileAtomic(path, []byte("x"), 0644); err == nil {
		t.Fatal("expected rename error")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("output should not exist after failed rename")
	}
	entries, _ := os.ReadDir(tempDir)
	if len(entries) != 0 {
		t.Errorf("temp file left behind: %d entries", len(entries))
	}
}

func TestCommit(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "store.db")

	if err := os.WriteFile(TempPath(path), []byte("db"), 0644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := Commit(path); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if _, err := os.Stat(TempPath(path)); !os.IsNotExist(err) {
		t.Error("partial file should be gone")
	}
	got, _ := os.ReadFile(path)
	if string(got) != "db" {
		t.Errorf("content = %q", got)
	}
}

func TestStage_Commit(t *testing.T) {
	tempDir := t.TempDir()
	out := filepath.Join(tempDir, "store.json.xz")
	texts := filepath.Join(tempDir, "texts")
	if err := os.MkdirAll(texts, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(texts, "old.txt"), []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}

	var stage Stage
	staged := stage.Path(out)
	if filepath.Ext(staged) != ".xz" || filepath.Dir(staged) != tempDir {
		t.Errorf("staged path %q should keep the suffix and directory", staged)
	}
	if err := WriteFileAtomic(staged, []byte("store"), 0644); err != nil {
		t.Fatal(err)
	}
	stagedTexts := stage.Path(texts)
	if err := WriteFileAtomic(filepath.Join(stagedTexts, "a.txt"), []byte("a"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatal("output must not exist before Commit")
	}

	if err := stage.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if got, _ := os.ReadFile(out); string(got) != "store" {
		t.Errorf("store = %q", got)
	}
	for _, name := range []string{"a.txt", "old.txt"} {
		if _, err := os.Stat(filepath.Join(texts, name)); err != nil {
			t.Errorf("%s missing after merge: %v", name, err)
		}
	}
	for _, p := range []string{staged, stagedTexts} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("staged path %s left behind", p)
		}
	}
}

func TestStage_Abort(t *testing.T) {
	tempDir := t.TempDir()
	out := filepath.Join(tempDir, "store.json")

	var stage Stage
	if err := WriteFileAtomic(stage.Path(out), []byte("store"), 0644); err != nil {
		t.Fatal(err)
	}
	stage.Abort()

	entries, _ := os.ReadDir(tempDir)
	if len(entries) != 0 {
		t.Errorf("directory not empty after Abort: %d entries", len(entries))
	}
}

func TestStage_CommitRenameError(t *testing.T) {
	tempDir := t.TempDir()
	var stage Stage
	for _, name := range []string{"a.json", "b.db"} {
		if err := WriteFileAtomic(stage.Path(filepath.Join(tempDir, name)), []byte(name), 0644); err != nil {
			t.Fatal(err)
		}
	}

	orig := osRename
	defer func() { osRename = orig }()
	osRename = func(string, string) error { return errors.New("rename failed") }

	if err := stage.Commit(); err == nil {
		t.Fatal("expected rename error")
	}
	entries, _ := os.ReadDir(tempDir)
	if len(entries) != 0 {
		t.Errorf("staged files left behind: %d entries", len(entries))
	}
}
