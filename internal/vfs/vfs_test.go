package vfs

import (
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"
)

func TestWriteFileCreatesParentDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "deeper", "out.txt")

	if err := WriteFile(path, []byte("hello"), 0644, Options{}); err != nil {
		t.Fatal(err)
	}
	got, err := ReadFile(path, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello" {
		t.Fatalf("got %q", got)
	}
}

func TestAppendFileCreatesFileAndParent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "log.txt")

	if err := AppendFile(path, []byte("a"), 0644, Options{}); err != nil {
		t.Fatal(err)
	}
	if err := AppendFile(path, []byte("b"), 0644, Options{}); err != nil {
		t.Fatal(err)
	}
	got, err := ReadFile(path, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "ab" {
		t.Fatalf("got %q, want ab", got)
	}
}

func TestCopyFileCreatesParentDir(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	if err := os.WriteFile(src, []byte("data"), 0644); err != nil {
		t.Fatal(err)
	}
	dst := filepath.Join(dir, "a", "b", "dst.txt")

	if err := CopyFile(src, dst, Options{}); err != nil {
		t.Fatal(err)
	}
	got, err := ReadFile(dst, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "data" {
		t.Fatalf("got %q", got)
	}
}

func TestDeleteFileIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gone.txt")
	if err := DeleteFile(path, Options{}); err != nil {
		t.Fatalf("deleting a missing file should not error: %v", err)
	}
}

func TestStatNotFound(t *testing.T) {
	dir := t.TempDir()
	_, err := Stat(filepath.Join(dir, "missing"), Options{})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestWalkVisitsFilesAndPrunesDir(t *testing.T) {
	dir := t.TempDir()
	mustWrite := func(rel string) {
		p := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	mustWrite("a.txt")
	mustWrite("keep/b.txt")
	mustWrite("skip/c.txt")

	var files []string
	ended := false
	err := Walk(dir, WalkCallbacks{
		OnDir: func(path string, info os.FileInfo) (bool, error) {
			return filepath.Base(path) != "skip", nil
		},
		OnFile: func(path string, info os.FileInfo) error {
			rel, _ := filepath.Rel(dir, path)
			files = append(files, filepath.ToSlash(rel))
			return nil
		},
		OnEnd: func() error {
			ended = true
			return nil
		},
	}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !ended {
		t.Error("expected OnEnd to run")
	}
	want := map[string]bool{"a.txt": true, "keep/b.txt": true}
	if len(files) != len(want) {
		t.Fatalf("files = %v, want keys of %v", files, want)
	}
	for _, f := range files {
		if !want[f] {
			t.Errorf("unexpected file %q visited (skip/ should have been pruned)", f)
		}
	}
}

func TestWalkAsyncReportsCompletion(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	done := make(chan error, 1)
	WalkAsync(dir, WalkCallbacks{}, Options{}, func(err error) { done <- err })
	if err := <-done; err != nil {
		t.Fatal(err)
	}
}

func TestRetryGivesUpAfterTryCount(t *testing.T) {
	attempts := 0
	err := withRetry(Options{TryCount: 3, Backoff: time.Millisecond}, func() error {
		attempts++
		return syscall.EBUSY
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 3 {
		t.Fatalf("transient error should retry up to TryCount, got %d attempts", attempts)
	}
}

func TestRetryStopsOnNonTransientError(t *testing.T) {
	attempts := 0
	err := withRetry(Options{TryCount: 3, Backoff: time.Millisecond}, func() error {
		attempts++
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Fatalf("non-transient error should not retry, got %d attempts", attempts)
	}
}
