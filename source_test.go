package digo

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"shanhu.io/digo/internal/asyncqueue"
	"shanhu.io/digo/internal/pathmatch"
)

func writeTempFile(t *testing.T, dir, name, content string) {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestSrcWalksMatchingFilesIntoRootList(t *testing.T) {
	dir := t.TempDir()
	writeTempFile(t, dir, "a.txt", "hello")
	writeTempFile(t, dir, "sub/b.txt", "world")
	writeTempFile(t, dir, "c.bin", "skip")

	cfg := DefaultConfig()
	queue := asyncqueue.New()
	m := pathmatch.New(dir, pathmatch.Glob(filepath.Join(dir, "**/*.txt")))

	root := Src(cfg, NopObserver{}, queue, nil, m)

	var got []*File
	root.Pipe(&Processor{
		Name: "collect",
		Add: AddSync(func(f *File, _ interface{}, _, _ *FileList) bool {
			got = append(got, f)
			return true
		}),
	}, nil)

	select {
	case <-queue.Promise():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for queue to drain")
	}

	if len(got) != 2 {
		names := make([]string, len(got))
		for i, f := range got {
			names[i] = f.Name()
		}
		t.Fatalf("got %d files %v, want 2", len(got), names)
	}
}

func TestSrcWithNoBasesClosesImmediately(t *testing.T) {
	cfg := DefaultConfig()
	queue := asyncqueue.New()
	m := pathmatch.New("")

	root := Src(cfg, NopObserver{}, queue, nil, m)

	done := make(chan struct{})
	root.OnEnd(func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("root list never closed")
	}
}

func TestPipeDestWritesFilesToDirectory(t *testing.T) {
	srcDir := t.TempDir()
	destDir := t.TempDir()
	writeTempFile(t, srcDir, "a.txt", "hello")

	cfg := DefaultConfig()
	queue := asyncqueue.New()
	m := pathmatch.New(srcDir, pathmatch.Glob(filepath.Join(srcDir, "*.txt")))

	root := Src(cfg, NopObserver{}, queue, nil, m)
	root.Dest(Str(destDir))

	select {
	case <-queue.Promise():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for queue to drain")
	}

	data, err := os.ReadFile(filepath.Join(destDir, "a.txt"))
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("got %q, want %q", data, "hello")
	}
}

func TestCloneProcessorForwardsDuplicate(t *testing.T) {
	srcDir := t.TempDir()
	writeTempFile(t, srcDir, "a.txt", "hello")

	cfg := DefaultConfig()
	queue := asyncqueue.New()
	m := pathmatch.New(srcDir, pathmatch.Glob(filepath.Join(srcDir, "*.txt")))

	root := Src(cfg, NopObserver{}, queue, nil, m)

	var originals, clones []*File
	observed := root.Pipe(&Processor{
		Add: AddSync(func(f *File, _ interface{}, _, _ *FileList) bool {
			originals = append(originals, f)
			return true
		}),
	}, nil)
	observed.Clone().Pipe(&Processor{
		Add: AddSync(func(f *File, _ interface{}, _, _ *FileList) bool {
			clones = append(clones, f)
			return true
		}),
	}, nil)

	select {
	case <-queue.Promise():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for queue to drain")
	}

	if len(originals) != 1 || len(clones) != 1 {
		t.Fatalf("originals=%d clones=%d, want 1,1", len(originals), len(clones))
	}
	if originals[0] == clones[0] {
		t.Fatal("clone should be a distinct File from the original")
	}
}
