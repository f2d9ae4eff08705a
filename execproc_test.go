package digo

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExecProcessorCapturesStdout(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(src, []byte("hello"), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	cfg := DefaultConfig()
	f := NewFile(cfg, nil, src, dir, "a.txt")

	proc := ExecProcessor(func(*File) (string, []string) {
		return "echo", []string{"-n", "exec-ok"}
	}, ExecOptions{CaptureOutput: true})

	done := make(chan bool, 1)
	proc.Add.run(f, nil, nil, nil, func(keep bool) { done <- keep })
	keep := <-done

	if !keep {
		t.Fatal("expected the processor to keep the file")
	}
	if got := f.Content(); got != "exec-ok" {
		t.Fatalf("Content() = %q, want %q", got, "exec-ok")
	}
	if f.Errors() != 0 {
		t.Fatalf("unexpected errors: %d", f.Errors())
	}
}

func TestExecProcessorSkipsEmptyBin(t *testing.T) {
	cfg := DefaultConfig()
	f := NewFile(cfg, nil, "", "/tmp", "gen.txt")

	proc := ExecProcessor(func(*File) (string, []string) {
		return "", nil
	}, ExecOptions{})

	done := make(chan bool, 1)
	proc.Add.run(f, nil, nil, nil, func(keep bool) { done <- keep })
	if !<-done {
		t.Fatal("expected keep=true when bin is empty")
	}
}

func TestExecProcessorRecordsFailureAsError(t *testing.T) {
	cfg := DefaultConfig()
	f := NewFile(cfg, nil, "", "/tmp", "gen.txt")

	proc := ExecProcessor(func(*File) (string, []string) {
		return "false", nil
	}, ExecOptions{})

	done := make(chan bool, 1)
	proc.Add.run(f, nil, nil, nil, func(keep bool) { done <- keep })
	<-done

	if f.Errors() == 0 {
		t.Fatal("expected a failing command to record a file error")
	}
}
