package digo

import (
	"testing"
	"time"

	"shanhu.io/digo/internal/asyncqueue"
)

func TestBuildStatsResetZeroesCounters(t *testing.T) {
	s := NewBuildStats()
	s.AddFile()
	s.AddFile()
	s.AddTask()
	s.Reset()
	sum := s.Summary("status")
	if sum.Files != 0 || sum.Tasks != 0 {
		t.Fatalf("Reset: got %+v, want zeroed counters", sum)
	}
}

func TestBuildStatsRecordTalliesFileCounts(t *testing.T) {
	s := NewBuildStats()
	f := NewFile(nil, nil, "", "", "a.txt")
	f.Error("boom")
	f.Warning("careful")
	s.Record(f)
	sum := s.Summary("status")
	if sum.Errors != 1 || sum.Warnings != 1 {
		t.Fatalf("Record: got %+v", sum)
	}
}

func TestRunBuildModeReturnsSuccessSummary(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BuildMode = ModeBuild
	queue := asyncqueue.New()
	stats := NewBuildStats()

	ran := false
	s := Run(cfg, queue, stats, nil, nil, func() { ran = true }, nil)
	if !ran {
		t.Fatal("expected task to run")
	}
	if s.Status != "Build success" {
		t.Fatalf("Status = %q, want %q", s.Status, "Build success")
	}
}

func TestRunCleanModeReturnsCleanSummary(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BuildMode = ModeClean
	queue := asyncqueue.New()
	stats := NewBuildStats()

	s := Run(cfg, queue, stats, nil, nil, func() {}, nil)
	if s.Status != "Clean completed" {
		t.Fatalf("Status = %q, want %q", s.Status, "Clean completed")
	}
}

func TestRunWatchModeStaysResident(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BuildMode = ModeWatch
	queue := asyncqueue.New()
	stats := NewBuildStats()

	reports := make(chan Summary, 4)
	go Run(cfg, queue, stats, nil, nil, func() {}, func(s Summary) {
		reports <- s
	})

	select {
	case s := <-reports:
		if s.Status != "Start watching" {
			t.Fatalf("Status = %q, want %q", s.Status, "Start watching")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the initial watch summary")
	}
}
