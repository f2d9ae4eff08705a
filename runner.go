package digo

import (
	"fmt"
	"sync"
	"time"

	"shanhu.io/digo/internal/asyncqueue"
)

// BuildStats aggregates the counters spec.md 4.9's rebuild step resets
// and spec.md 4.10's summary reports: error count, warning count, file
// count, task count and elapsed time. Grounded on the teacher's
// Builder.Build, which returns and tallies a run's accumulated
// *lexing.Error list; generalized here to a live counter a long-running
// watch/server process resets on every rebuild rather than a one-shot
// return value.
type BuildStats struct {
	mu sync.Mutex

	errors   int
	warnings int
	files    int
	tasks    int

	startedAt time.Time
}

// NewBuildStats creates a zeroed, running BuildStats.
func NewBuildStats() *BuildStats {
	return &BuildStats{startedAt: now()}
}

// Reset zeroes every counter and restarts the elapsed-time clock,
// called at the start of a build and on every watcher rebuild.
func (s *BuildStats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors, s.warnings, s.files, s.tasks = 0, 0, 0, 0
	s.startedAt = now()
}

// AddFile records one file observed in the current run.
func (s *BuildStats) AddFile() {
	s.mu.Lock()
	s.files++
	s.mu.Unlock()
}

// AddTask records one task invocation in the current run.
func (s *BuildStats) AddTask() {
	s.mu.Lock()
	s.tasks++
	s.mu.Unlock()
}

// Record tallies one File's accumulated error/warning counts (spec.md
// 4.4) into the run total. Call once per File as it reaches a terminal
// pipeline stage.
func (s *BuildStats) Record(f *File) {
	s.mu.Lock()
	s.errors += f.Errors()
	s.warnings += f.Warnings()
	s.mu.Unlock()
}

// Summary snapshots the current counters under the given status label.
func (s *BuildStats) Summary(status string) Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Summary{
		Errors:   s.errors,
		Warnings: s.warnings,
		Files:    s.files,
		Tasks:    s.tasks,
		Elapsed:  now().Sub(s.startedAt),
		Status:   status,
	}
}

// now is the single indirection point for the runner's timestamps, kept
// as a package var so tests can override it.
var now = time.Now

// Summary is the aggregated report spec.md 4.10 requires after every
// queue drain.
type Summary struct {
	Errors   int
	Warnings int
	Files    int
	Tasks    int
	Elapsed  time.Duration
	Status   string
}

// String renders the summary the way the default Observer prints it.
func (s Summary) String() string {
	return fmt.Sprintf("%s (%d file(s), %d error(s), %d warning(s), %s)",
		s.Status, s.Files, s.Errors, s.Warnings, s.Elapsed.Round(time.Millisecond))
}

// DevServer is the minimal surface the runner needs from a dev-server
// implementation (internal/devserver.Server satisfies it). Run only
// starts it and reports its URL in server mode; saves reach it as a
// SaveSink through an observer built with NewSinkObserver.
type DevServer interface {
	SaveSink
	Start() error
	URL() string
}

// Run selects one of the three execution modes spec.md 4.10 describes
// based on cfg.BuildMode and invokes task. For watch and server modes it
// blocks indefinitely after the initial build/start completes — "stay
// resident reacting to events" — so it returns for build/clean/preview
// once the task's pipeline has drained, and in server mode only when the
// dev server fails to start. report, if non-nil, is
// called with every summary emitted along the way, including the one
// emitted after each watch-mode rebuild.
func Run(cfg *Config, queue *asyncqueue.Queue, stats *BuildStats, w *Watcher, srv DevServer, task func(), report func(Summary)) Summary {
	stats.Reset()
	stats.AddTask()

	switch cfg.BuildMode {
	case ModeWatch:
		if w != nil {
			w.OnRebuild(func(changed, deleted []string) {
				emit(stats.Summary("Start watching"), report)
			})
		}
		task()
		<-queue.Promise()
		s := stats.Summary("Start watching")
		emit(s, report)
		select {} // stay resident; the watcher drives all further work

	case ModeServer:
		if srv != nil {
			if err := srv.Start(); err != nil {
				s := stats.Summary(fmt.Sprintf("server failed to start: %v", err))
				emit(s, report)
				return s
			}
		}
		task()
		<-queue.Promise()
		status := "Server running"
		if srv != nil {
			status = "Server running at " + srv.URL()
		}
		s := stats.Summary(status)
		emit(s, report)
		select {} // stay resident; the server keeps running until the process exits

	default:
		queue.Enqueue(task)
		<-queue.Promise()
		s := stats.Summary(statusFor(cfg.BuildMode, stats))
		emit(s, report)
		return s
	}
}

func statusFor(mode BuildMode, stats *BuildStats) string {
	switch mode {
	case ModeBuild:
		stats.mu.Lock()
		errs := stats.errors
		stats.mu.Unlock()
		if errs > 0 {
			return "Build completed (with errors)"
		}
		return "Build success"
	case ModeClean:
		return "Clean completed"
	case ModePreview:
		return "Preview completed"
	default:
		return "Done"
	}
}

func emit(s Summary, report func(Summary)) {
	if report != nil {
		report(s)
	}
}
