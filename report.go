package digo

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"shanhu.io/digo/internal/sourcemap"
)

var (
	reportErrorColor   = color.New(color.FgRed, color.Bold)
	reportWarningColor = color.New(color.FgYellow)
	reportFileColor    = color.New(color.FgCyan)
	reportOKColor      = color.New(color.FgGreen, color.Bold)
)

// Reporter is the default Observer implementation the engine ships so a
// build is runnable without a script author supplying their own sink
// (spec.md 6, "progress/report/logLevel/silent/colors/fullPath"). It
// embeds NopObserver so only the hooks that produce output need
// overriding.
type Reporter struct {
	NopObserver

	cfg   *Config
	stats *BuildStats
}

// NewReporter creates a Reporter honoring cfg's colors/silent/logLevel
// knobs and tallying into stats as files are observed.
func NewReporter(cfg *Config, stats *BuildStats) *Reporter {
	return &Reporter{cfg: cfg, stats: stats}
}

func (r *Reporter) colorsEnabled() bool {
	return r.cfg == nil || r.cfg.Colors
}

func (r *Reporter) silent() bool { return r.cfg != nil && r.cfg.Silent }

func (r *Reporter) logLevel() LogLevel {
	if r.cfg == nil {
		return LevelLog
	}
	return r.cfg.LogLevel
}

func (r *Reporter) displayPath(f *File) string {
	if r.cfg != nil && r.cfg.FullPath {
		return f.DestPath()
	}
	return f.Name()
}

// AddFile tallies the file into stats and, unless silent, prints its
// path at verbose level.
func (r *Reporter) AddFile(f *File) {
	if r.stats != nil {
		r.stats.AddFile()
	}
	if r.silent() || r.logLevel() > LevelVerbose {
		return
	}
	r.printf(reportFileColor, "+ %s\n", r.displayPath(f))
}

// FileSave tallies the file's accumulated error/warning counts into
// stats as it reaches the terminal Dest stage, then allows the save to
// proceed (spec.md 4.10's summary needs real counts, not just the file
// tally AddFile already provides).
func (r *Reporter) FileSave(f *File) bool {
	if r.stats != nil {
		r.stats.Record(f)
	}
	return true
}

// FileLog prints entry per its severity, gated by cfg's logLevel/silent.
func (r *Reporter) FileLog(f *File, entry *LogEntry) {
	if r.silent() || entry.Level < r.logLevel() {
		return
	}
	c := color.New()
	prefix := entry.Level.String()
	switch entry.Level {
	case LevelError:
		c = reportErrorColor
	case LevelWarning:
		c = reportWarningColor
	}
	loc := r.displayPath(f)
	if entry.Region != nil {
		loc = fmt.Sprintf("%s:%d:%d", loc, entry.Region.StartLine, entry.Region.StartCol)
	}
	msg := fmt.Sprintf(entry.Message, entry.Args...)
	r.printf(c, "[%s] %s: %s\n", prefix, loc, msg)
}

// SourceMapValidate rejects a missing (nil) map loudly. Maps of another
// version or of the indexed kind never get this far: sourcemap.Parse
// already refuses them (spec.md 7, "Source-map version/kind unsupported").
func (r *Reporter) SourceMapValidate(f *File, m *sourcemap.Map) bool {
	ok := m != nil
	if !ok && !r.silent() {
		r.printf(reportErrorColor, "[error] %s: unsupported source map\n", r.displayPath(f))
	}
	return ok
}

// PrintSummary renders s the way Run's report callback is expected to.
func (r *Reporter) PrintSummary(s Summary) {
	if r.silent() {
		return
	}
	c := reportOKColor
	if s.Errors > 0 {
		c = reportErrorColor
	}
	r.printf(c, "%s\n", s.String())
}

func (r *Reporter) printf(c *color.Color, format string, args ...interface{}) {
	if !r.colorsEnabled() {
		fmt.Fprintf(os.Stdout, format, args...)
		return
	}
	c.Fprintf(os.Stdout, format, args...)
}
