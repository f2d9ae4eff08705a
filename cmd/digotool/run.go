package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"shanhu.io/digo"
	"shanhu.io/digo/internal/asyncqueue"
	"shanhu.io/digo/internal/pathmatch"
)

// buildMatcher compiles one of a projectConfig's glob lists into a
// matcher: the include list becomes Src's match matcher, and
// buildIgnoreMatcher uses it for the ignore list.
func buildMatcher(cwd string, globs []string) *pathmatch.Matcher {
	pats := make([]pathmatch.Pattern, len(globs))
	for i, g := range globs {
		pats[i] = pathmatch.Glob(g)
	}
	return pathmatch.New(cwd, pats...)
}

// buildIgnoreMatcher is buildMatcher's counterpart for the optional
// ignore list: an empty ignore list must mean "nothing is ignored", but
// a zero-include Matcher means the opposite ("everything included", see
// Matcher.Test) when passed as Src's match matcher. Returning nil here
// keeps source.go's ignored() short-circuit (nil ignore => never
// ignored) instead of building a matcher that would match every path.
func buildIgnoreMatcher(cwd string, globs []string) *pathmatch.Matcher {
	if len(globs) == 0 {
		return nil
	}
	return buildMatcher(cwd, globs)
}

func buildDigoConfig(pc *projectConfig, mode digo.BuildMode, silent, noColor bool) *digo.Config {
	cfg := digo.DefaultConfig()
	cfg.BuildMode = mode
	cfg.Overwrite = digo.Bool(pc.Pipeline.Overwrite)
	cfg.SourceMapEmit = digo.Bool(pc.Pipeline.SourceMap)
	if pc.Pipeline.Encoding != "" {
		cfg.Encoding = pc.Pipeline.Encoding
	}
	cfg.Silent = silent
	cfg.Colors = !noColor
	cfg.FullPath = false
	return cfg
}

// progressWidth reports the terminal width digotool wraps its one-line
// progress/summary output to, falling back to 80 columns when stdout
// isn't a terminal (piped into a log file, CI, etc).
func progressWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return 80
	}
	return w
}

func clampSummaryLine(s string, width int) string {
	if len(s) <= width || width <= 1 {
		return s
	}
	return s[:width-1] + "…"
}

// runOnce wires a Src/Dest pipeline under the given build mode and runs
// it to completion (build/clean/preview all share this shape; only the
// mode differs).
func runOnce(cmd *cobra.Command, mode digo.BuildMode) error {
	pc, silent, noColor, err := loadConfigFromFlags(cmd)
	if err != nil {
		return err
	}

	cwd, err := filepath.Abs(".")
	if err != nil {
		return fmt.Errorf("resolve cwd: %w", err)
	}

	cfg := buildDigoConfig(pc, mode, silent, noColor)
	queue := asyncqueue.New()
	stats := digo.NewBuildStats()
	reporter := digo.NewReporter(cfg, stats)

	m := buildMatcher(cwd, pc.Pipeline.Src)
	ignore := buildIgnoreMatcher(cwd, pc.Pipeline.Ignore)

	summary := digo.Run(cfg, queue, stats, nil, nil, func() {
		digo.Src(cfg, reporter, queue, ignore, m).Dest(digo.Str(pc.Pipeline.Dest))
	}, func(s digo.Summary) {
		reporter.PrintSummary(s)
	})

	fmt.Println(clampSummaryLine(summary.String(), progressWidth()))
	return nil
}

func loadConfigFromFlags(cmd *cobra.Command) (*projectConfig, bool, bool, error) {
	path, _ := cmd.Flags().GetString("config")
	silent, _ := cmd.Flags().GetBool("silent")
	noColor, _ := cmd.Flags().GetBool("no-color")
	pc, err := loadProjectConfig(path)
	if err != nil {
		return nil, false, false, err
	}
	return pc, silent, noColor, nil
}
