package main

import (
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"shanhu.io/digo"
	"shanhu.io/digo/internal/asyncqueue"
	"shanhu.io/digo/internal/devserver"
	"shanhu.io/digo/internal/watchstate"
)

// setUpLogFile routes the process's log output to a size-rotated file
// for long-running watch/server sessions, so a multi-day watch doesn't
// leave an unbounded log on disk. No-op when the project config does
// not name a log file.
func setUpLogFile(pc *projectConfig) {
	if pc.Watch.LogFile == "" {
		return
	}
	maxMB := pc.Watch.LogMaxMB
	if maxMB <= 0 {
		maxMB = 20
	}
	log.SetOutput(&lumberjack.Logger{
		Filename:   pc.Watch.LogFile,
		MaxSize:    maxMB,
		MaxBackups: pc.Watch.LogBackups,
	})
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the pipeline, then keep rebuilding on filesystem changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWatch(cmd, nil)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the pipeline under a dev server with watch-triggered live reload",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd)
	},
}

func runWatch(cmd *cobra.Command, srv *devserver.Server) error {
	pc, silent, noColor, err := loadConfigFromFlags(cmd)
	if err != nil {
		return err
	}
	setUpLogFile(pc)

	cwd, err := filepath.Abs(".")
	if err != nil {
		return fmt.Errorf("resolve cwd: %w", err)
	}

	mode := digo.ModeWatch
	if srv != nil {
		mode = digo.ModeServer
	}
	cfg := buildDigoConfig(pc, mode, silent, noColor)
	queue := asyncqueue.New()
	stats := digo.NewBuildStats()
	reporter := digo.NewReporter(cfg, stats)

	debounce := time.Duration(pc.Watch.DebounceMS) * time.Millisecond
	w, err := digo.NewWatcher(queue, stats, debounce)
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	defer w.Close()

	if pc.Watch.StateFile != "" {
		store, err := watchstate.Open(pc.Watch.StateFile)
		if err != nil {
			return fmt.Errorf("open watch state: %w", err)
		}
		defer store.Close()
		if err := w.UsePersistedState(store, cwd); err != nil {
			return fmt.Errorf("load watch state: %w", err)
		}
	}

	if srv != nil {
		w.OnRebuild(func(changed, deleted []string) { srv.NotifyReload() })
	}

	m := buildMatcher(cwd, pc.Pipeline.Src)
	ignore := buildIgnoreMatcher(cwd, pc.Pipeline.Ignore)

	var devSrv digo.DevServer
	var obs digo.Observer = reporter
	if srv != nil {
		devSrv = srv
		obs = digo.NewSinkObserver(reporter, srv)
	}

	summary := digo.Run(cfg, queue, stats, w, devSrv, func() {
		root := w.Watch(cfg, obs, ignore, m)
		root.Dest(digo.Str(pc.Pipeline.Dest))
	}, func(s digo.Summary) {
		reporter.PrintSummary(s)
	})

	fmt.Println(clampSummaryLine(summary.String(), progressWidth()))
	return nil
}

func runServe(cmd *cobra.Command) error {
	pc, _, _, err := loadConfigFromFlags(cmd)
	if err != nil {
		return err
	}
	srv := devserver.New(pc.Server.Addr)
	return runWatch(cmd, srv)
}
