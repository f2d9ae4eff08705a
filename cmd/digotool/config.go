package main

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// projectConfig is digotool's on-disk project format, grounded on
// vovakirdan-surge's surge.toml (package/run tables) and generalized to
// a pipeline's own inputs: a set of source globs, a destination
// directory, and the ambient knobs digo.Config exposes.
type projectConfig struct {
	Pipeline pipelineConfig `toml:"pipeline"`
	Watch    watchConfig    `toml:"watch"`
	Server   serverConfig   `toml:"server"`
}

type pipelineConfig struct {
	Src       []string `toml:"src"`
	Ignore    []string `toml:"ignore"`
	Dest      string   `toml:"dest"`
	Overwrite bool     `toml:"overwrite"`
	SourceMap bool     `toml:"source_map"`
	Encoding  string   `toml:"encoding"`
}

type watchConfig struct {
	DebounceMS int    `toml:"debounce_ms"`
	StateFile  string `toml:"state_file"`
	LogFile    string `toml:"log_file"`
	LogMaxMB   int    `toml:"log_max_mb"`
	LogBackups int    `toml:"log_backups"`
}

type serverConfig struct {
	Addr string `toml:"addr"`
}

func loadProjectConfig(path string) (*projectConfig, error) {
	var cfg projectConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("load project config %s: %w", path, err)
	}
	if len(cfg.Pipeline.Src) == 0 {
		return nil, fmt.Errorf("%s: pipeline.src must name at least one glob", path)
	}
	return &cfg, nil
}
