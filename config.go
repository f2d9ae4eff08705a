package digo

// BuildMode selects one of the five ways a task can be run (spec.md 4.10,
// 6). Grounded on the corpus's enum-over-dynamic-dispatch style; the
// teacher keeps a similar small fixed vocabulary for its own build rule
// kinds in build_node.go.
type BuildMode int

// Recognized build modes.
const (
	ModeBuild BuildMode = iota
	ModeClean
	ModePreview
	ModeWatch
	ModeServer
)

func (m BuildMode) String() string {
	switch m {
	case ModeBuild:
		return "build"
	case ModeClean:
		return "clean"
	case ModePreview:
		return "preview"
	case ModeWatch:
		return "watch"
	case ModeServer:
		return "server"
	default:
		return "unknown"
	}
}

// BoolOpt is a boolean option that is either a constant or computed per
// file. This is the tagged Const/Computed variant the redesign calls
// for in place of a bare "value or callback" union.
type BoolOpt struct {
	value    bool
	computed func(f *File) bool
}

// Bool wraps a constant boolean option.
func Bool(v bool) BoolOpt { return BoolOpt{value: v} }

// BoolFunc wraps a per-file boolean option.
func BoolFunc(fn func(f *File) bool) BoolOpt { return BoolOpt{computed: fn} }

// Resolve returns the option's value for f.
func (o BoolOpt) Resolve(f *File) bool {
	if o.computed != nil {
		return o.computed(f)
	}
	return o.value
}

// StringOpt is a string option that is either a constant or computed per
// file, mirroring BoolOpt.
type StringOpt struct {
	value    string
	computed func(f *File) string
}

// Str wraps a constant string option.
func Str(v string) StringOpt { return StringOpt{value: v} }

// StrFunc wraps a per-file string option.
func StrFunc(fn func(f *File) string) StringOpt { return StringOpt{computed: fn} }

// Resolve returns the option's value for f.
func (o StringOpt) Resolve(f *File) string {
	if o.computed != nil {
		return o.computed(f)
	}
	return o.value
}

// Config is the subset of build-script configuration the core reads
// (spec.md 6). The script loader that produces one is out of scope; a
// build script author (or cmd/digotool) constructs this directly.
type Config struct {
	BuildMode BuildMode

	// Encoding names the default text encoding ("utf-8", "utf-16le", …).
	// EncodingFunc, when set, overrides it per file.
	Encoding     string
	EncodingFunc func(f *File) string

	Overwrite BoolOpt

	Filter     []string
	Ignore     []string
	IgnoreFile string

	SourceMap                      BoolOpt
	SourceMapInline                BoolOpt
	SourceMapEmit                   BoolOpt
	SourceMapRoot                   string
	SourceMapIncludeSourcesContent BoolOpt
	SourceMapIncludeFile           BoolOpt
	SourceMapIncludeNames           BoolOpt

	Progress bool
	Report   bool
	LogLevel LogLevel
	Silent   bool
	Colors   bool
	FullPath bool
}

// DefaultConfig returns the configuration a bare `build` invocation uses.
func DefaultConfig() *Config {
	return &Config{
		BuildMode: ModeBuild,
		Encoding:  "utf-8",
		SourceMapEmit: Bool(true),
		LogLevel:      LevelLog,
	}
}

func (c *Config) encodingFor(f *File) string {
	if c.EncodingFunc != nil {
		if e := c.EncodingFunc(f); e != "" {
			return e
		}
	}
	if c.Encoding != "" {
		return c.Encoding
	}
	return "utf-8"
}
