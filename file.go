package digo

import (
	"encoding/base64"
	"path"
	"strings"
	"time"

	"golang.org/x/text/encoding/unicode"
	"shanhu.io/digo/internal/sourcemap"
	"shanhu.io/digo/internal/vfs"
	"shanhu.io/text/lexing"
)

// LogLevel orders the four diagnostic severities File.Log's variants
// funnel into (spec.md 4.4).
type LogLevel int

// Recognized severities, from least to most severe.
const (
	LevelVerbose LogLevel = iota
	LevelLog
	LevelWarning
	LevelError
)

func (l LogLevel) String() string {
	switch l {
	case LevelVerbose:
		return "verbose"
	case LevelLog:
		return "log"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// Region marks a half-open source span a LogEntry refers to.
type Region struct {
	StartLine, StartCol int
	EndLine, EndCol      int
}

// LogEntry is the single diagnostic type every File.Log/Error/Warning/
// Verbose call funnels into (spec.md 4.4).
type LogEntry struct {
	Level   LogLevel
	Message string
	Args    []interface{}
	File    *File
	Region  *Region
	Snippet string
	Err     error

	// PrintStack requests a stack trace be rendered alongside the entry.
	// Nothing in this package sets it, and Reporter does not render one.
	PrintStack bool
}

type depEdge struct {
	path   string
	source *File
}

// File is an in-memory record of one logical artifact flowing through a
// pipeline (spec.md 3, 4.4). Grounded on the teacher's file_stat.go for
// the stat/mtime half and other_examples/evanw-esbuild__input.go's
// InputFile/OutputFile split for the source/target buffer duality.
type File struct {
	initialPath string
	base        string
	name        string
	generated   bool

	cfg      *Config
	observer Observer
	sink     SaveSink

	srcLoaded bool
	srcBuf    []byte
	srcErr    error

	hasTarget  bool
	targetBuf  []byte
	targetText string
	textValid  bool
	modified   bool

	lineIndex []int

	sourceMap *sourcemap.Map

	deps []depEdge
	refs []depEdge

	entries   []*LogEntry
	errCount  int
	warnCount int

	stat   vfsStat
	loadOK bool

	// removed marks a File the watcher synthesized for a path that
	// disappeared from disk (spec.md 4.9, "cleaned for deletes"): the
	// dest processor deletes the prior output instead of writing one,
	// and a collecting stage drops it from the buffer unconditionally.
	removed bool
}

type vfsStat struct {
	valid bool
	size  int64
	mtime time.Time
}

// SaveSink is the in-memory destination Save writes to when the file's
// build mode is server, instead of the filesystem (spec.md 4.4, 4.10).
type SaveSink interface {
	Put(destPath string, data []byte)
}

// NewFile creates a File rooted at base with logical name, with source
// content loadable from initialPath (empty for a generated file).
func NewFile(cfg *Config, obs Observer, initialPath, base, name string) *File {
	return &File{
		initialPath: initialPath,
		base:        base,
		name:        name,
		generated:   initialPath == "",
		cfg:         cfg,
		observer:    obs,
	}
}

// SetSink installs the in-memory save sink used in server mode.
func (f *File) SetSink(s SaveSink) { f.sink = s }

// Path is base+name if name is set, else empty.
func (f *File) Path() string {
	if f.name == "" {
		return ""
	}
	return path.Join(f.base, f.name)
}

// SrcPath is initialPath, or "<generated>" for a generated file.
func (f *File) SrcPath() string {
	if f.initialPath == "" {
		return "<generated>"
	}
	return f.initialPath
}

// DestPath is Path(), falling back to SrcPath() if no logical name was
// ever assigned.
func (f *File) DestPath() string {
	if p := f.Path(); p != "" {
		return p
	}
	return f.SrcPath()
}

// Name is the file's logical, slash-separated relative path.
func (f *File) Name() string { return f.name }

// SetName assigns the logical name, recomputing Path atomically.
func (f *File) SetName(name string) { f.name = path.Clean(strings.ReplaceAll(name, `\`, "/")) }

// Base is the absolute directory anchoring Name.
func (f *File) Base() string { return f.base }

// SetBase reassigns the anchoring directory, recomputing Path.
func (f *File) SetBase(base string) { f.base = base }

// Dir is the logical directory portion of Name.
func (f *File) Dir() string {
	d := path.Dir(f.name)
	if d == "." {
		return ""
	}
	return d
}

// SetDir rewrites Name's directory portion, keeping its basename.
func (f *File) SetDir(dir string) {
	f.SetName(path.Join(dir, path.Base(f.name)))
}

// Ext is Name's extension, including the leading dot.
func (f *File) Ext() string { return path.Ext(f.name) }

// SetExt rewrites Name's extension.
func (f *File) SetExt(ext string) {
	if !strings.HasPrefix(ext, ".") && ext != "" {
		ext = "." + ext
	}
	base := strings.TrimSuffix(path.Base(f.name), path.Ext(f.name))
	f.SetName(path.Join(f.Dir(), base+ext))
}

// Generated reports whether this file has no on-disk source.
func (f *File) Generated() bool { return f.generated }

// Modified reports whether the target slot was written by a processor.
func (f *File) Modified() bool { return f.modified }

// Exists reports whether Load has confirmed a readable source.
func (f *File) Exists() bool { return f.loadOK }

// Removed reports whether the watcher synthesized this File to signal
// that its source path disappeared from disk.
func (f *File) Removed() bool { return f.removed }

func (f *File) encodingName() string {
	if f.cfg == nil {
		return "utf-8"
	}
	return f.cfg.encodingFor(f)
}

// Load ensures the source buffer is present, reading from disk once.
// Subsequent calls are idempotent. A read failure is recorded as a
// file-level error and the file is left with an empty source buffer;
// processing continues (spec.md 4.4).
func (f *File) Load(done func(error)) {
	if f.srcLoaded || f.generated {
		f.srcLoaded = true
		done(nil)
		return
	}
	vfs.ReadFileAsync(f.initialPath, vfs.Options{TryCount: 3}, func(data []byte, err error) {
		f.srcLoaded = true
		if err != nil {
			f.srcErr = err
			f.srcBuf = nil
			f.Error("load %s: %v", f.initialPath, err)
			done(nil)
			return
		}
		f.srcBuf = data
		f.loadOK = true
		done(nil)
	})
}

// Buffer returns whichever of target/source buffer is authoritative:
// the target once modified, else the source (forcing a synchronous load
// if one hasn't happened yet).
func (f *File) Buffer() []byte {
	if f.hasTarget {
		return f.targetBuf
	}
	f.ensureSrcLoadedSync()
	return f.srcBuf
}

// SetBuffer assigns the target buffer directly, marking the file
// modified and invalidating the cached text/line-index views.
func (f *File) SetBuffer(data []byte) {
	f.targetBuf = data
	f.hasTarget = true
	f.modified = true
	f.textValid = false
	f.lineIndex = nil
}

// Content decodes Buffer() through the file's encoding.
func (f *File) Content() string {
	if f.hasTarget && f.textValid {
		return f.targetText
	}
	text := decodeBuffer(f.Buffer(), f.encodingName())
	if f.hasTarget {
		f.targetText = text
		f.textValid = true
	}
	return text
}

// SetContent encodes s through the file's encoding and assigns it as the
// target buffer, marking the file modified.
func (f *File) SetContent(s string) {
	f.targetBuf = encodeText(s, f.encodingName())
	f.targetText = s
	f.textValid = true
	f.hasTarget = true
	f.modified = true
	f.lineIndex = nil
}

// SrcBuffer returns the source buffer, forcing a synchronous load.
func (f *File) SrcBuffer() []byte {
	f.ensureSrcLoadedSync()
	return f.srcBuf
}

// SrcContent decodes SrcBuffer() through the file's encoding.
func (f *File) SrcContent() string {
	return decodeBuffer(f.SrcBuffer(), f.encodingName())
}

func (f *File) ensureSrcLoadedSync() {
	if f.srcLoaded || f.generated {
		f.srcLoaded = true
		return
	}
	done := make(chan struct{})
	f.Load(func(error) { close(done) })
	<-done
}

// SourceMap returns the file's attached map, or nil.
func (f *File) SourceMap() *sourcemap.Map { return f.sourceMap }

// SetSourceMap attaches m, merging it with any map already present
// rather than replacing it (spec.md 3): the new map's output is treated
// as downstream of the existing one and composed through it.
func (f *File) SetSourceMap(m *sourcemap.Map) {
	if f.sourceMap == nil || m == nil {
		f.sourceMap = m
		return
	}
	m.ApplySourceMap(f.sourceMap)
	f.sourceMap = m
}

// Dep records that f should be invalidated whenever the file at path
// changes. The observer's FileDep hook may veto the edge.
func (f *File) Dep(depPath string, source *File) {
	if f.observer != nil && !f.observer.FileDep(f, depPath) {
		return
	}
	f.deps = append(f.deps, depEdge{path: depPath, source: source})
}

// Deps lists the paths f depends on.
func (f *File) Deps() []string {
	out := make([]string, len(f.deps))
	for i, d := range f.deps {
		out[i] = d.path
	}
	return out
}

// Ref records that f's existence depends on path, without forcing a
// rebuild of f when that path changes. The observer's FileRef hook may
// veto the edge.
func (f *File) Ref(refPath string, source *File) {
	if f.observer != nil && !f.observer.FileRef(f, refPath) {
		return
	}
	f.refs = append(f.refs, depEdge{path: refPath, source: source})
}

// Refs lists the paths f references.
func (f *File) Refs() []string {
	out := make([]string, len(f.refs))
	for i, r := range f.refs {
		out[i] = r.path
	}
	return out
}

// Log appends a plain log-level diagnostic.
func (f *File) Log(msg string, args ...interface{}) { f.logAt(LevelLog, nil, msg, args...) }

// Verbose appends a verbose diagnostic.
func (f *File) Verbose(msg string, args ...interface{}) { f.logAt(LevelVerbose, nil, msg, args...) }

// Warning appends a warning diagnostic.
func (f *File) Warning(msg string, args ...interface{}) {
	f.warnCount++
	f.logAt(LevelWarning, nil, msg, args...)
}

// Error appends an error diagnostic.
func (f *File) Error(msg string, args ...interface{}) {
	f.errCount++
	f.logAt(LevelError, nil, msg, args...)
}

// ErrorAt appends an error diagnostic anchored at a generated position,
// rewritten through the file's source map (if any) to the original
// source position before being recorded, per spec.md 4.4.
func (f *File) ErrorAt(r Region, msg string, args ...interface{}) {
	f.errCount++
	f.logAt(LevelError, &r, msg, args...)
}

func (f *File) logAt(level LogLevel, r *Region, msg string, args ...interface{}) {
	entry := &LogEntry{Level: level, Message: msg, Args: args, File: f, Region: r}
	if r != nil && f.sourceMap != nil {
		f.rewriteThroughSourceMap(entry)
	}
	f.entries = append(f.entries, entry)
	if f.observer != nil {
		f.observer.FileLog(f, entry)
	}
}

func (f *File) rewriteThroughSourceMap(entry *LogEntry) {
	pos := f.sourceMap.GetSource(int32(entry.Region.StartLine), int32(entry.Region.StartCol))
	if !pos.Found {
		return
	}
	entry.Region = &Region{StartLine: int(pos.Line), StartCol: int(pos.Column)}
	// The diagnostic now refers to a different logical path; callers that
	// need the substituted File object look it up by SrcPath via the
	// owning FileList, since a bare File has no registry of its siblings.
	entry.Message = msg(entry.Message, pos.Source)
}

func msg(message, srcPath string) string { return message + " (from " + srcPath + ")" }

// Errors reports the accumulated error count.
func (f *File) Errors() int { return f.errCount }

// Warnings reports the accumulated warning count.
func (f *File) Warnings() int { return f.warnCount }

// Entries returns every logged diagnostic in order.
func (f *File) Entries() []*LogEntry { return f.entries }

// Pos returns a lexing.Pos anchored at this file's destination path and
// the given 1-based line/column, for diagnostics that want to print
// through shanhu.io/text/lexing's formatter.
func (f *File) Pos(line, col int) *lexing.Pos {
	return &lexing.Pos{File: f.DestPath(), Line: line, Col: col}
}

// Clone shallow-copies the record, duplicating owned buffers and slices,
// so a collecting stage can retain a stable snapshot while downstream
// stages mutate later copies (spec.md 4.4).
func (f *File) Clone() *File {
	clone := *f
	clone.srcBuf = append([]byte(nil), f.srcBuf...)
	clone.targetBuf = append([]byte(nil), f.targetBuf...)
	clone.deps = append([]depEdge(nil), f.deps...)
	clone.refs = append([]depEdge(nil), f.refs...)
	clone.entries = append([]*LogEntry(nil), f.entries...)
	clone.lineIndex = nil
	return &clone
}

// Save writes the file per the active build mode (spec.md 4.4):
//   - build/watch/server: skip if unmodified and dest==src; refuse if
//     modified and dest==src without Overwrite; else write the buffer
//     (optionally appending the sourceMappingURL comment) plus the
//     sidecar .map file unless inlined. In server mode the write is
//     redirected to the in-memory sink instead of disk.
//   - clean: delete the would-be destination and sidecar map, then
//     prune the empty parent chain.
//   - preview: no I/O; still counts as written.
func (f *File) Save(dir string, done func(error)) {
	dest := f.DestPath()
	if dir != "" {
		dest = path.Join(dir, f.name)
	}

	if f.observer != nil && !f.observer.FileSave(f) {
		done(nil)
		return
	}

	mode := ModeBuild
	if f.cfg != nil {
		mode = f.cfg.BuildMode
	}

	switch mode {
	case ModeClean:
		f.saveClean(dest, done)
		return
	case ModePreview:
		done(nil)
		return
	}

	if !f.modified && dest == f.SrcPath() {
		done(nil)
		return
	}
	overwrite := false
	if f.cfg != nil {
		overwrite = f.cfg.Overwrite.Resolve(f)
	}
	if f.modified && dest == f.SrcPath() && !overwrite {
		f.Error("refusing to overwrite source %s without overwrite enabled", dest)
		done(nil)
		return
	}

	data := f.renderedBuffer(dest)

	if mode == ModeServer && f.sink != nil {
		f.sink.Put(dest, data)
		f.saveMapSidecar(dest, done)
		return
	}

	vfs.WriteFileAsync(dest, data, 0644, vfs.Options{TryCount: 3}, func(err error) {
		if err != nil {
			f.Error("save %s: %v", dest, err)
			done(nil)
			return
		}
		f.saveMapSidecar(dest, done)
	})
}

func (f *File) renderedBuffer(dest string) []byte {
	data := f.Buffer()
	if f.sourceMap == nil || f.cfg == nil || !f.cfg.SourceMapEmit.Resolve(f) {
		return data
	}
	inline := f.cfg.SourceMapInline.Resolve(f)
	var url string
	if inline {
		url = dataURLForMap(f.sourceMap)
	} else {
		url = path.Base(dest) + ".map"
	}
	singleLine := f.Ext() != ".css"
	return []byte(sourcemap.EmitSourceMapURL(string(data), url, singleLine))
}

func (f *File) saveMapSidecar(dest string, done func(error)) {
	if f.sourceMap == nil || f.cfg == nil || !f.cfg.SourceMapEmit.Resolve(f) || f.cfg.SourceMapInline.Resolve(f) {
		done(nil)
		return
	}
	mapData, err := f.sourceMap.Emit()
	if err != nil {
		f.Error("emit source map for %s: %v", dest, err)
		done(nil)
		return
	}
	vfs.WriteFileAsync(dest+".map", mapData, 0644, vfs.Options{TryCount: 3}, func(err error) {
		if err != nil {
			f.Error("save map for %s: %v", dest, err)
		}
		done(nil)
	})
}

// DeleteDest removes this file's destination output and map sidecar
// from disk. Used by the dest processor in place of Save for a File the
// watcher marked Removed (spec.md 4.9).
func (f *File) DeleteDest(done func(error)) {
	dest := f.DestPath()
	vfs.DeleteFile(dest, vfs.Options{})
	vfs.DeleteFile(dest+".map", vfs.Options{})
	done(nil)
}

func (f *File) saveClean(dest string, done func(error)) {
	vfs.DeleteFile(dest, vfs.Options{})
	vfs.DeleteFile(dest+".map", vfs.Options{})
	pruneEmptyParents(path.Dir(dest))
	done(nil)
}

// Delete removes the source file on disk (a no-op for generated files),
// then prunes the empty parent chain when deleteEmptyParent is set.
func (f *File) Delete(deleteEmptyParent bool, done func(error)) {
	if f.observer != nil && !f.observer.FileDelete(f) {
		done(nil)
		return
	}
	if f.generated {
		done(nil)
		return
	}
	vfs.DeleteFileAsync(f.initialPath, vfs.Options{TryCount: 3}, func(err error) {
		if err != nil {
			f.Error("delete %s: %v", f.initialPath, err)
			done(nil)
			return
		}
		if deleteEmptyParent {
			pruneEmptyParents(path.Dir(f.initialPath))
		}
		done(nil)
	})
}

func pruneEmptyParents(dir string) {
	for dir != "" && dir != "." && dir != "/" {
		entries, err := vfs.ReadDir(dir, vfs.Options{})
		if err != nil || len(entries) > 0 {
			return
		}
		if vfs.DeleteDir(dir, vfs.Options{}) != nil {
			return
		}
		dir = path.Dir(dir)
	}
}

func decodeBuffer(data []byte, enc string) string {
	if enc == "utf-16le" {
		d := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
		out, err := d.Bytes(data)
		if err == nil {
			return string(out)
		}
	}
	return string(data)
}

func encodeText(s, enc string) []byte {
	if enc == "utf-16le" {
		e := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder()
		out, err := e.Bytes([]byte(s))
		if err == nil {
			return out
		}
	}
	return []byte(s)
}

func dataURLForMap(m *sourcemap.Map) string {
	data, err := m.Emit()
	if err != nil {
		return ""
	}
	return "data:application/json;base64," + base64.StdEncoding.EncodeToString(data)
}
