package digo

import "shanhu.io/digo/internal/sourcemap"

// Observer is the pluggable progress/logging sink spec.md 4.7 and the
// REDESIGN FLAGS both call for: the engine stays silent about how work is
// reported, dispatching through this interface instead. Several hooks may
// veto an action by returning false.
type Observer interface {
	AddList(list *FileList)
	AddFile(file *File)
	AddDir(dir string, entries []string)

	FileSave(file *File) bool
	FileDelete(file *File) bool
	FileLog(file *File, entry *LogEntry)
	FileDep(file *File, depPath string) bool
	FileRef(file *File, refPath string) bool
	FileValidate(file *File) bool
	SourceMapValidate(file *File, m *sourcemap.Map) bool
}

// NopObserver implements Observer with no-op hooks that never veto. It is
// meant to be embedded by observers that only care about a few hooks.
type NopObserver struct{}

// SinkObserver wraps another Observer and installs sink as every
// observed file's save sink, so a server-mode File.Save (file.go 499)
// finds a non-nil f.sink and redirects there instead of to disk
// (spec.md 4.4/4.10, "install an in-memory sink on the file entity's
// save hook").
type SinkObserver struct {
	Observer
	sink SaveSink
}

// NewSinkObserver wraps obs, attaching sink to every file it observes.
func NewSinkObserver(obs Observer, sink SaveSink) *SinkObserver {
	return &SinkObserver{Observer: obs, sink: sink}
}

func (o *SinkObserver) AddFile(f *File) {
	f.SetSink(o.sink)
	o.Observer.AddFile(f)
}

func (NopObserver) AddList(*FileList)                         {}
func (NopObserver) AddFile(*File)                             {}
func (NopObserver) AddDir(string, []string)                   {}
func (NopObserver) FileSave(*File) bool                       { return true }
func (NopObserver) FileDelete(*File) bool                     { return true }
func (NopObserver) FileLog(*File, *LogEntry)                  {}
func (NopObserver) FileDep(*File, string) bool                { return true }
func (NopObserver) FileRef(*File, string) bool                { return true }
func (NopObserver) FileValidate(*File) bool                   { return true }
func (NopObserver) SourceMapValidate(*File, *sourcemap.Map) bool { return true }
