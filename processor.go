package digo

import "shanhu.io/digo/internal/pathmatch"

// AddFunc is a processor's per-file hook. Per the redesign notes (arity-
// based sync/async dispatch becomes an explicit tagged variant, as
// internal/asyncqueue's job type already does for queue entries), it is
// one of two explicit variants rather than one callback whose arity is
// inspected at call time.
type AddFunc struct {
	sync  func(f *File, opts interface{}, result, root *FileList) bool
	async func(f *File, opts interface{}, result, root *FileList, done func(keep bool))
}

// AddSync builds a synchronous Add hook: fn runs to completion and its
// bool return is the keep decision.
func AddSync(fn func(f *File, opts interface{}, result, root *FileList) bool) AddFunc {
	return AddFunc{sync: fn}
}

// AddAsync builds an asynchronous Add hook: fn must eventually call done
// with the keep decision.
func AddAsync(fn func(f *File, opts interface{}, result, root *FileList, done func(keep bool))) AddFunc {
	return AddFunc{async: fn}
}

func (a AddFunc) isZero() bool { return a.sync == nil && a.async == nil }

func (a AddFunc) run(f *File, opts interface{}, result, root *FileList, done func(keep bool)) {
	if a.async != nil {
		a.async(f, opts, result, root, done)
		return
	}
	if a.sync != nil {
		done(a.sync(f, opts, result, root))
		return
	}
	done(true)
}

// EndFunc is a processor's batch-collected hook, in the same explicit
// sync/async variant shape as AddFunc.
type EndFunc struct {
	sync  func(files []*File, opts interface{}, result *FileList)
	async func(files []*File, opts interface{}, result *FileList, done func())
}

// EndSync builds a synchronous End hook.
func EndSync(fn func(files []*File, opts interface{}, result *FileList)) EndFunc {
	return EndFunc{sync: fn}
}

// EndAsync builds an asynchronous End hook: fn must eventually call done.
func EndAsync(fn func(files []*File, opts interface{}, result *FileList, done func())) EndFunc {
	return EndFunc{async: fn}
}

func (e EndFunc) isZero() bool { return e.sync == nil && e.async == nil }

func (e EndFunc) run(files []*File, opts interface{}, result *FileList, done func()) {
	if e.async != nil {
		e.async(files, opts, result, done)
		return
	}
	if e.sync != nil {
		e.sync(files, opts, result)
	}
	done()
}

// Processor is the descriptor a FileList node carries (spec.md 4.7).
// Every hook is optional; Load and Collect are the two behavior flags
// a node can opt into.
type Processor struct {
	Name string

	Init   func(opts interface{}, result *FileList)
	Before func(opts interface{}, result *FileList)
	Add    AddFunc
	After  func(opts interface{}, result *FileList)
	End    EndFunc

	// Load preloads a file's source content before Add runs.
	Load bool
	// Collect batches every surviving file into an ordered buffer,
	// keyed by initialPath, before End runs.
	Collect bool
}

// destProcessor builds the processor .Dest(dir) installs: it saves each
// file (redirected to dir when set) and forwards it unchanged, recording
// a save failure against the file without halting the pipeline
// (spec.md 4.7, "Dest").
func destProcessor(dir StringOpt) *Processor {
	return &Processor{
		Name: "dest",
		Add: AddAsync(func(f *File, _ interface{}, _, _ *FileList, done func(bool)) {
			if f.Removed() {
				f.DeleteDest(func(error) { done(true) })
				return
			}
			f.Save(dir.Resolve(f), func(error) {
				done(true)
			})
		}),
	}
}

// deleteProcessor builds the processor .DeleteFiles() installs: deletes
// each file from disk and does not forward it.
func deleteProcessor(deleteEmptyParent bool) *Processor {
	return &Processor{
		Name: "delete",
		Add: AddAsync(func(f *File, _ interface{}, _, _ *FileList, done func(bool)) {
			f.Delete(deleteEmptyParent, func(error) {
				done(false)
			})
		}),
	}
}

// srcFilterProcessor builds the passthrough processor .Src(pattern) on
// an existing list installs: forwards a file only when its destination
// path matches m (spec.md 4.7, "Source filter").
func srcFilterProcessor(m *pathmatch.Matcher) *Processor {
	return &Processor{
		Name: "src-filter",
		Add: AddSync(func(f *File, _ interface{}, _, _ *FileList) bool {
			return m.Test(f.DestPath())
		}),
	}
}

// cloneProcessor builds the processor .Clone() installs: forwards a
// duplicate of each file so downstream stages mutate copies rather than
// the original record.
func cloneProcessor() *Processor {
	return &Processor{
		Name: "clone",
		Add: AddSync(func(f *File, _ interface{}, result, _ *FileList) bool {
			result.Push(f.Clone())
			return false
		}),
	}
}

// thenSyncProcessor builds the non-collecting terminal processor
// .Then(cb) installs when cb takes no done callback: cb is scheduled on
// the next tick of the list's queue rather than called inline, per
// spec.md 4.7 ("scheduled on the next tick (sync)").
func thenSyncProcessor(cb func()) *Processor {
	return &Processor{
		Name: "then",
		End: EndAsync(func(_ []*File, _ interface{}, result *FileList, done func()) {
			result.queue.Enqueue(cb)
			done()
		}),
	}
}

// thenAsyncProcessor builds the non-collecting terminal processor
// .Then(cb) installs when cb takes a done callback.
func thenAsyncProcessor(cb func(done func())) *Processor {
	return &Processor{
		Name: "then",
		End: EndAsync(func(_ []*File, _ interface{}, _ *FileList, done func()) {
			cb(done)
		}),
	}
}
