package digo

import (
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"shanhu.io/digo/internal/asyncqueue"
	"shanhu.io/digo/internal/pathmatch"
	"shanhu.io/digo/internal/watchstate"
	"shanhu.io/misc/strutil"
)

// DefaultDebounce is the debounce window spec.md 4.9 recommends.
const DefaultDebounce = 100 * time.Millisecond

// ignoredWatchGlobs is the built-in ignore list spec.md 4.9 names:
// editor swap files and OS temporaries.
var ignoredWatchGlobs = []string{
	"*.swp", "*.swx", "*~", ".DS_Store", "Thumbs.db", "*.tmp",
}

func isIgnoredWatchName(name string) bool {
	for _, g := range ignoredWatchGlobs {
		if ok, _ := filepath.Match(g, name); ok {
			return true
		}
	}
	return false
}

type dirState struct {
	entries map[string]bool
}

type fileState struct {
	mtime time.Time
}

// rootBinding is one root list the watcher can re-seed on rebuild,
// together with the inputs seedRoot needs to redrive it.
type rootBinding struct {
	root   *FileList
	cfg    *Config
	obs    Observer
	ignore *pathmatch.Matcher
	m      *pathmatch.Matcher
}

// loadTracer detects a cycle while walking a chain of edges, reused
// nearly verbatim from the teacher's build-rule circular-dependency
// tracer (load_tracer.go), adapted here to file dependency edges
// instead of build-rule load edges.
type loadTracer struct {
	trace []string
	m     map[string]bool
}

func newLoadTracer() *loadTracer { return &loadTracer{m: make(map[string]bool)} }

func (t *loadTracer) push(name string) bool {
	if t.m[name] {
		return false
	}
	t.trace = append(t.trace, name)
	t.m[name] = true
	return true
}

func (t *loadTracer) pop() {
	n := len(t.trace)
	if n == 0 {
		return
	}
	last := t.trace[n-1]
	delete(t.m, last)
	t.trace = t.trace[:n-1]
}

// Watcher wraps the host filesystem-watch capability (spec.md 4.9): a
// per-directory entry-list and per-file mtime cache, a debounce timer
// that settles a burst of raw events into one pending set, reverse-
// dependency invalidation propagation, and re-seeding of every affected
// root list. Grounded on Mschirtzinger-jj-beads's watcher.go for the
// fsnotify event-loop wiring and
// albertocavalcante-bazelle__debouncer.go for the coalesce-then-flush
// debounce shape.
type Watcher struct {
	mu sync.Mutex

	fsw   *fsnotify.Watcher
	queue *asyncqueue.Queue
	stats *BuildStats

	debounce time.Duration
	timer    *time.Timer
	pending  map[string]bool

	dirs    map[string]*dirState
	files   map[string]*fileState
	watched map[string]bool

	// deps maps a path to the set of file paths that recorded a Dep
	// edge on it, i.e. the reverse-dependency edges spec.md 4.9's
	// "Invalidation propagation" walks.
	deps map[string]map[string]bool

	roots []*rootBinding

	onRebuild func(changed, deleted []string)

	// state and stateRoot, when set via UsePersistedState, save this
	// watcher's dirs/files cache to disk after every rebuild and load it
	// back when the next process calls UsePersistedState, so a restarted
	// watch session
	// does not have to re-stat the whole tree to recompute what it
	// already knew (SPEC_FULL.md's "Persisted watch state").
	state     *watchstate.Store
	stateRoot string

	closed bool
}

// NewWatcher creates a Watcher with the given debounce window (0 uses
// DefaultDebounce), reporting into stats and re-driving pipelines
// through queue.
func NewWatcher(queue *asyncqueue.Queue, stats *BuildStats, debounce time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w := &Watcher{
		fsw:      fsw,
		queue:    queue,
		stats:    stats,
		debounce: debounce,
		pending:  make(map[string]bool),
		dirs:     make(map[string]*dirState),
		files:    make(map[string]*fileState),
		watched:  make(map[string]bool),
		deps:     make(map[string]map[string]bool),
	}
	go w.run()
	return w, nil
}

// OnRebuild installs fn to be called (with the settled changed/deleted
// path sets) after every rebuild this watcher drives.
func (w *Watcher) OnRebuild(fn func(changed, deleted []string)) {
	w.mu.Lock()
	w.onRebuild = fn
	w.mu.Unlock()
}

// Watch drives Src under this watcher's supervision: the returned root
// list is tracked so a later filesystem change matching m re-seeds it
// (spec.md 4.9, "Rebuild"). Every directory the initial walk visits is
// added to the native watch via the observer's AddDir hook.
func (w *Watcher) Watch(cfg *Config, obs Observer, ignore, m *pathmatch.Matcher) *FileList {
	if obs == nil {
		obs = NopObserver{}
	}
	wrapped := &watcherObserver{Observer: obs, w: w}
	root := Src(cfg, wrapped, w.queue, ignore, m)
	w.mu.Lock()
	w.roots = append(w.roots, &rootBinding{root: root, cfg: cfg, obs: wrapped, ignore: ignore, m: m})
	w.mu.Unlock()
	return root
}

// UsePersistedState points this watcher at store for the given root: any
// snapshot already saved under root is loaded into the dirs/files cache
// immediately (so the first rebuild after a restart can tell what
// changed while the process was down without a full re-stat), and every
// later rebuild saves the current cache back to store under root.
func (w *Watcher) UsePersistedState(store *watchstate.Store, root string) error {
	snap, ok, err := store.Load(root)
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.state = store
	w.stateRoot = root
	if ok {
		for p, d := range snap.Dirs {
			w.dirs[p] = &dirState{entries: namesToSet(d.Names)}
		}
		for p, f := range snap.Files {
			w.files[p] = &fileState{mtime: f.ModTime}
		}
	}
	w.mu.Unlock()
	return nil
}

func namesToSet(names []string) map[string]bool {
	out := make(map[string]bool, len(names))
	for _, n := range names {
		out[n] = true
	}
	return out
}

// persistState saves the current dirs/files cache to w.state under
// w.stateRoot, a no-op when UsePersistedState was never called.
func (w *Watcher) persistState() {
	w.mu.Lock()
	store := w.state
	root := w.stateRoot
	snap := &watchstate.Snapshot{
		Dirs:  make(map[string]watchstate.DirEntry, len(w.dirs)),
		Files: make(map[string]watchstate.FileEntry, len(w.files)),
	}
	for p, d := range w.dirs {
		snap.Dirs[p] = watchstate.DirEntry{Names: strutil.SortedList(d.entries)}
	}
	for p, f := range w.files {
		snap.Files[p] = watchstate.FileEntry{ModTime: f.mtime}
	}
	w.mu.Unlock()

	if store == nil {
		return
	}
	if err := store.Save(root, snap); err != nil {
		log.Printf("digo: save watch state: %v", err)
	}
}

// Close releases the native watch handles, stops the debounce timer, and
// persists the current cache one last time if UsePersistedState was
// called.
func (w *Watcher) Close() error {
	w.mu.Lock()
	w.closed = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	w.persistState()
	return w.fsw.Close()
}

func (w *Watcher) run() {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.schedule(ev.Name)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Printf("digo: watch error: %v", err)
		}
	}
}

func (w *Watcher) schedule(path string) {
	if isIgnoredWatchName(filepath.Base(path)) {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.pending[path] = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	if w.closed || len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.pending = make(map[string]bool)
	w.mu.Unlock()

	changed := make(map[string]bool)
	deleted := make(map[string]bool)
	for _, p := range paths {
		w.classify(p, changed, deleted)
	}
	w.propagate(changed, deleted)
	w.rebuild(changed, deleted)
}

// classify implements spec.md 4.9's per-pending-path "Change detection"
// step.
func (w *Watcher) classify(p string, changed, deleted map[string]bool) {
	info, err := os.Lstat(p)
	if err != nil {
		if os.IsNotExist(err) {
			w.markDeletedRecursive(p, deleted)
		}
		return
	}
	if info.IsDir() {
		w.diffDir(p, changed, deleted)
		return
	}

	w.mu.Lock()
	prev, ok := w.files[p]
	mt := info.ModTime()
	w.mu.Unlock()
	if !ok || !prev.mtime.Equal(mt) {
		changed[p] = true
		w.mu.Lock()
		w.files[p] = &fileState{mtime: mt}
		w.mu.Unlock()
	}
}

func (w *Watcher) markDeletedRecursive(p string, deleted map[string]bool) {
	deleted[p] = true
	w.mu.Lock()
	ds := w.dirs[p]
	delete(w.dirs, p)
	delete(w.files, p)
	delete(w.watched, p)
	w.mu.Unlock()
	if ds == nil {
		return
	}
	for name := range ds.entries {
		w.markDeletedRecursive(filepath.Join(p, name), deleted)
	}
}

// diffDir implements the directory half of "Change detection": entries
// only in the cache become deletes (recursively), new entries become
// changes (recursively), and the cached entry list is replaced.
func (w *Watcher) diffDir(dir string, changed, deleted map[string]bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	cur := make(map[string]bool)
	for _, e := range entries {
		if isIgnoredWatchName(e.Name()) {
			continue
		}
		cur[e.Name()] = true
	}

	w.mu.Lock()
	prev := w.dirs[dir]
	w.dirs[dir] = &dirState{entries: cur}
	w.mu.Unlock()
	w.watchPath(dir)

	var prevNames map[string]bool
	if prev != nil {
		prevNames = prev.entries
	}
	for name := range prevNames {
		if !cur[name] {
			w.markDeletedRecursive(filepath.Join(dir, name), deleted)
		}
	}
	for name := range cur {
		if !prevNames[name] {
			w.markChangedRecursive(filepath.Join(dir, name), changed)
		}
	}
}

func (w *Watcher) markChangedRecursive(p string, changed map[string]bool) {
	info, err := os.Lstat(p)
	if err != nil {
		return
	}
	changed[p] = true
	if !info.IsDir() {
		w.mu.Lock()
		w.files[p] = &fileState{mtime: info.ModTime()}
		w.mu.Unlock()
		return
	}

	w.watchPath(p)
	entries, err := os.ReadDir(p)
	if err != nil {
		return
	}
	cur := make(map[string]bool)
	for _, e := range entries {
		if isIgnoredWatchName(e.Name()) {
			continue
		}
		cur[e.Name()] = true
		w.markChangedRecursive(filepath.Join(p, e.Name()), changed)
	}
	w.mu.Lock()
	w.dirs[p] = &dirState{entries: cur}
	w.mu.Unlock()
}

// propagate implements "Invalidation propagation": any file whose deps
// contain an already-marked path is itself marked changed, transitively.
func (w *Watcher) propagate(changed, deleted map[string]bool) {
	queue := make([]string, 0, len(changed)+len(deleted))
	for p := range changed {
		queue = append(queue, p)
	}
	for p := range deleted {
		queue = append(queue, p)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		for dependent := range w.deps[p] {
			if !changed[dependent] {
				changed[dependent] = true
				queue = append(queue, dependent)
			}
		}
	}
}

// rebuild implements spec.md 4.9's "Rebuild": reset engine counters,
// re-seed every root list whose matcher matches a marked path, and
// report once the queue settles.
func (w *Watcher) rebuild(changed, deleted map[string]bool) {
	if len(changed) == 0 && len(deleted) == 0 {
		return
	}
	if w.stats != nil {
		w.stats.Reset()
	}

	w.mu.Lock()
	roots := append([]*rootBinding(nil), w.roots...)
	w.mu.Unlock()

	marked := func(m *pathmatch.Matcher) bool {
		for p := range changed {
			if m.Test(p) {
				return true
			}
		}
		for p := range deleted {
			if m.Test(p) {
				return true
			}
		}
		return false
	}

	for _, rb := range roots {
		if !marked(rb.m) {
			continue
		}
		w.rebuildRoot(rb, deleted)
	}

	changedList := strutil.SortedList(changed)
	deletedList := strutil.SortedList(deleted)
	w.queue.Enqueue(func() {
		w.persistState()
		w.mu.Lock()
		cb := w.onRebuild
		w.mu.Unlock()
		if cb != nil {
			cb(changedList, deletedList)
		}
	})
}

// rebuildRoot re-adds every deleted path matching rb's matcher as a
// Removed File before re-seeding from disk, so downstream processors
// see the deletion rather than simply losing track of the file (spec.md
// 4.9, "cleaned for deletes, reloaded for changes"). The deleted Adds
// happen before seedRoot launches its own walk goroutines so the root
// list's pending counter cannot reach zero prematurely.
func (w *Watcher) rebuildRoot(rb *rootBinding, deleted map[string]bool) {
	rb.root.Reopen()
	for p := range deleted {
		if !rb.m.Test(p) {
			continue
		}
		rel, err := pathmatch.Relative(rb.m.Base(), p)
		if err != nil {
			continue
		}
		rb.root.Add(newRemovedFile(rb.cfg, rb.obs, p, rb.m.Base(), rel))
	}
	seedRoot(rb.cfg, rb.obs, rb.root, rb.ignore, rb.m)
}

func (w *Watcher) watchPath(p string) {
	w.mu.Lock()
	if w.watched[p] {
		w.mu.Unlock()
		return
	}
	w.watched[p] = true
	w.mu.Unlock()
	if err := w.fsw.Add(p); err != nil {
		log.Printf("digo: watch %s: %v", p, err)
	}
}

// trackDeps implements "Dependency updates": record f's dep edges in
// the reverse-dependency map and extend the watch set to cover them,
// rejecting (with a warning, not a fatal error) any edge that would
// close a cycle.
func (w *Watcher) trackDeps(f *File) {
	dest := f.DestPath()
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, dep := range f.Deps() {
		if dep == dest || w.reachesLocked(dest, dep, newLoadTracer()) {
			f.Warning("dependency cycle detected: %s already depends on %s", dep, dest)
			continue
		}
		if w.deps[dep] == nil {
			w.deps[dep] = make(map[string]bool)
		}
		w.deps[dep][dest] = true
		go w.watchPath(dep)
	}
}

// reachesLocked reports whether target is reachable from from by
// following the deps adjacency (the dependent direction), meaning an
// edge dep->dest would close a cycle back to itself. Caller must hold
// w.mu.
func (w *Watcher) reachesLocked(from, target string, tracer *loadTracer) bool {
	if !tracer.push(from) {
		return false
	}
	defer tracer.pop()
	for next := range w.deps[from] {
		if next == target || w.reachesLocked(next, target, tracer) {
			return true
		}
	}
	return false
}

// watcherObserver wraps another Observer, feeding the watcher's
// directory/file state cache and dependency map from the AddDir/AddFile/
// FileSave calls the pipeline already makes, so no separate discovery
// pass is needed to seed the native watch set.
type watcherObserver struct {
	Observer
	w *Watcher
}

func (o *watcherObserver) AddDir(dir string, entries []string) {
	cur := make(map[string]bool, len(entries))
	for _, name := range entries {
		if !isIgnoredWatchName(name) {
			cur[name] = true
		}
	}
	o.w.mu.Lock()
	o.w.dirs[dir] = &dirState{entries: cur}
	o.w.mu.Unlock()
	o.w.watchPath(dir)
	o.Observer.AddDir(dir, entries)
}

func (o *watcherObserver) AddFile(f *File) {
	if !f.Generated() {
		if info, err := os.Stat(f.SrcPath()); err == nil {
			o.w.mu.Lock()
			o.w.files[f.SrcPath()] = &fileState{mtime: info.ModTime()}
			o.w.mu.Unlock()
		}
	}
	o.Observer.AddFile(f)
}

func (o *watcherObserver) FileSave(f *File) bool {
	keep := o.Observer.FileSave(f)
	if keep {
		o.w.trackDeps(f)
	}
	return keep
}

func newRemovedFile(cfg *Config, obs Observer, initialPath, base, name string) *File {
	f := NewFile(cfg, obs, initialPath, base, name)
	f.removed = true
	return f
}
