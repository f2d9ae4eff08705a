package digo

import (
	"fmt"
	"sync"

	"shanhu.io/digo/internal/asyncqueue"
	"shanhu.io/digo/internal/pathmatch"
)

// FileList is a node in the singly linked chain a build task builds with
// `.pipe()`/`.dest()`/`.then()` (spec.md 3, 4.7). A chain's root is
// created by Src and extends rightward; every non-root node carries one
// Processor. Grounded on the teacher's build_node.go/loader.go
// registration-and-chaining style, repurposed from a DAG of build rules
// to a linked chain of stream stages.
type FileList struct {
	mu sync.Mutex

	prev, next *FileList
	root       *FileList
	isRoot     bool
	lockKey    string

	proc *Processor
	opts interface{}

	cfg      *Config
	observer Observer
	queue    *asyncqueue.Queue
	matcher  *pathmatch.Matcher

	// pending counts in-flight Add calls plus one sentinel held until
	// CloseUpstream is called, per spec.md 3 ("Ephemeral state").
	pending int

	collecting  bool
	buffer      map[string]*File
	bufferOrder []string

	endHandlers []func()
}

// NewRootList creates a root FileList bound to m, holding the async
// queue's lock until CloseUpstream runs — guaranteeing that dependent
// stages wait for discovery to complete (spec.md 4.7, "Root list").
// Source (C8) is the caller that walks the filesystem and feeds matches
// into it via Add.
func NewRootList(cfg *Config, obs Observer, queue *asyncqueue.Queue, m *pathmatch.Matcher) *FileList {
	l := &FileList{
		cfg:      cfg,
		observer: obs,
		queue:    queue,
		matcher:  m,
		isRoot:   true,
		pending:  1,
	}
	l.root = l
	l.lockKey = fmt.Sprintf("root:%p", l)
	if obs != nil {
		obs.AddList(l)
	}
	queue.Lock(l.lockKey)
	return l
}

// Matcher returns the root list's bound matcher (nil for non-root
// lists).
func (l *FileList) Matcher() *pathmatch.Matcher { return l.matcher }

// Pipe appends a new list wrapping p to the result-end of the chain,
// per spec.md 4.7 ("Chain topology").
func (l *FileList) Pipe(p *Processor, opts interface{}) *FileList {
	next := &FileList{
		proc:     p,
		opts:     opts,
		cfg:      l.cfg,
		observer: l.observer,
		queue:    l.queue,
		root:     l.root,
		pending:  1,
	}
	if p.Collect {
		next.collecting = true
		next.buffer = make(map[string]*File)
	}
	l.next = next
	next.prev = l
	if l.observer != nil {
		l.observer.AddList(next)
	}
	if p.Init != nil {
		p.Init(opts, next)
	}
	if p.Before != nil {
		p.Before(opts, next)
	}
	return next
}

// Dest is sugar over Pipe: saves each file (redirected to dir when set)
// and forwards it on, recording save failures without halting the
// pipeline.
func (l *FileList) Dest(dir StringOpt) *FileList {
	return l.Pipe(destProcessor(dir), nil)
}

// DeleteFiles is sugar over Pipe: deletes each file from disk.
func (l *FileList) DeleteFiles(deleteEmptyParent bool) *FileList {
	return l.Pipe(deleteProcessor(deleteEmptyParent), nil)
}

// SrcFilter is sugar over Pipe implementing spec.md 4.7's "Source
// filter": forwards a file only when its destination path matches the
// given patterns.
func (l *FileList) SrcFilter(cwd string, patterns ...pathmatch.Pattern) *FileList {
	m := pathmatch.New(cwd, patterns...)
	return l.Pipe(srcFilterProcessor(m), nil)
}

// Clone is sugar over Pipe: forwards a duplicate of each file so
// downstream stages mutate copies rather than the shared record.
func (l *FileList) Clone() *FileList {
	return l.Pipe(cloneProcessor(), nil)
}

// Exec is sugar over Pipe: runs an external command over each file per
// ExecProcessor.
func (l *FileList) Exec(args ExecArgs, opts ExecOptions) *FileList {
	return l.Pipe(ExecProcessor(args, opts), nil)
}

// Then is sugar over Pipe ending the chain with a callback scheduled on
// the queue's next tick.
func (l *FileList) Then(cb func()) *FileList {
	return l.Pipe(thenSyncProcessor(cb), nil)
}

// ThenAsync is Then's asynchronous form: cb must call done when finished.
func (l *FileList) ThenAsync(cb func(done func())) *FileList {
	return l.Pipe(thenAsyncProcessor(cb), nil)
}

// OnEnd registers fn to run every time this list closes.
func (l *FileList) OnEnd(fn func()) {
	l.mu.Lock()
	l.endHandlers = append(l.endHandlers, fn)
	l.mu.Unlock()
}

// Push injects f directly into this list's buffer/forwarding without
// running it back through this list's own Processor.Add — the mechanism
// a custom processor uses to emit additional files beyond (or instead
// of) the one it received (spec.md 4.7's "emit new files").
func (l *FileList) Push(f *File) {
	l.collectInto(f)
	if l.next != nil {
		l.next.Add(f)
	}
}

// Add delivers f to this list: forces a load if the processor wants one,
// invokes Add, then forwards or drops f per the keep decision, per
// spec.md 4.7 ("File flow").
func (l *FileList) Add(f *File) {
	l.mu.Lock()
	l.pending++
	l.mu.Unlock()

	// Hold the queue while f is in flight at this stage, so a queue
	// Promise cannot resolve before an asynchronous Add has finished.
	l.queue.Lock(l.lockKey)
	finish := func(keep bool) {
		l.finishAdd(f, keep)
		l.queue.Unlock(l.lockKey)
	}

	if l.observer != nil {
		l.observer.AddFile(f)
	}

	proceed := func() {
		if l.proc == nil {
			finish(true)
			return
		}
		l.proc.Add.run(f, l.opts, l, l.root, finish)
	}

	if l.proc != nil && l.proc.Load {
		f.Load(func(error) { proceed() })
		return
	}
	proceed()
}

func (l *FileList) finishAdd(f *File, keep bool) {
	if keep {
		l.collectInto(f)
		if l.next != nil {
			l.next.Add(f)
		}
	}
	l.decrementPending()
}

func (l *FileList) collectInto(f *File) {
	if !l.collecting {
		return
	}
	key := collectKey(f)
	l.mu.Lock()
	defer l.mu.Unlock()
	if f.Removed() || (l.cfg != nil && l.cfg.BuildMode == ModeClean) {
		if _, ok := l.buffer[key]; ok {
			delete(l.buffer, key)
			l.removeFromOrderLocked(key)
		}
		return
	}
	if _, exists := l.buffer[key]; !exists {
		l.bufferOrder = append(l.bufferOrder, key)
	}
	l.buffer[key] = f.Clone()
}

func (l *FileList) removeFromOrderLocked(key string) {
	for i, k := range l.bufferOrder {
		if k == key {
			l.bufferOrder = append(l.bufferOrder[:i], l.bufferOrder[i+1:]...)
			return
		}
	}
}

func collectKey(f *File) string {
	if f.initialPath != "" {
		return f.initialPath
	}
	return f.DestPath()
}

// CloseUpstream signals that no more files will arrive from upstream
// (the walk completed, for a root list; the previous list ended, for
// any other). It is the "sentinel" decrement of the pending counter.
func (l *FileList) CloseUpstream() {
	l.decrementPending()
}

// Reopen resets the pending sentinel so a closed list can be re-seeded
// by the watcher without rebuilding the chain (spec.md 3, "once closed
// it can be re-opened by the watcher re-seeding files through the
// root"). A root list re-acquires the queue lock finalize released, so
// every build cycle remains one matched Lock/Unlock pair.
func (l *FileList) Reopen() {
	l.mu.Lock()
	l.pending = 1
	l.mu.Unlock()
	if l.isRoot {
		l.queue.Lock(l.lockKey)
	}
}

func (l *FileList) decrementPending() {
	l.mu.Lock()
	l.pending--
	done := l.pending == 0
	l.mu.Unlock()
	if done {
		l.finalize()
	}
}

func (l *FileList) finalize() {
	if l.proc != nil && l.proc.After != nil {
		l.proc.After(l.opts, l)
	}

	var files []*File
	if l.collecting {
		l.mu.Lock()
		files = make([]*File, 0, len(l.bufferOrder))
		for _, k := range l.bufferOrder {
			files = append(files, l.buffer[k])
		}
		l.mu.Unlock()
	}

	finish := func() {
		l.mu.Lock()
		handlers := l.endHandlers
		l.mu.Unlock()
		for _, h := range handlers {
			h()
		}
		if l.next != nil {
			l.next.CloseUpstream()
		}
		if l.isRoot {
			l.queue.Unlock(l.lockKey)
		}
	}

	if l.proc != nil && !l.proc.End.isZero() {
		l.queue.Lock(l.lockKey)
		l.proc.End.run(files, l.opts, l, func() {
			finish()
			l.queue.Unlock(l.lockKey)
		})
		return
	}
	finish()
}
