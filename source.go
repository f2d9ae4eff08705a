package digo

import (
	"log"
	"os"
	"sort"
	"sync"

	"shanhu.io/digo/internal/asyncqueue"
	"shanhu.io/digo/internal/pathmatch"
	"shanhu.io/digo/internal/vfs"
)

// Src drives a walk from each of m's pattern bases, creating a File for
// every entry that passes both the global ignore matcher (ignore, may
// be nil) and m itself, and adding it to a freshly created root list
// (spec.md 4.8, "Source"). Every visited directory, ignored ones
// included, is reported with its entry names through the observer's
// AddDir hook; ignored files are skipped without being reported. Walk
// errors are logged per path and do not abort sibling walks. When every
// base finishes, the root list is
// closed. Grounded on edward-ap-class-collector's fswalk.go (same
// walk-filter-recurse shape), generalized from a flat collected-file
// slice to emitting File objects into a root FileList.
func Src(cfg *Config, obs Observer, queue *asyncqueue.Queue, ignore *pathmatch.Matcher, m *pathmatch.Matcher) *FileList {
	root := NewRootList(cfg, obs, queue, m)
	seedRoot(cfg, obs, root, ignore, m)
	return root
}

// seedRoot drives one discovery pass into an already-created root list:
// one walk per pattern base, closing the root once every base's walk
// completes. Split out of Src so the watcher (C9) can re-seed an
// existing root list on rebuild without reconstructing the chain below
// it (spec.md 4.9, "Rebuild").
func seedRoot(cfg *Config, obs Observer, root *FileList, ignore, m *pathmatch.Matcher) {
	bases := append([]string(nil), m.Bases()...)
	sort.Strings(bases)

	if len(bases) == 0 {
		root.CloseUpstream()
		return
	}

	counter := &walkCounter{n: len(bases)}

	for _, base := range bases {
		base := base
		go func() {
			walkSourceBase(cfg, obs, root, ignore, m, base)
			if counter.dec() {
				root.CloseUpstream()
			}
		}()
	}
}

// walkCounter tracks how many of a root list's pattern-base walks are
// still in flight; its mutex is the only synchronization needed since
// root.CloseUpstream (via FileList's own locking) is safe to call from
// any goroutine.
type walkCounter struct {
	mu sync.Mutex
	n  int
}

func (c *walkCounter) dec() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n--
	return c.n == 0
}

func walkSourceBase(cfg *Config, obs Observer, root *FileList, ignore, m *pathmatch.Matcher, base string) {
	vfs.Walk(base, vfs.WalkCallbacks{
		OnDir: func(path string, _ os.FileInfo) (bool, error) {
			entries, _ := vfs.ReadDir(path, vfs.Options{})
			names := make([]string, len(entries))
			for i, e := range entries {
				names[i] = e.Name()
			}
			if obs != nil {
				obs.AddDir(path, names)
			}
			if ignored(ignore, path) {
				return false, nil
			}
			return true, nil
		},
		OnFile: func(absPath string, _ os.FileInfo) error {
			if ignored(ignore, absPath) || !m.Test(absPath) {
				return nil
			}
			rel, err := pathmatch.Relative(base, absPath)
			if err != nil {
				return nil
			}
			f := NewFile(cfg, obs, absPath, base, rel)
			if obs != nil {
				obs.AddFile(f)
			}
			root.Add(f)
			return nil
		},
		OnError: func(path string, err error) error {
			log.Printf("digo: walk %s: %v", path, err)
			return nil
		},
	}, vfs.Options{TryCount: 2})
}

func ignored(ignore *pathmatch.Matcher, absPath string) bool {
	return ignore != nil && ignore.Test(absPath)
}
