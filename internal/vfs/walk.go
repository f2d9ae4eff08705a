package vfs

import (
	"os"
	"path/filepath"
)

// WalkCallbacks are the optional callers spec.md 4.2 names. OnDir may
// return false to prune that subtree. A nil callback is simply skipped.
type WalkCallbacks struct {
	OnFile  func(path string, info os.FileInfo) error
	OnDir   func(path string, info os.FileInfo) (descend bool, err error)
	OnOther func(path string, info os.FileInfo) error
	OnError func(path string, err error) error
	OnEnd   func() error
}

// Walk traverses root depth-first, consulting the Stat/ReadDir dedupe
// cache for every path it visits (so a concurrent Walk racing on the
// same subtree queues behind the in-flight request rather than
// re-issuing it), and invokes the matching WalkCallbacks entry for each
// path. Grounded on edward-ap-class-collector's fswalk.go walk-state
// shape, generalized from a flat collected-file slice to a callback set.
func Walk(root string, cb WalkCallbacks, opts Options) error {
	if err := walkOne(root, cb, opts); err != nil {
		return err
	}
	if cb.OnEnd != nil {
		return cb.OnEnd()
	}
	return nil
}

// WalkAsync is the async form of Walk.
func WalkAsync(root string, cb WalkCallbacks, opts Options, done func(error)) {
	go func() {
		done(Walk(root, cb, opts))
	}()
}

func walkOne(path string, cb WalkCallbacks, opts Options) error {
	info, err := Stat(path, opts)
	if err != nil {
		return walkErr(path, err, cb)
	}

	if info.IsDir() {
		descend := true
		var dirErr error
		if cb.OnDir != nil {
			descend, dirErr = cb.OnDir(path, info)
			if dirErr != nil {
				return walkErr(path, dirErr, cb)
			}
		}
		if !descend {
			return nil
		}
		entries, err := ReadDir(path, opts)
		if err != nil {
			return walkErr(path, err, cb)
		}
		for _, entry := range entries {
			if err := walkOne(filepath.Join(path, entry.Name()), cb, opts); err != nil {
				return err
			}
		}
		return nil
	}

	if info.Mode().IsRegular() {
		if cb.OnFile != nil {
			if err := cb.OnFile(path, info); err != nil {
				return walkErr(path, err, cb)
			}
		}
		return nil
	}

	if cb.OnOther != nil {
		if err := cb.OnOther(path, info); err != nil {
			return walkErr(path, err, cb)
		}
	}
	return nil
}

func walkErr(path string, err error, cb WalkCallbacks) error {
	if cb.OnError == nil {
		return err
	}
	return cb.OnError(path, err)
}
