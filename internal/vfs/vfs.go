// Package vfs is the filesystem facade (C2): stat/read/write/walk with
// retry, sync and async forms, and a process-wide open-file backpressure
// queue. The stat comparison idiom is grounded on the teacher's
// file_stat.go (mtime/size/mode checks); concurrent dedupe of stat/readDir
// calls on the same path uses golang.org/x/sync/singleflight the way
// the pack's native syncer dedupes concurrent directory creation.
package vfs

import (
	"errors"
	"io/fs"
	"os"
	"syscall"
	"time"

	"golang.org/x/sync/singleflight"
	"shanhu.io/misc/errcode"
)

// Options controls a single facade call. The zero value is the default:
// one attempt, no backoff.
type Options struct {
	// TryCount is the number of attempts for a transient failure before
	// the call gives up and returns the last error. Zero means 1.
	TryCount int

	// Backoff is the delay before each retry after the first attempt.
	// Zero uses defaultBackoff.
	Backoff time.Duration
}

func (o Options) tryCount() int {
	if o.TryCount <= 0 {
		return 1
	}
	return o.TryCount
}

func (o Options) backoff() time.Duration {
	if o.Backoff <= 0 {
		return defaultBackoff
	}
	return o.Backoff
}

const defaultBackoff = 20 * time.Millisecond

// watchdogTimeout bounds how long a call enqueued on the backpressure
// queue waits for a natural wake before forcing a retry on its own.
const watchdogTimeout = 5 * time.Second

var statGroup singleflight.Group

// withRetry runs fn, retrying transient failures up to opts.tryCount()
// times with opts.backoff() between attempts. EMFILE/ENFILE failures are
// not counted against tryCount; they park on the backpressure queue
// instead and retry once woken or once the watchdog fires.
func withRetry(opts Options, fn func() error) error {
	var err error
	for attempt := 0; attempt < opts.tryCount(); attempt++ {
		for {
			err = fn()
			notifyOpDone()
			if !isOpenFileExhaustion(err) {
				break
			}
			waitForBackpressureTurn()
		}
		if err == nil || !isTransient(err) {
			return err
		}
		if attempt+1 < opts.tryCount() {
			time.Sleep(opts.backoff())
		}
	}
	return err
}

// isTransient reports whether err is worth retrying with backoff. ENOENT
// (outside the parent-dir-creation path, handled separately),
// EISDIR and ENOTDIR are not transient and short-circuit immediately.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return false
	}
	switch errno {
	case syscall.EINTR, syscall.EAGAIN, syscall.EBUSY, syscall.ETXTBSY:
		return true
	default:
		return false
	}
}

func isOpenFileExhaustion(err error) bool {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return false
	}
	return errno == syscall.EMFILE || errno == syscall.ENFILE
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || os.IsNotExist(err)
}

func annotate(op, path string, err error) error {
	if err == nil {
		return nil
	}
	if isNotExist(err) {
		return errcode.NotFoundf("%s %s: not found", op, path)
	}
	return errcode.Annotatef(err, "%s %s", op, path)
}
