package changeset

import (
	"context"
	"encoding/json"
	"os"
	"syscall"
	"time"

	"github.com/gofrs/flock"

	"github.com/spraguehouse/workspace-release/internal/errs"
	"github.com/spraguehouse/workspace-release/internal/fsio"
	"github.com/spraguehouse/workspace-release/internal/logging"
)

// staleLockAge is how old an advisory lock's recorded timestamp must be,
// with its owning pid no longer alive, before a new holder may break it
// (spec.md §4.4: "a lock older than 60 seconds with dead pid may be
// broken").
const staleLockAge = 60 * time.Second

// lockInfo is the JSON content written inside the lock file. flock(2) only
// tells us whether the lock is held, not who holds it, so the holder's pid
// and acquisition time are recorded in the file itself to support stale
// detection across process crashes.
type lockInfo struct {
	PID        int       `json:"pid"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// lock acquires the changesets directory's advisory lock, breaking it
// first if it is held by a dead process past staleLockAge. It returns an
// unlock function the caller must call exactly once.
func (s *Store) lock(ctx context.Context) (func(), error) {
	if err := fsio.MkdirAll(ctx, s.ChangesetsDir); err != nil {
		return nil, err
	}

	lockPath := s.ChangesetsDir + "/.lock"
	fl := flock.New(lockPath)

	locked, err := fl.TryLock()
	if err != nil {
		return nil, errs.Wrap(errs.FileSystemTransient, err, "acquiring changeset lock %s", lockPath)
	}
	if !locked {
		if s.breakStaleLock(lockPath) {
			locked, err = fl.TryLock()
			if err != nil {
				return nil, errs.Wrap(errs.FileSystemTransient, err, "acquiring changeset lock %s after breaking stale lock", lockPath)
			}
		}
	}
	if !locked {
		return nil, errs.New(errs.FileSystemTransient, "changeset store is locked by another process (%s)", lockPath)
	}

	info := lockInfo{PID: os.Getpid(), AcquiredAt: time.Now().UTC()}
	data, _ := json.Marshal(info)
	if err := os.WriteFile(lockPath, data, 0o644); err != nil {
		_ = fl.Unlock()
		return nil, errs.Wrap(errs.FileSystemTransient, err, "writing lock metadata %s", lockPath)
	}

	return func() {
		if err := fl.Unlock(); err != nil {
			logging.Changeset.Warn().Err(err).Str("path", lockPath).Msg("failed to release changeset lock")
		}
	}, nil
}

// breakStaleLock reads the lock file's recorded owner and reports whether
// it looks abandoned: older than staleLockAge and the pid is no longer
// alive. It does not itself remove the flock(2) lock (the OS releases that
// when the owning process dies); it only decides whether a retry is
// worthwhile.
func (s *Store) breakStaleLock(lockPath string) bool {
	data, err := os.ReadFile(lockPath)
	if err != nil {
		return false
	}
	var info lockInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return false
	}
	if time.Since(info.AcquiredAt) < staleLockAge {
		return false
	}
	return !pidAlive(info.PID)
}

func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// On Unix, FindProcess always succeeds; signal 0 probes liveness
	// without affecting the target.
	return process.Signal(syscall.Signal(0)) == nil
}
