// Package runlock guards a single LOCAL mirror directory against two
// tsumugu sync runs targeting it concurrently. A sync can run for
// hours against a large archive, so the lock carries a heartbeat and a
// stale-takeover path rather than being a bare create-and-forget file.
package runlock

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tsumugu-mirror/tsumugu/pkg/plog"
	"github.com/tsumugu-mirror/tsumugu/pkg/util"
)

// LockFileName is the lock file created directly under LOCAL. The '~'
// prefix marks it as a tsumugu-owned temporary artifact.
const LockFileName = ".~tsumugu.lock"

// LockContent is the JSON payload written to the lock file.
type LockContent struct {
	PID        int64     `json:"pid"`
	Hostname   string    `json:"hostname"`
	LastUpdate time.Time `json:"lastUpdate"`
	Nonce      string    `json:"nonce,omitempty"`
	Upstream   string    `json:"upstream"`
}

// ErrLockActive is returned when another live run already holds the lock.
type ErrLockActive struct {
	PID       int64
	Hostname  string
	Upstream  string
	TimeSince time.Duration
}

func (e *ErrLockActive) Error() string {
	return fmt.Sprintf("sync already running: PID %d on host %q (upstream %s), last heartbeat %s ago",
		e.PID, e.Hostname, e.Upstream, e.TimeSince.Truncate(time.Second))
}

// ErrLostRace is returned when two processes race to take over the same stale lock.
var ErrLostRace = errors.New("lost race during stale lock takeover")

// ErrCorruptLockFile indicates the lock file on disk is empty or unparseable.
var ErrCorruptLockFile = errors.New("lock file is corrupt or empty")

// Lock is a held runlock. Call Release when the sync finishes, on every
// exit path including error returns.
type Lock struct {
	path    string
	content LockContent
	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
	held    bool
}

var (
	heartbeatInterval = 30 * time.Second
	staleTimeout      = 3 * heartbeatInterval
)

// Acquire takes the lock on localDir, tolerating a stale lock left by a
// crashed prior run. upstream is recorded purely for the ErrLockActive
// message an operator sees when a second run collides with a live one.
func Acquire(ctx context.Context, localDir, upstream string) (*Lock, error) {
	absLockFilePath := filepath.Join(localDir, LockFileName)
	const maxAttempts = 3

	for range maxAttempts {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		lock, err := tryAcquire(absLockFilePath, upstream)
		if err == nil {
			cleanupTempLockFiles(absLockFilePath)
			go lock.heartbeat()
			return lock, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("failed to access lock file: %w", err)
		}

		content, staleErr := readLockContentSafely(absLockFilePath)
		if staleErr != nil {
			if errors.Is(staleErr, ErrCorruptLockFile) {
				plog.Warn("found corrupt lock file, treating as stale", "path", absLockFilePath, "error", staleErr)
			} else {
				time.Sleep(100 * time.Millisecond)
				continue
			}
		} else {
			elapsed := time.Since(content.LastUpdate)
			if elapsed < staleTimeout {
				return nil, &ErrLockActive{
					PID:       content.PID,
					Hostname:  content.Hostname,
					Upstream:  content.Upstream,
					TimeSince: elapsed,
				}
			}
			plog.Warn("found stale lock, attempting takeover", "pid", content.PID, "age", elapsed)
		}

		lock, takeoverErr := attemptStaleLockTakeover(absLockFilePath, upstream)
		if takeoverErr != nil {
			if errors.Is(takeoverErr, ErrLostRace) {
				plog.Debug("lock takeover race lost, retrying acquisition")
			} else {
				plog.Warn("failed to attempt lock takeover, retrying", "error", takeoverErr)
			}
			time.Sleep(100 * time.Millisecond)
			continue
		}

		cleanupTempLockFiles(absLockFilePath)
		go lock.heartbeat()
		return lock, nil
	}

	return nil, fmt.Errorf("failed to acquire lock on %s after %d attempts (contention)", localDir, maxAttempts)
}

func tryAcquire(absLockFilePath, upstream string) (*Lock, error) {
	f, err := os.OpenFile(absLockFilePath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, util.FilePerms)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	nonce, err := generateNonce()
	if err != nil {
		return nil, err
	}
	hostname, err := os.Hostname()
	if err != nil {
		return nil, err
	}

	content := LockContent{
		PID:        int64(os.Getpid()),
		Hostname:   hostname,
		LastUpdate: time.Now().UTC(),
		Nonce:      nonce,
		Upstream:   upstream,
	}

	l := newLock(absLockFilePath, content)
	if err := writeLockContent(f, content); err != nil {
		l.cleanup()
		return nil, err
	}
	return l, nil
}

func newLock(absLockFilePath string, content LockContent) *Lock {
	ctx, cancel := context.WithCancel(context.Background())
	return &Lock{path: absLockFilePath, content: content, ctx: ctx, cancel: cancel, held: true}
}

// Release stops the heartbeat and removes the lock file. Safe to call
// more than once; only the first call has any effect.
func (l *Lock) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.held {
		return
	}
	l.cancel()
	l.cleanup()
	l.held = false
}

func attemptStaleLockTakeover(absLockFilePath, upstream string) (*Lock, error) {
	nonce, err := generateNonce()
	if err != nil {
		return nil, err
	}
	myPID := int64(os.Getpid())
	hostname, err := os.Hostname()
	if err != nil {
		return nil, err
	}

	takeoverContent := LockContent{
		PID:        myPID,
		Hostname:   hostname,
		LastUpdate: time.Now().UTC(),
		Upstream:   upstream,
		Nonce:      nonce,
	}

	if err := updateLockFileAtomic(absLockFilePath, takeoverContent); err != nil {
		return nil, err
	}

	readback, err := readLockContentSafely(absLockFilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read back lock file after takeover: %w", err)
	}
	if readback.PID == myPID && readback.Nonce == nonce {
		plog.Debug("took over stale lock", "path", absLockFilePath)
		return newLock(absLockFilePath, takeoverContent), nil
	}
	return nil, ErrLostRace
}

func (l *Lock) cleanup() {
	if err := os.Remove(l.path); err != nil {
		if !os.IsNotExist(err) {
			plog.Warn("failed to remove lock file", "path", l.path, "error", err)
		}
	} else {
		plog.Debug("lock released", "path", l.path)
	}
}

func (l *Lock) heartbeat() {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-l.ctx.Done():
			return
		case <-ticker.C:
			l.content.LastUpdate = time.Now().UTC()
			if err := updateLockFileAtomic(l.path, l.content); err != nil {
				plog.Warn("heartbeat failed to update lock file", "error", err)
			}
		}
	}
}

func updateLockFileAtomic(absLockFilePath string, content LockContent) error {
	dir := filepath.Dir(absLockFilePath)
	tmpF, err := os.CreateTemp(dir, filepath.Base(absLockFilePath)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp lock file: %w", err)
	}
	defer func() {
		if err := os.Remove(tmpF.Name()); err != nil && !os.IsNotExist(err) {
			plog.Warn("failed to remove temporary lock file", "path", tmpF.Name(), "error", err)
		}
	}()

	if err := writeLockContent(tmpF, content); err != nil {
		tmpF.Close()
		return err
	}
	if err := tmpF.Sync(); err != nil {
		tmpF.Close()
		return err
	}
	if err := tmpF.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpF.Name(), absLockFilePath); err != nil {
		return fmt.Errorf("failed to rename temp file to lock file: %w", err)
	}
	return nil
}

func cleanupTempLockFiles(absLockFilePath string) {
	dir := filepath.Dir(absLockFilePath)
	pattern := filepath.Join(dir, filepath.Base(absLockFilePath)+".*.tmp")

	matches, err := filepath.Glob(pattern)
	if err != nil {
		plog.Warn("failed to glob for temporary lock files", "pattern", pattern, "error", err)
		return
	}

	threshold := time.Now().Add(-staleTimeout)
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil {
			continue
		}
		if info.ModTime().Before(threshold) {
			plog.Debug("removing old temporary lock file", "path", match, "age", time.Since(info.ModTime()))
			if err := os.Remove(match); err != nil && !os.IsNotExist(err) {
				plog.Warn("failed to remove leftover temporary lock file", "path", match, "error", err)
			}
		}
	}
}

func generateNonce() (string, error) {
	nonceBytes := make([]byte, 16)
	if _, err := rand.Read(nonceBytes); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return fmt.Sprintf("%x", nonceBytes), nil
}

func writeLockContent(w io.Writer, content LockContent) error {
	data, err := json.MarshalIndent(content, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal lock content: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write lock content: %w", err)
	}
	return nil
}

func readLockContentSafely(absLockFilePath string) (LockContent, error) {
	var lastErr error
	var lastEmptyOrCorruptErr error
	for range 3 {
		f, err := os.Open(absLockFilePath)
		if err != nil {
			return LockContent{}, err
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			lastErr = err
			time.Sleep(50 * time.Millisecond)
			continue
		}
		if len(data) == 0 {
			lastEmptyOrCorruptErr = fmt.Errorf("lock file is empty")
			time.Sleep(50 * time.Millisecond)
			continue
		}
		var content LockContent
		lastEmptyOrCorruptErr = json.Unmarshal(data, &content)
		if lastEmptyOrCorruptErr != nil {
			time.Sleep(50 * time.Millisecond)
			continue
		}
		return content, nil
	}
	if lastEmptyOrCorruptErr != nil {
		return LockContent{}, fmt.Errorf("%w: %v", ErrCorruptLockFile, lastEmptyOrCorruptErr)
	}
	return LockContent{}, fmt.Errorf("failed to read valid lock content: %w", lastErr)
}
