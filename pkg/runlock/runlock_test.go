package runlock

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/tsumugu-mirror/tsumugu/pkg/util"
)

func TestAcquireAndRelease(t *testing.T) {
	dir := t.TempDir()
	expectedLockPath := filepath.Join(dir, LockFileName)

	lock, err := Acquire(context.Background(), dir, "http://example.test/mirror/")
	if err != nil {
		t.Fatalf("expected to acquire lock, but got error: %v", err)
	}
	if _, err := os.Stat(expectedLockPath); os.IsNotExist(err) {
		t.Fatal("lock file was not created after acquiring lock")
	}

	lock.Release()
	if _, err := os.Stat(expectedLockPath); !os.IsNotExist(err) {
		t.Fatal("lock file was not removed after releasing lock")
	}
}

func TestContention(t *testing.T) {
	dir := t.TempDir()

	lock1, err := Acquire(context.Background(), dir, "http://one.test/")
	if err != nil {
		t.Fatalf("first run failed to acquire lock: %v", err)
	}
	defer lock1.Release()

	_, err = Acquire(context.Background(), dir, "http://two.test/")
	if err == nil {
		t.Fatal("second run unexpectedly acquired an active lock")
	}

	var lockErr *ErrLockActive
	if !errors.As(err, &lockErr) {
		t.Fatalf("expected error of type *ErrLockActive, but got %T: %v", err, err)
	}
	if lockErr.Upstream != "http://one.test/" {
		t.Errorf("expected lock error to report upstream 'http://one.test/', got %q", lockErr.Upstream)
	}
}

func TestStaleLockCleanup(t *testing.T) {
	dir := t.TempDir()
	lockPath := filepath.Join(dir, LockFileName)

	staleTimeVal := time.Now().Add(-(staleTimeout + time.Minute))
	staleContent := LockContent{
		PID:        12345,
		Hostname:   "stale-host",
		LastUpdate: staleTimeVal,
		Nonce:      "stale-nonce",
		Upstream:   "http://stale.test/",
	}
	data, _ := json.Marshal(staleContent)
	if err := os.WriteFile(lockPath, data, util.FilePerms); err != nil {
		t.Fatalf("failed to create stale lock file: %v", err)
	}

	lock, err := Acquire(context.Background(), dir, "http://new.test/")
	if err != nil {
		t.Fatalf("failed to acquire stale lock: %v", err)
	}
	defer lock.Release()

	content, err := readLockContentSafely(lockPath)
	if err != nil {
		t.Fatalf("failed to read content of newly acquired lock: %v", err)
	}
	if content.Upstream != "http://new.test/" {
		t.Errorf("expected new lock to have upstream 'http://new.test/', got %q", content.Upstream)
	}
}

func TestStaleLockContention(t *testing.T) {
	dir := t.TempDir()
	lockPath := filepath.Join(dir, LockFileName)

	staleTimeVal := time.Now().Add(-(staleTimeout + time.Minute))
	staleContent := LockContent{
		PID:        12345,
		Hostname:   "stale-host",
		LastUpdate: staleTimeVal,
		Nonce:      "stale-nonce",
		Upstream:   "http://stale.test/",
	}
	data, _ := json.Marshal(staleContent)
	if err := os.WriteFile(lockPath, data, util.FilePerms); err != nil {
		t.Fatalf("failed to create stale lock file: %v", err)
	}

	var wg sync.WaitGroup
	results := make(chan error, 2)
	acquiredLocks := make(chan *Lock, 2)

	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lock, err := Acquire(context.Background(), dir, "http://contender.test/")
			if err != nil {
				results <- err
				return
			}
			acquiredLocks <- lock
		}()
	}
	wg.Wait()
	close(results)
	close(acquiredLocks)

	if len(acquiredLocks) != 1 {
		t.Fatalf("expected exactly one run to acquire the lock, but %d succeeded", len(acquiredLocks))
	}
	for lock := range acquiredLocks {
		lock.Release()
	}
}

func TestHeartbeatEffect(t *testing.T) {
	originalHeartbeat := heartbeatInterval
	originalStale := staleTimeout
	heartbeatInterval = 50 * time.Millisecond
	staleTimeout = 3 * heartbeatInterval
	t.Cleanup(func() {
		heartbeatInterval = originalHeartbeat
		staleTimeout = originalStale
	})

	dir := t.TempDir()

	lock1, err := Acquire(context.Background(), dir, "http://one.test/")
	if err != nil {
		t.Fatalf("failed to acquire initial lock: %v", err)
	}
	defer lock1.Release()

	time.Sleep(heartbeatInterval + 25*time.Millisecond)

	_, err = Acquire(context.Background(), dir, "http://two.test/")
	if err == nil {
		t.Fatal("expected lock acquisition to fail, but it succeeded")
	}
	var lockErr *ErrLockActive
	if !errors.As(err, &lockErr) {
		t.Fatalf("expected ErrLockActive, but got %T", err)
	}
}

func TestReleaseIdempotency(t *testing.T) {
	dir := t.TempDir()
	expectedLockPath := filepath.Join(dir, LockFileName)

	lock, err := Acquire(context.Background(), dir, "http://example.test/")
	if err != nil {
		t.Fatalf("failed to acquire lock: %v", err)
	}
	lock.Release()
	lock.Release()

	if _, err := os.Stat(expectedLockPath); !os.IsNotExist(err) {
		t.Fatal("lock file still exists after multiple releases")
	}
}

func TestReadLockContentSafely(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "test.lock")

	t.Run("reads valid file", func(t *testing.T) {
		hostname, _ := os.Hostname()
		content := LockContent{PID: 1, Upstream: "valid", Hostname: hostname, Nonce: "abc"}
		data, _ := json.Marshal(content)
		if err := os.WriteFile(lockPath, data, util.FilePerms); err != nil {
			t.Fatalf("failed to write test lock file: %v", err)
		}
		readContent, err := readLockContentSafely(lockPath)
		if err != nil {
			t.Fatalf("failed to read valid content: %v", err)
		}
		if readContent.Upstream != "valid" {
			t.Errorf("expected upstream 'valid', got %q", readContent.Upstream)
		}
	})

	t.Run("fails on persistently empty file", func(t *testing.T) {
		if err := os.WriteFile(lockPath, []byte{}, util.FilePerms); err != nil {
			t.Fatalf("failed to write empty file: %v", err)
		}
		_, err := readLockContentSafely(lockPath)
		if err == nil {
			t.Fatal("expected error reading empty file, but got nil")
		}
		if !errors.Is(err, ErrCorruptLockFile) {
			t.Errorf("expected error to be ErrCorruptLockFile, got: %v", err)
		}
	})

	t.Run("fails on persistently corrupt file", func(t *testing.T) {
		if err := os.WriteFile(lockPath, []byte("{corrupt"), util.FilePerms); err != nil {
			t.Fatalf("failed to write corrupt file: %v", err)
		}
		_, err := readLockContentSafely(lockPath)
		if err == nil {
			t.Fatal("expected error reading corrupt file, but got nil")
		}
		if !errors.Is(err, ErrCorruptLockFile) {
			t.Errorf("expected error to be ErrCorruptLockFile, got: %v", err)
		}
	})

	t.Run("succeeds after transient empty state", func(t *testing.T) {
		if err := os.WriteFile(lockPath, []byte{}, util.FilePerms); err != nil {
			t.Fatalf("failed to write initial empty file: %v", err)
		}
		go func() {
			time.Sleep(20 * time.Millisecond)
			hostname, _ := os.Hostname()
			content := LockContent{PID: 2, Upstream: "transient", Hostname: hostname, Nonce: "xyz"}
			data, _ := json.Marshal(content)
			os.WriteFile(lockPath, data, util.FilePerms)
		}()

		readContent, err := readLockContentSafely(lockPath)
		if err != nil {
			t.Fatalf("failed to read transiently empty file: %v", err)
		}
		if readContent.Upstream != "transient" {
			t.Errorf("expected upstream 'transient', got %q", readContent.Upstream)
		}
	})
}

func TestCleanupTempLockFiles(t *testing.T) {
	dir := t.TempDir()
	lockPath := filepath.Join(dir, "test.lock")

	oldTempPath := filepath.Join(dir, "test.lock.123.tmp")
	if err := os.WriteFile(oldTempPath, []byte("old"), 0o644); err != nil {
		t.Fatalf("failed to create old temp file: %v", err)
	}
	oldTime := time.Now().Add(-(staleTimeout + time.Minute))
	if err := os.Chtimes(oldTempPath, oldTime, oldTime); err != nil {
		t.Fatalf("failed to set mod time on old temp file: %v", err)
	}

	newTempPath := filepath.Join(dir, "test.lock.456.tmp")
	if err := os.WriteFile(newTempPath, []byte("new"), 0o644); err != nil {
		t.Fatalf("failed to create new temp file: %v", err)
	}

	cleanupTempLockFiles(lockPath)

	if _, err := os.Stat(oldTempPath); !os.IsNotExist(err) {
		t.Error("expected old temporary file to be deleted, but it still exists")
	}
	if _, err := os.Stat(newTempPath); err != nil {
		t.Errorf("expected new temporary file to be kept, but it was deleted or an error occurred: %v", err)
	}
}
