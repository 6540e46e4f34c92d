package lock

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
)

func TestMutexMap_LockUnlock(t *testing.T) {
	m := NewMutexMap()

	m.Lock("tasks.yaml")
	m.Unlock("tasks.yaml")

	// Should be able to lock again
	m.Lock("tasks.yaml")
	m.Unlock("tasks.yaml")
}

func TestMutexMap_DifferentKeys(t *testing.T) {
	m := NewMutexMap()

	done := make(chan struct{})

	m.Lock("tasks.yaml")
	go func() {
		// barriers.yaml should not be blocked by tasks.yaml
		m.Lock("barriers.yaml")
		m.Unlock("barriers.yaml")
		close(done)
	}()

	<-done
	m.Unlock("tasks.yaml")
}

func TestMutexMap_Concurrent(t *testing.T) {
	m := NewMutexMap()
	var counter int64

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Lock("shared")
			atomic.AddInt64(&counter, 1)
			m.Unlock("shared")
		}()
	}
	wg.Wait()

	if counter != 100 {
		t.Errorf("expected counter=100, got %d", counter)
	}
}

func TestFileLock_TryLock(t *testing.T) {
	dir := t.TempDir()
	lockPath := filepath.Join(dir, "monitor.lock")

	fl := NewFileLock(lockPath)
	if err := fl.TryLock(); err != nil {
		t.Fatalf("TryLock failed: %v", err)
	}
	defer fl.Unlock()
}

func TestFileLock_DoubleLockRejected(t *testing.T) {
	dir := t.TempDir()
	lockPath := filepath.Join(dir, "monitor.lock")

	fl1 := NewFileLock(lockPath)
	if err := fl1.TryLock(); err != nil {
		t.Fatalf("first TryLock failed: %v", err)
	}
	defer fl1.Unlock()

	fl2 := NewFileLock(lockPath)
	if err := fl2.TryLock(); err == nil {
		fl2.Unlock()
		t.Fatal("second TryLock should fail while first holds the lock")
	}
}

func TestFileLock_UnlockThenRelock(t *testing.T) {
	dir := t.TempDir()
	lockPath := filepath.Join(dir, "monitor.lock")

	fl := NewFileLock(lockPath)
	if err := fl.TryLock(); err != nil {
		t.Fatalf("TryLock failed: %v", err)
	}
	if err := fl.Unlock(); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}

	if err := fl.TryLock(); err != nil {
		t.Fatalf("relock after unlock failed: %v", err)
	}
	fl.Unlock()
}

func TestProbe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.lock")

	if held, _ := Probe(path); held {
		t.Error("probe on missing lock file reported held")
	}

	fl := NewFileLock(path)
	if err := fl.TryLock(); err != nil {
		t.Fatal(err)
	}

	held, pid := Probe(path)
	if !held {
		t.Error("probe did not see held lock")
	}
	if pid != os.Getpid() {
		t.Errorf("probe pid = %d, want %d", pid, os.Getpid())
	}

	if err := fl.Unlock(); err != nil {
		t.Fatal(err)
	}
	if held, _ := Probe(path); held {
		t.Error("probe reported held after unlock")
	}
}
