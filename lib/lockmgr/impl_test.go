package lockmgr

import (
	"sync"
	"testing"

	"github.com/ValentinKolb/dTable/lib/db"
	"github.com/ValentinKolb/dTable/lib/db/engines/rowan"
	"github.com/ValentinKolb/dTable/lib/store/lstore"
)

func newTestManager(t *testing.T) ILockManager {
	t.Helper()
	s := lstore.NewLocalStore(func() db.TableDB { return rowan.NewRowanDB(nil) })
	mgr, err := NewLockManager(s)
	if err != nil {
		t.Fatalf("NewLockManager failed: %v", err)
	}
	return mgr
}

func TestAcquireAndRelease(t *testing.T) {
	mgr := newTestManager(t)

	ok, ownerID, err := mgr.AcquireLock("resource:1")
	if err != nil {
		t.Fatalf("AcquireLock failed: %v", err)
	}
	if !ok || len(ownerID) == 0 {
		t.Fatalf("expected to acquire the lock, got ok=%t owner=%v", ok, ownerID)
	}

	released, err := mgr.ReleaseLock("resource:1", ownerID)
	if err != nil {
		t.Fatalf("ReleaseLock failed: %v", err)
	}
	if !released {
		t.Error("expected the lock to be released")
	}

	// The lock is free again
	ok, _, err = mgr.AcquireLock("resource:1")
	if err != nil {
		t.Fatalf("AcquireLock failed: %v", err)
	}
	if !ok {
		t.Error("expected to re-acquire the released lock")
	}
}

func TestAcquireHeldLockFails(t *testing.T) {
	mgr := newTestManager(t)

	ok, _, err := mgr.AcquireLock("resource:1")
	if err != nil || !ok {
		t.Fatalf("initial acquire failed: ok=%t err=%v", ok, err)
	}

	ok, ownerID, err := mgr.AcquireLock("resource:1")
	if err != nil {
		t.Fatalf("second acquire errored: %v", err)
	}
	if ok || ownerID != nil {
		t.Errorf("expected the held lock to be refused, got ok=%t owner=%v", ok, ownerID)
	}
}

func TestReleaseRequiresOwnership(t *testing.T) {
	mgr := newTestManager(t)

	ok, ownerID, err := mgr.AcquireLock("resource:1")
	if err != nil || !ok {
		t.Fatalf("acquire failed: ok=%t err=%v", ok, err)
	}

	// A foreign owner ID must not release the lock
	released, err := mgr.ReleaseLock("resource:1", []byte("not the owner"))
	if err != nil {
		t.Fatalf("ReleaseLock failed: %v", err)
	}
	if released {
		t.Error("lock released by a non-owner")
	}

	// The legitimate owner still can
	released, err = mgr.ReleaseLock("resource:1", ownerID)
	if err != nil || !released {
		t.Errorf("owner could not release: ok=%t err=%v", released, err)
	}
}

func TestReleaseAbsentLockSucceeds(t *testing.T) {
	mgr := newTestManager(t)

	released, err := mgr.ReleaseLock("resource:404", []byte("whoever"))
	if err != nil {
		t.Fatalf("ReleaseLock failed: %v", err)
	}
	if !released {
		t.Error("releasing an absent lock must succeed")
	}
}

func TestIndependentLocks(t *testing.T) {
	mgr := newTestManager(t)

	ok, _, err := mgr.AcquireLock("resource:a")
	if err != nil || !ok {
		t.Fatalf("acquire a failed: ok=%t err=%v", ok, err)
	}
	ok, _, err = mgr.AcquireLock("resource:b")
	if err != nil || !ok {
		t.Errorf("acquire b failed although a different name: ok=%t err=%v", ok, err)
	}
}

// TestConcurrentAcquire verifies that exactly one of many contenders wins.
func TestConcurrentAcquire(t *testing.T) {
	mgr := newTestManager(t)

	const contenders = 16
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, _, err := mgr.AcquireLock("resource:contended")
			if err != nil {
				t.Errorf("AcquireLock failed: %v", err)
				return
			}
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("expected exactly one winner, got %d", wins)
	}
}
