package lockmgr

import (
	"bytes"
	"time"

	"github.com/ValentinKolb/dTable/lib/db"
	"github.com/ValentinKolb/dTable/lib/store"
)

// lockTable is the table all lockmgr records live in. Record layout:
// {tag, name, owner, acquired_at}.
const lockTable = "sys_locks"

var lockTableAttributes = []string{"name", "owner", "acquired_at"}

type lockMgmImpl struct {
	store store.ITableStore
}

// NewLockManager creates a lockmgr provider on top of the given table store.
// If the store supports provisioning, the lockmgr table is registered here;
// registration is idempotent, so creating multiple managers on one store is
// safe.
func NewLockManager(s store.ITableStore) (ILockManager, error) {
	if prov, ok := s.(store.ITableProvisioner); ok {
		if err := prov.CreateTable(lockTable, lockTableAttributes); err != nil {
			return nil, err
		}
	}
	return &lockMgmImpl{
		store: s,
	}, nil
}

func (lp *lockMgmImpl) AcquireLock(name string) (bool, []byte, error) {
	// Generate owner ID (256 byte random value)
	ownerID, err := generateOwnerID()
	if err != nil {
		return false, nil, err
	}

	// Try to acquire the lock. Insert only succeeds if no record exists under
	// the name yet, and the existence check and write are one transaction, so
	// exactly one contender wins.
	rec := db.Record{lockTable, name, ownerID, time.Now().Unix()}
	if _, err = lp.store.Insert(lockTable, rec); err != nil {
		if store.HasCode(err, store.RetCAlreadyExists) {
			// Lock is held by someone else
			return false, nil, nil
		}
		return false, nil, err
	}
	return true, ownerID, nil
}

func (lp *lockMgmImpl) ReleaseLock(name string, ownerID []byte) (bool, error) {
	// Check if the lock exists
	rec, ok, err := lp.store.Get(lockTable, name)
	if err != nil || !ok {
		return err == nil, err
	}

	// Check if the lock is owned by us
	holder, ok := rec[2].([]byte)
	if !ok || !bytes.Equal(ownerID, holder) {
		return false, nil
	}

	// Release the lock
	_, err = lp.store.Delete(lockTable, name)
	return err == nil, err
}
