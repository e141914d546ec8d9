package lockmgr

// ILockManager defines the interface for a lockmgr provider.
type ILockManager interface {
	// AcquireLock acquires a lockmgr for the given name.
	// Returns a boolean indicating whether the lockmgr was acquired, an owner ID, and an error if any.
	AcquireLock(name string) (ok bool, ownerID []byte, err error)

	// ReleaseLock releases the lockmgr for the given name.
	// Returns a boolean indicating whether the lockmgr was released, and an error if any.
	// The method will also return true if the lockmgr did not exist.
	ReleaseLock(name string, ownerID []byte) (ok bool, err error)
}
