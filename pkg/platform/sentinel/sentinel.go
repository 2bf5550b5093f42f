package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and infrastructure layers return
// these (optionally wrapped) so services can translate them into domain errors.
//
// - ErrNotFound: entity does not exist in store
// - ErrConflict: a uniqueness constraint rejected the write
// - ErrUnavailable: backing service (database, lock server) cannot be reached
// - ErrLockNotHeld: the lease was lost or never owned by the caller
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
	ErrLockNotHeld = errors.New("lock not held")
)
