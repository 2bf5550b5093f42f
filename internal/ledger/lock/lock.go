// Package lock provides the exclusive lease that serializes writers of one
// (instance, subject) pair.
package lock

import (
	"context"
	"errors"
	"fmt"

	"las/internal/ledger/models"
)

// ErrWaitTimeout is returned when a lease could not be obtained before the
// wait timeout elapsed.
var ErrWaitTimeout = errors.New("lock wait timed out")

// Lease is a held lock.
type Lease interface {
	Key() string
	// Lost is closed if the lease expires or is taken over before Release.
	Lost() <-chan struct{}
	// Release gives the lock up. It is safe to call more than once.
	Release(ctx context.Context) error
}

// Locker hands out leases. Acquire blocks until the lease is granted, ctx
// ends, or the implementation's wait timeout elapses.
type Locker interface {
	Acquire(ctx context.Context, key string) (Lease, error)
}

// Key names the lock guarding every lineage of a subject inside an instance.
func Key(instanceID models.InstanceID, subjectExternalID string) string {
	return fmt.Sprintf("%d_%s", instanceID, subjectExternalID)
}
