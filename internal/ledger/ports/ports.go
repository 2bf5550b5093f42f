package ports

import (
	"context"

	"las/internal/ledger/models"
)

// LedgerStore is the storage the ledger engine reads and appends through.
// Lookups of missing records return sentinel.ErrNotFound.
type LedgerStore interface {
	FindInstance(ctx context.Context, id models.InstanceID) (*models.Instance, error)
	FindLiabilityType(ctx context.Context, id models.LiabilityTypeID) (*models.LiabilityType, error)
	FindSubject(ctx context.Context, id models.SubjectID) (*models.Subject, error)
	FindSubjectByExternalID(ctx context.Context, externalID string) (*models.Subject, error)
	FindLatestEntryByReceipt(ctx context.Context, receiptNumber string) (*models.Entry, error)

	// GetOrCreateSubject stores name only when the subject is new.
	GetOrCreateSubject(ctx context.Context, externalID string, name *string) (*models.Subject, error)
	// LatestEntry returns the most recently created entry of a lineage.
	LatestEntry(ctx context.Context, key models.LineageKey) (*models.Entry, error)
	// CreateEntry appends entry, filling ID and CreatedAt. An empty
	// ReceiptNumber is minted from the (instance, liability type) sequence.
	CreateEntry(ctx context.Context, entry *models.Entry) error
}

// TxRunner runs fn inside one atomic transaction. fn must use the ctx and
// store it is given; returning an error rolls every write back.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, store LedgerStore) error) error
}
