package service

import (
	"context"

	"las/internal/ledger/models"
	"las/internal/ledger/receipt"
	"las/internal/ledger/subject"
)

// Reader is the read-only storage used outside of batches.
type Reader interface {
	receipt.Lookup
	subject.EntryReader
	FindSubjectByExternalID(ctx context.Context, externalID string) (*models.Subject, error)
}
