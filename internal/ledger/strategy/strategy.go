// Package strategy selects and runs the per-item add, cancel and edit
// behavior for a liability type.
package strategy

import (
	"context"

	"github.com/shopspring/decimal"

	"las/internal/ledger/models"
	"las/internal/ledger/ports"
	"las/internal/ledger/subject"
)

// Kind is the dispatch key derived from a liability type.
type Kind string

const (
	KindInternal Kind = "internal"
	KindExternal Kind = "external"
	KindUnknown  Kind = "unknown"
)

// KindFor maps a liability type to its Kind. A missing type, or one whose
// type_running is not recognized, is KindUnknown.
func KindFor(lt *models.LiabilityType) Kind {
	if lt == nil {
		return KindUnknown
	}
	switch lt.TypeRunning {
	case models.TypeRunningInternal:
		return KindInternal
	case models.TypeRunningExternal:
		return KindExternal
	default:
		return KindUnknown
	}
}

// AddRequest is one add item with its entities resolved.
type AddRequest struct {
	Actor         models.User
	Subject       *subject.Handle
	LiabilityType *models.LiabilityType
	Amount        decimal.Decimal
	// ForcedReceiptNumber replaces minting; only edit sets it.
	ForcedReceiptNumber string
}

// CancelRequest reverses Original.
type CancelRequest struct {
	Actor         models.User
	Original      *models.Entry
	LiabilityType *models.LiabilityType
}

// EditRequest replaces Original's amount with NewAmount.
type EditRequest struct {
	Actor         models.User
	Original      *models.Entry
	LiabilityType *models.LiabilityType
	NewAmount     decimal.Decimal
}

// Strategy performs one item of a batch against a transactional store.
// A soft failure is a models.Failed() result with a nil error; an error
// aborts the whole batch.
type Strategy interface {
	Add(ctx context.Context, st ports.LedgerStore, req AddRequest) (models.Result, error)
	Cancel(ctx context.Context, st ports.LedgerStore, req CancelRequest) (models.Result, error)
	Edit(ctx context.Context, st ports.LedgerStore, req EditRequest) (models.Result, error)
}

// Dispatcher maps a Kind to its Strategy. Kinds without a registered
// strategy fall back to KindUnknown.
type Dispatcher struct {
	strategies map[Kind]Strategy
}

// NewDispatcher registers the built-in strategies.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{strategies: map[Kind]Strategy{
		KindInternal: Internal{},
		KindExternal: External{},
		KindUnknown:  Unknown{},
	}}
}

// For returns the kind and strategy for lt.
func (d *Dispatcher) For(lt *models.LiabilityType) (Kind, Strategy) {
	kind := KindFor(lt)
	if s, ok := d.strategies[kind]; ok {
		return kind, s
	}
	return KindUnknown, d.strategies[KindUnknown]
}
