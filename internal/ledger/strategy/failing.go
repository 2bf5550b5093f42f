package strategy

import (
	"context"

	"las/internal/ledger/models"
	"las/internal/ledger/ports"
)

// External stands in for liability types accounted by a separate system.
// That integration is not wired, so every item soft-fails without touching
// storage.
type External struct{}

func (External) Add(context.Context, ports.LedgerStore, AddRequest) (models.Result, error) {
	return models.Failed(), nil
}

func (External) Cancel(context.Context, ports.LedgerStore, CancelRequest) (models.Result, error) {
	return models.Failed(), nil
}

func (External) Edit(context.Context, ports.LedgerStore, EditRequest) (models.Result, error) {
	return models.Failed(), nil
}

// Unknown answers items whose liability type is missing or unrecognized.
type Unknown struct{}

func (Unknown) Add(context.Context, ports.LedgerStore, AddRequest) (models.Result, error) {
	return models.Failed(), nil
}

func (Unknown) Cancel(context.Context, ports.LedgerStore, CancelRequest) (models.Result, error) {
	return models.Failed(), nil
}

func (Unknown) Edit(context.Context, ports.LedgerStore, EditRequest) (models.Result, error) {
	return models.Failed(), nil
}
