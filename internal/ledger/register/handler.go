// Package register runs add, cancel and edit batches. Each batch is one
// transaction: a soft failure answers one item with success=false, while any
// storage error rolls back every item of the batch.
package register

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"las/internal/ledger/metrics"
	"las/internal/ledger/models"
	"las/internal/ledger/ports"
	"las/internal/ledger/receipt"
	"las/internal/ledger/strategy"
	"las/internal/ledger/subject"
	"las/pkg/platform/sentinel"
)

const (
	OperationAdd    = "add"
	OperationCancel = "cancel"
	OperationEdit   = "edit"
)

// EditItem is one element of an edit batch.
type EditItem struct {
	Receipt   *receipt.Resolver
	NewAmount decimal.Decimal
}

// Handler executes batches against a transactional store.
type Handler struct {
	tx         ports.TxRunner
	dispatcher *strategy.Dispatcher
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

type Option func(*Handler)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

func New(tx ports.TxRunner, opts ...Option) (*Handler, error) {
	if tx == nil {
		return nil, errors.New("transaction runner is required")
	}
	h := &Handler{
		tx:         tx,
		dispatcher: strategy.NewDispatcher(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// outcome is one item's result plus the strategy that produced it.
type outcome struct {
	result models.Result
	kind   strategy.Kind
}

// Add appends every item to subj's lineages in input order.
func (h *Handler) Add(ctx context.Context, actor models.User, subj *subject.Handle, items []models.AddItem) ([]models.Result, error) {
	var outcomes []outcome
	err := h.tx.RunInTx(ctx, func(ctx context.Context, st ports.LedgerStore) error {
		outcomes = make([]outcome, 0, len(items))
		// A fresh handle per attempt keeps a rolled back subject id from leaking.
		handle := subject.Resolve(subj.ExternalID, subj.ExternalDescription)
		for i, item := range items {
			lt, err := findLiabilityType(ctx, st, item.LiabilityTypeID)
			if err != nil {
				return err
			}
			// Receipts minted under another instance's type could never be
			// cancelled or edited by their owner.
			if lt != nil && lt.InstanceID != actor.InstanceID {
				lt = nil
			}
			kind, strat := h.dispatcher.For(lt)
			h.logger.DebugContext(ctx, "add item",
				"index", i,
				"subject", handle.LogValue(),
				"liability_type_id", item.LiabilityTypeID,
				"strategy", string(kind),
				"amount", item.IncrementAmount.String(),
			)
			res, err := strat.Add(ctx, st, strategy.AddRequest{
				Actor:         actor,
				Subject:       handle,
				LiabilityType: lt,
				Amount:        item.IncrementAmount,
			})
			if err != nil {
				return fmt.Errorf("add item %d: %w", i, err)
			}
			outcomes = append(outcomes, outcome{result: res, kind: kind})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return h.finish(ctx, OperationAdd, actor, 1, outcomes), nil
}

// Cancel reverses the latest entry behind each receipt. Resolvers are
// expected to have passed receipt.Validate.
func (h *Handler) Cancel(ctx context.Context, actor models.User, receipts []*receipt.Resolver) ([]models.Result, error) {
	var outcomes []outcome
	err := h.tx.RunInTx(ctx, func(ctx context.Context, st ports.LedgerStore) error {
		outcomes = make([]outcome, 0, len(receipts))
		for i, r := range receipts {
			original, lt, err := resolveOriginal(ctx, st, r)
			if err != nil {
				return fmt.Errorf("cancel item %d: %w", i, err)
			}
			kind, strat := h.dispatcher.For(lt)
			h.logger.DebugContext(ctx, "cancel item",
				"index", i,
				"receipt_number", r.Text(),
				"strategy", string(kind),
			)
			res, err := strat.Cancel(ctx, st, strategy.CancelRequest{
				Actor:         actor,
				Original:      original,
				LiabilityType: lt,
			})
			if err != nil {
				return fmt.Errorf("cancel item %d: %w", i, err)
			}
			outcomes = append(outcomes, outcome{result: res, kind: kind})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return h.finish(ctx, OperationCancel, actor, 1, outcomes), nil
}

// Edit replaces the amount behind each receipt, keeping the receipt number.
func (h *Handler) Edit(ctx context.Context, actor models.User, items []EditItem) ([]models.Result, error) {
	var outcomes []outcome
	err := h.tx.RunInTx(ctx, func(ctx context.Context, st ports.LedgerStore) error {
		outcomes = make([]outcome, 0, len(items))
		for i, item := range items {
			original, lt, err := resolveOriginal(ctx, st, item.Receipt)
			if err != nil {
				return fmt.Errorf("edit item %d: %w", i, err)
			}
			kind, strat := h.dispatcher.For(lt)
			h.logger.DebugContext(ctx, "edit item",
				"index", i,
				"receipt_number", item.Receipt.Text(),
				"strategy", string(kind),
				"new_amount", item.NewAmount.String(),
			)
			res, err := strat.Edit(ctx, st, strategy.EditRequest{
				Actor:         actor,
				Original:      original,
				LiabilityType: lt,
				NewAmount:     item.NewAmount,
			})
			if err != nil {
				return fmt.Errorf("edit item %d: %w", i, err)
			}
			outcomes = append(outcomes, outcome{result: res, kind: kind})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	// An edit appends a reversal and a replacement.
	return h.finish(ctx, OperationEdit, actor, 2, outcomes), nil
}

func (h *Handler) finish(ctx context.Context, operation string, actor models.User, entriesPerSuccess int, outcomes []outcome) []models.Result {
	results := make([]models.Result, len(outcomes))
	succeeded := 0
	for i, o := range outcomes {
		results[i] = o.result
		if o.result.Success {
			succeeded++
			continue
		}
		h.metrics.IncrementSoftFailure(operation, string(o.kind))
	}
	h.metrics.IncrementEntries(operation, succeeded*entriesPerSuccess)
	h.logger.DebugContext(ctx, operation+" batch committed",
		"user_id", actor.ID,
		"instance_id", actor.InstanceID,
		"items", len(results),
		"succeeded", succeeded,
	)
	return results
}

// findLiabilityType returns nil for a missing type so it dispatches to the
// unknown strategy.
func findLiabilityType(ctx context.Context, st ports.LedgerStore, id models.LiabilityTypeID) (*models.LiabilityType, error) {
	lt, err := st.FindLiabilityType(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find liability type %d: %w", id, err)
	}
	return lt, nil
}

// resolveOriginal reads the receipt's latest entry inside the transaction.
// The resolver's memoized entry may predate the lock, so it is not reused.
func resolveOriginal(ctx context.Context, st ports.LedgerStore, r *receipt.Resolver) (*models.Entry, *models.LiabilityType, error) {
	original, err := st.FindLatestEntryByReceipt(ctx, r.Text())
	if err != nil {
		return nil, nil, fmt.Errorf("find entry %s: %w", r.Text(), err)
	}
	lt, err := findLiabilityType(ctx, st, original.LiabilityTypeID)
	if err != nil {
		return nil, nil, err
	}
	return original, lt, nil
}
