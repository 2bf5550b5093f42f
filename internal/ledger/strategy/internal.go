package strategy

import (
	"context"
	"fmt"

	"las/internal/ledger/models"
	"las/internal/ledger/ports"
	"las/internal/ledger/subject"
)

// Internal keeps full ledger semantics locally.
type Internal struct{}

// Add appends amount to the subject's lineage.
func (Internal) Add(ctx context.Context, st ports.LedgerStore, req AddRequest) (models.Result, error) {
	record, err := req.Subject.Materialize(ctx, st)
	if err != nil {
		return models.Result{}, err
	}
	total, err := req.Subject.CurrentTotal(ctx, st, req.Actor.InstanceID, req.LiabilityType.ID)
	if err != nil {
		return models.Result{}, err
	}

	entry := &models.Entry{
		UserID:          req.Actor.ID,
		InstanceID:      req.Actor.InstanceID,
		LiabilityTypeID: req.LiabilityType.ID,
		SubjectID:       record.ID,
		ReceiptNumber:   req.ForcedReceiptNumber,
		AmountRecord:    req.Amount,
		AmountTotal:     total.Add(req.Amount),
	}
	if err := st.CreateEntry(ctx, entry); err != nil {
		return models.Result{}, fmt.Errorf("append add entry: %w", err)
	}
	return models.Succeeded(entry, req.LiabilityType.Postfix), nil
}

// Cancel appends the negation of Original under Original's receipt number,
// attributed to the acting user.
func (Internal) Cancel(ctx context.Context, st ports.LedgerStore, req CancelRequest) (models.Result, error) {
	total, err := subject.RunningTotal(ctx, st, models.LineageKey{
		InstanceID:      req.Actor.InstanceID,
		SubjectID:       req.Original.SubjectID,
		LiabilityTypeID: req.Original.LiabilityTypeID,
	})
	if err != nil {
		return models.Result{}, err
	}

	record := req.Original.AmountRecord.Neg()
	entry := &models.Entry{
		UserID:          req.Actor.ID,
		InstanceID:      req.Actor.InstanceID,
		LiabilityTypeID: req.Original.LiabilityTypeID,
		SubjectID:       req.Original.SubjectID,
		ReceiptNumber:   req.Original.ReceiptNumber,
		AmountRecord:    record,
		AmountTotal:     total.Add(record),
	}
	if err := st.CreateEntry(ctx, entry); err != nil {
		return models.Result{}, fmt.Errorf("append cancel entry: %w", err)
	}
	return models.Succeeded(entry, req.LiabilityType.Postfix), nil
}

// Edit cancels Original and re-adds NewAmount under the same receipt number.
// Only the replacement entry is reported.
func (i Internal) Edit(ctx context.Context, st ports.LedgerStore, req EditRequest) (models.Result, error) {
	if _, err := i.Cancel(ctx, st, CancelRequest{
		Actor:         req.Actor,
		Original:      req.Original,
		LiabilityType: req.LiabilityType,
	}); err != nil {
		return models.Result{}, err
	}

	owner, err := st.FindSubject(ctx, req.Original.SubjectID)
	if err != nil {
		return models.Result{}, fmt.Errorf("load subject of edited entry: %w", err)
	}
	return i.Add(ctx, st, AddRequest{
		Actor:               req.Actor,
		Subject:             subject.FromRecord(owner),
		LiabilityType:       req.LiabilityType,
		Amount:              req.NewAmount,
		ForcedReceiptNumber: req.Original.ReceiptNumber,
	})
}
