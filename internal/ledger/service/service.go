package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"las/internal/ledger/lock"
	"las/internal/ledger/metrics"
	"las/internal/ledger/models"
	"las/internal/ledger/receipt"
	"las/internal/ledger/register"
	"las/internal/ledger/subject"
	dErrors "las/pkg/domain-errors"
	"las/pkg/platform/sentinel"
)

// Register runs one batch in one transaction.
type Register interface {
	Add(ctx context.Context, actor models.User, subj *subject.Handle, items []models.AddItem) ([]models.Result, error)
	Cancel(ctx context.Context, actor models.User, receipts []*receipt.Resolver) ([]models.Result, error)
	Edit(ctx context.Context, actor models.User, items []register.EditItem) ([]models.Result, error)
}

// Locker hands out per-subject leases.
type Locker interface {
	Acquire(ctx context.Context, key string) (lock.Lease, error)
}

// AddRequest is an add call as the boundary layer receives it.
type AddRequest struct {
	RequestID *int64             `json:"request_id,omitempty"`
	Subject   subject.Descriptor `json:"subject"`
	Payload   []models.AddItem   `json:"payload"`
}

// AddResponse echoes the request id next to the per-item results.
type AddResponse struct {
	RequestID *int64          `json:"request_id"`
	Payload   []models.Result `json:"payload"`
}

// Service is the ledger facade. Every write runs in one transaction under the
// locks of the (instance, subject) pairs it touches, so writers of one lineage
// are linearized while different subjects proceed in parallel.
type Service struct {
	register Register
	locker   Locker
	reader   Reader
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(reg Register, locker Locker, reader Reader, opts ...Option) (*Service, error) {
	if reg == nil {
		return nil, errors.New("register is required")
	}
	if locker == nil {
		return nil, errors.New("locker is required")
	}
	if reader == nil {
		return nil, errors.New("reader is required")
	}
	s := &Service{
		register: reg,
		locker:   locker,
		reader:   reader,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Add appends req.Payload to the subject's lineages under the subject lock.
func (s *Service) Add(ctx context.Context, actor models.User, req AddRequest) (*AddResponse, error) {
	if err := requireInstance(actor); err != nil {
		return nil, err
	}
	if err := req.Subject.Validate(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "invalid subject")
	}
	if len(req.Payload) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "payload must not be empty")
	}
	for i, item := range req.Payload {
		if err := models.ValidateAmount(item.IncrementAmount); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeValidation, fmt.Sprintf("invalid increment_amount at payload[%d]", i))
		}
	}

	results, err := s.withLocks(ctx, register.OperationAdd, actor, []string{req.Subject.ExternalID}, func(ctx context.Context) ([]models.Result, error) {
		return s.register.Add(ctx, actor, subject.FromDescriptor(req.Subject), req.Payload)
	})
	if err != nil {
		return nil, err
	}
	return &AddResponse{RequestID: req.RequestID, Payload: results}, nil
}

// Cancel reverses every receipt in one transaction while holding the lock of
// every subject the receipts belong to. Results are in input order.
func (s *Service) Cancel(ctx context.Context, actor models.User, receipts []*receipt.Resolver) ([]models.Result, error) {
	if err := requireInstance(actor); err != nil {
		return nil, err
	}
	if len(receipts) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "payload must not be empty")
	}
	subjects, err := owningSubjects(ctx, receipts)
	if err != nil {
		return nil, err
	}
	return s.withLocks(ctx, register.OperationCancel, actor, subjects, func(ctx context.Context) ([]models.Result, error) {
		return s.register.Cancel(ctx, actor, receipts)
	})
}

// Edit replaces the amount behind every receipt, locked and committed like Cancel.
func (s *Service) Edit(ctx context.Context, actor models.User, items []register.EditItem) ([]models.Result, error) {
	if err := requireInstance(actor); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "payload must not be empty")
	}
	receipts := make([]*receipt.Resolver, len(items))
	for i, item := range items {
		if err := models.ValidateAmount(item.NewAmount); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeValidation, fmt.Sprintf("invalid new amount at payload[%d]", i))
		}
		receipts[i] = item.Receipt
	}
	subjects, err := owningSubjects(ctx, receipts)
	if err != nil {
		return nil, err
	}
	return s.withLocks(ctx, register.OperationEdit, actor, subjects, func(ctx context.Context) ([]models.Result, error) {
		return s.register.Edit(ctx, actor, items)
	})
}

// ResolveReceipts decodes and validates receipt numbers for Cancel or Edit.
// Every item is checked; the returned error lists each failure.
func (s *Service) ResolveReceipts(ctx context.Context, actor models.User, numbers []string) ([]*receipt.Resolver, error) {
	if err := requireInstance(actor); err != nil {
		return nil, err
	}
	if len(numbers) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "payload must not be empty")
	}
	return receipt.ResolveAll(ctx, s.reader, actor.InstanceID, numbers)
}

// Balance returns the running total of one lineage. It takes no lock and
// never creates the subject.
func (s *Service) Balance(ctx context.Context, actor models.User, externalID string, liabilityTypeID models.LiabilityTypeID) (decimal.Decimal, error) {
	if err := requireInstance(actor); err != nil {
		return decimal.Zero, err
	}
	if err := (subject.Descriptor{ExternalID: externalID}).Validate(); err != nil {
		return decimal.Zero, dErrors.Wrap(err, dErrors.CodeValidation, "invalid subject")
	}
	subj, err := s.reader.FindSubjectByExternalID(ctx, externalID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load subject")
	}
	total, err := subject.RunningTotal(ctx, s.reader, models.LineageKey{
		InstanceID:      actor.InstanceID,
		SubjectID:       subj.ID,
		LiabilityTypeID: liabilityTypeID,
	})
	if err != nil {
		return decimal.Zero, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read running total")
	}
	return total, nil
}

// withLocks runs fn while holding the lock of every subject in externalIDs.
// Locks are taken in sorted key order so overlapping batches cannot deadlock,
// and released in reverse on every path. fn's context is cancelled if any
// lease is lost.
func (s *Service) withLocks(ctx context.Context, operation string, actor models.User, externalIDs []string, fn func(ctx context.Context) ([]models.Result, error)) ([]models.Result, error) {
	keys := make([]string, 0, len(externalIDs))
	for _, id := range externalIDs {
		keys = append(keys, lock.Key(actor.InstanceID, id))
	}
	slices.Sort(keys)
	keys = slices.Compact(keys)

	logger := s.logger.With(
		"operation", operation,
		"user_id", actor.ID,
		"username", actor.Username,
		"instance_id", actor.InstanceID,
		"subject_external_ids", externalIDs,
	)

	leases := make([]lock.Lease, 0, len(keys))
	defer func() {
		for _, lease := range slices.Backward(leases) {
			if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
				logger.WarnContext(ctx, "failed to release subject lock", "lock_key", lease.Key(), "error", err)
			}
		}
	}()

	waitStart := time.Now()
	for _, key := range keys {
		lease, err := s.locker.Acquire(ctx, key)
		if err != nil {
			s.metrics.ObserveLockWait(time.Since(waitStart))
			logger.ErrorContext(ctx, "failed to acquire subject lock", "lock_key", key, "error", err)
			return nil, lockError(err)
		}
		leases = append(leases, lease)
	}
	s.metrics.ObserveLockWait(time.Since(waitStart))

	opCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	for _, lease := range leases {
		go func() {
			select {
			case <-lease.Lost():
				cancel(sentinel.ErrLockNotHeld)
			case <-opCtx.Done():
			}
		}()
	}

	logger.InfoContext(ctx, "ledger batch started", "lock_keys", keys)
	start := time.Now()
	results, err := fn(opCtx)
	s.metrics.ObserveBatch(operation, time.Since(start))
	if err != nil {
		if cause := context.Cause(opCtx); errors.Is(cause, sentinel.ErrLockNotHeld) {
			err = fmt.Errorf("%w: %w", cause, err)
		}
		logger.ErrorContext(ctx, "ledger batch failed", "error", err)
		return nil, batchError(err)
	}
	logger.InfoContext(ctx, "ledger batch committed",
		"items", len(results),
		"results", models.Results(results),
	)
	return results, nil
}

// owningSubjects returns the distinct external ids of the subjects behind
// receipts.
func owningSubjects(ctx context.Context, receipts []*receipt.Resolver) ([]string, error) {
	var ids []string
	for _, r := range receipts {
		subj, err := r.Subject(ctx)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve receipt subject")
		}
		if subj == nil {
			return nil, dErrors.New(dErrors.CodeUnknownReceipt, fmt.Sprintf("receipt_number %s does not exist", r.Text()))
		}
		if !slices.Contains(ids, subj.ExternalID) {
			ids = append(ids, subj.ExternalID)
		}
	}
	return ids, nil
}

func requireInstance(actor models.User) error {
	if !actor.HasInstance() {
		return dErrors.New(dErrors.CodeValidation, "acting user is not bound to an instance")
	}
	return nil
}

func lockError(err error) error {
	switch {
	case errors.Is(err, lock.ErrWaitTimeout), errors.Is(err, context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "timed out waiting for subject lock")
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "lock service unavailable")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to acquire subject lock")
	}
}

func batchError(err error) error {
	if _, ok := dErrors.GetCode(err); ok {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrLockNotHeld):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "subject lock lost during batch")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "ledger write conflict")
	case errors.Is(err, context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "ledger batch timed out")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record ledger entries")
	}
}
