package store

import (
	"context"
	"sync"
	"time"

	"las/internal/ledger/models"
	"las/internal/ledger/ports"
)

// InMemory is a ledger store for tests and single-process deployments.
// Transactions run one at a time against a private snapshot that replaces
// the committed state only when fn succeeds, so readers never observe a
// partially applied batch.
type InMemory struct {
	writeMu sync.Mutex
	mu      sync.RWMutex
	state   *state
}

// Option configures an InMemory store.
type Option func(*InMemory)

// WithClock sets the timestamp source for created records.
func WithClock(clock func() time.Time) Option {
	return func(s *InMemory) {
		if clock != nil {
			s.state.clock = clock
		}
	}
}

func NewInMemory(opts ...Option) *InMemory {
	s := &InMemory{state: newState(time.Now)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// committed returns the published snapshot; it is never mutated in place.
func (s *InMemory) committed() *state {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// RunInTx runs fn against a snapshot and publishes it on success.
func (s *InMemory) RunInTx(ctx context.Context, fn func(ctx context.Context, store ports.LedgerStore) error) error {
	return s.write(ctx, func(st *state) error {
		return fn(ctx, st)
	})
}

func (s *InMemory) write(ctx context.Context, fn func(st *state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	draft := s.committed().clone()
	if err := fn(draft); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.state = draft
	s.mu.Unlock()
	return nil
}

func (s *InMemory) FindInstance(ctx context.Context, id models.InstanceID) (*models.Instance, error) {
	return s.committed().FindInstance(ctx, id)
}

func (s *InMemory) FindUser(ctx context.Context, id models.UserID) (*models.User, error) {
	return s.committed().FindUser(ctx, id)
}

func (s *InMemory) FindLiabilityType(ctx context.Context, id models.LiabilityTypeID) (*models.LiabilityType, error) {
	return s.committed().FindLiabilityType(ctx, id)
}

func (s *InMemory) FindSubject(ctx context.Context, id models.SubjectID) (*models.Subject, error) {
	return s.committed().FindSubject(ctx, id)
}

func (s *InMemory) FindSubjectByExternalID(ctx context.Context, externalID string) (*models.Subject, error) {
	return s.committed().FindSubjectByExternalID(ctx, externalID)
}

func (s *InMemory) FindLatestEntryByReceipt(ctx context.Context, receiptNumber string) (*models.Entry, error) {
	return s.committed().FindLatestEntryByReceipt(ctx, receiptNumber)
}

func (s *InMemory) LatestEntry(ctx context.Context, key models.LineageKey) (*models.Entry, error) {
	return s.committed().LatestEntry(ctx, key)
}

// ListEntries returns a lineage in creation order.
func (s *InMemory) ListEntries(ctx context.Context, key models.LineageKey) ([]models.Entry, error) {
	return s.committed().ListEntries(ctx, key)
}

func (s *InMemory) GetOrCreateSubject(ctx context.Context, externalID string, name *string) (subject *models.Subject, err error) {
	err = s.write(ctx, func(st *state) error {
		subject, err = st.GetOrCreateSubject(ctx, externalID, name)
		return err
	})
	return subject, err
}

func (s *InMemory) CreateEntry(ctx context.Context, entry *models.Entry) error {
	return s.write(ctx, func(st *state) error {
		return st.CreateEntry(ctx, entry)
	})
}

func (s *InMemory) CreateInstance(ctx context.Context, inst *models.Instance) error {
	return s.write(ctx, func(st *state) error {
		return st.CreateInstance(ctx, inst)
	})
}

func (s *InMemory) CreateUser(ctx context.Context, user *models.User) error {
	return s.write(ctx, func(st *state) error {
		return st.CreateUser(ctx, user)
	})
}

func (s *InMemory) CreateLiabilityType(ctx context.Context, lt *models.LiabilityType) error {
	return s.write(ctx, func(st *state) error {
		return st.CreateLiabilityType(ctx, lt)
	})
}

func (s *InMemory) ReassignLiabilityType(ctx context.Context, id models.LiabilityTypeID, to models.InstanceID) error {
	return s.write(ctx, func(st *state) error {
		return st.ReassignLiabilityType(ctx, id, to)
	})
}

var (
	_ ports.LedgerStore = (*InMemory)(nil)
	_ ports.TxRunner    = (*InMemory)(nil)
)
