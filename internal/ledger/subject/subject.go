package subject

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"las/internal/ledger/models"
	"las/pkg/platform/sentinel"
)

const maxExternalIDLength = 15

// Store is what a Handle needs from storage.
type Store interface {
	GetOrCreateSubject(ctx context.Context, externalID string, name *string) (*models.Subject, error)
	LatestEntry(ctx context.Context, key models.LineageKey) (*models.Entry, error)
}

// Descriptor identifies a subject as the client knows it.
type Descriptor struct {
	ExternalID          string  `json:"subject_ogrn"`
	ExternalDescription *string `json:"subject_name"`
}

// Validate checks the external id is 1..15 ASCII digits.
func (d Descriptor) Validate() error {
	if d.ExternalID == "" {
		return errors.New("subject external id is required")
	}
	if len(d.ExternalID) > maxExternalIDLength {
		return fmt.Errorf("subject external id must be at most %d characters", maxExternalIDLength)
	}
	for i := 0; i < len(d.ExternalID); i++ {
		if d.ExternalID[i] < '0' || d.ExternalID[i] > '9' {
			return errors.New("subject external id may contain digits only")
		}
	}
	return nil
}

// Handle is a subject reference that touches storage only when asked.
type Handle struct {
	ExternalID          string
	ExternalDescription *string

	record *models.Subject
}

// Resolve builds a Handle without I/O.
func Resolve(externalID string, externalDescription *string) *Handle {
	return &Handle{ExternalID: externalID, ExternalDescription: externalDescription}
}

// FromDescriptor is Resolve for a request descriptor.
func FromDescriptor(d Descriptor) *Handle {
	return Resolve(d.ExternalID, d.ExternalDescription)
}

// FromRecord wraps an already stored subject.
func FromRecord(s *models.Subject) *Handle {
	return &Handle{ExternalID: s.ExternalID, ExternalDescription: s.Name, record: s}
}

// Materialize gets or creates the stored subject. The description is stored
// only for a new subject. The record is memoized on the handle.
func (h *Handle) Materialize(ctx context.Context, st Store) (*models.Subject, error) {
	if h.record != nil {
		return h.record, nil
	}
	record, err := st.GetOrCreateSubject(ctx, h.ExternalID, h.ExternalDescription)
	if err != nil {
		return nil, fmt.Errorf("materialize subject %q: %w", h.ExternalID, err)
	}
	h.record = record
	return record, nil
}

// CurrentTotal returns the running total of the subject's lineage for
// (instanceID, liabilityTypeID), materializing the subject if needed.
func (h *Handle) CurrentTotal(ctx context.Context, st Store, instanceID models.InstanceID, liabilityTypeID models.LiabilityTypeID) (decimal.Decimal, error) {
	record, err := h.Materialize(ctx, st)
	if err != nil {
		return decimal.Zero, err
	}
	return RunningTotal(ctx, st, models.LineageKey{
		InstanceID:      instanceID,
		SubjectID:       record.ID,
		LiabilityTypeID: liabilityTypeID,
	})
}

// EntryReader reads the head of a lineage.
type EntryReader interface {
	LatestEntry(ctx context.Context, key models.LineageKey) (*models.Entry, error)
}

// RunningTotal is the AmountTotal of the lineage's latest entry, or zero for
// an empty lineage.
func RunningTotal(ctx context.Context, r EntryReader, key models.LineageKey) (decimal.Decimal, error) {
	entry, err := r.LatestEntry(ctx, key)
	if errors.Is(err, sentinel.ErrNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("running total: %w", err)
	}
	return entry.AmountTotal, nil
}

// LogValue renders the handle for structured logs.
func (h *Handle) LogValue() string {
	if h.record == nil {
		return fmt.Sprintf("external_id=%s", h.ExternalID)
	}
	return fmt.Sprintf("external_id=%s (id=%d)", h.ExternalID, h.record.ID)
}
