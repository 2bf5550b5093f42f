package store

import (
	"context"
	"fmt"
	"time"

	"las/internal/ledger/models"
	"las/internal/ledger/receipt"
	"las/pkg/platform/sentinel"
)

type sequenceKey struct {
	instanceID      models.InstanceID
	liabilityTypeID models.LiabilityTypeID
}

type postfixKey struct {
	instanceID models.InstanceID
	postfix    string
}

// state is the full in-memory dataset. Values are stored by value so a
// shallow map copy plus a slice copy is a complete snapshot.
type state struct {
	instances      map[models.InstanceID]models.Instance
	users          map[models.UserID]models.User
	liabilityTypes map[models.LiabilityTypeID]models.LiabilityType
	postfixes      map[postfixKey]models.LiabilityTypeID
	subjects       map[models.SubjectID]models.Subject
	subjectsByExt  map[string]models.SubjectID
	entries        []models.Entry
	latest         map[models.LineageKey]int
	sequences      map[sequenceKey]int64

	nextInstance      models.InstanceID
	nextUser          models.UserID
	nextLiabilityType models.LiabilityTypeID
	nextSubject       models.SubjectID
	nextEntry         models.EntryID

	clock func() time.Time
}

func newState(clock func() time.Time) *state {
	return &state{
		instances:      make(map[models.InstanceID]models.Instance),
		users:          make(map[models.UserID]models.User),
		liabilityTypes: make(map[models.LiabilityTypeID]models.LiabilityType),
		postfixes:      make(map[postfixKey]models.LiabilityTypeID),
		subjects:       make(map[models.SubjectID]models.Subject),
		subjectsByExt:  make(map[string]models.SubjectID),
		latest:         make(map[models.LineageKey]int),
		sequences:      make(map[sequenceKey]int64),
		clock:          clock,
	}
}

func (s *state) clone() *state {
	c := *s
	c.instances = cloneMap(s.instances)
	c.users = cloneMap(s.users)
	c.liabilityTypes = cloneMap(s.liabilityTypes)
	c.postfixes = cloneMap(s.postfixes)
	c.subjects = cloneMap(s.subjects)
	c.subjectsByExt = cloneMap(s.subjectsByExt)
	c.latest = cloneMap(s.latest)
	c.sequences = cloneMap(s.sequences)
	c.entries = append(make([]models.Entry, 0, len(s.entries)+8), s.entries...)
	return &c
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *state) FindInstance(_ context.Context, id models.InstanceID) (*models.Instance, error) {
	inst, ok := s.instances[id]
	if !ok {
		return nil, fmt.Errorf("instance %d: %w", id, sentinel.ErrNotFound)
	}
	return &inst, nil
}

func (s *state) FindUser(_ context.Context, id models.UserID) (*models.User, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", id, sentinel.ErrNotFound)
	}
	return &user, nil
}

func (s *state) FindLiabilityType(_ context.Context, id models.LiabilityTypeID) (*models.LiabilityType, error) {
	lt, ok := s.liabilityTypes[id]
	if !ok {
		return nil, fmt.Errorf("liability type %d: %w", id, sentinel.ErrNotFound)
	}
	return &lt, nil
}

func (s *state) FindSubject(_ context.Context, id models.SubjectID) (*models.Subject, error) {
	subject, ok := s.subjects[id]
	if !ok {
		return nil, fmt.Errorf("subject %d: %w", id, sentinel.ErrNotFound)
	}
	return &subject, nil
}

func (s *state) FindSubjectByExternalID(ctx context.Context, externalID string) (*models.Subject, error) {
	id, ok := s.subjectsByExt[externalID]
	if !ok {
		return nil, fmt.Errorf("subject %q: %w", externalID, sentinel.ErrNotFound)
	}
	return s.FindSubject(ctx, id)
}

func (s *state) FindLatestEntryByReceipt(_ context.Context, receiptNumber string) (*models.Entry, error) {
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].ReceiptNumber == receiptNumber {
			entry := s.entries[i]
			return &entry, nil
		}
	}
	return nil, fmt.Errorf("entry %q: %w", receiptNumber, sentinel.ErrNotFound)
}

func (s *state) LatestEntry(_ context.Context, key models.LineageKey) (*models.Entry, error) {
	idx, ok := s.latest[key]
	if !ok {
		return nil, fmt.Errorf("lineage %+v: %w", key, sentinel.ErrNotFound)
	}
	entry := s.entries[idx]
	return &entry, nil
}

func (s *state) ListEntries(_ context.Context, key models.LineageKey) ([]models.Entry, error) {
	var out []models.Entry
	for _, e := range s.entries {
		if e.Lineage() == key {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *state) GetOrCreateSubject(_ context.Context, externalID string, name *string) (*models.Subject, error) {
	if id, ok := s.subjectsByExt[externalID]; ok {
		subject := s.subjects[id]
		return &subject, nil
	}
	s.nextSubject++
	subject := models.Subject{
		ID:         s.nextSubject,
		ExternalID: externalID,
		Name:       name,
		CreatedAt:  s.clock(),
	}
	s.subjects[subject.ID] = subject
	s.subjectsByExt[externalID] = subject.ID
	return &subject, nil
}

func (s *state) CreateEntry(_ context.Context, entry *models.Entry) error {
	if entry.ReceiptNumber == "" {
		key := sequenceKey{instanceID: entry.InstanceID, liabilityTypeID: entry.LiabilityTypeID}
		s.sequences[key]++
		entry.ReceiptNumber = receipt.Format(entry.InstanceID, entry.LiabilityTypeID, s.sequences[key])
	}
	s.nextEntry++
	entry.ID = s.nextEntry
	entry.CreatedAt = s.clock()
	s.entries = append(s.entries, *entry)
	s.latest[entry.Lineage()] = len(s.entries) - 1
	return nil
}

func (s *state) CreateInstance(_ context.Context, inst *models.Instance) error {
	s.nextInstance++
	inst.ID = s.nextInstance
	inst.CreatedAt = s.clock()
	s.instances[inst.ID] = *inst
	return nil
}

func (s *state) CreateUser(_ context.Context, user *models.User) error {
	if user.InstanceID != 0 {
		if _, ok := s.instances[user.InstanceID]; !ok {
			return fmt.Errorf("instance %d: %w", user.InstanceID, sentinel.ErrNotFound)
		}
	}
	s.nextUser++
	user.ID = s.nextUser
	s.users[user.ID] = *user
	return nil
}

func (s *state) CreateLiabilityType(_ context.Context, lt *models.LiabilityType) error {
	if _, ok := s.instances[lt.InstanceID]; !ok {
		return fmt.Errorf("instance %d: %w", lt.InstanceID, sentinel.ErrNotFound)
	}
	key := postfixKey{instanceID: lt.InstanceID, postfix: lt.Postfix}
	if _, taken := s.postfixes[key]; taken {
		return fmt.Errorf("liability type postfix %q: %w", lt.Postfix, sentinel.ErrConflict)
	}
	s.nextLiabilityType++
	lt.ID = s.nextLiabilityType
	lt.CreatedAt = s.clock()
	s.liabilityTypes[lt.ID] = *lt
	s.postfixes[key] = lt.ID
	return nil
}

// ReassignLiabilityType moves a liability type to another instance. It exists
// for administrative corrections; receipts minted before the move stop
// validating for their original instance.
func (s *state) ReassignLiabilityType(_ context.Context, id models.LiabilityTypeID, to models.InstanceID) error {
	lt, ok := s.liabilityTypes[id]
	if !ok {
		return fmt.Errorf("liability type %d: %w", id, sentinel.ErrNotFound)
	}
	newKey := postfixKey{instanceID: to, postfix: lt.Postfix}
	if _, taken := s.postfixes[newKey]; taken {
		return fmt.Errorf("liability type postfix %q: %w", lt.Postfix, sentinel.ErrConflict)
	}
	delete(s.postfixes, postfixKey{instanceID: lt.InstanceID, postfix: lt.Postfix})
	lt.InstanceID = to
	s.liabilityTypes[id] = lt
	s.postfixes[newKey] = id
	return nil
}
