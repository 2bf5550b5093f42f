package receipt

import (
	"context"
	"errors"
	"fmt"

	"las/internal/ledger/models"
	"las/pkg/platform/sentinel"
)

// Lookup is the read side the resolver needs. Implementations return
// sentinel.ErrNotFound (optionally wrapped) for missing records.
type Lookup interface {
	FindInstance(ctx context.Context, id models.InstanceID) (*models.Instance, error)
	FindLiabilityType(ctx context.Context, id models.LiabilityTypeID) (*models.LiabilityType, error)
	FindLatestEntryByReceipt(ctx context.Context, receiptNumber string) (*models.Entry, error)
	FindSubject(ctx context.Context, id models.SubjectID) (*models.Subject, error)
}

// Resolver answers questions about one receipt number string. Every lookup
// runs at most once per Resolver and never mutates state. A Resolver is not
// safe for concurrent use.
type Resolver struct {
	text   string
	number Number
	lookup Lookup

	instance      cached[models.Instance]
	liabilityType cached[models.LiabilityType]
	entry         cached[models.Entry]
	subject       cached[models.Subject]
}

type cached[T any] struct {
	loaded bool
	value  *T
}

// NewResolver decodes text and binds it to lookup.
func NewResolver(text string, lookup Lookup) (*Resolver, error) {
	number, err := Decode(text)
	if err != nil {
		return nil, err
	}
	return &Resolver{text: text, number: number, lookup: lookup}, nil
}

// Text is the receipt number exactly as supplied.
func (r *Resolver) Text() string {
	return r.text
}

func (r *Resolver) Number() Number {
	return r.number
}

// Instance returns the decoded instance, or nil if it does not exist.
func (r *Resolver) Instance(ctx context.Context) (*models.Instance, error) {
	return load(&r.instance, func() (*models.Instance, error) {
		return r.lookup.FindInstance(ctx, r.number.InstanceID)
	}, "instance")
}

// LiabilityType returns the decoded liability type, or nil if it does not exist.
func (r *Resolver) LiabilityType(ctx context.Context) (*models.LiabilityType, error) {
	return load(&r.liabilityType, func() (*models.LiabilityType, error) {
		return r.lookup.FindLiabilityType(ctx, r.number.LiabilityTypeID)
	}, "liability type")
}

// Entry returns the most recent entry carrying this exact receipt number, or nil.
func (r *Resolver) Entry(ctx context.Context) (*models.Entry, error) {
	return load(&r.entry, func() (*models.Entry, error) {
		return r.lookup.FindLatestEntryByReceipt(ctx, r.text)
	}, "ledger entry")
}

// Subject returns the owner of Entry, or nil when there is no entry.
func (r *Resolver) Subject(ctx context.Context) (*models.Subject, error) {
	entry, err := r.Entry(ctx)
	if err != nil || entry == nil {
		return nil, err
	}
	return load(&r.subject, func() (*models.Subject, error) {
		return r.lookup.FindSubject(ctx, entry.SubjectID)
	}, "subject")
}

// TypeBelongsToDecodedTenant is true iff the liability type exists and its own
// instance is the instance encoded in the receipt number.
func (r *Resolver) TypeBelongsToDecodedTenant(ctx context.Context) (bool, error) {
	lt, err := r.LiabilityType(ctx)
	if err != nil {
		return false, err
	}
	return lt != nil && lt.InstanceID == r.number.InstanceID, nil
}

func load[T any](c *cached[T], find func() (*T, error), what string) (*T, error) {
	if c.loaded {
		return c.value, nil
	}
	v, err := find()
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, fmt.Errorf("resolve %s: %w", what, err)
	}
	if err != nil {
		v = nil
	}
	c.loaded = true
	c.value = v
	return v, nil
}
