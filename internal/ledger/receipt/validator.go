package receipt

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"las/internal/ledger/models"
	dErrors "las/pkg/domain-errors"
)

// Causes wrapped by CodeCrossTenantAccess errors.
var (
	ErrForeignInstance         = errors.New("acting instance differs from the receipt's instance")
	ErrLiabilityTypeReassigned = errors.New("liability type does not belong to the receipt's instance")
)

// Exists fails with CodeUnknownReceipt when no entry carries the receipt number.
func Exists(ctx context.Context, r *Resolver) error {
	entry, err := r.Entry(ctx)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve receipt_number")
	}
	if entry == nil {
		return dErrors.New(dErrors.CodeUnknownReceipt,
			fmt.Sprintf("no ledger entry with receipt_number %q", r.Text()))
	}
	return nil
}

// Authorized checks that acting may operate on the receipt: the receipt must
// encode acting, and its liability type must still belong to that instance.
func Authorized(ctx context.Context, r *Resolver, acting models.InstanceID) error {
	if acting != r.Number().InstanceID {
		return dErrors.Wrap(ErrForeignInstance, dErrors.CodeCrossTenantAccess,
			fmt.Sprintf("user may not operate on receipt_number %q", r.Text()))
	}
	ok, err := r.TypeBelongsToDecodedTenant(ctx)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve liability type")
	}
	if !ok {
		return dErrors.Wrap(ErrLiabilityTypeReassigned, dErrors.CodeCrossTenantAccess,
			fmt.Sprintf("liability type is not available to this instance, receipt_number %q", r.Text()))
	}
	return nil
}

// Validate runs Exists then Authorized.
func Validate(ctx context.Context, r *Resolver, acting models.InstanceID) error {
	if err := Exists(ctx, r); err != nil {
		return err
	}
	return Authorized(ctx, r, acting)
}

// ItemError is the failure of one receipt number in a batch.
type ItemError struct {
	Index         int
	ReceiptNumber string
	Err           error
}

// ValidationError collects every failed item of a batch. errors.As and
// dErrors.GetCode see the first item's error.
type ValidationError struct {
	Items []ItemError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Items))
	for _, item := range e.Items {
		msgs = append(msgs, fmt.Sprintf("payload[%d]: %v", item.Index, item.Err))
	}
	return strings.Join(msgs, "; ")
}

func (e *ValidationError) Unwrap() []error {
	errs := make([]error, 0, len(e.Items))
	for _, item := range e.Items {
		errs = append(errs, item.Err)
	}
	return errs
}

// ResolveAll decodes and validates every receipt number. The pass does not
// stop at the first failure; if any item failed the result is a *ValidationError.
func ResolveAll(ctx context.Context, lookup Lookup, acting models.InstanceID, texts []string) ([]*Resolver, error) {
	resolvers := make([]*Resolver, 0, len(texts))
	var failed []ItemError
	for i, text := range texts {
		r, err := NewResolver(text, lookup)
		if err == nil {
			err = Validate(ctx, r, acting)
		}
		if err != nil {
			failed = append(failed, ItemError{Index: i, ReceiptNumber: text, Err: err})
			continue
		}
		resolvers = append(resolvers, r)
	}
	if len(failed) > 0 {
		return nil, &ValidationError{Items: failed}
	}
	return resolvers, nil
}
