package receipt_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"las/internal/ledger/models"
	"las/internal/ledger/receipt"
	"las/internal/ledger/store"
	dErrors "las/pkg/domain-errors"
)

type ResolverSuite struct {
	suite.Suite
	store   *store.InMemory
	demo    *store.Demo
	subject *models.Subject
	entry   *models.Entry
}

func TestResolverSuite(t *testing.T) {
	suite.Run(t, new(ResolverSuite))
}

func (s *ResolverSuite) SetupTest() {
	ctx := context.Background()
	s.store = store.NewInMemory()
	demo, err := store.SeedDemo(ctx, s.store)
	s.Require().NoError(err)
	s.demo = demo

	s.subject, err = s.store.GetOrCreateSubject(ctx, "1027700132195", nil)
	s.Require().NoError(err)

	s.entry = &models.Entry{
		UserID:          demo.User.ID,
		InstanceID:      demo.Instance.ID,
		LiabilityTypeID: demo.Internal.ID,
		SubjectID:       s.subject.ID,
		AmountRecord:    decimal.RequireFromString("1000.00"),
		AmountTotal:     decimal.RequireFromString("1000.00"),
	}
	s.Require().NoError(s.store.CreateEntry(ctx, s.entry))
}

func (s *ResolverSuite) TestResolvesEverything() {
	ctx := context.Background()
	r, err := receipt.NewResolver(s.entry.ReceiptNumber, s.store)
	s.Require().NoError(err)

	inst, err := r.Instance(ctx)
	s.Require().NoError(err)
	s.Equal(s.demo.Instance.ID, inst.ID)

	lt, err := r.LiabilityType(ctx)
	s.Require().NoError(err)
	s.Equal(s.demo.Internal.ID, lt.ID)

	entry, err := r.Entry(ctx)
	s.Require().NoError(err)
	s.Equal(s.entry.ID, entry.ID)

	subject, err := r.Subject(ctx)
	s.Require().NoError(err)
	s.Equal(s.subject.ID, subject.ID)

	ok, err := r.TypeBelongsToDecodedTenant(ctx)
	s.Require().NoError(err)
	s.True(ok)
}

func (s *ResolverSuite) TestLookupsAreMemoized() {
	ctx := context.Background()
	r, err := receipt.NewResolver(s.entry.ReceiptNumber, s.store)
	s.Require().NoError(err)

	first, err := r.Entry(ctx)
	s.Require().NoError(err)

	// a later entry with the same receipt number is not seen by this resolver
	reversal := *s.entry
	reversal.ID = 0
	reversal.AmountRecord = s.entry.AmountRecord.Neg()
	s.Require().NoError(s.store.CreateEntry(ctx, &reversal))

	again, err := r.Entry(ctx)
	s.Require().NoError(err)
	s.Equal(first.ID, again.ID)

	fresh, err := receipt.NewResolver(s.entry.ReceiptNumber, s.store)
	s.Require().NoError(err)
	latest, err := fresh.Entry(ctx)
	s.Require().NoError(err)
	s.Equal(reversal.ID, latest.ID)
}

func (s *ResolverSuite) TestUnknownRecordsResolveToNil() {
	ctx := context.Background()
	r, err := receipt.NewResolver("0042-0099-00001", s.store)
	s.Require().NoError(err)

	inst, err := r.Instance(ctx)
	s.NoError(err)
	s.Nil(inst)

	lt, err := r.LiabilityType(ctx)
	s.NoError(err)
	s.Nil(lt)

	entry, err := r.Entry(ctx)
	s.NoError(err)
	s.Nil(entry)

	subject, err := r.Subject(ctx)
	s.NoError(err)
	s.Nil(subject)

	ok, err := r.TypeBelongsToDecodedTenant(ctx)
	s.NoError(err)
	s.False(ok)
}

func (s *ResolverSuite) TestValidate() {
	ctx := context.Background()

	s.Run("valid receipt", func() {
		r, err := receipt.NewResolver(s.entry.ReceiptNumber, s.store)
		s.Require().NoError(err)
		s.NoError(receipt.Validate(ctx, r, s.demo.Instance.ID))
	})

	s.Run("well formed but unknown", func() {
		r, err := receipt.NewResolver("0001-0001-09999", s.store)
		s.Require().NoError(err)
		err = receipt.Validate(ctx, r, s.demo.Instance.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeUnknownReceipt))
	})

	s.Run("foreign acting instance", func() {
		r, err := receipt.NewResolver(s.entry.ReceiptNumber, s.store)
		s.Require().NoError(err)
		err = receipt.Validate(ctx, r, s.demo.Instance.ID+1)
		s.True(dErrors.HasCode(err, dErrors.CodeCrossTenantAccess))
		s.ErrorIs(err, receipt.ErrForeignInstance)
	})

	s.Run("liability type reassigned", func() {
		other := models.Instance{Name: "other"}
		s.Require().NoError(s.store.CreateInstance(ctx, &other))
		s.Require().NoError(s.store.ReassignLiabilityType(ctx, s.demo.Internal.ID, other.ID))

		r, err := receipt.NewResolver(s.entry.ReceiptNumber, s.store)
		s.Require().NoError(err)
		err = receipt.Validate(ctx, r, s.demo.Instance.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeCrossTenantAccess))
		s.ErrorIs(err, receipt.ErrLiabilityTypeReassigned)
	})
}

func (s *ResolverSuite) TestResolveAllReportsEveryItem() {
	ctx := context.Background()

	resolvers, err := receipt.ResolveAll(ctx, s.store, s.demo.Instance.ID, []string{s.entry.ReceiptNumber})
	s.Require().NoError(err)
	s.Len(resolvers, 1)

	_, err = receipt.ResolveAll(ctx, s.store, s.demo.Instance.ID, []string{
		"aaaa-bbbb-000nn",
		s.entry.ReceiptNumber,
		"0001-0001-09999",
	})
	s.Require().Error(err)

	var verr *receipt.ValidationError
	s.Require().ErrorAs(err, &verr)
	s.Len(verr.Items, 2)
	s.Equal(0, verr.Items[0].Index)
	s.Equal(2, verr.Items[1].Index)
	s.True(dErrors.HasCode(verr.Items[1].Err, dErrors.CodeUnknownReceipt))
	s.True(dErrors.HasCode(err, dErrors.CodeMalformedIdentifier))
}
