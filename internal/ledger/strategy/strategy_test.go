package strategy_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"las/internal/ledger/models"
	"las/internal/ledger/store"
	"las/internal/ledger/strategy"
	"las/internal/ledger/subject"
)

func TestKindFor(t *testing.T) {
	tests := []struct {
		name string
		lt   *models.LiabilityType
		want strategy.Kind
	}{
		{name: "missing type", lt: nil, want: strategy.KindUnknown},
		{name: "internal", lt: &models.LiabilityType{TypeRunning: models.TypeRunningInternal}, want: strategy.KindInternal},
		{name: "external", lt: &models.LiabilityType{TypeRunning: models.TypeRunningExternal}, want: strategy.KindExternal},
		{name: "unrecognized type_running", lt: &models.LiabilityType{TypeRunning: "legacy"}, want: strategy.KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, strategy.KindFor(tt.lt))
		})
	}
}

type StrategySuite struct {
	suite.Suite
	ctx      context.Context
	store    *store.InMemory
	demo     *store.Demo
	internal strategy.Internal
}

func TestStrategySuite(t *testing.T) {
	suite.Run(t, new(StrategySuite))
}

func (s *StrategySuite) SetupTest() {
	s.ctx = context.Background()
	s.store = store.NewInMemory()
	demo, err := store.SeedDemo(s.ctx, s.store)
	s.Require().NoError(err)
	s.demo = demo
}

func (s *StrategySuite) add(h *subject.Handle, amount string) models.Result {
	res, err := s.internal.Add(s.ctx, s.store, strategy.AddRequest{
		Actor:         s.demo.User,
		Subject:       h,
		LiabilityType: &s.demo.Internal,
		Amount:        decimal.RequireFromString(amount),
	})
	s.Require().NoError(err)
	s.Require().True(res.Success)
	return res
}

func (s *StrategySuite) entry(res models.Result) *models.Entry {
	e, err := s.store.FindLatestEntryByReceipt(s.ctx, *res.ReceiptNumber)
	s.Require().NoError(err)
	return e
}

func (s *StrategySuite) TestInternalAddAccumulates() {
	h := subject.Resolve("1027700132195", nil)

	first := s.add(h, "1000")
	second := s.add(h, "2000")

	s.Equal("0001-0001-00001", *first.ReceiptNumber)
	s.Equal("0001-0001-00002", *second.ReceiptNumber)
	s.Equal("limit", *second.Postfix)
	s.True(second.AmountRecord.Equal(decimal.NewFromInt(2000)))
	s.True(second.AmountTotal.Equal(decimal.NewFromInt(3000)))
}

func (s *StrategySuite) TestInternalCancelReversesAndReusesReceipt() {
	h := subject.Resolve("1027700132195", nil)
	s.add(h, "1000")
	second := s.add(h, "2000")
	s.add(h, "3500")

	other := models.User{ID: 99, InstanceID: s.demo.Instance.ID}
	res, err := s.internal.Cancel(s.ctx, s.store, strategy.CancelRequest{
		Actor:         other,
		Original:      s.entry(second),
		LiabilityType: &s.demo.Internal,
	})
	s.Require().NoError(err)
	s.Require().True(res.Success)

	s.Equal(*second.ReceiptNumber, *res.ReceiptNumber)
	s.True(res.AmountRecord.Equal(decimal.NewFromInt(-2000)))
	s.True(res.AmountTotal.Equal(decimal.NewFromInt(4500)))

	reversal := s.entry(res)
	s.Equal(other.ID, reversal.UserID)
}

func (s *StrategySuite) TestInternalEditReportsReplacementOnly() {
	h := subject.Resolve("1027700132195", nil)
	s.add(h, "1000")
	second := s.add(h, "2000")
	s.add(h, "3500")

	res, err := s.internal.Edit(s.ctx, s.store, strategy.EditRequest{
		Actor:         s.demo.User,
		Original:      s.entry(second),
		LiabilityType: &s.demo.Internal,
		NewAmount:     decimal.RequireFromString("22.22"),
	})
	s.Require().NoError(err)
	s.Require().True(res.Success)

	s.Equal(*second.ReceiptNumber, *res.ReceiptNumber)
	s.True(res.AmountRecord.Equal(decimal.RequireFromString("22.22")))
	s.True(res.AmountTotal.Equal(decimal.RequireFromString("4522.22")))

	entries, err := s.store.ListEntries(s.ctx, s.entry(res).Lineage())
	s.Require().NoError(err)
	s.Len(entries, 5)
	s.True(entries[3].AmountRecord.Equal(decimal.NewFromInt(-2000)))
	s.True(entries[3].AmountTotal.Equal(decimal.NewFromInt(4500)))
}

func (s *StrategySuite) TestSoftFailingStrategiesDoNotWrite() {
	h := subject.Resolve("1027700132195", nil)
	original := s.entry(s.add(h, "10"))

	for _, strat := range []strategy.Strategy{strategy.External{}, strategy.Unknown{}} {
		res, err := strat.Add(s.ctx, s.store, strategy.AddRequest{
			Actor:         s.demo.User,
			Subject:       subject.Resolve("5077746887312", nil),
			LiabilityType: &s.demo.External,
			Amount:        decimal.NewFromInt(1),
		})
		s.Require().NoError(err)
		s.Equal(models.Failed(), res)

		res, err = strat.Cancel(s.ctx, s.store, strategy.CancelRequest{Actor: s.demo.User, Original: original})
		s.Require().NoError(err)
		s.Equal(models.Failed(), res)

		res, err = strat.Edit(s.ctx, s.store, strategy.EditRequest{Actor: s.demo.User, Original: original, NewAmount: decimal.NewFromInt(5)})
		s.Require().NoError(err)
		s.Equal(models.Failed(), res)
	}

	_, err := s.store.FindSubjectByExternalID(s.ctx, "5077746887312")
	s.Error(err)
	entries, err := s.store.ListEntries(s.ctx, original.Lineage())
	s.Require().NoError(err)
	s.Len(entries, 1)
}

func (s *StrategySuite) TestDispatcherFallsBackToUnknown() {
	d := strategy.NewDispatcher()

	kind, strat := d.For(&s.demo.Internal)
	s.Equal(strategy.KindInternal, kind)
	s.IsType(strategy.Internal{}, strat)

	kind, strat = d.For(nil)
	s.Equal(strategy.KindUnknown, kind)
	s.IsType(strategy.Unknown{}, strat)
}
