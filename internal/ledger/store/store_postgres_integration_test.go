//go:build integration

package store_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"golang.org/x/sync/errgroup"

	"las/internal/ledger/models"
	"las/internal/ledger/ports"
	"las/internal/ledger/store"
	"las/pkg/platform/sentinel"
	"las/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
	demo     *store.Demo
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
	s.Require().NoError(s.store.Migrate(context.Background()))
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	err := s.postgres.TruncateTables(ctx,
		"ledger_entries", "subjects", "liability_types", "users", "instances")
	s.Require().NoError(err)
	demo, err := store.SeedDemo(ctx, s.store)
	s.Require().NoError(err)
	s.demo = demo
}

func (s *PostgresStoreSuite) entry(subject models.SubjectID, amount string) *models.Entry {
	return &models.Entry{
		UserID:          s.demo.User.ID,
		InstanceID:      s.demo.Instance.ID,
		LiabilityTypeID: s.demo.Internal.ID,
		SubjectID:       subject,
		AmountRecord:    decimal.RequireFromString(amount),
		AmountTotal:     decimal.RequireFromString(amount),
	}
}

func (s *PostgresStoreSuite) TestMigrateIsIdempotent() {
	s.NoError(s.store.Migrate(context.Background()))
}

func (s *PostgresStoreSuite) TestEntriesRoundTripDecimals() {
	ctx := context.Background()
	subject, err := s.store.GetOrCreateSubject(ctx, "1027700132195", nil)
	s.Require().NoError(err)

	e := s.entry(subject.ID, "4522.22")
	s.Require().NoError(s.store.CreateEntry(ctx, e))
	s.Equal("0001-0001-00001", e.ReceiptNumber)

	latest, err := s.store.LatestEntry(ctx, e.Lineage())
	s.Require().NoError(err)
	s.Equal(e.ID, latest.ID)
	s.True(latest.AmountTotal.Equal(decimal.RequireFromString("4522.22")))

	byReceipt, err := s.store.FindLatestEntryByReceipt(ctx, e.ReceiptNumber)
	s.Require().NoError(err)
	s.Equal(e.ID, byReceipt.ID)
}

func (s *PostgresStoreSuite) TestLatestEntryByReceiptPrefersNewest() {
	ctx := context.Background()
	subject, err := s.store.GetOrCreateSubject(ctx, "1027700132195", nil)
	s.Require().NoError(err)

	original := s.entry(subject.ID, "10")
	s.Require().NoError(s.store.CreateEntry(ctx, original))
	reversal := s.entry(subject.ID, "-10")
	reversal.ReceiptNumber = original.ReceiptNumber
	reversal.AmountTotal = decimal.Zero
	s.Require().NoError(s.store.CreateEntry(ctx, reversal))

	got, err := s.store.FindLatestEntryByReceipt(ctx, original.ReceiptNumber)
	s.Require().NoError(err)
	s.Equal(reversal.ID, got.ID)
}

func (s *PostgresStoreSuite) TestGetOrCreateSubjectKeepsFirstName() {
	ctx := context.Background()
	first, second := "Acme", "Renamed"
	a, err := s.store.GetOrCreateSubject(ctx, "1027700132195", &first)
	s.Require().NoError(err)
	b, err := s.store.GetOrCreateSubject(ctx, "1027700132195", &second)
	s.Require().NoError(err)

	s.Equal(a.ID, b.ID)
	s.Require().NotNil(b.Name)
	s.Equal("Acme", *b.Name)
}

func (s *PostgresStoreSuite) TestConcurrentGetOrCreateSubject() {
	ctx := context.Background()
	const goroutines = 20
	ids := make([]models.SubjectID, goroutines)
	var wg sync.WaitGroup
	for i := range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			subject, err := s.store.GetOrCreateSubject(ctx, "1027700132195", nil)
			if err == nil {
				ids[i] = subject.ID
			}
		}()
	}
	wg.Wait()
	for _, id := range ids {
		s.Equal(ids[0], id)
	}
	s.NotZero(ids[0])
}

func (s *PostgresStoreSuite) TestRunInTxRollsBackEntries() {
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.store.RunInTx(ctx, func(ctx context.Context, st ports.LedgerStore) error {
		subject, err := st.GetOrCreateSubject(ctx, "1027700132195", nil)
		if err != nil {
			return err
		}
		if err := st.CreateEntry(ctx, s.entry(subject.ID, "1")); err != nil {
			return err
		}
		return boom
	})
	s.Require().ErrorIs(err, boom)

	_, err = s.store.FindSubjectByExternalID(ctx, "1027700132195")
	s.ErrorIs(err, sentinel.ErrNotFound)
	_, err = s.store.FindLatestEntryByReceipt(ctx, "0001-0001-00001")
	s.ErrorIs(err, sentinel.ErrNotFound)

	// The sequence value is not reused, so numbering skips the rolled back receipt.
	subject, err := s.store.GetOrCreateSubject(ctx, "1027700132195", nil)
	s.Require().NoError(err)
	e := s.entry(subject.ID, "1")
	s.Require().NoError(s.store.CreateEntry(ctx, e))
	s.Equal("0001-0001-00002", e.ReceiptNumber)
}

func (s *PostgresStoreSuite) TestBatchesOnDifferentSubjectsDoNotBlockOnSequences() {
	ctx := context.Background()
	second := &models.LiabilityType{
		InstanceID:  s.demo.Instance.ID,
		Name:        "Credit line",
		Postfix:     "credit",
		TypeRunning: models.TypeRunningInternal,
	}
	s.Require().NoError(s.store.CreateLiabilityType(ctx, second))

	// Each batch mints from one sequence, waits until the other has minted
	// from the other sequence, then mints from the one the other used.
	var minted sync.WaitGroup
	minted.Add(2)
	batch := func(externalID string, first, then models.LiabilityTypeID) func() error {
		return func() error {
			return s.store.RunInTx(ctx, func(ctx context.Context, st ports.LedgerStore) error {
				subject, err := st.GetOrCreateSubject(ctx, externalID, nil)
				if err != nil {
					return err
				}
				e := s.entry(subject.ID, "1")
				e.LiabilityTypeID = first
				if err := st.CreateEntry(ctx, e); err != nil {
					return err
				}
				minted.Done()
				minted.Wait()
				e = s.entry(subject.ID, "1")
				e.LiabilityTypeID = then
				return st.CreateEntry(ctx, e)
			})
		}
	}

	var g errgroup.Group
	g.Go(batch("111111111111111", s.demo.Internal.ID, second.ID))
	g.Go(batch("222222222222222", second.ID, s.demo.Internal.ID))
	s.Require().NoError(g.Wait())

	for _, receiptNumber := range []string{"0001-0001-00001", "0001-0001-00002", "0001-0003-00001", "0001-0003-00002"} {
		_, err := s.store.FindLatestEntryByReceipt(ctx, receiptNumber)
		s.NoError(err, receiptNumber)
	}
}

func (s *PostgresStoreSuite) TestReassignedLiabilityTypeMintsUnderNewInstance() {
	ctx := context.Background()
	other := &models.Instance{Name: "other"}
	s.Require().NoError(s.store.CreateInstance(ctx, other))
	s.Require().NoError(s.store.ReassignLiabilityType(ctx, s.demo.Internal.ID, other.ID))

	subject, err := s.store.GetOrCreateSubject(ctx, "1027700132195", nil)
	s.Require().NoError(err)
	e := s.entry(subject.ID, "5")
	e.InstanceID = other.ID
	s.Require().NoError(s.store.CreateEntry(ctx, e))
	s.Equal("0002-0001-00001", e.ReceiptNumber)
}

func (s *PostgresStoreSuite) TestLiabilityTypePostfixUniquePerInstance() {
	err := s.store.CreateLiabilityType(context.Background(), &models.LiabilityType{
		InstanceID:  s.demo.Instance.ID,
		Name:        "Duplicate",
		Postfix:     s.demo.Internal.Postfix,
		TypeRunning: models.TypeRunningInternal,
	})
	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestFindMissingRecords() {
	ctx := context.Background()
	_, err := s.store.FindInstance(ctx, 999)
	s.ErrorIs(err, sentinel.ErrNotFound)
	_, err = s.store.FindLiabilityType(ctx, 999)
	s.ErrorIs(err, sentinel.ErrNotFound)
	_, err = s.store.FindLatestEntryByReceipt(ctx, "0001-0001-99999")
	s.ErrorIs(err, sentinel.ErrNotFound)
	_, err = s.store.LatestEntry(ctx, models.LineageKey{InstanceID: 1, SubjectID: 1, LiabilityTypeID: 1})
	s.ErrorIs(err, sentinel.ErrNotFound)
}
