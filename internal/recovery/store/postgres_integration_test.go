//go:build integration

package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"keyhaven/internal/recovery/models"
	"keyhaven/internal/recovery/store"
	"keyhaven/pkg/platform/sentinel"
	"keyhaven/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = store.NewPostgres(s.postgres.Pool)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "escrow_records")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) record(address string) *models.EscrowRecord {
	return &models.EscrowRecord{
		Address:        address,
		SealedName:     "sealed-name",
		SealedIdentity: "sealed-identity",
		SealedVaultKey: "sealed-key",
	}
}

func (s *PostgresStoreSuite) TestFindMissing() {
	_, err := s.store.FindByAddress(context.Background(), "nobody@example.com")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestUpsertCreateThenUpdate() {
	ctx := context.Background()
	now := time.Now().UTC()

	created, err := s.store.Upsert(ctx, s.record("user@example.com"), now)
	s.Require().NoError(err)
	s.True(created)

	got, err := s.store.FindByAddress(ctx, "user@example.com")
	s.Require().NoError(err)
	firstID := got.ID

	update := s.record("user@example.com")
	update.SealedVaultKey = "sealed-key-v2"
	created, err = s.store.Upsert(ctx, update, now.Add(time.Hour))
	s.Require().NoError(err)
	s.False(created, "second submission updates in place")

	got, err = s.store.FindByAddress(ctx, "user@example.com")
	s.Require().NoError(err)
	s.Equal(firstID, got.ID, "record identity survives update")
	s.Equal("sealed-key-v2", got.SealedVaultKey)
}

func (s *PostgresStoreSuite) TestUpsertPreservesAttemptState() {
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := s.store.Upsert(ctx, s.record("user@example.com"), now)
	s.Require().NoError(err)
	_, err = s.store.RecordAttempt(ctx, "user@example.com", now, 24*time.Hour)
	s.Require().NoError(err)

	_, err = s.store.Upsert(ctx, s.record("user@example.com"), now.Add(time.Minute))
	s.Require().NoError(err)

	got, err := s.store.FindByAddress(ctx, "user@example.com")
	s.Require().NoError(err)
	s.Equal(1, got.AttemptCount)
	s.Require().NotNil(got.LastAttemptAt)
}

func (s *PostgresStoreSuite) TestRecordAttemptWindow() {
	ctx := context.Background()
	base := time.Now().UTC()
	window := 24 * time.Hour

	_, err := s.store.Upsert(ctx, s.record("user@example.com"), base)
	s.Require().NoError(err)

	for i := 1; i <= 3; i++ {
		got, err := s.store.RecordAttempt(ctx, "user@example.com", base.Add(time.Duration(i)*time.Minute), window)
		s.Require().NoError(err)
		s.Equal(i, got.AttemptCount)
	}

	got, err := s.store.RecordAttempt(ctx, "user@example.com", base.Add(window+time.Hour), window)
	s.Require().NoError(err)
	s.Equal(1, got.AttemptCount, "attempt past the window resets the counter")
}

func (s *PostgresStoreSuite) TestRecordAttemptMissing() {
	_, err := s.store.RecordAttempt(context.Background(), "nobody@example.com", time.Now().UTC(), 24*time.Hour)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

// TestRecordAttemptConcurrent verifies the conditional UPDATE never loses an
// increment under concurrent verification calls.
func (s *PostgresStoreSuite) TestRecordAttemptConcurrent() {
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := s.store.Upsert(ctx, s.record("user@example.com"), now)
	s.Require().NoError(err)

	const attempts = 50
	var wg sync.WaitGroup
	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.RecordAttempt(ctx, "user@example.com", now.Add(time.Minute), 24*time.Hour)
			s.NoError(err)
		}()
	}
	wg.Wait()

	got, err := s.store.FindByAddress(ctx, "user@example.com")
	s.Require().NoError(err)
	s.Equal(attempts, got.AttemptCount, "no attempt may be lost to a race")
}
