package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keyhaven/internal/recovery/models"
	"keyhaven/pkg/platform/sentinel"
)

func newRecord(address string) *models.EscrowRecord {
	return &models.EscrowRecord{
		Address:        address,
		SealedName:     "sealed-name",
		SealedIdentity: "sealed-identity",
		SealedVaultKey: "sealed-key",
	}
}

func TestMemoryFindMissing(t *testing.T) {
	s := NewMemory()
	_, err := s.FindByAddress(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestMemoryUpsertCreateThenUpdate(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	now := time.Now()

	created, err := s.Upsert(ctx, newRecord("User@Example.com"), now)
	require.NoError(t, err)
	assert.True(t, created)

	// Lookup is case-insensitive on address.
	got, err := s.FindByAddress(ctx, "user@example.com")
	require.NoError(t, err)
	firstID := got.ID
	assert.Equal(t, "sealed-key", got.SealedVaultKey)

	update := newRecord("user@example.com")
	update.SealedVaultKey = "sealed-key-v2"
	created, err = s.Upsert(ctx, update, now.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, created, "second submission updates in place")

	got, err = s.FindByAddress(ctx, "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, firstID, got.ID, "record identity survives update")
	assert.Equal(t, "sealed-key-v2", got.SealedVaultKey)
}

func TestMemoryUpsertPreservesAttemptState(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	now := time.Now()

	_, err := s.Upsert(ctx, newRecord("user@example.com"), now)
	require.NoError(t, err)
	_, err = s.RecordAttempt(ctx, "user@example.com", now, 24*time.Hour)
	require.NoError(t, err)

	_, err = s.Upsert(ctx, newRecord("user@example.com"), now.Add(time.Minute))
	require.NoError(t, err)

	got, err := s.FindByAddress(ctx, "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, 1, got.AttemptCount)
	require.NotNil(t, got.LastAttemptAt)
}

func TestMemoryRecordAttemptWindow(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	base := time.Now()
	window := 24 * time.Hour

	_, err := s.Upsert(ctx, newRecord("user@example.com"), base)
	require.NoError(t, err)

	// Attempts inside the window accumulate.
	for i := 1; i <= 3; i++ {
		got, err := s.RecordAttempt(ctx, "user@example.com", base.Add(time.Duration(i)*time.Minute), window)
		require.NoError(t, err)
		assert.Equal(t, i, got.AttemptCount)
	}

	// An attempt past the window resets the counter to 1.
	got, err := s.RecordAttempt(ctx, "user@example.com", base.Add(window+time.Hour), window)
	require.NoError(t, err)
	assert.Equal(t, 1, got.AttemptCount)
}

func TestMemoryRecordAttemptMissing(t *testing.T) {
	s := NewMemory()
	_, err := s.RecordAttempt(context.Background(), "nobody@example.com", time.Now(), 24*time.Hour)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestMemoryRecordAttemptConcurrent(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	now := time.Now()
	window := 24 * time.Hour

	_, err := s.Upsert(ctx, newRecord("user@example.com"), now)
	require.NoError(t, err)

	const attempts = 50
	var wg sync.WaitGroup
	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.RecordAttempt(ctx, "user@example.com", now.Add(time.Minute), window)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := s.FindByAddress(ctx, "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, attempts, got.AttemptCount, "no attempt may be lost to a race")
}
