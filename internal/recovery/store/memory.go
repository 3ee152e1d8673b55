// Package store persists escrow records. Stores are pure I/O; the attempt
// policy itself (window length, ceiling) belongs to the service. The one
// exception is attempt recording, which each store implements as a single
// atomic conditional operation so concurrent verifications can never
// under-count attempts.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"keyhaven/internal/recovery/models"
	"keyhaven/pkg/platform/sentinel"
)

// MemoryStore is an in-memory escrow store for tests and development.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*models.EscrowRecord
}

// NewMemory creates an empty in-memory escrow store.
func NewMemory() *MemoryStore {
	return &MemoryStore{records: make(map[string]*models.EscrowRecord)}
}

// FindByAddress returns a copy of the record for an address, or
// sentinel.ErrNotFound.
func (s *MemoryStore) FindByAddress(_ context.Context, address string) (*models.EscrowRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[models.NormalizeAddress(address)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *record
	return &cp, nil
}

// Upsert inserts the record for its address or updates the existing one in
// place, preserving the existing ID, attempt state, and creation time.
// Reports whether a new record was created.
func (s *MemoryStore) Upsert(_ context.Context, record *models.EscrowRecord, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	address := models.NormalizeAddress(record.Address)
	existing, ok := s.records[address]
	if !ok {
		cp := *record
		cp.Address = address
		if cp.ID == uuid.Nil {
			cp.ID = uuid.New()
		}
		cp.CreatedAt = now
		cp.UpdatedAt = now
		s.records[address] = &cp
		return true, nil
	}

	existing.SealedName = record.SealedName
	existing.SealedIdentity = record.SealedIdentity
	existing.SealedBirthDate = record.SealedBirthDate
	existing.SealedGender = record.SealedGender
	existing.SealedVaultKey = record.SealedVaultKey
	existing.UpdatedAt = now
	return false, nil
}

// RecordAttempt applies the window-reset-or-increment and stamps the attempt
// time under one lock, so concurrent calls serialize and every attempt counts.
// Returns the updated record or sentinel.ErrNotFound.
func (s *MemoryStore) RecordAttempt(_ context.Context, address string, now time.Time, window time.Duration) (*models.EscrowRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[models.NormalizeAddress(address)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}

	if record.LastAttemptAt == nil || now.Sub(*record.LastAttemptAt) >= window {
		record.AttemptCount = 1
	} else {
		record.AttemptCount++
	}
	t := now
	record.LastAttemptAt = &t
	record.UpdatedAt = now

	cp := *record
	return &cp, nil
}
