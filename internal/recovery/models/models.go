package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Outcome classifies the result of one recovery verification call.
type Outcome string

const (
	OutcomeMatched     Outcome = "matched"
	OutcomeMismatched  Outcome = "mismatched"
	OutcomeRateLimited Outcome = "rate_limited"
	OutcomeNotFound    Outcome = "not_found"
)

// IsValid checks if the outcome is one of the supported enum values.
func (o Outcome) IsValid() bool {
	switch o {
	case OutcomeMatched, OutcomeMismatched, OutcomeRateLimited, OutcomeNotFound:
		return true
	}
	return false
}

// String returns the string representation.
func (o Outcome) String() string {
	return string(o)
}

// EscrowRecord holds one address's escrowed identity fields and vault key,
// plus the attempt-policy state. All identity fields and the vault key are
// sealed; the store never sees plaintext. One record per address, created on
// first escrow submission and updated in place afterwards, never deleted.
type EscrowRecord struct {
	ID      uuid.UUID
	Address string

	// Sealed attribute copies. SealedBirthDate and SealedGender are empty
	// when the escrowed attributes omitted them.
	SealedName      string
	SealedIdentity  string
	SealedBirthDate string
	SealedGender    string

	// SealedVaultKey is the escrowed secret released on a successful match.
	SealedVaultKey string

	AttemptCount  int
	LastAttemptAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HoursSinceLastAttempt computes the age of the last attempt at the given
// time. Records with no prior attempt report a full window so they are never
// rate limited.
func (r *EscrowRecord) HoursSinceLastAttempt(now time.Time, window time.Duration) time.Duration {
	if r.LastAttemptAt == nil {
		return window
	}
	return now.Sub(*r.LastAttemptAt)
}

// IsRateLimitedAt reports whether the attempt policy blocks a verification at
// the given time: the attempt ceiling reached inside the sliding window.
func (r *EscrowRecord) IsRateLimitedAt(now time.Time, window time.Duration, maxAttempts int) bool {
	return r.HoursSinceLastAttempt(now, window) < window && r.AttemptCount >= maxAttempts
}

// NormalizeAddress canonicalizes an address for record lookup.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
