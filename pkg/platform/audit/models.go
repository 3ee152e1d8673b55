package audit

import (
	"context"
	"time"
)

// EventCategory classifies audit events by their primary purpose. This
// enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategorySecurity covers events relevant to security monitoring and
	// forensics: recovery attempts, rate-limit trips, key deliveries.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers events useful for debugging and operational
	// visibility, with shorter retention.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory `json:"category"`
	Timestamp time.Time     `json:"timestamp"`
	// Address is the account the event concerns (lowercased email).
	Address string `json:"address"`
	Action  string `json:"action"`
	Outcome string `json:"outcome,omitempty"`
	Reason  string `json:"reason,omitempty"`
	// Request correlation and client forensics, populated from the request
	// context by the emitting service.
	RequestID string `json:"request_id,omitempty"`
	ClientIP  string `json:"client_ip,omitempty"`
	Device    string `json:"device,omitempty"`
}

// AuditEvent names the actions this service records.
type AuditEvent string

const (
	EventEscrowCreated       AuditEvent = "escrow_created"
	EventEscrowUpdated       AuditEvent = "escrow_updated"
	EventRecoveryAttempt     AuditEvent = "recovery_attempt"
	EventRecoveryRateLimited AuditEvent = "recovery_rate_limited"
	EventVaultKeyDelivered   AuditEvent = "vault_key_delivered"
	EventDeliveryFailed      AuditEvent = "delivery_failed"
)

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByAddress(ctx context.Context, address string) ([]Event, error)
}

// Sink receives security events for out-of-process consumers (SIEM pipelines).
type Sink interface {
	Publish(ctx context.Context, event Event) error
	Close()
}
