// Package service implements the recovery verification protocol: escrow
// registration, attempt-rate policy, the field-match decision, and vault-key
// release through the delivery channel.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"keyhaven/internal/document"
	"keyhaven/internal/escrow/seal"
	"keyhaven/internal/mailer"
	"keyhaven/internal/recovery/metrics"
	"keyhaven/internal/recovery/models"
	dErrors "keyhaven/pkg/domain-errors"
	audit "keyhaven/pkg/platform/audit"
	"keyhaven/pkg/platform/sentinel"
	"keyhaven/pkg/requestcontext"
)

// Store is the escrow record store contract. RecordAttempt must apply the
// window-reset-or-increment atomically; the service never does its own
// read-modify-write on the counter.
type Store interface {
	FindByAddress(ctx context.Context, address string) (*models.EscrowRecord, error)
	Upsert(ctx context.Context, record *models.EscrowRecord, now time.Time) (bool, error)
	RecordAttempt(ctx context.Context, address string, now time.Time, window time.Duration) (*models.EscrowRecord, error)
}

// AuditPublisher records security events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Config holds the attempt-rate policy. Five attempts per sliding 24-hour
// window bounds brute-force guessing of the knowledge factor without
// permanently locking out a legitimate, slow-typing user.
type Config struct {
	AttemptWindow time.Duration
	MaxAttempts   int
}

func DefaultConfig() Config {
	return Config{
		AttemptWindow: 24 * time.Hour,
		MaxAttempts:   5,
	}
}

// VerifyResult reports the protocol outcome of one verification call.
// Delivered is meaningful only for OutcomeMatched: a false value there means
// the identity check succeeded but the vault key could not be sent.
type VerifyResult struct {
	Outcome   models.Outcome
	Delivered bool
}

type Service struct {
	store    Store
	sealer   *seal.Sealer
	deliver  mailer.Deliverer
	policy   document.Policy
	config   Config
	logger   *slog.Logger
	metrics  *metrics.Metrics
	auditPub AuditPublisher
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPub = publisher
	}
}

func WithConfig(cfg Config) Option {
	return func(s *Service) {
		s.config = cfg
	}
}

func WithPolicy(policy document.Policy) Option {
	return func(s *Service) {
		s.policy = policy
	}
}

func New(store Store, sealer *seal.Sealer, deliverer mailer.Deliverer, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("escrow store is required")
	}
	if sealer == nil {
		return nil, errors.New("sealer is required")
	}
	if deliverer == nil {
		return nil, errors.New("deliverer is required")
	}

	svc := &Service{
		store:   store,
		sealer:  sealer,
		deliver: deliverer,
		policy:  document.DefaultPolicy(),
		config:  DefaultConfig(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Register escrows identity attributes and a vault key for an address,
// creating the record on first submission and updating it in place after.
// Reports whether a new record was created.
func (s *Service) Register(ctx context.Context, address string, attrs document.Attributes, vaultKey string) (bool, error) {
	address = models.NormalizeAddress(address)
	if address == "" || !strings.Contains(address, "@") {
		return false, dErrors.New(dErrors.CodeBadRequest, "a valid account email address is required")
	}
	if vaultKey == "" {
		return false, dErrors.New(dErrors.CodeBadRequest, "a vault key is required")
	}

	attrs = attrs.Normalized()
	if !attrs.Complete() {
		return false, dErrors.New(dErrors.CodeBadRequest, "name and identity number are both required")
	}
	if err := s.policy.ValidateAttributes(attrs); err != nil {
		s.metrics.IncrementEscrow("error")
		return false, err
	}

	record, err := s.sealRecord(address, attrs, vaultKey)
	if err != nil {
		s.metrics.IncrementEscrow("error")
		return false, err
	}

	now := requestcontext.Now(ctx)
	created, err := s.store.Upsert(ctx, record, now)
	if err != nil {
		s.metrics.IncrementEscrow("error")
		return false, dErrors.Wrap(err, dErrors.CodeStoreFailure, "failed to store escrow record")
	}

	action := audit.EventEscrowUpdated
	result := "updated"
	if created {
		action = audit.EventEscrowCreated
		result = "created"
	}
	s.metrics.IncrementEscrow(result)
	s.emitAudit(ctx, address, action, result, "")

	s.logger.InfoContext(ctx, "escrow record stored",
		"request_id", requestcontext.RequestID(ctx),
		"created", created,
	)
	return created, nil
}

// Verify runs the recovery verification protocol for one submission and, on a
// match, releases the vault key through the delivery channel. Every call that
// reaches the comparison mutates the record's attempt state, for both match
// and mismatch outcomes; NotFound and RateLimited calls mutate nothing.
func (s *Service) Verify(ctx context.Context, address string, submitted document.Attributes) (*VerifyResult, error) {
	start := time.Now()
	result, err := s.verify(ctx, address, submitted)
	s.metrics.ObserveVerifyLatency(time.Since(start))
	if result != nil {
		s.metrics.IncrementOutcome(result.Outcome.String())
	}
	return result, err
}

func (s *Service) verify(ctx context.Context, address string, submitted document.Attributes) (*VerifyResult, error) {
	address = models.NormalizeAddress(address)
	submitted = submitted.Normalized()
	now := requestcontext.Now(ctx)
	requestID := requestcontext.RequestID(ctx)

	record, err := s.store.FindByAddress(ctx, address)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.emitAudit(ctx, address, audit.EventRecoveryAttempt, models.OutcomeNotFound.String(), "no escrow record")
			return &VerifyResult{Outcome: models.OutcomeNotFound}, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeStoreFailure, "failed to load escrow record")
	}

	// The limit blocks the call before any comparison; the record is not
	// touched so the window can expire naturally.
	if record.IsRateLimitedAt(now, s.config.AttemptWindow, s.config.MaxAttempts) {
		s.logger.WarnContext(ctx, "recovery attempt rate limited",
			"request_id", requestID,
			"attempt_count", record.AttemptCount,
		)
		s.emitAudit(ctx, address, audit.EventRecoveryRateLimited, models.OutcomeRateLimited.String(), "")
		return &VerifyResult{Outcome: models.OutcomeRateLimited}, nil
	}

	escrowed, err := s.unsealAttributes(address, record)
	if err != nil {
		return nil, err
	}
	matched := attributesMatch(escrowed, submitted)

	// Attempt state updates unconditionally for match and mismatch, as one
	// atomic conditional operation at the storage boundary.
	if _, err := s.store.RecordAttempt(ctx, address, now, s.config.AttemptWindow); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStoreFailure, "failed to record verification attempt")
	}

	if !matched {
		s.emitAudit(ctx, address, audit.EventRecoveryAttempt, models.OutcomeMismatched.String(), "")
		return &VerifyResult{Outcome: models.OutcomeMismatched}, nil
	}

	vaultKey, err := s.sealer.Open(address, record.SealedVaultKey)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to unseal vault key")
	}

	if err := s.deliver.Deliver(ctx, address, mailer.RecoverySubject, mailer.RecoveryBody(vaultKey)); err != nil {
		s.logger.ErrorContext(ctx, "vault key delivery failed",
			"request_id", requestID,
			"error", err,
		)
		s.metrics.IncrementDelivery("error")
		s.emitAudit(ctx, address, audit.EventDeliveryFailed, models.OutcomeMatched.String(), "delivery channel failure")
		return &VerifyResult{Outcome: models.OutcomeMatched, Delivered: false}, nil
	}

	s.metrics.IncrementDelivery("ok")
	s.emitAudit(ctx, address, audit.EventVaultKeyDelivered, models.OutcomeMatched.String(), "")
	s.logger.InfoContext(ctx, "vault key recovered and delivered",
		"request_id", requestID,
	)
	return &VerifyResult{Outcome: models.OutcomeMatched, Delivered: true}, nil
}

func (s *Service) sealRecord(address string, attrs document.Attributes, vaultKey string) (*models.EscrowRecord, error) {
	record := &models.EscrowRecord{Address: address}

	seals := []struct {
		plaintext string
		dst       *string
	}{
		{attrs.FullName, &record.SealedName},
		{attrs.IdentityNumber, &record.SealedIdentity},
		{attrs.BirthDate, &record.SealedBirthDate},
		{attrs.Gender, &record.SealedGender},
		{vaultKey, &record.SealedVaultKey},
	}
	for _, f := range seals {
		if f.plaintext == "" {
			continue
		}
		token, err := s.sealer.Seal(address, f.plaintext)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to seal escrow fields")
		}
		*f.dst = token
	}
	return record, nil
}

func (s *Service) unsealAttributes(address string, record *models.EscrowRecord) (document.Attributes, error) {
	var attrs document.Attributes

	opens := []struct {
		token string
		dst   *string
	}{
		{record.SealedName, &attrs.FullName},
		{record.SealedIdentity, &attrs.IdentityNumber},
		{record.SealedBirthDate, &attrs.BirthDate},
		{record.SealedGender, &attrs.Gender},
	}
	for _, f := range opens {
		if f.token == "" {
			continue
		}
		plaintext, err := s.sealer.Open(address, f.token)
		if err != nil {
			return attrs, dErrors.Wrap(err, dErrors.CodeInternal, "failed to unseal escrow record")
		}
		*f.dst = plaintext
	}
	return attrs, nil
}

// attributesMatch applies the per-field matching rule to two normalized
// attribute sets: name case-insensitive, identity number exact, and the
// optional fields match whenever either side is absent.
func attributesMatch(escrowed, submitted document.Attributes) bool {
	if !strings.EqualFold(escrowed.FullName, submitted.FullName) {
		return false
	}
	if escrowed.IdentityNumber != submitted.IdentityNumber {
		return false
	}
	if escrowed.BirthDate != "" && submitted.BirthDate != "" &&
		escrowed.BirthDate != submitted.BirthDate {
		return false
	}
	if escrowed.Gender != "" && submitted.Gender != "" &&
		!strings.EqualFold(escrowed.Gender, submitted.Gender) {
		return false
	}
	return true
}

func (s *Service) emitAudit(ctx context.Context, address string, action audit.AuditEvent, outcome, reason string) {
	if s.auditPub == nil {
		return
	}
	event := audit.Event{
		Category:  audit.CategorySecurity,
		Address:   address,
		Action:    string(action),
		Outcome:   outcome,
		Reason:    reason,
		RequestID: requestcontext.RequestID(ctx),
		ClientIP:  requestcontext.ClientIP(ctx),
		Device:    requestcontext.Device(ctx),
	}
	if err := s.auditPub.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"action", action,
			"error", err,
		)
	}
}
