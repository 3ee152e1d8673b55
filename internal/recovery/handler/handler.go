// Package handler wires the document extraction and recovery endpoints to
// their services.
package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"keyhaven/internal/document"
	"keyhaven/internal/recovery/models"
	"keyhaven/internal/recovery/service"
	dErrors "keyhaven/pkg/domain-errors"
	"keyhaven/pkg/platform/httputil"
	"keyhaven/pkg/platform/middleware/auth"
	"keyhaven/pkg/requestcontext"
)

// RecoveryService defines the recovery operations the handler depends on.
type RecoveryService interface {
	Register(ctx context.Context, address string, attrs document.Attributes, vaultKey string) (bool, error)
	Verify(ctx context.Context, address string, submitted document.Attributes) (*service.VerifyResult, error)
}

// Extractor defines the document extraction operation.
type Extractor interface {
	Extract(raw []byte) (document.Attributes, error)
}

// Handler wires recovery endpoints to the recovery service and the document
// extractor.
type Handler struct {
	recovery  RecoveryService
	extractor Extractor
	logger    *slog.Logger
}

// New constructs a recovery handler with its dependencies.
func New(recovery RecoveryService, extractor Extractor, logger *slog.Logger) *Handler {
	return &Handler{
		recovery:  recovery,
		extractor: extractor,
		logger:    logger,
	}
}

// Register mounts the public endpoints on the router. The escrow endpoint
// requires authentication and is mounted separately via RegisterProtected.
func (h *Handler) Register(r chi.Router) {
	r.Post("/document/extract", h.HandleExtract)
	r.Post("/recovery/verify", h.HandleVerify)
}

// RegisterProtected mounts the JWT-protected escrow endpoint.
func (h *Handler) RegisterProtected(r chi.Router) {
	r.Post("/escrow", h.HandleEscrow)
}

// HandleExtract handles POST /v1/document/extract requests. The document
// arrives either as a multipart upload under the "document" field or wrapped
// in a JSON body.
func (h *Handler) HandleExtract(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	var raw []byte
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		var ok bool
		raw, ok = h.documentFromMultipart(w, r)
		if !ok {
			return
		}
	} else {
		req, ok := httputil.DecodeAndPrepare[*ExtractRequest](w, r, h.logger, ctx, requestID)
		if !ok {
			return
		}
		raw = req.Document
	}

	attrs, err := h.extractor.Extract(raw)
	if err != nil {
		h.logger.InfoContext(ctx, "document extraction rejected",
			"request_id", requestID,
			"code", dErrors.CodeOf(err),
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "document extracted",
		"request_id", requestID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, fromAttributes(attrs))
}

func (h *Handler) documentFromMultipart(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	if err := r.ParseMultipartForm(maxInlineDocumentBytes); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid multipart body"))
		return nil, false
	}
	file, _, err := r.FormFile("document")
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "document file field is required"))
		return nil, false
	}
	defer file.Close()

	raw, err := io.ReadAll(io.LimitReader(file, maxInlineDocumentBytes+1))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "failed to read document upload"))
		return nil, false
	}
	if len(raw) > maxInlineDocumentBytes {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "document exceeds the inline size limit"))
		return nil, false
	}
	return raw, true
}

// HandleEscrow handles POST /v1/escrow requests.
func (h *Handler) HandleEscrow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	address := auth.AccountEmail(ctx)
	if address == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[*EscrowRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	// A body email may restate but never override the token's account.
	if req.Email != "" && req.Email != models.NormalizeAddress(address) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "email does not match the authenticated account"))
		return
	}

	created, err := h.recovery.Register(ctx, address, req.Attributes.toDomain(), req.VaultKey)
	if err != nil {
		h.logger.ErrorContext(ctx, "escrow registration failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	result := "updated"
	status := http.StatusOK
	if created {
		result = "created"
		status = http.StatusCreated
	}
	httputil.WriteJSON(w, status, EscrowResponse{Result: result})
}

// HandleVerify handles POST /v1/recovery/verify requests.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[*VerifyRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	var attrs document.Attributes
	if req.Attributes != nil {
		attrs = req.Attributes.toDomain()
	} else {
		extracted, err := h.extractor.Extract(req.Document)
		if err != nil {
			h.logger.InfoContext(ctx, "verification document rejected",
				"request_id", requestID,
				"code", dErrors.CodeOf(err),
			)
			httputil.WriteError(w, err)
			return
		}
		attrs = extracted
	}

	result, err := h.recovery.Verify(ctx, req.Email, attrs)
	if err != nil {
		h.logger.ErrorContext(ctx, "recovery verification failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "recovery verification completed",
		"request_id", requestID,
		"outcome", result.Outcome,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	switch result.Outcome {
	case models.OutcomeNotFound:
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "no escrow record for this email"))
	case models.OutcomeRateLimited:
		httputil.WriteError(w, dErrors.New(dErrors.CodeRateLimited, "too many recovery attempts, try again later"))
	case models.OutcomeMismatched:
		httputil.WriteError(w, dErrors.New(dErrors.CodeMismatch, "submitted attributes do not match the escrow record"))
	case models.OutcomeMatched:
		if !result.Delivered {
			httputil.WriteError(w, dErrors.New(dErrors.CodeDeliveryFailure, "identity confirmed but vault key delivery failed"))
			return
		}
		httputil.WriteJSON(w, http.StatusOK, VerifyResponse{
			Outcome:  result.Outcome.String(),
			Delivery: "sent",
		})
	default:
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "unexpected verification outcome"))
	}
}
