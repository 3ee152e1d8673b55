package handler

import (
	"encoding/json"
	"strings"

	"keyhaven/internal/document"
	dErrors "keyhaven/pkg/domain-errors"
)

// maxInlineDocumentBytes bounds documents embedded in JSON request bodies.
const maxInlineDocumentBytes = 256 << 10

// ExtractRequest is the HTTP request body for POST /v1/document/extract.
type ExtractRequest struct {
	Document json.RawMessage `json:"document"`
}

// Validate implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *ExtractRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if len(r.Document) == 0 {
		return dErrors.New(dErrors.CodeValidation, "document is required")
	}
	if len(r.Document) > maxInlineDocumentBytes {
		return dErrors.New(dErrors.CodeValidation, "document exceeds the inline size limit")
	}
	return nil
}

// AttributesPayload carries identity attributes over the wire.
type AttributesPayload struct {
	FullName       string `json:"full_name"`
	IdentityNumber string `json:"identity_number"`
	BirthDate      string `json:"birth_date,omitempty"`
	Gender         string `json:"gender,omitempty"`
}

func (p AttributesPayload) toDomain() document.Attributes {
	return document.Attributes{
		FullName:       p.FullName,
		IdentityNumber: p.IdentityNumber,
		BirthDate:      p.BirthDate,
		Gender:         p.Gender,
	}
}

// EscrowRequest is the HTTP request body for POST /v1/escrow. The account
// address comes from the JWT; a body email, if present, must agree with it.
type EscrowRequest struct {
	Email      string            `json:"email,omitempty"`
	Attributes AttributesPayload `json:"attributes"`
	VaultKey   string            `json:"vault_key"`
}

func (r *EscrowRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.VaultKey == "" {
		return dErrors.New(dErrors.CodeValidation, "vault_key is required")
	}
	if len(r.VaultKey) > 4096 {
		return dErrors.New(dErrors.CodeValidation, "vault_key must be at most 4096 characters")
	}
	if r.Attributes.FullName == "" || r.Attributes.IdentityNumber == "" {
		return dErrors.New(dErrors.CodeValidation, "attributes.full_name and attributes.identity_number are required")
	}
	r.Email = strings.TrimSpace(strings.ToLower(r.Email))
	return nil
}

// VerifyRequest is the HTTP request body for POST /v1/recovery/verify.
// Exactly one of attributes or document must be present; the document path
// runs extraction before verification.
type VerifyRequest struct {
	Email      string             `json:"email"`
	Attributes *AttributesPayload `json:"attributes,omitempty"`
	Document   json.RawMessage    `json:"document,omitempty"`
}

func (r *VerifyRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Email = strings.TrimSpace(strings.ToLower(r.Email))
	if r.Email == "" || !strings.Contains(r.Email, "@") {
		return dErrors.New(dErrors.CodeValidation, "a valid email is required")
	}
	hasAttrs := r.Attributes != nil
	hasDoc := len(r.Document) > 0
	if hasAttrs == hasDoc {
		return dErrors.New(dErrors.CodeValidation, "exactly one of attributes or document is required")
	}
	if hasDoc && len(r.Document) > maxInlineDocumentBytes {
		return dErrors.New(dErrors.CodeValidation, "document exceeds the inline size limit")
	}
	return nil
}
