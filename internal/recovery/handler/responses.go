package handler

import (
	"keyhaven/internal/document"
)

// ExtractResponse is the HTTP response for POST /v1/document/extract.
type ExtractResponse struct {
	Attributes AttributesPayload `json:"attributes"`
}

func fromAttributes(attrs document.Attributes) ExtractResponse {
	return ExtractResponse{
		Attributes: AttributesPayload{
			FullName:       attrs.FullName,
			IdentityNumber: attrs.IdentityNumber,
			BirthDate:      attrs.BirthDate,
			Gender:         attrs.Gender,
		},
	}
}

// EscrowResponse is the HTTP response for POST /v1/escrow.
type EscrowResponse struct {
	// Result is "created" on first submission, "updated" after.
	Result string `json:"result"`
}

// VerifyResponse is the HTTP response for a matched POST /v1/recovery/verify.
// The vault key itself is never in the body; it travels over the delivery
// channel only.
type VerifyResponse struct {
	Outcome  string `json:"outcome"`
	Delivery string `json:"delivery"`
}
