// Package document implements the e-KYC export processing pipeline: a
// plausibility validator for the raw vendor document, a table-driven field
// extractor with a generic recursive fallback, and pure normalizers for the
// extracted values.
//
// The vendor export is a loosely-specified JSON tree whose shape varies by
// issuance channel. Nothing in here trusts the document: validation is
// heuristic plausibility scoring, not schema enforcement or forgery detection.
package document

// Canonical gender values after normalization.
const (
	GenderMale   = "Male"
	GenderFemale = "Female"
	GenderOthers = "Others"
)

// Attributes is the normalized identity record extracted from a document.
// FullName and IdentityNumber are always both present on a successful
// extraction; BirthDate and Gender are optional.
type Attributes struct {
	FullName       string `json:"full_name"`
	IdentityNumber string `json:"identity_number"`
	BirthDate      string `json:"birth_date,omitempty"`
	Gender         string `json:"gender,omitempty"`
}

// Complete reports whether both required fields are present.
func (a Attributes) Complete() bool {
	return a.FullName != "" && a.IdentityNumber != ""
}

// Normalized returns a copy with every field run through its normalizer.
// Safe to call on already-normalized attributes; all normalizers are
// idempotent.
func (a Attributes) Normalized() Attributes {
	return Attributes{
		FullName:       NormalizeName(a.FullName),
		IdentityNumber: NormalizeIdentityNumber(a.IdentityNumber),
		BirthDate:      NormalizeBirthDate(a.BirthDate),
		Gender:         NormalizeGender(a.Gender),
	}
}
