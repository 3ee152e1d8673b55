package document

import (
	"regexp"
	"strings"

	dErrors "keyhaven/pkg/domain-errors"
)

// birthDateFormat accepts the three literal formats vendor exports use:
// DD/MM/YYYY, YYYY-MM-DD, and DD-MM-YYYY.
var birthDateFormat = regexp.MustCompile(`^(\d{2}/\d{2}/\d{4}|\d{4}-\d{2}-\d{2}|\d{2}-\d{2}-\d{4})$`)

// ValidateStructure accepts or rejects a parsed document before extraction.
// All checks must pass. Every rejection carries a human-readable reason that
// callers surface verbatim to the submitter.
func (p Policy) ValidateStructure(raw []byte, doc map[string]any) error {
	if err := p.checkShape(doc); err != nil {
		return err
	}
	if err := p.checkProvenance(raw); err != nil {
		return err
	}
	return p.checkCertificate(doc)
}

// checkShape requires at least one known root shape or one of the required
// top-level field names.
func (p Policy) checkShape(doc map[string]any) error {
	for _, s := range knownShapes {
		root := s.probes[fieldIdentity][0][0]
		if _, ok := doc[root].(map[string]any); ok {
			return nil
		}
	}
	for _, name := range p.RequiredTopLevelFields {
		if _, ok := doc[name]; ok {
			return nil
		}
	}
	return dErrors.New(dErrors.CodeStructuralRejection,
		"document does not match any known vendor export shape")
}

// checkProvenance scores the raw text for traces of the issuing vendor:
// a signature substring, an authority name, or a timestamp marker together
// with a certificate-id marker.
func (p Policy) checkProvenance(raw []byte) error {
	text := strings.ToLower(string(raw))

	if containsAny(text, p.VendorSignatures) {
		return nil
	}
	if containsAny(text, p.AuthorityNames) {
		return nil
	}
	if containsAny(text, p.TimestampMarkers) && containsAny(text, p.CertIDMarkers) {
		return nil
	}
	return dErrors.New(dErrors.CodeStructuralRejection,
		"document carries no recognizable vendor provenance markers")
}

// checkCertificate applies only when a certificate-like sub-object exists:
// that sub-object must itself carry an identity-number-like and a name-like
// field.
func (p Policy) checkCertificate(doc map[string]any) error {
	cert, ok := doc["Certificate"].(map[string]any)
	if !ok {
		return nil
	}

	var hasIdentity, hasName bool
	for k, v := range cert {
		if _, scalar := scalarString(v); !scalar {
			continue
		}
		lower := strings.ToLower(k)
		if strings.Contains(lower, "uid") || strings.Contains(lower, "number") {
			hasIdentity = true
		}
		if strings.Contains(lower, "name") {
			hasName = true
		}
	}
	if !hasIdentity {
		return dErrors.New(dErrors.CodeStructuralRejection,
			"certificate object lacks an identity-number field")
	}
	if !hasName {
		return dErrors.New(dErrors.CodeStructuralRejection,
			"certificate object lacks a name field")
	}
	return nil
}

// ValidateAttributes re-validates extracted, normalized values independently
// of the document they came from. A document can pass structural validation
// and still produce attributes that fail here, in which case extraction as a
// whole fails.
func (p Policy) ValidateAttributes(attrs Attributes) error {
	if l := len(attrs.FullName); l < p.MinNameLength || l > p.MaxNameLength {
		return dErrors.Newf(dErrors.CodeAttributeRejection,
			"name length %d outside allowed range [%d,%d]", l, p.MinNameLength, p.MaxNameLength)
	}
	if !p.NamePattern.MatchString(attrs.FullName) {
		return dErrors.New(dErrors.CodeAttributeRejection,
			"name contains characters outside the allowed class")
	}

	if !p.IdentityPattern.MatchString(attrs.IdentityNumber) {
		return dErrors.New(dErrors.CodeAttributeRejection,
			"identity number is not a valid digit/mask pattern of length 8-12")
	}
	if p.RequireFullNumber {
		if digitCount(attrs.IdentityNumber) != p.FullIdentityLength ||
			len(attrs.IdentityNumber) != p.FullIdentityLength {
			return dErrors.Newf(dErrors.CodeAttributeRejection,
				"identity number must be exactly %d digits", p.FullIdentityLength)
		}
	}

	if attrs.BirthDate != "" && !birthDateFormat.MatchString(attrs.BirthDate) {
		return dErrors.New(dErrors.CodeAttributeRejection,
			"birth date is not in an accepted format")
	}

	if attrs.Gender != "" && !containsFold(p.GenderVocabulary, attrs.Gender) {
		return dErrors.New(dErrors.CodeAttributeRejection,
			"gender is not in the accepted vocabulary")
	}
	return nil
}

func containsAny(text string, needles []string) bool {
	for _, n := range needles {
		if n != "" && strings.Contains(text, strings.ToLower(n)) {
			return true
		}
	}
	return false
}

func containsFold(vocab []string, v string) bool {
	for _, entry := range vocab {
		if strings.EqualFold(entry, v) {
			return true
		}
	}
	return false
}
