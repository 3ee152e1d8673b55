package document

import "regexp"

// Policy collects every heuristic threshold, signature list, and pattern the
// extractor and validator consult. Tests substitute alternate policies without
// touching the algorithms; production uses DefaultPolicy.
type Policy struct {
	// Size bounds on the raw document, enforced before parsing.
	MinDocumentBytes int
	MaxDocumentBytes int

	// MaxSearchDepth bounds the generic recursive key search.
	MaxSearchDepth int

	// Identity-number acceptance. The canonical full number is
	// FullIdentityLength digits. In the default tolerant mode a normalized
	// value (digits plus 'X' mask characters) of length MinIdentityLength or
	// more is accepted, so vendor-masked exports remain recoverable. Setting
	// RequireFullNumber switches to strict mode: exactly FullIdentityLength
	// digits, no masks.
	MinIdentityLength  int
	FullIdentityLength int
	RequireFullNumber  bool

	// Provenance heuristics, all matched case-insensitively against the raw
	// document text.
	VendorSignatures []string
	AuthorityNames   []string
	TimestampMarkers []string
	CertIDMarkers    []string

	// RequiredTopLevelFields accept a document that carries none of the known
	// root shapes but still looks like a vendor export.
	RequiredTopLevelFields []string

	// Post-extraction attribute gates.
	NamePattern      *regexp.Regexp
	MinNameLength    int
	MaxNameLength    int
	IdentityPattern  *regexp.Regexp
	GenderVocabulary []string
}

// DefaultPolicy returns the production heuristics.
func DefaultPolicy() Policy {
	return Policy{
		MinDocumentBytes: 100,
		MaxDocumentBytes: 100 << 10,

		MaxSearchDepth: 5,

		MinIdentityLength:  8,
		FullIdentityLength: 12,
		RequireFullNumber:  false,

		// Wrapper element names and signature markers the vendor's export
		// pipeline emits. Matched against the raw text, so they hold even
		// when the wrapper sits below an unknown root.
		VendorSignatures: []string{
			"KycRes",
			"OfflinePaperlessKyc",
			"PrintLetterBarcodeData",
			"UidData",
			"SignedData",
			"ds:Signature",
		},
		AuthorityNames: []string{
			"uidai",
			"unique identification authority",
			"aadhaar",
		},
		TimestampMarkers: []string{
			"generatedDate",
			"timestamp",
			"ts=",
		},
		CertIDMarkers: []string{
			"certificateId",
			"referenceId",
			"txn",
		},
		RequiredTopLevelFields: []string{
			"KycRes",
			"OfflinePaperlessKyc",
			"PrintLetterBarcodeData",
			"Certificate",
			"UidData",
			"uid",
		},

		NamePattern:   regexp.MustCompile(`^[A-Z][A-Z ]*$`),
		MinNameLength: 2,
		MaxNameLength: 100,
		// Digits with optional leading mask run, 8-12 total after normalization.
		IdentityPattern:  regexp.MustCompile(`^[0-9X]{8,12}$`),
		GenderVocabulary: []string{GenderMale, GenderFemale, GenderOthers},
	}
}
