package document

import (
	"encoding/json"
	"log/slog"
	"time"

	"keyhaven/internal/document/metrics"
	dErrors "keyhaven/pkg/domain-errors"
)

// Extractor runs the full pipeline over raw document bytes: size bound,
// parse, structural validation, shape-table extraction, generic fallback,
// normalization, attribute gate.
type Extractor struct {
	policy  Policy
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Extractor)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) {
		e.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Extractor) {
		e.metrics = m
	}
}

// New constructs an extractor with the given heuristic policy.
func New(policy Policy, opts ...Option) *Extractor {
	e := &Extractor{policy: policy}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract parses and validates a raw vendor export and returns the
// normalized identity attributes. It fails with a typed domain error when
// the document is malformed, implausible, or missing required fields; the
// error never echoes document content.
func (e *Extractor) Extract(raw []byte) (Attributes, error) {
	start := time.Now()
	attrs, method, err := e.extract(raw)
	e.metrics.ObserveExtractLatency(time.Since(start))
	if err != nil {
		e.metrics.IncrementOutcome(string(dErrors.CodeOf(err)), method)
		return Attributes{}, err
	}
	e.metrics.IncrementOutcome("ok", method)
	return attrs, nil
}

func (e *Extractor) extract(raw []byte) (Attributes, string, error) {
	if len(raw) < e.policy.MinDocumentBytes {
		return Attributes{}, "none", dErrors.New(dErrors.CodeMalformedInput,
			"document is too small to be a vendor export")
	}
	if len(raw) > e.policy.MaxDocumentBytes {
		return Attributes{}, "none", dErrors.New(dErrors.CodeMalformedInput,
			"document exceeds the maximum accepted size")
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Attributes{}, "none", dErrors.New(dErrors.CodeMalformedInput,
			"document is not a valid JSON object")
	}

	if err := e.policy.ValidateStructure(raw, doc); err != nil {
		e.metrics.IncrementStructuralRejection(dErrors.MessageOf(err))
		return Attributes{}, "none", err
	}

	found := newCandidates()
	applyShapes(doc, found, e.policy)
	shapeHadName, shapeHadIdentity := found.has(fieldName), found.has(fieldIdentity)

	if !found.has(fieldName) || !found.has(fieldIdentity) ||
		!found.has(fieldBirthDate) || !found.has(fieldGender) {
		genericSearch(doc, 0, found, e.policy)
	}

	attrs := Attributes{
		FullName:       NormalizeName(found.get(fieldName)),
		IdentityNumber: NormalizeIdentityNumber(found.get(fieldIdentity)),
		BirthDate:      NormalizeBirthDate(found.get(fieldBirthDate)),
		Gender:         NormalizeGender(found.get(fieldGender)),
	}

	// Identity numbers outside the acceptance policy count as unobtainable,
	// not merely invalid; the invariant is both required fields or neither.
	if !e.policy.acceptIdentity(attrs.IdentityNumber) {
		attrs.IdentityNumber = ""
	}

	method := extractionMethod(shapeHadName, shapeHadIdentity, attrs.Complete())
	if !attrs.Complete() {
		if e.logger != nil {
			e.logger.Debug("extraction failed",
				"has_name", attrs.FullName != "",
				"has_identity", attrs.IdentityNumber != "",
			)
		}
		return Attributes{}, "none", dErrors.New(dErrors.CodeExtractionFailure,
			"required name and identity-number fields could not be extracted")
	}

	if err := e.policy.ValidateAttributes(attrs); err != nil {
		return Attributes{}, method, err
	}
	return attrs, method, nil
}

// acceptIdentity applies the length policy: strict mode demands the canonical
// full number, tolerant mode accepts masked values of at least the minimum
// length.
func (p Policy) acceptIdentity(normalized string) bool {
	if normalized == "" {
		return false
	}
	if p.RequireFullNumber {
		return len(normalized) == p.FullIdentityLength &&
			digitCount(normalized) == p.FullIdentityLength
	}
	return len(normalized) >= p.MinIdentityLength && len(normalized) <= p.FullIdentityLength
}

func extractionMethod(shapeHadName, shapeHadIdentity, complete bool) string {
	switch {
	case !complete:
		return "none"
	case shapeHadName && shapeHadIdentity:
		return "shape"
	case !shapeHadName && !shapeHadIdentity:
		return "generic"
	default:
		return "mixed"
	}
}
