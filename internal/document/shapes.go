package document

import (
	"strconv"
	"strings"
	"unicode"
)

// field identifies one target attribute during extraction.
type field int

const (
	fieldName field = iota
	fieldIdentity
	fieldBirthDate
	fieldGender
)

func (f field) String() string {
	switch f {
	case fieldName:
		return "full_name"
	case fieldIdentity:
		return "identity_number"
	case fieldBirthDate:
		return "birth_date"
	case fieldGender:
		return "gender"
	}
	return "unknown"
}

var allFields = []field{fieldName, fieldIdentity, fieldBirthDate, fieldGender}

// probe is a fixed key path from the document root to a scalar.
type probe []string

// shape describes one known vendor export layout as a set of path probes per
// field. Shapes are evaluated in table order; adding a vendor layout means
// appending an entry, not writing a new branch.
type shape struct {
	name   string
	probes map[field][]probe
}

// knownShapes is the priority-ordered shape table. The vendor's primary
// nested e-KYC response comes first, then the paperless offline export, the
// QR/barcode letter payload, and the legacy flat certificate layout.
var knownShapes = []shape{
	{
		name: "kyc_res",
		probes: map[field][]probe{
			fieldIdentity:  {{"KycRes", "UidData", "@uid"}, {"KycRes", "UidData", "uid"}},
			fieldName:      {{"KycRes", "UidData", "Poi", "@name"}, {"KycRes", "UidData", "Poi", "name"}},
			fieldBirthDate: {{"KycRes", "UidData", "Poi", "@dob"}, {"KycRes", "UidData", "Poi", "dob"}},
			fieldGender:    {{"KycRes", "UidData", "Poi", "@gender"}, {"KycRes", "UidData", "Poi", "gender"}},
		},
	},
	{
		name: "offline_paperless_kyc",
		probes: map[field][]probe{
			fieldIdentity:  {{"OfflinePaperlessKyc", "UidData", "@referenceId"}, {"OfflinePaperlessKyc", "UidData", "referenceId"}},
			fieldName:      {{"OfflinePaperlessKyc", "UidData", "Poi", "@name"}},
			fieldBirthDate: {{"OfflinePaperlessKyc", "UidData", "Poi", "@dob"}},
			fieldGender:    {{"OfflinePaperlessKyc", "UidData", "Poi", "@gender"}},
		},
	},
	{
		name: "print_letter_barcode",
		probes: map[field][]probe{
			fieldIdentity:  {{"PrintLetterBarcodeData", "@uid"}},
			fieldName:      {{"PrintLetterBarcodeData", "@name"}},
			fieldBirthDate: {{"PrintLetterBarcodeData", "@dob"}, {"PrintLetterBarcodeData", "@yob"}},
			fieldGender:    {{"PrintLetterBarcodeData", "@gender"}},
		},
	},
	{
		name: "certificate",
		probes: map[field][]probe{
			fieldIdentity:  {{"Certificate", "uid"}, {"Certificate", "number"}},
			fieldName:      {{"Certificate", "name"}},
			fieldBirthDate: {{"Certificate", "dob"}},
			fieldGender:    {{"Certificate", "gender"}},
		},
	},
}

// candidates accumulates the first accepted raw value per field.
type candidates struct {
	values map[field]string
}

func newCandidates() *candidates {
	return &candidates{values: make(map[field]string, len(allFields))}
}

func (c *candidates) has(f field) bool { _, ok := c.values[f]; return ok }

// set records a value for a field unless one was already found. Earlier
// matches always win.
func (c *candidates) set(f field, v string) {
	if !c.has(f) {
		c.values[f] = v
	}
}

func (c *candidates) get(f field) string { return c.values[f] }

// applyShapes walks the shape table in priority order, filling only fields
// that are still empty. Probes into absent branches fail silently.
func applyShapes(doc map[string]any, found *candidates, p Policy) {
	for _, s := range knownShapes {
		for _, f := range allFields {
			if found.has(f) {
				continue
			}
			for _, pr := range s.probes[f] {
				if v, ok := lookupPath(doc, pr); ok && plausibleValue(f, v, p) {
					found.set(f, v)
					break
				}
			}
		}
	}
}

// lookupPath walks a key path through nested objects and returns the scalar
// at the end, if any.
func lookupPath(doc map[string]any, path probe) (string, bool) {
	node := any(doc)
	for _, key := range path {
		obj, ok := node.(map[string]any)
		if !ok {
			return "", false
		}
		node, ok = obj[key]
		if !ok {
			return "", false
		}
	}
	return scalarString(node)
}

// scalarString renders a JSON scalar as a string. Objects, arrays, and nulls
// are not field candidates.
func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		return s, s != ""
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return "", false
	default:
		return "", false
	}
}

// plausibleValue is the shared candidate gate for shape probes and the
// generic search. It rejects values that could not survive normalization, so
// a later method still gets a chance to fill the field.
func plausibleValue(f field, v string, p Policy) bool {
	switch f {
	case fieldName:
		return strings.ContainsFunc(v, unicode.IsLetter)
	case fieldIdentity:
		n := NormalizeIdentityNumber(v)
		return len(n) >= p.MinIdentityLength && len(n) <= p.FullIdentityLength
	case fieldBirthDate:
		return birthDateFormat.MatchString(strings.TrimSpace(v))
	case fieldGender:
		return v != ""
	}
	return false
}
