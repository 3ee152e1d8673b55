package document

import (
	"sort"
	"strings"
)

// keyVocabulary maps key-name substrings to the field they indicate. Checked
// in this order so "uid"/"aadhaar" keys never lose an identity candidate to
// the broader "name" match ("username" style keys still classify as names).
var keyVocabulary = []struct {
	substrings []string
	field      field
}{
	{[]string{"uid", "aadhaar"}, fieldIdentity},
	{[]string{"dob", "birth"}, fieldBirthDate},
	{[]string{"gender"}, fieldGender},
	{[]string{"name"}, fieldName},
}

// genericSearch traverses the document tree and classifies scalar-valued keys
// against the key vocabulary, filling only fields that are still empty. The
// traversal is depth-bounded by policy: JSON text cannot encode cycles, but
// pathological nesting must not exhaust the stack. Keys are visited in sorted
// order at each level so the first-match rule is deterministic.
func genericSearch(node any, depth int, found *candidates, p Policy) {
	if depth > p.MaxSearchDepth {
		return
	}

	switch t := node.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		// Scalars at this level first, then descend. A match at a shallower
		// level must not be overwritten by a deeper one.
		for _, k := range keys {
			v, ok := scalarString(t[k])
			if !ok {
				continue
			}
			f, classified := classifyKey(k)
			if !classified || found.has(f) {
				continue
			}
			if plausibleValue(f, v, p) {
				found.set(f, v)
			}
		}
		for _, k := range keys {
			switch t[k].(type) {
			case map[string]any, []any:
				genericSearch(t[k], depth+1, found, p)
			}
		}
	case []any:
		for _, item := range t {
			genericSearch(item, depth+1, found, p)
		}
	}
}

// classifyKey matches a key name against the vocabulary, case-insensitively.
func classifyKey(key string) (field, bool) {
	lower := strings.ToLower(key)
	for _, entry := range keyVocabulary {
		for _, sub := range entry.substrings {
			if strings.Contains(lower, sub) {
				return entry.field, true
			}
		}
	}
	return 0, false
}
