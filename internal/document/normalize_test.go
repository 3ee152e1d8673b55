package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeGender(t *testing.T) {
	cases := map[string]string{
		"MALE":        GenderMale,
		"Male ":       GenderMale,
		"male":        GenderMale,
		"F":           GenderFemale,
		"f":           GenderFemale,
		"FEMALE":      GenderFemale,
		"transgender": GenderOthers,
		"Other":       GenderOthers,
		"T":           GenderOthers,
		"":            "",
		"unspecified": "unspecified",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeGender(in), "input %q", in)
	}
}

func TestNormalizeGenderIdempotent(t *testing.T) {
	inputs := []string{"MALE", "Male ", "transgender", "F", "x", "", "unspecified", "Female"}
	for _, in := range inputs {
		once := NormalizeGender(in)
		assert.Equal(t, once, NormalizeGender(once), "input %q", in)
	}
}

func TestNormalizeName(t *testing.T) {
	cases := map[string]string{
		"jane doe":          "JANE DOE",
		"  Jane   Doe  ":    "JANE DOE",
		"O'Brien, Conor":    "OBRIEN CONOR",
		"jean-luc\tpicard":  "JEANLUC PICARD",
		"raj.kumar  sharma": "RAJKUMAR SHARMA",
		"":                  "",
		"!!!":               "",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeName(in), "input %q", in)
	}
}

func TestNormalizeIdentityNumber(t *testing.T) {
	cases := map[string]string{
		"1234 5678 9012": "123456789012",
		"xxxx-xxxx-9012": "XXXXXXXX9012",
		"**** **** 9012": "XXXXXXXX9012",
		" 1234\t5678 ":   "12345678",
		"no digits here": "",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeIdentityNumber(in), "input %q", in)
	}
}

func TestAttributesNormalizedIdempotent(t *testing.T) {
	attrs := Attributes{
		FullName:       " jane  doe ",
		IdentityNumber: "1234 5678 9012",
		BirthDate:      " 01/01/1990 ",
		Gender:         "F",
	}
	once := attrs.Normalized()
	assert.Equal(t, once, once.Normalized())
	assert.Equal(t, "JANE DOE", once.FullName)
	assert.Equal(t, "123456789012", once.IdentityNumber)
	assert.Equal(t, "01/01/1990", once.BirthDate)
	assert.Equal(t, GenderFemale, once.Gender)
}
