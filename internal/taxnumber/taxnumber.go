// Package taxnumber validates Hungarian tax numbers (adószám) of the form
// XXXXXXXX-Y-ZZ.
package taxnumber

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidFormat = errors.New("invalid_tax_number")

var checksumWeights = [7]int{9, 7, 3, 1, 9, 7, 3}

// TaxNumber is a validated tax number. The zero value means "not known".
type TaxNumber struct {
	base   string
	vat    byte
	county string
}

// Validate parses raw and verifies its structure and check digit. Dashes are
// optional and surrounding whitespace is ignored.
func Validate(raw string) (TaxNumber, error) {
	value := strings.TrimSpace(raw)
	digits := strings.ReplaceAll(value, "-", "")
	if len(digits) != 11 {
		return TaxNumber{}, fmt.Errorf("%w: expected 11 digits", ErrInvalidFormat)
	}
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return TaxNumber{}, fmt.Errorf("%w: only digits and dashes are allowed", ErrInvalidFormat)
		}
	}
	if strings.Contains(value, "-") && !hasCanonicalDashes(value) {
		return TaxNumber{}, fmt.Errorf("%w: expected XXXXXXXX-Y-ZZ", ErrInvalidFormat)
	}

	sum := 0
	for i, w := range checksumWeights {
		sum += int(digits[i]-'0') * w
	}
	if check := (10 - sum%10) % 10; check != int(digits[7]-'0') {
		return TaxNumber{}, fmt.Errorf("%w: check digit mismatch", ErrInvalidFormat)
	}

	vat := digits[8]
	if vat < '1' || vat > '5' {
		return TaxNumber{}, fmt.Errorf("%w: vat code must be between 1 and 5", ErrInvalidFormat)
	}

	county := digits[9:]
	if !validCounty(county) {
		return TaxNumber{}, fmt.Errorf("%w: unknown county code %s", ErrInvalidFormat, county)
	}

	return TaxNumber{base: digits[:8], vat: vat, county: county}, nil
}

// MustValidate is like Validate but panics on error. Intended for tests and constants.
func MustValidate(raw string) TaxNumber {
	tn, err := Validate(raw)
	if err != nil {
		panic(err)
	}
	return tn
}

func (t TaxNumber) IsZero() bool {
	return t.base == ""
}

func (t TaxNumber) String() string {
	if t.IsZero() {
		return ""
	}
	return t.base + "-" + string(t.vat) + "-" + t.county
}

func hasCanonicalDashes(value string) bool {
	return len(value) == 13 && value[8] == '-' && value[10] == '-'
}

func validCounty(code string) bool {
	n := int(code[0]-'0')*10 + int(code[1]-'0')
	switch {
	case n >= 2 && n <= 20:
		return true
	case n >= 22 && n <= 44:
		return true
	case n == 51:
		return true
	default:
		return false
	}
}
