// Package sepa implements the direct-debit backend's account validation
// rules: IBAN structure and mod-97 checksum, BIC (SWIFT code) format.
// Validation failures surface to callers as invalid_format with the
// messages returned here.
package sepa

import (
	"errors"
	"regexp"
	"strings"
)

var (
	ErrIBANLength   = errors.New("IBAN has an invalid length")
	ErrIBANFormat   = errors.New("IBAN contains invalid characters")
	ErrIBANChecksum = errors.New("IBAN checksum is incorrect")
	ErrBICFormat    = errors.New("BIC (SWIFT code) has an invalid format")
)

// ibanPattern: two-letter country code, two check digits, 11-30
// alphanumeric BBAN characters.
var ibanPattern = regexp.MustCompile(`^[A-Z]{2}[0-9]{2}[A-Z0-9]{11,30}$`)

// bicPattern: 4-letter bank code, 2-letter country, 2 alphanumeric
// location characters, optional 3-character branch code.
var bicPattern = regexp.MustCompile(`^[A-Z]{6}[A-Z0-9]{2}([A-Z0-9]{3})?$`)

// VerifyIBAN checks structure and the ISO 13616 mod-97 checksum.
func VerifyIBAN(iban string) error {
	iban = normalize(iban)
	if len(iban) < 15 || len(iban) > 34 {
		return ErrIBANLength
	}
	if !ibanPattern.MatchString(iban) {
		return ErrIBANFormat
	}
	if mod97(iban[4:]+iban[:4]) != 1 {
		return ErrIBANChecksum
	}
	return nil
}

// VerifyBIC checks the ISO 9362 format.
func VerifyBIC(bic string) error {
	if !bicPattern.MatchString(normalize(bic)) {
		return ErrBICFormat
	}
	return nil
}

func normalize(s string) string {
	return strings.ToUpper(strings.ReplaceAll(s, " ", ""))
}

// mod97 computes the remainder of the rearranged IBAN interpreted as a
// decimal number with letters substituted by 10..35, processed
// incrementally to avoid big integers.
func mod97(s string) int {
	rem := 0
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
			rem = (rem*10 + int(c-'0')) % 97
		case c >= 'A' && c <= 'Z':
			n := int(c-'A') + 10
			rem = (rem*100 + n) % 97
		default:
			return 0
		}
	}
	return rem
}
