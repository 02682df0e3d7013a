package validate

import (
	"errors"
	"strings"
)

// Card validation errors
var (
	ErrInvalidCardNumber = errors.New("card number is invalid")
	ErrInvalidCVV        = errors.New("card security code must be 3 or 4 digits")
)

// CardNumber validates a raw card number as typed by the operator. Spaces and
// dashes are stripped; the result must be 12-19 digits and pass the Luhn
// check. Returns the normalized digit string.
func CardNumber(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-':
			// Operators paste numbers with separators
		default:
			return "", ErrInvalidCardNumber
		}
	}

	number := b.String()
	if len(number) < 12 || len(number) > 19 {
		return "", ErrInvalidCardNumber
	}
	if !luhnValid(number) {
		return "", ErrInvalidCardNumber
	}
	return number, nil
}

// CVV validates a card security code: 3 or 4 digits.
func CVV(raw string) (string, error) {
	if len(raw) < 3 || len(raw) > 4 {
		return "", ErrInvalidCVV
	}
	for _, r := range raw {
		if r < '0' || r > '9' {
			return "", ErrInvalidCVV
		}
	}
	return raw, nil
}

// luhnValid runs the Luhn checksum over a digit string.
func luhnValid(number string) bool {
	sum := 0
	double := false
	for i := len(number) - 1; i >= 0; i-- {
		d := int(number[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}
