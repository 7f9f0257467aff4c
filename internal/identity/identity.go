// Package identity turns user-entered phone numbers into canonical E.164 keys
// and masks them for public display.
package identity

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/nyaruka/phonenumbers"
)

var (
	ErrContainsLetters   = errors.New("phone number cannot contain letters")
	ErrInvalidCharacters = errors.New("phone number contains invalid characters")
	ErrInvalidForRegion  = errors.New("phone number is not valid for the selected country")
	ErrInvalidCountry    = errors.New("country must be a two-letter region code")
)

// Normalize validates raw against the rules of country (ISO 3166 alpha-2) and
// returns it in E.164 form. A number written with a leading '+' carries its own
// calling code and is checked against that instead.
func Normalize(raw, country string) (string, error) {
	raw = strings.TrimSpace(raw)
	if err := checkCharacters(raw); err != nil {
		return "", err
	}

	region, err := parseRegion(country)
	if err != nil {
		return "", err
	}

	num, err := phonenumbers.Parse(raw, region)
	if err != nil {
		if errors.Is(err, phonenumbers.ErrInvalidCountryCode) && !strings.HasPrefix(raw, "+") {
			return "", ErrInvalidCountry
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidForRegion, err)
	}

	valid := phonenumbers.IsValidNumberForRegion(num, region)
	if strings.HasPrefix(raw, "+") {
		valid = phonenumbers.IsValidNumber(num)
	}
	if !valid {
		return "", ErrInvalidForRegion
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

// checkCharacters rejects letters before anything else so the caller can tell
// a typo from a stray symbol.
func checkCharacters(raw string) error {
	for _, r := range raw {
		if unicode.IsLetter(r) {
			return ErrContainsLetters
		}
	}
	if raw == "" {
		return ErrInvalidCharacters
	}
	for i, r := range raw {
		switch {
		case r >= '0' && r <= '9', r == ' ', r == '-', r == '(', r == ')':
		case r == '+' && i == 0:
		default:
			return ErrInvalidCharacters
		}
	}
	return nil
}

func parseRegion(country string) (string, error) {
	c := strings.ToUpper(strings.TrimSpace(country))
	if len(c) != 2 || c[0] < 'A' || c[0] > 'Z' || c[1] < 'A' || c[1] > 'Z' {
		return "", ErrInvalidCountry
	}
	return c, nil
}
