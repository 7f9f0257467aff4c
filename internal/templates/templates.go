// Package templates validates and renders the {{NAME}} placeholders used in
// quiz email drafts.
package templates

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/qwinhub/backend/internal/models"
)

// ErrInvalidPlaceholder is returned when content uses a name outside its type's vocabulary.
var ErrInvalidPlaceholder = errors.New("invalid placeholder")

var tokenRe = regexp.MustCompile(`\{\{([A-Z][A-Z0-9_]*)\}\}`)

var vocabulary = map[models.DraftType][]string{
	models.DraftShare: {"TITLE", "OPTIONS", "LINK", "DEADLINE"},
	models.DraftResult: {
		"TITLE", "OPTIONS", "TOTAL_RESPONSES", "CORRECT_COUNT", "WRONG_COUNT",
		"CORRECT_NAMES", "WRONG_NAMES", "CORRECT_PHONES", "WRONG_PHONES",
		"WINNER_NAME", "WINNER_PHONE",
	},
	models.DraftMonthly: {
		"TITLE", "OPTIONS", "MONTH", "YEAR", "TOTAL_WINNERS", "WINNER_NAMES",
		"WINNER_PHONES", "MONTHLY_WINNER_NAME", "MONTHLY_WINNER_PHONE",
	},
}

// Placeholders returns the names allowed in a draft of type t.
func Placeholders(t models.DraftType) []string {
	switch t {
	case models.DraftShare, models.DraftResult, models.DraftMonthly:
		return append([]string(nil), vocabulary[t]...)
	default:
		return nil
	}
}

// Validation is the outcome of checking draft content. Invalid blocks a save;
// Missing is only a warning.
type Validation struct {
	Missing []string `json:"missing"`
	Invalid []string `json:"invalid"`
}

// Err returns ErrInvalidPlaceholder naming the offenders, or nil.
func (v Validation) Err() error {
	if len(v.Invalid) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidPlaceholder, strings.Join(v.Invalid, ", "))
}

// Validate checks every {{NAME}} token in content against the vocabulary of t.
func Validate(t models.DraftType, content string) Validation {
	allowed := make(map[string]bool)
	for _, name := range Placeholders(t) {
		allowed[name] = true
	}

	used := make(map[string]bool)
	invalid := make(map[string]bool)
	for _, m := range tokenRe.FindAllStringSubmatch(content, -1) {
		name := m[1]
		used[name] = true
		if !allowed[name] {
			invalid[name] = true
		}
	}

	v := Validation{Missing: []string{}, Invalid: []string{}}
	for _, name := range Placeholders(t) {
		if !used[name] {
			v.Missing = append(v.Missing, name)
		}
	}
	for name := range invalid {
		v.Invalid = append(v.Invalid, name)
	}
	sort.Strings(v.Invalid)
	return v
}

// Render substitutes every known token in one pass. Tokens with no value are
// left as written, so substituted text is never re-scanned.
func Render(content string, values map[string]string) string {
	return tokenRe.ReplaceAllStringFunc(content, func(tok string) string {
		name := tok[2 : len(tok)-2]
		if v, ok := values[name]; ok {
			return v
		}
		return tok
	})
}
