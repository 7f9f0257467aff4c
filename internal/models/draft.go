package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DraftType identifies an email template. The set is closed.
type DraftType string

const (
	DraftShare   DraftType = "SHARE"
	DraftResult  DraftType = "RESULT"
	DraftMonthly DraftType = "MONTHLY"
)

// DraftTypes lists every template type; all must exist before a quiz can be created.
var DraftTypes = []DraftType{DraftShare, DraftResult, DraftMonthly}

// ParseDraftType accepts a draft type in any case and rejects everything outside the closed set.
func ParseDraftType(s string) (DraftType, error) {
	switch t := DraftType(strings.ToUpper(strings.TrimSpace(s))); t {
	case DraftShare, DraftResult, DraftMonthly:
		return t, nil
	default:
		return "", fmt.Errorf("unknown draft type %q", s)
	}
}

// Draft is the admin-edited email template for one type.
type Draft struct {
	ID        uuid.UUID `json:"id"`
	Type      DraftType `json:"type"`
	Subject   string    `json:"subject"`
	Content   string    `json:"content"`
	UpdatedAt time.Time `json:"updated_at"`
}
