package quizzes

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("quiz not found")
	ErrSlugConflict  = errors.New("a quiz with this title already exists")
	ErrDraftsMissing = errors.New("all email drafts (SHARE, RESULT, MONTHLY) must exist before creating a quiz")
)

// ValidationError reports the first field that failed quiz validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
