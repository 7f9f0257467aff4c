package models

import (
	"time"

	"github.com/google/uuid"
)

// Response is one respondent's answer to a quiz. Phone holds the canonical identity.
type Response struct {
	ID          uuid.UUID `json:"id"`
	QuizID      uuid.UUID `json:"quiz_id"`
	Name        string    `json:"name"`
	Phone       string    `json:"phone"`
	Answer      string    `json:"answer"`
	IsCorrect   bool      `json:"is_correct"`
	SubmittedAt time.Time `json:"submitted_at"`
}
