package models

import (
	"time"

	"github.com/google/uuid"
)

// Winner is the respondent drawn for a quiz after its deadline.
type Winner struct {
	ID         uuid.UUID `json:"id"`
	QuizID     uuid.UUID `json:"quiz_id"`
	Name       string    `json:"name"`
	Phone      string    `json:"phone"`
	SelectedAt time.Time `json:"selected_at"`
}

// MonthlyWinner is the winner drawn among all quiz winners of a calendar month.
type MonthlyWinner struct {
	ID         uuid.UUID `json:"id"`
	QuizID     uuid.UUID `json:"quiz_id"`
	Month      int       `json:"month"`
	Year       int       `json:"year"`
	Name       string    `json:"name"`
	Phone      string    `json:"phone"`
	SelectedAt time.Time `json:"selected_at"`
}
