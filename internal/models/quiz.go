package models

import (
	"time"

	"github.com/google/uuid"
)

// Quiz is a single time-boxed question with a fixed set of options.
type Quiz struct {
	ID            uuid.UUID `json:"id"`
	Slug          string    `json:"slug"`
	Title         string    `json:"title"`
	Options       []string  `json:"options"`
	CorrectAnswer string    `json:"correct_answer"`
	Deadline      time.Time `json:"deadline"`
	CreatedAt     time.Time `json:"created_at"`
	IsProcessed   bool      `json:"is_processed"`
}

// QuizSummary is a Quiz with the aggregates the admin listing shows.
type QuizSummary struct {
	Quiz
	ResponseCount int     `json:"response_count"`
	Winner        *Winner `json:"winner,omitempty"`
}

// Key is the listing sort key: newest first, ties broken by id.
func (q Quiz) Key() (time.Time, uuid.UUID) {
	return q.CreatedAt, q.ID
}
