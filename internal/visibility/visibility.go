// Package visibility decides what a viewer may see of a quiz at a given instant.
package visibility

import (
	"time"

	"github.com/google/uuid"

	"github.com/qwinhub/backend/internal/identity"
	"github.com/qwinhub/backend/internal/models"
)

// State is a quiz's time-derived lifecycle state.
type State string

const (
	StateActive  State = "active"
	StateExpired State = "expired"
)

// ActiveState reports whether a quiz with the given deadline still accepts answers at now.
func ActiveState(deadline, now time.Time) State {
	if now.Before(deadline) {
		return StateActive
	}
	return StateExpired
}

// ProjectedQuiz is a quiz as a particular viewer may see it.
type ProjectedQuiz struct {
	ID            uuid.UUID `json:"id"`
	Slug          string    `json:"slug"`
	Title         string    `json:"title"`
	Options       []string  `json:"options"`
	CorrectAnswer *string   `json:"correct_answer"`
	Deadline      time.Time `json:"deadline"`
	CreatedAt     time.Time `json:"created_at"`
	Status        State     `json:"status"`
}

// ProjectedWinner is a winner as a particular viewer may see it.
type ProjectedWinner struct {
	Name       string    `json:"name"`
	Phone      string    `json:"phone"`
	SelectedAt time.Time `json:"selected_at"`
}

// ProjectQuiz withholds the correct answer from non-admins until the deadline passes.
func ProjectQuiz(q *models.Quiz, viewerIsAdmin bool, now time.Time) ProjectedQuiz {
	state := ActiveState(q.Deadline, now)
	p := ProjectedQuiz{
		ID:        q.ID,
		Slug:      q.Slug,
		Title:     q.Title,
		Options:   append([]string(nil), q.Options...),
		Deadline:  q.Deadline,
		CreatedAt: q.CreatedAt,
		Status:    state,
	}
	if viewerIsAdmin || state == StateExpired {
		answer := q.CorrectAnswer
		p.CorrectAnswer = &answer
	}
	return p
}

// ProjectWinner returns nil when w is nil or the viewer is a non-admin and the
// quiz is still active. Non-admins get a masked phone.
func ProjectWinner(w *models.Winner, viewerIsAdmin bool, now, deadline time.Time) *ProjectedWinner {
	if w == nil {
		return nil
	}
	p := &ProjectedWinner{Name: w.Name, Phone: w.Phone, SelectedAt: w.SelectedAt}
	if viewerIsAdmin {
		return p
	}
	if ActiveState(deadline, now) == StateActive {
		return nil
	}
	p.Phone = identity.Mask(w.Phone)
	return p
}
