package models

import (
	"time"

	"github.com/google/uuid"
)

// Admin is a back-office account.
type Admin struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Password  string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}
