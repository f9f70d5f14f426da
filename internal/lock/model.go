package lock

import (
	"time"

	"github.com/google/uuid"
)

// Lock is a device that reports access events under its UID.
type Lock struct {
	ID          uuid.UUID `json:"id"`
	UID         string    `json:"uid"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Input struct {
	UID         string `form:"uid" validate:"required,max=100"`
	Name        string `form:"name" validate:"required,max=200"`
	Description string `form:"description"`
}
