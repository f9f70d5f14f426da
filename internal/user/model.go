package user

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID             uuid.UUID         `json:"id"`
	Email          string            `json:"email"`
	PasswordHash   string            `json:"-"` // Never expose password hash in JSON
	Profile        Profile           `json:"profile"`
	ProviderTokens map[string]string `json:"-"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

type Profile struct {
	Name     string `json:"name"`
	Gender   string `json:"gender"`
	Location string `json:"location"`
	Website  string `json:"website"`
}
