package card

import (
	"time"

	"github.com/google/uuid"
)

// Card is an identity record for a tracked person or asset, referenced by
// access events through UID.
type Card struct {
	ID          uuid.UUID `json:"id"`
	UID         string    `json:"uid"`
	Name        string    `json:"name"`
	IDCard      string    `json:"idcard"`
	Mobile      string    `json:"mobile"`
	Messenger   string    `json:"messenger"`
	MemberID    string    `json:"member_id"`
	Description string    `json:"description"`
	Profield    string    `json:"profield"`
	LockIDs     []string  `json:"lock_ids"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Input struct {
	UID         string   `form:"uid" validate:"required,max=100"`
	Name        string   `form:"name" validate:"required,max=200"`
	IDCard      string   `form:"idcard" validate:"max=100"`
	Mobile      string   `form:"mobile" validate:"max=50"`
	Messenger   string   `form:"messenger" validate:"max=100"`
	MemberID    string   `form:"memberid" validate:"max=100"`
	Description string   `form:"description"`
	Profield    string   `form:"profield" validate:"max=100"`
	LockIDs     []string `form:"locks" validate:"dive,uuid"`
}
