package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Row types mirror the migrations one to one. Domain packages map them to
// their own structs so nothing outside this package depends on bun tags.

type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID                     uuid.UUID         `bun:"id,pk,type:uuid,nullzero,default:gen_random_uuid()"`
	Email                  string            `bun:"email,notnull,unique"`
	PasswordHash           string            `bun:"password_hash,notnull"`
	ProfileName            string            `bun:"profile_name,notnull"`
	ProfileGender          string            `bun:"profile_gender,notnull"`
	ProfileLocation        string            `bun:"profile_location,notnull"`
	ProfileWebsite         string            `bun:"profile_website,notnull"`
	ProviderTokens         map[string]string `bun:"provider_tokens,type:jsonb,nullzero"`
	PasswordResetTokenHash *string           `bun:"password_reset_token_hash"`
	PasswordResetExpires   *time.Time        `bun:"password_reset_expires"`
	CreatedAt              time.Time         `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt              time.Time         `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type Card struct {
	bun.BaseModel `bun:"table:cards,alias:c"`

	ID          uuid.UUID `bun:"id,pk,type:uuid,nullzero,default:gen_random_uuid()"`
	UID         string    `bun:"uid,notnull,unique"`
	Name        string    `bun:"name,notnull"`
	IDCard      string    `bun:"idcard,notnull"`
	Mobile      string    `bun:"mobile,notnull"`
	Messenger   string    `bun:"messenger,notnull"`
	MemberID    string    `bun:"member_id,notnull"`
	Description string    `bun:"description,notnull"`
	Profield    string    `bun:"profield,notnull"`
	LockIDs     []string  `bun:"lock_ids,array,type:uuid[]"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt   time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type Project struct {
	bun.BaseModel `bun:"table:projects,alias:p"`

	ID           uuid.UUID `bun:"id,pk,type:uuid,nullzero,default:gen_random_uuid()"`
	UID          string    `bun:"uid,notnull,unique"`
	Name         string    `bun:"name,notnull"`
	Description  string    `bun:"description,notnull"`
	Picture      string    `bun:"picture,notnull"`
	PictureThumb string    `bun:"picture_thumb,notnull"`
	Materials    string    `bun:"materials,notnull"`
	Tools        string    `bun:"tools,notnull"`
	Steps        []string  `bun:"steps,array,type:text[]"`
	Tips         string    `bun:"tips,notnull"`
	CreatedAt    time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt    time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type Lock struct {
	bun.BaseModel `bun:"table:locks,alias:l"`

	ID          uuid.UUID `bun:"id,pk,type:uuid,nullzero,default:gen_random_uuid()"`
	UID         string    `bun:"uid,notnull,unique"`
	Name        string    `bun:"name,notnull"`
	Description string    `bun:"description,notnull"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt   time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type AccessLog struct {
	bun.BaseModel `bun:"table:access_logs,alias:al"`

	ID        uuid.UUID `bun:"id,pk,type:uuid,nullzero,default:gen_random_uuid()"`
	ProjectID string    `bun:"project_id,notnull"`
	CardID    string    `bun:"card_id,notnull"`
	Score     float64   `bun:"score,notnull"`
	ScoreType string    `bun:"score_type,notnull"`
	Note      string    `bun:"note,notnull"`
	Success   bool      `bun:"success,notnull"`
	NewCard   bool      `bun:"new_card,notnull"`
	Source    string    `bun:"source,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
