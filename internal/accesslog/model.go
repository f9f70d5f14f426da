package accesslog

import (
	"time"

	"github.com/google/uuid"
)

// Log is one access event. ProjectID and CardID are external uids held by
// value; they may point at nothing.
type Log struct {
	ID        uuid.UUID `json:"id"`
	ProjectID string    `json:"project_id"`
	CardID    string    `json:"card_id"`
	Score     float64   `json:"score"`
	ScoreType string    `json:"score_type"`
	Note      string    `json:"note"`
	Success   bool      `json:"success"`
	NewCard   bool      `json:"new_card"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RecordInput is an event as reported by a device. Key identifies the
// reporting device and becomes the log's Source.
type RecordInput struct {
	Key       string  `form:"key" json:"-" validate:"required,max=100"`
	ProjectID string  `form:"project_id" json:"project_id" validate:"max=100"`
	CardID    string  `form:"card_id" json:"card_id" validate:"max=100"`
	Score     float64 `form:"score" json:"score"`
	ScoreType string  `form:"score_type" json:"score_type" validate:"max=100"`
	Note      string  `form:"note" json:"note"`
	Success   bool    `form:"success" json:"success"`
	NewCard   bool    `form:"new_card" json:"new_card"`
}

// ScoreInput is the score form. Score is a pointer so a missing value is
// told apart from zero.
type ScoreInput struct {
	Score     *float64 `form:"score" validate:"required"`
	ScoreType string   `form:"score_type" validate:"max=100"`
	Note      string   `form:"note"`
}

// ReportRow pairs a scored log with the card it was recorded for.
type ReportRow struct {
	CardID    string    `json:"card_id"`
	Name      string    `json:"name"`
	IDCard    string    `json:"idcard"`
	Profield  string    `json:"profield"`
	Score     float64   `json:"score"`
	ScoreType string    `json:"score_type"`
	Note      string    `json:"note"`
	CreatedAt time.Time `json:"created_at"`
}
