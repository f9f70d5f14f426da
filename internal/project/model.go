package project

import (
	"io"
	"time"

	"github.com/google/uuid"
)

// Project is something cards are scored against. Picture and PictureThumb
// are storage keys, empty when no picture was uploaded.
type Project struct {
	ID           uuid.UUID `json:"id"`
	UID          string    `json:"uid"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Picture      string    `json:"picture"`
	PictureThumb string    `json:"picture_thumb"`
	Materials    string    `json:"materials"`
	Tools        string    `json:"tools"`
	Steps        []string  `json:"steps"`
	Tips         string    `json:"tips"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Input struct {
	UID         string   `form:"uid" validate:"required,max=100"`
	Name        string   `form:"name" validate:"required,max=200"`
	Description string   `form:"description"`
	Materials   string   `form:"materials"`
	Tools       string   `form:"tools"`
	Steps       []string `form:"steps"`
	Tips        string   `form:"tips"`
}

// UpdateInput is Input without the uid, which never changes.
type UpdateInput struct {
	Name        string   `form:"name" validate:"required,max=200"`
	Description string   `form:"description"`
	Materials   string   `form:"materials"`
	Tools       string   `form:"tools"`
	Steps       []string `form:"steps"`
	Tips        string   `form:"tips"`
}

// Pictures holds the storage keys of an uploaded picture and its thumbnail.
type Pictures struct {
	Original string
	Thumb    string
}

// Upload is a picture posted with the create form.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}
