package card

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/redmonkez12/locklog/internal/session"
	"github.com/redmonkez12/locklog/internal/validation"
	"github.com/redmonkez12/locklog/internal/web"
)

// Store is the card persistence the handler needs.
type Store interface {
	Create(ctx context.Context, in Input) (*Card, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Card, error)
	List(ctx context.Context) ([]Card, error)
	Update(ctx context.Context, id uuid.UUID, in Input) (*Card, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type Handler struct {
	cards     Store
	validator *validation.Validator
}

func NewHandler(cards Store, v *validation.Validator) *Handler {
	return &Handler{cards: cards, validator: v}
}

func inputFromForm(r *http.Request) Input {
	return Input{
		UID:         web.FormValue(r, "uid"),
		Name:        web.FormValue(r, "name"),
		IDCard:      web.FormValue(r, "idcard"),
		Mobile:      web.FormValue(r, "mobile"),
		Messenger:   web.FormValue(r, "messenger"),
		MemberID:    web.FormValue(r, "memberid"),
		Description: web.FormValue(r, "description"),
		Profield:    web.FormValue(r, "profield"),
		LockIDs:     web.FormValues(r, "locks"),
	}
}

// List handles GET /cards
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	cards, err := h.cards.List(r.Context())
	if err != nil {
		web.Fail(w, r, err, "/cards")
		return
	}
	session.Render(w, r, "Cards", cards)
}

// Create handles POST /cards
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	in := inputFromForm(r)
	if err := h.validator.Struct(in); err != nil {
		web.Fail(w, r, err, "/cards")
		return
	}

	if _, err := h.cards.Create(r.Context(), in); err != nil {
		if errors.Is(err, ErrDuplicateUID) {
			session.RedirectWithFlash(w, r, "/cards", session.FlashErrors, "This card already exists")
			return
		}
		web.Fail(w, r, err, "/cards")
		return
	}

	session.RedirectWithFlash(w, r, "/cards", session.FlashSuccess, "Card created successfully.")
}

// Show handles GET /cards/{id}
func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, ok := web.IDParam(w, r, ErrNotFound)
	if !ok {
		return
	}

	c, err := h.cards.GetByID(r.Context(), id)
	if err != nil {
		web.Fail(w, r, err, "/cards", ErrNotFound)
		return
	}
	session.Render(w, r, "Card: "+c.Name, c)
}

// Update handles POST /cards/{id}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := web.IDParam(w, r, ErrNotFound)
	if !ok {
		return
	}
	back := "/cards/" + id.String()

	in := inputFromForm(r)
	if err := h.validator.Struct(in); err != nil {
		web.Fail(w, r, err, back)
		return
	}

	if _, err := h.cards.Update(r.Context(), id, in); err != nil {
		if errors.Is(err, ErrDuplicateUID) {
			session.RedirectWithFlash(w, r, back, session.FlashErrors, "This card already exists")
			return
		}
		web.Fail(w, r, err, back, ErrNotFound)
		return
	}

	session.RedirectWithFlash(w, r, "/cards", session.FlashSuccess, "Card updated successfully.")
}

// Delete handles POST /cards/delete/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := web.IDParam(w, r, ErrNotFound)
	if !ok {
		return
	}

	if err := h.cards.Delete(r.Context(), id); err != nil {
		web.Fail(w, r, err, "/cards", ErrNotFound)
		return
	}

	session.RedirectWithFlash(w, r, "/cards", session.FlashSuccess, "Card deleted successfully.")
}
