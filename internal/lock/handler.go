package lock

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/redmonkez12/locklog/internal/card"
	"github.com/redmonkez12/locklog/internal/logging"
	"github.com/redmonkez12/locklog/internal/session"
	"github.com/redmonkez12/locklog/internal/validation"
	"github.com/redmonkez12/locklog/internal/web"
)

type Store interface {
	Create(ctx context.Context, in Input) (*Lock, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Lock, error)
	List(ctx context.Context) ([]Lock, error)
	Update(ctx context.Context, id uuid.UUID, in Input) (*Lock, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// CardLister finds the cards granted access to a lock.
type CardLister interface {
	ListByLock(ctx context.Context, lockID uuid.UUID) ([]card.Card, error)
}

// TokenIssuer mints device tokens. *device.TokenService satisfies it.
type TokenIssuer interface {
	Issue(lockUID string) (string, time.Time, error)
}

type Handler struct {
	locks     Store
	cards     CardLister
	tokens    TokenIssuer
	validator *validation.Validator
}

func NewHandler(locks Store, cards CardLister, tokens TokenIssuer, v *validation.Validator) *Handler {
	return &Handler{locks: locks, cards: cards, tokens: tokens, validator: v}
}

// Detail is the lock page model.
type Detail struct {
	Lock  *Lock       `json:"lock"`
	Cards []card.Card `json:"cards"`
}

// IssuedToken is shown once after POST /locks/{id}/token.
type IssuedToken struct {
	LockUID   string    `json:"lock_uid"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func inputFromForm(r *http.Request) Input {
	return Input{
		UID:         web.FormValue(r, "uid"),
		Name:        web.FormValue(r, "name"),
		Description: web.FormValue(r, "description"),
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	locks, err := h.locks.List(r.Context())
	if err != nil {
		web.Fail(w, r, err, "/locks")
		return
	}
	session.Render(w, r, "Locks", locks)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	in := inputFromForm(r)
	if err := h.validator.Struct(in); err != nil {
		web.Fail(w, r, err, "/locks")
		return
	}

	if _, err := h.locks.Create(r.Context(), in); err != nil {
		if errors.Is(err, ErrDuplicateUID) {
			session.RedirectWithFlash(w, r, "/locks", session.FlashErrors, "This lock already exists")
			return
		}
		web.Fail(w, r, err, "/locks")
		return
	}

	session.RedirectWithFlash(w, r, "/locks", session.FlashSuccess, "Lock created successfully.")
}

// Show renders a lock with the cards that may open it.
func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, ok := web.IDParam(w, r, ErrNotFound)
	if !ok {
		return
	}

	l, err := h.locks.GetByID(r.Context(), id)
	if err != nil {
		web.Fail(w, r, err, "/locks", ErrNotFound)
		return
	}

	cards, err := h.cards.ListByLock(r.Context(), l.ID)
	if err != nil {
		web.Fail(w, r, err, "/locks")
		return
	}

	session.Render(w, r, "Lock: "+l.Name, Detail{Lock: l, Cards: cards})
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := web.IDParam(w, r, ErrNotFound)
	if !ok {
		return
	}
	back := "/locks/" + id.String()

	in := inputFromForm(r)
	if err := h.validator.Struct(in); err != nil {
		web.Fail(w, r, err, back)
		return
	}

	if _, err := h.locks.Update(r.Context(), id, in); err != nil {
		if errors.Is(err, ErrDuplicateUID) {
			session.RedirectWithFlash(w, r, back, session.FlashErrors, "This lock already exists")
			return
		}
		web.Fail(w, r, err, back, ErrNotFound)
		return
	}

	session.RedirectWithFlash(w, r, "/locks", session.FlashSuccess, "Lock updated successfully.")
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := web.IDParam(w, r, ErrNotFound)
	if !ok {
		return
	}

	if err := h.locks.Delete(r.Context(), id); err != nil {
		web.Fail(w, r, err, "/locks", ErrNotFound)
		return
	}

	session.RedirectWithFlash(w, r, "/locks", session.FlashSuccess, "Lock deleted successfully.")
}

// IssueToken mints a device token for the lock. The token is rendered once
// and never stored.
func (h *Handler) IssueToken(w http.ResponseWriter, r *http.Request) {
	id, ok := web.IDParam(w, r, ErrNotFound)
	if !ok {
		return
	}

	l, err := h.locks.GetByID(r.Context(), id)
	if err != nil {
		web.Fail(w, r, err, "/locks", ErrNotFound)
		return
	}

	token, expires, err := h.tokens.Issue(l.UID)
	if err != nil {
		web.Fail(w, r, err, "/locks/"+id.String())
		return
	}

	logging.GetLoggerFromContext(r.Context()).Info("device token issued", "lock_uid", l.UID, "expires_at", expires)
	session.Render(w, r, "Device Token", IssuedToken{LockUID: l.UID, Token: token, ExpiresAt: expires})
}
