package accesslog

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/redmonkez12/locklog/internal/database"
	"github.com/redmonkez12/locklog/internal/device"
	"github.com/redmonkez12/locklog/internal/httputil"
	"github.com/redmonkez12/locklog/internal/logging"
	"github.com/redmonkez12/locklog/internal/session"
	"github.com/redmonkez12/locklog/internal/validation"
	"github.com/redmonkez12/locklog/internal/web"
)

const msgScoreUpdated = "Score updated successfully."

// Handler serves the access log pages.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// List handles GET /access-log. An empty log renders with no data.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	logs, err := h.service.List(r.Context())
	if err != nil && !errors.Is(err, ErrNoEntries) {
		web.Fail(w, r, err, "/access-log")
		return
	}
	session.Render(w, r, "Access Log", logs)
}

// Record handles a manual entry posted from the access log page.
func (h *Handler) Record(w http.ResponseWriter, r *http.Request) {
	score, err := parseScore(web.FormValue(r, "score"))
	if err != nil {
		web.Fail(w, r, err, "/access-log")
		return
	}

	in := RecordInput{
		Key:       web.FormValue(r, "key"),
		ProjectID: web.FormValue(r, "project_id"),
		CardID:    web.FormValue(r, "card_id"),
		ScoreType: web.FormValue(r, "score_type"),
		Note:      web.FormValue(r, "note"),
		Success:   checked(web.FormValue(r, "success")),
		NewCard:   checked(web.FormValue(r, "new_card")),
	}
	if score != nil {
		in.Score = *score
	}

	if _, err := h.service.Record(r.Context(), in); err != nil {
		web.Fail(w, r, err, "/access-log")
		return
	}

	session.RedirectWithFlash(w, r, "/access-log", session.FlashSuccess, "Access recorded successfully.")
}

// Report handles GET /access-log/score/report
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.Report(r.Context())
	if err != nil {
		web.Fail(w, r, err, "/access-log")
		return
	}
	session.Render(w, r, "Score Report", rows)
}

// Show renders the score form for one log.
func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, ok := web.IDParam(w, r, ErrNotFound)
	if !ok {
		return
	}

	l, err := h.service.Get(r.Context(), id)
	if err != nil {
		web.Fail(w, r, err, "/access-log", ErrNotFound)
		return
	}
	session.Render(w, r, "Score", l)
}

// UpdateScore handles POST /access-log/{id}
func (h *Handler) UpdateScore(w http.ResponseWriter, r *http.Request) {
	id, ok := web.IDParam(w, r, ErrNotFound)
	if !ok {
		return
	}
	back := "/access-log/" + id.String()

	score, err := parseScore(web.FormValue(r, "score"))
	if err != nil {
		web.Fail(w, r, err, back)
		return
	}

	updated, err := h.service.UpdateScore(r.Context(), id, ScoreInput{
		Score:     score,
		ScoreType: web.FormValue(r, "score_type"),
		Note:      web.FormValue(r, "note"),
	})
	if err != nil {
		web.Fail(w, r, err, back)
		return
	}
	if !updated {
		httputil.RespondErrorWithCode(w, ErrNotFound.Error(), httputil.CodeNotFound, http.StatusNotFound)
		return
	}

	session.RedirectWithFlash(w, r, "/access-log/", session.FlashSuccess, msgScoreUpdated)
}

// parseScore returns nil for an empty field so validation reports it as
// missing rather than zero.
func parseScore(raw string) (*float64, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	// NaN and Inf parse but cannot be rendered as JSON
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, validation.NewError("score", "Score must be a number")
	}
	return &v, nil
}

// checked reads an HTML checkbox, which posts "on" by default.
func checked(v string) bool {
	if v == "on" {
		return true
	}
	b, _ := strconv.ParseBool(v)
	return b
}

// APIHandler accepts events from devices holding a token.
type APIHandler struct {
	service *Service
}

func NewAPIHandler(service *Service) *APIHandler {
	return &APIHandler{service: service}
}

// Record handles POST /api/v1/access. The lock uid from the device token is
// the event's key; a key in the body is ignored.
func (h *APIHandler) Record(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	lockUID, ok := device.LockFromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "missing authentication", httputil.CodeUnauthorized, http.StatusUnauthorized)
		return
	}

	var in RecordInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		logger.Warn("failed to decode access event", "error", err.Error())
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequest, http.StatusBadRequest)
		return
	}
	in.Key = lockUID

	l, err := h.service.Record(r.Context(), in)
	if err != nil {
		var verr *validation.Error
		switch {
		case errors.As(err, &verr):
			httputil.RespondValidation(w, verr.Fields)
		case errors.Is(err, database.ErrTimeout):
			httputil.RespondErrorWithCode(w, "service temporarily unavailable", httputil.CodeUnavailable, http.StatusServiceUnavailable)
		default:
			logger.Error("failed to record access event", "error", err.Error())
			httputil.RespondErrorWithCode(w, "internal server error", httputil.CodeInternal, http.StatusInternalServerError)
		}
		return
	}

	httputil.RespondJSON(w, l, http.StatusCreated)
}
