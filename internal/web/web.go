// Package web holds the request helpers shared by the form handlers.
package web

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/redmonkez12/locklog/internal/database"
	"github.com/redmonkez12/locklog/internal/httputil"
	"github.com/redmonkez12/locklog/internal/logging"
	"github.com/redmonkez12/locklog/internal/session"
	"github.com/redmonkez12/locklog/internal/validation"
)

// Fail maps the errors shared by every form: validation goes back to the
// form as flashes, any of notFound is a 404, store timeouts are retryable
// and anything else is a server error.
func Fail(w http.ResponseWriter, r *http.Request, err error, back string, notFound ...error) {
	logger := logging.GetLoggerFromContext(r.Context())

	var verr *validation.Error
	if errors.As(err, &verr) {
		session.RedirectWithFlash(w, r, back, session.FlashErrors, verr.Messages()...)
		return
	}

	for _, nf := range notFound {
		if errors.Is(err, nf) {
			httputil.RespondErrorWithCode(w, nf.Error(), httputil.CodeNotFound, http.StatusNotFound)
			return
		}
	}

	if errors.Is(err, database.ErrTimeout) {
		logger.Warn("store timed out", "error", err.Error())
		httputil.RespondErrorWithCode(w, "service temporarily unavailable", httputil.CodeUnavailable, http.StatusServiceUnavailable)
		return
	}

	logger.Error("request failed", "error", err.Error())
	httputil.RespondErrorWithCode(w, "internal server error", httputil.CodeInternal, http.StatusInternalServerError)
}

// IDParam parses the {id} route parameter. A malformed id is answered with
// a 404 carrying notFound's message.
func IDParam(w http.ResponseWriter, r *http.Request, notFound error) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.RespondErrorWithCode(w, notFound.Error(), httputil.CodeNotFound, http.StatusNotFound)
		return uuid.Nil, false
	}
	return id, true
}

// FormValues returns the trimmed, non-empty values posted under key.
func FormValues(r *http.Request, key string) []string {
	_ = r.ParseForm()
	var out []string
	for _, v := range r.PostForm[key] {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// FormValue returns the trimmed posted value of key.
func FormValue(r *http.Request, key string) string {
	return strings.TrimSpace(r.PostFormValue(key))
}
