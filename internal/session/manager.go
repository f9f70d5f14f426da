package session

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"

	"github.com/redmonkez12/locklog/internal/database"
	"github.com/redmonkez12/locklog/internal/httputil"
	"github.com/redmonkez12/locklog/internal/logging"
	"github.com/redmonkez12/locklog/internal/user"
)

const (
	csrfFormField = "_csrf"
	csrfHeader    = "X-CSRF-Token"
)

// UserLoader resolves the user id stored in a session.
type UserLoader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
}

// Manager loads and saves sessions around each request.
type Manager struct {
	store sessions.Store
	name  string
	users UserLoader
}

func NewManager(store sessions.Store, name string, users UserLoader) *Manager {
	return &Manager{store: store, name: name, users: users}
}

// Middleware puts a *Context in the request context, reloading the user on
// every request, and saves the session right before the response is written
// so each response refreshes its expiry.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := logging.GetLoggerFromContext(r.Context())

		s, err := m.store.Get(r, m.name)
		if s == nil {
			logger.Error("failed to load session", "error", err)
			httputil.RespondErrorWithCode(w, "session unavailable", httputil.CodeUnavailable, http.StatusServiceUnavailable)
			return
		}
		if err != nil {
			// gorilla hands back a fresh session when the cookie cannot be decoded
			logger.Debug("starting new session", "error", err)
		}

		sc := &Context{session: s}
		if id, ok := sc.userID(); ok {
			u, err := m.users.GetByID(r.Context(), id)
			switch {
			case err == nil:
				sc.user = u
			case errors.Is(err, user.ErrNotFound):
				delete(s.Values, keyUserID)
			case errors.Is(err, database.ErrTimeout):
				logger.Error("failed to load session user", "error", err)
				httputil.RespondErrorWithCode(w, "service temporarily unavailable", httputil.CodeUnavailable, http.StatusServiceUnavailable)
				return
			default:
				logger.Error("failed to load session user", "error", err)
				httputil.RespondErrorWithCode(w, "internal server error", httputil.CodeInternal, http.StatusInternalServerError)
				return
			}
		} else {
			delete(s.Values, keyUserID)
		}

		sw := &savingWriter{ResponseWriter: w, r: r, sc: sc, m: m, logger: logger}
		next.ServeHTTP(sw, r.WithContext(withContext(r.Context(), sc)))
		sw.save()
	})
}

// savingWriter saves the session before the first byte of the response.
type savingWriter struct {
	http.ResponseWriter
	r      *http.Request
	sc     *Context
	m      *Manager
	logger *logging.Logger
	saved  bool
}

func (w *savingWriter) save() {
	if w.saved {
		return
	}
	w.saved = true
	for _, id := range w.sc.retired {
		w.m.destroy(w.r, id)
	}
	if err := w.sc.session.Save(w.r, w.ResponseWriter); err != nil {
		w.logger.Error("failed to save session", "error", err)
	}
}

// destroy removes the stored record of an abandoned session id. Saving with a
// negative MaxAge is how gorilla stores delete; the cookie it emits is dropped.
func (m *Manager) destroy(r *http.Request, id string) {
	old := sessions.NewSession(m.store, m.name)
	old.ID = id
	old.Options = &sessions.Options{Path: "/", MaxAge: -1}
	if err := m.store.Save(r, discardWriter{header: http.Header{}}, old); err != nil {
		logging.GetLoggerFromContext(r.Context()).Warn("failed to delete old session", "error", err)
	}
}

type discardWriter struct {
	header http.Header
}

func (d discardWriter) Header() http.Header         { return d.header }
func (d discardWriter) Write(b []byte) (int, error) { return len(b), nil }
func (d discardWriter) WriteHeader(int)             {}

func (w *savingWriter) WriteHeader(statusCode int) {
	w.save()
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *savingWriter) Write(b []byte) (int, error) {
	w.save()
	return w.ResponseWriter.Write(b)
}

func (w *savingWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// RequireAuth sends anonymous users to /login, remembering GET targets so
// login can bring them back.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sc := FromContext(r.Context())
		if sc == nil || !sc.IsAuthenticated() {
			if sc != nil && (r.Method == http.MethodGet || r.Method == http.MethodHead) {
				sc.SetReturnTo(r.URL.RequestURI())
			}
			httputil.Redirect(w, r, "/login")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RedirectIfAuthenticated keeps logged-in users away from login/signup/reset pages.
func RedirectIfAuthenticated(to string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if sc := FromContext(r.Context()); sc != nil && sc.IsAuthenticated() {
				httputil.Redirect(w, r, to)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CSRF rejects unsafe requests whose token does not match the session's.
func CSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sc := FromContext(r.Context())
		if sc == nil {
			httputil.RespondErrorWithCode(w, "session unavailable", httputil.CodeInternal, http.StatusInternalServerError)
			return
		}

		expected := sc.CSRFToken()

		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
			next.ServeHTTP(w, r)
			return
		}

		sent := r.Header.Get(csrfHeader)
		if sent == "" {
			sent = r.FormValue(csrfFormField)
		}

		if sent == "" || subtle.ConstantTimeCompare([]byte(sent), []byte(expected)) != 1 {
			logging.GetLoggerFromContext(r.Context()).Warn("csrf token mismatch", "path", r.URL.Path)
			httputil.RespondErrorWithCode(w, "invalid csrf token", httputil.CodeCSRF, http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Render writes a view model carrying the pending flashes and CSRF token.
func Render(w http.ResponseWriter, r *http.Request, title string, data any) {
	view := httputil.View{Title: title, Data: data}
	if sc := FromContext(r.Context()); sc != nil {
		view.Flashes = sc.Flashes()
		view.CSRF = sc.CSRFToken()
	}
	httputil.RespondJSON(w, view, http.StatusOK)
}

// RedirectWithFlash queues messages of one kind and redirects.
func RedirectWithFlash(w http.ResponseWriter, r *http.Request, to, kind string, messages ...string) {
	if sc := FromContext(r.Context()); sc != nil {
		for _, msg := range messages {
			sc.AddFlash(kind, msg)
		}
	}
	httputil.Redirect(w, r, to)
}
