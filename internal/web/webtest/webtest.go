// Package webtest drives session-backed handlers in tests the way a browser
// would: it keeps the session cookie and posts the CSRF token.
package webtest

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/locklog/internal/config"
	"github.com/redmonkez12/locklog/internal/httputil"
	"github.com/redmonkez12/locklog/internal/session"
	"github.com/redmonkez12/locklog/internal/user"
)

const cookieName = "locklog_webtest"

type oneUser struct{ u *user.User }

func (o oneUser) GetByID(_ context.Context, id uuid.UUID) (*user.User, error) {
	if o.u != nil && o.u.ID == id {
		return o.u, nil
	}
	return nil, user.ErrNotFound
}

type Client struct {
	t      *testing.T
	h      http.Handler
	cookie *http.Cookie
}

// New mounts routes behind the session, CSRF and RequireAuth middleware and
// returns a client already logged in as a test user.
func New(t *testing.T, mount func(r chi.Router)) *Client {
	t.Helper()

	u := &user.User{ID: uuid.New(), Email: "tester@example.org"}
	store := session.NewCookieStore(config.SessionConfig{
		Secret: []byte("webtest-secret-webtest-secret-32"),
		MaxAge: time.Hour,
	}, false)
	m := session.NewManager(store, cookieName, oneUser{u: u})

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Use(session.CSRF)
	r.Get("/_test/login", func(w http.ResponseWriter, r *http.Request) {
		session.FromContext(r.Context()).LogIn(u)
		w.WriteHeader(http.StatusNoContent)
	})
	r.Get("/_test/csrf", func(w http.ResponseWriter, r *http.Request) {
		httputil.RespondJSON(w, map[string]string{"csrf": session.FromContext(r.Context()).CSRFToken()}, http.StatusOK)
	})
	r.Group(func(r chi.Router) {
		r.Use(session.RequireAuth)
		mount(r)
	})

	c := &Client{t: t, h: r}
	c.Do(http.MethodGet, "/_test/login", nil, "")
	return c
}

// Do sends a raw request carrying the session cookie.
func (c *Client) Do(method, target string, body []byte, contentType string) *httptest.ResponseRecorder {
	c.t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.cookie != nil {
		req.AddCookie(&http.Cookie{Name: c.cookie.Name, Value: c.cookie.Value})
	}

	rec := httptest.NewRecorder()
	c.h.ServeHTTP(rec, req)

	for _, ck := range rec.Result().Cookies() {
		if ck.Name == cookieName {
			c.cookie = ck
		}
	}
	return rec
}

// Get returns the status and, for 200 responses, the decoded view.
func (c *Client) Get(target string) (int, httputil.View) {
	c.t.Helper()
	rec := c.Do(http.MethodGet, target, nil, "")
	var v httputil.View
	if rec.Code == http.StatusOK {
		require.NoError(c.t, json.NewDecoder(rec.Body).Decode(&v))
	}
	return rec.Code, v
}

// Data decodes the view's data into out.
func Data(t *testing.T, v httputil.View, out any) {
	t.Helper()
	raw, err := json.Marshal(v.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}

func (c *Client) csrf() string {
	c.t.Helper()
	rec := c.Do(http.MethodGet, "/_test/csrf", nil, "")
	var body map[string]string
	require.NoError(c.t, json.NewDecoder(rec.Body).Decode(&body))
	return body["csrf"]
}

// Post submits an urlencoded form with the CSRF token.
func (c *Client) Post(target string, form url.Values) *httptest.ResponseRecorder {
	c.t.Helper()
	if form == nil {
		form = url.Values{}
	}
	form.Set("_csrf", c.csrf())
	return c.Do(http.MethodPost, target, []byte(form.Encode()), "application/x-www-form-urlencoded")
}

// PostMultipart submits fields plus one file with the CSRF token.
func (c *Client) PostMultipart(target string, fields url.Values, fileField, filename string, data []byte) *httptest.ResponseRecorder {
	c.t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(c.t, mw.WriteField("_csrf", c.csrf()))
	for k, vs := range fields {
		for _, v := range vs {
			require.NoError(c.t, mw.WriteField(k, v))
		}
	}
	if fileField != "" {
		fw, err := mw.CreateFormFile(fileField, filename)
		require.NoError(c.t, err)
		_, err = fw.Write(data)
		require.NoError(c.t, err)
	}
	require.NoError(c.t, mw.Close())

	return c.Do(http.MethodPost, target, buf.Bytes(), mw.FormDataContentType())
}

// Flashes reads and clears the pending flashes by rendering target.
func (c *Client) Flashes(target string) map[string][]string {
	c.t.Helper()
	code, v := c.Get(target)
	require.Equal(c.t, http.StatusOK, code, "rendering %s", target)
	return v.Flashes
}

// Location returns the redirect target of rec.
func Location(rec *httptest.ResponseRecorder) string {
	return strings.TrimSpace(rec.Header().Get("Location"))
}
