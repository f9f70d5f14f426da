package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/locklog/internal/config"
	"github.com/redmonkez12/locklog/internal/database"
	"github.com/redmonkez12/locklog/internal/httputil"
	"github.com/redmonkez12/locklog/internal/user"
)

const testCookieName = "locklog_test"

type fakeUsers struct {
	users map[uuid.UUID]*user.User
	err   error
}

func (f *fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*user.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return u, nil
}

// browser replays the session cookie between requests like a real client.
type browser struct {
	t      *testing.T
	h      http.Handler
	cookie *http.Cookie
}

func (b *browser) do(method, target string, form url.Values, header map[string]string) *httptest.ResponseRecorder {
	b.t.Helper()
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	if b.cookie != nil {
		req.AddCookie(&http.Cookie{Name: b.cookie.Name, Value: b.cookie.Value})
	}

	rec := httptest.NewRecorder()
	b.h.ServeHTTP(rec, req)

	// the last cookie with our name wins, as in a browser
	for _, c := range rec.Result().Cookies() {
		if c.Name != testCookieName {
			continue
		}
		if c.MaxAge < 0 {
			b.cookie = nil
		} else {
			b.cookie = c
		}
	}
	return rec
}

func (b *browser) view() httputil.View {
	b.t.Helper()
	rec := b.do(http.MethodGet, "/view", nil, nil)
	require.Equal(b.t, http.StatusOK, rec.Code)
	var v httputil.View
	require.NoError(b.t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

type fixture struct {
	users   *fakeUsers
	ann     *user.User
	handled int
}

func newBrowser(t *testing.T) (*browser, *fixture) {
	t.Helper()

	ann := &user.User{ID: uuid.New(), Email: "ann@example.org"}
	f := &fixture{users: &fakeUsers{users: map[uuid.UUID]*user.User{ann.ID: ann}}, ann: ann}

	store := NewCookieStore(config.SessionConfig{
		Secret: []byte("0123456789abcdef0123456789abcdef"),
		MaxAge: time.Hour,
	}, false)
	m := NewManager(store, testCookieName, f.users)

	mux := http.NewServeMux()
	mux.HandleFunc("/login-as", func(w http.ResponseWriter, r *http.Request) {
		sc := FromContext(r.Context())
		sc.LogIn(f.ann)
		httputil.Redirect(w, r, sc.PopReturnTo("/locks"))
	})
	mux.HandleFunc("/logout", func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).LogOut()
		httputil.Redirect(w, r, "/login")
	})
	mux.HandleFunc("/flash", func(w http.ResponseWriter, r *http.Request) {
		RedirectWithFlash(w, r, "/view", FlashSuccess, "Score updated successfully.")
	})
	mux.HandleFunc("/view", func(w http.ResponseWriter, r *http.Request) {
		Render(w, r, "View", nil)
	})
	mux.Handle("/protected", RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, FromContext(r.Context()).User().Email)
	})))
	mux.HandleFunc("/form", func(w http.ResponseWriter, r *http.Request) {
		f.handled++
		w.WriteHeader(http.StatusNoContent)
	})

	return &browser{t: t, h: m.Middleware(CSRF(mux))}, f
}

func TestRequireAuth_RedirectsAndRemembersPath(t *testing.T) {
	b, _ := newBrowser(t)

	rec := b.do(http.MethodGet, "/protected?page=2", nil, nil)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	rec = b.do(http.MethodGet, "/login-as", nil, nil)
	assert.Equal(t, "/protected?page=2", rec.Header().Get("Location"))

	rec = b.do(http.MethodGet, "/protected", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ann@example.org", rec.Body.String())

	// return-to is consumed once
	rec = b.do(http.MethodGet, "/login-as", nil, nil)
	assert.Equal(t, "/locks", rec.Header().Get("Location"))
}

func TestRequireAuth_PostIsNotRemembered(t *testing.T) {
	b, _ := newBrowser(t)
	token := b.view().CSRF

	rec := b.do(http.MethodPost, "/protected", url.Values{"_csrf": {token}}, nil)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	rec = b.do(http.MethodGet, "/login-as", nil, nil)
	assert.Equal(t, "/locks", rec.Header().Get("Location"))
}

func TestFlashes_ShownOnce(t *testing.T) {
	b, _ := newBrowser(t)

	b.do(http.MethodGet, "/flash", nil, nil)

	v := b.view()
	assert.Equal(t, []string{"Score updated successfully."}, v.Flashes[FlashSuccess])
	assert.NotEmpty(t, v.CSRF)

	v = b.view()
	assert.Empty(t, v.Flashes)
}

func TestLogIn_KeepsPendingFlashes(t *testing.T) {
	b, _ := newBrowser(t)

	b.do(http.MethodGet, "/flash", nil, nil)
	b.do(http.MethodGet, "/login-as", nil, nil)

	v := b.view()
	assert.Equal(t, []string{"Score updated successfully."}, v.Flashes[FlashSuccess])
}

func TestLogIn_RotatesCSRFToken(t *testing.T) {
	b, _ := newBrowser(t)

	before := b.view().CSRF
	b.do(http.MethodGet, "/login-as", nil, nil)
	after := b.view().CSRF

	assert.NotEqual(t, before, after)
}

func TestLogOut_Idempotent(t *testing.T) {
	b, _ := newBrowser(t)
	b.do(http.MethodGet, "/login-as", nil, nil)

	for i := 0; i < 2; i++ {
		rec := b.do(http.MethodGet, "/logout", nil, nil)
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/login", rec.Header().Get("Location"))
	}

	rec := b.do(http.MethodGet, "/protected", nil, nil)
	assert.Equal(t, http.StatusFound, rec.Code)
}

func TestMiddleware_DeletedUserClearsSession(t *testing.T) {
	b, f := newBrowser(t)
	b.do(http.MethodGet, "/login-as", nil, nil)

	delete(f.users.users, f.ann.ID)

	rec := b.do(http.MethodGet, "/protected", nil, nil)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestMiddleware_UserLoadTimeout(t *testing.T) {
	b, f := newBrowser(t)
	b.do(http.MethodGet, "/login-as", nil, nil)

	f.users.err = fmt.Errorf("failed to get user by id: %w", database.ErrTimeout)

	rec := b.do(http.MethodGet, "/protected", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMiddleware_RefreshesCookieOnEveryResponse(t *testing.T) {
	b, _ := newBrowser(t)

	for i := 0; i < 2; i++ {
		rec := b.do(http.MethodGet, "/view", nil, nil)
		var found bool
		for _, c := range rec.Result().Cookies() {
			if c.Name == testCookieName {
				found = true
				assert.Equal(t, 3600, c.MaxAge)
			}
		}
		assert.True(t, found, "response %d carried no session cookie", i)
	}
}

func TestCSRF(t *testing.T) {
	b, f := newBrowser(t)
	token := b.view().CSRF

	rec := b.do(http.MethodPost, "/form", url.Values{}, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = b.do(http.MethodPost, "/form", url.Values{"_csrf": {"wrong"}}, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, 0, f.handled, "handler must not run on rejected requests")

	rec = b.do(http.MethodPost, "/form", url.Values{"_csrf": {token}}, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = b.do(http.MethodPost, "/form", nil, map[string]string{"X-CSRF-Token": token})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 2, f.handled)
}

func TestPopReturnTo_RejectsOffsiteTargets(t *testing.T) {
	sc := &Context{session: sessions.NewSession(nil, testCookieName)}
	sc.SetReturnTo("//evil.example/")
	assert.Equal(t, "/locks", sc.PopReturnTo("/locks"))

	sc.SetReturnTo("https://evil.example/")
	assert.Equal(t, "/locks", sc.PopReturnTo("/locks"))
}
