// Package session keeps per-request login state in a gorilla/sessions store:
// the authenticated user, one-shot flash messages, the post-login return path
// and the CSRF token.
package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/gob"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"

	"github.com/redmonkez12/locklog/internal/user"
)

const (
	keyUserID   = "user_id"
	keyReturnTo = "return_to"
	keyCSRF     = "csrf_token"
)

// Flash kinds used by handlers.
const (
	FlashErrors  = "errors"
	FlashSuccess = "success"
	FlashInfo    = "info"
)

// Flash is a message shown once on the next rendered view.
type Flash struct {
	Kind    string
	Message string
}

func init() {
	gob.Register(Flash{})
}

type contextKey struct{}

// Context is the session state of one request. Handlers reach it through
// FromContext and never share it between requests.
type Context struct {
	session *sessions.Session
	user    *user.User
	// retired holds session ids abandoned by LogIn/LogOut; their server-side
	// records are removed on save.
	retired []string
}

// FromContext returns the request's session context, or nil outside Middleware.
func FromContext(ctx context.Context) *Context {
	sc, _ := ctx.Value(contextKey{}).(*Context)
	return sc
}

func withContext(ctx context.Context, sc *Context) context.Context {
	return context.WithValue(ctx, contextKey{}, sc)
}

// User is the authenticated user, or nil.
func (c *Context) User() *user.User {
	return c.user
}

func (c *Context) IsAuthenticated() bool {
	return c.user != nil
}

// LogIn binds u to a fresh session id. Return path and pending flashes survive.
func (c *Context) LogIn(u *user.User) {
	c.regenerate()
	c.session.Values[keyUserID] = u.ID.String()
	c.session.Values[keyCSRF] = newToken()
	c.user = u
}

// LogOut drops everything stored so far and continues on a fresh anonymous
// session, so flashes added afterwards still reach the next page. Calling it
// twice is harmless.
func (c *Context) LogOut() {
	c.regenerate()
	for k := range c.session.Values {
		delete(c.session.Values, k)
	}
	c.user = nil
}

func (c *Context) regenerate() {
	if c.session.ID != "" {
		c.retired = append(c.retired, c.session.ID)
	}
	c.session.ID = ""
	c.session.IsNew = true
}

func (c *Context) userID() (uuid.UUID, bool) {
	raw, ok := c.session.Values[keyUserID].(string)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// AddFlash queues a message for the next rendered view.
func (c *Context) AddFlash(kind, message string) {
	c.session.AddFlash(Flash{Kind: kind, Message: message})
}

// Flashes pops every queued message, grouped by kind.
func (c *Context) Flashes() map[string][]string {
	raw := c.session.Flashes()
	if len(raw) == 0 {
		return nil
	}
	out := make(map[string][]string)
	for _, v := range raw {
		if f, ok := v.(Flash); ok {
			out[f.Kind] = append(out[f.Kind], f.Message)
		}
	}
	return out
}

// SetReturnTo remembers where to send the user after login.
func (c *Context) SetReturnTo(path string) {
	c.session.Values[keyReturnTo] = path
}

// PopReturnTo returns the remembered path once, or fallback.
func (c *Context) PopReturnTo(fallback string) string {
	path, _ := c.session.Values[keyReturnTo].(string)
	delete(c.session.Values, keyReturnTo)
	if !isLocalPath(path) {
		return fallback
	}
	return path
}

// CSRFToken returns the session's token, creating it on first use.
func (c *Context) CSRFToken() string {
	if tok, ok := c.session.Values[keyCSRF].(string); ok && tok != "" {
		return tok
	}
	tok := newToken()
	c.session.Values[keyCSRF] = tok
	return tok
}

func isLocalPath(p string) bool {
	return strings.HasPrefix(p, "/") && !strings.HasPrefix(p, "//") && !strings.HasPrefix(p, "/\\")
}

func newToken() string {
	b := make([]byte, 32)
	// crypto/rand.Read never returns an error on supported platforms
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
