package auth

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/redmonkez12/locklog/internal/httputil"
	"github.com/redmonkez12/locklog/internal/logging"
	"github.com/redmonkez12/locklog/internal/session"
	"github.com/redmonkez12/locklog/internal/user"
	"github.com/redmonkez12/locklog/internal/web"
)

const (
	msgLoggedIn        = "Success! You are logged in."
	msgDuplicateSignup = "Account with that email address already exists."
	msgResetSent       = "If an account with that e-mail address exists, an e-mail has been sent with further instructions."
	msgResetInvalid    = "Password reset token is invalid or has expired."
	msgResetDone       = "Success! Your password has been changed."
	msgProfileTaken    = "The email address you have entered is already associated with an account."
	msgProfileUpdated  = "Profile information has been updated."
	msgPasswordChanged = "Password has been changed."
	msgAccountDeleted  = "Your account has been deleted."
)

// RateLimiter throttles the unauthenticated form posts.
type RateLimiter interface {
	CheckIPRateLimitWithPurpose(ctx context.Context, ip, purpose string) (bool, error)
	RecordIPRequestWithPurpose(ctx context.Context, ip, purpose string) error
	CheckEmailCooldown(ctx context.Context, email string) (bool, error)
	SetEmailCooldown(ctx context.Context, email string) error
}

// Handler contains HTTP handlers for the login, signup, reset and account pages
type Handler struct {
	service     *Service
	rateLimiter RateLimiter
	logger      *logging.Logger
}

func NewHandler(service *Service, rateLimiter RateLimiter, logger *logging.Logger) *Handler {
	return &Handler{
		service:     service,
		rateLimiter: rateLimiter,
		logger:      logger,
	}
}

func (h *Handler) LoginPage(w http.ResponseWriter, r *http.Request) {
	session.Render(w, r, "Login", nil)
}

// Login handles the login form
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if h.throttled(w, r, "login") {
		return
	}

	in := LoginInput{
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
	}

	u, err := h.service.Login(r.Context(), in)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			logger.Warn("login failed: invalid credentials")
			session.RedirectWithFlash(w, r, "/login", session.FlashErrors, "Invalid email or password.")
			return
		}
		h.fail(w, r, err, "/login")
		return
	}

	sc := session.FromContext(r.Context())
	sc.LogIn(u)
	sc.AddFlash(session.FlashSuccess, msgLoggedIn)

	logger.Info("user logged in", "user_id", u.ID)
	httputil.Redirect(w, r, sc.PopReturnTo("/locks"))
}

// Logout ends the session. Calling it without a session is harmless.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if sc := session.FromContext(r.Context()); sc != nil {
		sc.LogOut()
	}
	httputil.Redirect(w, r, "/login")
}

func (h *Handler) SignupPage(w http.ResponseWriter, r *http.Request) {
	session.Render(w, r, "Create Account", nil)
}

// Signup handles the account creation form
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if h.throttled(w, r, "signup") {
		return
	}

	in := SignupInput{
		Email:           r.PostFormValue("email"),
		Password:        r.PostFormValue("password"),
		ConfirmPassword: r.PostFormValue("confirmPassword"),
	}

	u, err := h.service.Signup(r.Context(), in)
	if err != nil {
		if errors.Is(err, user.ErrDuplicateEmail) {
			logger.Warn("signup failed: email already exists")
			session.RedirectWithFlash(w, r, "/signup", session.FlashErrors, msgDuplicateSignup)
			return
		}
		h.fail(w, r, err, "/signup")
		return
	}

	sc := session.FromContext(r.Context())
	sc.LogIn(u)
	httputil.Redirect(w, r, sc.PopReturnTo("/locks"))
}

func (h *Handler) ForgotPage(w http.ResponseWriter, r *http.Request) {
	session.Render(w, r, "Forgot Password", nil)
}

// Forgot handles reset requests. Every outcome that is not a validation or
// server error shows the same message so the form cannot probe for accounts.
func (h *Handler) Forgot(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if h.throttled(w, r, "forgot") {
		return
	}

	email := r.PostFormValue("email")
	normalized := user.NormalizeEmail(email)

	onCooldown, err := h.rateLimiter.CheckEmailCooldown(r.Context(), normalized)
	if err != nil {
		logger.Error("failed to check email cooldown", "error", err.Error())
	} else if onCooldown {
		logger.Info("password reset suppressed by cooldown")
		session.RedirectWithFlash(w, r, "/forgot", session.FlashInfo, msgResetSent)
		return
	}

	err = h.service.RequestPasswordReset(r.Context(), email)
	switch {
	case err == nil:
		if err := h.rateLimiter.SetEmailCooldown(r.Context(), normalized); err != nil {
			logger.Error("failed to set email cooldown", "error", err.Error())
		}
	case errors.Is(err, ErrNoSuchAccount):
		logger.Info("password reset requested for unknown account")
	default:
		h.fail(w, r, err, "/forgot")
		return
	}

	session.RedirectWithFlash(w, r, "/forgot", session.FlashInfo, msgResetSent)
}

// ResetPage renders the new-password form when the token is still usable.
func (h *Handler) ResetPage(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	if err := h.service.ValidateResetToken(r.Context(), token); err != nil {
		if errors.Is(err, ErrTokenExpiredOrInvalid) {
			session.RedirectWithFlash(w, r, "/forgot", session.FlashErrors, msgResetInvalid)
			return
		}
		h.fail(w, r, err, "/forgot")
		return
	}

	session.Render(w, r, "Reset Password", map[string]string{"token": token})
}

func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())
	token := chi.URLParam(r, "token")

	in := ResetInput{
		Token:    token,
		Password: r.PostFormValue("password"),
		Confirm:  r.PostFormValue("confirm"),
	}

	u, err := h.service.ResetPassword(r.Context(), in)
	if err != nil {
		if errors.Is(err, ErrTokenExpiredOrInvalid) {
			logger.Warn("password reset with invalid or expired token")
			session.RedirectWithFlash(w, r, "/forgot", session.FlashErrors, msgResetInvalid)
			return
		}
		h.fail(w, r, err, "/reset/"+token)
		return
	}

	sc := session.FromContext(r.Context())
	sc.LogIn(u)
	sc.AddFlash(session.FlashSuccess, msgResetDone)

	logger.Info("password reset completed", "user_id", u.ID)
	httputil.Redirect(w, r, "/")
}

func (h *Handler) Account(w http.ResponseWriter, r *http.Request) {
	session.Render(w, r, "Account Management", session.FromContext(r.Context()).User())
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	sc := session.FromContext(r.Context())

	in := ProfileInput{
		Email:    r.PostFormValue("email"),
		Name:     r.PostFormValue("name"),
		Gender:   r.PostFormValue("gender"),
		Location: r.PostFormValue("location"),
		Website:  r.PostFormValue("website"),
	}

	if _, err := h.service.UpdateProfile(r.Context(), sc.User().ID, in); err != nil {
		if errors.Is(err, user.ErrDuplicateEmail) {
			session.RedirectWithFlash(w, r, "/account", session.FlashErrors, msgProfileTaken)
			return
		}
		h.fail(w, r, err, "/account")
		return
	}

	session.RedirectWithFlash(w, r, "/account", session.FlashSuccess, msgProfileUpdated)
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	sc := session.FromContext(r.Context())

	in := PasswordInput{
		Password:        r.PostFormValue("password"),
		ConfirmPassword: r.PostFormValue("confirmPassword"),
	}

	if err := h.service.ChangePassword(r.Context(), sc.User().ID, in); err != nil {
		h.fail(w, r, err, "/account")
		return
	}

	session.RedirectWithFlash(w, r, "/account", session.FlashSuccess, msgPasswordChanged)
}

// DeleteAccount removes the user, then ends the session in the same request.
func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	sc := session.FromContext(r.Context())

	if err := h.service.DeleteAccount(r.Context(), sc.User().ID); err != nil {
		h.fail(w, r, err, "/account")
		return
	}

	sc.LogOut()
	session.RedirectWithFlash(w, r, "/", session.FlashInfo, msgAccountDeleted)
}

// throttled enforces the per-IP limit for purpose and records the attempt.
// Limiter outages let the request through.
func (h *Handler) throttled(w http.ResponseWriter, r *http.Request, purpose string) bool {
	logger := logging.GetLoggerFromContext(r.Context())
	ip := getClientIP(r)

	exceeded, err := h.rateLimiter.CheckIPRateLimitWithPurpose(r.Context(), ip, purpose)
	if err != nil {
		logger.Error("failed to check IP rate limit", "error", err.Error())
	} else if exceeded {
		logger.Warn("IP rate limit exceeded", "ip", ip, "purpose", purpose)
		httputil.RespondErrorWithCode(w, "too many requests, please try again later", httputil.CodeRateLimited, http.StatusTooManyRequests)
		return true
	}

	if err := h.rateLimiter.RecordIPRequestWithPurpose(r.Context(), ip, purpose); err != nil {
		logger.Error("failed to record IP request", "error", err.Error())
	}
	return false
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, back string) {
	web.Fail(w, r, err, back, user.ErrNotFound)
}

// getClientIP relies on chi's RealIP having already rewritten RemoteAddr.
func getClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}
