package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/redmonkez12/locklog/internal/logging"
	"github.com/redmonkez12/locklog/internal/user"
	"github.com/redmonkez12/locklog/internal/validation"
)

const (
	resetTokenTTL = time.Hour
	notifyTimeout = 30 * time.Second
)

// UserStore is the persistence the service needs. *user.Repository satisfies it.
type UserStore interface {
	UserFinder
	Create(ctx context.Context, email, passwordHash string) (*user.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
	GetByResetToken(ctx context.Context, tokenHash string, now time.Time) (*user.User, error)
	SetResetToken(ctx context.Context, email, tokenHash string, expires time.Time) (*user.User, error)
	ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (*user.User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, email string, profile user.Profile) (*user.User, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// Notifier delivers a plain-text message to one address.
type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Service handles authentication business logic
type Service struct {
	users     UserStore
	strategy  Strategy
	notifier  Notifier
	validator *validation.Validator
	logger    *logging.Logger
	appURL    string
	params    argonParams
	now       func() time.Time
	pending   sync.WaitGroup
}

func NewService(users UserStore, notifier Notifier, v *validation.Validator, logger *logging.Logger, appURL string) *Service {
	return &Service{
		users:     users,
		strategy:  NewLocalStrategy(users),
		notifier:  notifier,
		validator: v,
		logger:    logger,
		appURL:    appURL,
		params:    defaultArgonParams,
		now:       time.Now,
	}
}

// WithStrategy replaces the credential strategy used by Login.
func (s *Service) WithStrategy(strategy Strategy) *Service {
	s.strategy = strategy
	return s
}

// Wait blocks until queued notifications have been handed to the notifier.
func (s *Service) Wait() {
	s.pending.Wait()
}

// Signup creates an account for a new normalized email
func (s *Service) Signup(ctx context.Context, in SignupInput) (*user.User, error) {
	in.Email = strings.TrimSpace(in.Email)
	if err := s.validator.Struct(in); err != nil {
		return nil, err
	}

	email := user.NormalizeEmail(in.Email)

	_, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return nil, user.ErrDuplicateEmail
	}
	if !errors.Is(err, user.ErrNotFound) {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}

	hash, err := hashPassword(in.Password, s.params)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	// a concurrent signup for the same email loses on the unique index
	newUser, err := s.users.Create(ctx, email, hash)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user signed up", "user_id", newUser.ID)
	return newUser, nil
}

// Login authenticates a user through the configured strategy
func (s *Service) Login(ctx context.Context, in LoginInput) (*user.User, error) {
	in.Email = strings.TrimSpace(in.Email)
	if err := s.validator.Struct(in); err != nil {
		return nil, err
	}
	return s.strategy.Authenticate(ctx, in.Email, in.Password)
}

// RequestPasswordReset issues a one hour reset token and mails the link.
// Any earlier outstanding token for the account stops working.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if err := s.validator.Struct(ForgotInput{Email: email}); err != nil {
		return err
	}

	token, err := generateResetToken()
	if err != nil {
		return err
	}

	u, err := s.users.SetResetToken(ctx, user.NormalizeEmail(email), hashToken(token), s.now().Add(resetTokenTTL))
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrNoSuchAccount
		}
		return fmt.Errorf("failed to store reset token: %w", err)
	}

	link := fmt.Sprintf("%s/reset/%s", s.appURL, token)
	s.notify(u.Email, "Reset your password on Locklog", fmt.Sprintf(
		"You are receiving this because you (or someone else) have requested the reset of the password for your account.\n\n"+
			"Please click on the following link, or paste this into your browser to complete the process:\n\n"+
			"%s\n\n"+
			"If you did not request this, please ignore this email and your password will remain unchanged.\n",
		link,
	))

	return nil
}

// ValidateResetToken reports whether token can still be used.
func (s *Service) ValidateResetToken(ctx context.Context, token string) error {
	if token == "" {
		return ErrTokenExpiredOrInvalid
	}

	_, err := s.users.GetByResetToken(ctx, hashToken(token), s.now())
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrTokenExpiredOrInvalid
		}
		return fmt.Errorf("failed to look up reset token: %w", err)
	}
	return nil
}

// ResetPassword sets a new password and consumes the token in one statement.
func (s *Service) ResetPassword(ctx context.Context, in ResetInput) (*user.User, error) {
	if err := s.validator.Struct(in); err != nil {
		return nil, err
	}
	if in.Token == "" {
		return nil, ErrTokenExpiredOrInvalid
	}

	hash, err := hashPassword(in.Password, s.params)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	u, err := s.users.ConsumeResetToken(ctx, hashToken(in.Token), hash, s.now())
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrTokenExpiredOrInvalid
		}
		return nil, fmt.Errorf("failed to reset password: %w", err)
	}

	s.notify(u.Email, "Your Locklog password has been changed", fmt.Sprintf(
		"Hello,\n\nThis is a confirmation that the password for your account %s has just been changed.\n",
		u.Email,
	))

	return u, nil
}

func (s *Service) UpdateProfile(ctx context.Context, id uuid.UUID, in ProfileInput) (*user.User, error) {
	in.Email = strings.TrimSpace(in.Email)
	if err := s.validator.Struct(in); err != nil {
		return nil, err
	}

	profile := user.Profile{
		Name:     in.Name,
		Gender:   in.Gender,
		Location: in.Location,
		Website:  in.Website,
	}
	return s.users.UpdateProfile(ctx, id, user.NormalizeEmail(in.Email), profile)
}

func (s *Service) ChangePassword(ctx context.Context, id uuid.UUID, in PasswordInput) error {
	if err := s.validator.Struct(in); err != nil {
		return err
	}

	hash, err := hashPassword(in.Password, s.params)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	return s.users.UpdatePassword(ctx, id, hash)
}

func (s *Service) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("user deleted account", "user_id", id)
	return nil
}

// notify sends in the background. A failed send is logged; the request that
// triggered it has already succeeded.
func (s *Service) notify(to, subject, body string) {
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()

		// detached from the request so a finished response does not cancel delivery
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()

		if err := s.notifier.Send(ctx, to, subject, body); err != nil {
			s.logger.Warn("failed to send notification", "email", to, "subject", subject, "error", err)
		}
	}()
}
