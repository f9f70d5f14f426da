package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redmonkez12/locklog/internal/user"
)

// Strategy verifies a set of credentials and returns the matching user.
// Failures that say nothing about why must be ErrInvalidCredentials.
type Strategy interface {
	Authenticate(ctx context.Context, email, password string) (*user.User, error)
}

// UserFinder is the lookup LocalStrategy needs.
type UserFinder interface {
	GetByEmail(ctx context.Context, email string) (*user.User, error)
}

// LocalStrategy checks an email and password against stored argon2id hashes.
type LocalStrategy struct {
	users  UserFinder
	params argonParams

	dummyOnce sync.Once
	dummyHash string
}

func NewLocalStrategy(users UserFinder) *LocalStrategy {
	return &LocalStrategy{users: users, params: defaultArgonParams}
}

func (s *LocalStrategy) Authenticate(ctx context.Context, email, password string) (*user.User, error) {
	u, err := s.users.GetByEmail(ctx, user.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			// burn the same time as a real check so response time does not reveal the account
			verifyPassword(s.dummy(), password)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !verifyPassword(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	return u, nil
}

func (s *LocalStrategy) dummy() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = hashPassword("locklog-dummy-password", s.params)
	})
	return s.dummyHash
}
