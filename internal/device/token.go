// Package device issues and checks the bearer tokens locks use to report
// access events.
package device

import (
	"errors"
	"fmt"
	"time"

	"aidanwoods.dev/go-paseto"
)

const audience = "locklog-device"

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// Claims identify the lock a token was issued to.
type Claims struct {
	LockUID   string    `json:"sub"`
	IssuedAt  time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"`
}

// TokenService handles PASETO token creation and validation
// Uses v4.local (symmetric encryption with XChaCha20-Poly1305)
type TokenService struct {
	symmetricKey paseto.V4SymmetricKey
	duration     time.Duration
	now          func() time.Time
}

func NewTokenService(symmetricKey []byte, duration time.Duration) (*TokenService, error) {
	if len(symmetricKey) != 32 {
		return nil, fmt.Errorf("symmetric key must be exactly 32 bytes, got %d", len(symmetricKey))
	}

	key, err := paseto.V4SymmetricKeyFromBytes(symmetricKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create symmetric key: %w", err)
	}

	return &TokenService{
		symmetricKey: key,
		duration:     duration,
		now:          time.Now,
	}, nil
}

// Issue creates a token for lockUID valid for the configured duration.
func (s *TokenService) Issue(lockUID string) (string, time.Time, error) {
	if lockUID == "" {
		return "", time.Time{}, fmt.Errorf("%w: empty lock uid", ErrInvalidToken)
	}

	now := s.now()
	expires := now.Add(s.duration)

	token := paseto.NewToken()
	token.SetIssuedAt(now)
	token.SetNotBefore(now)
	token.SetExpiration(expires)
	token.SetAudience(audience)
	token.SetSubject(lockUID)

	return token.V4Encrypt(s.symmetricKey, nil), expires, nil
}

// Verify decrypts tokenStr and checks audience and expiry against the
// service clock.
func (s *TokenService) Verify(tokenStr string) (*Claims, error) {
	parser := paseto.NewParserWithoutExpiryCheck()
	parser.AddRule(paseto.ForAudience(audience))

	token, err := parser.ParseV4Local(s.symmetricKey, tokenStr, nil)
	if err != nil {
		return nil, ErrInvalidToken
	}

	lockUID, err := token.GetSubject()
	if err != nil || lockUID == "" {
		return nil, ErrInvalidToken
	}

	issuedAt, err := token.GetIssuedAt()
	if err != nil {
		return nil, ErrInvalidToken
	}

	expiresAt, err := token.GetExpiration()
	if err != nil {
		return nil, ErrInvalidToken
	}
	if !s.now().Before(expiresAt) {
		return nil, ErrExpiredToken
	}

	return &Claims{
		LockUID:   lockUID,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}, nil
}
