// Package auth issues and checks bearer tokens and models the result of
// inspecting an inbound request's credentials.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/trainingpay/internal/common"
	"github.com/dmitrijs2005/trainingpay/internal/cryptox"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const signingKeyInfo = "trainingpay/token-signing/v1"

// TokenService issues HS256 tokens whose subject is the identity email. The
// signing key is derived once from the configured secret.
type TokenService struct {
	key      []byte
	validity time.Duration
	now      func() time.Time
}

func NewTokenService(secret string, validity time.Duration) (*TokenService, error) {
	if validity <= 0 {
		return nil, fmt.Errorf("token validity must be positive, got %s", validity)
	}
	key, err := cryptox.DeriveKey([]byte(secret), signingKeyInfo, 32)
	if err != nil {
		return nil, fmt.Errorf("token key: %w", err)
	}
	return &TokenService{key: key, validity: validity, now: time.Now}, nil
}

// Issue returns a token for subject and its expiry. The issue instant is the
// current time truncated to whole seconds, the resolution of the encoded
// claims, and the token is valid for exactly the configured window from that
// instant. The expiry is therefore never later than now plus the window and
// matches the encoded one.
func (s *TokenService) Issue(subject string) (string, time.Time, error) {
	issuedAt := s.now().UTC().Truncate(time.Second)
	expiresAt := issuedAt.Add(s.validity)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		ID:        uuid.NewString(),
	})

	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Validate checks the signature and that the token has not expired, and
// returns its subject.
func (s *TokenService) Validate(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, s.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", common.ErrTokenExpired
		}
		return "", fmt.Errorf("%w: %v", common.ErrMalformedToken, err)
	}
	if claims.Subject == "" {
		return "", common.ErrMalformedToken
	}
	return claims.Subject, nil
}

// IsExpired reports whether a well-formed token's expiry has passed: false
// before issue instant plus window, true from that moment on. Only a token
// that fails signature verification or carries no expiry is an error.
func (s *TokenService) IsExpired(tokenString string) (bool, error) {
	claims, err := s.parseUnvalidated(tokenString)
	if err != nil {
		return false, err
	}
	if claims.ExpiresAt == nil {
		return false, common.ErrMalformedToken
	}
	return !s.now().Before(claims.ExpiresAt.Time), nil
}

// ExtractSubject returns the subject of a correctly signed token regardless
// of its expiry.
func (s *TokenService) ExtractSubject(tokenString string) (string, error) {
	claims, err := s.parseUnvalidated(tokenString)
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", common.ErrMalformedToken
	}
	return claims.Subject, nil
}

func (s *TokenService) parseUnvalidated(tokenString string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, s.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrMalformedToken, err)
	}
	return claims, nil
}

func (s *TokenService) keyFunc(*jwt.Token) (interface{}, error) {
	return s.key, nil
}
