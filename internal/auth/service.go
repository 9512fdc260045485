package auth

import (
	"errors"
	"time"

	"readingnook/internal/platform/crypto"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
)

const DefaultTokenTTL = 12 * time.Hour

type Token struct {
	AccessToken string    `json:"access_token"`
	ExpiresIn   int       `json:"expires_in"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type Service struct {
	secret string
	ttl    time.Duration
	creds  Authenticator
}

func NewService(secret string, ttl time.Duration, creds Authenticator) *Service {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Service{
		secret: secret,
		ttl:    ttl,
		creds:  creds,
	}
}

func (s *Service) Login(username, password string) (Token, error) {
	if !s.creds.CheckCredentials(username, password) {
		return Token{}, ErrUnauthorized
	}

	accessToken, _, expires, err := crypto.GenerateToken(s.secret, username, s.ttl)
	if err != nil {
		return Token{}, err
	}

	return Token{
		AccessToken: accessToken,
		ExpiresIn:   int(s.ttl.Seconds()),
		ExpiresAt:   expires,
	}, nil
}
