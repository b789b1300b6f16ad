package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/spendlog/service/internal/apperr"
	"github.com/spendlog/service/internal/user"
)

// Accounts links provider identities to users.
type Accounts interface {
	LinkAccount(ctx context.Context, provider string, p *Profile) (*user.User, error)
}

// Session is returned after a successful sign-in.
type Session struct {
	Token     string     `json:"token"     example:"eyJhbGci..."`
	ExpiresAt time.Time  `json:"expiresAt"`
	User      *user.User `json:"user"`
}

// Service contains the sign-in business logic.
type Service struct {
	provider Provider
	accounts Accounts
	secret   []byte
	ttl      time.Duration
	log      zerolog.Logger
	now      func() time.Time
}

// NewService creates a new auth Service issuing tokens signed with secret
// that live for ttl.
func NewService(provider Provider, accounts Accounts, secret string, ttl time.Duration, log zerolog.Logger) *Service {
	return &Service{provider: provider, accounts: accounts, secret: []byte(secret), ttl: ttl, log: log, now: time.Now}
}

// Begin returns a fresh state value and the provider URL to redirect to.
func (s *Service) Begin() (state, redirect string) {
	state = uuid.NewString()
	return state, s.provider.AuthCodeURL(state)
}

// Complete exchanges the authorization code, links the account and issues a
// session token.
func (s *Service) Complete(ctx context.Context, code string) (*Session, error) {
	if code == "" {
		return nil, apperr.Validation("code is required")
	}
	p, err := s.provider.Exchange(ctx, code)
	if err != nil {
		return nil, apperr.Upstream("oauth exchange", err)
	}
	if p.Subject == "" || p.Email == "" {
		return nil, apperr.Validation("provider did not return an email address")
	}
	if !p.EmailVerified {
		return nil, apperr.Validation("email address is not verified")
	}

	u, err := s.accounts.LinkAccount(ctx, s.provider.Name(), p)
	if err != nil {
		return nil, apperr.Upstream("link account", err)
	}
	token, exp, err := s.IssueToken(u)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("user_id", u.ID).Str("provider", s.provider.Name()).Msg("user signed in")
	return &Session{Token: token, ExpiresAt: exp, User: u}, nil
}

// IssueToken creates a signed JWT for u.
func (s *Service) IssueToken(u *user.User) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.ttl)
	claims := jwt.MapClaims{
		"sub":   u.ID,
		"email": u.Email,
		"iat":   now.Unix(),
		"exp":   exp.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp.UTC(), nil
}
