package user

import (
	"context"
	"errors"

	"github.com/spendlog/service/internal/apperr"
)

// Store is the persistence the user Service depends on.
type Store interface {
	GetByID(ctx context.Context, id string) (*User, error)
}

// Service exposes the signed-in user's account.
type Service struct {
	repo Store
}

// NewService creates a new user Service.
func NewService(repo Store) *Service {
	return &Service{repo: repo}
}

// Me returns the account behind a session. A token whose user row was
// removed yields ErrNotFound.
func (s *Service) Me(ctx context.Context, userID string) (*User, error) {
	u, err := s.repo.GetByID(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.NotFound("user")
	}
	if err != nil {
		return nil, apperr.Upstream("load user", err)
	}
	return u, nil
}
