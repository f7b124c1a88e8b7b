package services

import (
	"context"
	"errors"

	"github.com/yeremiapane/restaurant-pos/models"
	"github.com/yeremiapane/restaurant-pos/utils"
)

// AuthService holds "who is logged in": it validates a token once against the
// upstream and keeps the answer in the session store.
type AuthService struct {
	Backend *BackendService
	Store   SessionStore
}

func NewAuthService(backend *BackendService, store SessionStore) *AuthService {
	return &AuthService{Backend: backend, Store: store}
}

// Login performs the two-step exchange: credentials -> access token ->
// session. The session is cached under the new token.
func (as *AuthService) Login(ctx context.Context, username, password string) (string, *models.Session, error) {
	token, err := as.Backend.IssueToken(ctx, username, password)
	if err != nil {
		return "", nil, err
	}
	session, err := as.Backend.ValidateToken(ctx, token)
	if err != nil {
		return "", nil, err
	}
	as.cache(ctx, token, session)
	utils.InfoLogger.Printf("User logged in: %s (role=%s)", session.User.Username, session.User.Role)
	return token, session, nil
}

// Resolve returns the session for token, asking the upstream on a cache miss.
func (as *AuthService) Resolve(ctx context.Context, token string) (*models.Session, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}
	if s, ok, err := as.Store.Get(ctx, token); err != nil {
		utils.ErrorLogger.Printf("Session store read failed: %v", err)
	} else if ok {
		return s, nil
	}

	session, err := as.Backend.ValidateToken(ctx, token)
	if err != nil {
		return nil, err
	}
	as.cache(ctx, token, session)
	return session, nil
}

// Validate always asks the upstream and refreshes the cached session.
func (as *AuthService) Validate(ctx context.Context, token string) (*models.Session, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}
	session, err := as.Backend.ValidateToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			as.Forget(ctx, token)
		}
		return nil, err
	}
	as.cache(ctx, token, session)
	return session, nil
}

// Forget drops the cached session, e.g. on logout.
func (as *AuthService) Forget(ctx context.Context, token string) {
	if token == "" {
		return
	}
	if err := as.Store.Delete(ctx, token); err != nil {
		utils.ErrorLogger.Printf("Session store delete failed: %v", err)
	}
}

func (as *AuthService) cache(ctx context.Context, token string, s *models.Session) {
	if err := as.Store.Set(ctx, token, s); err != nil {
		utils.ErrorLogger.Printf("Session store write failed: %v", err)
	}
}
