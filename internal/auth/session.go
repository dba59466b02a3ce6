// Package auth keeps the device-local authentication flag and gates the API on it.
package auth

import (
	"context"
	"errors"
	"fmt"

	"zproposal/internal/logging"
	"zproposal/internal/store"
)

// StorageKey holds the authentication flag. Presence means authenticated.
const StorageKey = "isAuthenticated"

// ErrInvalidCredentials is returned by Login on an unknown user or wrong password.
var ErrInvalidCredentials = errors.New("invalid username or password")

// Session is the explicit authentication state of the single local user.
type Session struct {
	storage store.Storage
	users   Users
	logger  *logging.Logger
}

func NewSession(storage store.Storage, users Users, logger *logging.Logger) *Session {
	return &Session{storage: storage, users: users, logger: logger}
}

// Login checks the credentials and persists the flag.
func (s *Session) Login(ctx context.Context, username, password string) error {
	hash, ok := s.users[username]
	if !ok || !checkPasswordHash(password, hash) {
		s.logger.WithContext("username", username).Warn("login rejected")
		return ErrInvalidCredentials
	}
	if err := s.storage.Set(ctx, StorageKey, "true"); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}
	s.logger.WithContext("username", username).Info("logged in")
	return nil
}

// Logout removes the flag.
func (s *Session) Logout(ctx context.Context) error {
	if err := s.storage.Remove(ctx, StorageKey); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	s.logger.Info("logged out")
	return nil
}

// IsAuthenticated reports whether the flag is present. Storage errors count
// as not authenticated.
func (s *Session) IsAuthenticated(ctx context.Context) bool {
	_, ok, err := s.storage.Get(ctx, StorageKey)
	if err != nil {
		s.logger.Error("failed to read session flag: %v", err)
		return false
	}
	return ok
}
