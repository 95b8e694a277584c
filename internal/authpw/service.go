// Package authpw provides username/password authentication for contributor
// accounts.
package authpw

import (
	"context"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/a-s-l-a-h/oxidecms-core-backend/internal/domain"
)

// UserStore defines the storage interface for authentication.
type UserStore interface {
	UserByUsername(ctx context.Context, username string) (domain.User, error)
	UserByID(ctx context.Context, id int64) (domain.User, error)
	CreateUser(ctx context.Context, u domain.User) (domain.User, error)
	UpdatePasswordHash(ctx context.Context, userID int64, hash string) error
	RecordLogin(ctx context.Context, userID int64, at time.Time) error
}

type Service struct {
	store UserStore
}

func NewService(store UserStore) *Service {
	return &Service{store: store}
}

// VerifyCredentials authenticates a username/password pair. Unknown users,
// wrong passwords and deactivated accounts all yield the same
// invalid-credentials error so the response leaks nothing.
func (s *Service) VerifyCredentials(ctx context.Context, username, password string) (domain.User, error) {
	if username == "" || password == "" {
		return domain.User{}, domain.InvalidCredentials()
	}

	user, err := s.store.UserByUsername(ctx, username)
	if err != nil {
		if domain.IsNotFound(err) {
			return domain.User{}, domain.InvalidCredentials()
		}
		return domain.User{}, err
	}
	if !user.IsActive {
		return domain.User{}, domain.InvalidCredentials()
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return domain.User{}, domain.InvalidCredentials()
	}

	if err := s.store.RecordLogin(ctx, user.ID, time.Now().UTC()); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// ReverifyPassword re-checks the password of an already authenticated user.
// Destructive console operations call this before proceeding.
func (s *Service) ReverifyPassword(ctx context.Context, userID int64, password string) error {
	user, err := s.store.UserByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return domain.InvalidCredentials()
	}
	return nil
}

// CreateUser hashes the password and inserts the account.
func (s *Service) CreateUser(ctx context.Context, username, password string, role domain.Role) (domain.User, error) {
	if username == "" {
		return domain.User{}, domain.InvalidInput("username is required")
	}
	if len(password) < 8 {
		return domain.User{}, domain.InvalidInput("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, domain.StoreError("hash password", err)
	}

	return s.store.CreateUser(ctx, domain.User{
		Username:                 username,
		PasswordHash:             string(hash),
		Role:                     role,
		IsActive:                 true,
		CanEditAndDeleteOwnPosts: true,
	})
}

// ChangePassword rehashes and stores a new password.
func (s *Service) ChangePassword(ctx context.Context, userID int64, newPassword string) error {
	if len(newPassword) < 8 {
		return domain.InvalidInput("password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return domain.StoreError("hash password", err)
	}
	return s.store.UpdatePasswordHash(ctx, userID, string(hash))
}
