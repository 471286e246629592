package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/lovemap/internal/db"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// AuthService verifies credentials against the users table.
type AuthService struct {
	db *gorm.DB

	dummyOnce sync.Once
	dummyHash []byte
}

// NewAuthService creates an AuthService instance.
func NewAuthService(gdb *gorm.DB) *AuthService {
	return &AuthService{db: gdb}
}

// Authenticate returns the identity for username when password matches its
// stored hash. Unknown users and wrong passwords both yield
// ErrInvalidCredentials, and both pay for one bcrypt comparison.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (*Identity, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return nil, ErrCredentialsRequired
	}

	var user db.User
	err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		bcrypt.CompareHashAndPassword(s.timingHash(), []byte(password))
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return &Identity{UserID: user.ID, Username: user.Username, Role: user.Role}, nil
}

func (s *AuthService) timingHash() []byte {
	s.dummyOnce.Do(func() {
		hash, err := bcrypt.GenerateFromPassword([]byte("lovemap-unknown-user"), bcrypt.DefaultCost)
		if err == nil {
			s.dummyHash = hash
		}
	})
	return s.dummyHash
}
