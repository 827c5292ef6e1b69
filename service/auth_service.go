package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"go-websecurity-api/logger"
	"go-websecurity-api/model"
	"go-websecurity-api/repository"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrEmailTaken         = errors.New("email already exists")
)

// AuthService registers users and verifies their passwords. It is the
// credential-verification collaborator of the login flow.
type AuthService struct {
	users repository.IUserRepository
	cost  int

	dummyOnce sync.Once
	dummyHash []byte
}

// NewAuthService accepts a bcrypt cost; 0 selects bcrypt.DefaultCost.
func NewAuthService(users repository.IUserRepository, cost int) *AuthService {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &AuthService{users: users, cost: cost}
}

func (s *AuthService) HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to hash password")
		return "", err
	}
	return string(bytes), nil
}

func (s *AuthService) CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// burnCompare spends one bcrypt comparison so unknown usernames take about
// as long to reject as wrong passwords.
func (s *AuthService) burnCompare(password string) {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), s.cost)
	})
	_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
}

// Register creates a ROLE_USER account after checking username and email
// uniqueness.
func (s *AuthService) Register(ctx context.Context, req model.RegisterRequest) (*model.User, error) {
	taken, err := s.users.ExistsByUsername(ctx, req.Username)
	if err != nil {
		return nil, fmt.Errorf("could not check username: %w", err)
	}
	if taken {
		return nil, ErrUsernameTaken
	}

	taken, err = s.users.ExistsByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("could not check email: %w", err)
	}
	if taken {
		return nil, ErrEmailTaken
	}

	hashed, err := s.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Username: req.Username,
		Email:    req.Email,
		Password: hashed,
		Role:     string(model.RoleUser),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateUser) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("could not create user: %w", err)
	}
	return user, nil
}

// Authenticate returns the user when username and password match, and
// ErrInvalidCredentials otherwise.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (*model.User, error) {
	user, err := s.users.FindUserByUsername(ctx, username)
	if errors.Is(err, sql.ErrNoRows) {
		s.burnCompare(password)
		loginsTotal.WithLabelValues("invalid").Inc()
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		loginsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("could not load user: %w", err)
	}

	if !s.CheckPasswordHash(password, user.Password) {
		loginsTotal.WithLabelValues("invalid").Inc()
		return nil, ErrInvalidCredentials
	}

	loginsTotal.WithLabelValues("ok").Inc()
	return user, nil
}
