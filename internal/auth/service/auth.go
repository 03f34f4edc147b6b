package service

import (
	"context"

	"github.com/pharmaflow/pharmacy-backend/internal/auth/jwt"
	"github.com/pharmaflow/pharmacy-backend/internal/auth/repository"
	"github.com/pharmaflow/pharmacy-backend/pkg/errors"
	"github.com/pharmaflow/pharmacy-backend/pkg/logger"
	"github.com/pharmaflow/pharmacy-backend/pkg/roles"
	"golang.org/x/crypto/bcrypt"
)

// AuthService handles authentication business logic
type AuthService struct {
	userRepo   *repository.UserRepository
	jwtManager *jwt.Manager
	logger     *logger.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(userRepo *repository.UserRepository, jwtManager *jwt.Manager, log *logger.Logger) *AuthService {
	return &AuthService{
		userRepo:   userRepo,
		jwtManager: jwtManager,
		logger:     log,
	}
}

// RegisterInput holds registration parameters
type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Role     string
}

// AuthResult is returned from register and login
type AuthResult struct {
	User  *repository.User `json:"user"`
	Token *jwt.Token       `json:"token"`
}

// Register creates a new user account and returns a signed token
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	role := roles.Staff
	if in.Role != "" {
		parsed, ok := roles.Parse(in.Role)
		if !ok {
			return nil, errors.BadRequest("unknown role: " + in.Role)
		}
		role = parsed
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.Internal("failed to hash password")
	}

	user := &repository.User{
		Email:        in.Email,
		PasswordHash: string(hash),
		Name:         in.Name,
		Role:         string(role),
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("user_id", user.ID).
		Str("role", user.Role).
		Msg("user registered")

	token, err := s.jwtManager.Generate(&jwt.UserInfo{
		ID:    user.ID,
		Email: user.Email,
		Name:  user.Name,
		Role:  user.Role,
	})
	if err != nil {
		return nil, errors.Internal("failed to generate token")
	}

	return &AuthResult{User: user, Token: token}, nil
}

// Login verifies credentials and returns a signed token. It reports the
// same error for an unknown email and a wrong password.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, errors.InvalidCredentials()
	}

	if !user.IsActive {
		return nil, errors.Forbidden("account is deactivated")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, errors.InvalidCredentials()
	}

	if err := s.userRepo.UpdateLastLogin(ctx, user.ID); err != nil {
		s.logger.Warn().Err(err).Str("user_id", user.ID).Msg("failed to record last login")
	}

	token, err := s.jwtManager.Generate(&jwt.UserInfo{
		ID:    user.ID,
		Email: user.Email,
		Name:  user.Name,
		Role:  user.Role,
	})
	if err != nil {
		return nil, errors.Internal("failed to generate token")
	}

	s.logger.Info().Str("user_id", user.ID).Msg("user logged in")

	return &AuthResult{User: user, Token: token}, nil
}

// Me returns the profile of the given user
func (s *AuthService) Me(ctx context.Context, userID string) (*repository.User, error) {
	return s.userRepo.GetByID(ctx, userID)
}
