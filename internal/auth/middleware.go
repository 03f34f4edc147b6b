package auth

import (
	"net/http"
	"strings"

	"github.com/pharmaflow/pharmacy-backend/internal/auth/jwt"
	"github.com/pharmaflow/pharmacy-backend/internal/auth/repository"
	"github.com/pharmaflow/pharmacy-backend/pkg/errors"
	"github.com/pharmaflow/pharmacy-backend/pkg/httputil"
	"github.com/pharmaflow/pharmacy-backend/pkg/logger"
	"github.com/pharmaflow/pharmacy-backend/pkg/roles"
)

// Middleware authenticates requests and attaches the user to the context
type Middleware struct {
	jwtManager *jwt.Manager
	userRepo   *repository.UserRepository
	logger     *logger.Logger
}

// NewMiddleware creates the auth middleware
func NewMiddleware(jwtManager *jwt.Manager, userRepo *repository.UserRepository, log *logger.Logger) *Middleware {
	return &Middleware{
		jwtManager: jwtManager,
		userRepo:   userRepo,
		logger:     log,
	}
}

// Authenticate validates the bearer token and loads the user. Requests
// with a missing or malformed header, or a token for a deactivated
// account, never reach the next handler.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			httputil.Error(w, errors.Unauthorized("missing authorization header"))
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			httputil.Error(w, errors.Unauthorized("invalid authorization header format"))
			return
		}

		claims, err := m.jwtManager.Validate(parts[1])
		if err != nil {
			m.logger.Debug().Err(err).Msg("token validation failed")
			httputil.Error(w, err)
			return
		}

		user, err := m.userRepo.GetByID(r.Context(), claims.UserID)
		if err != nil {
			httputil.Error(w, errors.Unauthorized("user no longer exists"))
			return
		}

		if !user.IsActive {
			httputil.Error(w, errors.Forbidden("account is deactivated"))
			return
		}

		ctx := httputil.WithUserContext(r.Context(), user.ID, user.Email, user.Name, user.Role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireCapability rejects requests whose user role lacks the capability
func RequireCapability(c roles.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := roles.Parse(httputil.GetUserRole(r.Context()))
			if !ok || !role.Can(c) {
				httputil.Error(w, errors.Forbidden("insufficient permissions"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
