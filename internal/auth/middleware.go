package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/task-service/internal/observability"
	"github.com/spec-kit/task-service/internal/repository"
	apperrors "github.com/spec-kit/task-service/pkg/util"
)

const identityKey = "auth_identity"

// Identity is the authenticated caller resolved for one request. It never
// carries the password hash.
type Identity struct {
	ID    string
	Name  string
	Email string
}

// Middleware validates bearer tokens and resolves the caller identity. It
// holds no mutable state; the secret and the repository are read-only, so a
// single instance serves any number of concurrent requests.
type Middleware struct {
	tokens *TokenManager
	users  repository.UserRepository
}

// NewMiddleware constructs middleware.
func NewMiddleware(tokens *TokenManager, users repository.UserRepository) *Middleware {
	return &Middleware{tokens: tokens, users: users}
}

// Handle enforces authentication for protected routes.
func (m *Middleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return reject("missing_token", "No token provided")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return reject("missing_token", "No token provided")
	}

	userID, err := m.tokens.Parse(parts[1])
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return reject("expired_token", "Token expired")
		}
		return reject("invalid_token", "Invalid token")
	}

	user, err := m.users.GetByID(c.Context(), userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Token is valid but the subject no longer exists.
			return reject("stale_subject", "User not found")
		}
		return apperrors.MapError(err)
	}

	c.Locals(identityKey, &Identity{ID: user.ID, Name: user.Name, Email: user.Email})
	return c.Next()
}

// IdentityFromContext retrieves the authenticated caller.
func IdentityFromContext(c *fiber.Ctx) (*Identity, bool) {
	val := c.Locals(identityKey)
	if val == nil {
		return nil, false
	}
	identity, ok := val.(*Identity)
	return identity, ok
}

func reject(reason, message string) error {
	observability.AuthFailuresTotal.WithLabelValues(reason).Inc()
	return apperrors.NewUnauthorized(message)
}
