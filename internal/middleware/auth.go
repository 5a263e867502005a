package middleware

import (
	"context"

	"github.com/ahmetcoskunkizilkaya/profile-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/profile-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/profile-backend/internal/profilesync"
	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const (
	sessionKey = "session"
	LoginPath  = "/login"
)

// SessionResolver turns verified token claims into a live session.
// services.AuthService implements it.
type SessionResolver interface {
	GetUser(ctx context.Context, claims jwt.MapClaims) (*profilesync.Session, error)
}

func JWTProtected(cfg *config.Config) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey:   jwtware.SigningKey{Key: []byte(cfg.JWTSecret)},
		ErrorHandler: unauthorized,
	})
}

// SessionRequired runs after JWTProtected. It rejects tokens whose session
// has been signed out and stores the session for CurrentSession.
func SessionRequired(resolver SessionResolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := c.Locals("user").(*jwt.Token)
		if !ok {
			return unauthorized(c, nil)
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return unauthorized(c, nil)
		}

		sess, err := resolver.GetUser(c.UserContext(), claims)
		if err != nil {
			return unauthorized(c, err)
		}
		c.Locals(sessionKey, sess)
		return c.Next()
	}
}

// CurrentSession returns the session stored by SessionRequired, or nil.
func CurrentSession(c *fiber.Ctx) *profilesync.Session {
	sess, _ := c.Locals(sessionKey).(*profilesync.Session)
	return sess
}

func unauthorized(c *fiber.Ctx, _ error) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
		Error:    true,
		Message:  "Unauthorized: please sign in again",
		Kind:     "unauthenticated",
		Redirect: LoginPath,
	})
}
