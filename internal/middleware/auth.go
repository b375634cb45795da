// Package middleware provides HTTP middleware for the fiber app.
package middleware

import (
	"strings"

	"github.com/mutalechilando/DigitalWalletBackend/internal/services/auth"
	"github.com/mutalechilando/DigitalWalletBackend/internal/utils/response"

	"github.com/gofiber/fiber/v2"
)

// AuthMiddleware validates bearer tokens and places the verified claims in
// the request context. Revoked (logged-out) tokens are rejected here, before
// any handler runs.
type AuthMiddleware struct {
	authService auth.Service
}

func NewAuthMiddleware(authService auth.Service) *AuthMiddleware {
	return &AuthMiddleware{authService: authService}
}

func (m *AuthMiddleware) Handler(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return response.Unauthorized(c, "missing authorization header")
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return response.Unauthorized(c, "invalid authorization format")
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")

	claims, err := m.authService.ValidateToken(c.Context(), token)
	if err != nil {
		return response.Unauthorized(c, err.Error())
	}

	c.Locals("claims", claims)
	c.Locals("userID", claims.UserID)
	c.Locals("token", token)
	return c.Next()
}
