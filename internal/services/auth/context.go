package auth

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gridline-ai/gridline-backend/internal/models"
)

const authContextKey = "auth_context"

// AuthContext is stored in fiber locals by the auth middleware and carries
// both the verified identity and the provisioned account for the request.
type AuthContext struct {
	Identity *Identity
	Account  *models.Account
}

func SetAuthContext(c *fiber.Ctx, authCtx *AuthContext) {
	c.Locals(authContextKey, authCtx)
}

func GetAuthContext(c *fiber.Ctx) *AuthContext {
	authCtx, ok := c.Locals(authContextKey).(*AuthContext)
	if !ok {
		return nil
	}
	return authCtx
}

// GetUserID returns the authenticated user id, or empty if the request is
// unauthenticated.
func (a *AuthContext) GetUserID() (string, bool) {
	if a == nil || a.Identity == nil {
		return "", false
	}
	return a.Identity.UserID, a.Identity.UserID != ""
}
