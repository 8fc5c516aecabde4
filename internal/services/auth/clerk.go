package auth

import (
	"context"

	"github.com/clerk/clerk-sdk-go/v2"
	"github.com/clerk/clerk-sdk-go/v2/jwt"
	"github.com/clerk/clerk-sdk-go/v2/user"
	"github.com/gridline-ai/gridline-backend/internal/models"
)

type ClerkProvider struct {
	secretKey string
}

func NewClerkProvider(secretKey string) *ClerkProvider {
	clerk.SetKey(secretKey)
	return &ClerkProvider{secretKey: secretKey}
}

func (p *ClerkProvider) VerifyToken(ctx context.Context, token string) (*Identity, error) {
	claims, err := jwt.Verify(ctx, &jwt.VerifyParams{
		Token: token,
	})
	if err != nil {
		return nil, models.NewAuthenticationError("invalid token", err)
	}

	return &Identity{UserID: claims.Subject}, nil
}

func (p *ClerkProvider) GetUserByEmail(ctx context.Context, email string) (*Identity, error) {
	if email == "" {
		return nil, models.NewValidationError("email is required", nil)
	}

	users, err := user.List(ctx, &user.ListParams{
		EmailAddresses: []string{email},
	})
	if err != nil {
		return nil, models.NewProviderError("clerk", "failed to look up user by email", err)
	}
	if len(users.Users) == 0 {
		return nil, models.NewNotFoundError("no user with that email")
	}

	return &Identity{UserID: users.Users[0].ID, Email: email}, nil
}
