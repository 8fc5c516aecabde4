package auth

import "context"

// Identity is the verified subject of a bearer token.
type Identity struct {
	UserID string
	Email  string
}

// Provider is the identity-provider boundary. The core needs exactly two
// capabilities: verifying a bearer token and resolving a user by email.
type Provider interface {
	VerifyToken(ctx context.Context, token string) (*Identity, error)
	GetUserByEmail(ctx context.Context, email string) (*Identity, error)
}
