package port

import "context"

type AuthUser struct {
	ID    string
	Email string
}

type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*AuthUser, error)
}
