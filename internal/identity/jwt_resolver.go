package identity

import (
	"context"
	"fmt"

	"notely-server/pkg/jwt"
)

// JWTResolver verifies HS256 tokens signed with a shared secret.
type JWTResolver struct {
	secret string
	issuer string
}

// NewJWTResolver returns a resolver for secret. A non-empty issuer must match
// the token's iss claim.
func NewJWTResolver(secret, issuer string) *JWTResolver {
	return &JWTResolver{secret: secret, issuer: issuer}
}

func (r *JWTResolver) Resolve(ctx context.Context, token string) (*Identity, error) {
	claims, err := jwt.ValidateToken(token, r.secret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}

	if r.issuer != "" && claims.Issuer != r.issuer {
		return nil, fmt.Errorf("%w: unexpected issuer %q", ErrInvalidCredential, claims.Issuer)
	}

	return checked(&Identity{
		SubjectID: claims.Subject,
		Email:     claims.Email,
		Name:      claims.Name,
		AvatarURL: claims.Picture,
	})
}
