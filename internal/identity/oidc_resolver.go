package identity

import (
	"context"
	"fmt"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
)

type oidcClaims struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// OIDCResolver verifies OpenID Connect ID tokens issued for one client.
type OIDCResolver struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDCResolver discovers the issuer's configuration and signing keys.
// client is used for discovery and for later key refreshes.
func NewOIDCResolver(ctx context.Context, issuerURL, clientID string, client *http.Client) (*OIDCResolver, error) {
	p, err := oidc.NewProvider(oidc.ClientContext(ctx, client), issuerURL)
	if err != nil {
		return nil, fmt.Errorf("new oidc provider: %w", err)
	}

	return NewOIDCResolverWithVerifier(p.Verifier(&oidc.Config{ClientID: clientID})), nil
}

func NewOIDCResolverWithVerifier(verifier *oidc.IDTokenVerifier) *OIDCResolver {
	return &OIDCResolver{verifier: verifier}
}

func (r *OIDCResolver) Resolve(ctx context.Context, token string) (*Identity, error) {
	idTok, err := r.verifier.Verify(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: verify id token: %v", ErrInvalidCredential, err)
	}

	var claims oidcClaims
	if err := idTok.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: read claims: %v", ErrInvalidCredential, err)
	}

	return checked(&Identity{
		SubjectID: idTok.Subject,
		Email:     claims.Email,
		Name:      claims.Name,
		AvatarURL: claims.Picture,
	})
}
