// Package identity turns a bearer credential into a verified external
// identity. Resolvers never touch local storage.
package identity

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"notely-server/internal/config"
	"notely-server/internal/domain"
)

// ErrInvalidCredential marks a credential the caller must treat as
// unauthenticated. Any other resolver error is an infrastructure failure.
var ErrInvalidCredential = fmt.Errorf("invalid credential: %w", domain.ErrUnauthenticated)

type Identity struct {
	SubjectID string
	Email     string
	Name      string
	AvatarURL string
}

type Resolver interface {
	Resolve(ctx context.Context, token string) (*Identity, error)
}

// checked rejects identities that cannot back a user record.
func checked(id *Identity) (*Identity, error) {
	id.Email = strings.TrimSpace(id.Email)
	id.Name = strings.TrimSpace(id.Name)

	if id.SubjectID == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidCredential)
	}
	if id.Email == "" {
		return nil, fmt.Errorf("%w: no email on identity", ErrInvalidCredential)
	}
	return id, nil
}

// New builds the resolver selected by cfg.Provider. The oidc provider
// performs issuer discovery, so ctx bounds that network call.
func New(ctx context.Context, cfg config.IdentityConfig) (Resolver, error) {
	client := &http.Client{Timeout: cfg.Timeout}

	switch cfg.Provider {
	case config.ProviderJWT:
		return NewJWTResolver(cfg.JWTSecret, cfg.JWTIssuer), nil
	case config.ProviderOIDC:
		return NewOIDCResolver(ctx, cfg.OIDCIssuerURL, cfg.OIDCClientID, client)
	case config.ProviderGoogle:
		return NewGoogleResolver(client, cfg.GoogleEndpoint), nil
	}

	return nil, fmt.Errorf("unsupported identity provider %q", cfg.Provider)
}
