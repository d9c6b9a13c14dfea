package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	oauth2v2 "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

// GoogleResolver treats the bearer as a Google OAuth access token and reads
// the profile from the userinfo endpoint.
type GoogleResolver struct {
	client   *http.Client
	endpoint string
}

// NewGoogleResolver returns a resolver using client as the base transport.
// An empty endpoint means the public Google API.
func NewGoogleResolver(client *http.Client, endpoint string) *GoogleResolver {
	if client == nil {
		client = http.DefaultClient
	}
	return &GoogleResolver{client: client, endpoint: endpoint}
}

func (r *GoogleResolver) Resolve(ctx context.Context, token string) (*Identity, error) {
	httpClient := oauth2.NewClient(
		context.WithValue(ctx, oauth2.HTTPClient, r.client),
		oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}),
	)

	opts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if r.endpoint != "" {
		opts = append(opts, option.WithEndpoint(r.endpoint))
	}

	svc, err := oauth2v2.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("new oauth2 service: %w", err)
	}

	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && (apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden) {
			return nil, fmt.Errorf("%w: userinfo rejected token", ErrInvalidCredential)
		}
		return nil, fmt.Errorf("userinfo: %w", err)
	}

	if info.VerifiedEmail != nil && !*info.VerifiedEmail {
		return nil, fmt.Errorf("%w: email not verified", ErrInvalidCredential)
	}

	return checked(&Identity{
		SubjectID: info.Id,
		Email:     info.Email,
		Name:      info.Name,
		AvatarURL: info.Picture,
	})
}
