// ABOUTME: Account identity lookup for freshly authorized credentials
// ABOUTME: Reads the signed-in email through the OAuth2 userinfo API
package sync

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

// LookupEmail returns the email of the account token belongs to. A non-empty
// endpoint overrides the API base URL.
func LookupEmail(ctx context.Context, token *oauth2.Token, opts ClientOptions, endpoint string) (string, error) {
	clientOpts := []option.ClientOption{option.WithHTTPClient(NewAPIClient(token, opts))}
	if endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(endpoint))
	}

	service, err := oauth2api.NewService(ctx, clientOpts...)
	if err != nil {
		return "", fmt.Errorf("failed to create userinfo client: %w", err)
	}

	info, err := service.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return "", describeAPIError("userinfo", "", err)
	}
	return info.Email, nil
}
