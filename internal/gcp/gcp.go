// Package gcp builds client options for the Google Cloud speech APIs.
package gcp

import (
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
)

// CloudPlatformScope grants access to the speech and text-to-speech APIs.
const CloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// ErrNoCredentials is returned when neither a key nor any credentials
// could be found.
var ErrNoCredentials = errors.New("gcp: no credentials available")

// Credentials selects how to authenticate. Fields are tried in order:
// CredentialsJSON, CredentialsFile, AccessToken, APIKey, then application
// default credentials.
type Credentials struct {
	CredentialsJSON []byte
	CredentialsFile string
	AccessToken     string
	APIKey          string
}

// ClientOptions resolves c into client options.
func ClientOptions(ctx context.Context, c Credentials) ([]option.ClientOption, error) {
	switch {
	case len(c.CredentialsJSON) > 0:
		return fromJSON(ctx, c.CredentialsJSON)
	case c.CredentialsFile != "":
		raw, err := os.ReadFile(c.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("gcp: read credentials: %w", err)
		}
		return fromJSON(ctx, raw)
	case c.AccessToken != "":
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: c.AccessToken, TokenType: "Bearer"})
		return []option.ClientOption{option.WithTokenSource(ts)}, nil
	case c.APIKey != "":
		return []option.ClientOption{option.WithAPIKey(c.APIKey)}, nil
	}

	creds, err := google.FindDefaultCredentials(ctx, CloudPlatformScope)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoCredentials, err)
	}
	return []option.ClientOption{option.WithTokenSource(creds.TokenSource)}, nil
}

func fromJSON(ctx context.Context, raw []byte) ([]option.ClientOption, error) {
	creds, err := google.CredentialsFromJSON(ctx, raw, CloudPlatformScope)
	if err != nil {
		return nil, fmt.Errorf("gcp: parse credentials: %w", err)
	}
	return []option.ClientOption{option.WithCredentials(creds)}, nil
}
