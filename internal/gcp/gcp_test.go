package gcp

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientOptionsAPIKey(t *testing.T) {
	opts, err := ClientOptions(context.Background(), Credentials{APIKey: "k"})
	require.NoError(t, err)
	assert.Len(t, opts, 1)
}

func TestClientOptionsMissingFile(t *testing.T) {
	_, err := ClientOptions(context.Background(), Credentials{
		CredentialsFile: filepath.Join(t.TempDir(), "missing.json"),
	})
	assert.Error(t, err)
}

func TestClientOptionsBadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))
	_, err := ClientOptions(context.Background(), Credentials{CredentialsFile: path})
	assert.Error(t, err)
}

func TestClientOptionsAccessToken(t *testing.T) {
	opts, err := ClientOptions(context.Background(), Credentials{AccessToken: "ya29.token", APIKey: "ignored"})
	require.NoError(t, err)
	assert.Len(t, opts, 1)
}
