package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// ssmAPI is the subset of *ssm.Client used by Secrets.
type ssmAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Secrets resolves provider credentials. The environment always wins;
// when a parameter prefix is configured, missing keys are looked up in
// SSM Parameter Store as <prefix>/<KEY> and cached.
type Secrets struct {
	api    ssmAPI
	prefix string

	mu    sync.Mutex
	cache map[string]string
}

// NewSecrets creates a resolver. api may be nil for env-only resolution.
func NewSecrets(api ssmAPI, prefix string) *Secrets {
	return &Secrets{
		api:    api,
		prefix: strings.TrimRight(prefix, "/"),
		cache:  make(map[string]string),
	}
}

// SecretsFromEnv builds a resolver. When AGRIVOICE_PARAM_PREFIX is set,
// the default AWS config chain is loaded for SSM access.
func SecretsFromEnv(ctx context.Context) (*Secrets, error) {
	prefix := String(EnvParamPrefix, "")
	if prefix == "" {
		return NewSecrets(nil, ""), nil
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("config: load aws config: %w", err)
	}
	return NewSecrets(ssm.NewFromConfig(cfg), prefix), nil
}

// Get returns the secret for key, or "" when it is not configured anywhere.
func (s *Secrets) Get(ctx context.Context, key string) (string, error) {
	if v := String(key, ""); v != "" {
		return v, nil
	}
	if s == nil || s.api == nil || s.prefix == "" {
		return "", nil
	}

	s.mu.Lock()
	if v, ok := s.cache[key]; ok {
		s.mu.Unlock()
		return v, nil
	}
	s.mu.Unlock()

	name := s.prefix + "/" + key
	withDecryption := true
	out, err := s.api.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &name,
		WithDecryption: &withDecryption,
	})
	if err != nil {
		return "", fmt.Errorf("config: get parameter %q: %w", name, err)
	}
	if out == nil || out.Parameter == nil || out.Parameter.Value == nil {
		return "", errors.New("config: parameter missing value")
	}

	s.mu.Lock()
	s.cache[key] = *out.Parameter.Value
	s.mu.Unlock()
	return *out.Parameter.Value, nil
}

// Lookup is Get with errors folded into an empty result.
func (s *Secrets) Lookup(ctx context.Context, key string) string {
	v, err := s.Get(ctx, key)
	if err != nil {
		return ""
	}
	return v
}
