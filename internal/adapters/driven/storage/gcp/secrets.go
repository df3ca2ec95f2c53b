package gcp

import (
	"context"
	"encoding/base64"
	"fmt"

	secretmanager "google.golang.org/api/secretmanager/v1"

	"github.com/custodia-labs/vulnsync/internal/core/domain"
)

// SecretManager reads secret values from Google Secret Manager.
type SecretManager struct {
	svc     *secretmanager.Service
	project string
	limiter *RateLimiter
}

// NewSecretManager creates a reader for secrets in project.
func NewSecretManager(ctx context.Context, cfg Config, project string) (*SecretManager, error) {
	if project == "" {
		return nil, fmt.Errorf("%w: secret manager project is required", domain.ErrInvalidInput)
	}
	svc, err := secretmanager.NewService(ctx, cfg.clientOptions(cfg.SecretManagerEndpoint)...)
	if err != nil {
		return nil, fmt.Errorf("create secret manager service: %w", err)
	}
	return &SecretManager{svc: svc, project: project, limiter: NewRateLimiter(ServiceSecretManager)}, nil
}

// AccessSecret returns the latest version of secret id.
func (m *SecretManager) AccessSecret(ctx context.Context, id string) (string, error) {
	if err := m.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}

	name := fmt.Sprintf("projects/%s/secrets/%s/versions/latest", m.project, id)
	resp, err := m.svc.Projects.Secrets.Versions.Access(name).Context(ctx).Do()
	if err != nil {
		m.limiter.observe(err)
		return "", fmt.Errorf("access %s: %w", name, WrapError(err))
	}
	if resp.Payload == nil {
		return "", fmt.Errorf("access %s: empty payload", name)
	}

	data, err := base64.StdEncoding.DecodeString(resp.Payload.Data)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", name, err)
	}
	return string(data), nil
}
