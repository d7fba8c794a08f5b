package service

import (
	"context"
	"fmt"

	"app/internal/config"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"google.golang.org/api/option"
)

// SecretManagerService reads deploy-time secrets (Stripe keys, the image API
// key) from Google Secret Manager so they never sit in plain env files in
// production.
type SecretManagerService interface {
	GetSecret(ctx context.Context, name string) (string, error)
	Close() error
}

type secretManagerService struct {
	client    *secretmanager.Client
	projectID string
}

func NewSecretManagerService(ctx context.Context, cfg *config.Config) (SecretManagerService, error) {
	if cfg.GCPProjectID == "" {
		return nil, fmt.Errorf("GCP Project ID is not set for the current environment")
	}

	var opts []option.ClientOption
	client, err := secretmanager.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Secret Manager client: %w", err)
	}

	return &secretManagerService{
		client:    client,
		projectID: cfg.GCPProjectID,
	}, nil
}

// GetSecret returns the latest version of the named secret.
func (s *secretManagerService) GetSecret(ctx context.Context, name string) (string, error) {
	secretPath := fmt.Sprintf("projects/%s/secrets/%s/versions/latest", s.projectID, name)
	resp, err := s.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: secretPath,
	})
	if err != nil {
		return "", fmt.Errorf("failed to access secret %s: %w", name, err)
	}
	return string(resp.Payload.Data), nil
}

func (s *secretManagerService) Close() error {
	return s.client.Close()
}

// ResolveSecrets overwrites the config's sensitive fields from Secret Manager
// when secret names are configured. Missing names leave env values in place.
func ResolveSecrets(ctx context.Context, cfg *config.Config, sm SecretManagerService) error {
	resolve := func(name string, target *string) error {
		if name == "" {
			return nil
		}
		val, err := sm.GetSecret(ctx, name)
		if err != nil {
			return err
		}
		*target = val
		return nil
	}
	if err := resolve(cfg.StripeKeySecretName, &cfg.StripeSecretKey); err != nil {
		return err
	}
	if err := resolve(cfg.StripeWebhookSecretName, &cfg.StripeWebhookSecret); err != nil {
		return err
	}
	if err := resolve(cfg.ImageAPIKeySecretName, &cfg.ImageAPIKey); err != nil {
		return err
	}
	return nil
}
