package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"policybolt/internal/config"
	"policybolt/internal/repository"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// TokenStore keeps the latest GitHub installation token per project.
type TokenStore interface {
	Put(ctx context.Context, t repository.GitHubToken) error
	// Get returns nil when no token is stored.
	Get(ctx context.Context, projectID string) (*repository.GitHubToken, error)
	Delete(ctx context.Context, projectIDs ...string) error
}

// NewTokenStore picks the backend named by TOKEN_STORE.
func NewTokenStore(ctx context.Context, cfg *config.Config, repo repository.TokenRepository) (TokenStore, error) {
	switch cfg.TokenStore {
	case "", "postgres":
		return repo, nil
	case "secretmanager":
		return NewSecretManagerTokenStore(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown token store %q", cfg.TokenStore)
	}
}

type secretManagerTokenStore struct {
	client    *secretmanager.Client
	projectID string
}

func NewSecretManagerTokenStore(ctx context.Context, cfg *config.Config) (TokenStore, error) {
	if cfg.GCPProjectID == "" {
		return nil, fmt.Errorf("GCP_PROJECT_ID is required for the secretmanager token store")
	}

	var opts []option.ClientOption
	if cfg.GCPCredsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.GCPCredsFile))
	}

	client, err := secretmanager.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Secret Manager client: %w", err)
	}

	return &secretManagerTokenStore{client: client, projectID: cfg.GCPProjectID}, nil
}

type storedToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func secretName(projectID string) string {
	return "github-token-" + strings.ReplaceAll(projectID, "_", "-")
}

func (s *secretManagerTokenStore) Put(ctx context.Context, t repository.GitHubToken) error {
	name := secretName(t.ProjectID)
	secretPath := fmt.Sprintf("projects/%s/secrets/%s", s.projectID, name)

	if _, err := s.client.GetSecret(ctx, &secretmanagerpb.GetSecretRequest{Name: secretPath}); err != nil {
		if status.Code(err) != codes.NotFound {
			return fmt.Errorf("failed to look up secret: %w", err)
		}
		_, err := s.client.CreateSecret(ctx, &secretmanagerpb.CreateSecretRequest{
			Parent:   fmt.Sprintf("projects/%s", s.projectID),
			SecretId: name,
			Secret: &secretmanagerpb.Secret{
				Replication: &secretmanagerpb.Replication{
					Replication: &secretmanagerpb.Replication_Automatic_{
						Automatic: &secretmanagerpb.Replication_Automatic{},
					},
				},
				Labels: map[string]string{"kind": "github-installation-token"},
			},
		})
		if err != nil {
			return fmt.Errorf("failed to create secret: %w", err)
		}
	}

	data, err := json.Marshal(storedToken{Token: t.Token, ExpiresAt: t.ExpiresAt})
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}
	_, err = s.client.AddSecretVersion(ctx, &secretmanagerpb.AddSecretVersionRequest{
		Parent:  secretPath,
		Payload: &secretmanagerpb.SecretPayload{Data: data},
	})
	if err != nil {
		return fmt.Errorf("failed to add secret version: %w", err)
	}
	return nil
}

func (s *secretManagerTokenStore) Get(ctx context.Context, projectID string) (*repository.GitHubToken, error) {
	resourceName := fmt.Sprintf("projects/%s/secrets/%s/versions/latest", s.projectID, secretName(projectID))
	result, err := s.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: resourceName})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to access secret version: %w", err)
	}

	var st storedToken
	if err := json.Unmarshal(result.Payload.Data, &st); err != nil {
		return nil, fmt.Errorf("unmarshal token: %w", err)
	}
	return &repository.GitHubToken{ProjectID: projectID, Token: st.Token, ExpiresAt: st.ExpiresAt}, nil
}

func (s *secretManagerTokenStore) Delete(ctx context.Context, projectIDs ...string) error {
	for _, id := range projectIDs {
		secretPath := fmt.Sprintf("projects/%s/secrets/%s", s.projectID, secretName(id))
		err := s.client.DeleteSecret(ctx, &secretmanagerpb.DeleteSecretRequest{Name: secretPath})
		if err != nil && status.Code(err) != codes.NotFound {
			return fmt.Errorf("failed to delete secret: %w", err)
		}
	}
	return nil
}
