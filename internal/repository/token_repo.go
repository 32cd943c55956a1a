package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// GitHubToken is a stored installation access token.
type GitHubToken struct {
	ProjectID string
	Token     string
	ExpiresAt time.Time
}

// TokenRepository persists GitHub installation tokens in github_tokens.
type TokenRepository interface {
	Put(ctx context.Context, t GitHubToken) error
	Get(ctx context.Context, projectID string) (*GitHubToken, error)
	Delete(ctx context.Context, projectIDs ...string) error
}

type tokenRepo struct {
	pool *pgxpool.Pool
}

func NewTokenRepo(pool *pgxpool.Pool) TokenRepository {
	return &tokenRepo{pool: pool}
}

func (r *tokenRepo) Put(ctx context.Context, t GitHubToken) error {
	const q = `
		INSERT INTO github_tokens (project_id, token, expires_at, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (project_id) DO UPDATE
		SET token = EXCLUDED.token, expires_at = EXCLUDED.expires_at, updated_at = NOW()
	`
	if _, err := r.pool.Exec(ctx, q, t.ProjectID, t.Token, t.ExpiresAt); err != nil {
		return fmt.Errorf("store token for project %s: %w", t.ProjectID, err)
	}
	return nil
}

func (r *tokenRepo) Get(ctx context.Context, projectID string) (*GitHubToken, error) {
	t := GitHubToken{ProjectID: projectID}
	err := r.pool.QueryRow(ctx, `SELECT token, expires_at FROM github_tokens WHERE project_id = $1`, projectID).
		Scan(&t.Token, &t.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch token for project %s: %w", projectID, err)
	}
	return &t, nil
}

func (r *tokenRepo) Delete(ctx context.Context, projectIDs ...string) error {
	if len(projectIDs) == 0 {
		return nil
	}
	if _, err := r.pool.Exec(ctx, `DELETE FROM github_tokens WHERE project_id = ANY($1::uuid[])`, projectIDs); err != nil {
		return fmt.Errorf("delete tokens: %w", err)
	}
	return nil
}
