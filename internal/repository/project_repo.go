package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"policybolt/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrProjectLimitReached is returned when the user's plan allows no more projects.
var ErrProjectLimitReached = errors.New("project_limit_reached")

type ProjectRepository interface {
	// CreateWithinLimit atomically counts the user's projects and inserts the new one.
	// Returns ErrProjectLimitReached when maxProjects would be exceeded.
	CreateWithinLimit(ctx context.Context, p *model.Project, maxProjects int) error
	GetByID(ctx context.Context, id string) (*model.Project, error)
	ListByUser(ctx context.Context, userID string) ([]model.Project, error)
	UpdateDetails(ctx context.Context, p *model.Project) error
	Delete(ctx context.Context, id string) error
	// SetInstallation records the installation, marks the project synced and reactivates it.
	SetInstallation(ctx context.Context, id string, installationID int64) error
	MarkSynced(ctx context.Context, id string, at time.Time) error
	// DeactivateAllForUser marks every project of the user inactive and clears
	// GitHub sync. It returns the affected project ids.
	DeactivateAllForUser(ctx context.Context, userID string) ([]string, error)
}

type projectRepo struct {
	pool *pgxpool.Pool
}

func NewProjectRepo(pool *pgxpool.Pool) ProjectRepository {
	return &projectRepo{pool: pool}
}

const projectColumns = `id, user_id, name, repository_url, github_installation_id, config, status::text, github_synced, last_synced_at, created_at, updated_at`

func scanProject(row pgx.Row) (*model.Project, error) {
	var p model.Project
	var rawConfig []byte
	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.Name,
		&p.RepositoryURL,
		&p.GitHubInstallationID,
		&rawConfig,
		&p.Status,
		&p.GitHubSynced,
		&p.LastSyncedAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(rawConfig) > 0 {
		if err := json.Unmarshal(rawConfig, &p.Config); err != nil {
			return nil, fmt.Errorf("unmarshal config for project %s: %w", p.ID, err)
		}
	}
	return &p, nil
}

func (r *projectRepo) CreateWithinLimit(ctx context.Context, p *model.Project, maxProjects int) error {
	rawConfig, err := json.Marshal(p.Config)
	if err != nil {
		return fmt.Errorf("marshal project config: %w", err)
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("starting transaction for project create: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var count int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM projects WHERE user_id = $1`, p.UserID).Scan(&count); err != nil {
		return fmt.Errorf("counting projects for user %s: %w", p.UserID, err)
	}
	if maxProjects > 0 && count >= maxProjects {
		return ErrProjectLimitReached
	}

	q := `INSERT INTO projects (user_id, name, repository_url, config, status, github_synced)
          VALUES ($1, $2, $3, $4::jsonb, 'active', false)
          RETURNING ` + projectColumns
	created, err := scanProject(tx.QueryRow(ctx, q, p.UserID, p.Name, p.RepositoryURL, rawConfig))
	if err != nil {
		return fmt.Errorf("inserting project for user %s: %w", p.UserID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing project create: %w", err)
	}
	*p = *created
	return nil
}

func (r *projectRepo) GetByID(ctx context.Context, id string) (*model.Project, error) {
	q := `SELECT ` + projectColumns + ` FROM projects WHERE id = $1`
	p, err := scanProject(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch project %s: %w", id, err)
	}
	return p, nil
}

func (r *projectRepo) ListByUser(ctx context.Context, userID string) ([]model.Project, error) {
	q := `SELECT ` + projectColumns + ` FROM projects WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list projects for user %s: %w", userID, err)
	}
	defer rows.Close()

	projects := []model.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list projects rows: %w", err)
	}
	return projects, nil
}

// UpdateDetails writes name, repository and configuration. Changing the
// repository drops the existing installation.
func (r *projectRepo) UpdateDetails(ctx context.Context, p *model.Project) error {
	rawConfig, err := json.Marshal(p.Config)
	if err != nil {
		return fmt.Errorf("marshal project config: %w", err)
	}
	q := `UPDATE projects
          SET name = $2,
              config = $4::jsonb,
              github_installation_id = CASE WHEN repository_url = $3 THEN github_installation_id ELSE NULL END,
              github_synced = CASE WHEN repository_url = $3 THEN github_synced ELSE false END,
              repository_url = $3,
              updated_at = NOW()
          WHERE id = $1
          RETURNING ` + projectColumns
	updated, err := scanProject(r.pool.QueryRow(ctx, q, p.ID, p.Name, p.RepositoryURL, rawConfig))
	if err != nil {
		return fmt.Errorf("update project %s: %w", p.ID, err)
	}
	*p = *updated
	return nil
}

func (r *projectRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete project %s: %w", id, err)
	}
	return nil
}

func (r *projectRepo) SetInstallation(ctx context.Context, id string, installationID int64) error {
	const q = `
		UPDATE projects
		SET github_installation_id = $2, github_synced = true, status = 'active', updated_at = NOW()
		WHERE id = $1
	`
	if _, err := r.pool.Exec(ctx, q, id, installationID); err != nil {
		return fmt.Errorf("set installation on project %s: %w", id, err)
	}
	return nil
}

func (r *projectRepo) MarkSynced(ctx context.Context, id string, at time.Time) error {
	const q = `UPDATE projects SET last_synced_at = $2, updated_at = NOW() WHERE id = $1`
	if _, err := r.pool.Exec(ctx, q, id, at); err != nil {
		return fmt.Errorf("mark project %s synced: %w", id, err)
	}
	return nil
}

func (r *projectRepo) DeactivateAllForUser(ctx context.Context, userID string) ([]string, error) {
	const q = `
		UPDATE projects
		SET status = 'inactive', github_synced = false, updated_at = NOW()
		WHERE user_id = $1
		RETURNING id
	`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("deactivate projects for user %s: %w", userID, err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect deactivated projects for user %s: %w", userID, err)
	}
	return ids, nil
}
