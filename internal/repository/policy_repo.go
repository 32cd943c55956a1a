package repository

import (
	"context"
	"errors"
	"fmt"

	"policybolt/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrPolicyNotApprovable is returned by Approve when the stored procedure
// rejects the transition.
var ErrPolicyNotApprovable = errors.New("policy_not_approvable")

type PolicyRepository interface {
	Create(ctx context.Context, p *model.Policy) error
	GetByID(ctx context.Context, id string) (*model.Policy, error)
	ListByProject(ctx context.Context, projectID string) ([]model.Policy, error)
	GetActiveByProject(ctx context.Context, projectID string) (*model.Policy, error)
	// Approve calls approve_policy, which activates the policy and
	// deactivates the project's previously active one.
	Approve(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	// IncrementUpdateCounter bumps and returns the project's policy update counter.
	IncrementUpdateCounter(ctx context.Context, projectID string) (int, error)
}

type policyRepo struct {
	pool *pgxpool.Pool
}

func NewPolicyRepo(pool *pgxpool.Pool) PolicyRepository {
	return &policyRepo{pool: pool}
}

const policyColumns = `id, project_id, title, content, version, status::text, created_at, updated_at`

func scanPolicy(row pgx.Row) (*model.Policy, error) {
	var p model.Policy
	if err := row.Scan(&p.ID, &p.ProjectID, &p.Title, &p.Content, &p.Version, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *policyRepo) Create(ctx context.Context, p *model.Policy) error {
	q := `INSERT INTO policies (project_id, title, content, version, status)
          VALUES ($1, $2, $3, $4, $5::policy_status)
          RETURNING ` + policyColumns
	created, err := scanPolicy(r.pool.QueryRow(ctx, q, p.ProjectID, p.Title, p.Content, p.Version, string(p.Status)))
	if err != nil {
		return fmt.Errorf("insert policy for project %s: %w", p.ProjectID, err)
	}
	*p = *created
	return nil
}

func (r *policyRepo) GetByID(ctx context.Context, id string) (*model.Policy, error) {
	q := `SELECT ` + policyColumns + ` FROM policies WHERE id = $1`
	p, err := scanPolicy(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch policy %s: %w", id, err)
	}
	return p, nil
}

func (r *policyRepo) ListByProject(ctx context.Context, projectID string) ([]model.Policy, error) {
	q := `SELECT ` + policyColumns + ` FROM policies WHERE project_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, projectID)
	if err != nil {
		return nil, fmt.Errorf("list policies for project %s: %w", projectID, err)
	}
	defer rows.Close()

	policies := []model.Policy{}
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, fmt.Errorf("scan policy: %w", err)
		}
		policies = append(policies, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list policies rows: %w", err)
	}
	return policies, nil
}

func (r *policyRepo) GetActiveByProject(ctx context.Context, projectID string) (*model.Policy, error) {
	q := `SELECT ` + policyColumns + ` FROM policies WHERE project_id = $1 AND status = 'active'`
	p, err := scanPolicy(r.pool.QueryRow(ctx, q, projectID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch active policy for project %s: %w", projectID, err)
	}
	return p, nil
}

func (r *policyRepo) Approve(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx, `SELECT approve_policy($1)`, id); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "P0002" {
			return ErrPolicyNotApprovable
		}
		return fmt.Errorf("approve policy %s: %w", id, err)
	}
	return nil
}

func (r *policyRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM policies WHERE id = $1 AND status <> 'active'`, id); err != nil {
		return fmt.Errorf("delete policy %s: %w", id, err)
	}
	return nil
}

func (r *policyRepo) IncrementUpdateCounter(ctx context.Context, projectID string) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, `SELECT increment_policy_update_counter($1)`, projectID).Scan(&count); err != nil {
		return 0, fmt.Errorf("increment policy counter for project %s: %w", projectID, err)
	}
	return count, nil
}
