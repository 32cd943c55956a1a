package model

import "time"

type PolicyStatus string

const (
	PolicyPendingReview PolicyStatus = "pending_review"
	PolicyActive        PolicyStatus = "active"
	PolicyInactive      PolicyStatus = "inactive"
)

// Policy is one generated privacy policy document for a project.
type Policy struct {
	ID        string       `db:"id" json:"id"`
	ProjectID string       `db:"project_id" json:"project_id"`
	Title     string       `db:"title" json:"title"`
	Content   string       `db:"content" json:"content"`
	Version   string       `db:"version" json:"version"`
	Status    PolicyStatus `db:"status" json:"status"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt time.Time    `db:"updated_at" json:"updated_at"`
}

// Approvable reports whether the policy may be promoted to active.
func (p *Policy) Approvable() bool {
	return p.Status == PolicyPendingReview || p.Status == PolicyInactive
}

// Deletable reports whether the policy may be removed. Active policies are
// served by the embed routes and must be replaced before deletion.
func (p *Policy) Deletable() bool {
	return p.Status != PolicyActive
}

// GenerationJob is the pgmq payload asking the worker to invoke n8n.
type GenerationJob struct {
	ProjectID   string    `json:"project_id"`
	UserID      string    `json:"user_id"`
	Reason      string    `json:"reason"`
	RequestedAt time.Time `json:"requested_at"`
}
