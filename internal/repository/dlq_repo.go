package repository

import (
	"context"
	"fmt"

	"policybolt/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
)

type DLQRepository interface {
	Create(ctx context.Context, message *model.DeadLetterMessage) error
}

type dlqRepository struct {
	pool *pgxpool.Pool
}

func NewDLQRepository(pool *pgxpool.Pool) DLQRepository {
	return &dlqRepository{pool: pool}
}

func (r *dlqRepository) Create(ctx context.Context, message *model.DeadLetterMessage) error {
	query := `
        INSERT INTO dead_letter_messages (queue_name, message_id, project_id, payload, last_error, attempts, status)
        VALUES ($1, $2, NULLIF($3, '')::uuid, $4::jsonb, $5, $6, $7)
    `
	_, err := r.pool.Exec(
		ctx,
		query,
		message.QueueName,
		message.MessageID,
		message.ProjectID,
		message.Payload,
		message.LastError,
		message.Attempts,
		message.Status,
	)
	if err != nil {
		return fmt.Errorf("insert dead letter for message %d: %w", message.MessageID, err)
	}
	return nil
}
