package model

import "time"

// DeadLetterMessage is a generation job that exhausted its retries.
type DeadLetterMessage struct {
	ID        string    `db:"id"`
	QueueName string    `db:"queue_name"`
	MessageID int64     `db:"message_id"`
	ProjectID string    `db:"project_id"`
	Payload   []byte    `db:"payload"` // raw JSON job
	LastError string    `db:"last_error"`
	Attempts  int       `db:"attempts"`
	Status    string    `db:"status"`
	CreatedAt time.Time `db:"created_at"`
}
