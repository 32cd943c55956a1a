package service

import (
	"context"
	"encoding/json"

	"policybolt/internal/model"
	"policybolt/internal/pgmq"
	"policybolt/internal/repository"

	"github.com/rs/zerolog"
)

// DeadLetter describes a queue message that will not be retried.
type DeadLetter struct {
	Queue     string
	Message   *pgmq.Message
	ProjectID string
	Err       error
	Attempts  int
}

type DLQService interface {
	// ProcessAndSave records the failure in dead_letter_messages and forwards
	// the payload to the dead-letter queue.
	ProcessAndSave(ctx context.Context, dl DeadLetter) error
}

type dlqService struct {
	repo    repository.DLQRepository
	queue   pgmq.Queue
	dlqName string
	logger  zerolog.Logger
}

func NewDLQService(repo repository.DLQRepository, queue pgmq.Queue, dlqName string, logger zerolog.Logger) DLQService {
	return &dlqService{
		repo:    repo,
		queue:   queue,
		dlqName: dlqName,
		logger:  logger.With().Str("service", "DLQService").Logger(),
	}
}

func (s *dlqService) ProcessAndSave(ctx context.Context, dl DeadLetter) error {
	payload := dl.Message.Data
	// Keep malformed payloads by wrapping them in a JSON string
	if !json.Valid(payload) {
		payload, _ = json.Marshal(string(dl.Message.Data))
	}

	lastErr := ""
	if dl.Err != nil {
		lastErr = dl.Err.Error()
	}

	dbMessage := &model.DeadLetterMessage{
		QueueName: dl.Queue,
		MessageID: dl.Message.ID,
		ProjectID: dl.ProjectID,
		Payload:   payload,
		LastError: lastErr,
		Attempts:  dl.Attempts,
		Status:    "unprocessed",
	}
	if err := s.repo.Create(ctx, dbMessage); err != nil {
		s.logger.Error().Err(err).Int64("msg_id", dl.Message.ID).Msg("Failed to record dead letter")
		return err
	}

	if err := s.queue.Send(ctx, s.dlqName, payload); err != nil {
		s.logger.Error().Err(err).Str("dlq", s.dlqName).Msg("Failed to send message to dead-letter queue")
		return err
	}
	return nil
}
