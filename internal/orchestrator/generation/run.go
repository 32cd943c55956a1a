package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"policybolt/internal/config"
	"policybolt/internal/middleware"
	"policybolt/internal/model"
	"policybolt/internal/pgmq"
	"policybolt/internal/repository"
	"policybolt/internal/service"
	"policybolt/internal/wizard"

	"github.com/rs/zerolog"
)

// TokenMinter mints a fresh installation token for a connected project.
type TokenMinter interface {
	RefreshToken(ctx context.Context, p *model.Project) (string, error)
}

// Settings controls the polling loop and the n8n calls.
type Settings struct {
	QueueName      string
	WebhookURL     string
	WebhookSecret  string
	CallbackURL    string
	PollTimeoutSec int
	PollMaxMsg     int
	MaxRetries     int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	RequestTimeout time.Duration
}

func SettingsFromConfig(cfg *config.Config) Settings {
	initial, max := cfg.GenerationBackoff()
	return Settings{
		QueueName:      cfg.GenerationQueueName,
		WebhookURL:     cfg.N8NWebhookURL,
		WebhookSecret:  cfg.N8NWebhookSecret,
		CallbackURL:    cfg.CallbackURL(),
		PollTimeoutSec: cfg.GenerationPollTimeoutSec,
		PollMaxMsg:     cfg.GenerationPollMaxMsg,
		MaxRetries:     cfg.GenerationMaxRetries,
		BackoffInitial: initial,
		BackoffMax:     max,
		RequestTimeout: time.Duration(cfg.GenerationRequestTimeoutSec) * time.Second,
	}
}

// RepositoryPayload tells the workflow which repository to scan and how.
type RepositoryPayload struct {
	Owner          string `json:"owner"`
	Name           string `json:"name"`
	URL            string `json:"url"`
	InstallationID int64  `json:"installation_id"`
	AccessToken    string `json:"access_token"`
}

// Request is the body posted to the n8n webhook.
type Request struct {
	ProjectID   string              `json:"project_id"`
	UserID      string              `json:"user_id"`
	Reason      string              `json:"reason"`
	Repository  RepositoryPayload   `json:"repository"`
	Config      model.ProjectConfig `json:"config"`
	CallbackURL string              `json:"callback_url"`
}

type Dispatcher struct {
	queue    pgmq.Queue
	projects repository.ProjectRepository
	tokens   TokenMinter
	dlq      service.DLQService
	client   *http.Client
	settings Settings
	now      func() time.Time
	logger   zerolog.Logger
}

func NewDispatcher(
	queue pgmq.Queue,
	projects repository.ProjectRepository,
	tokens TokenMinter,
	dlq service.DLQService,
	client *http.Client,
	settings Settings,
	logger zerolog.Logger,
) *Dispatcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Dispatcher{
		queue:    queue,
		projects: projects,
		tokens:   tokens,
		dlq:      dlq,
		client:   client,
		settings: settings,
		now:      time.Now,
		logger:   logger.With().Str("orchestrator", "generation").Logger(),
	}
}

// Run starts the generation orchestrator and blocks until ctx is canceled.
func Run(ctx context.Context, logger zerolog.Logger, d *Dispatcher) error {
	logger.Info().Str("queue", d.settings.QueueName).Str("endpoint", d.settings.WebhookURL).Msg("Starting generation orchestrator")
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Shutting down generation orchestrator")
			return nil
		default:
		}

		msgs, err := d.queue.ReadWithPoll(ctx, d.settings.QueueName, d.settings.PollTimeoutSec, d.settings.PollMaxMsg)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			logger.Error().Err(err).Msg("Error reading generation queue")
			sleep(ctx, time.Second)
			continue
		}
		for _, msg := range msgs {
			d.Handle(ctx, msg)
		}
	}
}

// Handle processes one queue message. The message is deleted unless the
// project could not be loaded, in which case it becomes visible again after
// the visibility timeout.
func (d *Dispatcher) Handle(ctx context.Context, msg *pgmq.Message) {
	log := d.logger.With().Int64("msg_id", msg.ID).Logger()

	var job model.GenerationJob
	if err := json.Unmarshal(msg.Data, &job); err != nil || job.ProjectID == "" {
		log.Error().Err(err).Msg("Failed to unmarshal generation payload; deleting message")
		d.ack(ctx, msg)
		return
	}
	log = log.With().Str("project_id", job.ProjectID).Logger()

	project, err := d.projects.GetByID(ctx, job.ProjectID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load project; will retry")
		return
	}
	if project == nil {
		log.Warn().Msg("Project no longer exists; dropping generation job")
		d.ack(ctx, msg)
		return
	}
	if project.Status != model.ProjectActive || !project.Connected() {
		log.Warn().Str("status", string(project.Status)).Msg("Project is inactive or disconnected; dropping generation job")
		d.ack(ctx, msg)
		return
	}

	attempts, err := d.dispatch(ctx, job, project, log)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		dl := service.DeadLetter{
			Queue:     d.settings.QueueName,
			Message:   msg,
			ProjectID: project.ID,
			Err:       err,
			Attempts:  attempts,
		}
		if dlqErr := d.dlq.ProcessAndSave(ctx, dl); dlqErr != nil {
			log.Error().Err(dlqErr).Msg("Failed to dead-letter generation job")
		}
		d.ack(ctx, msg)
		log.Warn().Int("attempts", attempts).Err(err).Msg("Exhausted all generation retries; moving job to DLQ")
		return
	}

	d.ack(ctx, msg)
	if err := d.projects.MarkSynced(ctx, project.ID, d.now().UTC()); err != nil {
		log.Error().Err(err).Msg("Failed to record last sync time")
	}
}

// dispatch calls n8n with exponential backoff and returns the number of
// attempts made.
func (d *Dispatcher) dispatch(ctx context.Context, job model.GenerationJob, p *model.Project, log zerolog.Logger) (int, error) {
	repo, err := wizard.ParseRepositoryURL(p.RepositoryURL)
	if err != nil {
		return 0, fmt.Errorf("project repository url: %w", err)
	}

	backoff := d.settings.BackoffInitial
	var lastErr error
	attempt := 0
	for attempt < d.settings.MaxRetries {
		attempt++
		start := time.Now()
		lastErr = d.call(ctx, job, p, repo)
		if lastErr == nil {
			log.Info().Int("attempt", attempt).Str("duration", time.Since(start).String()).Msg("Generation workflow accepted job")
			return attempt, nil
		}
		log.Error().Err(lastErr).Int("attempt", attempt).Msg("Generation workflow call failed, retrying")
		if attempt == d.settings.MaxRetries || !sleep(ctx, backoff) {
			break
		}
		backoff *= 2
		if backoff > d.settings.BackoffMax {
			backoff = d.settings.BackoffMax
		}
	}
	if lastErr == nil {
		lastErr = errors.New("no attempts made")
	}
	return attempt, lastErr
}

func (d *Dispatcher) call(ctx context.Context, job model.GenerationJob, p *model.Project, repo model.Repository) error {
	// Installation tokens expire after an hour, so mint one per attempt.
	token, err := d.tokens.RefreshToken(ctx, p)
	if err != nil {
		return fmt.Errorf("mint installation token: %w", err)
	}

	body, err := json.Marshal(Request{
		ProjectID: p.ID,
		UserID:    p.UserID,
		Reason:    job.Reason,
		Repository: RepositoryPayload{
			Owner:          repo.Owner,
			Name:           repo.Name,
			URL:            repo.URL(),
			InstallationID: *p.GitHubInstallationID,
			AccessToken:    token,
		},
		Config:      p.Config,
		CallbackURL: d.settings.CallbackURL,
	})
	if err != nil {
		return fmt.Errorf("marshal n8n request: %w", err)
	}

	ctxReq, cancel := context.WithTimeout(ctx, d.settings.RequestTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctxReq, http.MethodPost, d.settings.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.WebhookSecretHeader, d.settings.WebhookSecret)

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(msg))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (d *Dispatcher) ack(ctx context.Context, msg *pgmq.Message) {
	if err := d.queue.Delete(ctx, d.settings.QueueName, []int64{msg.ID}); err != nil {
		d.logger.Error().Err(err).Int64("msg_id", msg.ID).Msg("Error deleting generation message")
	}
}

// sleep waits for d or until ctx is done. It reports whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
