package main

import (
	"context"
	"flag"
	"net/http"
	"os/signal"
	"syscall"

	"policybolt/internal/config"
	"policybolt/internal/githubapp"
	"policybolt/internal/logger"
	"policybolt/internal/orchestrator/generation"
	"policybolt/internal/pgmq"
	"policybolt/internal/repository"
	"policybolt/internal/service"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

func main() {
	// Parse mode flag
	mode := flag.String("mode", "", "Orchestrator mode: generation")
	flag.Parse()

	// Initialize logger
	logger := logger.New()

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		logger.Warn().Msg("Warning: no .env file found")
	}

	// Load config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Msgf("Error loading config: %v", err)
	}

	// Set up context with graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize DB pool
	pool, err := repository.NewPool(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Msgf("Failed to connect to DB: %v", err)
	}
	defer pool.Close()

	// Initialize PGMQ client
	pgmqClient := pgmq.New(pool)
	logger.Info().Msg("PGMQ client initialized")

	// Dispatch to the selected orchestrator
	var runErr error
	switch *mode {
	case "generation":
		d, err := newGenerationDispatcher(ctx, cfg, pool, pgmqClient, logger)
		if err != nil {
			logger.Fatal().Msgf("Failed to build generation dispatcher: %v", err)
		}
		runErr = generation.Run(ctx, logger, d)
	default:
		logger.Fatal().Msgf("Invalid mode: %s", *mode)
	}

	if runErr != nil {
		logger.Fatal().Msgf("%s orchestrator failed: %v", *mode, runErr)
	}

	logger.Info().Msgf("%s orchestrator stopped gracefully", *mode)
}

// newGenerationDispatcher wires the GitHub token minting the dispatcher needs
// before every n8n call.
func newGenerationDispatcher(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, queue *pgmq.Client, logger zerolog.Logger) (*generation.Dispatcher, error) {
	tokenStore, err := service.NewTokenStore(ctx, cfg, repository.NewTokenRepo(pool))
	if err != nil {
		return nil, err
	}
	projectRepo := repository.NewProjectRepo(pool)
	subSvc := service.NewSubscriptionService(repository.NewSubscriptionRepo(pool), service.NewPlanCatalog(cfg), logger)
	projectSvc := service.NewProjectService(projectRepo, subSvc, tokenStore, queue, cfg.GenerationQueueName, logger)
	githubSvc := service.NewGitHubService(
		&githubapp.AppClientProvider{
			AppID:        cfg.GitHubAppID,
			PrivateKey:   []byte(cfg.GitHubAppPrivateKey),
			ClientID:     cfg.GitHubClientID,
			ClientSecret: cfg.GitHubClientSecret,
			Hostname:     cfg.GitHubHostname,
		},
		projectSvc, projectRepo, subSvc, tokenStore,
		cfg.GitHubAppSlug, cfg.GitHubHostname, cfg.StateSecret, logger,
	)
	dlqSvc := service.NewDLQService(repository.NewDLQRepository(pool), queue, cfg.GenerationDeadLetterQueueName, logger)

	settings := generation.SettingsFromConfig(cfg)
	client := &http.Client{Timeout: settings.RequestTimeout}
	return generation.NewDispatcher(queue, projectRepo, githubSvc, dlqSvc, client, settings, logger), nil
}
