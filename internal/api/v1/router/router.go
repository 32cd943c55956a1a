package router

import (
	"context"
	"net/http"

	"policybolt/internal/api/v1/handler"
	"policybolt/internal/config"
	"policybolt/internal/embed"
	"policybolt/internal/githubapp"
	"policybolt/internal/middleware"
	"policybolt/internal/pgmq"
	"policybolt/internal/repository"
	"policybolt/internal/service"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awsmiddleware "github.com/aws/smithy-go/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/resend/resend-go/v2"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (http.Handler, *pgxpool.Pool, error) {
	logger.Info().Str("environment", cfg.Environment).Msg("App environment loaded")

	// 1. Open DB pool
	pool, err := repository.NewPool(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	// 2. Initialize S3 client for policy archives
	s3Client, err := newS3Client(ctx, cfg)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}

	// 3. Initialize the token store and external clients
	tokenStore, err := service.NewTokenStore(ctx, cfg, repository.NewTokenRepo(pool))
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	queue := pgmq.New(pool)
	githubProvider := &githubapp.AppClientProvider{
		AppID:        cfg.GitHubAppID,
		PrivateKey:   []byte(cfg.GitHubAppPrivateKey),
		ClientID:     cfg.GitHubClientID,
		ClientSecret: cfg.GitHubClientSecret,
		Hostname:     cfg.GitHubHostname,
	}

	// 4. Initialize repositories & services & handlers
	userRepo := repository.NewUserRepo(pool)
	subRepo := repository.NewSubscriptionRepo(pool)
	projectRepo := repository.NewProjectRepo(pool)
	policyRepo := repository.NewPolicyRepo(pool)

	plans := service.NewPlanCatalog(cfg)
	emailSvc := service.NewEmailService(resend.NewClient(cfg.ResendAPIKey), cfg.EmailFrom, cfg.DashboardURL, logger)
	subSvc := service.NewSubscriptionService(subRepo, plans, logger)
	userSvc := service.NewUserService(userRepo, emailSvc, logger)
	projectSvc := service.NewProjectService(projectRepo, subSvc, tokenStore, queue, cfg.GenerationQueueName, logger)
	archive := service.NewPolicyArchive(s3Client, cfg.S3Bucket, logger)
	policySvc := service.NewPolicyService(policyRepo, projectSvc, projectRepo, userRepo, archive, emailSvc, cfg.DashboardURL, logger)
	githubSvc := service.NewGitHubService(githubProvider, projectSvc, projectRepo, subSvc, tokenStore,
		cfg.GitHubAppSlug, cfg.GitHubHostname, cfg.StateSecret, logger)
	stripeSvc := service.NewStripeService(cfg, service.NewStripeGateway(cfg.StripeSecretKey), plans, userRepo, subRepo, projectSvc, emailSvc, logger)
	notificationSvc := service.NewNotificationService(userSvc, projectSvc, emailSvc, cfg.DashboardURL, logger)

	userHandler := handler.NewUserHandler(userSvc, logger)
	projectHandler := handler.NewProjectHandler(projectSvc, logger)
	policyHandler := handler.NewPolicyHandler(policySvc, logger)
	billingHandler := handler.NewBillingHandler(stripeSvc, subSvc, logger)
	githubHandler := handler.NewGitHubHandler(githubSvc, logger)
	notificationHandler := handler.NewNotificationHandler(notificationSvc, logger)
	embedHandler := embed.NewHandler(policySvc, logger)

	// 5. Initialize middleware
	authMiddleware := middleware.AuthMiddleware(cfg.JWTSecret, logger)
	webhookAuthMiddleware := middleware.WebhookSecretMiddleware(cfg.N8NWebhookSecret, logger)

	// 6. Build the Huma API and raw routes
	chiRouter, api := SetupHumaAPI(cfg, authMiddleware, webhookAuthMiddleware, logger)
	RegisterRoutes(api, userHandler, projectHandler, policyHandler, billingHandler, githubHandler, notificationHandler, logger)
	chiRouter.Post(StripeWebhookPath, stripeSvc.HandleWebhook)
	embedHandler.Routes(chiRouter)

	root := chi.NewRouter()
	root.Use(chimw.RequestID)
	root.Use(chimw.Recoverer)
	root.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	root.Mount("/", chiRouter)

	// 7. Apply CORS middleware
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	return middleware.LoggerMiddleware(logger)(c.Handler(root)), pool, nil
}

func newS3Client(ctx context.Context, cfg *config.Config) (*s3.Client, error) {
	s3Config, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, "")),
		awsconfig.WithAPIOptions([]func(*awsmiddleware.Stack) error{removeDisableGzip()}),
	)
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(s3Config, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.S3URL)
		o.UsePathStyle = true
		// Supabase storage rejects aws-chunked uploads.
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	}), nil
}

// removeDisableGzip is a workaround for S3 signature errors with some S3-compatible services.
// See: https://github.com/supabase/storage/issues/577
func removeDisableGzip() func(*awsmiddleware.Stack) error {
	return func(stack *awsmiddleware.Stack) error {
		if _, ok := stack.Finalize.Get("DisableAcceptEncodingGzip"); ok {
			_, err := stack.Finalize.Remove("DisableAcceptEncodingGzip")
			return err
		}
		return nil
	}
}
