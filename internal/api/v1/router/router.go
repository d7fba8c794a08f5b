package router

import (
	"app/internal/api/v1/handler"
	"app/internal/config"
	"app/internal/middleware"
	"app/internal/model"
	"app/internal/pubsub"
	"app/internal/repository"
	"app/internal/service"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awsmiddleware "github.com/aws/smithy-go/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

func New(cfg *config.Config, logger zerolog.Logger) (http.Handler, *pgxpool.Pool, error) {
	logger.Info().Str("environment", cfg.Environment).Msg("Router initializing")

	// 1. Open DB connection pool
	dsn := cfg.DBConnectionString
	// Local development runs without SSL; production connection strings carry
	// their own SSL settings.
	if cfg.Environment == "development" && !strings.Contains(dsn, "sslmode") {
		separator := "?"
		if strings.Contains(dsn, "?") {
			separator = "&"
		}
		dsn += separator + "sslmode=disable"
	}

	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open DB pool: %w", err)
	}
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to ping DB: %w", err)
	}
	logger.Info().Msg("Database connection successful")

	// 2. Initialize S3 client for avatar image storage
	s3Config, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, "")),
		awsconfig.WithAPIOptions([]func(*awsmiddleware.Stack) error{removeDisableGzip()}),
	)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to load S3 config: %w", err)
	}
	s3Client := s3.NewFromConfig(s3Config, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.S3URL)
		o.UsePathStyle = true
	})

	// 3. Initialize validator
	validate := validator.New(validator.WithRequiredStructEnabled())

	// 4. Initialize Pub/Sub publisher for generation analytics events.
	// Optional: without a GCP project the service runs, it just stops
	// emitting events.
	var publisher pubsub.Publisher
	if cfg.GCPProjectID != "" {
		p, err := pubsub.NewPublisher(context.Background(), cfg)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("failed to create Pub/Sub publisher: %w", err)
		}
		publisher = p
	} else {
		logger.Warn().Msg("GCP_PROJECT_ID not set; generation events will not be published")
	}

	// 5. Initialize repositories & services & handlers
	userRepo := repository.NewUserRepo(pool)
	subRepo := repository.NewSubscriptionRepo(pool)
	creditRepo := repository.NewCreditRepo(pool)
	usageRepo := repository.NewUsageRepo(pool)
	promoRepo := repository.NewPromoRepo(pool)
	generationRepo := repository.NewGenerationRepo(pool)

	policy := service.QuotaPolicy{
		Window:          cfg.FreeQuotaWindow,
		DailyAllowance:  cfg.FreeDailyAllowance,
		WeeklyAllowance: cfg.FreeWeeklyAllowance,
	}
	if policy.Window != model.QuotaWindowDay && policy.Window != model.QuotaWindowWeek {
		pool.Close()
		return nil, nil, fmt.Errorf("invalid FREE_QUOTA_WINDOW %q: must be %q or %q", policy.Window, model.QuotaWindowDay, model.QuotaWindowWeek)
	}

	userSvc := service.NewUserService(userRepo)
	subSvc := service.NewSubscriptionService(subRepo, logger)
	entitlementSvc := service.NewEntitlementService(subSvc, creditRepo, usageRepo, policy, logger)
	promoSvc := service.NewPromoService(promoRepo, logger)
	stripeSvc := service.NewStripeService(cfg, userRepo, subRepo, creditRepo, logger)
	generator := service.NewOpenAIImageGenerator(cfg.ImageAPIBaseURL, cfg.ImageAPIKey, cfg.ImageModel, cfg.ImageSize)
	avatarSvc := service.NewAvatarService(entitlementSvc, generator, generationRepo, s3Client, cfg.S3Bucket, publisher, cfg.PubSubGenerationTopic, logger)

	userHandler := handler.NewUserHandler(userSvc, validate)
	usageHandler := handler.NewUsageHandler(entitlementSvc, logger)
	avatarHandler := handler.NewAvatarHandler(avatarSvc, validate, cfg.MaxGenerateBodyBytes, logger)
	promoHandler := handler.NewPromoHandler(promoSvc, validate, logger)
	billingHandler := handler.NewBillingHandler(stripeSvc, subSvc, validate, logger)
	healthHandler := handler.NewHealthHandler(pool)

	// 6. Initialize middleware
	authMiddleware := middleware.AuthMiddleware(cfg.JWTSecret)
	optionalAuthMiddleware := middleware.OptionalAuthMiddleware(cfg.JWTSecret)

	// 7. Create ServeMux router
	mux := http.NewServeMux()

	apiV1Mux := http.NewServeMux()
	userHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	usageHandler.RegisterRoutes(apiV1Mux, optionalAuthMiddleware)
	avatarHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	promoHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	billingHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	healthHandler.RegisterRoutes(apiV1Mux)

	// Mount the API v1 routes under /v1
	mux.Handle("/v1/", http.StripPrefix("/v1", apiV1Mux))

	// Redirect /api/* to /v1/* for backward compatibility
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/api/")
		http.Redirect(w, r, "/v1/"+rest, http.StatusMovedPermanently)
	})

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/v1/") || strings.HasPrefix(r.URL.Path, "/api/") {
			http.NotFound(w, r)
			return
		}
		http.Redirect(w, r, "/v1"+r.URL.Path, http.StatusMovedPermanently)
	})

	// 8. Apply CORS middleware
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		Debug:            false,
	})

	return middleware.LoggerMiddleware(c.Handler(mux)), pool, nil
}

// removeDisableGzip is a workaround for S3 signature errors with some
// S3-compatible services.
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
