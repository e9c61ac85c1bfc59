package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"product-wizard-service/common/auth"
	apperrors "product-wizard-service/common/errors"
	"product-wizard-service/common/logger"
	"product-wizard-service/controllers"
	"product-wizard-service/database"
	"product-wizard-service/middleware"
	"product-wizard-service/models"
	aws_pkg "product-wizard-service/pkg/aws"
	"product-wizard-service/repository"
	"product-wizard-service/routes"
	"product-wizard-service/services"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		panic("config load failed: " + err.Error())
	}

	// --- AWS setup ---
	awsCfg, err := aws_pkg.LoadAWSConfig(context.Background(), aws_pkg.OptionsFromEnv())
	if err != nil {
		panic("failed to load AWS config: " + err.Error())
	}

	// --- Logger (optional CloudWatch Logs tee) ---
	var cwWriter io.Writer
	if cfg.CloudWatchLogs {
		cw, cwErr := aws_pkg.NewCloudWatchLogsClient(context.Background(), awsCfg, cfg.CloudWatchLogGroup, cfg.ServiceName)
		if cwErr == nil {
			cwWriter = cw
		}
	}
	log, err := logger.Initialize(cfg.Env, cwWriter)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer log.Sync()
	zap.ReplaceGlobals(log)
	if cfg.CloudWatchLogs && cwWriter == nil {
		log.Warn("CloudWatch Logs unavailable, logging to stdout only")
	}

	// --- Database (registry ledger) ---
	db, err := database.ConnectPostgres(cfg.Postgres, log, &models.RegistryContribution{})
	if err != nil {
		log.Fatal("DB connection failed", zap.Error(err))
	}

	// --- DynamoDB (products) ---
	ddbClient := aws_pkg.NewDynamoClient(awsCfg)
	if cfg.EnsureTable {
		if err := aws_pkg.EnsureTable(context.Background(), ddbClient, cfg.ProductsTable, "product_id"); err != nil {
			log.Fatal("Failed to ensure products table", zap.Error(err))
		}
	}

	// --- Redis (registry cache) ---
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Warn("Failed to parse REDIS_URL, falling back to default", zap.Error(err))
		redisOpts = &redis.Options{Addr: "redis:6379", DB: 0}
	}
	rdb := redis.NewClient(redisOpts)
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 3*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Warn("Redis unavailable, registry lookups will not be cached", zap.Error(err))
	}
	pingCancel()

	// --- Messaging & metrics ---
	snsClient := aws_pkg.NewSNSClient(awsCfg)
	metricsClient := aws_pkg.NewMetricsClient(awsCfg, cfg.MetricsNamespace, cfg.MetricsEnabled)

	notifiers := services.MultiNotifier{services.NewLogNotifier(log)}
	if cfg.NotificationQueueURL != "" {
		producer := aws_pkg.NewSQSProducer(awsCfg, cfg.NotificationQueueURL)
		notifiers = append(notifiers, services.NewSQSNotifier(producer, cfg.NotificationRecipient))
	}

	// --- Media ---
	var media services.MediaStore = services.URLOnlyMediaStore{}
	var presigner controllers.MediaPresigner
	if cfg.S3Bucket != "" {
		s3Client := aws_pkg.NewS3Client(awsCfg, cfg.S3PathStyle)
		store := services.NewS3MediaStore(s3Client, aws_pkg.NewPresignClient(s3Client),
			cfg.S3Bucket, cfg.S3Prefix, cfg.S3Endpoint, cfg.CloudFrontHost)
		media = store
		presigner = store
	} else {
		log.Info("AWS_S3_BUCKET not set, media accepts URLs only")
	}

	// --- Dependency injection ---
	productRepo := repository.NewDynamoProductRepo(ddbClient, cfg.ProductsTable)
	registryRepo := repository.NewGormRegistryRepository(db)
	registryService := services.NewRegistryService(registryRepo, snsClient, cfg.RegistrySNSTopicARN, log)
	registry := services.NewCachedRegistry(services.NewPrefixRegistry(cfg.RegistryMediaURL), rdb, cfg.RegistryCacheTTL, log)

	bus := services.NewEventBus()
	bridge := services.BridgeNotifications(bus, notifiers, log)
	background := &sync.WaitGroup{}

	manager := services.NewSessionManager(services.SessionDeps{
		Engine:      services.NewValidationEngine(),
		Registry:    registry,
		Creator:     services.NewProductCreator(productRepo, log),
		Contributor: registryService,
		Metrics:     metricsClient,
		Media:       media,
		Bus:         bus,
		Logger:      log,
		Submission: services.SubmissionOptions{
			CreateTimeout:     cfg.CreateTimeout,
			ContributeTimeout: cfg.ContributeTimeout,
			Background:        background,
		},
	}, cfg.SessionTTL, log)

	wizardController := controllers.NewWizardController(manager, presigner)
	registryController := controllers.NewRegistryController(registryService)

	limits := &routes.Limiters{
		Lookup: middleware.NewRateLimiter(rate.Limit(cfg.LookupRatePerSec), 10, 10*time.Minute),
		Submit: middleware.NewRateLimiter(rate.Limit(cfg.SubmitRatePerSec), 3, 10*time.Minute),
	}

	// --- HTTP router ---
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.RequestID())
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.MetricsMiddleware(metricsClient, cfg.ServiceName))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORSMiddleware(cfg.CORSOrigins))
	r.Use(middleware.RequestTimeout(30 * time.Second))
	r.Use(apperrors.ErrorMiddleware())

	routes.RegisterWizardRoutes(r, auth.NewTokenVerifier(cfg.JWTSecret), wizardController, registryController, limits)
	routes.RegisterHealthRoutes(r, cfg.ServiceName, manager.Count)

	// --- Background workers ---
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	go manager.Run(workerCtx, time.Minute)
	go limits.Lookup.Run(workerCtx)
	go limits.Submit.Run(workerCtx)

	// --- HTTP server ---
	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		log.Info("Product Wizard Service started", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Initiating graceful shutdown...")
	httpShutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(httpShutdownCtx); err != nil {
		log.Error("Server shutdown error", zap.Error(err))
	}
	stopWorkers()

	// Registry contributions and metrics still in flight.
	manager.Drain()
	bridge.Close()

	if err := rdb.Close(); err != nil {
		log.Error("Redis close error", zap.Error(err))
	}
	if err := database.Close(db); err != nil {
		log.Error("Database close error", zap.Error(err))
	}

	log.Info("Product Wizard Service stopped gracefully")
}
