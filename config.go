package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"product-wizard-service/database"
	aws_pkg "product-wizard-service/pkg/aws"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the product wizard service.
type Config struct {
	Port        string
	Env         string
	ServiceName string
	JWTSecret   string
	CORSOrigins []string

	Postgres database.PostgresConfig

	ProductsTable    string
	EnsureTable      bool
	RedisURL         string
	RegistryCacheTTL time.Duration
	RegistryMediaURL string

	// SNS topic for registry contribution events
	RegistrySNSTopicARN   string
	NotificationQueueURL  string
	NotificationRecipient string

	S3Bucket       string
	S3Prefix       string
	S3Endpoint     string
	S3PathStyle    bool
	CloudFrontHost string

	MetricsEnabled     bool
	MetricsNamespace   string
	CloudWatchLogs     bool
	CloudWatchLogGroup string

	SessionTTL        time.Duration
	CreateTimeout     time.Duration
	ContributeTimeout time.Duration
	LookupRatePerSec  float64
	SubmitRatePerSec  float64
}

// secretSource is the part of the Secrets Manager client config reads.
type secretSource interface {
	GetSecretMap(ctx context.Context, name string) (map[string]string, error)
	GetSecret(ctx context.Context, name string) (string, error)
}

// LoadConfig reads configuration from environment variables (and an
// optional .env file) with a Secrets Manager override on AWS.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := configFromEnv()

	if os.Getenv("AWS_USE_SECRETS") == "true" {
		if awsCfg, err := aws_pkg.LoadAWSConfig(context.Background(), aws_pkg.OptionsFromEnv()); err == nil {
			applySecrets(context.Background(), cfg, aws_pkg.NewSecretsClient(awsCfg))
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func configFromEnv() *Config {
	return &Config{
		Port:        getEnv("PORT", "8095"),
		Env:         getEnv("APP_ENV", "development"),
		ServiceName: getEnv("SERVICE_NAME", "product-wizard-service"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		CORSOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),

		Postgres: database.PostgresConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnv("POSTGRES_PORT", "5432"),
			User:     os.Getenv("POSTGRES_USER"),
			Password: os.Getenv("POSTGRES_PASSWORD"),
			DB:       os.Getenv("POSTGRES_DB"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
			TimeZone: getEnv("POSTGRES_TIMEZONE", "Asia/Kolkata"),
		},

		ProductsTable:    getEnv("DDB_PRODUCTS_TABLE", "Products"),
		EnsureTable:      getEnvBool("DDB_ENSURE_TABLE", false),
		RedisURL:         getEnv("REDIS_URL", "redis://redis:6379"),
		RegistryCacheTTL: getEnvDuration("REGISTRY_CACHE_TTL", 10*time.Minute),
		RegistryMediaURL: getEnv("REGISTRY_MEDIA_BASE_URL", "https://registry.example.com/media"),

		RegistrySNSTopicARN:   os.Getenv("REGISTRY_SNS_TOPIC_ARN"),
		NotificationQueueURL:  os.Getenv("NOTIFICATION_QUEUE_URL"),
		NotificationRecipient: getEnv("NOTIFICATION_RECIPIENT", "admin-dashboard"),

		S3Bucket:       os.Getenv("AWS_S3_BUCKET"),
		S3Prefix:       getEnv("AWS_S3_PREFIX", "products/"),
		S3Endpoint:     getEnv("AWS_S3_ENDPOINT", os.Getenv("AWS_ENDPOINT")),
		S3PathStyle:    getEnvBool("AWS_S3_PATH_STYLE", true),
		CloudFrontHost: os.Getenv("AWS_CLOUDFRONT_DOMAIN"),

		MetricsEnabled:     getEnvBool("CLOUDWATCH_METRICS_ENABLED", false),
		MetricsNamespace:   getEnv("CLOUDWATCH_NAMESPACE", "ECommerce/ProductWizard"),
		CloudWatchLogs:     getEnvBool("CLOUDWATCH_LOGS_ENABLED", false),
		CloudWatchLogGroup: getEnv("CLOUDWATCH_LOG_GROUP", "/ecommerce/services"),

		SessionTTL:        getEnvDuration("WIZARD_SESSION_TTL", 2*time.Hour),
		CreateTimeout:     getEnvDuration("WIZARD_CREATE_TIMEOUT", 15*time.Second),
		ContributeTimeout: getEnvDuration("WIZARD_CONTRIBUTE_TIMEOUT", 10*time.Second),
		LookupRatePerSec:  getEnvFloat("WIZARD_LOOKUP_RATE", 5),
		SubmitRatePerSec:  getEnvFloat("WIZARD_SUBMIT_RATE", 1),
	}
}

// applySecrets overrides DB credentials and the JWT secret with values
// from Secrets Manager. Missing secrets keep the env values.
func applySecrets(ctx context.Context, cfg *Config, sm secretSource) {
	if m, err := sm.GetSecretMap(ctx, "product-wizard/DB_CREDENTIALS"); err == nil {
		if v := m["POSTGRES_USER"]; v != "" {
			cfg.Postgres.User = v
		}
		if v := m["POSTGRES_PASSWORD"]; v != "" {
			cfg.Postgres.Password = v
		}
		if v := m["POSTGRES_DB"]; v != "" {
			cfg.Postgres.DB = v
		}
		if v := m["POSTGRES_HOST"]; v != "" {
			cfg.Postgres.Host = v
		}
		if v := m["POSTGRES_PORT"]; v != "" {
			cfg.Postgres.Port = v
		}
	}
	if jwt, err := sm.GetSecret(ctx, "product-wizard/JWT_SECRET"); err == nil && jwt != "" {
		cfg.JWTSecret = jwt
	}
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Postgres.User == "" || c.Postgres.Password == "" || c.Postgres.DB == "" {
		return fmt.Errorf("database config incomplete")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvFloat(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
