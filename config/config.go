package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config holds all configuration for the CarScout worker daemon
type Config struct {
	Database  DatabaseConfig
	Kafka     KafkaConfig
	Logging   LoggingConfig
	Service   ServiceConfig
	Blob      BlobConfig
	LLM       LLMConfig
	Telegram  TelegramConfig
	Pipeline  PipelineConfig
	Scoring   ScoringConfig
	Delivery  DeliveryConfig
	Alerts    AlertsConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// KafkaConfig holds Kafka configuration
type KafkaConfig struct {
	Brokers []string
	GroupID string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string
}

// ServiceConfig holds service configuration
type ServiceConfig struct {
	Name string
}

// BlobConfig holds raw-blob storage configuration
type BlobConfig struct {
	Backend         string // "s3" or "memory"
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// LLMConfig holds the risk-escalation LLM transport configuration
type LLMConfig struct {
	Endpoint      string
	APIKey        string
	Model         string
	Timeout       time.Duration
	PromptVersion string
}

// TelegramConfig holds messaging transport configuration
type TelegramConfig struct {
	Token     string
	ChannelID string
}

// PipelineConfig holds stage execution configuration
type PipelineConfig struct {
	StageTimeout         time.Duration
	MaxAttempts          int
	PerSourceConcurrency int
	PhoneHashSalt        string
	PhashMaxDistance     int
	SourceErrorThreshold float64
	SourcePauseFor       time.Duration
}

// ScoringConfig holds approval gate thresholds
type ScoringConfig struct {
	ScoreThreshold      float64
	SampleThreshold     int
	ConfidenceThreshold float64
}

// DeliveryConfig holds channel delivery configuration
type DeliveryConfig struct {
	ChannelPostRate      int // posts per rolling hour
	DiversityWindow      time.Duration
	DiversityCapPerModel int
}

// AlertsConfig holds alert matching and notification configuration
type AlertsConfig struct {
	FreeDelay     time.Duration
	DailyCaps     map[string]int // plan name -> cap, 0 means unlimited
	NotifyRate    int            // notifications per rolling minute
	DispatchEvery time.Duration
}

// Result is fx.Out struct for providing config dependencies
type Result struct {
	fx.Out

	Config         *Config
	DatabaseConfig *DatabaseConfig
	KafkaConfig    *KafkaConfig
	LoggingConfig  *LoggingConfig
	ServiceConfig  *ServiceConfig
	BlobConfig     *BlobConfig
	LLMConfig      *LLMConfig
	TelegramConfig *TelegramConfig
	PipelineConfig *PipelineConfig
	ScoringConfig  *ScoringConfig
	DeliveryConfig *DeliveryConfig
	AlertsConfig   *AlertsConfig
}

// Out returns fx-compatible config result
func Out() (Result, error) {
	cfg, err := Load()
	if err != nil {
		return Result{}, err
	}

	return Result{
		Config:         cfg,
		DatabaseConfig: &cfg.Database,
		KafkaConfig:    &cfg.Kafka,
		LoggingConfig:  &cfg.Logging,
		ServiceConfig:  &cfg.Service,
		BlobConfig:     &cfg.Blob,
		LLMConfig:      &cfg.LLM,
		TelegramConfig: &cfg.Telegram,
		PipelineConfig: &cfg.Pipeline,
		ScoringConfig:  &cfg.Scoring,
		DeliveryConfig: &cfg.Delivery,
		AlertsConfig:   &cfg.Alerts,
	}, nil
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DATABASE_HOST", "localhost"),
			Port:     getEnv("DATABASE_PORT", "5432"),
			User:     getEnv("DATABASE_USER", "carscout"),
			Password: getEnv("DATABASE_PASSWORD", "carscout"),
			DBName:   getEnv("DATABASE_NAME", "carscout"),
			SSLMode:  getEnv("DATABASE_SSLMODE", "disable"),
		},
		Kafka: KafkaConfig{
			Brokers: strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			GroupID: getEnv("KAFKA_GROUP_ID", "carscout-pipeline"),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Service: ServiceConfig{
			Name: getEnv("SERVICE_NAME", "carscout-worker"),
		},
		Blob: BlobConfig{
			Backend:         getEnv("BLOB_BACKEND", "s3"),
			Bucket:          getEnv("BLOB_S3_BUCKET", "carscout-raw"),
			Region:          getEnv("BLOB_S3_REGION", "eu-central-1"),
			Endpoint:        getEnv("BLOB_S3_ENDPOINT", ""),
			AccessKeyID:     getEnv("BLOB_S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("BLOB_S3_SECRET_ACCESS_KEY", ""),
		},
		LLM: LLMConfig{
			Endpoint:      getEnv("LLM_ENDPOINT", ""),
			APIKey:        getEnv("LLM_API_KEY", ""),
			Model:         getEnv("LLM_MODEL", "gpt-4o-mini"),
			Timeout:       getEnvDuration("LLM_TIMEOUT", 20*time.Second),
			PromptVersion: getEnv("LLM_PROMPT_VERSION", "v2"),
		},
		Telegram: TelegramConfig{
			Token:     getEnv("TELEGRAM_TOKEN", ""),
			ChannelID: getEnv("TELEGRAM_CHANNEL_ID", ""),
		},
		Pipeline: PipelineConfig{
			StageTimeout:         getEnvDuration("STAGE_TIMEOUT", 60*time.Second),
			MaxAttempts:          getEnvInt("STAGE_MAX_ATTEMPTS", 5),
			PerSourceConcurrency: getEnvInt("PER_SOURCE_CONCURRENCY", 2),
			PhoneHashSalt:        getEnv("PHONE_HASH_SALT", ""),
			PhashMaxDistance:     getEnvInt("PHASH_MAX_DISTANCE", 10),
			SourceErrorThreshold: getEnvFloat("SOURCE_ERROR_THRESHOLD", 0.5),
			SourcePauseFor:       getEnvDuration("SOURCE_PAUSE_FOR", 30*time.Minute),
		},
		Scoring: ScoringConfig{
			ScoreThreshold:      getEnvFloat("SCORE_THRESHOLD", 7.5),
			SampleThreshold:     getEnvInt("SAMPLE_THRESHOLD", 30),
			ConfidenceThreshold: getEnvFloat("CONFIDENCE_THRESHOLD", 0.6),
		},
		Delivery: DeliveryConfig{
			ChannelPostRate:      getEnvInt("CHANNEL_POST_RATE", 20),
			DiversityWindow:      getEnvDuration("DIVERSITY_WINDOW", 6*time.Hour),
			DiversityCapPerModel: getEnvInt("DIVERSITY_CAP_PER_MODEL", 2),
		},
		Alerts: AlertsConfig{
			FreeDelay:     getEnvDuration("FREE_ALERT_DELAY", 30*time.Minute),
			DailyCaps:     parseDailyCaps(getEnv("PLAN_DAILY_CAPS", "free:10,premium:50,pro:0")),
			NotifyRate:    getEnvInt("NOTIFY_RATE_PER_MINUTE", 25),
			DispatchEvery: getEnvDuration("ALERT_DISPATCH_EVERY", time.Minute),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return fmt.Errorf("DATABASE_HOST is required")
	}

	if c.Database.User == "" {
		return fmt.Errorf("DATABASE_USER is required")
	}

	if c.Database.DBName == "" {
		return fmt.Errorf("DATABASE_NAME is required")
	}

	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required")
	}

	if c.Pipeline.PhoneHashSalt == "" {
		return fmt.Errorf("PHONE_HASH_SALT is required")
	}

	if c.Blob.Backend != "s3" && c.Blob.Backend != "memory" {
		return fmt.Errorf("BLOB_BACKEND must be s3 or memory, got %q", c.Blob.Backend)
	}

	return nil
}

// GetDSN returns database connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// DailyCap returns the notification cap for a plan; 0 means unlimited.
func (c *AlertsConfig) DailyCap(plan string) int {
	return c.DailyCaps[strings.ToLower(plan)]
}

// parseDailyCaps parses "free:10,premium:50,pro:0" into a map
func parseDailyCaps(s string) map[string]int {
	caps := make(map[string]int)
	for _, pair := range strings.Split(s, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), ":", 2)
		if len(parts) != 2 {
			continue
		}
		n, err := strconv.Atoi(parts[1])
		if err != nil {
			continue
		}
		caps[strings.ToLower(parts[0])] = n
	}
	return caps
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvDuration gets environment variable as duration with default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return duration
}

// getEnvInt gets environment variable as int with default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

// getEnvFloat gets environment variable as float with default value
func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return f
}
