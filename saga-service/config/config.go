package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "SAGA"

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"

	LockNone   = "none"
	LockMemory = "memory"
	LockRedis  = "redis"
)

type Config struct {
	ServiceName string    `mapstructure:"service_name"`
	Env         string    `mapstructure:"env"`
	Port        string    `mapstructure:"port"`
	Log         Log       `mapstructure:"log"`
	Database    Database  `mapstructure:"database"`
	Redis       Redis     `mapstructure:"redis"`
	AWS         AWS       `mapstructure:"aws"`
	Telemetry   Telemetry `mapstructure:"telemetry"`
	Saga        Saga      `mapstructure:"saga"`
	Clients     Clients   `mapstructure:"clients"`
}

type Log struct {
	Mode string `mapstructure:"mode"`
}

type Database struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

type Redis struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type AWS struct {
	Region      string `mapstructure:"region"`
	Endpoint    string `mapstructure:"endpoint"`
	SNSTopicArn string `mapstructure:"sns_topic_arn"`
	SQSQueueURL string `mapstructure:"sqs_queue_url"`
	SQSWorkers  int32  `mapstructure:"sqs_workers"`
}

type Telemetry struct {
	Enabled      bool   `mapstructure:"enabled"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

// Saga tunes the engine and the background driver
type Saga struct {
	Storage           string        `mapstructure:"storage"`
	StepTimeout       time.Duration `mapstructure:"step_timeout"`
	AutoCompensate    bool          `mapstructure:"auto_compensate"`
	DriverInterval    time.Duration `mapstructure:"driver_interval"`
	DriverConcurrency int           `mapstructure:"driver_concurrency"`
	Lock              string        `mapstructure:"lock"`
	LockTTL           time.Duration `mapstructure:"lock_ttl"`
	LockWait          time.Duration `mapstructure:"lock_wait"`
}

// Clients configures the in-memory collaborators of the order saga
type Clients struct {
	Stock        map[string]int `mapstructure:"stock"`
	PaymentLimit int64          `mapstructure:"payment_limit"`
}

func ReadConfig() (*Config, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return nil, fmt.Errorf("unable to get current file")
	}

	return loadConfig(filepath.Dir(filename), getConfigName())
}

func loadConfig(configDir, name string) (*Config, error) {
	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("json")
	v.AddConfigPath(configDir)

	// SAGA_SAGA_STORAGE overrides saga.storage
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func getConfigName() string {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		return "local"
	}
	return env
}

func setDefaults(v *viper.Viper) {
	// Service defaults
	v.SetDefault("service_name", "saga-service")
	v.SetDefault("env", getEnv("ENV", "local"))
	v.SetDefault("port", getEnv("PORT", "8080"))
	v.SetDefault("log.mode", "development")

	// Database defaults
	v.SetDefault("database.url", os.Getenv("DATABASE_URL"))
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "password")
	v.SetDefault("database.database", "sagas")
	v.SetDefault("database.ssl_mode", "disable")

	v.SetDefault("redis.addr", getEnv("REDIS_ADDR", "localhost:6379"))
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// AWS defaults
	v.SetDefault("aws.region", getEnv("AWS_DEFAULT_REGION", "us-east-1"))
	v.SetDefault("aws.endpoint", getEnv("AWS_ENDPOINT_URL", ""))
	v.SetDefault("aws.sns_topic_arn", getEnv("SNS_TOPIC_ARN", ""))
	v.SetDefault("aws.sqs_queue_url", getEnv("SQS_QUEUE_URL", ""))
	v.SetDefault("aws.sqs_workers", 4)

	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("telemetry.otlp_endpoint", getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""))

	v.SetDefault("saga.storage", StorageMemory)
	v.SetDefault("saga.step_timeout", "30s")
	v.SetDefault("saga.auto_compensate", false)
	v.SetDefault("saga.driver_interval", "0s")
	v.SetDefault("saga.driver_concurrency", 4)
	v.SetDefault("saga.lock", LockMemory)
	v.SetDefault("saga.lock_ttl", "30s")
	v.SetDefault("saga.lock_wait", "0s")

	v.SetDefault("clients.stock", map[string]int{})
	v.SetDefault("clients.payment_limit", 0)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Validate rejects unknown storage and lock backends
func (c *Config) Validate() error {
	switch c.Saga.Storage {
	case StoragePostgres, StorageMemory:
	default:
		return fmt.Errorf("unknown saga storage %q", c.Saga.Storage)
	}

	switch c.Saga.Lock {
	case LockNone, LockMemory:
	case LockRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis lock requires redis.addr")
		}
	default:
		return fmt.Errorf("unknown saga lock %q", c.Saga.Lock)
	}

	if c.Saga.StepTimeout < 0 || c.Saga.DriverInterval < 0 || c.Saga.LockTTL < 0 || c.Saga.LockWait < 0 {
		return fmt.Errorf("saga durations must not be negative")
	}

	return nil
}

// GetDatabaseURL constructs database URL from config
func (c *Config) GetDatabaseURL() string {
	if c.Database.URL != "" {
		return c.Database.URL
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.SSLMode,
	)
}
