package config

import (
	"errors"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	ServerPort string `mapstructure:"SERVER_PORT"`
	Env        string `mapstructure:"ENV"`
	LogLevel   string `mapstructure:"LOG_LEVEL"`

	// memory | postgres | sqlite | mongo | rest
	StoreDriver  string        `mapstructure:"STORE_DRIVER"`
	StoreTimeout time.Duration `mapstructure:"STORE_TIMEOUT"`

	DBDriver   string `mapstructure:"DB_DRIVER"` // pgx | postgres
	DBHost     string `mapstructure:"DB_HOST"`
	DBPort     int    `mapstructure:"DB_PORT"`
	DBUser     string `mapstructure:"DB_USER"`
	DBPassword string `mapstructure:"DB_PASSWORD"`
	DBName     string `mapstructure:"DB_NAME"`
	DBSslMode  string `mapstructure:"DB_SSLMODE"`
	SQLitePath string `mapstructure:"SQLITE_PATH"`

	MongoURI      string `mapstructure:"MONGO_URI"`
	MongoDatabase string `mapstructure:"MONGO_DATABASE"`

	RestStoreURL string `mapstructure:"REST_STORE_URL"`

	// local | redis
	LockDriver    string        `mapstructure:"LOCK_DRIVER"`
	LockTTL       time.Duration `mapstructure:"LOCK_TTL"`
	RedisAddr     string        `mapstructure:"REDIS_ADDR"`
	RedisPassword string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int           `mapstructure:"REDIS_DB"`

	// When true, check-out is refused until the booking is checked in.
	StrictCheckout bool `mapstructure:"STRICT_CHECKOUT"`

	JWTSecret       string        `mapstructure:"JWT_SECRET"`
	JWTTokenTTL     time.Duration `mapstructure:"JWT_TOKEN_TTL"`
	RateLimitPerMin int           `mapstructure:"RATE_LIMIT_PER_MIN"`

	AWSRegion              string `mapstructure:"AWS_REGION"`
	SQSReservationQueueURL string `mapstructure:"SQS_RESERVATION_QUEUE_URL"`
	ArchiveS3Bucket        string `mapstructure:"ARCHIVE_S3_BUCKET"`
	ArchiveS3Endpoint      string `mapstructure:"ARCHIVE_S3_ENDPOINT"`
	ArchiveS3PathStyle     bool   `mapstructure:"ARCHIVE_S3_PATH_STYLE"`
}

var defaults = map[string]any{
	"SERVER_PORT":               "8080",
	"ENV":                       "development",
	"LOG_LEVEL":                 "info",
	"STORE_DRIVER":              "memory",
	"STORE_TIMEOUT":             "5s",
	"DB_DRIVER":                 "pgx",
	"DB_HOST":                   "localhost",
	"DB_PORT":                   5432,
	"DB_USER":                   "parking",
	"DB_PASSWORD":               "parking",
	"DB_NAME":                   "parking_network",
	"DB_SSLMODE":                "disable",
	"SQLITE_PATH":               "data/parking_network.db",
	"MONGO_URI":                 "mongodb://localhost:27017",
	"MONGO_DATABASE":            "parking_network",
	"REST_STORE_URL":            "http://localhost:3000",
	"LOCK_DRIVER":               "local",
	"LOCK_TTL":                  "10s",
	"REDIS_ADDR":                "localhost:6379",
	"REDIS_PASSWORD":            "",
	"REDIS_DB":                  0,
	"STRICT_CHECKOUT":           true,
	"JWT_SECRET":                "change-me-parking-network-secret",
	"JWT_TOKEN_TTL":             "24h",
	"RATE_LIMIT_PER_MIN":        600,
	"AWS_REGION":                "ap-south-1",
	"SQS_RESERVATION_QUEUE_URL": "",
	"ARCHIVE_S3_BUCKET":         "",
	"ARCHIVE_S3_ENDPOINT":       "",
	"ARCHIVE_S3_PATH_STYLE":     false,
}

// Load reads .env (if present), an optional config.yaml, and the process
// environment, in increasing order of precedence.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("config: could not load .env file: %v", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	cfg.LockDriver = strings.ToLower(strings.TrimSpace(cfg.LockDriver))
	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
