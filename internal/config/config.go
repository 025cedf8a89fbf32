package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	AEMETAPIKey      string
	AEMETTimeout     time.Duration
	AEMETMaxRetries  int
	MunicipalityCode string

	DataDir      string
	RawCSVName   string
	CleanCSVName string

	FetchInterval time.Duration
	RetryInterval time.Duration

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Optional Kafka publishing of cleaned observations.
	KafkaEnabled   bool
	KafkaBrokers   []string
	KafkaSinkTopic string
}

// Load reads configuration from the environment, applying defaults where
// unset. A .env file in the working directory is honored when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	fetchInterval, err := parseDuration("FETCH_INTERVAL", "6h")
	if err != nil {
		return nil, err
	}
	retryInterval, err := parseDuration("RETRY_INTERVAL", "10m")
	if err != nil {
		return nil, err
	}
	aemetTimeout, err := parseDuration("AEMET_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	maxRetries, err := parseInt("AEMET_MAX_RETRIES", 3)
	if err != nil {
		return nil, err
	}

	kafkaEnabled := os.Getenv("KAFKA_ENABLED") == "true"

	cfg := &Config{
		AEMETAPIKey:      os.Getenv("AEMET_API_KEY"),
		AEMETTimeout:     aemetTimeout,
		AEMETMaxRetries:  maxRetries,
		MunicipalityCode: envOrDefault("MUNICIPALITY_CODE", "28079"),

		DataDir:      envOrDefault("DATA_DIR", "data"),
		RawCSVName:   envOrDefault("RAW_CSV_NAME", "madrid_weather_forecast.csv"),
		CleanCSVName: envOrDefault("CLEAN_CSV_NAME", "madrid_weather_clean.csv"),

		FetchInterval: fetchInterval,
		RetryInterval: retryInterval,

		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		KafkaEnabled:   kafkaEnabled,
		KafkaBrokers:   parseBrokers(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSinkTopic: envOrDefault("KAFKA_SINK_TOPIC", "cleaned-weather-observations"),
	}

	if cfg.AEMETAPIKey == "" {
		return nil, errors.New("AEMET_API_KEY is required")
	}
	if cfg.MunicipalityCode == "" {
		return nil, errors.New("MUNICIPALITY_CODE must not be empty")
	}
	if cfg.AEMETMaxRetries < 0 {
		return nil, errors.New("AEMET_MAX_RETRIES must not be negative")
	}
	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
		}
		if cfg.KafkaSinkTopic == "" {
			return nil, errors.New("KAFKA_ENABLED is true but KAFKA_SINK_TOPIC is empty")
		}
	}

	return cfg, nil
}

// RawCSVPath is the on-disk location of the raw observation dataset.
func (c *Config) RawCSVPath() string { return filepath.Join(c.DataDir, c.RawCSVName) }

// CleanCSVPath is the on-disk location of the cleaned dataset.
func (c *Config) CleanCSVPath() string { return filepath.Join(c.DataDir, c.CleanCSVName) }

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDuration(key, def string) (time.Duration, error) {
	s := envOrDefault(key, def)
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return d, nil
}

func parseInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return n, nil
}

func parseBrokers(s string) []string {
	var brokers []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
