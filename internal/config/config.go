package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	SessionsDir string
	OutputPath  string
	SQLitePath  string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	BatchSize int
	CacheSize int

	ClubAliasesFile string

	KafkaEnabled   bool
	KafkaBrokers   []string
	KafkaSinkTopic string

	// FSX Live scraper configuration.
	FSXBaseURL      string
	FSXUsername     string
	FSXPassword     string
	ScraperHeadless bool
	ScraperPace     time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	cacheSize, err := parsePositiveInt("CACHE_SIZE", 8)
	if err != nil {
		return nil, err
	}

	pace, err := time.ParseDuration(sharedcfg.EnvOrDefault("SCRAPER_PACE", "2s"))
	if err != nil || pace < 0 {
		return nil, errors.New("invalid SCRAPER_PACE")
	}

	kafkaEnabled, err := parseBool("KAFKA_ENABLED", false)
	if err != nil {
		return nil, err
	}
	headless, err := parseBool("SCRAPER_HEADLESS", true)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		SessionsDir:     sharedcfg.EnvOrDefault("SESSIONS_DIR", "./sessions"),
		OutputPath:      sharedcfg.EnvOrDefault("OUTPUT_PATH", "cleaned_shots.csv"),
		SQLitePath:      os.Getenv("SQLITE_PATH"),
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		BatchSize:       batchSize,
		CacheSize:       cacheSize,
		ClubAliasesFile: os.Getenv("CLUB_ALIASES_FILE"),

		KafkaEnabled:   kafkaEnabled,
		KafkaBrokers:   sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSinkTopic: sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "normalized-shots"),

		FSXBaseURL:      strings.TrimRight(sharedcfg.EnvOrDefault("FSX_BASE_URL", "https://fsxlive.foresightsports.com"), "/"),
		FSXUsername:     os.Getenv("FSX_USERNAME"),
		FSXPassword:     os.Getenv("FSX_PASSWORD"),
		ScraperHeadless: headless,
		ScraperPace:     pace,
	}

	if cfg.SessionsDir == "" {
		return nil, errors.New("SESSIONS_DIR is required")
	}
	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
		}
		if cfg.KafkaSinkTopic == "" {
			return nil, errors.New("KAFKA_SINK_TOPIC is required when KAFKA_ENABLED is true")
		}
	}

	return cfg, nil
}

// ScraperCredentials reports an error unless both FSX credentials are set.
// Only the scraper needs them, so Load does not enforce this.
func (c *Config) ScraperCredentials() (username, password string, err error) {
	if c.FSXUsername == "" || c.FSXPassword == "" {
		return "", "", errors.New("FSX_USERNAME and FSX_PASSWORD are required for scraping")
	}
	return c.FSXUsername, c.FSXPassword, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return n, nil
}

func parseBool(key string, def bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %q", key, s)
	}
	return v, nil
}
