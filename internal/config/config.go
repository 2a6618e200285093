package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPPort string

	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string

	KafkaBrokers         []string
	KafkaAssignmentTopic string
	KafkaAuditTopic      string

	SeedDriverUsername string
	SeedDriverPassword string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
}

// Load reads the environment (optionally seeded from a .env file found near
// the working directory) and returns the assembled config. Unlike the old
// handlers, nothing here is loaded from package init; the caller owns the
// lifecycle.
func Load() (*Config, error) {
	loadDotenv()

	cfg := &Config{
		HTTPPort:             getEnv("HTTP_PORT", "9000"),
		DBHost:               getEnv("DB_HOST", "localhost"),
		DBUser:               os.Getenv("POSTGRES_USER"),
		DBPassword:           os.Getenv("POSTGRES_PASSWORD"),
		DBName:               os.Getenv("POSTGRES_DB"),
		KafkaAssignmentTopic: getEnv("KAFKA_ASSIGNMENT_TOPIC", "order-assignments"),
		KafkaAuditTopic:      getEnv("KAFKA_AUDIT_TOPIC", "dispatch-audit"),
		SeedDriverUsername:   os.Getenv("SEED_DRIVER_USERNAME"),
		SeedDriverPassword:   os.Getenv("SEED_DRIVER_PASSWORD"),
		OutboxPollInterval:   2 * time.Second,
		OutboxBatchSize:      20,
		OutboxMaxAttempts:    5,
	}

	port, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}
	cfg.DBPort = port

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}

	if cfg.DBUser == "" || cfg.DBName == "" {
		return nil, fmt.Errorf("POSTGRES_USER and POSTGRES_DB must be set")
	}

	return cfg, nil
}

// Dsn builds the postgres connection string consumed by pgxpool.
func (c *Config) Dsn() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName)
}

func loadDotenv() {
	wd, err := os.Getwd()
	if err != nil {
		return
	}

	possiblePaths := []string{
		filepath.Join(wd, ".env"),
		filepath.Join(wd, "..", ".env"),
		filepath.Join(wd, "..", "..", ".env"),
	}

	for _, envPath := range possiblePaths {
		if err := godotenv.Load(envPath); err == nil {
			log.Printf("Loaded environment variables from %s", envPath)
			return
		}
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
