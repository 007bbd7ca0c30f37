package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/apex/log"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the cleanup verification service
type Config struct {
	// Database configuration
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Server configuration
	Port string

	// Identity
	AuthServiceURL string
	JWTSecret      string

	// Geo matching
	GeoCeilingMeters        float64
	AccuracyThresholdMeters float64
	GridDecimals            int

	// Session timing, server clock only
	SessionMinDuration time.Duration
	SessionMaxDuration time.Duration

	// Evidence similarity collaborator
	SimilarityURL               string
	SimilarityThreshold         float64
	SimilarityTimeout           time.Duration
	SimilarityUnavailablePolicy string

	// Points
	BasePoints              int
	RepeatCleanPoints       int
	DirtyConfirmationPoints int

	// Dirty consensus
	ConsensusThreshold int
	ConsensusWindow    time.Duration

	// RabbitMQ configuration
	RabbitMQHost             string
	RabbitMQPort             string
	RabbitMQUser             string
	RabbitMQPassword         string
	RabbitMQExchange         string
	RabbitMQFanoutRoutingKey string

	// Per-user submission rate limit
	SubmissionsPerMinute int
	SubmissionsBurst     int

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables. A .env file in the
// working directory is read first when present.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Debugf("No .env file loaded: %v", err)
	}

	return &Config{
		// Database defaults
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "server"),
		DBPassword: getEnv("DB_PASSWORD", "secret_app"),
		DBName:     getEnv("DB_NAME", "cleanproof"),

		// Server defaults
		Port: getEnv("PORT", "8080"),

		// Identity defaults
		AuthServiceURL: getEnv("AUTH_SERVICE_URL", "http://localhost:8081"),
		JWTSecret:      getEnv("JWT_SECRET", ""),

		// Geo defaults
		GeoCeilingMeters:        getFloatEnv("GEO_CEILING_METERS", 500.0),
		AccuracyThresholdMeters: getFloatEnv("ACCURACY_THRESHOLD_METERS", 50.0),
		GridDecimals:            getIntEnv("GRID_DECIMALS", 4),

		// Session defaults
		SessionMinDuration: getDurationEnv("SESSION_MIN_DURATION", 0),
		SessionMaxDuration: getDurationEnv("SESSION_MAX_DURATION", 120*time.Minute),

		// Similarity defaults
		SimilarityURL:               getEnv("SIMILARITY_SERVICE_URL", ""),
		SimilarityThreshold:         getFloatEnv("SIMILARITY_THRESHOLD", 0.7),
		SimilarityTimeout:           getDurationEnv("SIMILARITY_TIMEOUT", 10*time.Second),
		SimilarityUnavailablePolicy: getEnv("SIMILARITY_UNAVAILABLE_POLICY", "pass"),

		// Points defaults
		BasePoints:              getIntEnv("BASE_POINTS", 10),
		RepeatCleanPoints:       getIntEnv("REPEAT_CLEAN_POINTS", 15),
		DirtyConfirmationPoints: getIntEnv("DIRTY_CONFIRMATION_POINTS", 3),

		// Consensus defaults
		ConsensusThreshold: getIntEnv("CONSENSUS_THRESHOLD", 3),
		ConsensusWindow:    getDurationEnv("CONSENSUS_WINDOW", 24*time.Hour),

		// RabbitMQ defaults
		RabbitMQHost:             getEnv("AMQP_HOST", "localhost"),
		RabbitMQPort:             getEnv("AMQP_PORT", "5672"),
		RabbitMQUser:             getEnv("AMQP_USER", "guest"),
		RabbitMQPassword:         getEnv("AMQP_PASSWORD", "guest"),
		RabbitMQExchange:         getEnv("RABBITMQ_EXCHANGE", "cleanproof"),
		RabbitMQFanoutRoutingKey: getEnv("RABBITMQ_FANOUT_ROUTING_KEY", "notification.fanout"),

		// Rate limit defaults
		SubmissionsPerMinute: getIntEnv("SUBMISSIONS_PER_MINUTE", 30),
		SubmissionsBurst:     getIntEnv("SUBMISSIONS_BURST", 5),

		// Logging defaults
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// GetAMQPURL constructs the AMQP URL from individual components
func (c *Config) GetAMQPURL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%s", c.RabbitMQUser, c.RabbitMQPassword, c.RabbitMQHost, c.RabbitMQPort)
}

// GetDSN constructs the MySQL data source name
func (c *Config) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true&loc=UTC&multiStatements=true",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDurationEnv gets a duration environment variable or returns a default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getIntEnv gets an integer environment variable or returns a default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getFloatEnv gets a float environment variable or returns a default value
func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
