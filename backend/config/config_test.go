package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, 500.0, cfg.GeoCeilingMeters)
	assert.Equal(t, 50.0, cfg.AccuracyThresholdMeters)
	assert.Equal(t, time.Duration(0), cfg.SessionMinDuration)
	assert.Equal(t, 120*time.Minute, cfg.SessionMaxDuration)
	assert.Equal(t, 10, cfg.BasePoints)
	assert.Equal(t, 15, cfg.RepeatCleanPoints)
	assert.Equal(t, 3, cfg.DirtyConfirmationPoints)
	assert.Equal(t, 3, cfg.ConsensusThreshold)
	assert.Equal(t, 24*time.Hour, cfg.ConsensusWindow)
	assert.Equal(t, "pass", cfg.SimilarityUnavailablePolicy)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("GEO_CEILING_METERS", "250.5")
	t.Setenv("SESSION_MAX_DURATION", "45m")
	t.Setenv("CONSENSUS_THRESHOLD", "5")
	t.Setenv("CONSENSUS_WINDOW", "not-a-duration")

	cfg := Load()

	assert.Equal(t, 250.5, cfg.GeoCeilingMeters)
	assert.Equal(t, 45*time.Minute, cfg.SessionMaxDuration)
	assert.Equal(t, 5, cfg.ConsensusThreshold)
	// Unparseable values fall back to the default.
	assert.Equal(t, 24*time.Hour, cfg.ConsensusWindow)
}

func TestConnectionStrings(t *testing.T) {
	cfg := &Config{
		DBHost: "db", DBPort: "3306", DBUser: "u", DBPassword: "p", DBName: "n",
		RabbitMQHost: "mq", RabbitMQPort: "5672", RabbitMQUser: "guest", RabbitMQPassword: "guest",
	}

	assert.Equal(t, "u:p@tcp(db:3306)/n?parseTime=true&loc=UTC&multiStatements=true", cfg.GetDSN())
	assert.Equal(t, "amqp://guest:guest@mq:5672", cfg.GetAMQPURL())
}
