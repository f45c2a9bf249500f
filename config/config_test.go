package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaultsWithoutFile(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "48h", cfg.Approval.AutoApprovalWindow)
	assert.Equal(t, "strict", cfg.Status.TransitionPolicy)
	assert.Equal(t, "30s", cfg.Tracking.ReportInterval)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte("server:\n  port: \"9000\"\nmongo:\n  dbName: fromfile\napproval:\n  autoApprovalWindow: 24h\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o600))

	t.Setenv("MONGO_DBNAME", "fromenv")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "fromenv", cfg.Mongo.DBName)
	assert.Equal(t, "24h", cfg.Approval.AutoApprovalWindow)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestDuration(t *testing.T) {
	d, err := Duration("tracking.onlineWindow", "2m")
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, d)

	_, err = Duration("tracking.onlineWindow", "two minutes")
	assert.ErrorContains(t, err, "tracking.onlineWindow")
}
