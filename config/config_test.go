package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "memory", cfg.Limiter.Store)
	assert.True(t, cfg.Admission.Enabled)
	assert.Equal(t, int64(300), cfg.Admission.DDoSCountThreshold)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stagepass.yaml")
	yaml := `
server:
  addr: ":9090"
limiter:
  store: redis
redis:
  addr: "redis.internal:6379"
admission:
  caps:
    global: 500
    ip: 50
    user: 100
    anonymous: 25
    endpoint: 200
gateway:
  dependencies:
    payments:
      base_url: "https://payments.internal"
      timeout: 2s
      failure_threshold: 3
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "redis", cfg.Limiter.Store)
	assert.Equal(t, "redis.internal:6379", cfg.Redis.Addr)
	assert.Equal(t, int64(500), cfg.Admission.Caps.Global)
	assert.Equal(t, int64(50), cfg.Admission.Caps.IP)

	payments, ok := cfg.Gateway.Dependencies["payments"]
	require.True(t, ok)
	assert.Equal(t, "https://payments.internal", payments.BaseURL)
	assert.Equal(t, 2*time.Second, payments.Timeout)
	assert.Equal(t, 3, payments.FailureThreshold)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("STAGEPASS_SERVER_ADDR", ":7070")
	t.Setenv("STAGEPASS_LIMITER_STORE", "memory")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Addr)
}

func TestLoad_InvalidStore(t *testing.T) {
	t.Setenv("STAGEPASS_LIMITER_STORE", "etcd")

	_, err := Load("")
	assert.Error(t, err)
}

func TestValidate_KafkaRequiresBrokers(t *testing.T) {
	cfg := Default()
	cfg.Audit.KafkaEnabled = true

	assert.Error(t, cfg.Validate())

	cfg.Audit.Kafka.Brokers = []string{"kafka-1:9092"}
	cfg.Audit.Kafka.Topic = "stagepass.audit"
	assert.NoError(t, cfg.Validate())
}
