package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultValues(t *testing.T) {
	// 清除环境变量
	os.Clearenv()

	cfg, err := Load()
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "qp", cfg.Database.Database)
	assert.Equal(t, "disable", cfg.Database.SSLMode)

	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 0, cfg.Redis.DB)

	assert.False(t, cfg.MQTT.Enabled)
	assert.Equal(t, byte(1), cfg.MQTT.QoS)

	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.Equal(t, "spc:dna:", cfg.SPC.DnaKeyPrefix)
	assert.Equal(t, "spc:samples", cfg.SPC.SampleStream)
	assert.Equal(t, "spc/alerts", cfg.SPC.AlertTopic)
	assert.Equal(t, 60, cfg.SPC.DuePollInterval)
	assert.Equal(t, 50, cfg.SPC.SeriesLimit)

	assert.Equal(t, ":8090", cfg.HTTP.Addr)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	os.Clearenv()
	t.Setenv("DB_HOST", "db.plant.local")
	t.Setenv("DB_PORT", "5433")
	t.Setenv("REDIS_ADDR", "redis:6380")
	t.Setenv("STORE_BACKEND", "postgres")
	t.Setenv("MQTT_ENABLED", "true")
	t.Setenv("SPC_DUE_POLL_INTERVAL", "15")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "db.plant.local", cfg.Database.Host)
	assert.Equal(t, 5433, cfg.Database.Port)
	assert.Equal(t, "redis:6380", cfg.Redis.Addr)
	assert.Equal(t, BackendPostgres, cfg.Store.Backend)
	assert.True(t, cfg.MQTT.Enabled)
	assert.Equal(t, 15, cfg.SPC.DuePollInterval)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_ConfigFileThenEnv(t *testing.T) {
	os.Clearenv()
	dir := t.TempDir()
	path := filepath.Join(dir, "spc.yaml")
	content := `
store:
  backend: redis
spc:
  dna_key_prefix: "plant1:dna:"
  series_limit: 200
log:
  format: console
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("SPC_CONFIG_FILE", path)
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, BackendRedis, cfg.Store.Backend)
	assert.Equal(t, "plant1:dna:", cfg.SPC.DnaKeyPrefix)
	assert.Equal(t, 200, cfg.SPC.SeriesLimit)
	// 文件中未出现的字段保留默认值
	assert.Equal(t, 60, cfg.SPC.DuePollInterval)
	// 环境变量覆盖文件
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_InvalidBackend(t *testing.T) {
	os.Clearenv()
	t.Setenv("STORE_BACKEND", "mongo")

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown store backend")
}

func TestGetDSN(t *testing.T) {
	cfg := DatabaseConfig{Host: "h", Port: 1, User: "u", Password: "p", Database: "d", SSLMode: "disable"}
	assert.Equal(t, "host=h port=1 user=u password=p dbname=d sslmode=disable", cfg.GetDSN())
}

func TestGetEnv(t *testing.T) {
	os.Clearenv()
	assert.Equal(t, "default-value", getEnv("TEST_KEY", "default-value"))

	t.Setenv("TEST_KEY", "env-value")
	assert.Equal(t, "env-value", getEnv("TEST_KEY", "default-value"))

	t.Setenv("TEST_INT", "not-a-number")
	assert.Equal(t, 7, getEnvInt("TEST_INT", 7))
}
