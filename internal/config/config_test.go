package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, BackendMySQL, cfg.Store)
	assert.Equal(t, time.Hour, cfg.Jobs.PriceRecalcInterval)
	assert.Equal(t, 24*time.Hour, cfg.Jobs.UserCleanupInterval)
	assert.Equal(t, 600*time.Second, cfg.MetalPrice.CacheTTL)
	assert.Equal(t, "INR", cfg.MetalPrice.BaseCurrency)
	assert.Equal(t, "ops-alerts", cfg.Alerts.KafkaTopic)
	assert.Empty(t, cfg.Payment.CallbackToken, "payment confirmations stay disabled until a token is set")
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store: mongo
mongo:
  database: shop
redis:
  addr: redis:6379
jobs:
  price_recalc_interval: 30m
alerts:
  kafka_brokers: [k1:9092]
payment:
  callback_token: from-file
log:
  level: debug
`), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("REDIS_ADDR", "override:6379")
	t.Setenv("ALERT_KAFKA_BROKERS", "a:9092, b:9092")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, BackendMongo, cfg.Store)
	assert.Equal(t, "shop", cfg.Mongo.Database)
	assert.Equal(t, "mongodb://localhost:27017/?replicaSet=rs0", cfg.Mongo.URI, "unset keys keep defaults")
	assert.Equal(t, 30*time.Minute, cfg.Jobs.PriceRecalcInterval)
	assert.Equal(t, "override:6379", cfg.Redis.Addr)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Alerts.KafkaBrokers)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "from-file", cfg.Payment.CallbackToken)

	t.Setenv("PAYMENT_CALLBACK_TOKEN", "from-env")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Payment.CallbackToken)
}

func TestLoad_InvalidEnv(t *testing.T) {
	t.Setenv("PRICE_RECALC_INTERVAL", "hourly")
	_, err := Load()
	assert.ErrorContains(t, err, "PRICE_RECALC_INTERVAL")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown backend", func(c *Config) { c.Store = "sqlite" }, `unknown store backend "sqlite"`},
		{"zero interval", func(c *Config) { c.Jobs.UserCleanupInterval = 0 }, "user cleanup interval"},
		{"email without recipients", func(c *Config) { c.Alerts.SendGridAPIKey = "SG.x" }, "alert email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}

func TestLogConfig_NewLogger(t *testing.T) {
	logger, err := LogConfig{Level: "warn"}.NewLogger()
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))

	_, err = LogConfig{Level: "loud"}.NewLogger()
	assert.Error(t, err)
}
