package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configEnvKeys = []string{
	"CLUBLEDGER_APP_NAME",
	"CLUBLEDGER_APP_ENV",
	"CLUBLEDGER_APP_PORT",
	"CLUBLEDGER_DATABASE_HOST",
	"CLUBLEDGER_DATABASE_PORT",
	"CLUBLEDGER_DATABASE_PASSWORD",
	"CLUBLEDGER_DATABASE_SSLMODE",
	"CLUBLEDGER_DATABASE_MAX_OPEN_CONNS",
	"CLUBLEDGER_DATABASE_MAX_IDLE_CONNS",
	"CLUBLEDGER_JWT_SECRET",
	"CLUBLEDGER_WEBHOOK_SECRETS_STRIPE",
	"CLUBLEDGER_ARCHIVE_ENABLED",
	"CLUBLEDGER_ARCHIVE_BUCKET",
	"CLUBLEDGER_TELEMETRY_SAMPLING_RATIO",
	"CLUBLEDGER_TELEMETRY_PROFILING_ENABLED",
	"CLUBLEDGER_TELEMETRY_PROFILING_SERVER_ADDRESS",
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, k := range configEnvKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoad(t *testing.T) {
	t.Run("loads default values when env vars not set", func(t *testing.T) {
		clearConfigEnv(t)

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "clubledger", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "clubledger", cfg.Database.DBName)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
		assert.Equal(t, 5, cfg.Database.MaxIdleConns)
		assert.Equal(t, 72*time.Hour, cfg.Redis.KeyTTL)
		assert.Equal(t, "INV", cfg.Billing.InvoicePrefix)
		assert.Equal(t, int64(256<<10), cfg.Webhook.MaxBodySize)
		assert.Empty(t, cfg.Webhook.SecretFor("stripe"))
	})

	t.Run("loads values from environment variables with CLUBLEDGER prefix", func(t *testing.T) {
		clearConfigEnv(t)
		t.Setenv("CLUBLEDGER_APP_NAME", "test-app")
		t.Setenv("CLUBLEDGER_APP_PORT", "9000")
		t.Setenv("CLUBLEDGER_DATABASE_HOST", "testdb.local")
		t.Setenv("CLUBLEDGER_DATABASE_PORT", "5433")
		t.Setenv("CLUBLEDGER_DATABASE_MAX_OPEN_CONNS", "50")
		t.Setenv("CLUBLEDGER_DATABASE_MAX_IDLE_CONNS", "10")
		t.Setenv("CLUBLEDGER_WEBHOOK_SECRETS_STRIPE", "whsec_test")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "test-app", cfg.App.Name)
		assert.Equal(t, "9000", cfg.App.Port)
		assert.Equal(t, "testdb.local", cfg.Database.Host)
		assert.Equal(t, 5433, cfg.Database.Port)
		assert.Equal(t, 50, cfg.Database.MaxOpenConns)
		assert.Equal(t, 10, cfg.Database.MaxIdleConns)
		assert.Equal(t, "whsec_test", cfg.Webhook.SecretFor("Stripe"))
	})

	t.Run("rejects idle conns above open conns", func(t *testing.T) {
		clearConfigEnv(t)
		t.Setenv("CLUBLEDGER_DATABASE_MAX_OPEN_CONNS", "5")
		t.Setenv("CLUBLEDGER_DATABASE_MAX_IDLE_CONNS", "10")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("archive requires a bucket", func(t *testing.T) {
		clearConfigEnv(t)
		t.Setenv("CLUBLEDGER_ARCHIVE_ENABLED", "true")

		_, err := Load()
		assert.ErrorContains(t, err, "archive.bucket")
	})

	t.Run("profiling requires a server address", func(t *testing.T) {
		clearConfigEnv(t)
		t.Setenv("CLUBLEDGER_TELEMETRY_PROFILING_ENABLED", "true")

		_, err := Load()
		assert.ErrorContains(t, err, "profiling_server_address")

		t.Setenv("CLUBLEDGER_TELEMETRY_PROFILING_SERVER_ADDRESS", "http://pyroscope:4040")
		cfg, err := Load()
		require.NoError(t, err)
		assert.True(t, cfg.Telemetry.ProfilingEnabled)
	})

	t.Run("sampling ratio out of range", func(t *testing.T) {
		clearConfigEnv(t)
		t.Setenv("CLUBLEDGER_TELEMETRY_SAMPLING_RATIO", "1.5")

		_, err := Load()
		assert.Error(t, err)
	})
}

func TestValidate_Production(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{App: AppConfig{Env: "production"}}
		applyDefaults(cfg)
		cfg.JWT.Secret = "0123456789abcdef0123456789abcdef"
		cfg.Database.Password = "secret"
		cfg.Database.SSLMode = "require"
		cfg.Webhook.Secrets = map[string]string{"stripe": "whsec_x"}
		return cfg
	}

	require.NoError(t, valid().validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing jwt secret", func(c *Config) { c.JWT.Secret = "" }, "jwt.secret is required"},
		{"short jwt secret", func(c *Config) { c.JWT.Secret = "short" }, "at least 32"},
		{"missing db password", func(c *Config) { c.Database.Password = "" }, "database.password"},
		{"sslmode disabled", func(c *Config) { c.Database.SSLMode = "disable" }, "sslmode"},
		{"no webhook secrets", func(c *Config) { c.Webhook.Secrets = map[string]string{} }, "webhook.secrets"},
		{"full sql logging", func(c *Config) { c.Telemetry.DBLogFullSQL = true }, "db_log_full_sql"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.validate(), tt.want)
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "app", Password: "p@ss/word", DBName: "ledger", SSLMode: "disable"}
	assert.Equal(t, "postgres://app:p%40ss%2Fword@db:5432/ledger?sslmode=disable", d.DSN())
}
