package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("SUPABASE_URL", "https://farm.supabase.co/")
	t.Setenv("SUPABASE_ANON_KEY", "anon")
	t.Setenv("SUPABASE_JWT_SECRET", "secret")
}

func TestLoad_DefaultValues(t *testing.T) {
	setRequired(t)
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("APP_PORT", "")
	t.Setenv("REDIS_DB", "")

	cfg, err := Load("does-not-exist.env")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, DriverSupabase, cfg.Store.Driver)
	assert.Equal(t, "https://farm.supabase.co", cfg.Supabase.URL)
	assert.Equal(t, 0, cfg.Redis.DB)
	assert.Equal(t, "0 20 * * *", cfg.Reporting.CronSchedule)
	assert.Equal(t, "0 7 * * *", cfg.Reporting.AlertSchedule)
	assert.Equal(t, "v20.0", cfg.WhatsApp.APIVersion)
}

func TestLoad_DriverRequirements(t *testing.T) {
	setRequired(t)

	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "")
	_, err := Load("does-not-exist.env")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")

	t.Setenv("STORE_DRIVER", "MongoDB")
	t.Setenv("MONGODB_URI", "mongodb://localhost:27017")
	cfg, err := Load("does-not-exist.env")
	require.NoError(t, err)
	assert.Equal(t, DriverMongoDB, cfg.Store.Driver)

	t.Setenv("STORE_DRIVER", "sqlite")
	_, err = Load("does-not-exist.env")
	require.Error(t, err)
}

func TestLoad_InvalidRedisDB(t *testing.T) {
	setRequired(t)
	t.Setenv("REDIS_DB", "one")

	_, err := Load("does-not-exist.env")
	require.Error(t, err)
}

func TestOptionalIntegrations(t *testing.T) {
	assert.False(t, WhatsAppConfig{AccessToken: "t"}.Enabled())
	assert.True(t, WhatsAppConfig{AccessToken: "t", PhoneNumberID: "p", ManagerID: "m"}.Enabled())
	assert.False(t, SheetsConfig{}.Enabled())
	assert.True(t, SheetsConfig{CredentialsPath: "c.json", SpreadsheetID: "s"}.Enabled())
}
