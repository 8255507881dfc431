package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "tradielink*.json")
	require.NoError(t, err)
	_, err = f.WriteString(`{
		"data_source": {"dns": "postgres://localhost:5432/tradielink?sslmode=disable"},
		"redis": {"dns": "localhost:6379"}
	}`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.NoError(t, InitConfig(f.Name()))

	cnf, err := Fetch()
	require.NoError(t, err)
	assert.Equal(t, "Tradielink Server", cnf.ProjectName)
	assert.Equal(t, DEFAULT_PORT, cnf.Server.Port)
	assert.Equal(t, "AUD", cnf.Currency)
	assert.Equal(t, "cardgate", cnf.Providers.Default)
	assert.Equal(t, 30, cnf.Providers.CardGate.TimeoutSec)
	assert.Equal(t, "new:notification", cnf.Queue.NotificationQueue)
	assert.Equal(t, "new:protection-expiry", cnf.Queue.ProtectionExpiryQueue)
}

func TestLoadConfigMissingDataSource(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "tradielink*.json")
	require.NoError(t, err)
	_, err = f.WriteString(`{"redis": {"dns": "localhost:6379"}}`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	assert.Error(t, InitConfig(f.Name()))
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("TRADIELINK_SERVER_PORT", "8099")
	t.Setenv("TRADIELINK_DATA_SOURCE_DNS", "postgres://db:5432/app")
	t.Setenv("TRADIELINK_REDIS_DNS", "redis:6379")
	t.Setenv("TRADIELINK_CRON_TOKEN", "sweep-secret")

	require.NoError(t, InitConfig("does-not-exist.json"))

	cnf, err := Fetch()
	require.NoError(t, err)
	assert.Equal(t, "8099", cnf.Server.Port)
	assert.Equal(t, "sweep-secret", cnf.Cron.Token)
}
