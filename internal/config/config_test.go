package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, int32(10), cfg.Store.MaxConns)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Batch.MaxConcurrentLeads)
	assert.Equal(t, 0, cfg.Batch.TimeoutSecs)
	assert.Equal(t, "US", cfg.Phone.DefaultRegion)
	assert.Equal(t, EngineLocal, cfg.Engine.Mode)
	assert.Equal(t, "localhost:7233", cfg.Temporal.HostPort)
	assert.Equal(t, "default", cfg.Temporal.Namespace)
	assert.Equal(t, "phone-enrichment", cfg.Temporal.TaskQueue)
	assert.Equal(t, 120, cfg.Idempotency.LockTTLSecs)
	assert.Equal(t, 250, cfg.Idempotency.PollIntervalMS)
	assert.Equal(t, "https://api.genesy.ai/api/tmp/orionConnect", cfg.Providers.Orion.BaseURL)
	assert.Equal(t, "https://api.genesy.ai/api/tmp/numbusLookup", cfg.Providers.Nimbus.BaseURL)
	assert.Equal(t, "https://api.genesy.ai/api/tmp/astraDialer", cfg.Providers.Astra.BaseURL)
	assert.Empty(t, cfg.Waterfall.ConfigPath)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
  database_url: leads.db
log:
  level: debug
  format: console
server:
  port: 9090
batch:
  max_concurrent_leads: 10
  timeout_secs: 90
providers:
  orion:
    auth_key: orion-secret
engine:
  mode: temporal
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "leads.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 10, cfg.Batch.MaxConcurrentLeads)
	assert.Equal(t, 90*time.Second, cfg.Batch.Timeout())
	assert.Equal(t, "orion-secret", cfg.Providers.Orion.AuthKey)
	assert.Equal(t, EngineTemporal, cfg.Engine.Mode)
	// Defaults still apply for unset values
	assert.Equal(t, "US", cfg.Phone.DefaultRegion)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("ENRICH_STORE_DRIVER", "postgres")
	t.Setenv("ENRICH_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvProviderKeys(t *testing.T) {
	chdirTemp(t)

	t.Setenv("ENRICH_PROVIDERS_NIMBUS_API_KEY", "nimbus-key")
	t.Setenv("ENRICH_PROVIDERS_ASTRA_API_KEY", "astra-key")
	t.Setenv("ENRICH_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "nimbus-key", cfg.Providers.Nimbus.APIKey)
	assert.Equal(t, "astra-key", cfg.Providers.Astra.APIKey)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestLoadMalformedFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [unclosed"), 0644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config that passes every mode.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "postgres"
	cfg.Store.DatabaseURL = "postgres://localhost/leads"
	cfg.Providers.Orion.AuthKey = "o"
	cfg.Providers.Nimbus.APIKey = "n"
	cfg.Providers.Astra.APIKey = "a"
	cfg.Batch.MaxConcurrentLeads = 5
	cfg.Engine.Mode = EngineLocal
	cfg.Temporal.HostPort = "localhost:7233"
	cfg.Server.Port = 8080
	return cfg
}

func TestValidate_AllModesPass(t *testing.T) {
	cfg := validDefaults()
	for _, mode := range []string{"enrich", "serve", "worker", "migrate"} {
		assert.NoError(t, cfg.Validate(mode), mode)
	}
}

func TestValidateEnrich_MissingFields(t *testing.T) {
	cfg := &Config{}
	cfg.Store.Driver = "postgres"
	cfg.Engine.Mode = EngineLocal
	cfg.Batch.MaxConcurrentLeads = 5

	err := cfg.Validate("enrich")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")
	assert.Contains(t, err.Error(), "providers.orion.auth_key is required")
	assert.Contains(t, err.Error(), "providers.nimbus.api_key is required")
	assert.Contains(t, err.Error(), "providers.astra.api_key is required")
}

func TestValidate_SQLiteNeedsNoURL(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = ""

	assert.NoError(t, cfg.Validate("migrate"))
}

func TestValidate_UnknownDriver(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "mysql"

	err := cfg.Validate("migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver must be postgres or sqlite")
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidate_EngineMode(t *testing.T) {
	cfg := validDefaults()
	cfg.Engine.Mode = "cluster"

	err := cfg.Validate("enrich")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine.mode must be local or temporal")

	cfg.Engine.Mode = EngineTemporal
	cfg.Temporal.HostPort = ""
	err = cfg.Validate("enrich")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "temporal.host_port is required")
}

func TestValidate_ConcurrencyBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Batch.MaxConcurrentLeads = 0
	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_concurrent_leads must be between 1 and 100")

	cfg.Batch.MaxConcurrentLeads = 101
	assert.Error(t, cfg.Validate("serve"))

	cfg.Batch.MaxConcurrentLeads = 100
	assert.NoError(t, cfg.Validate("serve"))
}

func TestValidate_UnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestBatchTimeout(t *testing.T) {
	assert.Zero(t, BatchConfig{}.Timeout())
	assert.Zero(t, BatchConfig{TimeoutSecs: -5}.Timeout())
	assert.Equal(t, 30*time.Second, BatchConfig{TimeoutSecs: 30}.Timeout())
}
