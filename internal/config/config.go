package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Providers   ProvidersConfig   `yaml:"providers" mapstructure:"providers"`
	Phone       PhoneConfig       `yaml:"phone" mapstructure:"phone"`
	Waterfall   WaterfallConfig   `yaml:"waterfall" mapstructure:"waterfall"`
	Batch       BatchConfig       `yaml:"batch" mapstructure:"batch"`
	Engine      EngineConfig      `yaml:"engine" mapstructure:"engine"`
	Temporal    TemporalConfig    `yaml:"temporal" mapstructure:"temporal"`
	Idempotency IdempotencyConfig `yaml:"idempotency" mapstructure:"idempotency"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the lead database.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
}

// ProvidersConfig holds credentials for the phone lookup providers.
type ProvidersConfig struct {
	Orion  OrionConfig  `yaml:"orion" mapstructure:"orion"`
	Nimbus NimbusConfig `yaml:"nimbus" mapstructure:"nimbus"`
	Astra  AstraConfig  `yaml:"astra" mapstructure:"astra"`
}

// OrionConfig holds Orion Connect settings.
type OrionConfig struct {
	AuthKey string `yaml:"auth_key" mapstructure:"auth_key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// NimbusConfig holds Nimbus Lookup settings.
type NimbusConfig struct {
	APIKey  string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// AstraConfig holds Astra Dialer settings.
type AstraConfig struct {
	APIKey  string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// PhoneConfig configures number normalization.
type PhoneConfig struct {
	DefaultRegion string `yaml:"default_region" mapstructure:"default_region"`
}

// WaterfallConfig points at the provider cascade policy file.
type WaterfallConfig struct {
	ConfigPath string `yaml:"config_path" mapstructure:"config_path"`
}

// BatchConfig configures batch fan-out.
type BatchConfig struct {
	MaxConcurrentLeads int `yaml:"max_concurrent_leads" mapstructure:"max_concurrent_leads"`
	TimeoutSecs        int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// Timeout returns the batch deadline, zero when unset.
func (b BatchConfig) Timeout() time.Duration {
	if b.TimeoutSecs <= 0 {
		return 0
	}
	return time.Duration(b.TimeoutSecs) * time.Second
}

// EngineConfig selects where waterfalls run.
type EngineConfig struct {
	// Mode is "local" (in process) or "temporal" (durable workflows).
	Mode string `yaml:"mode" mapstructure:"mode"`
}

// Engine modes.
const (
	EngineLocal    = "local"
	EngineTemporal = "temporal"
)

// TemporalConfig locates the Temporal frontend.
type TemporalConfig struct {
	HostPort  string `yaml:"host_port" mapstructure:"host_port"`
	Namespace string `yaml:"namespace" mapstructure:"namespace"`
	TaskQueue string `yaml:"task_queue" mapstructure:"task_queue"`
}

// IdempotencyConfig configures the cross-process run lock. An empty RedisURL
// keeps deduplication in process.
type IdempotencyConfig struct {
	RedisURL       string `yaml:"redis_url" mapstructure:"redis_url"`
	LockTTLSecs    int    `yaml:"lock_ttl_secs" mapstructure:"lock_ttl_secs"`
	PollIntervalMS int    `yaml:"poll_interval_ms" mapstructure:"poll_interval_ms"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ENRICH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("providers.orion.auth_key", "")
	v.SetDefault("providers.orion.base_url", "https://api.genesy.ai/api/tmp/orionConnect")
	v.SetDefault("providers.nimbus.api_key", "")
	v.SetDefault("providers.nimbus.base_url", "https://api.genesy.ai/api/tmp/numbusLookup")
	v.SetDefault("providers.astra.api_key", "")
	v.SetDefault("providers.astra.base_url", "https://api.genesy.ai/api/tmp/astraDialer")
	v.SetDefault("phone.default_region", "US")
	v.SetDefault("waterfall.config_path", "")
	v.SetDefault("batch.max_concurrent_leads", 5)
	v.SetDefault("batch.timeout_secs", 0)
	v.SetDefault("engine.mode", EngineLocal)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "phone-enrichment")
	v.SetDefault("idempotency.redis_url", "")
	v.SetDefault("idempotency.lock_ttl_secs", 120)
	v.SetDefault("idempotency.poll_interval_ms", 250)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command needs. mode is one of "enrich",
// "serve", "worker" or "migrate".
func (c *Config) Validate(mode string) error {
	var errs []string
	need := func(ok bool, msg string) {
		if !ok {
			errs = append(errs, msg)
		}
	}

	storeChecks := func() {
		switch c.Store.Driver {
		case "postgres":
			need(c.Store.DatabaseURL != "", "store.database_url is required")
		case "sqlite":
		default:
			errs = append(errs, "store.driver must be postgres or sqlite")
		}
	}
	providerChecks := func() {
		need(c.Providers.Orion.AuthKey != "", "providers.orion.auth_key is required")
		need(c.Providers.Nimbus.APIKey != "", "providers.nimbus.api_key is required")
		need(c.Providers.Astra.APIKey != "", "providers.astra.api_key is required")
	}
	engineChecks := func() {
		switch c.Engine.Mode {
		case EngineLocal:
		case EngineTemporal:
			need(c.Temporal.HostPort != "", "temporal.host_port is required")
		default:
			errs = append(errs, "engine.mode must be local or temporal")
		}
		need(c.Batch.MaxConcurrentLeads >= 1 && c.Batch.MaxConcurrentLeads <= 100,
			"batch.max_concurrent_leads must be between 1 and 100")
		need(c.Batch.TimeoutSecs >= 0, "batch.timeout_secs must be >= 0")
	}

	switch mode {
	case "enrich":
		storeChecks()
		providerChecks()
		engineChecks()
	case "serve":
		storeChecks()
		providerChecks()
		engineChecks()
		need(c.Server.Port > 0, "server.port must be > 0")
	case "worker":
		storeChecks()
		providerChecks()
		need(c.Temporal.HostPort != "", "temporal.host_port is required")
	case "migrate":
		storeChecks()
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
