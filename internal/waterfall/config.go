package waterfall

import (
	"os"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/lead-enrich/internal/model"
	"github.com/sells-group/lead-enrich/internal/resilience"
	"github.com/sells-group/lead-enrich/internal/waterfall/provider"
)

// Config is the provider cascade policy.
type Config struct {
	// Providers is the waterfall order.
	Providers []ProviderPolicy                `yaml:"providers"`
	Save      SavePolicy                      `yaml:"save"`
	Circuit   resilience.CircuitBreakerConfig `yaml:"circuit"`
}

// ProviderPolicy configures one provider's budget.
type ProviderPolicy struct {
	Name string `yaml:"name"`
	// RequiredFields overrides the adapter's own list when set.
	RequiredFields []model.FieldName      `yaml:"required_fields,omitempty"`
	Timeout        time.Duration          `yaml:"timeout"`
	AttemptTimeout time.Duration          `yaml:"attempt_timeout"`
	Retry          resilience.RetryConfig `yaml:"retry"`
	RateLimitRPS   float64                `yaml:"rate_limit_rps"`
	Disabled       bool                   `yaml:"disabled"`
}

// SavePolicy bounds the persistence step.
type SavePolicy struct {
	Timeout time.Duration          `yaml:"timeout"`
	Retry   resilience.RetryConfig `yaml:"retry"`
}

// DefaultConfig returns the built-in cascade: Orion, then Nimbus, then Astra.
func DefaultConfig() *Config {
	return &Config{
		Providers: []ProviderPolicy{
			defaultPolicy(provider.NameOrion),
			defaultPolicy(provider.NameNimbus),
			defaultPolicy(provider.NameAstra),
		},
		Save: SavePolicy{
			Timeout: 10 * time.Second,
			Retry: resilience.RetryConfig{
				MaxAttempts:    3,
				InitialBackoff: time.Second,
				MaxBackoff:     5 * time.Second,
				Multiplier:     2,
			},
		},
		Circuit: resilience.DefaultCircuitBreakerConfig(),
	}
}

func defaultPolicy(name string) ProviderPolicy {
	switch name {
	case provider.NameOrion:
		return ProviderPolicy{
			Name:           name,
			Timeout:        30 * time.Second,
			AttemptTimeout: 10 * time.Second,
			Retry:          resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Second, MaxBackoff: 10 * time.Second, Multiplier: 2},
		}
	case provider.NameNimbus:
		return ProviderPolicy{
			Name:           name,
			Timeout:        20 * time.Second,
			AttemptTimeout: 3 * time.Second,
			Retry:          resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Second, MaxBackoff: 8 * time.Second, Multiplier: 2},
		}
	case provider.NameAstra:
		return ProviderPolicy{
			Name:           name,
			Timeout:        15 * time.Second,
			AttemptTimeout: 3 * time.Second,
			Retry:          resilience.RetryConfig{MaxAttempts: 5, InitialBackoff: 500 * time.Millisecond, MaxBackoff: 5 * time.Second, Multiplier: 1.5},
		}
	default:
		return ProviderPolicy{Name: name, Timeout: 20 * time.Second, Retry: resilience.DefaultRetryConfig()}
	}
}

// LoadConfig reads the cascade policy from a YAML file. An empty path yields
// DefaultConfig. Fields left out of the file inherit the built-in values for
// that provider.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "waterfall: read config %s", path)
	}

	// The YAML has a top-level "waterfall" key
	var wrapper struct {
		Waterfall Config `yaml:"waterfall"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "waterfall: parse config")
	}

	cfg := &wrapper.Waterfall
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if len(c.Providers) == 0 {
		c.Providers = def.Providers
	}
	for i, p := range c.Providers {
		base := defaultPolicy(p.Name)
		if p.Timeout <= 0 {
			p.Timeout = base.Timeout
		}
		if p.AttemptTimeout <= 0 {
			p.AttemptTimeout = base.AttemptTimeout
		}
		p.Retry = mergeRetry(p.Retry, base.Retry)
		c.Providers[i] = p
	}

	if c.Save.Timeout <= 0 {
		c.Save.Timeout = def.Save.Timeout
	}
	c.Save.Retry = mergeRetry(c.Save.Retry, def.Save.Retry)

	if c.Circuit.FailureThreshold <= 0 {
		c.Circuit.FailureThreshold = def.Circuit.FailureThreshold
	}
	if c.Circuit.ResetTimeout <= 0 {
		c.Circuit.ResetTimeout = def.Circuit.ResetTimeout
	}
	if c.Circuit.HalfOpenMaxProbes <= 0 {
		c.Circuit.HalfOpenMaxProbes = def.Circuit.HalfOpenMaxProbes
	}
}

func mergeRetry(r, base resilience.RetryConfig) resilience.RetryConfig {
	if r.MaxAttempts <= 0 {
		r.MaxAttempts = base.MaxAttempts
	}
	if r.InitialBackoff <= 0 {
		r.InitialBackoff = base.InitialBackoff
	}
	if r.MaxBackoff <= 0 {
		r.MaxBackoff = base.MaxBackoff
	}
	if r.Multiplier <= 0 {
		r.Multiplier = base.Multiplier
	}
	return r
}

// Validate checks provider names are present and unique.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Providers))
	for i, p := range c.Providers {
		if p.Name == "" {
			return eris.Errorf("waterfall: provider %d has no name", i)
		}
		if seen[p.Name] {
			return eris.Errorf("waterfall: provider %s listed twice", p.Name)
		}
		seen[p.Name] = true
	}
	return nil
}

// Specs resolves the enabled policies against the registry, in order.
// breakers may be nil to disable circuit breaking.
func (c *Config) Specs(reg *provider.Registry, breakers *resilience.Breakers) ([]provider.Spec, error) {
	specs := make([]provider.Spec, 0, len(c.Providers))
	for _, p := range c.Providers {
		if p.Disabled {
			continue
		}
		adapter := reg.Get(p.Name)
		if adapter == nil {
			return nil, eris.Errorf("waterfall: provider %s is not registered", p.Name)
		}
		spec := provider.Spec{
			Name:           p.Name,
			Adapter:        adapter,
			RequiredFields: p.RequiredFields,
			Timeout:        p.Timeout,
			AttemptTimeout: p.AttemptTimeout,
			Retry:          p.Retry,
			Limiter:        provider.NewLimiter(p.RateLimitRPS),
		}
		if breakers != nil {
			spec.Breaker = breakers.Get(p.Name)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}
