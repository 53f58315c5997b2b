package main

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/sells-group/lead-enrich/internal/batch"
	"github.com/sells-group/lead-enrich/internal/config"
	"github.com/sells-group/lead-enrich/internal/idempotency"
	"github.com/sells-group/lead-enrich/internal/resilience"
	"github.com/sells-group/lead-enrich/internal/store"
	"github.com/sells-group/lead-enrich/internal/waterfall"
	"github.com/sells-group/lead-enrich/internal/waterfall/provider"
	"github.com/sells-group/lead-enrich/internal/workflow"
	"github.com/sells-group/lead-enrich/pkg/astra"
	"github.com/sells-group/lead-enrich/pkg/nimbus"
	"github.com/sells-group/lead-enrich/pkg/orion"
)

// enrichEnv holds the store, provider specs and engine shared by the
// enrich, serve and worker commands.
type enrichEnv struct {
	Store       store.Store
	Waterfall   *waterfall.Config
	Specs       []provider.Spec
	Breakers    *resilience.Breakers
	Gateway     *waterfall.Gateway
	Coordinator *batch.Coordinator // nil for worker
	Temporal    client.Client      // nil in local mode
	Redis       *redis.Client      // nil without idempotency.redis_url
}

// Close releases resources held by the environment.
func (e *enrichEnv) Close() {
	if e.Temporal != nil {
		e.Temporal.Close()
	}
	if e.Redis != nil {
		_ = e.Redis.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context, sc config.StoreConfig) (store.Store, error) {
	switch sc.Driver {
	case "sqlite":
		dsn := sc.DatabaseURL
		if dsn == "" {
			dsn = "leads.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, sc.DatabaseURL, &store.PoolConfig{MaxConns: sc.MaxConns})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", sc.Driver)
	}
}

// buildRegistry registers one adapter per configured provider client.
func buildRegistry(c *config.Config) *provider.Registry {
	region := c.Phone.DefaultRegion
	reg := provider.NewRegistry()
	reg.Register(provider.NewOrion(orion.NewClient(c.Providers.Orion.AuthKey, orion.WithBaseURL(c.Providers.Orion.BaseURL)), region))
	reg.Register(provider.NewNimbus(nimbus.NewClient(c.Providers.Nimbus.APIKey, nimbus.WithBaseURL(c.Providers.Nimbus.BaseURL)), region))
	reg.Register(provider.NewAstra(astra.NewClient(c.Providers.Astra.APIKey, astra.WithBaseURL(c.Providers.Astra.BaseURL)), region))
	return reg
}

// initCore validates config for mode, opens and migrates the store, and
// resolves the provider cascade. Callers should defer env.Close().
func initCore(ctx context.Context, mode string) (*enrichEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	wfCfg, err := waterfall.LoadConfig(cfg.Waterfall.ConfigPath)
	if err != nil {
		return nil, err
	}

	st, err := initStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	env := &enrichEnv{Store: st, Waterfall: wfCfg}

	if err := st.Migrate(ctx); err != nil {
		env.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	env.Breakers = resilience.NewBreakers(wfCfg.Circuit)
	env.Specs, err = wfCfg.Specs(buildRegistry(cfg), env.Breakers)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.Gateway = waterfall.NewGateway(st, wfCfg.Save, cfg.Phone.DefaultRegion)

	zap.L().Info("provider cascade ready",
		zap.String("store", cfg.Store.Driver),
		zap.Strings("providers", specNames(env.Specs)),
	)
	return env, nil
}

// initEnv builds the full environment including the engine selected by
// engine.mode and the batch coordinator.
func initEnv(ctx context.Context, mode string) (*enrichEnv, error) {
	env, err := initCore(ctx, mode)
	if err != nil {
		return nil, err
	}

	runner, err := initRunner(ctx, env)
	if err != nil {
		env.Close()
		return nil, err
	}

	env.Coordinator = batch.New(env.Store, runner, batch.Config{
		MaxConcurrentLeads: cfg.Batch.MaxConcurrentLeads,
		Timeout:            cfg.Batch.Timeout(),
	})
	return env, nil
}

func initRunner(ctx context.Context, env *enrichEnv) (batch.Runner, error) {
	if cfg.Engine.Mode == config.EngineTemporal {
		tc, err := workflow.Dial(workflow.ClientConfig{
			HostPort:  cfg.Temporal.HostPort,
			Namespace: cfg.Temporal.Namespace,
		})
		if err != nil {
			return nil, err
		}
		env.Temporal = tc
		zap.L().Info("durable engine enabled",
			zap.String("host_port", cfg.Temporal.HostPort),
			zap.String("task_queue", cfg.Temporal.TaskQueue),
		)
		return workflow.NewRunner(tc, cfg.Temporal.TaskQueue, workflow.PlansFrom(env.Specs), env.Waterfall.Save), nil
	}

	var guard idempotency.Guard
	if cfg.Idempotency.RedisURL != "" {
		rdb, err := idempotency.DialRedis(ctx, cfg.Idempotency.RedisURL)
		if err != nil {
			return nil, err
		}
		env.Redis = rdb
		guard = idempotency.NewRedisGuard(rdb,
			idempotency.WithLockTTL(time.Duration(cfg.Idempotency.LockTTLSecs)*time.Second),
			idempotency.WithPollInterval(time.Duration(cfg.Idempotency.PollIntervalMS)*time.Millisecond),
		)
		zap.L().Info("cross-process idempotency enabled")
	} else {
		zap.L().Debug("ENRICH_IDEMPOTENCY_REDIS_URL not set, deduplicating in process only")
	}

	return waterfall.NewOrchestrator(env.Specs, env.Gateway, idempotency.NewGroup(guard)), nil
}

func specNames(specs []provider.Spec) []string {
	names := make([]string, len(specs))
	for i, s := range specs {
		names[i] = s.Name
	}
	return names
}
