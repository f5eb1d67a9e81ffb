package bootstrap

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/bkohler93/match-engine/internal/app/matchmake"
	"github.com/bkohler93/match-engine/internal/shared/config"
	"github.com/bkohler93/match-engine/internal/shared/logger"
	"github.com/bkohler93/match-engine/internal/shared/observability"
	"github.com/bkohler93/match-engine/internal/shared/queue"
	"github.com/bkohler93/match-engine/internal/shared/session"
	"github.com/bkohler93/match-engine/internal/shared/utils"
	"github.com/bkohler93/match-engine/internal/shared/utils/redisutils"
	"github.com/redis/go-redis/v9"
)

// Deps is everything a binary needs, built from the environment.
type Deps struct {
	Config config.Config
	Log    *logger.Logger
	Store  queue.Store
	Bus    *matchmake.TransportBus // nil when the backend has no broadcast channel
	Redis  *redis.Client           // nil unless the redis backend is in use

	shutdownTracing func(context.Context) error
}

// Load reads .env and the environment, then builds the logger, store and bus for serviceName.
func Load(ctx context.Context, serviceName string) (*Deps, error) {
	if err := utils.LoadEnv(); err != nil {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, err
	}
	return Build(ctx, cfg, log.With("app", serviceName), serviceName)
}

func Build(ctx context.Context, cfg config.Config, log *logger.Logger, serviceName string) (*Deps, error) {
	d := &Deps{
		Config:          cfg,
		Log:             log,
		shutdownTracing: observability.InitTracing(ctx, log, serviceName, cfg.OtelEnabled),
	}

	switch cfg.Backend {
	case config.BackendRedis:
		rdb, err := redisutils.NewRedisMatchmakeClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		store, err := queue.NewRedisStore(rdb)
		if err != nil {
			return nil, err
		}
		d.Redis = rdb
		d.Store = store
		d.Bus = matchmake.NewRedisBus(rdb)
	case config.BackendDynamo:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return nil, fmt.Errorf("unable to load AWS SDK config: %w", err)
		}
		d.Store = queue.NewDynamoStore(dynamodb.NewFromConfig(awsCfg), cfg.DynamoTable)
		log.Info("using dynamodb queue", "table", cfg.DynamoTable, "region", awsCfg.Region)
	case config.BackendMemory:
		d.Store = queue.NewMemoryStore()
		d.Bus = matchmake.NewLocalBus()
		log.Warn("using in-memory queue, state is lost on exit and not shared between processes")
	default:
		return nil, fmt.Errorf("unknown queue backend %q", cfg.Backend)
	}
	if d.Bus != nil {
		d.Bus.SetLogger(log)
	}
	return d, nil
}

// Handoff returns the session handoff, or nil when no collaboration service is configured.
func (d *Deps) Handoff() session.Handoff {
	if d.Config.CollabServiceURL == "" {
		d.Log.Warn("COLLAB_SERVICE_URL is not set, matches will not create sessions")
		return nil
	}
	return session.NewHTTPHandoff(d.Config.CollabServiceURL, d.Config.JWTSecret, nil)
}

func (d *Deps) Close(ctx context.Context) {
	if err := d.shutdownTracing(ctx); err != nil {
		d.Log.Warn("failed to flush traces", "error", err)
	}
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.Log.Warn("failed to close redis client", "error", err)
		}
	}
	d.Log.Sync()
}
