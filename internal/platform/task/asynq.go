package task

import (
	"context"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"

	cfgpkg "github.com/tradeup/creditengine/pkg/config"
)

// Enqueuer is the slice of asynq.Client the services depend on.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

func redisOpt(cfg *cfgpkg.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
}

func newClient(lc fx.Lifecycle, log *zap.SugaredLogger, cfg *cfgpkg.Config) *asynq.Client {
	client := asynq.NewClient(redisOpt(cfg))
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Infow("closing asynq client")
			return client.Close()
		},
	})
	return client
}

func asEnqueuer(c *asynq.Client) Enqueuer { return c }

func newServeMux() *asynq.ServeMux {
	return asynq.NewServeMux()
}

func runServer(lc fx.Lifecycle, log *zap.SugaredLogger, cfg *cfgpkg.Config, mux *asynq.ServeMux) {
	srv := asynq.NewServer(redisOpt(cfg), asynq.Config{
		Concurrency: 10,
		Queues:      map[string]int{"default": 1},
	})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting asynq worker", "redis_addr", cfg.Redis.Addr)
			go func() {
				if err := srv.Run(mux); err != nil {
					log.Errorf("asynq server error: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Infow("stopping asynq worker")
			srv.Shutdown()
			return nil
		},
	})
}

var Module = fx.Options(
	fx.Provide(newClient),
	fx.Provide(asEnqueuer),
	fx.Provide(newServeMux),
	fx.Invoke(runServer),
)
