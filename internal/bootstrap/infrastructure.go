package bootstrap

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"

	"github.com/eleven-am/kickflip/internal/tracing"
)

func ProvideRedisClient(lc fx.Lifecycle, cfg *Config) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})
	return client
}

func ProvideTracerProvider(lc fx.Lifecycle, cfg *Config, logger *slog.Logger) (*sdktrace.TracerProvider, error) {
	tp, err := tracing.InitTracer(context.Background(), cfg.OTelEndpoint)
	if err != nil {
		return nil, err
	}
	if cfg.OTelEndpoint != "" {
		logger.Info("trace export enabled", "endpoint", cfg.OTelEndpoint)
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return tp.Shutdown(ctx)
		},
	})
	return tp, nil
}

var InfrastructureModule = fx.Options(
	fx.Provide(
		ProvideLogger,
		ProvideRedisClient,
		ProvideTracerProvider,
	),
	fx.Invoke(func(*sdktrace.TracerProvider) {}),
)
