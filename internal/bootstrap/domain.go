package bootstrap

import (
	"context"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/eleven-am/kickflip/internal/janitor"
	"github.com/eleven-am/kickflip/internal/sampler"
	"github.com/eleven-am/kickflip/internal/submission"
	"github.com/eleven-am/kickflip/internal/video"
	"github.com/eleven-am/kickflip/internal/vision"
)

func ProvideSampler(cfg *Config, logger *slog.Logger) *sampler.Sampler {
	return sampler.New(sampler.Config{ProbeTimeout: cfg.ProbeTimeout}, logger)
}

func ProvideVisionClient(cfg *Config, logger *slog.Logger) *vision.Client {
	return vision.NewClient(vision.Config{
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.VisionModel,
		Timeout: cfg.VisionTimeout,
	}, logger)
}

func ProvideAcquirer(cfg *Config, logger *slog.Logger) (*video.Acquirer, error) {
	if err := os.MkdirAll(cfg.TempDir, 0o755); err != nil {
		return nil, err
	}
	return video.NewAcquirer(video.Config{
		TempDir:        cfg.TempDir,
		MaxUploadBytes: cfg.MaxUploadBytes,
		PublicBaseURL:  cfg.PublicBaseURL,
	}, logger), nil
}

func ProvideSubmissionStore(redis *redis.Client, cfg *Config) *submission.Store {
	return submission.NewStore(redis, cfg.SubmissionTTL)
}

func ProvideRunner(store *submission.Store, s *sampler.Sampler, client *vision.Client, logger *slog.Logger) *submission.Runner {
	return submission.NewRunner(submission.RunnerConfig{
		Recorder:  store,
		Extractor: s,
		Analyzer:  client,
		Open:      submission.OpenFFmpeg,
		Logger:    logger,
	})
}

func ProvideManager(lc fx.Lifecycle, runner *submission.Runner, cfg *Config, logger *slog.Logger) *submission.Manager {
	m := submission.NewManager(submission.ManagerConfig{
		Executor: runner,
		Timeout:  cfg.SubmissionTimeout,
		Logger:   logger,
	})
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			m.Close()
			return nil
		},
	})
	return m
}

func StartJanitor(lc fx.Lifecycle, cfg *Config, logger *slog.Logger) {
	j := janitor.New(janitor.Config{
		Dir:      cfg.TempDir,
		Pattern:  video.TempPattern,
		MaxAge:   cfg.TempMaxAge,
		Schedule: cfg.JanitorSchedule,
	}, logger)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return j.Start()
		},
		OnStop: func(ctx context.Context) error {
			j.Stop()
			return nil
		},
	})
}

var DomainModule = fx.Options(
	fx.Provide(
		ProvideSampler,
		ProvideVisionClient,
		ProvideAcquirer,
		ProvideSubmissionStore,
		ProvideRunner,
		ProvideManager,
	),
	fx.Invoke(StartJanitor),
)
