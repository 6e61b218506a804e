package bootstrap

import (
	"log/slog"
	"path/filepath"

	"github.com/labstack/echo/v4"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.uber.org/fx"

	"github.com/eleven-am/kickflip/internal/metrics"
	"github.com/eleven-am/kickflip/internal/submission"
	"github.com/eleven-am/kickflip/internal/video"
	"github.com/eleven-am/kickflip/internal/vision"
)

type HandlerParams struct {
	fx.In

	AnalyzeHandler    *vision.Handler
	SubmissionHandler *submission.Handler
	Config            *Config
}

func RegisterRoutes(e *echo.Echo, params HandlerParams) {
	params.AnalyzeHandler.RegisterRoutes(e)
	params.SubmissionHandler.RegisterRoutes(e.Group("/v1/submissions"))
	metrics.RegisterRoutes(e)

	e.GET("/swagger/*", echoSwagger.EchoWrapHandlerV3())

	for _, p := range []video.Preset{video.PresetFail, video.PresetWin} {
		e.File("/"+p.FileName(), filepath.Join(params.Config.StaticDir, p.FileName()))
	}
	e.Static("/assets", params.Config.StaticDir)
	e.GET("/*", func(c echo.Context) error {
		return c.File(params.Config.IndexHTML)
	})
}

func ProvideAnalyzeHandler(client *vision.Client, logger *slog.Logger) *vision.Handler {
	return vision.NewHandler(client, logger)
}

func ProvideSubmissionHandler(store *submission.Store, acquirer *video.Acquirer, manager *submission.Manager, logger *slog.Logger) *submission.Handler {
	return submission.NewHandler(store, acquirer, manager, logger)
}

var HandlersModule = fx.Options(
	fx.Provide(
		ProvideAnalyzeHandler,
		ProvideSubmissionHandler,
	),
	fx.Invoke(RegisterRoutes),
)
