package vision

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/eleven-am/kickflip/internal/dto"
	"github.com/eleven-am/kickflip/internal/shared"
)

type Analyzer interface {
	Analyze(ctx context.Context, credential string, frames []string) (*Result, error)
}

type Handler struct {
	analyzer Analyzer
	logger   *slog.Logger
}

func NewHandler(analyzer Analyzer, logger *slog.Logger) *Handler {
	return &Handler{
		analyzer: analyzer,
		logger:   logger.With("handler", "analyze"),
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/analyze", h.Analyze)
	e.POST("/v1/analyze", h.Analyze)
}

// Analyze godoc
// @Summary      Analyze kickflip frames
// @Description  Forwards the sampled frames to the vision model and returns its raw answer. Missing frames or credential answer 200 with success=false.
// @Tags         analyze
// @Accept       json
// @Produce      json
// @Param        request  body      dto.AnalyzeRequest   true  "Frames and credential"
// @Success      200      {object}  dto.AnalyzeResponse
// @Failure      400      {object}  shared.APIError
// @Failure      502      {object}  dto.AnalyzeResponse
// @Failure      504      {object}  dto.AnalyzeResponse
// @Router       /analyze [post]
func (h *Handler) Analyze(c echo.Context) error {
	var req dto.AnalyzeRequest
	if err := c.Bind(&req); err != nil {
		return shared.BadRequest("invalid_request", "invalid request body")
	}

	result, err := h.analyzer.Analyze(c.Request().Context(), req.OpenAIKey, req.Frames)
	if err == nil {
		h.logger.Info("analysis complete", "frames", len(req.Frames))
		return c.JSON(http.StatusOK, dto.AnalyzeResponse{Success: true, Result: result.Raw})
	}

	switch {
	case errors.Is(err, shared.ErrMissingInput):
		return c.JSON(http.StatusOK, dto.AnalyzeResponse{Success: false})

	case errors.Is(err, shared.ErrTimeout):
		h.logger.Warn("vision request timed out", "frames", len(req.Frames))
		return c.JSON(http.StatusGatewayTimeout, dto.AnalyzeResponse{
			Error: &dto.ErrorResponse{Code: shared.CodeUpstreamTimeout, Message: "vision API did not answer in time"},
		})

	case errors.Is(err, shared.ErrUpstream):
		resp := dto.AnalyzeResponse{
			Error: &dto.ErrorResponse{Code: shared.CodeUpstreamError, Message: err.Error()},
		}
		var upstreamErr *shared.UpstreamError
		if errors.As(err, &upstreamErr) {
			resp.Error.Details = map[string]int{"status": upstreamErr.StatusCode}
			if json.Valid(upstreamErr.Body) {
				resp.Result = upstreamErr.Body
			}
		}
		h.logger.Warn("vision request failed", "error", err)
		return c.JSON(http.StatusBadGateway, resp)

	default:
		h.logger.Error("analysis failed", "error", err)
		return shared.InternalError(shared.CodeInternalError, "analysis failed")
	}
}
