package submission

import (
	"context"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/eleven-am/kickflip/internal/shared"
	"github.com/eleven-am/kickflip/internal/video"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type Repository interface {
	Create(ctx context.Context, sub *Submission) error
	Get(ctx context.Context, id string) (*Submission, error)
	Subscribe(ctx context.Context, id string) (<-chan *Submission, error)
}

type Acquirer interface {
	FromUpload(ctx context.Context, fh *multipart.FileHeader) (*video.Handle, error)
	FromPreset(ctx context.Context, p video.Preset) (*video.Handle, error)
}

type Scheduler interface {
	Start(sub *Submission, h VideoHandle, credential string)
	Cancel(id string) bool
}

type Handler struct {
	repo      Repository
	acquirer  Acquirer
	scheduler Scheduler
	logger    *slog.Logger
}

func NewHandler(repo Repository, acquirer Acquirer, scheduler Scheduler, logger *slog.Logger) *Handler {
	return &Handler{
		repo:      repo,
		acquirer:  acquirer,
		scheduler: scheduler,
		logger:    logger.With("handler", "submission"),
	}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("", h.Create)
	g.GET("/:id", h.Get)
	g.DELETE("/:id", h.Cancel)
	g.GET("/:id/events", h.Events)
}

// Create godoc
// @Summary      Submit a video for analysis
// @Description  Accepts an uploaded video or a preset name, samples its frames and asks the vision model for a verdict in the background
// @Tags         submissions
// @Accept       multipart/form-data
// @Produce      json
// @Param        openAiKey  formData  string  true   "Vision API credential"
// @Param        file       formData  file    false  "Video file"
// @Param        preset     formData  string  false  "Preset video"  Enums(fail, win)
// @Success      202        {object}  dto.SubmissionResponse
// @Failure      400        {object}  shared.APIError
// @Failure      413        {object}  shared.APIError
// @Failure      500        {object}  shared.APIError
// @Router       /v1/submissions [post]
func (h *Handler) Create(c echo.Context) error {
	ctx := c.Request().Context()

	credential := c.FormValue("openAiKey")
	if credential == "" {
		return shared.BadRequest(shared.CodeMissingCredential, "openAiKey is required")
	}

	handle, source, err := h.acquire(c)
	if err != nil {
		return h.acquireError(err)
	}

	sub := New(source)
	if err := h.repo.Create(ctx, sub); err != nil {
		handle.Release()
		h.logger.Error("failed to create submission", "error", err)
		return shared.InternalError("create_failed", "failed to create submission")
	}

	// The runner owns sub once started.
	resp := sub.ToResponse()
	h.scheduler.Start(sub, handle, credential)
	h.logger.Info("submission accepted", "submission_id", resp.ID, "source", source)

	return c.JSON(http.StatusAccepted, resp)
}

func (h *Handler) acquire(c echo.Context) (*video.Handle, string, error) {
	ctx := c.Request().Context()

	if fh, err := c.FormFile("file"); err == nil {
		handle, err := h.acquirer.FromUpload(ctx, fh)
		return handle, "upload", err
	} else if !errors.Is(err, http.ErrMissingFile) && !errors.Is(err, http.ErrNotMultipart) {
		return nil, "", err
	}

	name := c.FormValue("preset")
	if name == "" {
		return nil, "", shared.ErrMissingInput
	}
	preset, err := video.ParsePreset(name)
	if err != nil {
		return nil, "", err
	}
	handle, err := h.acquirer.FromPreset(ctx, preset)
	return handle, "preset:" + string(preset), err
}

func (h *Handler) acquireError(err error) error {
	switch {
	case errors.Is(err, shared.ErrMissingInput):
		return shared.BadRequest(shared.CodeMissingInput, "a video file or preset is required")
	case errors.Is(err, video.ErrTooLarge):
		return shared.RequestTooLarge("video_too_large", "video exceeds the upload limit")
	case errors.Is(err, shared.ErrExtraction):
		h.logger.Warn("video unavailable", "error", err)
		return shared.BadGateway("video_unavailable", "preset video could not be fetched")
	default:
		h.logger.Error("failed to acquire video", "error", err)
		return shared.InternalError(shared.CodeInternalError, "failed to read video")
	}
}

// Get godoc
// @Summary      Get a submission
// @Tags         submissions
// @Produce      json
// @Param        id   path      string  true  "Submission ID"
// @Success      200  {object}  dto.SubmissionResponse
// @Failure      404  {object}  shared.APIError
// @Router       /v1/submissions/{id} [get]
func (h *Handler) Get(c echo.Context) error {
	sub, err := h.repo.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.lookupError(err)
	}
	return c.JSON(http.StatusOK, sub.ToResponse())
}

// Cancel godoc
// @Summary      Cancel a submission
// @Description  Aborts an in-flight submission. Finished submissions are returned unchanged.
// @Tags         submissions
// @Produce      json
// @Param        id   path      string  true  "Submission ID"
// @Success      200  {object}  dto.SubmissionResponse
// @Success      202  {object}  dto.SubmissionResponse
// @Failure      404  {object}  shared.APIError
// @Router       /v1/submissions/{id} [delete]
func (h *Handler) Cancel(c echo.Context) error {
	id := c.Param("id")
	cancelled := h.scheduler.Cancel(id)

	sub, err := h.repo.Get(c.Request().Context(), id)
	if err != nil {
		return h.lookupError(err)
	}

	status := http.StatusOK
	if cancelled {
		status = http.StatusAccepted
	}
	return c.JSON(status, sub.ToResponse())
}

func (h *Handler) lookupError(err error) error {
	if errors.Is(err, shared.ErrNotFound) {
		return shared.NotFound("submission_not_found", "submission not found")
	}
	h.logger.Error("failed to load submission", "error", err)
	return shared.InternalError(shared.CodeInternalError, "failed to load submission")
}

// Events godoc
// @Summary      Stream submission updates
// @Description  Upgrades to a websocket that sends the current record and every later update, closing after a terminal state
// @Tags         submissions
// @Param        id   path  string  true  "Submission ID"
// @Success      101
// @Failure      404  {object}  shared.APIError
// @Router       /v1/submissions/{id}/events [get]
func (h *Handler) Events(c echo.Context) error {
	id := c.Param("id")

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	updates, err := h.repo.Subscribe(ctx, id)
	if err != nil {
		h.logger.Error("failed to subscribe", "submission_id", id, "error", err)
		return shared.InternalError(shared.CodeInternalError, "failed to subscribe")
	}

	sub, err := h.repo.Get(ctx, id)
	if err != nil {
		return h.lookupError(err)
	}

	ws, err := wsUpgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return err
	}
	defer ws.Close()

	go h.readPump(ws, cancel)

	if err := h.write(ws, sub); err != nil || sub.State.Terminal() {
		h.closeWS(ws)
		return nil
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		case update, ok := <-updates:
			if !ok {
				h.closeWS(ws)
				return nil
			}
			if stale(sub, update) {
				continue
			}
			if err := h.write(ws, update); err != nil {
				return nil
			}
			sub = update
			if update.State.Terminal() {
				h.closeWS(ws)
				return nil
			}
		}
	}
}

// stale reports whether update was published before last, which happens when
// it was queued between subscribing and reading the snapshot.
func stale(last, update *Submission) bool {
	if update.UpdatedAt.Before(last.UpdatedAt) {
		return true
	}
	return update.UpdatedAt.Equal(last.UpdatedAt) && update.State == last.State
}

func (h *Handler) write(ws *websocket.Conn, sub *Submission) error {
	_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
	return ws.WriteJSON(sub.ToResponse())
}

func (h *Handler) closeWS(ws *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}

// readPump drains client frames so control messages are processed, and
// cancels the stream once the client goes away.
func (h *Handler) readPump(ws *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}
