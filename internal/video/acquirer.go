package video

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/eleven-am/kickflip/internal/shared"
)

const (
	DefaultMaxUploadBytes = 64 << 20
	TempPattern           = "kickflip-*"
)

var ErrTooLarge = errors.New("video exceeds upload limit")

var allowedExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".webm": true,
}

type Config struct {
	TempDir        string
	MaxUploadBytes int64
	PublicBaseURL  string
	HTTPClient     *http.Client
}

type Acquirer struct {
	tempDir    string
	maxBytes   int64
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewAcquirer(cfg Config, logger *slog.Logger) *Acquirer {
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Acquirer{
		tempDir:    cfg.TempDir,
		maxBytes:   cfg.MaxUploadBytes,
		baseURL:    strings.TrimRight(cfg.PublicBaseURL, "/"),
		httpClient: cfg.HTTPClient,
		logger:     logger.With("component", "video_acquirer"),
	}
}

func (a *Acquirer) TempDir() string {
	return a.tempDir
}

func (a *Acquirer) FromUpload(ctx context.Context, fh *multipart.FileHeader) (*Handle, error) {
	if fh == nil {
		return nil, fmt.Errorf("%w: no file", shared.ErrMissingInput)
	}
	if !isVideo(fh.Filename, fh.Header.Get("Content-Type")) {
		return nil, fmt.Errorf("%w: %q is not a video", shared.ErrMissingInput, fh.Filename)
	}
	if fh.Size > a.maxBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, fh.Size)
	}

	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	return a.store(ctx, f, fh.Filename, filepath.Ext(fh.Filename))
}

func (a *Acquirer) FromPreset(ctx context.Context, p Preset) (*Handle, error) {
	if _, err := ParsePreset(string(p)); err != nil {
		return nil, err
	}
	if a.baseURL == "" {
		return nil, fmt.Errorf("%w: no public base URL configured for presets", shared.ErrExtraction)
	}

	url := a.baseURL + "/" + p.FileName()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: fetch preset %s: %v", shared.ErrExtraction, p, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: fetch preset %s: status %d", shared.ErrExtraction, p, resp.StatusCode)
	}

	return a.store(ctx, resp.Body, p.FileName(), ".mp4")
}

func (a *Acquirer) store(ctx context.Context, r io.Reader, name, ext string) (*Handle, error) {
	if err := os.MkdirAll(a.tempDir, 0o755); err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}

	f, err := os.CreateTemp(a.tempDir, TempPattern+strings.ToLower(ext))
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	h := &Handle{path: f.Name(), name: name}

	n, err := io.Copy(f, io.LimitReader(ctxReader{ctx: ctx, r: r}, a.maxBytes+1))
	closeErr := f.Close()
	switch {
	case err != nil:
		h.Release()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: copy video: %v", shared.ErrExtraction, err)
	case closeErr != nil:
		h.Release()
		return nil, fmt.Errorf("close temp file: %w", closeErr)
	case n > a.maxBytes:
		h.Release()
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, a.maxBytes)
	case n == 0:
		h.Release()
		return nil, fmt.Errorf("%w: empty video", shared.ErrMissingInput)
	}

	a.logger.Debug("video stored", "name", name, "bytes", n, "path", h.path)
	return h, nil
}

func isVideo(filename, contentType string) bool {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil && strings.HasPrefix(mt, "video/") {
		return true
	}
	return allowedExtensions[strings.ToLower(filepath.Ext(filename))]
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
