package submission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/eleven-am/kickflip/internal/metrics"
	"github.com/eleven-am/kickflip/internal/sampler"
	"github.com/eleven-am/kickflip/internal/shared"
	"github.com/eleven-am/kickflip/internal/vision"
)

const persistTimeout = 5 * time.Second

type Recorder interface {
	Save(ctx context.Context, sub *Submission) error
	Publish(ctx context.Context, sub *Submission) error
}

type FrameExtractor interface {
	Extract(ctx context.Context, src sampler.Source, progress sampler.ProgressFunc) ([]sampler.Frame, error)
}

type VideoHandle interface {
	Path() string
	Release() error
}

type SourceOpener func(path string) (sampler.Source, error)

func OpenFFmpeg(path string) (sampler.Source, error) {
	return sampler.NewFFmpegSource(path)
}

type RunnerConfig struct {
	Recorder  Recorder
	Extractor FrameExtractor
	Analyzer  vision.Analyzer
	Open      SourceOpener
	Logger    *slog.Logger
}

type Runner struct {
	recorder  Recorder
	extractor FrameExtractor
	analyzer  vision.Analyzer
	open      SourceOpener
	logger    *slog.Logger
}

func NewRunner(cfg RunnerConfig) *Runner {
	if cfg.Open == nil {
		cfg.Open = OpenFFmpeg
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Runner{
		recorder:  cfg.Recorder,
		extractor: cfg.Extractor,
		analyzer:  cfg.Analyzer,
		open:      cfg.Open,
		logger:    cfg.Logger.With("component", "submission_runner"),
	}
}

// Run drives one submission from idle to a terminal state. The handle is
// released whatever the outcome.
func (r *Runner) Run(ctx context.Context, sub *Submission, h VideoHandle, credential string) error {
	defer func() {
		if err := h.Release(); err != nil {
			r.logger.Warn("release video failed", "submission_id", sub.ID, "error", err)
		}
	}()

	log := r.logger.With("submission_id", sub.ID)

	if err := r.advance(ctx, sub, EventStart); err != nil {
		return r.settle(ctx, sub, err)
	}

	start := time.Now()
	frames, err := r.extract(ctx, h.Path())
	if err != nil {
		return r.fail(ctx, sub, err)
	}
	metrics.SubmissionDuration.WithLabelValues("extracting").Observe(time.Since(start).Seconds())
	metrics.FramesExtractedTotal.Add(float64(len(frames)))

	sub.FrameCount = len(frames)
	if err := r.advance(ctx, sub, EventFramesReady); err != nil {
		return r.settle(ctx, sub, err)
	}
	log.Info("frames ready", "count", len(frames))

	start = time.Now()
	result, err := r.analyzer.Analyze(ctx, credential, sampler.DataURLs(frames))
	if err != nil {
		return r.fail(ctx, sub, err)
	}
	metrics.SubmissionDuration.WithLabelValues("submitting").Observe(time.Since(start).Seconds())

	if result.Verdict == "" {
		return r.fail(ctx, sub, fmt.Errorf("%w: vision API returned no verdict", shared.ErrUpstream))
	}

	sub.Verdict = result.Verdict
	if err := r.advance(ctx, sub, EventVerdict); err != nil {
		return r.settle(ctx, sub, err)
	}
	metrics.SubmissionsTotal.WithLabelValues(string(StateDone)).Inc()
	log.Info("submission done")
	return nil
}

func (r *Runner) extract(ctx context.Context, path string) ([]sampler.Frame, error) {
	src, err := r.open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open video: %v", shared.ErrExtraction, err)
	}
	defer src.Close()

	return r.extractor.Extract(ctx, src, nil)
}

func (r *Runner) fail(ctx context.Context, sub *Submission, cause error) error {
	code := shared.ErrorCode(cause)
	if errors.Is(context.Cause(ctx), shared.ErrCancelled) {
		code = shared.CodeCancelled
	}

	sub.Error = &Failure{Code: code, Message: failureMessage(code, cause)}
	if err := r.advance(ctx, sub, EventFail); err != nil {
		return r.settle(ctx, sub, errors.Join(cause, err))
	}
	metrics.SubmissionsTotal.WithLabelValues(string(StateFailed)).Inc()

	r.logger.Warn("submission failed", "submission_id", sub.ID, "code", code, "error", cause)
	return cause
}

// advance applies ev and records the new state. Recording outlives ctx so a
// cancelled run still reaches its terminal state in the store.
func (r *Runner) advance(ctx context.Context, sub *Submission, ev Event) error {
	if err := sub.Apply(ev); err != nil {
		return err
	}
	return r.record(ctx, sub)
}

func (r *Runner) record(ctx context.Context, sub *Submission) error {
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if err := r.recorder.Save(pctx, sub); err != nil {
		return err
	}
	if err := r.recorder.Publish(pctx, sub); err != nil {
		r.logger.Warn("publish update failed", "submission_id", sub.ID, "error", err)
	}
	return nil
}

// settle runs after a transition could not be stored. It moves the record to
// a terminal state and tries once more to store it, so watchers are not left
// with an in-flight state until the TTL expires.
func (r *Runner) settle(ctx context.Context, sub *Submission, cause error) error {
	if !sub.State.Terminal() {
		_ = sub.Apply(EventFail)
		sub.Error = &Failure{
			Code:    shared.CodeInternalError,
			Message: failureMessage(shared.CodeInternalError, cause),
		}
	}

	if err := r.record(ctx, sub); err != nil {
		r.logger.Error("submission state not recorded",
			"submission_id", sub.ID, "state", sub.State, "error", err)
		return errors.Join(cause, err)
	}
	metrics.SubmissionsTotal.WithLabelValues(string(sub.State)).Inc()
	r.logger.Warn("submission settled after store error",
		"submission_id", sub.ID, "state", sub.State, "error", cause)
	return cause
}

func failureMessage(code string, err error) string {
	switch code {
	case shared.CodeCancelled:
		return "The analysis was cancelled."
	case shared.CodeTimeout:
		return "The analysis took too long: " + err.Error()
	case shared.CodeExtractionFailed:
		return "Could not read frames from the video: " + err.Error()
	case shared.CodeMissingInput:
		return "Nothing to analyze: " + err.Error()
	case shared.CodeUpstreamError:
		return "The vision API request failed: " + err.Error()
	default:
		return "The analysis failed unexpectedly."
	}
}
