package sampler

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/eleven-am/kickflip/internal/shared"
)

type Sampler struct {
	probeTimeout time.Duration
	logger       *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Sampler {
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sampler{
		probeTimeout: cfg.ProbeTimeout,
		logger:       logger.With("component", "sampler"),
	}
}

// Plan probes the source and computes its sample points. A probe that does
// not finish within the probe timeout fails with shared.ErrTimeout.
func (s *Sampler) Plan(ctx context.Context, src Source) (*Plan, error) {
	probeCtx, cancel := context.WithTimeout(ctx, s.probeTimeout)
	defer cancel()

	meta, err := src.Probe(probeCtx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(probeCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: video metadata did not load within %s", shared.ErrTimeout, s.probeTimeout)
		}
		return nil, fmt.Errorf("%w: load metadata: %v", shared.ErrExtraction, err)
	}

	if meta.Width <= 0 || meta.Height <= 0 {
		return nil, fmt.Errorf("%w: render surface unavailable for %dx%d video", shared.ErrExtraction, meta.Width, meta.Height)
	}

	times, err := Timestamps(meta.Duration)
	if err != nil {
		return nil, err
	}

	return &Plan{
		Metadata:   meta,
		Interval:   Interval(meta.Duration),
		Timestamps: times,
	}, nil
}

// Capture seeks to each planned sample point in order, awaiting every seek
// before issuing the next. The returned sequence can be ranged over once.
func (s *Sampler) Capture(ctx context.Context, src Source, plan *Plan) iter.Seq2[Frame, error] {
	var consumed atomic.Bool

	return func(yield func(Frame, error) bool) {
		if !consumed.CompareAndSwap(false, true) {
			yield(Frame{}, fmt.Errorf("%w: frame sequence already consumed", shared.ErrExtraction))
			return
		}

		for i, t := range plan.Timestamps {
			if err := ctx.Err(); err != nil {
				yield(Frame{}, err)
				return
			}

			data, err := src.SeekTo(ctx, t)
			if err != nil {
				if ctx.Err() != nil {
					yield(Frame{}, ctx.Err())
					return
				}
				yield(Frame{}, fmt.Errorf("%w: capture at %.3fs: %v", shared.ErrExtraction, t, err))
				return
			}
			if len(data) == 0 {
				yield(Frame{}, fmt.Errorf("%w: empty frame at %.3fs", shared.ErrExtraction, t))
				return
			}

			frame := Frame{
				Index:     i,
				Timestamp: t,
				MimeType:  http.DetectContentType(data),
				Data:      data,
				Width:     plan.Metadata.Width,
				Height:    plan.Metadata.Height,
			}
			if !yield(frame, nil) {
				return
			}
		}
	}
}

// Frames plans and captures in one lazy sequence.
func (s *Sampler) Frames(ctx context.Context, src Source) iter.Seq2[Frame, error] {
	var consumed atomic.Bool

	return func(yield func(Frame, error) bool) {
		if !consumed.CompareAndSwap(false, true) {
			yield(Frame{}, fmt.Errorf("%w: frame sequence already consumed", shared.ErrExtraction))
			return
		}

		plan, err := s.Plan(ctx, src)
		if err != nil {
			yield(Frame{}, err)
			return
		}
		for frame, err := range s.Capture(ctx, src, plan) {
			if !yield(frame, err) || err != nil {
				return
			}
		}
	}
}

func (s *Sampler) Extract(ctx context.Context, src Source, progress ProgressFunc) ([]Frame, error) {
	ctx, span := otel.Tracer("sampler").Start(ctx, "Sampler.Extract")
	defer span.End()

	start := time.Now()

	plan, err := s.Plan(ctx, src)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(
		attribute.Float64("video.duration", plan.Metadata.Duration),
		attribute.Int("video.width", plan.Metadata.Width),
		attribute.Int("video.height", plan.Metadata.Height),
		attribute.Int("sampler.points", len(plan.Timestamps)),
	)

	frames := make([]Frame, 0, len(plan.Timestamps))
	for frame, err := range s.Capture(ctx, src, plan) {
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		frames = append(frames, frame)
		if progress != nil {
			progress(len(frames), len(plan.Timestamps))
		}
	}

	s.logger.Debug("frames extracted",
		"count", len(frames),
		"interval", plan.Interval,
		"duration", plan.Metadata.Duration,
		"elapsed_ms", time.Since(start).Milliseconds())

	return frames, nil
}

func DataURLs(frames []Frame) []string {
	urls := make([]string, len(frames))
	for i, f := range frames {
		urls[i] = f.DataURL()
	}
	return urls
}
