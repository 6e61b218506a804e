package sampler

import (
	"context"
	"encoding/base64"
	"time"
)

// MaxSamples bounds the number of sample points taken from one video.
const MaxSamples = 50

type Config struct {
	ProbeTimeout time.Duration
}

// Metadata is what a Source reports once the video has loaded.
// Duration is in seconds.
type Metadata struct {
	Duration float64
	Width    int
	Height   int
}

// Source is a seekable video. Implementations own a single render surface,
// so SeekTo calls must not overlap.
type Source interface {
	Probe(ctx context.Context) (Metadata, error)
	SeekTo(ctx context.Context, t float64) ([]byte, error)
	Close() error
}

type Frame struct {
	Index     int
	Timestamp float64
	MimeType  string
	Data      []byte
	Width     int
	Height    int
}

func (f Frame) DataURL() string {
	return "data:" + f.MimeType + ";base64," + base64.StdEncoding.EncodeToString(f.Data)
}

// Plan is the fixed list of sample points computed from a probed video.
type Plan struct {
	Metadata   Metadata
	Interval   float64
	Timestamps []float64
}

type ProgressFunc func(done, total int)
