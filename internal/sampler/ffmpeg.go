package sampler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

// endGuard keeps seeks inside the stream. ffmpeg emits nothing when asked for
// a frame exactly at the container's end time.
const endGuard = 0.1

type FFmpegSource struct {
	path       string
	ffmpegBin  string
	ffprobeBin string

	mu     sync.Mutex
	meta   *Metadata
	closed bool
}

func NewFFmpegSource(path string) (*FFmpegSource, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open video: %w", err)
	}
	return &FFmpegSource{
		path:       path,
		ffmpegBin:  "ffmpeg",
		ffprobeBin: "ffprobe",
	}, nil
}

func (s *FFmpegSource) Probe(ctx context.Context) (Metadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Metadata{}, errors.New("source closed")
	}
	if s.meta != nil {
		return *s.meta, nil
	}

	cmd := exec.CommandContext(ctx, s.ffprobeBin,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height:format=duration",
		"-of", "json",
		"--", s.path)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return Metadata{}, fmt.Errorf("ffprobe: %w: %s", err, firstLine(stderr.String()))
	}

	meta, err := parseProbeOutput(out)
	if err != nil {
		return Metadata{}, err
	}
	s.meta = &meta
	return meta, nil
}

func (s *FFmpegSource) SeekTo(ctx context.Context, t float64) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errors.New("source closed")
	}

	pos := t
	if s.meta != nil && s.meta.Duration > 0 && pos > s.meta.Duration-endGuard {
		pos = max(s.meta.Duration-endGuard, 0)
	}

	cmd := exec.CommandContext(ctx, s.ffmpegBin,
		"-hide_banner",
		"-loglevel", "error",
		"-ss", strconv.FormatFloat(pos, 'f', 3, 64),
		"-i", s.path,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg seek %.3fs: %w: %s", t, err, firstLine(stderr.String()))
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("ffmpeg produced no frame at %.3fs", t)
	}
	return stdout.Bytes(), nil
}

func (s *FFmpegSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type probeOutput struct {
	Streams []struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func parseProbeOutput(data []byte) (Metadata, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return Metadata{}, fmt.Errorf("parse ffprobe output: %w", err)
	}
	if len(out.Streams) == 0 {
		return Metadata{}, errors.New("no video stream found")
	}

	var duration float64
	if d := strings.TrimSpace(out.Format.Duration); d != "" && d != "N/A" {
		v, err := strconv.ParseFloat(d, 64)
		if err != nil {
			return Metadata{}, fmt.Errorf("parse duration %q: %w", d, err)
		}
		duration = v
	}

	return Metadata{
		Duration: duration,
		Width:    out.Streams[0].Width,
		Height:   out.Streams[0].Height,
	}, nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
