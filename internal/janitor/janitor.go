package janitor

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/eleven-am/kickflip/internal/metrics"
)

const DefaultSchedule = "0 */5 * * * *"

type Config struct {
	Dir      string
	Pattern  string
	MaxAge   time.Duration
	Schedule string
}

// Janitor removes temp videos left behind by runs that never released them.
type Janitor struct {
	dir      string
	pattern  string
	maxAge   time.Duration
	schedule string
	cron     *cron.Cron
	logger   *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Janitor {
	if cfg.MaxAge == 0 {
		cfg.MaxAge = 30 * time.Minute
	}
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	if cfg.Pattern == "" {
		cfg.Pattern = "*"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Janitor{
		dir:      cfg.Dir,
		pattern:  cfg.Pattern,
		maxAge:   cfg.MaxAge,
		schedule: cfg.Schedule,
		cron:     cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
		logger:   logger.With("component", "janitor"),
	}
}

func (j *Janitor) Start() error {
	if _, err := j.cron.AddFunc(j.schedule, func() { j.Sweep(time.Now()) }); err != nil {
		return fmt.Errorf("add janitor job: %w", err)
	}
	j.cron.Start()
	j.logger.Info("janitor started", "schedule", j.schedule, "dir", j.dir, "max_age", j.maxAge)
	return nil
}

func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
}

// Sweep deletes matching regular files older than the max age and returns
// how many were removed.
func (j *Janitor) Sweep(now time.Time) int {
	matches, err := filepath.Glob(filepath.Join(j.dir, j.pattern))
	if err != nil {
		j.logger.Error("glob temp dir", "error", err)
		return 0
	}

	removed := 0
	for _, path := range matches {
		info, err := os.Lstat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		if now.Sub(info.ModTime()) < j.maxAge {
			continue
		}
		if err := os.Remove(path); err != nil {
			j.logger.Warn("remove stale video", "path", path, "error", err)
			continue
		}
		removed++
	}

	if removed > 0 {
		metrics.TempFilesSwept.Add(float64(removed))
		j.logger.Info("stale videos removed", "count", removed)
	}
	return removed
}
