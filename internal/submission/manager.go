package submission

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/eleven-am/kickflip/internal/metrics"
	"github.com/eleven-am/kickflip/internal/shared"
)

type Executor interface {
	Run(ctx context.Context, sub *Submission, h VideoHandle, credential string) error
}

type ManagerConfig struct {
	Executor Executor
	Timeout  time.Duration
	Logger   *slog.Logger
}

type Manager struct {
	executor Executor
	timeout  time.Duration
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	active map[string]context.CancelCauseFunc
	wg     sync.WaitGroup
}

func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Timeout == 0 {
		cfg.Timeout = 3 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		executor: cfg.Executor,
		timeout:  cfg.Timeout,
		logger:   cfg.Logger.With("component", "submission_manager"),
		ctx:      ctx,
		cancel:   cancel,
		active:   make(map[string]context.CancelCauseFunc),
	}
}

// Start runs the submission in the background. The credential is handed to
// the executor and dropped when the run returns.
func (m *Manager) Start(sub *Submission, h VideoHandle, credential string) {
	runCtx, cancel := context.WithCancelCause(m.ctx)
	runCtx, stop := context.WithTimeout(runCtx, m.timeout)

	m.mu.Lock()
	m.active[sub.ID] = cancel
	m.mu.Unlock()

	metrics.ActiveSubmissions.Inc()
	m.wg.Add(1)

	go func() {
		defer m.wg.Done()
		defer metrics.ActiveSubmissions.Dec()
		defer func() {
			stop()
			cancel(nil)
			m.mu.Lock()
			delete(m.active, sub.ID)
			m.mu.Unlock()
		}()

		if err := m.executor.Run(runCtx, sub, h, credential); err != nil {
			m.logger.Debug("submission run ended with error", "submission_id", sub.ID, "error", err)
		}
	}()
}

// Cancel aborts an in-flight run. It reports false when id is not running.
func (m *Manager) Cancel(id string) bool {
	m.mu.Lock()
	cancel, ok := m.active[id]
	m.mu.Unlock()

	if !ok {
		return false
	}
	cancel(shared.ErrCancelled)
	m.logger.Info("submission cancelled", "submission_id", id)
	return true
}

func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// Close cancels every in-flight run and waits for them to record their
// terminal state.
func (m *Manager) Close() {
	m.mu.Lock()
	for _, cancel := range m.active {
		cancel(shared.ErrCancelled)
	}
	m.mu.Unlock()

	m.cancel()
	m.wg.Wait()
}
