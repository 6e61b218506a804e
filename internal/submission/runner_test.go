package submission

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/eleven-am/kickflip/internal/sampler"
	"github.com/eleven-am/kickflip/internal/shared"
	"github.com/eleven-am/kickflip/internal/vision"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type stubSource struct {
	duration float64
	seekErr  error
}

func (s stubSource) Probe(context.Context) (sampler.Metadata, error) {
	return sampler.Metadata{Duration: s.duration, Width: 64, Height: 48}, nil
}

func (s stubSource) SeekTo(_ context.Context, t float64) ([]byte, error) {
	if s.seekErr != nil {
		return nil, s.seekErr
	}
	return []byte(fmt.Sprintf("\x89PNG\r\n\x1a\n%.1f", t)), nil
}

func (s stubSource) Close() error { return nil }

func openStub(src stubSource) SourceOpener {
	return func(string) (sampler.Source, error) { return src, nil }
}

type fakeHandle struct {
	path     string
	released int
}

func (h *fakeHandle) Path() string { return h.path }

func (h *fakeHandle) Release() error {
	h.released++
	return nil
}

type fakeAnalyzer struct {
	frames []string
	cred   string
	result *vision.Result
	err    error
	block  bool
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, credential string, frames []string) (*vision.Result, error) {
	f.cred = credential
	f.frames = frames
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.result, f.err
}

func newTestRunner(store *memStore, src stubSource, analyzer vision.Analyzer) *Runner {
	return NewRunner(RunnerConfig{
		Recorder:  store,
		Extractor: sampler.New(sampler.Config{}, discardLogger),
		Analyzer:  analyzer,
		Open:      openStub(src),
		Logger:    discardLogger,
	})
}

func TestRunner_Success(t *testing.T) {
	store := newMemStore()
	analyzer := &fakeAnalyzer{result: &vision.Result{Verdict: "Nice kickflip!"}}
	runner := newTestRunner(store, stubSource{duration: 10}, analyzer)

	sub := New("upload")
	handle := &fakeHandle{path: "/tmp/clip.mp4"}

	if err := runner.Run(context.Background(), sub, handle, "sk-test"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if sub.State != StateDone {
		t.Errorf("expected done, got %s", sub.State)
	}
	if sub.FrameCount != 11 {
		t.Errorf("expected 11 frames, got %d", sub.FrameCount)
	}
	if sub.Verdict != "Nice kickflip!" {
		t.Errorf("expected verdict, got %q", sub.Verdict)
	}
	if len(analyzer.frames) != 11 || analyzer.cred != "sk-test" {
		t.Errorf("analyzer got %d frames, credential %q", len(analyzer.frames), analyzer.cred)
	}
	if handle.released != 1 {
		t.Errorf("expected handle released once, got %d", handle.released)
	}

	want := []State{StateExtracting, StateSubmitting, StateDone}
	if got := store.states(sub.ID); !slices.Equal(got, want) {
		t.Errorf("expected states %v, got %v", want, got)
	}
}

func TestRunner_ExtractionFailure(t *testing.T) {
	store := newMemStore()
	analyzer := &fakeAnalyzer{}
	runner := newTestRunner(store, stubSource{duration: 5, seekErr: errors.New("decode error")}, analyzer)

	sub := New("upload")
	handle := &fakeHandle{}

	err := runner.Run(context.Background(), sub, handle, "sk-test")
	if !errors.Is(err, shared.ErrExtraction) {
		t.Fatalf("expected ErrExtraction, got %v", err)
	}
	if sub.State != StateFailed || sub.Error == nil || sub.Error.Code != shared.CodeExtractionFailed {
		t.Errorf("unexpected record: state=%s error=%+v", sub.State, sub.Error)
	}
	if sub.Error.Message == "" {
		t.Error("expected a user-visible failure message")
	}
	if analyzer.frames != nil {
		t.Error("analyzer should not be called after extraction failure")
	}
	if handle.released != 1 {
		t.Errorf("expected handle released, got %d", handle.released)
	}

	want := []State{StateExtracting, StateFailed}
	if got := store.states(sub.ID); !slices.Equal(got, want) {
		t.Errorf("expected states %v, got %v", want, got)
	}
}

func TestRunner_OpenFailure(t *testing.T) {
	store := newMemStore()
	runner := NewRunner(RunnerConfig{
		Recorder:  store,
		Extractor: sampler.New(sampler.Config{}, discardLogger),
		Analyzer:  &fakeAnalyzer{},
		Open:      func(string) (sampler.Source, error) { return nil, os.ErrNotExist },
		Logger:    discardLogger,
	})

	sub := New("upload")
	handle := &fakeHandle{}
	if err := runner.Run(context.Background(), sub, handle, "sk-test"); !errors.Is(err, shared.ErrExtraction) {
		t.Fatalf("expected ErrExtraction, got %v", err)
	}
	if handle.released != 1 {
		t.Errorf("expected handle released, got %d", handle.released)
	}
}

func TestRunner_UpstreamFailure(t *testing.T) {
	store := newMemStore()
	analyzer := &fakeAnalyzer{err: &shared.UpstreamError{StatusCode: 401}}
	runner := newTestRunner(store, stubSource{duration: 3}, analyzer)

	sub := New("preset:fail")
	err := runner.Run(context.Background(), sub, &fakeHandle{}, "sk-bad")
	if !errors.Is(err, shared.ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
	if sub.State != StateFailed || sub.Error.Code != shared.CodeUpstreamError {
		t.Errorf("unexpected record: state=%s error=%+v", sub.State, sub.Error)
	}
	if sub.FrameCount != 4 {
		t.Errorf("expected frame count recorded before failure, got %d", sub.FrameCount)
	}

	want := []State{StateExtracting, StateSubmitting, StateFailed}
	if got := store.states(sub.ID); !slices.Equal(got, want) {
		t.Errorf("expected states %v, got %v", want, got)
	}
}

func TestRunner_EmptyVerdict(t *testing.T) {
	store := newMemStore()
	runner := newTestRunner(store, stubSource{duration: 1}, &fakeAnalyzer{result: &vision.Result{}})

	sub := New("upload")
	if err := runner.Run(context.Background(), sub, &fakeHandle{}, "sk-test"); !errors.Is(err, shared.ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
	if sub.State != StateFailed {
		t.Errorf("expected failed, got %s", sub.State)
	}
}

func TestRunner_Cancelled(t *testing.T) {
	store := newMemStore()
	runner := newTestRunner(store, stubSource{duration: 2}, &fakeAnalyzer{block: true})

	ctx, cancel := context.WithCancelCause(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel(shared.ErrCancelled)
	}()

	sub := New("upload")
	handle := &fakeHandle{}
	if err := runner.Run(ctx, sub, handle, "sk-test"); err == nil {
		t.Fatal("expected error")
	}
	if sub.State != StateFailed || sub.Error.Code != shared.CodeCancelled {
		t.Errorf("unexpected record: state=%s error=%+v", sub.State, sub.Error)
	}

	saved, err := store.Get(context.Background(), sub.ID)
	if err != nil {
		t.Fatalf("expected terminal state saved after cancellation: %v", err)
	}
	if saved.State != StateFailed {
		t.Errorf("expected saved state failed, got %s", saved.State)
	}
	if handle.released != 1 {
		t.Errorf("expected handle released, got %d", handle.released)
	}
}

func TestRunner_SaveFailure(t *testing.T) {
	store := newMemStore()
	store.saveErr = errors.New("redis down")
	runner := newTestRunner(store, stubSource{duration: 1}, &fakeAnalyzer{})

	handle := &fakeHandle{}
	if err := runner.Run(context.Background(), New("upload"), handle, "sk-test"); err == nil {
		t.Fatal("expected error when state cannot be recorded")
	}
	if handle.released != 1 {
		t.Errorf("expected handle released, got %d", handle.released)
	}
}

func TestRunner_TransientSaveFailure(t *testing.T) {
	blip := errors.New("redis blip")

	tests := []struct {
		name      string
		failAt    int
		wantState State
		wantCode  string
	}{
		{"start", 1, StateFailed, shared.CodeInternalError},
		{"frames ready", 2, StateFailed, shared.CodeInternalError},
		{"verdict", 3, StateDone, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			store.saveFailures = map[int]error{tt.failAt: blip}
			analyzer := &fakeAnalyzer{result: &vision.Result{Verdict: "Nice kickflip!"}}
			runner := newTestRunner(store, stubSource{duration: 2}, analyzer)

			sub := New("upload")
			store.Create(context.Background(), sub)

			err := runner.Run(context.Background(), sub, &fakeHandle{}, "sk-test")
			if !errors.Is(err, blip) {
				t.Fatalf("expected store error, got %v", err)
			}

			stored, err := store.Get(context.Background(), sub.ID)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if stored.State != tt.wantState {
				t.Errorf("expected stored state %s, got %s", tt.wantState, stored.State)
			}
			if !stored.State.Terminal() {
				t.Errorf("stored record left in %s", stored.State)
			}
			if tt.wantCode != "" && (stored.Error == nil || stored.Error.Code != tt.wantCode) {
				t.Errorf("expected failure code %s, got %+v", tt.wantCode, stored.Error)
			}
		})
	}
}

func TestRunner_EndToEnd(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Nice kickflip!"}}]}`))
	}))
	defer upstream.Close()

	store := newMemStore()
	client := vision.NewClient(vision.Config{BaseURL: upstream.URL}, discardLogger)
	runner := newTestRunner(store, stubSource{duration: 10}, client)

	sub := New("upload")
	if err := runner.Run(context.Background(), sub, &fakeHandle{}, "sk-test"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sub.State != StateDone || sub.FrameCount != 11 || sub.Verdict != "Nice kickflip!" {
		t.Errorf("unexpected record: %+v", sub)
	}
}

func TestRunner_EndToEnd_NetworkFault(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := upstream.URL
	upstream.Close()

	store := newMemStore()
	client := vision.NewClient(vision.Config{BaseURL: url, Timeout: time.Second}, discardLogger)
	runner := newTestRunner(store, stubSource{duration: 2}, client)

	sub := New("upload")
	if err := runner.Run(context.Background(), sub, &fakeHandle{}, "sk-test"); err == nil {
		t.Fatal("expected error")
	}
	if sub.State != StateFailed || sub.Error.Code != shared.CodeUpstreamError {
		t.Errorf("unexpected record: state=%s error=%+v", sub.State, sub.Error)
	}
}

func TestOpenFFmpeg_MissingFile(t *testing.T) {
	if _, err := OpenFFmpeg(filepath.Join(t.TempDir(), "missing.mp4")); err == nil {
		t.Error("expected error for missing file")
	}
}
