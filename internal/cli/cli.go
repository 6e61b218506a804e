package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/schollz/progressbar/v3"

	"github.com/eleven-am/kickflip/internal/sampler"
	"github.com/eleven-am/kickflip/internal/shared"
	"github.com/eleven-am/kickflip/internal/vision"
)

type CLI struct {
	Analyze AnalyzeCmd `cmd:"" help:"Sample a local video and ask the vision model whether the kickflip landed"`
}

type AnalyzeCmd struct {
	Video        string        `help:"Video file to analyze" type:"existingfile" required:""`
	Key          string        `help:"OpenAI API key" env:"OPENAI_API_KEY"`
	Model        string        `help:"Vision model name" default:"gpt-4-vision-preview"`
	BaseURL      string        `help:"Chat completions base URL" name:"base-url" default:"https://api.openai.com/v1"`
	ProbeTimeout time.Duration `help:"How long to wait for video metadata" default:"10s"`
	Timeout      time.Duration `help:"Upstream request timeout" default:"60s"`
	JSON         bool          `help:"Print the raw model response instead of the verdict" name:"json"`
	Quiet        bool          `help:"Hide the progress bar" short:"q"`
	Verbose      bool          `help:"Enable debug logging" short:"v"`
}

// Runtime carries what commands need from the process.
type Runtime struct {
	Context context.Context
	Out     io.Writer
	Err     io.Writer
	Open    func(path string) (sampler.Source, error)
}

func NewRuntime(ctx context.Context) *Runtime {
	return &Runtime{
		Context: ctx,
		Out:     os.Stdout,
		Err:     os.Stderr,
		Open: func(path string) (sampler.Source, error) {
			return sampler.NewFFmpegSource(path)
		},
	}
}

func (cmd *AnalyzeCmd) Run(rt *Runtime) error {
	if cmd.Key == "" {
		return fmt.Errorf("%w: pass --key or set OPENAI_API_KEY", shared.ErrMissingInput)
	}

	logger := cmd.logger(rt.Err)

	src, err := rt.Open(cmd.Video)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrExtraction, err)
	}
	defer src.Close()

	s := sampler.New(sampler.Config{ProbeTimeout: cmd.ProbeTimeout}, logger)

	var bar *progressbar.ProgressBar
	progress := func(done, total int) {
		if cmd.Quiet {
			return
		}
		if bar == nil {
			bar = newProgressBar(total, rt.Err)
		}
		_ = bar.Set(done)
	}

	frames, err := s.Extract(rt.Context, src, progress)
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		return err
	}

	client := vision.NewClient(vision.Config{
		BaseURL: cmd.BaseURL,
		Model:   cmd.Model,
		Timeout: cmd.Timeout,
	}, logger)

	result, err := client.Analyze(rt.Context, cmd.Key, sampler.DataURLs(frames))
	if err != nil {
		return err
	}

	if cmd.JSON {
		_, err = fmt.Fprintln(rt.Out, string(result.Raw))
		return err
	}
	if result.Verdict == "" {
		return fmt.Errorf("%w: response carried no verdict", shared.ErrUpstream)
	}
	_, err = fmt.Fprintln(rt.Out, result.Verdict)
	return err
}

func (cmd *AnalyzeCmd) logger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if cmd.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05",
	}))
}

func newProgressBar(total int, w io.Writer) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("extracting frames"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionClearOnFinish(),
	)
}
