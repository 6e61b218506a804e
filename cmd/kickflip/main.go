package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/eleven-am/kickflip/internal/cli"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var c cli.CLI
	kctx := kong.Parse(&c,
		kong.Name("kickflip"),
		kong.Description("Judge a kickflip video with a vision model."),
		kong.UsageOnError(),
		kong.Bind(cli.NewRuntime(ctx)),
	)
	kctx.FatalIfErrorf(kctx.Run())
}
