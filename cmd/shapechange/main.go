package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ShapeChange/ShapeChange-sub001/internal/cli"
	telemetryinit "github.com/ShapeChange/ShapeChange-sub001/internal/telemetry"
	"github.com/ShapeChange/ShapeChange-sub001/pkg/pipeline"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = ""

var (
	telemetryInit = func(ctx context.Context) (func(context.Context) error, error) {
		return telemetryinit.InitProvider(ctx, telemetryinit.OptionsFromEnv(version))
	}
	rootCommand = cli.NewRootCommand
	execute     = cli.Execute
	osExit      = os.Exit
)

func main() {
	ctx := context.Background()
	shutdown, err := telemetryInit(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize telemetry: %v\n", err)
	}
	code := run()
	if shutdown != nil {
		cleanupCtx, cancel := context.WithTimeout(ctx, telemetryinit.ShutdownTimeout)
		if err := shutdown(cleanupCtx); err != nil {
			fmt.Fprintf(os.Stderr, "telemetry shutdown error: %v\n", err)
		}
		cancel()
	}
	if code != 0 {
		osExit(code)
	}
}

// run executes the root command and maps its error to an exit status.
func run() int {
	err := execute(rootCommand())
	if err == nil {
		return 0
	}
	var abort *pipeline.AbortError
	if errors.As(err, &abort) {
		return abort.Code
	}
	fmt.Fprintln(os.Stderr, err)
	return 1
}
