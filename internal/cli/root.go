package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	clilogging "github.com/ShapeChange/ShapeChange-sub001/internal/cli/logging"
	"github.com/ShapeChange/ShapeChange-sub001/internal/config"
	"github.com/ShapeChange/ShapeChange-sub001/internal/validation"
	"github.com/ShapeChange/ShapeChange-sub001/pkg/backend"
	pkgconfig "github.com/ShapeChange/ShapeChange-sub001/pkg/config"
	"github.com/ShapeChange/ShapeChange-sub001/pkg/pipeline"
	"github.com/ShapeChange/ShapeChange-sub001/pkg/state"
	"github.com/ShapeChange/ShapeChange-sub001/pkg/telemetry"
)

const stepRun = "run"

var (
	// ErrUsage marks invalid command line combinations.
	ErrUsage = errors.New("invalid usage")
	// ErrHelpShown is returned by Execute after the usage text was printed.
	ErrHelpShown = errors.New("usage shown")
)

// Options captures the command line of one invocation.
type Options struct {
	ConfigPath    string
	Substitutions []string
	Interactive   bool
	EnvFile       string
	StateDir      string
	Output        string
	PrintPlan     bool
}

// NewRootCommand constructs the shapechange command with default dependencies.
func NewRootCommand() *cobra.Command {
	return NewRootCommandWithDeps(Deps{})
}

// NewRootCommandWithDeps constructs the shapechange command with injected dependencies.
func NewRootCommandWithDeps(deps Deps) *cobra.Command {
	opts := Options{Output: outputText}

	cmd := &cobra.Command{
		Use:   "shapechange [flags] [NEW...]",
		Short: "shapechange runs a model transformation pipeline described by a configuration document",
		Long: "shapechange loads the input model named by the configuration, derives transformed\n" +
			"models and hands every model to its targets. Each -x OLD takes one positional NEW\n" +
			"and replaces OLD with NEW in every parameter value of the configuration.",
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := pairSubstitutions(opts.Substitutions, args); err != nil {
				return err
			}
			if err := validateOutput(opts.Output); err != nil {
				return err
			}
			cmd.SilenceUsage = true
			return runPipeline(cmd, opts, args, deps)
		},
	}

	registerFlags(cmd.Flags(), &opts)

	return cmd
}

func registerFlags(flags *pflag.FlagSet, opts *Options) {
	flags.StringVarP(&opts.ConfigPath, "config", "c", "", "Configuration file path or http(s) URL")
	flags.StringArrayVarP(&opts.Substitutions, "substitute", "x", nil, "Text to replace in parameter values; pairs with the next positional argument")
	flags.BoolVarP(&opts.Interactive, "interactive", "d", false, "Request the interactive dialog (not supported, logged as a warning)")
	flags.StringVar(&opts.EnvFile, "env-file", "", "Load environment variables from a dotenv file before locating the configuration")
	flags.StringVar(&opts.StateDir, "state-dir", "", "Directory receiving the last-run record")
	flags.StringVarP(&opts.Output, "output", "o", outputText, "Summary output format (text|json)")
	flags.BoolVar(&opts.PrintPlan, "print-plan", false, "Print the process tree of the configuration and exit")
}

// Execute runs cmd and reports a help request as ErrHelpShown so that callers
// can exit with a non-zero status after printing usage.
func Execute(cmd *cobra.Command) error {
	executed, err := cmd.ExecuteC()
	if err != nil {
		return err
	}
	if executed != nil {
		if help, _ := executed.Flags().GetBool("help"); help {
			return pipeline.Abort(ErrHelpShown)
		}
	}
	return nil
}

func pairSubstitutions(olds, news []string) error {
	if len(olds) != len(news) {
		return fmt.Errorf("%w: %d -x values but %d replacement arguments", ErrUsage, len(olds), len(news))
	}
	for _, old := range olds {
		if old == "" {
			return fmt.Errorf("%w: -x requires a non-empty value", ErrUsage)
		}
	}
	return nil
}

func validateOutput(format string) error {
	switch strings.ToLower(format) {
	case outputText, outputJSON:
		return nil
	}
	return fmt.Errorf("%w: unsupported output format %q", ErrUsage, format)
}

func runPipeline(cmd *cobra.Command, opts Options, args []string, deps Deps) error {
	deps = ensureDeps(deps)

	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil {
			return fmt.Errorf("load env file %s: %w", opts.EnvFile, err)
		}
	}

	subs := make([]config.Substitution, len(opts.Substitutions))
	for i, old := range opts.Substitutions {
		subs[i] = config.Substitution{Old: old, New: args[i]}
	}

	cfg, source, err := loadConfiguration(cmd, deps, opts.ConfigPath, subs)
	if err != nil {
		return pipeline.Abort(err)
	}

	if opts.PrintPlan {
		summary, err := pkgconfig.FormatSummary(cfg, opts.Output)
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(cmd.OutOrStdout(), summary)
		return err
	}

	runID := deps.NewRunID()
	logger, closeLog, err := openLogger(cfg.Log, cmd.ErrOrStderr(), runID)
	if err != nil {
		return pipeline.Abort(err)
	}
	defer closeLog()

	metadata := map[string]string{
		"configuration": clilogging.SanitizeText(source),
		"command":       clilogging.SanitizeCommand(os.Args),
	}
	if len(subs) > 0 {
		metadata["substitutions"] = strings.Join(clilogging.SanitizeSubstitutions(subs), " ")
	}
	for k, v := range clilogging.SanitizeParameters(cfg.Input.Parameters) {
		metadata["input."+k] = v
	}
	logWorkflowStart(logger, stepRun, metadata)

	if opts.Interactive {
		logWorkflowWarning(logger, stepRun, "interactive dialog is not supported; continuing without it", nil)
	}

	registry, err := deps.Registry()
	if err != nil {
		logWorkflowFailure(logger, stepRun, metadata, err)
		return pipeline.Abort(err)
	}

	preflight := validation.ValidateConfiguration(cfg, registry, deps.Inspector)
	if !preflight.Passed {
		for _, issue := range preflight.Issues {
			logWorkflowWarning(logger, stepRun, issue, nil)
		}
		err := preflight.Err()
		logWorkflowFailure(logger, stepRun, metadata, err)
		return pipeline.Abort(err)
	}

	emitter, err := deps.Emitter(cmd.ErrOrStderr())
	if err != nil {
		return pipeline.Abort(fmt.Errorf("telemetry emitter: %w", err))
	}

	orchestrator, err := pipeline.New(cfg, pipeline.Options{
		RunID:         runID,
		Registry:      registry,
		Logger:        logger,
		Emitter:       emitter,
		PostProcessor: outputLogger(logger),
	})
	var result *pipeline.Result
	if err == nil {
		result, err = orchestrator.Run(cmd.Context())
	}

	record := buildRecord(runID, source, result, err)
	if path, writeErr := deps.StateManager.Write(record, state.Overrides{StateDirectory: opts.StateDir}); writeErr != nil {
		logWorkflowWarning(logger, stepRun, "run record not written", writeErr)
	} else {
		metadata["stateFile"] = path
	}

	if err != nil {
		logWorkflowFailure(logger, stepRun, metadata, err)
		return err
	}
	logWorkflowSuccess(logger, stepRun, metadata)

	return printResult(cmd.OutOrStdout(), opts.Output, result)
}

func loadConfiguration(cmd *cobra.Command, deps Deps, explicit string, subs []config.Substitution) (*pkgconfig.Configuration, string, error) {
	loader := deps.NewLoader(subs...)
	location, err := config.LocateConfig(explicit)
	if err != nil {
		if explicit == "" && errors.Is(err, config.ErrConfigNotFound) {
			cfg, err := loader.LoadDefault()
			return cfg, config.DefaultSource, err
		}
		return nil, "", err
	}
	cfg, err := loader.Load(cmd.Context(), location.Path)
	return cfg, location.Path, err
}

// openLogger honours the log block of the configuration. The returned func
// closes the log file when one was opened.
func openLogger(logCfg pkgconfig.Log, fallback io.Writer, runID string) (telemetry.StructuredLogger, func(), error) {
	level, err := telemetry.ParseSeverity(logCfg.ReportLevel)
	if err != nil {
		return nil, nil, err
	}

	w := fallback
	closer := func() {}
	if path := strings.TrimSpace(logCfg.LogFile); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w = f
		closer = func() { _ = f.Close() }
	}

	base, err := telemetry.NewLogger(w, runID)
	if err != nil {
		closer()
		return nil, nil, err
	}
	return telemetry.LevelFilter{Next: base, Min: level}, closer, nil
}

func buildRecord(runID, source string, result *pipeline.Result, runErr error) state.Record {
	record := state.Record{
		RunID:         runID,
		Configuration: source,
		Outcome:       state.OutcomeSucceeded,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	}
	if runErr != nil {
		record.Outcome = state.OutcomeAborted
		record.Error = runErr.Error()
	}
	if result == nil {
		return record
	}
	if runErr == nil && (len(result.Failed) > 0 || len(result.Ignored) > 0) {
		record.Outcome = state.OutcomePartial
	}
	record.Ignored = result.Ignored
	record.Failed = result.Failed
	record.Deferred = result.Deferred
	for _, t := range result.Targets {
		record.Targets = append(record.Targets, state.TargetRecord{
			ID:       t.ProcessID,
			Backend:  t.Backend,
			Provider: t.Provider,
			Packages: t.Packages,
		})
	}
	for _, out := range result.Outputs {
		record.OutputFiles += len(out.Files)
	}
	return record
}

// newRunID returns a fresh identifier for one invocation.
func newRunID() string {
	return uuid.NewString()
}

// The registry answers preflight capability lookups.
var _ validation.Catalog = (*backend.Registry)(nil)
