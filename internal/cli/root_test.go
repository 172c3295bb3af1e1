package cli_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ShapeChange/ShapeChange-sub001/internal/cli"
	"github.com/ShapeChange/ShapeChange-sub001/internal/config"
	"github.com/ShapeChange/ShapeChange-sub001/internal/validation"
	"github.com/ShapeChange/ShapeChange-sub001/pkg/pipeline"
	pkgstate "github.com/ShapeChange/ShapeChange-sub001/pkg/state"
	"github.com/ShapeChange/ShapeChange-sub001/pkg/telemetry"
)

const hydroModel = `
name: hydro
packages:
  - id: P1
    name: Hydro
    targetNamespace: urn:hydro
    schema: true
    classes:
      - {id: C1, name: Lake}
      - {id: C2, name: River}
`

const pipelineConfig = `
input:
  id: INPUT
  modelType: yaml
  parameters:
    inputFile: $MODEL$
    outputDirectory: $OUT$
log:
  reportLevel: debug
targets:
  - id: list
    class: listing
    inputs: INPUT
`

type stateRecorder struct {
	records   []pkgstate.Record
	overrides []pkgstate.Overrides
	err       error
}

func (s *stateRecorder) Write(record pkgstate.Record, overrides pkgstate.Overrides) (string, error) {
	s.records = append(s.records, record)
	s.overrides = append(s.overrides, overrides)
	if s.err != nil {
		return "", s.err
	}
	return "/state/last-run.json", nil
}

type fixture struct {
	dir    string
	model  string
	config string
	out    string
	state  *stateRecorder
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

func newFixture(t *testing.T, document string) *fixture {
	t.Helper()
	dir := t.TempDir()
	f := &fixture{
		dir:    dir,
		model:  filepath.Join(dir, "hydro.yaml"),
		config: filepath.Join(dir, "shapechange.yaml"),
		out:    filepath.Join(dir, "out"),
		state:  &stateRecorder{},
		stdout: &bytes.Buffer{},
		stderr: &bytes.Buffer{},
	}
	if err := os.WriteFile(f.model, []byte(hydroModel), 0o600); err != nil {
		t.Fatalf("write model: %v", err)
	}
	document = strings.ReplaceAll(document, "$MODEL$", f.model)
	if err := os.WriteFile(f.config, []byte(document), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return f
}

func (f *fixture) execute(args ...string) error {
	cmd := cli.NewRootCommandWithDeps(cli.Deps{
		StateManager: f.state,
		Emitter: func(io.Writer) (*telemetry.Emitter, error) {
			return telemetry.NewEmitter(io.Discard)
		},
		NewRunID: func() string { return "run-1" },
	})
	cmd.SetOut(f.stdout)
	cmd.SetErr(f.stderr)
	cmd.SetArgs(args)
	return cli.Execute(cmd)
}

func TestNewRootCommandDeclaresFlags(t *testing.T) {
	cmd := cli.NewRootCommand()
	if cmd.Name() != "shapechange" {
		t.Fatalf("expected command name shapechange, got %s", cmd.Name())
	}
	for _, name := range []string{"config", "substitute", "interactive", "env-file", "state-dir", "output", "print-plan"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Fatalf("expected flag %s to be registered", name)
		}
	}
	if cmd.Flags().ShorthandLookup("x") == nil || cmd.Flags().ShorthandLookup("c") == nil || cmd.Flags().ShorthandLookup("d") == nil {
		t.Fatalf("expected -x, -c and -d shorthands")
	}
}

func TestRunAppliesSubstitutionsAndRecordsState(t *testing.T) {
	f := newFixture(t, pipelineConfig)

	err := f.execute("-c", f.config, "-x", "$OUT$", f.out, "--state-dir", f.dir)
	if err != nil {
		t.Fatalf("expected run to succeed, got %v (stderr %s)", err, f.stderr.String())
	}

	listing, err := os.ReadFile(filepath.Join(f.out, "INPUT", "list_Hydro.txt"))
	if err != nil {
		t.Fatalf("expected listing output: %v", err)
	}
	if !strings.Contains(string(listing), "Lake") {
		t.Fatalf("expected Lake in listing, got %q", listing)
	}

	if len(f.state.records) != 1 {
		t.Fatalf("expected one state record, got %d", len(f.state.records))
	}
	record := f.state.records[0]
	if record.Outcome != pkgstate.OutcomeSucceeded || record.RunID != "run-1" {
		t.Fatalf("unexpected record %+v", record)
	}
	if record.OutputFiles != 1 || len(record.Targets) != 1 || record.Targets[0].Provider != "INPUT" {
		t.Fatalf("unexpected targets in record %+v", record)
	}
	if f.state.overrides[0].StateDirectory != f.dir {
		t.Fatalf("expected state dir override %q, got %q", f.dir, f.state.overrides[0].StateDirectory)
	}

	if !strings.Contains(f.stdout.String(), "run run-1 completed") {
		t.Fatalf("expected completion line, got %q", f.stdout.String())
	}
	if !strings.Contains(f.stderr.String(), `"message":"run workflow started"`) {
		t.Fatalf("expected workflow start log, got %q", f.stderr.String())
	}
	if !strings.Contains(f.stderr.String(), "target output written") {
		t.Fatalf("expected debug output log at reportLevel debug, got %q", f.stderr.String())
	}
}

func TestRunPrintsJSONSummary(t *testing.T) {
	f := newFixture(t, pipelineConfig)

	if err := f.execute("-c", f.config, "-x", "$OUT$", f.out, "-o", "json"); err != nil {
		t.Fatalf("expected run to succeed, got %v", err)
	}

	var summary struct {
		RunID   string `json:"runId"`
		Targets []struct {
			ID    string `json:"id"`
			Files int    `json:"files"`
		} `json:"targets"`
	}
	if err := json.Unmarshal(f.stdout.Bytes(), &summary); err != nil {
		t.Fatalf("decode summary: %v (%q)", err, f.stdout.String())
	}
	if summary.RunID != "run-1" || len(summary.Targets) != 1 || summary.Targets[0].Files != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func TestSubstitutionCountMismatchIsUsageError(t *testing.T) {
	f := newFixture(t, pipelineConfig)

	err := f.execute("-c", f.config, "-x", "$OUT$")
	if !errors.Is(err, cli.ErrUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
	if len(f.state.records) != 0 {
		t.Fatalf("expected no run record on usage error")
	}
}

func TestUnsupportedOutputFormatIsUsageError(t *testing.T) {
	f := newFixture(t, pipelineConfig)

	err := f.execute("-c", f.config, "-x", "$OUT$", f.out, "-o", "xml")
	if !errors.Is(err, cli.ErrUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
}

func TestPreflightFailureAborts(t *testing.T) {
	f := newFixture(t, strings.Replace(pipelineConfig, "class: listing", "class: nosuch", 1))

	err := f.execute("-c", f.config, "-x", "$OUT$", f.out)
	var abort *pipeline.AbortError
	if !errors.As(err, &abort) {
		t.Fatalf("expected abort error, got %v", err)
	}
	if !errors.Is(err, validation.ErrInvalidConfiguration) {
		t.Fatalf("expected invalid configuration, got %v", err)
	}
	if !strings.Contains(f.stderr.String(), "unknown backend class nosuch") {
		t.Fatalf("expected preflight issue in log, got %q", f.stderr.String())
	}
}

func TestInteractiveFlagOnlyWarns(t *testing.T) {
	f := newFixture(t, pipelineConfig)

	if err := f.execute("-d", "-c", f.config, "-x", "$OUT$", f.out); err != nil {
		t.Fatalf("expected run to succeed, got %v", err)
	}
	if !strings.Contains(f.stderr.String(), "interactive dialog is not supported") {
		t.Fatalf("expected interactive warning, got %q", f.stderr.String())
	}
}

func TestStateWriteFailureDoesNotFailRun(t *testing.T) {
	f := newFixture(t, pipelineConfig)
	f.state.err = errors.New("disk full")

	if err := f.execute("-c", f.config, "-x", "$OUT$", f.out); err != nil {
		t.Fatalf("expected run to succeed, got %v", err)
	}
	if !strings.Contains(f.stderr.String(), "run record not written") {
		t.Fatalf("expected state warning, got %q", f.stderr.String())
	}
}

func TestPrintPlanSkipsRun(t *testing.T) {
	f := newFixture(t, pipelineConfig)

	if err := f.execute("-c", f.config, "-x", "$OUT$", f.out, "--print-plan"); err != nil {
		t.Fatalf("expected plan to print, got %v", err)
	}
	if !strings.Contains(f.stdout.String(), "INPUT") || !strings.Contains(f.stdout.String(), "list") {
		t.Fatalf("expected process tree, got %q", f.stdout.String())
	}
	if _, err := os.Stat(f.out); !os.IsNotExist(err) {
		t.Fatalf("expected no outputs, stat returned %v", err)
	}
	if len(f.state.records) != 0 {
		t.Fatalf("expected no run record when printing the plan")
	}
}

func TestEnvFileSuppliesConfigLocation(t *testing.T) {
	if _, set := os.LookupEnv(config.EnvConfig); set {
		t.Skipf("%s already set in the environment", config.EnvConfig)
	}
	t.Cleanup(func() { _ = os.Unsetenv(config.EnvConfig) })

	f := newFixture(t, pipelineConfig)
	envFile := filepath.Join(f.dir, ".env")
	if err := os.WriteFile(envFile, []byte(config.EnvConfig+"="+f.config+"\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	if err := f.execute("--env-file", envFile, "-x", "$OUT$", f.out); err != nil {
		t.Fatalf("expected run to succeed, got %v", err)
	}
	if len(f.state.records) != 1 || f.state.records[0].Configuration != f.config {
		t.Fatalf("expected configuration from env file, got %+v", f.state.records)
	}
}

func TestMissingExplicitConfigAborts(t *testing.T) {
	f := newFixture(t, pipelineConfig)

	err := f.execute("-c", filepath.Join(f.dir, "missing.yaml"))
	if !errors.Is(err, config.ErrConfigNotFound) {
		t.Fatalf("expected config not found, got %v", err)
	}
	if !pipeline.IsAbort(err) {
		t.Fatalf("expected abort error, got %T", err)
	}
}

func TestHelpIsReportedAsError(t *testing.T) {
	f := newFixture(t, pipelineConfig)

	err := f.execute("-h")
	if !errors.Is(err, cli.ErrHelpShown) {
		t.Fatalf("expected help error, got %v", err)
	}
	if !strings.Contains(f.stdout.String(), "Usage:") {
		t.Fatalf("expected usage text, got %q", f.stdout.String())
	}
}
