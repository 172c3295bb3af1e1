package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/ShapeChange/ShapeChange-sub001/pkg/backend"
	"github.com/ShapeChange/ShapeChange-sub001/pkg/config"
	"github.com/ShapeChange/ShapeChange-sub001/pkg/diagnostic"
	"github.com/ShapeChange/ShapeChange-sub001/pkg/model"
	"github.com/ShapeChange/ShapeChange-sub001/pkg/outputs"
	"github.com/ShapeChange/ShapeChange-sub001/pkg/overlay"
	"github.com/ShapeChange/ShapeChange-sub001/pkg/telemetry"
)

const instrumentationName = "github.com/ShapeChange/ShapeChange-sub001/pkg/pipeline"

// Output describes the files one target wrote into its output directory.
type Output struct {
	ProcessID string
	Backend   string
	Provider  string
	// Package is empty when the files belong to no single schema package.
	Package   string
	Directory string
	Files     []string
}

// PostProcessor receives the files produced by a target.
type PostProcessor interface {
	PostProcess(ctx context.Context, out Output) error
}

// PostProcessorFunc adapts a function to PostProcessor.
type PostProcessorFunc func(ctx context.Context, out Output) error

// PostProcess calls f.
func (f PostProcessorFunc) PostProcess(ctx context.Context, out Output) error {
	return f(ctx, out)
}

// TargetRun records one target configuration executed for one provider.
type TargetRun struct {
	ProcessID string
	Backend   string
	Provider  string
	Packages  []string
}

// Result summarises a pipeline run.
type Result struct {
	RunID       string
	Valid       bool
	Ignored     []string
	Failed      []string
	Targets     []TargetRun
	Outputs     []Output
	Copies      int
	Deferred    []string
	Diagnostics diagnostic.Diagnostics
}

// Options configures an Orchestrator. Registry is required.
type Options struct {
	RunID         string
	Registry      *backend.Registry
	Logger        telemetry.StructuredLogger
	Emitter       *telemetry.Emitter
	Converter     model.Converter
	PostProcessor PostProcessor
	Tracer        trace.Tracer
	Meter         metric.Meter
}

// Orchestrator executes the process tree of one configuration.
type Orchestrator struct {
	cfg       *config.Configuration
	plan      *Plan
	overlay   *overlay.Overlay
	opts      Options
	processes metric.Int64Counter
}

// New validates the structure of cfg against the registry and prepares the
// rule graph baseline. Structural problems are returned as AbortError.
func New(cfg *config.Configuration, opts Options) (*Orchestrator, error) {
	if opts.Registry == nil {
		return nil, errors.New("pipeline: backend registry is required")
	}
	plan, err := BuildPlan(cfg)
	if err != nil {
		return nil, Abort(err)
	}
	ov := overlay.New(cfg, opts.Registry.RuleSets())
	if err := ov.CheckCycles(); err != nil {
		return nil, Abort(fmt.Errorf("%w: %v", ErrInvalidPlan, err))
	}
	for _, t := range cfg.Transformers {
		if t.Enabled() && !opts.Registry.Capabilities(t.Class).Has(backend.CapTransformer) {
			return nil, Abort(fmt.Errorf("%w: transformer %s: class %q is not a registered transformer", ErrBackend, t.ID, t.Class))
		}
	}
	for _, t := range cfg.Targets {
		if t.Enabled() && !opts.Registry.Capabilities(t.Class).Has(backend.CapTarget) {
			return nil, Abort(fmt.Errorf("%w: target %s: class %q is not a registered target", ErrBackend, targetLabel(t), t.Class))
		}
	}

	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if opts.Logger == nil {
		opts.Logger = telemetry.Nop{}
	}
	if opts.Converter == nil {
		opts.Converter = model.CloneConverter
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(instrumentationName)
	}
	if opts.Meter == nil {
		opts.Meter = otel.Meter(instrumentationName)
	}
	processes, err := opts.Meter.Int64Counter("shapechange.pipeline.processes",
		metric.WithDescription("Transformer and target executions by outcome"))
	if err != nil {
		return nil, fmt.Errorf("pipeline: create process counter: %w", err)
	}

	return &Orchestrator{cfg: cfg, plan: plan, overlay: ov, opts: opts, processes: processes}, nil
}

// Plan returns the process tree.
func (o *Orchestrator) Plan() *Plan { return o.plan }

// Overlay returns the parameter and rule baseline.
func (o *Orchestrator) Overlay() *overlay.Overlay { return o.overlay }

// Run executes validation, model acquisition, the target and transformer
// tree, model release and the deferred output phase. The returned error is
// an AbortError when the run was terminated.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	r := &run{
		Orchestrator: o,
		store:        backend.NewStore(),
		aggregators:  map[string]backend.Aggregating{},
		reported:     map[string]bool{},
		result:       &Result{RunID: o.opts.RunID, Valid: true},
	}
	ctx, span := o.opts.Tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("run.id", o.opts.RunID),
		attribute.String("input.id", o.cfg.Input.ID),
	))
	defer span.End()

	err := r.execute(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.log(telemetry.Entry{Category: telemetry.CategoryWorkflow, Message: "pipeline aborted", Error: err})
	} else {
		r.log(telemetry.Entry{
			Category: telemetry.CategoryWorkflow,
			Message:  "pipeline complete",
			Metadata: map[string]string{
				"ignored": strings.Join(r.result.Ignored, ","),
				"targets": strconv.Itoa(len(r.result.Targets)),
			},
		})
	}
	return r.result, err
}

type deferredTarget struct {
	target config.Target
	dir    string
}

// run holds the state of one execution.
type run struct {
	*Orchestrator
	store       *backend.Store
	aggregators map[string]backend.Aggregating
	aggOrder    []string
	deferred    []deferredTarget
	reported    map[string]bool
	result      *Result
}

func (r *run) execute(ctx context.Context) error {
	meta := map[string]string{"runId": r.opts.RunID, "input": r.cfg.Input.ID}
	r.report(r.overlay.Diagnostics(), "", "")

	if r.skipValidation() {
		r.log(telemetry.Entry{Category: telemetry.CategoryWorkflow, Message: "semantic validation skipped", Step: string(telemetry.PhaseValidate)})
	} else if err := r.opts.Emitter.EmitPhase(telemetry.PhaseValidate, meta, func() error { return r.validate(ctx) }); err != nil {
		return err
	}

	var m model.Model
	if err := r.opts.Emitter.EmitPhase(telemetry.PhaseAcquire, meta, func() error {
		var err error
		m, err = r.acquire(ctx)
		return err
	}); err != nil {
		return err
	}

	released := false
	release := func() error {
		if !released {
			released = true
			m.Shutdown()
		}
		return nil
	}
	defer func() { _ = release() }()

	ignore := IgnoreSet{}
	if err := r.opts.Emitter.EmitPhase(telemetry.PhaseTargets, meta, func() error {
		return r.runTargets(ctx, m, Root, ignore)
	}); err != nil {
		return err
	}

	err := r.opts.Emitter.EmitPhase(telemetry.PhaseTransform, meta, func() error {
		var err error
		ignore, err = r.transformTree(ctx, m, ignore, r.plan.Nodes[Root].Children)
		return err
	})
	r.result.Ignored = ignore.IDs()
	if err != nil {
		return err
	}

	if err := r.opts.Emitter.EmitPhase(telemetry.PhaseRelease, meta, release); err != nil {
		return err
	}
	return r.opts.Emitter.EmitPhase(telemetry.PhaseDeferred, meta, func() error { return r.runDeferred(ctx) })
}

func (r *run) skipValidation() bool {
	v, _ := r.overlay.Global(ParamSkipSemanticValidation)
	skip, err := strconv.ParseBool(strings.TrimSpace(v))
	return err == nil && skip
}

// validate invokes the companion validator of every enabled process and
// aborts when at least one reports an invalid configuration.
func (r *run) validate(ctx context.Context) error {
	invalid := 0
	for _, p := range r.cfg.Processes() {
		if !p.Enabled() {
			continue
		}
		v, found, err := r.opts.Registry.Validator(p.Class)
		if err != nil {
			r.finding(diagnostic.SeverityWarning, diagnostic.CodeValidatorLoad,
				fmt.Sprintf("validator for %s could not be loaded: %v", p.Class, err), p)
			continue
		}
		if !found {
			continue
		}
		inv := backend.Invocation{Scope: r.scope(p, nil), Logger: r.opts.Logger, Store: r.store}
		ok, err := callValidator(ctx, v, p, inv)
		if err != nil {
			r.finding(diagnostic.SeverityWarning, diagnostic.CodeValidatorLoad,
				fmt.Sprintf("validator for %s failed: %v", p.Class, err), p)
			continue
		}
		if !ok {
			invalid++
			r.finding(diagnostic.SeverityError, diagnostic.CodeValidatorInvalid,
				fmt.Sprintf("configuration of %s is invalid", p.ID), p)
		}
	}
	if invalid > 0 {
		r.result.Valid = false
		return Abort(fmt.Errorf("%w: %d invalid process configuration(s)", ErrValidationFailed, invalid))
	}
	return nil
}

func (r *run) acquire(ctx context.Context) (model.Model, error) {
	modelType := strings.TrimSpace(r.cfg.Input.ModelType)
	if modelType == "" {
		return nil, Abort(fmt.Errorf("%w: inputModelType", ErrMissingParameter))
	}
	loader, err := r.opts.Registry.Loader(modelType)
	if err != nil {
		return nil, Abort(fmt.Errorf("%w: %w", ErrNoModel, err))
	}
	m, err := loader.Load(ctx, r.cfg.Input.Parameters.Clone())
	if err != nil {
		return nil, Abort(fmt.Errorf("%w: %w", ErrNoModel, err))
	}
	if m == nil {
		return nil, Abort(ErrNoModel)
	}
	if err := m.LoadInformationFromExternalSources(ctx); err != nil {
		m.Shutdown()
		return nil, Abort(fmt.Errorf("%w: load external information: %w", ErrNoModel, err))
	}
	if err := m.PostprocessAfterLoadingAndValidate(ctx); err != nil {
		m.Shutdown()
		return nil, Abort(fmt.Errorf("%w: postprocess: %w", ErrNoModel, err))
	}
	r.log(telemetry.Entry{
		Category: telemetry.CategoryWorkflow,
		Message:  "input model acquired",
		Step:     string(telemetry.PhaseAcquire),
		Metadata: map[string]string{"modelType": modelType, "schemas": strconv.Itoa(len(m.SelectedSchemas()))},
	})
	return m, nil
}

// transformTree processes sibling transformers consuming m and descends into
// each of them whether it succeeded, failed or was skipped, so descendants of
// ignored transformers are marked ignored as well.
func (r *run) transformTree(ctx context.Context, m model.Model, ignore IgnoreSet, siblings []int) (IgnoreSet, error) {
	enabled := 0
	for _, idx := range siblings {
		if r.plan.Nodes[idx].Transformer.Enabled() {
			enabled++
		}
	}
	_, mutable := m.(model.Mutable)
	copyPerBranch := enabled > 1 || !mutable

	for _, idx := range siblings {
		node := r.plan.Nodes[idx]
		t := node.Transformer

		if !t.Enabled() {
			ignore = ignore.With(t.ID)
			r.processLog(t.Process, "transformer disabled", nil)
		}
		if ignore.Has(t.Input) {
			ignore = ignore.With(t.ID)
		}

		var out model.Model
		if ignore.Has(t.ID) {
			r.count(ctx, "transformer", "ignored")
		} else {
			var err error
			out, err = r.transform(ctx, t, m, copyPerBranch)
			if err != nil {
				if IsAbort(err) {
					return ignore, err
				}
				ignore = ignore.With(t.ID)
				r.result.Failed = append(r.result.Failed, t.ID)
				r.finding(diagnostic.SeverityError, diagnostic.CodeBranchFailure,
					fmt.Sprintf("transformer %s failed: %v", t.ID, err), t.Process)
				r.count(ctx, "transformer", "failure")
				out = nil
			} else {
				r.count(ctx, "transformer", "success")
			}
		}

		err := r.runTargets(ctx, out, idx, ignore)
		if err == nil {
			ignore, err = r.transformTree(ctx, out, ignore, node.Children)
		}
		if out != nil && out != m {
			out.Shutdown()
		}
		if err != nil {
			return ignore, err
		}
	}
	return ignore, nil
}

func (r *run) transform(ctx context.Context, t config.Transformer, m model.Model, copyInput bool) (out model.Model, err error) {
	ctx, span := r.opts.Tracer.Start(ctx, "pipeline.transform", trace.WithAttributes(
		attribute.String("process.id", t.ID),
		attribute.String("backend", t.Class),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	var input model.Mutable
	if copyInput {
		input, err = r.opts.Converter(m)
		if err != nil {
			return nil, fmt.Errorf("copy input model: %w", err)
		}
		r.result.Copies++
	} else {
		input = m.(model.Mutable)
	}
	releaseInput := func() {
		if copyInput {
			input.Shutdown()
		}
	}

	tr, err := r.opts.Registry.NewTransformer(t.Class)
	if err != nil {
		releaseInput()
		return nil, Abort(fmt.Errorf("%w: %w", ErrBackend, err))
	}
	inv := backend.Invocation{
		Scope:           r.scope(t.Process, nil),
		Logger:          r.opts.Logger,
		Store:           r.store,
		DiagnosticsOnly: t.Mode == config.ModeDiagnosticsOnly,
	}
	r.processLog(t.Process, "transformer start", nil)
	out, err = callTransformer(ctx, tr, inv, input)
	if err != nil {
		releaseInput()
		return nil, err
	}
	if copyInput && out != model.Model(input) {
		input.Shutdown()
	}
	r.processLog(t.Process, "transformer complete", nil)
	return out, nil
}

// runTargets executes the targets fed by the provider at node idx.
func (r *run) runTargets(ctx context.Context, m model.Model, idx int, ignore IgnoreSet) error {
	providerID := r.plan.Nodes[idx].ID
	targets := r.plan.TargetsOf(idx)
	if len(targets) == 0 {
		return nil
	}
	if ignore.Has(providerID) {
		for range targets {
			r.count(ctx, "target", "ignored")
		}
		r.log(telemetry.Entry{
			Category: telemetry.CategoryWorkflow,
			Message:  "targets skipped for ignored provider",
			Step:     string(telemetry.PhaseTargets),
			Process:  providerID,
		})
		return nil
	}
	for _, t := range targets {
		if !t.Enabled() {
			r.processLog(t.Process, "target disabled", nil)
			continue
		}
		if err := r.runTarget(ctx, m, providerID, t); err != nil {
			if IsAbort(err) {
				return err
			}
			r.result.Failed = append(r.result.Failed, targetLabel(t))
			r.finding(diagnostic.SeverityError, diagnostic.CodeTargetFailure,
				fmt.Sprintf("target %s failed for %s: %v", targetLabel(t), providerID, err), t.Process)
			r.count(ctx, "target", "failure")
			continue
		}
		r.count(ctx, "target", "success")
	}
	return nil
}

func (r *run) runTarget(ctx context.Context, m model.Model, providerID string, t config.Target) (err error) {
	ctx, span := r.opts.Tracer.Start(ctx, "pipeline.target", trace.WithAttributes(
		attribute.String("process.id", targetLabel(t)),
		attribute.String("backend", t.Class),
		attribute.String("provider", providerID),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	baseDir, _ := r.overlay.Global(overlay.ParamOutputDirectory)
	if strings.TrimSpace(baseDir) == "" {
		baseDir = "."
	}
	dir := filepath.Join(baseDir, providerID)
	scope := r.scope(t.Process, config.Parameters{overlay.ParamOutputDirectory: dir})

	caps := r.opts.Registry.Capabilities(t.Class)
	aggregating := caps.Has(backend.CapAggregating)
	deferred := caps.Has(backend.CapDeferred)

	for _, class := range r.aggOrder {
		r.aggregators[class].Reset()
	}

	tracker, terr := outputs.Snapshot(dir)
	if terr != nil {
		r.finding(diagnostic.SeverityError, diagnostic.CodeOutputObserver,
			fmt.Sprintf("output directory %s cannot be observed, post-processing skipped: %v", dir, terr), t.Process)
		tracker = nil
	}

	global, problems := newPackageFilter(scope.Global)
	specificFilter, more := newPackageFilter(scope.Specific)
	for _, p := range append(problems, more...) {
		r.finding(diagnostic.SeverityWarning, diagnostic.CodePackageFilter, p.Error(), t.Process)
	}

	order := scope.ParameterOr(ParamSortedOutput, "false")
	if _, ok := sortClasses(nil, order); !ok {
		r.finding(diagnostic.SeverityWarning, diagnostic.CodeSortedOutput,
			fmt.Sprintf("unrecognised %s value %q, classes are processed unsorted", ParamSortedOutput, order), t.Process)
	}

	runRecord := TargetRun{ProcessID: targetLabel(t), Backend: t.Class, Provider: providerID}
	var (
		processed []model.Package
		agg       backend.Aggregating
		failures  []error
	)
	for _, pkg := range m.SelectedSchemas() {
		if !global.accepts(pkg) {
			continue
		}
		// The aggregating singleton is bound once a package passes the global
		// filter, so WriteAll runs even when the target's own filter rejects
		// every package.
		if aggregating && agg == nil {
			inst, err := r.targetInstance(t.Class, true)
			if err != nil {
				return Abort(fmt.Errorf("%w: %w", ErrBackend, err))
			}
			agg = inst.(backend.Aggregating)
		}
		if !specificFilter.accepts(pkg) {
			continue
		}
		inst, err := r.targetInstance(t.Class, aggregating)
		if err != nil {
			return Abort(fmt.Errorf("%w: %w", ErrBackend, err))
		}

		classes, _ := sortClasses(model.ClassesWithDescendants(m, pkg), order)
		inv := backend.Invocation{
			Scope:           scope,
			Logger:          r.opts.Logger,
			Store:           r.store,
			Package:         pkg,
			Model:           m,
			DiagnosticsOnly: t.Mode == config.ModeDiagnosticsOnly,
		}
		if err := callTarget(ctx, inst, inv, classes); err != nil {
			failures = append(failures, fmt.Errorf("package %s: %w", pkg.Name(), err))
			continue
		}
		processed = append(processed, pkg)
		runRecord.Packages = append(runRecord.Packages, pkg.Name())

		if !aggregating && !deferred {
			r.postProcess(ctx, tracker, t, providerID, pkg.Name())
		}
		r.rebaseline(tracker, t.Process)
	}

	if agg != nil {
		if err := callWriteAll(ctx, agg); err != nil {
			failures = append(failures, fmt.Errorf("write all: %w", err))
		} else {
			var pkgName string
			if len(processed) == 1 {
				pkgName = processed[0].Name()
			}
			r.postProcess(ctx, tracker, t, providerID, pkgName)
			r.rebaseline(tracker, t.Process)
		}
	}

	if deferred && len(processed) > 0 {
		r.deferred = append(r.deferred, deferredTarget{target: t, dir: dir})
	}
	r.result.Targets = append(r.result.Targets, runRecord)
	r.processLog(t.Process, "target complete", map[string]string{
		"provider": providerID,
		"packages": strings.Join(runRecord.Packages, ","),
	})
	return errors.Join(failures...)
}

// targetInstance returns a fresh instance, or the run's singleton for
// aggregating backends.
func (r *run) targetInstance(class string, aggregating bool) (backend.Target, error) {
	if aggregating {
		if a, ok := r.aggregators[class]; ok {
			return a, nil
		}
	}
	inst, err := r.opts.Registry.NewTarget(class)
	if err != nil {
		return nil, err
	}
	if aggregating {
		a, ok := inst.(backend.Aggregating)
		if !ok {
			return nil, fmt.Errorf("%w: %s is not aggregating", backend.ErrCapability, class)
		}
		r.aggregators[class] = a
		r.aggOrder = append(r.aggOrder, class)
	}
	return inst, nil
}

func (r *run) postProcess(ctx context.Context, tracker *outputs.Tracker, t config.Target, providerID, pkgName string) {
	if tracker == nil {
		return
	}
	files, err := tracker.Diff()
	if err != nil {
		r.finding(diagnostic.SeverityError, diagnostic.CodeOutputObserver,
			fmt.Sprintf("diff of %s failed: %v", tracker.Dir(), err), t.Process)
		return
	}
	if len(files) == 0 {
		return
	}
	out := Output{
		ProcessID: targetLabel(t),
		Backend:   t.Class,
		Provider:  providerID,
		Package:   pkgName,
		Directory: tracker.Dir(),
		Files:     files,
	}
	r.result.Outputs = append(r.result.Outputs, out)
	if r.opts.PostProcessor == nil {
		return
	}
	if err := r.opts.PostProcessor.PostProcess(ctx, out); err != nil {
		r.finding(diagnostic.SeverityError, diagnostic.CodeOutputObserver,
			fmt.Sprintf("post-processing of %s failed: %v", tracker.Dir(), err), t.Process)
	}
}

func (r *run) rebaseline(tracker *outputs.Tracker, p config.Process) {
	if tracker == nil {
		return
	}
	if err := tracker.Rebaseline(); err != nil {
		r.finding(diagnostic.SeverityError, diagnostic.CodeOutputObserver,
			fmt.Sprintf("re-snapshot of %s failed: %v", tracker.Dir(), err), p)
	}
}

// runDeferred hands every deferred target that produced output to a fresh
// instance after the model has been released.
func (r *run) runDeferred(ctx context.Context) error {
	for _, d := range r.deferred {
		inst, err := r.opts.Registry.NewDeferred(d.target.Class)
		if err != nil {
			return Abort(fmt.Errorf("%w: %w", ErrBackend, err))
		}
		inv := backend.Invocation{
			Scope:  r.scope(d.target.Process, config.Parameters{overlay.ParamOutputDirectory: d.dir}),
			Logger: r.opts.Logger,
			Store:  r.store,
		}
		if err := callWriteOutput(ctx, inst, inv); err != nil {
			r.finding(diagnostic.SeverityError, diagnostic.CodeDeferredOutput,
				fmt.Sprintf("deferred output of %s failed: %v", targetLabel(d.target), err), d.target.Process)
			continue
		}
		r.result.Deferred = append(r.result.Deferred, targetLabel(d.target))
	}
	return nil
}

// scope builds the invocation scope of p and reports the findings of its map
// entries once per process.
func (r *run) scope(p config.Process, runtime config.Parameters) *overlay.Scope {
	s := r.overlay.Scope(overlay.Request{
		Process:             p,
		DefaultEncodingRule: r.opts.Registry.DefaultEncodingRule(p.Class),
		Runtime:             runtime,
	})
	key := p.Class + "/" + p.ID
	if !r.reported[key] {
		r.reported[key] = true
		r.report(s.Diagnostics(), p.ID, p.Class)
		for _, o := range s.Overrides() {
			r.log(telemetry.Entry{
				Category: telemetry.CategoryDiagnostic,
				Message:  o,
				Severity: telemetry.SeverityDebug,
				Process:  p.ID,
				Backend:  p.Class,
			})
		}
	}
	return s
}

func (r *run) finding(sev diagnostic.Severity, code, message string, p config.Process) {
	var d diagnostic.Diagnostics
	switch sev {
	case diagnostic.SeverityError:
		d.AddError(code, message, p.ID)
	case diagnostic.SeverityWarning:
		d.AddWarning(code, message, p.ID)
	default:
		d.AddInfo(code, message, p.ID)
	}
	r.report(d, p.ID, p.Class)
}

func (r *run) report(d diagnostic.Diagnostics, processID, class string) {
	for _, item := range d.All() {
		severity := telemetry.SeverityInfo
		switch item.Severity {
		case diagnostic.SeverityError:
			severity = telemetry.SeverityError
		case diagnostic.SeverityWarning:
			severity = telemetry.SeverityWarn
		}
		r.log(telemetry.Entry{
			Category: telemetry.CategoryDiagnostic,
			Message:  item.Message,
			Severity: severity,
			Process:  processID,
			Backend:  class,
			Metadata: map[string]string{"code": item.Code, "subject": item.Subject},
		})
	}
	r.result.Diagnostics.Merge(d)
}

func (r *run) processLog(p config.Process, message string, metadata map[string]string) {
	r.log(telemetry.Entry{
		Category: telemetry.CategoryProcess,
		Message:  message,
		Process:  p.ID,
		Backend:  p.Class,
		Metadata: metadata,
	})
}

func (r *run) log(entry telemetry.Entry) {
	if err := r.opts.Logger.Emit(entry); err != nil {
		log.Printf("pipeline: structured log emit failed: %v", err)
	}
}

func (r *run) count(ctx context.Context, kind, outcome string) {
	r.processes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("outcome", outcome),
	))
}
