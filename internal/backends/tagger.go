package backends

import (
	"context"
	"fmt"
	"strings"

	"github.com/ShapeChange/ShapeChange-sub001/pkg/backend"
	"github.com/ShapeChange/ShapeChange-sub001/pkg/config"
	"github.com/ShapeChange/ShapeChange-sub001/pkg/model"
	"github.com/ShapeChange/ShapeChange-sub001/pkg/model/memory"
	"github.com/ShapeChange/ShapeChange-sub001/pkg/telemetry"
)

// Tagger parameters.
const (
	ParamTag         = "tag"
	ParamValue       = "value"
	ParamClassFilter = "classNameRegex"
)

// tagger sets a tagged value on every class of the working model.
type tagger struct {
	inv backend.Invocation
}

func newTagger() (*tagger, error) { return &tagger{}, nil }

func (t *tagger) Initialise(_ context.Context, inv backend.Invocation) error {
	t.inv = inv
	return nil
}

func (t *tagger) Transform(ctx context.Context, m model.Mutable) (model.Model, error) {
	mm, ok := m.(*memory.Model)
	if !ok {
		return nil, fmt.Errorf("%w: tagger needs the in-memory model, got %T", model.ErrNotConvertible, m)
	}
	tag := strings.TrimSpace(t.inv.Scope.ParameterOr(ParamTag, ""))
	if tag == "" {
		return nil, fmt.Errorf("parameter %s is required", ParamTag)
	}
	value := t.inv.Scope.ParameterOr(ParamValue, t.inv.Scope.ProcessID())
	match, err := fullMatch(t.inv.Scope.ParameterOr(ParamClassFilter, ""))
	if err != nil {
		return nil, fmt.Errorf("parameter %s: %w", ParamClassFilter, err)
	}

	tagged := 0
	mm.EachClass(func(c *memory.Class) {
		if match != nil && !match.MatchString(c.Name()) {
			return
		}
		c.SetTaggedValue(tag, value)
		tagged++
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if t.inv.Logger != nil {
		_ = t.inv.Logger.Emit(telemetry.Entry{
			Category: telemetry.CategoryProcess,
			Message:  "classes tagged",
			Severity: telemetry.SeverityDebug,
			Process:  t.inv.Scope.ProcessID(),
			Backend:  TaggerID,
			Metadata: map[string]string{"tag": tag, "count": fmt.Sprint(tagged)},
		})
	}
	return mm, nil
}

func (t *tagger) Shutdown() {}

// taggerValidator rejects tagger configurations without a tag name or with
// a class filter that does not compile.
type taggerValidator struct{}

func newTaggerValidator() (taggerValidator, error) { return taggerValidator{}, nil }

func (taggerValidator) IsValid(_ context.Context, p config.Process, inv backend.Invocation) bool {
	var problems []string
	if strings.TrimSpace(inv.Scope.ParameterOr(ParamTag, "")) == "" {
		problems = append(problems, fmt.Sprintf("parameter %s is required", ParamTag))
	}
	if _, err := fullMatch(inv.Scope.ParameterOr(ParamClassFilter, "")); err != nil {
		problems = append(problems, fmt.Sprintf("parameter %s: %v", ParamClassFilter, err))
	}
	for _, problem := range problems {
		if inv.Logger != nil {
			_ = inv.Logger.Emit(telemetry.Entry{
				Category: telemetry.CategoryDiagnostic,
				Message:  problem,
				Severity: telemetry.SeverityError,
				Process:  p.ID,
				Backend:  TaggerID,
			})
		}
	}
	return len(problems) == 0
}
