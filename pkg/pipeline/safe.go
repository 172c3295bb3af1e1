package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/ShapeChange/ShapeChange-sub001/pkg/backend"
	"github.com/ShapeChange/ShapeChange-sub001/pkg/config"
	"github.com/ShapeChange/ShapeChange-sub001/pkg/model"
)

// The call helpers turn a panic inside backend code into an error so one
// failing backend cannot unwind the run.

func recoverInto(err *error) {
	if rec := recover(); rec != nil {
		*err = fmt.Errorf("%w: %v", ErrBackendPanic, rec)
	}
}

func callTransformer(ctx context.Context, tr backend.Transformer, inv backend.Invocation, input model.Mutable) (out model.Model, err error) {
	defer recoverInto(&err)
	defer tr.Shutdown()
	if err := tr.Initialise(ctx, inv); err != nil {
		return nil, fmt.Errorf("initialise: %w", err)
	}
	out, err = tr.Transform(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("transform: %w", err)
	}
	if out == nil {
		return nil, errors.New("transform returned no model")
	}
	return out, nil
}

func callTarget(ctx context.Context, t backend.Target, inv backend.Invocation, classes []model.Class) (err error) {
	defer recoverInto(&err)
	if err := t.Initialise(ctx, inv); err != nil {
		return fmt.Errorf("initialise %s: %w", t.Name(), err)
	}
	for _, c := range classes {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := t.Process(ctx, c); err != nil {
			return fmt.Errorf("process class %s: %w", c.Name(), err)
		}
	}
	if err := t.Write(ctx); err != nil {
		return fmt.Errorf("write %s: %w", t.Name(), err)
	}
	return nil
}

func callWriteAll(ctx context.Context, a backend.Aggregating) (err error) {
	defer recoverInto(&err)
	return a.WriteAll(ctx)
}

func callWriteOutput(ctx context.Context, d backend.Deferred, inv backend.Invocation) (err error) {
	defer recoverInto(&err)
	return d.WriteOutput(ctx, inv)
}

func callValidator(ctx context.Context, v backend.Validator, p config.Process, inv backend.Invocation) (ok bool, err error) {
	defer recoverInto(&err)
	return v.IsValid(ctx, p, inv), nil
}
