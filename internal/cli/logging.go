package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ShapeChange/ShapeChange-sub001/pkg/pipeline"
	"github.com/ShapeChange/ShapeChange-sub001/pkg/telemetry"
)

func logWorkflowStart(logger telemetry.StructuredLogger, step string, metadata map[string]string) {
	logWorkflowEntry(logger, step, fmt.Sprintf("%s workflow started", step), telemetry.SeverityInfo, metadata, nil)
}

func logWorkflowSuccess(logger telemetry.StructuredLogger, step string, metadata map[string]string) {
	logWorkflowEntry(logger, step, fmt.Sprintf("%s workflow completed", step), telemetry.SeverityInfo, metadata, nil)
}

func logWorkflowFailure(logger telemetry.StructuredLogger, step string, metadata map[string]string, err error) {
	logWorkflowEntry(logger, step, fmt.Sprintf("%s workflow failed", step), telemetry.SeverityError, metadata, err)
}

func logWorkflowWarning(logger telemetry.StructuredLogger, step, message string, err error) {
	logWorkflowEntry(logger, step, message, telemetry.SeverityWarn, nil, err)
}

func logWorkflowEntry(logger telemetry.StructuredLogger, step, message string, severity telemetry.Severity, metadata map[string]string, err error) {
	if logger == nil {
		return
	}
	_ = logger.Emit(telemetry.Entry{
		Category: telemetry.CategoryWorkflow,
		Message:  message,
		Severity: severity,
		Step:     step,
		Metadata: cloneMetadata(metadata),
		Error:    err,
	})
}

// outputLogger records the files each target wrote at debug level.
func outputLogger(logger telemetry.StructuredLogger) pipeline.PostProcessor {
	return pipeline.PostProcessorFunc(func(_ context.Context, out pipeline.Output) error {
		metadata := map[string]string{
			"directory": out.Directory,
			"files":     strings.Join(out.Files, ","),
			"count":     strconv.Itoa(len(out.Files)),
		}
		if out.Package != "" {
			metadata["package"] = out.Package
		}
		return logger.Emit(telemetry.Entry{
			Category: telemetry.CategoryProcess,
			Message:  "target output written",
			Severity: telemetry.SeverityDebug,
			Process:  out.ProcessID,
			Backend:  out.Backend,
			Metadata: metadata,
		})
	})
}

func cloneMetadata(src map[string]string) map[string]string {
	if len(src) == 0 {
		return map[string]string{}
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
