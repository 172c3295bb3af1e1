package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/ShapeChange/ShapeChange-sub001/pkg/pipeline"
)

const (
	outputText = "text"
	outputJSON = "json"
)

type resultTarget struct {
	ID       string   `json:"id"`
	Backend  string   `json:"backend"`
	Provider string   `json:"provider"`
	Packages []string `json:"packages,omitempty"`
	Files    int      `json:"files"`
}

type resultSummary struct {
	RunID    string         `json:"runId"`
	Valid    bool           `json:"valid"`
	Targets  []resultTarget `json:"targets"`
	Ignored  []string       `json:"ignored,omitempty"`
	Failed   []string       `json:"failed,omitempty"`
	Deferred []string       `json:"deferred,omitempty"`
	Copies   int            `json:"modelCopies"`
}

func summarise(result *pipeline.Result) resultSummary {
	summary := resultSummary{
		RunID:    result.RunID,
		Valid:    result.Valid,
		Targets:  []resultTarget{},
		Ignored:  result.Ignored,
		Failed:   result.Failed,
		Deferred: result.Deferred,
		Copies:   result.Copies,
	}
	files := map[string]int{}
	for _, out := range result.Outputs {
		files[out.ProcessID+"\x00"+out.Provider] += len(out.Files)
	}
	for _, t := range result.Targets {
		summary.Targets = append(summary.Targets, resultTarget{
			ID:       t.ProcessID,
			Backend:  t.Backend,
			Provider: t.Provider,
			Packages: t.Packages,
			Files:    files[t.ProcessID+"\x00"+t.Provider],
		})
	}
	return summary
}

func printResult(w io.Writer, format string, result *pipeline.Result) error {
	if result == nil {
		return nil
	}
	summary := summarise(result)

	switch strings.ToLower(format) {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	case "", outputText:
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "TARGET\tBACKEND\tPROVIDER\tPACKAGES\tFILES")
		for _, t := range summary.Targets {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", t.ID, t.Backend, t.Provider, strings.Join(t.Packages, ","), t.Files)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		if len(summary.Ignored) > 0 {
			fmt.Fprintf(w, "ignored: %s\n", strings.Join(summary.Ignored, ", "))
		}
		if len(summary.Failed) > 0 {
			fmt.Fprintf(w, "failed: %s\n", strings.Join(summary.Failed, ", "))
		}
		_, err := fmt.Fprintf(w, "run %s completed\n", summary.RunID)
		return err
	default:
		return fmt.Errorf("%w: unsupported output format %q", ErrUsage, format)
	}
}
