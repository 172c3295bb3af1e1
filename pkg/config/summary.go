package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
)

// Supported summary output formats.
const (
	SummaryFormatText = "text"
	SummaryFormatJSON = "json"
)

// FormatSummary renders the process tree of cfg in the requested format.
func FormatSummary(cfg *Configuration, format string) (string, error) {
	if cfg == nil {
		return "", fmt.Errorf("configuration is nil")
	}

	switch strings.ToLower(format) {
	case "", SummaryFormatText:
		return formatSummaryText(cfg)
	case SummaryFormatJSON:
		return formatSummaryJSON(cfg)
	default:
		return "", fmt.Errorf("unsupported summary format %q", format)
	}
}

type summaryRow struct {
	Kind   string `json:"kind"`
	ID     string `json:"id"`
	Class  string `json:"class"`
	Mode   Mode   `json:"mode"`
	Inputs string `json:"inputs"`
	Depth  int    `json:"depth"`
}

// summaryRows lists the processes depth-first starting at the input model.
func summaryRows(cfg *Configuration) []summaryRow {
	var rows []summaryRow
	visited := map[string]bool{}
	var walk func(provider string, depth int)
	walk = func(provider string, depth int) {
		if visited[provider] {
			return
		}
		visited[provider] = true
		for _, t := range cfg.TargetsFed(provider) {
			rows = append(rows, summaryRow{Kind: "target", ID: t.ID, Class: t.Class, Mode: t.Mode, Inputs: provider, Depth: depth})
		}
		for _, t := range cfg.TransformersFed(provider) {
			rows = append(rows, summaryRow{Kind: "transformer", ID: t.ID, Class: t.Class, Mode: t.Mode, Inputs: t.Input, Depth: depth})
			walk(t.ID, depth+1)
		}
	}
	walk(cfg.Input.ID, 0)
	return rows
}

func formatSummaryText(cfg *Configuration) (string, error) {
	var buf bytes.Buffer
	tw := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)

	if cfg.SourcePath != "" {
		fmt.Fprintf(tw, "Source:\t%s\n", cfg.SourcePath)
	}
	fmt.Fprintf(tw, "Input:\t%s (%s)\n", cfg.Input.ID, cfg.Input.ModelType)
	if len(cfg.Includes) > 0 {
		fmt.Fprintf(tw, "Includes:\t%s\n", strings.Join(cfg.Includes, ", "))
	}
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "Kind\tID\tClass\tMode\tInput")

	for _, row := range summaryRows(cfg) {
		indent := strings.Repeat("  ", row.Depth)
		fmt.Fprintf(tw, "%s%s\t%s\t%s\t%s\t%s\n", indent, row.Kind, row.ID, row.Class, row.Mode, row.Inputs)
	}

	if err := tw.Flush(); err != nil {
		return "", fmt.Errorf("flush summary: %w", err)
	}
	return buf.String(), nil
}

func formatSummaryJSON(cfg *Configuration) (string, error) {
	payload := map[string]interface{}{
		"sourcePath": cfg.SourcePath,
		"input":      cfg.Input.ID,
		"modelType":  cfg.Input.ModelType,
		"processes":  summaryRows(cfg),
	}
	if len(cfg.Includes) > 0 {
		payload["includes"] = cfg.Includes
	}

	encoded, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal summary json: %w", err)
	}
	return string(encoded), nil
}
