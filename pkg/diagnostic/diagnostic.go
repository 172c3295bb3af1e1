package diagnostic

import (
	"errors"
	"fmt"
	"strings"
)

// Codes shared by the components that collect findings.
const (
	CodeRuleSetConflict    = "rule-set-conflict"
	CodeParamSyntax        = "map-entry-param-syntax"
	CodeDuplicateParam     = "map-entry-duplicate-param"
	CodeDuplicateCharacter = "map-entry-duplicate-characteristic"
	CodeSortedOutput       = "sorted-output-value"
	CodeValidatorLoad      = "validator-load"
	CodeValidatorInvalid   = "validator-invalid"
	CodeOutputObserver     = "output-observer"
	CodeBranchFailure      = "branch-failure"
	CodeTargetFailure      = "target-failure"
	CodePackageFilter      = "package-filter"
	CodeDeferredOutput     = "deferred-output"
)

// Severity represents the severity level of a finding.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

// String returns a human-readable severity name.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// Diagnostic represents a single collected finding.
type Diagnostic struct {
	Severity Severity
	// Code identifies the kind of finding.
	Code string
	// Message is the human-readable description.
	Message string
	// Subject names the rule set, map entry or process the finding concerns.
	Subject string
}

// Diagnostics holds findings that do not stop processing.
type Diagnostics struct {
	Errors   []Diagnostic
	Warnings []Diagnostic
	Infos    []Diagnostic
}

// AddError adds an error finding.
func (d *Diagnostics) AddError(code, message, subject string) {
	d.Errors = append(d.Errors, Diagnostic{Severity: SeverityError, Code: code, Message: message, Subject: subject})
}

// AddWarning adds a warning finding.
func (d *Diagnostics) AddWarning(code, message, subject string) {
	d.Warnings = append(d.Warnings, Diagnostic{Severity: SeverityWarning, Code: code, Message: message, Subject: subject})
}

// AddInfo adds an informational finding.
func (d *Diagnostics) AddInfo(code, message, subject string) {
	d.Infos = append(d.Infos, Diagnostic{Severity: SeverityInfo, Code: code, Message: message, Subject: subject})
}

// HasErrors reports whether any error finding was collected.
func (d Diagnostics) HasErrors() bool {
	return len(d.Errors) > 0
}

// Len returns the total number of findings.
func (d Diagnostics) Len() int {
	return len(d.Errors) + len(d.Warnings) + len(d.Infos)
}

// Merge appends the findings of other.
func (d *Diagnostics) Merge(other Diagnostics) {
	d.Errors = append(d.Errors, other.Errors...)
	d.Warnings = append(d.Warnings, other.Warnings...)
	d.Infos = append(d.Infos, other.Infos...)
}

// All returns every finding ordered errors first, then warnings, then infos.
func (d Diagnostics) All() []Diagnostic {
	out := make([]Diagnostic, 0, d.Len())
	out = append(out, d.Errors...)
	out = append(out, d.Warnings...)
	out = append(out, d.Infos...)
	return out
}

// WithCode returns the findings carrying code.
func (d Diagnostics) WithCode(code string) []Diagnostic {
	var out []Diagnostic
	for _, item := range d.All() {
		if item.Code == code {
			out = append(out, item)
		}
	}
	return out
}

// Error returns a combined error from all error findings, or nil.
func (d Diagnostics) Error() error {
	if !d.HasErrors() {
		return nil
	}
	parts := make([]string, 0, len(d.Errors))
	for _, e := range d.Errors {
		parts = append(parts, e.String())
	}
	return errors.New(strings.Join(parts, "; "))
}

// String returns a formatted finding.
func (d Diagnostic) String() string {
	msg := d.Message
	if d.Code != "" {
		msg = fmt.Sprintf("[%s] %s", d.Code, msg)
	}
	if d.Subject != "" {
		return d.Subject + ": " + msg
	}
	return msg
}
