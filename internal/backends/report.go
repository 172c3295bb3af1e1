package backends

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ShapeChange/ShapeChange-sub001/pkg/backend"
	"github.com/ShapeChange/ShapeChange-sub001/pkg/model"
)

// ReportFile is the base name of the document the deferred report target writes.
const ReportFile = "report.txt"

// deferredReport records class counts while the model is available and
// writes the report after the model has been released.
type deferredReport struct {
	inv    backend.Invocation
	counts map[string]int
}

func newDeferredReport() (*deferredReport, error) { return &deferredReport{}, nil }

func (d *deferredReport) Name() string { return DeferredReportID }

func (d *deferredReport) Initialise(_ context.Context, inv backend.Invocation) error {
	d.inv = inv
	d.counts = map[string]int{}
	return nil
}

func (d *deferredReport) Process(_ context.Context, c model.Class) error {
	d.counts[d.inv.Package.Name()]++
	return nil
}

// Write hands the counts of this package to the output phase.
func (d *deferredReport) Write(context.Context) error {
	if d.inv.DiagnosticsOnly {
		return nil
	}
	key := reportKey(d.inv)
	records, _ := d.inv.Store.Load(key)
	merged, _ := records.(map[string]int)
	if merged == nil {
		merged = map[string]int{}
	}
	for pkg, n := range d.counts {
		merged[pkg] += n
	}
	d.inv.Store.Save(key, merged)
	return nil
}

func (d *deferredReport) WriteOutput(_ context.Context, inv backend.Invocation) error {
	records, ok := inv.Store.Load(reportKey(inv))
	if !ok {
		return nil
	}
	counts := records.(map[string]int)
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	fmt.Fprintf(&b, "report of %s\n", inv.Scope.ProcessID())
	for _, name := range names {
		fmt.Fprintf(&b, "%s: %d classes\n", name, counts[name])
	}
	if err := os.WriteFile(filepath.Join(inv.OutputDirectory(), OutputName(inv.Scope.ProcessID(), ReportFile)), []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// reportKey separates the records of every target configuration and output
// directory sharing one run store.
func reportKey(inv backend.Invocation) string {
	return DeferredReportID + "/" + inv.Scope.ProcessID() + "/" + inv.OutputDirectory()
}
