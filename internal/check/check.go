// Package check implements the verification harness: a pipeline check with
// fixed reference values and demo checks that pattern-match process output.
package check

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/sirupsen/logrus"
)

// Result is the outcome of one check.
type Result struct {
	Name     string
	Passed   bool
	Failures []string // failed assertions, empty when Passed
	Err      error    // the check could not run to completion
	Duration time.Duration
}

func (r *Result) failf(format string, args ...any) {
	r.Failures = append(r.Failures, fmt.Sprintf(format, args...))
}

func (r *Result) finish(start time.Time) Result {
	r.Passed = r.Err == nil && len(r.Failures) == 0
	r.Duration = time.Since(start)
	return *r
}

// Checker is a single independent check.
type Checker interface {
	Name() string
	Run(ctx context.Context) Result
}

// Broken stands in for a check whose setup failed, so it still shows up
// in the report as an error while the other checks run.
type Broken struct {
	CheckName string
	Err       error
}

func (b Broken) Name() string { return b.CheckName }

func (b Broken) Run(context.Context) Result {
	return Result{Name: b.CheckName, Err: b.Err}
}

// RunAll runs every check in order. A failing check does not stop the others.
func RunAll(ctx context.Context, log logrus.FieldLogger, checks ...Checker) []Result {
	results := make([]Result, 0, len(checks))
	for _, c := range checks {
		if ctx.Err() != nil {
			results = append(results, Result{Name: c.Name(), Err: ctx.Err()})
			continue
		}
		log.WithField("check", c.Name()).Debug("running")
		res := c.Run(ctx)
		entry := log.WithFields(logrus.Fields{"check": res.Name, "duration": res.Duration.Round(time.Millisecond)})
		switch {
		case res.Err != nil:
			entry.WithError(res.Err).Error("errored")
		case !res.Passed:
			entry.WithField("failures", len(res.Failures)).Warn("failed")
		default:
			entry.Info("passed")
		}
		results = append(results, res)
	}
	return results
}

// AllPassed reports whether every result passed.
func AllPassed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}

// Report prints a summary table followed by failure details.
func Report(w io.Writer, results []Result) {
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "CHECK\tSTATUS\tDURATION")
	fmt.Fprintln(tw, "-----\t------\t--------")
	for _, r := range results {
		status := "PASS"
		if r.Err != nil {
			status = "ERROR"
		} else if !r.Passed {
			status = "FAIL"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Name, status, r.Duration.Round(time.Millisecond))
	}
	tw.Flush()

	for _, r := range results {
		if r.Passed {
			continue
		}
		fmt.Fprintf(w, "\n%s:\n", r.Name)
		if r.Err != nil {
			fmt.Fprintf(w, "  error: %v\n", r.Err)
		}
		for _, f := range r.Failures {
			fmt.Fprintf(w, "  %s\n", strings.ReplaceAll(f, "\n", "\n  "))
		}
	}
}
