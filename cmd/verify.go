package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/andresmejia3/facecheck/internal/check"
	"github.com/andresmejia3/facecheck/internal/config"
)

var verifySkip []string

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Run the pipeline check and both demo checks against the reference values",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runVerify(cmd.Context(), Cfg, verifySkip)
	},
}

func init() {
	verifyCmd.Flags().StringSliceVar(&verifySkip, "skip", nil, "Checks to skip: pipeline, compare, classifier")
	rootCmd.AddCommand(verifyCmd)
}

// errChecksFailed keeps the exit status non-zero without repeating the report.
var errChecksFailed = errors.New("one or more checks failed")

func runVerify(ctx context.Context, cfg *config.Config, skip []string) error {
	// 1. Resolve the binary the default demo commands point at
	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}

	var checks []check.Checker

	// 2. Pipeline check needs both models loaded in this process.
	// A setup failure is reported as that check's error; the demos still run.
	if !slices.Contains(skip, "pipeline") {
		eng, err := newFaceEngine(ctx, cfg)
		if err != nil {
			checks = append(checks, check.Broken{CheckName: "pipeline", Err: err})
		} else {
			defer eng.Close()
			checks = append(checks, &check.PipelineCheck{
				Pipeline:  eng.Pipeline,
				ImagePath: cfg.Resolve(cfg.Checks.Pipeline.Image),
				Expect:    cfg.Checks.Pipeline,
			})
		}
	}

	// 3. Demo checks run as child processes; they inherit our config
	env := []string{"FACECHECK_ROOT=" + cfg.Root}
	if cfgPath != "" {
		env = append(env, "FACECHECK_CONFIG="+cfgPath)
	}
	for _, d := range []struct {
		name string
		demo config.Demo
	}{
		{"compare", cfg.Checks.Compare},
		{"classifier", cfg.Checks.Classifier},
	} {
		if slices.Contains(skip, d.name) {
			continue
		}
		timeout, _ := config.ParseTimeout(d.demo.Timeout) // validated on load
		checks = append(checks, &check.DemoCheck{
			CheckName: d.name,
			Argv:      cfg.ExpandCommand(d.demo.Command, self),
			Env:       env,
			Contains:  d.demo.Contains,
			Timeout:   timeout,
			Stderr:    os.Stderr,
		})
	}

	if len(checks) == 0 {
		return errors.New("every check was skipped")
	}

	// 4. Run & Report
	fmt.Fprintf(os.Stderr, "🔍 Running %d checks...\n", len(checks))
	results := check.RunAll(ctx, Log, checks...)
	fmt.Println()
	check.Report(os.Stdout, results)

	if !check.AllPassed(results) {
		return errChecksFailed
	}
	fmt.Println("\n✅ All checks passed.")
	return nil
}
