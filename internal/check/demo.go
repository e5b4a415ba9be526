package check

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/andresmejia3/facecheck/internal/utils"
)

// DemoCheck spawns a demo process, waits for it and looks for a substring in its stdout.
type DemoCheck struct {
	CheckName string
	Argv      []string
	Env       []string // appended to the current environment
	Contains  string
	Timeout   time.Duration // 0 waits until the process exits
	Stderr    io.Writer     // receives the demo's stderr after it exits; nil discards
}

func (d *DemoCheck) Name() string { return d.CheckName }

func (d *DemoCheck) Run(ctx context.Context) Result {
	start := time.Now()
	res := Result{Name: d.Name()}

	if len(d.Argv) == 0 {
		res.Err = errors.New("demo command is empty")
		return res.finish(start)
	}

	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	cmd := utils.NewSafeCommand(ctx, d.Argv[0], d.Argv[1:]...)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if len(d.Env) > 0 {
		cmd.Env = append(os.Environ(), d.Env...)
	}

	err := cmd.Run()

	if d.Stderr != nil && cmd.Stderr.Len() > 0 {
		d.Stderr.Write(cmd.Stderr.Bytes())
	}

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			res.Err = fmt.Errorf("start %s: %w", d.Argv[0], err)
			return res.finish(start)
		}
		exitCode = exitErr.ExitCode()
	}
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		res.Err = fmt.Errorf("demo timed out after %s", d.Timeout)
		return res.finish(start)
	case ctx.Err() != nil:
		res.Err = fmt.Errorf("demo interrupted: %w", ctx.Err())
		return res.finish(start)
	}

	if !strings.Contains(stdout.String(), d.Contains) {
		res.failf("stdout does not contain %q (exit code %d)\nstdout:\n%s", d.Contains, exitCode, strings.TrimRight(stdout.String(), "\n"))
	}
	return res.finish(start)
}
