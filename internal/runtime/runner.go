// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"

	"kiln-cli/internal/container"
)

type (
	// RunSpec describes one invocation of a provisioned environment image.
	RunSpec struct {
		// ImageTag is the environment image to run.
		ImageTag string
		// EnvFiles are dotenv files loaded into the container environment,
		// in order.
		EnvFiles []string
		// EnvOverrides are KEY=VALUE (or bare KEY) pairs that win over any
		// env file.
		EnvOverrides []string
		// Argv overrides the baked entry command for this run only. The
		// image is not modified; empty means run the image CMD.
		Argv []string
		// Stdin is forwarded to the container. Nil disables stdin.
		Stdin io.Reader
		// Stdout and Stderr receive the container streams unbuffered.
		// They default to the process's own streams.
		Stdout io.Writer
		Stderr io.Writer
	}

	// Runner executes environment images through a container engine.
	Runner struct {
		engine container.Engine
		logger *log.Logger
	}

	// RunnerOption configures a Runner.
	RunnerOption func(*Runner)
)

// WithRunnerLogger overrides the default logger.
func WithRunnerLogger(logger *log.Logger) RunnerOption {
	return func(r *Runner) { r.logger = logger }
}

// NewRunner creates a Runner backed by the given engine.
func NewRunner(engine container.Engine, opts ...RunnerOption) *Runner {
	r := &Runner{engine: engine, logger: log.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run starts the environment's test command and waits for it to finish. The
// container is ephemeral: it is removed after exit and nothing persists
// between runs. The test command's exit code is returned verbatim in the
// Result; a non-zero code is not an error.
func (r *Runner) Run(ctx context.Context, spec RunSpec) (*Result, error) {
	if spec.ImageTag == "" {
		return nil, fmt.Errorf("no environment image specified")
	}

	env, err := BuildEnv(spec.EnvFiles, spec.EnvOverrides)
	if err != nil {
		return nil, err
	}

	stdout := spec.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	stderr := spec.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	r.logger.Debug("starting test run", "image", spec.ImageTag, "argv-override", len(spec.Argv) > 0)

	runResult, err := r.engine.Run(ctx, container.RunOptions{
		Image:   spec.ImageTag,
		Command: spec.Argv,
		Env:     env,
		Remove:  true,
		Stdin:   spec.Stdin,
		Stdout:  stdout,
		Stderr:  stderr,
	})
	if err != nil {
		return NewErrorResult(125, err), err
	}

	var result *Result
	switch {
	case runResult.Error != nil:
		result = NewErrorResult(ExitCode(runResult.ExitCode), runResult.Error)
	case runResult.ExitCode == 0:
		result = NewSuccessResult()
	default:
		result = NewExitCodeResult(ExitCode(runResult.ExitCode))
	}
	result.ContainerID = runResult.ContainerID

	if valid, errs := result.ExitCode.IsValid(); !valid {
		return result, errs[0]
	}

	r.logger.Debug("test run finished", "exit-code", result.ExitCode, "verdict", result.Verdict())
	return result, nil
}
