// SPDX-License-Identifier: MPL-2.0

package runtime

// Verdict classifies a completed test run.
type Verdict string

const (
	// VerdictPassed means the test command exited zero.
	VerdictPassed Verdict = "passed"
	// VerdictFailed means the test command exited non-zero.
	VerdictFailed Verdict = "failed"
	// VerdictError means the run never produced a test verdict: the engine
	// failed before or while starting the command.
	VerdictError Verdict = "error"
)

// Result is the outcome of running an environment's test command.
type Result struct {
	// ExitCode is the test command's exit status, propagated verbatim.
	ExitCode ExitCode
	// ContainerID identifies the container the run used, when known.
	ContainerID string
	// Error is set for infrastructure failures, not for test failures.
	Error error
}

// Verdict classifies the result. A non-zero exit code is a test failure, not
// an error, unless the engine itself reported the failure.
func (r *Result) Verdict() Verdict {
	switch {
	case r.Error != nil || r.ExitCode.IsEngineFailure():
		return VerdictError
	case r.ExitCode.IsSuccess():
		return VerdictPassed
	default:
		return VerdictFailed
	}
}

// NewErrorResult creates a Result with the given exit code and error.
func NewErrorResult(code ExitCode, err error) *Result {
	return &Result{ExitCode: code, Error: err}
}

// NewSuccessResult creates a Result with exit code 0 and no error.
func NewSuccessResult() *Result {
	return &Result{}
}

// NewExitCodeResult creates a Result with the given exit code and no error.
// Use this for non-zero exits that represent normal process termination
// rather than infrastructure failures.
func NewExitCodeResult(code ExitCode) *Result {
	return &Result{ExitCode: code}
}
