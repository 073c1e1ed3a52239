// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestActionableErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *ActionableError
		want string
	}{
		{
			name: "operation only",
			err:  &ActionableError{Operation: "build environment"},
			want: "failed to build environment",
		},
		{
			name: "with resource",
			err:  &ActionableError{Operation: "load kilnfile", Resource: "./kilnfile.cue"},
			want: "failed to load kilnfile: ./kilnfile.cue",
		},
		{
			name: "with cause",
			err: &ActionableError{
				Operation: "load kilnfile",
				Resource:  "./kilnfile.cue",
				Cause:     errors.New("no such file"),
			},
			want: "failed to load kilnfile: ./kilnfile.cue: no such file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestActionableErrorUnwrap(t *testing.T) {
	sentinel := errors.New("root cause")
	wrapped := fmt.Errorf("context: %w", sentinel)
	err := &ActionableError{Operation: "resolve image", Cause: wrapped}

	if !errors.Is(err, sentinel) {
		t.Error("errors.Is must reach the root cause through Unwrap")
	}
}

func TestActionableErrorFormat(t *testing.T) {
	err := &ActionableError{
		Operation:   "build environment",
		Resource:    "kiln-env:abc123",
		Suggestions: []string{"Check the engine is running", "Run 'kiln issue 3' for details"},
		Cause:       fmt.Errorf("stage failed: %w", errors.New("exit status 100")),
	}

	concise := err.Format(false)
	if !strings.Contains(concise, "• Check the engine is running") {
		t.Errorf("suggestions missing from output:\n%s", concise)
	}
	if strings.Contains(concise, "Error chain:") {
		t.Error("error chain must only appear in verbose output")
	}

	verbose := err.Format(true)
	if !strings.Contains(verbose, "Error chain:") {
		t.Errorf("verbose output missing error chain:\n%s", verbose)
	}
	if !strings.Contains(verbose, "1. stage failed: exit status 100") {
		t.Errorf("chain must list the wrapped cause first:\n%s", verbose)
	}
	if !strings.Contains(verbose, "2. exit status 100") {
		t.Errorf("chain must unwrap to the root cause:\n%s", verbose)
	}
}

func TestActionableErrorHasSuggestions(t *testing.T) {
	bare := &ActionableError{Operation: "x"}
	if bare.HasSuggestions() {
		t.Error("no suggestions expected")
	}

	withSug := &ActionableError{Operation: "x", Suggestions: []string{"try this"}}
	if !withSug.HasSuggestions() {
		t.Error("suggestion not reported")
	}
}

func TestErrorContextBuilder(t *testing.T) {
	cause := errors.New("boom")
	err := NewErrorContext().
		WithOperation("pull image").
		WithResource("docker.io/library/python:3.11-slim").
		WithSuggestion("Check network connectivity").
		WithSuggestion("Check registry credentials").
		Wrap(cause).
		Build()

	if err == nil {
		t.Fatal("Build returned nil with operation set")
	}
	if err.Operation != "pull image" {
		t.Errorf("operation = %q", err.Operation)
	}
	if err.Resource != "docker.io/library/python:3.11-slim" {
		t.Errorf("resource = %q", err.Resource)
	}
	if len(err.Suggestions) != 2 {
		t.Errorf("suggestions = %v, want 2 entries", err.Suggestions)
	}
	if !errors.Is(err, cause) {
		t.Error("cause not wrapped")
	}
}

func TestErrorContextRequiresOperation(t *testing.T) {
	if got := NewErrorContext().WithResource("x").Build(); got != nil {
		t.Errorf("Build without operation must return nil, got %v", got)
	}
	if got := NewErrorContext().BuildError(); got != nil {
		t.Errorf("BuildError without operation must return nil, got %v", got)
	}
}

func TestWrapWithOperation(t *testing.T) {
	if WrapWithOperation(nil, "noop") != nil {
		t.Error("nil error must stay nil")
	}

	cause := errors.New("broken")
	err := WrapWithOperation(cause, "run container")
	if err.Error() != "failed to run container: broken" {
		t.Errorf("message = %q", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Error("cause not wrapped")
	}
}
