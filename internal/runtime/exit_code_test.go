// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"errors"
	"testing"
)

func TestExitCodeIsValid(t *testing.T) {
	tests := []struct {
		code  ExitCode
		valid bool
	}{
		{0, true},
		{1, true},
		{127, true},
		{255, true},
		{-1, false},
		{256, false},
	}

	for _, tt := range tests {
		valid, errs := tt.code.IsValid()
		if valid != tt.valid {
			t.Errorf("ExitCode(%d).IsValid() = %v, want %v", tt.code, valid, tt.valid)
		}
		if !tt.valid {
			if len(errs) != 1 {
				t.Fatalf("expected one validation error for %d, got %d", tt.code, len(errs))
			}
			if !errors.Is(errs[0], ErrInvalidExitCode) {
				t.Errorf("validation error for %d must wrap ErrInvalidExitCode", tt.code)
			}
		}
	}
}

func TestExitCodeIsSuccess(t *testing.T) {
	if !ExitCode(0).IsSuccess() {
		t.Error("exit code 0 must be success")
	}
	if ExitCode(1).IsSuccess() {
		t.Error("exit code 1 must not be success")
	}
}

func TestExitCodeIsEngineFailure(t *testing.T) {
	for code := ExitCode(0); code <= 255; code++ {
		want := code >= 125 && code <= 127
		if got := code.IsEngineFailure(); got != want {
			t.Errorf("ExitCode(%d).IsEngineFailure() = %v, want %v", code, got, want)
		}
	}
}

func TestExitCodeString(t *testing.T) {
	if got := ExitCode(42).String(); got != "42" {
		t.Errorf("ExitCode(42).String() = %q, want %q", got, "42")
	}
}
