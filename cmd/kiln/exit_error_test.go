// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"testing"
)

func TestExitErrorMessage(t *testing.T) {
	err := &ExitError{Code: 7}
	if got := err.Error(); got != "exit status 7" {
		t.Errorf("Error() = %q", got)
	}

	wrapped := errors.New("engine unreachable")
	err = &ExitError{Code: 125, Err: wrapped}
	if got := err.Error(); got != "engine unreachable" {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(err, wrapped) {
		t.Error("ExitError must unwrap to its cause")
	}
}
