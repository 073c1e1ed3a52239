// SPDX-License-Identifier: MPL-2.0

// Package runtime executes provisioned environment images and reports the
// outcome of the test command baked into them.
//
// The runner streams container stdout and stderr to the caller unbuffered and
// propagates the test command's exit code verbatim. Exit codes 125-127 come
// from the engine rather than the test command; Result distinguishes them so
// callers can report infrastructure failures separately, but no code is ever
// rewritten or retried.
package runtime
