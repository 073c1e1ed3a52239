// SPDX-License-Identifier: MPL-2.0

package container

import (
	"kiln-cli/internal/issue"
)

// buildImageError creates an actionable error for image build failures.
func buildImageError(engine string, opts BuildOptions, cause error) error {
	ctx := issue.NewErrorContext().
		WithOperation("build environment image")

	switch {
	case opts.Containerfile != "":
		ctx.WithResource(opts.Containerfile)
	case opts.ContextDir != "":
		ctx.WithResource(opts.ContextDir)
	case opts.Tag != "":
		ctx.WithResource(opts.Tag)
	}

	ctx.WithSuggestion("Inspect the build output above for the failing stage")
	ctx.WithSuggestion("Verify the build context path exists and is accessible")
	ctx.WithSuggestion("Ensure the base image is available (try: " + engine + " pull <base-image>)")

	return ctx.Wrap(cause).BuildError()
}

// pullImageError creates an actionable error for image pull failures.
func pullImageError(engine string, opts PullOptions, cause error) error {
	ctx := issue.NewErrorContext().
		WithOperation("pull base image").
		WithResource(opts.Image)

	ctx.WithSuggestion("Check the image name and tag for typos")
	ctx.WithSuggestion("Verify the tag exists (try: kiln resolve)")
	ctx.WithSuggestion("Check network connectivity to the registry (" + engine + " is reachable but the pull failed)")

	return ctx.Wrap(cause).BuildError()
}
