// SPDX-License-Identifier: MPL-2.0

// Package provision builds kiln test environment images from a kilnfile recipe.
//
// The EnvironmentProvisioner runs the pipeline strictly top to bottom: select
// and resolve the pinned base image, materialize the workspace into a staged
// build context, install system packages, install language dependencies, and
// bake the entry command as the image CMD. Any stage failure aborts the
// remaining pipeline; StageError reports which stage failed.
//
// Images are content-addressed: the tag derives from a hash over the recipe,
// the resolved base identity, and the workspace tree. Rebuilding with the same
// inputs finds the existing image and is a no-op. The system-package layer is
// built as a separate intermediate image so the expensive index refresh and
// full upgrade cache independently of the faster-changing dependency layer,
// without changing the ordering the recipe mandates.
package provision
