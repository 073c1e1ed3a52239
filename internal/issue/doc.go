// SPDX-License-Identifier: MPL-2.0

// Package issue provides user-facing error reporting for kiln.
//
// ActionableError carries structured context (operation, resource, suggestions)
// so the CLI layer can render errors that tell the user what failed and what to
// try next. ErrorContext is a fluent builder for constructing them.
//
// A small catalog of known Issue pages (missing kilnfile, no container engine,
// unresolvable base image, missing dependency manifest) is rendered as styled
// markdown via glamour.
package issue
