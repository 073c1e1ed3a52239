// SPDX-License-Identifier: MPL-2.0

// Package kilnfile defines the declarative recipe for a kiln test environment.
//
// A kilnfile.cue pins a base runtime image, names the workspace destination,
// lists the system packages and the language dependency manifest, and fixes
// the entry command that runs the test suite. Files are validated against an
// embedded CUE schema on load; the pinned-tag invariant (no "latest", no empty
// tag) is enforced at both the schema and Go level.
package kilnfile
