// SPDX-License-Identifier: MPL-2.0

// Package registry resolves pinned base image tags against container registries.
//
// The Base Environment Selector must fail the build when the pinned image:tag
// does not resolve to a concrete version, without substituting another version.
// This package answers that question up front, before any build work happens:
// QuayClient queries the quay.io API and HubClient queries the Docker Hub API,
// both returning the manifest digest for an exact tag or ErrTagNotFound.
//
// Registries that neither client understands are reported as
// ErrUnsupportedRegistry; callers fall back to a container-engine pull probe.
package registry
