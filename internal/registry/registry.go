// SPDX-License-Identifier: MPL-2.0

package registry

import (
	"context"
	"errors"
	"fmt"

	"kiln-cli/pkg/kilnfile"
)

var (
	// ErrTagNotFound is returned when the pinned tag does not exist in the registry.
	ErrTagNotFound = errors.New("tag not found")
	// ErrMissingCredentials is returned when the registry requires authentication.
	ErrMissingCredentials = errors.New("missing registry credentials")
	// ErrUnsupportedRegistry is returned for registry hosts no client understands.
	ErrUnsupportedRegistry = errors.New("unsupported registry")
)

// Resolver resolves an exact image tag to its manifest digest.
type Resolver interface {
	// ResolveTag returns the manifest digest ("sha256:...") for repository:tag.
	// Returns ErrTagNotFound when the tag does not exist.
	ResolveTag(ctx context.Context, repository, tag string) (string, error)
}

// quayHost is the registry host served by QuayClient.
const quayHost = "quay.io"

// ForBase returns a Resolver for the base image's registry, plus the
// repository path to query. Docker Hub (empty registry) and quay.io are
// supported; anything else returns ErrUnsupportedRegistry so the caller can
// fall back to an engine pull probe.
func ForBase(base kilnfile.Base) (Resolver, string, error) {
	switch base.Registry {
	case "":
		return NewHubClient(), base.Image, nil
	case quayHost:
		return NewQuayClient(), base.Image, nil
	default:
		return nil, "", fmt.Errorf("%w: %s", ErrUnsupportedRegistry, base.Registry)
	}
}

// Resolve resolves the base image's pinned tag to a digest using the registry
// client for its host. It is the programmatic form of 'kiln resolve'.
func Resolve(ctx context.Context, base kilnfile.Base) (string, error) {
	resolver, repo, err := ForBase(base)
	if err != nil {
		return "", err
	}
	digest, err := resolver.ResolveTag(ctx, repo, base.Tag)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", base.Ref(), err)
	}
	return digest, nil
}
