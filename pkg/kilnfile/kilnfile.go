// SPDX-License-Identifier: MPL-2.0

package kilnfile

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"mvdan.cc/sh/v3/shell"
)

const (
	// SystemManagerApt is the Debian/Ubuntu package manager.
	SystemManagerApt SystemManager = "apt"
	// SystemManagerApk is the Alpine package manager.
	SystemManagerApk SystemManager = "apk"
	// SystemManagerDnf is the Fedora/RHEL package manager.
	SystemManagerDnf SystemManager = "dnf"

	// DepsManagerPip installs Python dependencies from a requirements file.
	DepsManagerPip DepsManager = "pip"
	// DepsManagerNpm installs Node dependencies from a package manifest.
	DepsManagerNpm DepsManager = "npm"
)

var (
	// ErrUnpinnedBaseTag is returned when the base image tag is empty or "latest".
	ErrUnpinnedBaseTag = errors.New("unpinned base image tag")
	// ErrInvalidSystemManager is the sentinel error wrapped by InvalidSystemManagerError.
	ErrInvalidSystemManager = errors.New("invalid system package manager")
	// ErrInvalidDepsManager is the sentinel error wrapped by InvalidDepsManagerError.
	ErrInvalidDepsManager = errors.New("invalid dependency manager")
	// ErrInvalidWorkdir is returned when workdir is not an absolute path.
	ErrInvalidWorkdir = errors.New("invalid workdir")
	// ErrInvalidManifestPath is returned when the manifest path is absolute or
	// escapes the workspace.
	ErrInvalidManifestPath = errors.New("invalid manifest path")
	// ErrInvalidEntry is returned when the entry command is empty or unparseable.
	ErrInvalidEntry = errors.New("invalid entry command")
)

type (
	// SystemManager identifies the OS-level package manager of the base image.
	SystemManager string

	// InvalidSystemManagerError is returned when a SystemManager is not recognized.
	InvalidSystemManagerError struct {
		Value SystemManager
	}

	// DepsManager identifies the language-level package manager.
	DepsManager string

	// InvalidDepsManagerError is returned when a DepsManager is not recognized.
	InvalidDepsManagerError struct {
		Value DepsManager
	}

	// Base pins the environment's starting image. The tag must name a concrete
	// version; kiln never resolves an unpinned tag.
	Base struct {
		Image    string `json:"image"`
		Tag      string `json:"tag"`
		Registry string `json:"registry,omitempty"`
	}

	// System lists the OS packages installed after index refresh and upgrade.
	System struct {
		Manager  SystemManager `json:"manager"`
		Packages []string      `json:"packages"`
	}

	// Deps names the dependency manifest resolved by the language package manager.
	Deps struct {
		Manager  DepsManager `json:"manager"`
		Manifest string      `json:"manifest"`
	}

	// Kilnfile is the parsed recipe for one test environment.
	Kilnfile struct {
		Base    Base   `json:"base"`
		Workdir string `json:"workdir"`
		System  System `json:"system"`
		Deps    Deps   `json:"deps"`
		Entry   string `json:"entry"`

		// FilePath records where the kilnfile was loaded from. Not part of the
		// recipe itself.
		FilePath string `json:"-"`
	}
)

// Error implements the error interface.
func (e *InvalidSystemManagerError) Error() string {
	return fmt.Sprintf("invalid system package manager %q (valid: apt, apk, dnf)", e.Value)
}

// Unwrap returns ErrInvalidSystemManager so callers can use errors.Is.
func (e *InvalidSystemManagerError) Unwrap() error { return ErrInvalidSystemManager }

// Validate returns an error if the SystemManager is not one of the defined managers.
func (m SystemManager) Validate() error {
	switch m {
	case SystemManagerApt, SystemManagerApk, SystemManagerDnf:
		return nil
	default:
		return &InvalidSystemManagerError{Value: m}
	}
}

// String returns the string representation of the SystemManager.
func (m SystemManager) String() string { return string(m) }

// Error implements the error interface.
func (e *InvalidDepsManagerError) Error() string {
	return fmt.Sprintf("invalid dependency manager %q (valid: pip, npm)", e.Value)
}

// Unwrap returns ErrInvalidDepsManager so callers can use errors.Is.
func (e *InvalidDepsManagerError) Unwrap() error { return ErrInvalidDepsManager }

// Validate returns an error if the DepsManager is not one of the defined managers.
func (m DepsManager) Validate() error {
	switch m {
	case DepsManagerPip, DepsManagerNpm:
		return nil
	default:
		return &InvalidDepsManagerError{Value: m}
	}
}

// String returns the string representation of the DepsManager.
func (m DepsManager) String() string { return string(m) }

// Ref returns the full image reference (e.g. "quay.io/org/python:3.11-slim"
// or "python:3.11-slim" for Docker Hub images).
func (b Base) Ref() string {
	ref := b.Image + ":" + b.Tag
	if b.Registry != "" {
		ref = b.Registry + "/" + ref
	}
	return ref
}

// RefWithDigest returns the digest-qualified image reference
// (e.g. "python@sha256:abc..."). Tags are dropped because engines reject
// references carrying both a tag and a digest.
func (b Base) RefWithDigest(digest string) string {
	ref := b.Image + "@" + digest
	if b.Registry != "" {
		ref = b.Registry + "/" + ref
	}
	return ref
}

// Validate enforces the pinned-version invariant on the base image.
func (b Base) Validate() error {
	if strings.TrimSpace(b.Image) == "" {
		return fmt.Errorf("%w: image name must be non-empty", ErrUnpinnedBaseTag)
	}
	tag := strings.TrimSpace(b.Tag)
	if tag == "" || tag == "latest" {
		return fmt.Errorf("%w: %q does not pin a concrete version", ErrUnpinnedBaseTag, b.Tag)
	}
	return nil
}

// Validate checks the full recipe beyond what the CUE schema can express:
// absolute workdir, workspace-relative manifest, and a parseable entry command.
func (k *Kilnfile) Validate() error {
	var errs []error

	if err := k.Base.Validate(); err != nil {
		errs = append(errs, err)
	}

	if !strings.HasPrefix(k.Workdir, "/") {
		errs = append(errs, fmt.Errorf("%w: %q must be an absolute path", ErrInvalidWorkdir, k.Workdir))
	}

	if err := k.System.Manager.Validate(); err != nil {
		errs = append(errs, err)
	}

	if err := k.Deps.Manager.Validate(); err != nil {
		errs = append(errs, err)
	}

	if err := validateManifestPath(k.Deps.Manifest); err != nil {
		errs = append(errs, err)
	}

	if _, err := k.EntryArgv(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// EntryArgv parses the entry command into exec-form argv using shell word
// splitting. Environment expansion is disabled: the entry command is fixed at
// build time and takes no parameters.
func (k *Kilnfile) EntryArgv() ([]string, error) {
	fields, err := shell.Fields(k.Entry, func(string) string { return "" })
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: command is empty", ErrInvalidEntry)
	}
	return fields, nil
}

// ManifestPath returns the manifest location inside the environment,
// joined onto the workdir.
func (k *Kilnfile) ManifestPath() string {
	return path.Join(k.Workdir, k.Deps.Manifest)
}

// validateManifestPath rejects absolute manifest paths and paths that escape
// the workspace via "..".
func validateManifestPath(manifest string) error {
	if strings.TrimSpace(manifest) == "" {
		return fmt.Errorf("%w: path must be non-empty", ErrInvalidManifestPath)
	}
	if strings.HasPrefix(manifest, "/") {
		return fmt.Errorf("%w: %q must be relative to the workspace root", ErrInvalidManifestPath, manifest)
	}
	clean := path.Clean(manifest)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("%w: %q escapes the workspace", ErrInvalidManifestPath, manifest)
	}
	return nil
}
