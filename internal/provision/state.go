// SPDX-License-Identifier: MPL-2.0

package provision

import "fmt"

// Stage identifies one step of the provisioning pipeline. Stages execute
// strictly in declaration order; a failure in any stage prevents every later
// stage from running.
type Stage string

const (
	// StageBaseSelect resolves and verifies the pinned base image.
	StageBaseSelect Stage = "base image selection"
	// StageWorkspace copies the workspace tree into the build context.
	StageWorkspace Stage = "workspace materialization"
	// StageSystemPackages refreshes, upgrades, and installs OS packages.
	StageSystemPackages Stage = "system package installation"
	// StageDependencies installs language dependencies from the manifest.
	StageDependencies Stage = "dependency installation"
)

// State is the lifecycle position of an environment build. The progression is
// linear; there are no alternative paths or recovery transitions.
type State string

const (
	StateUnbuilt                 State = "unbuilt"
	StateBaseSelected            State = "base-selected"
	StateWorkspaceCopied         State = "workspace-copied"
	StateSystemPackagesInstalled State = "system-packages-installed"
	StateDependenciesInstalled   State = "dependencies-installed"
	StateReady                   State = "ready"
	// StateBuildFailed is terminal for the attempt. A new invocation starts
	// over from StateUnbuilt; there is no partial resumption.
	StateBuildFailed State = "build-failed"
)

// StageError reports which pipeline stage failed. It wraps the underlying
// cause so callers can inspect it with errors.Is and errors.As.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
