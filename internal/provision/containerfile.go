// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"encoding/json"
	"fmt"
	"strings"

	"kiln-cli/pkg/kilnfile"
)

// StagedContainerfileName is the filename written into the staged build
// context for each build step.
const StagedContainerfileName = "Containerfile.kiln"

// systemInstallCommand returns the single RUN command for the system package
// stage. Index refresh, full upgrade, package install, and cache purge are
// chained with && so the layer either fully succeeds or fails as a unit.
func systemInstallCommand(manager kilnfile.SystemManager, packages []string) (string, error) {
	pkgs := strings.Join(packages, " ")

	switch manager {
	case kilnfile.SystemManagerApt:
		return fmt.Sprintf(
			"apt-get update && apt-get upgrade -y && apt-get install -y --no-install-recommends %s && rm -rf /var/lib/apt/lists/*",
			pkgs,
		), nil
	case kilnfile.SystemManagerApk:
		return fmt.Sprintf(
			"apk update && apk upgrade && apk add --no-cache %s && rm -rf /var/cache/apk/*",
			pkgs,
		), nil
	case kilnfile.SystemManagerDnf:
		return fmt.Sprintf(
			"dnf makecache && dnf upgrade -y && dnf install -y %s && dnf clean all",
			pkgs,
		), nil
	default:
		return "", &kilnfile.InvalidSystemManagerError{Value: manager}
	}
}

// depsInstallCommand returns the single RUN command for the language
// dependency stage. The package manager upgrades itself before reading the
// manifest so resolution behavior tracks the manager's current release.
func depsInstallCommand(manager kilnfile.DepsManager, manifest string) (string, error) {
	switch manager {
	case kilnfile.DepsManagerPip:
		return fmt.Sprintf(
			"pip install --no-cache-dir --upgrade pip && pip install --no-cache-dir -r %s",
			manifest,
		), nil
	case kilnfile.DepsManagerNpm:
		return "npm install -g npm@latest && npm install", nil
	default:
		return "", &kilnfile.InvalidDepsManagerError{Value: manager}
	}
}

// entryCommand renders the recipe entry as an exec-form CMD so the test
// command runs without shell interpretation inside the container.
func entryCommand(kf *kilnfile.Kilnfile) (string, error) {
	argv, err := kf.EntryArgv()
	if err != nil {
		return "", err
	}

	data, err := json.Marshal(argv)
	if err != nil {
		return "", fmt.Errorf("failed to encode entry command: %w", err)
	}

	return "CMD " + string(data), nil
}

// RenderSystemStage generates the Containerfile for the first build step:
// pinned base, workspace copy, and system package install. The workspace COPY
// precedes the package install so later stages always see the full source
// tree.
func RenderSystemStage(kf *kilnfile.Kilnfile, baseRef string) (string, error) {
	var sb strings.Builder

	sb.WriteString("FROM " + baseRef + "\n\n")
	sb.WriteString("WORKDIR " + kf.Workdir + "\n\n")
	sb.WriteString("COPY . " + kf.Workdir + "\n")

	if len(kf.System.Packages) > 0 {
		cmd, err := systemInstallCommand(kf.System.Manager, kf.System.Packages)
		if err != nil {
			return "", err
		}
		sb.WriteString("\nRUN " + cmd + "\n")
	}

	return sb.String(), nil
}

// RenderDepsStage generates the Containerfile for the second build step:
// language dependency install on top of the system-stage image, plus the
// baked entry command.
func RenderDepsStage(kf *kilnfile.Kilnfile, fromImage string) (string, error) {
	var sb strings.Builder

	sb.WriteString("FROM " + fromImage + "\n\n")

	depsCmd, err := depsInstallCommand(kf.Deps.Manager, kf.Deps.Manifest)
	if err != nil {
		return "", err
	}
	sb.WriteString("RUN " + depsCmd + "\n\n")

	cmd, err := entryCommand(kf)
	if err != nil {
		return "", err
	}
	sb.WriteString(cmd + "\n")

	return sb.String(), nil
}

// Render generates the full single-file Containerfile for a recipe, as shown
// by `kiln render`. The build itself splits the same content at the system
// package boundary; the instruction sequence is identical.
func Render(kf *kilnfile.Kilnfile, baseRef string) (string, error) {
	if baseRef == "" {
		baseRef = kf.Base.Ref()
	}

	var sb strings.Builder

	sysStage, err := RenderSystemStage(kf, baseRef)
	if err != nil {
		return "", err
	}
	sb.WriteString(sysStage)

	depsCmd, err := depsInstallCommand(kf.Deps.Manager, kf.Deps.Manifest)
	if err != nil {
		return "", err
	}
	sb.WriteString("\nRUN " + depsCmd + "\n\n")

	cmd, err := entryCommand(kf)
	if err != nil {
		return "", err
	}
	sb.WriteString(cmd + "\n")

	return sb.String(), nil
}
