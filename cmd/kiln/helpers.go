// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"os"

	"kiln-cli/internal/config"
	"kiln-cli/internal/container"
	"kiln-cli/internal/issue"
	"kiln-cli/internal/provision"
	"kiln-cli/pkg/kilnfile"
)

// loadRecipe loads the kilnfile for the current invocation. An explicit path
// wins; otherwise the workspace directory is searched for kilnfile.cue.
func loadRecipe(explicitPath, workspaceDir string) (*kilnfile.Kilnfile, error) {
	path := explicitPath
	if path == "" {
		found, err := kilnfile.Find(workspaceDir)
		if err != nil {
			if errors.Is(err, kilnfile.ErrKilnfileNotFound) {
				return nil, issue.NewErrorContext().
					WithOperation("locate kilnfile").
					WithResource(workspaceDir).
					WithSuggestion("Run 'kiln init' to create a starter kilnfile.cue").
					WithSuggestion(fmt.Sprintf("Run 'kiln issue %d' for details", issue.KilnfileNotFoundId)).
					Wrap(err).
					BuildError()
			}
			return nil, err
		}
		path = found
	}

	kf, err := kilnfile.Load(path)
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("parse kilnfile").
			WithResource(path).
			WithSuggestion(fmt.Sprintf("Run 'kiln issue %d' for details", issue.KilnfileParseErrorId)).
			Wrap(err).
			BuildError()
	}
	return kf, nil
}

// loadConfigQuiet returns the effective configuration, falling back to
// defaults when loading fails. Load errors were already surfaced once during
// command initialization.
func loadConfigQuiet() *config.Config {
	cfg, err := config.Load()
	if err != nil || cfg == nil {
		return config.DefaultConfig()
	}
	return cfg
}

// newEngine picks the container engine: the configured one with fallback, or
// auto-detection when nothing is configured.
func newEngine(cfg *config.Config) (container.Engine, error) {
	var (
		engine container.Engine
		err    error
	)
	if cfg != nil && cfg.ContainerEngine != "" {
		engine, err = container.NewEngine(container.EngineType(cfg.ContainerEngine))
	} else {
		engine, err = container.AutoDetectEngine()
	}
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("find container engine").
			WithSuggestion("Install Podman or Docker and make sure it is on PATH").
			WithSuggestion(fmt.Sprintf("Run 'kiln issue %d' for details", issue.ContainerEngineNotFoundId)).
			Wrap(err).
			BuildError()
	}
	return engine, nil
}

// newProvisioner wires an EnvironmentProvisioner for the given workspace.
// Staged build contexts go under the configured cache directory, falling back
// to the per-user default.
func newProvisioner(engine container.Engine, cfg *config.Config, workspaceDir string, forceRebuild bool) *provision.EnvironmentProvisioner {
	force := forceRebuild
	cacheDir := ""
	if cfg != nil {
		force = force || cfg.Build.ForceRebuild
		cacheDir = cfg.Build.CacheDir
	}
	if cacheDir == "" {
		if dir, err := config.CacheDir(); err == nil {
			cacheDir = dir
		}
	}
	return provision.NewEnvironmentProvisioner(engine, provision.Config{
		WorkspaceDir: workspaceDir,
		ForceRebuild: force,
		CacheDir:     cacheDir,
		BuildOutput:  os.Stderr,
	})
}

// workspaceDir resolves the directory the recipe and workspace live in.
func workspaceDir(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current working directory: %w", err)
	}
	return dir, nil
}
