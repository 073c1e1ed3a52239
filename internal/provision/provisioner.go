// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"kiln-cli/internal/container"
	"kiln-cli/internal/issue"
	"kiln-cli/internal/registry"
	"kiln-cli/pkg/kilnfile"
)

const (
	// DefaultTagPrefix names final environment images.
	DefaultTagPrefix = "kiln-env"
	// systemTagPrefix names the intermediate system-package images.
	systemTagPrefix = "kiln-sys"
	// tagHashLength is how many hex digits of the cache key end up in the tag.
	tagHashLength = 12
)

type (
	// ResolveFunc resolves a pinned base image tag to a content digest.
	ResolveFunc func(ctx context.Context, base kilnfile.Base) (string, error)

	// Config controls provisioning behavior.
	Config struct {
		// WorkspaceDir is the project tree copied into the environment.
		WorkspaceDir string
		// ForceRebuild discards cached images and rebuilds every stage.
		ForceRebuild bool
		// TagPrefix overrides DefaultTagPrefix for the final image tag.
		TagPrefix string
		// TagSuffix is appended to generated tags, used to isolate
		// concurrent builds of the same recipe.
		TagSuffix string
		// CacheDir is where staged build contexts are created. Empty means
		// the system temp directory.
		CacheDir string
		// BuildOutput receives engine build output. Defaults to os.Stderr.
		BuildOutput io.Writer
	}

	// Result describes a provisioned environment image.
	Result struct {
		// ImageTag is the runnable environment image.
		ImageTag string
		// SystemImageTag is the intermediate image after system package
		// installation. Kept so unchanged OS layers are reused.
		SystemImageTag string
		// BaseRef is the digest-qualified base reference when the registry
		// resolved one, otherwise the pinned tag reference.
		BaseRef string
		// Cached is true when the final image already existed and no build
		// stage ran.
		Cached bool
		// FinalState is StateReady on success.
		FinalState State
	}

	// EnvironmentProvisioner builds environment images from a recipe. Stages
	// run strictly in order and the first failure aborts the pipeline.
	EnvironmentProvisioner struct {
		engine  container.Engine
		cfg     Config
		logger  *log.Logger
		resolve ResolveFunc
	}

	// Option configures an EnvironmentProvisioner.
	Option func(*EnvironmentProvisioner)
)

// WithResolveFunc overrides the registry digest resolver.
func WithResolveFunc(fn ResolveFunc) Option {
	return func(p *EnvironmentProvisioner) { p.resolve = fn }
}

// WithLogger overrides the default logger.
func WithLogger(logger *log.Logger) Option {
	return func(p *EnvironmentProvisioner) { p.logger = logger }
}

// NewEnvironmentProvisioner creates a provisioner that builds through the
// given engine.
func NewEnvironmentProvisioner(engine container.Engine, cfg Config, opts ...Option) *EnvironmentProvisioner {
	if cfg.TagPrefix == "" {
		cfg.TagPrefix = DefaultTagPrefix
	}
	if cfg.BuildOutput == nil {
		cfg.BuildOutput = os.Stderr
	}

	p := &EnvironmentProvisioner{
		engine:  engine,
		cfg:     cfg,
		logger:  log.Default(),
		resolve: registry.Resolve,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Provision runs the full pipeline for the recipe and returns the resulting
// image. When the content-addressed image already exists and ForceRebuild is
// off, no build stage runs and Result.Cached is true.
func (p *EnvironmentProvisioner) Provision(ctx context.Context, kf *kilnfile.Kilnfile) (*Result, error) {
	state := StateUnbuilt

	fail := func(stage Stage, err error) (*Result, error) {
		p.logger.Debug("build failed", "stage", stage, "state", state)
		return nil, &StageError{Stage: stage, Err: err}
	}

	if err := kf.Validate(); err != nil {
		return fail(StageBaseSelect, err)
	}

	baseRef, err := p.selectBase(ctx, kf)
	if err != nil {
		return fail(StageBaseSelect, err)
	}
	state = StateBaseSelected
	p.logger.Debug("base image selected", "ref", baseRef)

	keys, err := p.computeKeys(kf, baseRef)
	if err != nil {
		return fail(keys.failedStage, err)
	}

	if !p.cfg.ForceRebuild {
		exists, err := p.engine.ImageExists(ctx, keys.envTag)
		if err == nil && exists {
			p.logger.Debug("environment image cached", "tag", keys.envTag)
			return &Result{
				ImageTag:       keys.envTag,
				SystemImageTag: keys.sysTag,
				BaseRef:        baseRef,
				Cached:         true,
				FinalState:     StateReady,
			}, nil
		}
	} else {
		p.removeStaleImages(ctx, keys)
	}

	contextDir, cleanup, err := p.stageWorkspace()
	if err != nil {
		return fail(StageWorkspace, err)
	}
	defer cleanup()
	state = StateWorkspaceCopied
	p.logger.Debug("workspace staged", "context", contextDir)

	if err := p.buildSystemStage(ctx, kf, baseRef, contextDir, keys.sysTag); err != nil {
		return fail(StageSystemPackages, err)
	}
	state = StateSystemPackagesInstalled
	p.logger.Debug("system packages installed", "tag", keys.sysTag)

	if err := p.buildDepsStage(ctx, kf, contextDir, keys.sysTag, keys.envTag); err != nil {
		return fail(StageDependencies, err)
	}
	state = StateDependenciesInstalled
	p.logger.Debug("dependencies installed", "tag", keys.envTag)

	state = StateReady
	return &Result{
		ImageTag:       keys.envTag,
		SystemImageTag: keys.sysTag,
		BaseRef:        baseRef,
		FinalState:     state,
	}, nil
}

// ImageTag computes the content-addressed tag for a recipe without building.
// The base is resolved the same way Provision resolves it, so the returned tag
// matches what a subsequent build would produce.
func (p *EnvironmentProvisioner) ImageTag(ctx context.Context, kf *kilnfile.Kilnfile) (string, error) {
	baseRef, err := p.selectBase(ctx, kf)
	if err != nil {
		return "", &StageError{Stage: StageBaseSelect, Err: err}
	}

	keys, err := p.computeKeys(kf, baseRef)
	if err != nil {
		return "", &StageError{Stage: keys.failedStage, Err: err}
	}
	return keys.envTag, nil
}

// IsImageProvisioned reports whether the environment image for the recipe
// already exists in the engine's local store.
func (p *EnvironmentProvisioner) IsImageProvisioned(ctx context.Context, kf *kilnfile.Kilnfile) (bool, string, error) {
	tag, err := p.ImageTag(ctx, kf)
	if err != nil {
		return false, "", err
	}
	exists, err := p.engine.ImageExists(ctx, tag)
	if err != nil {
		return false, tag, err
	}
	return exists, tag, nil
}

// selectBase verifies the pinned base reference and resolves it to a digest
// when the registry API supports it. Registries without a supported API fall
// back to an engine pull, which is authoritative for existence. A tag the
// registry positively reports as absent is fatal; there is no retry.
func (p *EnvironmentProvisioner) selectBase(ctx context.Context, kf *kilnfile.Kilnfile) (string, error) {
	if err := kf.Base.Validate(); err != nil {
		return "", err
	}

	digest, err := p.resolve(ctx, kf.Base)
	switch {
	case err == nil:
		return kf.Base.RefWithDigest(digest), nil
	case errors.Is(err, registry.ErrTagNotFound):
		return "", baseUnresolvableError(kf.Base, err)
	case errors.Is(err, registry.ErrMissingCredentials):
		return "", baseUnresolvableError(kf.Base, err)
	}

	// Unsupported registry or unreachable API: let the engine pull decide.
	p.logger.Debug("registry resolution unavailable, probing with pull", "ref", kf.Base.Ref(), "err", err)
	if pullErr := p.engine.Pull(ctx, container.PullOptions{
		Image:  kf.Base.Ref(),
		Quiet:  true,
		Stdout: p.cfg.BuildOutput,
		Stderr: p.cfg.BuildOutput,
	}); pullErr != nil {
		return "", baseUnresolvableError(kf.Base, pullErr)
	}
	return kf.Base.Ref(), nil
}

type cacheKeys struct {
	sysTag      string
	envTag      string
	failedStage Stage
}

// computeKeys derives the content-addressed image tags. The system key covers
// everything that feeds the first build step (base identity, workdir, system
// packages, workspace tree); the environment key additionally covers the
// dependency manifest content and the entry command.
func (p *EnvironmentProvisioner) computeKeys(kf *kilnfile.Kilnfile, baseRef string) (cacheKeys, error) {
	keys := cacheKeys{failedStage: StageWorkspace}

	workspaceHash, err := CalculateDirHash(p.cfg.WorkspaceDir)
	if err != nil {
		return keys, fmt.Errorf("failed to hash workspace %s: %w", p.cfg.WorkspaceDir, err)
	}

	keys.failedStage = StageDependencies
	manifestPath := filepath.Join(p.cfg.WorkspaceDir, filepath.FromSlash(kf.Deps.Manifest))
	manifestHash, err := CalculateFileHash(manifestPath)
	if err != nil {
		return keys, manifestNotFoundError(kf.Deps.Manifest, manifestPath, err)
	}

	sysHash := hashParts(
		"base="+baseRef,
		"workdir="+kf.Workdir,
		"system-manager="+string(kf.System.Manager),
		"packages="+strings.Join(kf.System.Packages, ","),
		"workspace="+workspaceHash,
	)
	envHash := hashParts(
		"system="+sysHash,
		"deps-manager="+string(kf.Deps.Manager),
		"manifest="+kf.Deps.Manifest,
		"manifest-content="+manifestHash,
		"entry="+kf.Entry,
	)

	keys.sysTag = fmt.Sprintf("%s:%s%s", systemTagPrefix, sysHash[:tagHashLength], p.cfg.TagSuffix)
	keys.envTag = fmt.Sprintf("%s:%s%s", p.cfg.TagPrefix, envHash[:tagHashLength], p.cfg.TagSuffix)
	return keys, nil
}

// stageWorkspace copies the workspace into a throwaway build context so the
// engine never reads the live tree mid-build. The copy takes everything; there
// is no ignore list.
func (p *EnvironmentProvisioner) stageWorkspace() (string, func(), error) {
	info, err := os.Stat(p.cfg.WorkspaceDir)
	if err != nil {
		return "", nil, fmt.Errorf("failed to access workspace %s: %w", p.cfg.WorkspaceDir, err)
	}
	if !info.IsDir() {
		return "", nil, fmt.Errorf("workspace %s is not a directory", p.cfg.WorkspaceDir)
	}

	stagingRoot := ""
	if p.cfg.CacheDir != "" {
		stagingRoot = filepath.Join(p.cfg.CacheDir, "build")
		if err := os.MkdirAll(stagingRoot, 0o755); err != nil {
			return "", nil, fmt.Errorf("failed to create cache directory %s: %w", stagingRoot, err)
		}
	}

	stagingDir, err := os.MkdirTemp(stagingRoot, "kiln-build-*")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	cleanup := func() { _ = os.RemoveAll(stagingDir) }

	contextDir := filepath.Join(stagingDir, "context")
	if err := CopyDir(p.cfg.WorkspaceDir, contextDir); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to copy workspace: %w", err)
	}

	return contextDir, cleanup, nil
}

// buildSystemStage writes the first Containerfile next to the context (so the
// file itself is never copied into the image) and builds the intermediate
// system image.
func (p *EnvironmentProvisioner) buildSystemStage(ctx context.Context, kf *kilnfile.Kilnfile, baseRef, contextDir, tag string) error {
	content, err := RenderSystemStage(kf, baseRef)
	if err != nil {
		return err
	}

	containerfile := filepath.Join(filepath.Dir(contextDir), StagedContainerfileName+"-sys")
	if err := os.WriteFile(containerfile, []byte(content), 0o600); err != nil {
		return fmt.Errorf("failed to write build file: %w", err)
	}

	return p.engine.Build(ctx, container.BuildOptions{
		ContextDir:    contextDir,
		Containerfile: containerfile,
		Tag:           tag,
		NoCache:       p.cfg.ForceRebuild,
		Stdout:        p.cfg.BuildOutput,
		Stderr:        p.cfg.BuildOutput,
	})
}

// buildDepsStage builds the final environment image on top of the system
// image.
func (p *EnvironmentProvisioner) buildDepsStage(ctx context.Context, kf *kilnfile.Kilnfile, contextDir, fromImage, tag string) error {
	content, err := RenderDepsStage(kf, fromImage)
	if err != nil {
		return err
	}

	containerfile := filepath.Join(filepath.Dir(contextDir), StagedContainerfileName+"-deps")
	if err := os.WriteFile(containerfile, []byte(content), 0o600); err != nil {
		return fmt.Errorf("failed to write build file: %w", err)
	}

	return p.engine.Build(ctx, container.BuildOptions{
		ContextDir:    contextDir,
		Containerfile: containerfile,
		Tag:           tag,
		NoCache:       p.cfg.ForceRebuild,
		Stdout:        p.cfg.BuildOutput,
		Stderr:        p.cfg.BuildOutput,
	})
}

// removeStaleImages drops cached images before a forced rebuild. Failures are
// non-fatal; the rebuild overwrites the tags anyway.
func (p *EnvironmentProvisioner) removeStaleImages(ctx context.Context, keys cacheKeys) {
	for _, tag := range []string{keys.envTag, keys.sysTag} {
		if err := p.engine.RemoveImage(ctx, tag, true); err != nil {
			p.logger.Debug("failed to remove stale image", "tag", tag, "err", err)
		}
	}
}

func hashParts(parts ...string) string {
	h := sha256.New()
	for _, part := range parts {
		h.Write([]byte(part))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func baseUnresolvableError(base kilnfile.Base, cause error) error {
	return issue.NewErrorContext().
		WithOperation("resolve base image").
		WithResource(base.Ref()).
		WithSuggestion("Check the image name and tag for typos").
		WithSuggestion(fmt.Sprintf("Run 'kiln issue %d' for details", issue.BaseImageUnresolvableId)).
		Wrap(cause).
		BuildError()
}

func manifestNotFoundError(manifest, path string, cause error) error {
	return issue.NewErrorContext().
		WithOperation("read dependency manifest").
		WithResource(manifest).
		WithSuggestion("Create " + path + " or fix deps.manifest in kilnfile.cue").
		WithSuggestion(fmt.Sprintf("Run 'kiln issue %d' for details", issue.ManifestNotFoundId)).
		Wrap(cause).
		BuildError()
}
