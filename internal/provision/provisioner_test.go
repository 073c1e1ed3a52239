// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"kiln-cli/internal/container"
	"kiln-cli/internal/registry"
	"kiln-cli/pkg/kilnfile"
)

// fakeEngine records engine calls and simulates image state in memory.
type fakeEngine struct {
	builds    []container.BuildOptions
	pulls     []container.PullOptions
	removed   []string
	images    map[string]bool
	buildErrs map[string]error // by tag prefix
	pullErr   error
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{images: map[string]bool{}, buildErrs: map[string]error{}}
}

func (e *fakeEngine) Name() string                                 { return "fake" }
func (e *fakeEngine) Available() bool                              { return true }
func (e *fakeEngine) Version(context.Context) (string, error)      { return "0.0-test", nil }
func (e *fakeEngine) Run(context.Context, container.RunOptions) (*container.RunResult, error) {
	return &container.RunResult{}, nil
}
func (e *fakeEngine) Remove(context.Context, string, bool) error { return nil }

func (e *fakeEngine) Build(_ context.Context, opts container.BuildOptions) error {
	e.builds = append(e.builds, opts)
	for prefix, err := range e.buildErrs {
		if strings.HasPrefix(opts.Tag, prefix) {
			return err
		}
	}
	e.images[opts.Tag] = true
	return nil
}

func (e *fakeEngine) Pull(_ context.Context, opts container.PullOptions) error {
	e.pulls = append(e.pulls, opts)
	return e.pullErr
}

func (e *fakeEngine) ImageExists(_ context.Context, image string) (bool, error) {
	return e.images[image], nil
}

func (e *fakeEngine) RemoveImage(_ context.Context, image string, _ bool) error {
	e.removed = append(e.removed, image)
	delete(e.images, image)
	return nil
}

func writeWorkspace(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("failed to create %s: %v", filepath.Dir(path), err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
	return dir
}

func staticResolver(digest string, err error) ResolveFunc {
	return func(context.Context, kilnfile.Base) (string, error) {
		return digest, err
	}
}

func newTestProvisioner(t *testing.T, engine container.Engine, workspace string, opts ...Option) *EnvironmentProvisioner {
	t.Helper()
	cfg := Config{
		WorkspaceDir: workspace,
		BuildOutput:  os.Stderr,
	}
	opts = append([]Option{
		WithResolveFunc(staticResolver("sha256:feedface", nil)),
	}, opts...)
	return NewEnvironmentProvisioner(engine, cfg, opts...)
}

func TestProvisionHappyPath(t *testing.T) {
	workspace := writeWorkspace(t, map[string]string{
		"requirements.txt": "pytest==8.0.0\n",
		"src/app.py":       "print('hi')\n",
	})
	engine := newFakeEngine()
	p := newTestProvisioner(t, engine, workspace)

	result, err := p.Provision(context.Background(), sampleKilnfile())
	if err != nil {
		t.Fatalf("Provision failed: %v", err)
	}

	if result.FinalState != StateReady {
		t.Errorf("expected state %s, got %s", StateReady, result.FinalState)
	}
	if result.Cached {
		t.Error("fresh build must not report cached")
	}
	if result.BaseRef != "python@sha256:feedface" {
		t.Errorf("expected digest-qualified base ref, got %q", result.BaseRef)
	}

	if len(engine.builds) != 2 {
		t.Fatalf("expected 2 build steps, got %d", len(engine.builds))
	}
	if !strings.HasPrefix(engine.builds[0].Tag, "kiln-sys:") {
		t.Errorf("first build must produce the system image, got tag %q", engine.builds[0].Tag)
	}
	if !strings.HasPrefix(engine.builds[1].Tag, "kiln-env:") {
		t.Errorf("second build must produce the environment image, got tag %q", engine.builds[1].Tag)
	}
	if result.ImageTag != engine.builds[1].Tag {
		t.Errorf("result tag %q does not match built tag %q", result.ImageTag, engine.builds[1].Tag)
	}
}

func TestProvisionStagesUnderCacheDir(t *testing.T) {
	workspace := writeWorkspace(t, map[string]string{
		"requirements.txt": "pytest==8.0.0\n",
	})
	cacheDir := filepath.Join(t.TempDir(), "kiln-cache")
	engine := newFakeEngine()
	p := NewEnvironmentProvisioner(engine, Config{
		WorkspaceDir: workspace,
		CacheDir:     cacheDir,
		BuildOutput:  os.Stderr,
	}, WithResolveFunc(staticResolver("sha256:feedface", nil)))

	if _, err := p.Provision(context.Background(), sampleKilnfile()); err != nil {
		t.Fatalf("Provision failed: %v", err)
	}

	stagingRoot := filepath.Join(cacheDir, "build")
	if _, err := os.Stat(stagingRoot); err != nil {
		t.Fatalf("expected staging root %s to be created: %v", stagingRoot, err)
	}
	if len(engine.builds) == 0 {
		t.Fatal("expected at least one build")
	}
	if !strings.HasPrefix(engine.builds[0].ContextDir, stagingRoot+string(os.PathSeparator)) {
		t.Errorf("build context %q not staged under %q", engine.builds[0].ContextDir, stagingRoot)
	}
}

func TestProvisionCachedImageSkipsBuild(t *testing.T) {
	workspace := writeWorkspace(t, map[string]string{
		"requirements.txt": "pytest==8.0.0\n",
	})
	engine := newFakeEngine()
	p := newTestProvisioner(t, engine, workspace)

	first, err := p.Provision(context.Background(), sampleKilnfile())
	if err != nil {
		t.Fatalf("first Provision failed: %v", err)
	}

	second, err := p.Provision(context.Background(), sampleKilnfile())
	if err != nil {
		t.Fatalf("second Provision failed: %v", err)
	}

	if !second.Cached {
		t.Error("second build with identical inputs must be a cache hit")
	}
	if second.ImageTag != first.ImageTag {
		t.Errorf("cache hit returned tag %q, want %q", second.ImageTag, first.ImageTag)
	}
	if len(engine.builds) != 2 {
		t.Errorf("cache hit must not trigger builds, saw %d total", len(engine.builds))
	}
}

func TestProvisionForceRebuild(t *testing.T) {
	workspace := writeWorkspace(t, map[string]string{
		"requirements.txt": "pytest==8.0.0\n",
	})
	engine := newFakeEngine()
	cfg := Config{WorkspaceDir: workspace, ForceRebuild: true, BuildOutput: os.Stderr}
	p := NewEnvironmentProvisioner(engine, cfg,
		WithResolveFunc(staticResolver("sha256:feedface", nil)))

	if _, err := p.Provision(context.Background(), sampleKilnfile()); err != nil {
		t.Fatalf("first Provision failed: %v", err)
	}
	if _, err := p.Provision(context.Background(), sampleKilnfile()); err != nil {
		t.Fatalf("second Provision failed: %v", err)
	}

	if len(engine.builds) != 4 {
		t.Errorf("forced rebuild must rebuild both stages, saw %d builds", len(engine.builds))
	}
	if len(engine.removed) == 0 {
		t.Error("forced rebuild must remove stale images")
	}
	for _, opts := range engine.builds {
		if !opts.NoCache {
			t.Errorf("forced rebuild must disable layer cache for tag %q", opts.Tag)
		}
	}
}

func TestProvisionBaseNotFoundIsFatal(t *testing.T) {
	workspace := writeWorkspace(t, map[string]string{
		"requirements.txt": "pytest==8.0.0\n",
	})
	engine := newFakeEngine()
	p := newTestProvisioner(t, engine, workspace,
		WithResolveFunc(staticResolver("", registry.ErrTagNotFound)))

	_, err := p.Provision(context.Background(), sampleKilnfile())
	if err == nil {
		t.Fatal("expected base selection failure")
	}

	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != StageBaseSelect {
		t.Fatalf("expected %s stage error, got %v", StageBaseSelect, err)
	}
	if !errors.Is(err, registry.ErrTagNotFound) {
		t.Errorf("cause must remain inspectable, got %v", err)
	}
	if len(engine.builds) != 0 || len(engine.pulls) != 0 {
		t.Error("no later stage may run after base selection fails")
	}
}

func TestProvisionUnsupportedRegistryFallsBackToPull(t *testing.T) {
	workspace := writeWorkspace(t, map[string]string{
		"requirements.txt": "pytest==8.0.0\n",
	})
	engine := newFakeEngine()
	p := newTestProvisioner(t, engine, workspace,
		WithResolveFunc(staticResolver("", registry.ErrUnsupportedRegistry)))

	result, err := p.Provision(context.Background(), sampleKilnfile())
	if err != nil {
		t.Fatalf("Provision failed: %v", err)
	}

	if len(engine.pulls) != 1 {
		t.Fatalf("expected one pull probe, got %d", len(engine.pulls))
	}
	if result.BaseRef != "python:3.11-slim" {
		t.Errorf("fallback must keep the pinned tag ref, got %q", result.BaseRef)
	}
}

func TestProvisionUnpinnedBaseRejected(t *testing.T) {
	engine := newFakeEngine()
	p := newTestProvisioner(t, engine, t.TempDir())

	for _, tag := range []string{"", "latest"} {
		kf := sampleKilnfile()
		kf.Base.Tag = tag

		_, err := p.Provision(context.Background(), kf)
		if !errors.Is(err, kilnfile.ErrUnpinnedBaseTag) {
			t.Errorf("tag %q: expected ErrUnpinnedBaseTag, got %v", tag, err)
		}
	}
	if len(engine.builds) != 0 {
		t.Error("no build may run with an unpinned base")
	}
}

func TestProvisionMissingManifestAbortsBeforeBuild(t *testing.T) {
	workspace := writeWorkspace(t, map[string]string{
		"src/app.py": "print('hi')\n",
	})
	engine := newFakeEngine()
	p := newTestProvisioner(t, engine, workspace)

	_, err := p.Provision(context.Background(), sampleKilnfile())
	if err == nil {
		t.Fatal("expected missing manifest failure")
	}

	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != StageDependencies {
		t.Fatalf("expected %s stage error, got %v", StageDependencies, err)
	}
	if len(engine.builds) != 0 {
		t.Error("the build must abort before any image is produced")
	}
}

func TestProvisionSystemFailureShortCircuits(t *testing.T) {
	workspace := writeWorkspace(t, map[string]string{
		"requirements.txt": "pytest==8.0.0\n",
	})
	engine := newFakeEngine()
	engine.buildErrs["kiln-sys:"] = errors.New("E: Unable to locate package nosuchpkg")
	p := newTestProvisioner(t, engine, workspace)

	_, err := p.Provision(context.Background(), sampleKilnfile())
	if err == nil {
		t.Fatal("expected system stage failure")
	}

	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != StageSystemPackages {
		t.Fatalf("expected %s stage error, got %v", StageSystemPackages, err)
	}
	if len(engine.builds) != 1 {
		t.Errorf("dependency stage must not run after system failure, saw %d builds", len(engine.builds))
	}
}

func TestProvisionDepsFailureAfterSystemSuccess(t *testing.T) {
	workspace := writeWorkspace(t, map[string]string{
		"requirements.txt": "no-such-dist==0.0.0\n",
	})
	engine := newFakeEngine()
	engine.buildErrs["kiln-env:"] = errors.New("ERROR: No matching distribution found")
	p := newTestProvisioner(t, engine, workspace)

	_, err := p.Provision(context.Background(), sampleKilnfile())
	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != StageDependencies {
		t.Fatalf("expected %s stage error, got %v", StageDependencies, err)
	}
	if len(engine.builds) != 2 {
		t.Errorf("expected system build then failing deps build, saw %d", len(engine.builds))
	}
}

func TestImageTagDeterminism(t *testing.T) {
	files := map[string]string{
		"requirements.txt": "pytest==8.0.0\n",
		"src/app.py":       "print('hi')\n",
	}
	wsA := writeWorkspace(t, files)
	wsB := writeWorkspace(t, files)

	pA := newTestProvisioner(t, newFakeEngine(), wsA)
	pB := newTestProvisioner(t, newFakeEngine(), wsB)

	tagA, err := pA.ImageTag(context.Background(), sampleKilnfile())
	if err != nil {
		t.Fatalf("ImageTag failed: %v", err)
	}
	tagB, err := pB.ImageTag(context.Background(), sampleKilnfile())
	if err != nil {
		t.Fatalf("ImageTag failed: %v", err)
	}
	if tagA != tagB {
		t.Errorf("identical inputs produced different tags: %q vs %q", tagA, tagB)
	}

	// Any recipe change must change the tag.
	kf := sampleKilnfile()
	kf.Entry = "pytest -q"
	changed, err := pA.ImageTag(context.Background(), kf)
	if err != nil {
		t.Fatalf("ImageTag failed: %v", err)
	}
	if changed == tagA {
		t.Error("changed entry command must produce a different tag")
	}
}

func TestImageTagChangesWithManifestContent(t *testing.T) {
	workspace := writeWorkspace(t, map[string]string{
		"requirements.txt": "pytest==8.0.0\n",
	})
	p := newTestProvisioner(t, newFakeEngine(), workspace)

	before, err := p.ImageTag(context.Background(), sampleKilnfile())
	if err != nil {
		t.Fatalf("ImageTag failed: %v", err)
	}

	path := filepath.Join(workspace, "requirements.txt")
	if err := os.WriteFile(path, []byte("pytest==8.1.0\n"), 0o644); err != nil {
		t.Fatalf("failed to update manifest: %v", err)
	}

	after, err := p.ImageTag(context.Background(), sampleKilnfile())
	if err != nil {
		t.Fatalf("ImageTag failed: %v", err)
	}
	if before == after {
		t.Error("manifest content change must produce a different tag")
	}
}

func TestIsImageProvisioned(t *testing.T) {
	workspace := writeWorkspace(t, map[string]string{
		"requirements.txt": "pytest==8.0.0\n",
	})
	engine := newFakeEngine()
	p := newTestProvisioner(t, engine, workspace)

	provisioned, tag, err := p.IsImageProvisioned(context.Background(), sampleKilnfile())
	if err != nil {
		t.Fatalf("IsImageProvisioned failed: %v", err)
	}
	if provisioned {
		t.Error("image must not exist before the first build")
	}

	if _, err := p.Provision(context.Background(), sampleKilnfile()); err != nil {
		t.Fatalf("Provision failed: %v", err)
	}

	provisioned, tagAfter, err := p.IsImageProvisioned(context.Background(), sampleKilnfile())
	if err != nil {
		t.Fatalf("IsImageProvisioned failed: %v", err)
	}
	if !provisioned {
		t.Error("image must exist after a successful build")
	}
	if tagAfter != tag {
		t.Errorf("tag drifted between checks: %q vs %q", tag, tagAfter)
	}
}

func TestStageWorkspaceCopiesTree(t *testing.T) {
	workspace := writeWorkspace(t, map[string]string{
		"requirements.txt": "pytest==8.0.0\n",
		"src/app.py":       "print('hi')\n",
		".env":             "SECRET=1\n", // hidden files are copied too
	})
	p := newTestProvisioner(t, newFakeEngine(), workspace)

	contextDir, cleanup, err := p.stageWorkspace()
	if err != nil {
		t.Fatalf("stageWorkspace failed: %v", err)
	}
	defer cleanup()

	for _, name := range []string{"requirements.txt", "src/app.py", ".env"} {
		if _, err := os.Stat(filepath.Join(contextDir, filepath.FromSlash(name))); err != nil {
			t.Errorf("staged context missing %s: %v", name, err)
		}
	}

	cleanup()
	if _, err := os.Stat(contextDir); !os.IsNotExist(err) {
		t.Error("cleanup must remove the staged context")
	}
}
