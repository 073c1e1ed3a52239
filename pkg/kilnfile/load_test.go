// SPDX-License-Identifier: MPL-2.0

package kilnfile

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const fullRecipe = `base: {
	image:    "python"
	tag:      "3.11-slim"
	registry: "quay.io"
}

workdir: "/srv/project"

system: {
	manager:  "apk"
	packages: ["git", "openssh-client"]
}

deps: {
	manager:  "pip"
	manifest: "requirements.txt"
}

entry: "pytest -v --maxfail=1"
`

func TestParseFullRecipe(t *testing.T) {
	kf, err := Parse([]byte(fullRecipe), "kilnfile.cue")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if kf.Base.Registry != "quay.io" || kf.Base.Image != "python" || kf.Base.Tag != "3.11-slim" {
		t.Errorf("base = %+v", kf.Base)
	}
	if kf.Workdir != "/srv/project" {
		t.Errorf("workdir = %q", kf.Workdir)
	}
	if kf.System.Manager != SystemManagerApk {
		t.Errorf("system manager = %q", kf.System.Manager)
	}
	if len(kf.System.Packages) != 2 {
		t.Errorf("packages = %v", kf.System.Packages)
	}
	if kf.Entry != "pytest -v --maxfail=1" {
		t.Errorf("entry = %q", kf.Entry)
	}
	if kf.FilePath != "kilnfile.cue" {
		t.Errorf("file path = %q", kf.FilePath)
	}
}

func TestParseAppliesDefaults(t *testing.T) {
	minimal := `base: {
	image: "node"
	tag:   "20.11.0"
}
deps: {
	manager:  "npm"
	manifest: "package.json"
}
entry: "npm test"
`
	kf, err := Parse([]byte(minimal), "kilnfile.cue")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if kf.Workdir != "/app" {
		t.Errorf("workdir default = %q, want /app", kf.Workdir)
	}
	if kf.System.Manager != SystemManagerApt {
		t.Errorf("system manager default = %q, want apt", kf.System.Manager)
	}
	if len(kf.System.Packages) != 0 {
		t.Errorf("packages default = %v, want empty", kf.System.Packages)
	}
}

func TestParseRejectsLatestTag(t *testing.T) {
	recipe := `base: {
	image: "python"
	tag:   "latest"
}
deps: {manifest: "requirements.txt"}
entry: "pytest"
`
	_, err := Parse([]byte(recipe), "kilnfile.cue")
	if err == nil {
		t.Fatal("expected rejection of latest tag")
	}
	// The schema reports the offending field path.
	if !strings.Contains(err.Error(), "tag") {
		t.Errorf("error should name the offending field: %v", err)
	}
}

func TestParseRejectsUnknownManager(t *testing.T) {
	recipe := `base: {
	image: "python"
	tag:   "3.11-slim"
}
system: {manager: "brew"}
deps: {manifest: "requirements.txt"}
entry: "pytest"
`
	if _, err := Parse([]byte(recipe), "kilnfile.cue"); err == nil {
		t.Fatal("expected rejection of unknown system manager")
	}
}

func TestParseRejectsMissingEntry(t *testing.T) {
	recipe := `base: {
	image: "python"
	tag:   "3.11-slim"
}
deps: {manifest: "requirements.txt"}
`
	if _, err := Parse([]byte(recipe), "kilnfile.cue"); err == nil {
		t.Fatal("expected rejection of missing entry")
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	recipe := `base: {
	image: "python"
	tag:   "3.11-slim"
}
deps: {manifest: "requirements.txt"}
entry:   "pytest"
retries: 3
`
	if _, err := Parse([]byte(recipe), "kilnfile.cue"); err == nil {
		t.Fatal("expected rejection of a field outside the schema")
	}
}

func TestParseRejectsEscapingManifest(t *testing.T) {
	recipe := `base: {
	image: "python"
	tag:   "3.11-slim"
}
deps: {manifest: "../outside.txt"}
entry: "pytest"
`
	_, err := Parse([]byte(recipe), "kilnfile.cue")
	if !errors.Is(err, ErrInvalidManifestPath) {
		t.Fatalf("expected ErrInvalidManifestPath, got %v", err)
	}
}

func TestFind(t *testing.T) {
	dir := t.TempDir()

	if _, err := Find(dir); !errors.Is(err, ErrKilnfileNotFound) {
		t.Fatalf("expected ErrKilnfileNotFound, got %v", err)
	}

	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte(fullRecipe), 0o644); err != nil {
		t.Fatalf("failed to write kilnfile: %v", err)
	}

	found, err := Find(dir)
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if found != path {
		t.Errorf("Find = %q, want %q", found, path)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte(fullRecipe), 0o644); err != nil {
		t.Fatalf("failed to write kilnfile: %v", err)
	}

	kf, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if kf.FilePath != path {
		t.Errorf("file path = %q, want %q", kf.FilePath, path)
	}

	if _, err := Load(filepath.Join(dir, "missing.cue")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
