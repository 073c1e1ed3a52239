// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"slices"

	"github.com/charmbracelet/glamour"
)

// Id identifies a known issue page.
type Id int

const (
	KilnfileNotFoundId Id = iota + 1
	KilnfileParseErrorId
	ContainerEngineNotFoundId
	BaseImageUnresolvableId
	ManifestNotFoundId
)

// MarkdownMsg is a markdown-formatted issue body.
type MarkdownMsg string

// HttpLink points to documentation about an issue.
type HttpLink string

// Issue is a self-help page shown for well-known failure classes.
type Issue struct {
	id       Id
	mdMsg    MarkdownMsg
	docLinks []HttpLink
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

// Render renders the issue page as styled terminal output.
func (i *Issue) Render(stylePath string) (string, error) {
	extraMd := ""
	if len(i.docLinks) > 0 {
		extraMd += "\n\n## See also:\n"
		for _, link := range i.docLinks {
			extraMd += "- [" + string(link) + "]\n"
		}
	}
	return render(string(i.mdMsg)+extraMd, stylePath)
}

var (
	render = glamour.Render

	kilnfileNotFoundIssue = &Issue{
		id: KilnfileNotFoundId,
		mdMsg: `
# No kilnfile found!

We searched for a kilnfile.cue but couldn't find one in the current directory.

## Things you can try:
- Create a kilnfile in your project directory:
~~~
$ kiln init
~~~

- Or run kiln from the directory that contains one:
~~~
$ cd /path/to/your/project
$ kiln build
~~~

## Example kilnfile structure:
~~~cue
base: {
    image: "python"
    tag:   "3.11-slim"
}
workdir: "/app"
system: {
    manager:  "apt"
    packages: ["git", "openssh-client", "bash"]
}
deps: {
    manager:  "pip"
    manifest: "requirements.txt"
}
entry: "pytest -v"
~~~`,
	}

	containerEngineNotFoundIssue = &Issue{
		id: ContainerEngineNotFoundId,
		mdMsg: `
# No container engine available!

kiln needs Docker or Podman to build and run test environments.

## Things you can try:
- Install Podman (rootless, recommended):
~~~
$ sudo apt install podman
~~~
- Or install Docker and make sure the daemon is running:
~~~
$ systemctl status docker
~~~
- Pick an engine explicitly in your config:
~~~cue
container_engine: "podman"
~~~`,
	}

	baseImageUnresolvableIssue = &Issue{
		id: BaseImageUnresolvableId,
		mdMsg: `
# Base image could not be resolved!

The pinned base image in your kilnfile does not resolve to a concrete
image version. kiln never substitutes a different version.

## Things you can try:
- Check the image name and tag for typos
- Verify the tag exists in the registry:
~~~
$ kiln resolve
~~~
- Remember that unpinned tags ("latest" or empty) are always rejected,
  so pick an exact version tag`,
	}

	kilnfileParseErrorIssue = &Issue{
		id: KilnfileParseErrorId,
		mdMsg: `
# The kilnfile could not be parsed!

Your kilnfile.cue exists but does not satisfy the recipe schema.

## Things you can try:
- Read the reported field path in the error message; it points at the
  offending value
- Check that every required field is present: base.image, base.tag,
  deps.manifest, entry
- Validate allowed values: system.manager is one of "apt", "apk", "dnf";
  deps.manager is one of "pip", "npm"
- Compare against a fresh scaffold:
~~~
$ kiln init --print
~~~`,
	}

	manifestNotFoundIssue = &Issue{
		id: ManifestNotFoundId,
		mdMsg: `
# Dependency manifest not found!

The manifest referenced by deps.manifest in your kilnfile is missing from
the workspace, so the build was aborted before the dependency install stage.

## Things you can try:
- Check the path is relative to the workspace root
- Create the manifest file (e.g. requirements.txt, package.json)
- Make sure the file is not excluded from the build context`,
	}

	issuesById = map[Id]*Issue{
		KilnfileNotFoundId:        kilnfileNotFoundIssue,
		KilnfileParseErrorId:      kilnfileParseErrorIssue,
		ContainerEngineNotFoundId: containerEngineNotFoundIssue,
		BaseImageUnresolvableId:   baseImageUnresolvableIssue,
		ManifestNotFoundId:        manifestNotFoundIssue,
	}
)

// Lookup returns the issue page for the given id, or nil if none is registered.
func Lookup(id Id) *Issue {
	return issuesById[id]
}
