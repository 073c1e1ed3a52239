// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"kiln-cli/internal/registry"
)

var (
	resolveFile      string
	resolveWorkspace string

	// resolveCmd resolves the pinned base tag to a registry digest
	resolveCmd = &cobra.Command{
		Use:   "resolve",
		Short: "Resolve the pinned base image tag to a digest",
		Long: `Ask the registry which digest the pinned base tag currently points to.

Useful to confirm the tag exists before a build, or to record the exact
image version a run used. Supported registries: Docker Hub and Quay.`,
		Args: cobra.NoArgs,
		RunE: runResolve,
	}
)

func init() {
	resolveCmd.Flags().StringVarP(&resolveFile, "file", "f", "", "path to the kilnfile (default: kilnfile.cue in the workspace)")
	resolveCmd.Flags().StringVarP(&resolveWorkspace, "workspace", "w", "", "workspace directory (default: current directory)")
}

func runResolve(cmd *cobra.Command, args []string) error {
	workspace, err := workspaceDir(resolveWorkspace)
	if err != nil {
		return err
	}

	kf, err := loadRecipe(resolveFile, workspace)
	if err != nil {
		return err
	}

	digest, err := registry.Resolve(cmd.Context(), kf.Base)
	if err != nil {
		if errors.Is(err, registry.ErrUnsupportedRegistry) {
			return fmt.Errorf("registry %q has no supported tag API; 'kiln build' will verify the tag with a pull instead", kf.Base.Registry)
		}
		return err
	}

	fmt.Printf("%s %s\n", CmdStyle.Render(kf.Base.Ref()), digest)
	return nil
}
