// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	buildFile      string
	buildWorkspace string
	buildForce     bool

	// buildCmd builds the environment image without running it
	buildCmd = &cobra.Command{
		Use:   "build",
		Short: "Build the test environment image",
		Long: `Build the test environment image described by the kilnfile.

The pipeline runs strictly in order: resolve the pinned base image, copy
the workspace, install system packages, install language dependencies,
and bake the test command into the image. Identical inputs reuse the
existing image; nothing is rebuilt.`,
		Args: cobra.NoArgs,
		RunE: runBuild,
	}
)

func init() {
	buildCmd.Flags().StringVarP(&buildFile, "file", "f", "", "path to the kilnfile (default: kilnfile.cue in the workspace)")
	buildCmd.Flags().StringVarP(&buildWorkspace, "workspace", "w", "", "workspace directory (default: current directory)")
	buildCmd.Flags().BoolVar(&buildForce, "force", false, "rebuild even if a cached image exists")
}

func runBuild(cmd *cobra.Command, args []string) error {
	workspace, err := workspaceDir(buildWorkspace)
	if err != nil {
		return err
	}

	kf, err := loadRecipe(buildFile, workspace)
	if err != nil {
		return err
	}

	cfg := loadConfigQuiet()
	engine, err := newEngine(cfg)
	if err != nil {
		return err
	}

	provisioner := newProvisioner(engine, cfg, workspace, buildForce)
	result, err := provisioner.Provision(cmd.Context(), kf)
	if err != nil {
		return err
	}

	if result.Cached {
		fmt.Printf("%s Environment up to date: %s\n", SuccessStyle.Render("✓"), CmdStyle.Render(result.ImageTag))
	} else {
		fmt.Printf("%s Environment built: %s\n", SuccessStyle.Render("✓"), CmdStyle.Render(result.ImageTag))
	}
	if verbose {
		fmt.Println(SubtitleStyle.Render("  base: " + result.BaseRef))
	}
	return nil
}
