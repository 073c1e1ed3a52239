// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"kiln-cli/internal/issue"
	"kiln-cli/internal/provision"
)

var (
	renderFile      string
	renderWorkspace string

	// renderCmd prints the Containerfile generated from the recipe
	renderCmd = &cobra.Command{
		Use:   "render",
		Short: "Print the Containerfile generated from the kilnfile",
		Long: `Print the Containerfile kiln generates from the kilnfile, without
building anything or touching the network. The pinned tag reference is
shown as-is; 'kiln build' substitutes the resolved digest.`,
		Args: cobra.NoArgs,
		RunE: runRender,
	}
)

func init() {
	renderCmd.Flags().StringVarP(&renderFile, "file", "f", "", "path to the kilnfile (default: kilnfile.cue in the workspace)")
	renderCmd.Flags().StringVarP(&renderWorkspace, "workspace", "w", "", "workspace directory (default: current directory)")
}

func runRender(cmd *cobra.Command, args []string) error {
	workspace, err := workspaceDir(renderWorkspace)
	if err != nil {
		return err
	}

	kf, err := loadRecipe(renderFile, workspace)
	if err != nil {
		return err
	}

	content, err := provision.Render(kf, "")
	if err != nil {
		return issue.WrapWithOperation(err, "render build file")
	}

	fmt.Print(content)
	return nil
}
