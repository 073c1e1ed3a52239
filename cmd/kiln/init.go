// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"kiln-cli/pkg/kilnfile"
)

var (
	initForce bool
	initPrint bool

	// initCmd creates a new kilnfile
	initCmd = &cobra.Command{
		Use:   "init",
		Short: "Create a new kilnfile.cue in the current directory",
		Long: `Create a starter kilnfile.cue in the current directory.

The generated recipe pins a Python base image and runs pytest; edit it
to match your project before building.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runInit,
	}
)

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite an existing kilnfile")
	initCmd.Flags().BoolVar(&initPrint, "print", false, "print the starter recipe instead of writing it")
}

const starterKilnfile = `base: {
	image: "python"
	tag:   "3.11-slim"
}

workdir: "/app"

system: {
	manager:  "apt"
	packages: ["git", "bash"]
}

deps: {
	manager:  "pip"
	manifest: "requirements.txt"
}

entry: "pytest -v"
`

func runInit(cmd *cobra.Command, args []string) error {
	if initPrint {
		fmt.Print(starterKilnfile)
		return nil
	}

	filename := kilnfile.FileName
	if len(args) > 0 {
		filename = args[0]
	}

	// Check if file exists
	if _, err := os.Stat(filename); err == nil && !initForce {
		return fmt.Errorf("file '%s' already exists. Use --force to overwrite", filename)
	}

	if err := os.WriteFile(filename, []byte(starterKilnfile), 0o644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	absPath, _ := filepath.Abs(filename)
	fmt.Printf("%s Created %s\n", SuccessStyle.Render("✓"), absPath)
	fmt.Println()
	fmt.Println(SubtitleStyle.Render("Next steps:"))
	fmt.Println("  1. Pin the base image your project needs")
	fmt.Println("  2. Point deps.manifest at your dependency manifest")
	fmt.Println("  3. Run 'kiln run' to build the environment and run your tests")

	return nil
}
