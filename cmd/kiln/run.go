// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"kiln-cli/internal/runtime"
)

var (
	runFile      string
	runWorkspace string
	runForce     bool
	runEnvFiles  []string
	runEnvVars   []string

	// runCmd builds the environment if needed and runs the test command
	runCmd = &cobra.Command{
		Use:   "run [-- command...]",
		Short: "Run the test command in its environment",
		Long: `Run the recipe's test command inside the environment image, building
the image first if it does not exist yet.

The container is disposable: it is removed after the run and nothing
persists between runs. Test output streams through unbuffered, and the
test command's exit code becomes kiln's exit code, untouched.

Arguments after -- replace the baked test command for this run only;
the image itself is never modified.`,
		RunE: runRun,
	}
)

func init() {
	runCmd.Flags().StringVarP(&runFile, "file", "f", "", "path to the kilnfile (default: kilnfile.cue in the workspace)")
	runCmd.Flags().StringVarP(&runWorkspace, "workspace", "w", "", "workspace directory (default: current directory)")
	runCmd.Flags().BoolVar(&runForce, "force", false, "rebuild the environment even if a cached image exists")
	runCmd.Flags().StringArrayVar(&runEnvFiles, "env-file", nil, "dotenv file loaded into the test environment (repeatable)")
	runCmd.Flags().StringArrayVarP(&runEnvVars, "env", "e", nil, "KEY=VALUE passed into the test environment (repeatable, wins over --env-file)")
}

func runRun(cmd *cobra.Command, args []string) error {
	workspace, err := workspaceDir(runWorkspace)
	if err != nil {
		return err
	}

	kf, err := loadRecipe(runFile, workspace)
	if err != nil {
		return err
	}

	cfg := loadConfigQuiet()
	engine, err := newEngine(cfg)
	if err != nil {
		return err
	}

	provisioner := newProvisioner(engine, cfg, workspace, runForce)
	buildResult, err := provisioner.Provision(cmd.Context(), kf)
	if err != nil {
		return err
	}

	runner := runtime.NewRunner(engine)
	result, err := runner.Run(cmd.Context(), runtime.RunSpec{
		ImageTag:     buildResult.ImageTag,
		EnvFiles:     runEnvFiles,
		EnvOverrides: runEnvVars,
		Argv:         args,
		Stdin:        os.Stdin,
		Stdout:       os.Stdout,
		Stderr:       os.Stderr,
	})
	if err != nil {
		return err
	}

	switch result.Verdict() {
	case runtime.VerdictPassed:
		fmt.Fprintf(os.Stderr, "%s Tests passed\n", SuccessStyle.Render("✓"))
		return nil
	case runtime.VerdictError:
		fmt.Fprintf(os.Stderr, "%s Environment error (exit code %s reported by the engine)\n",
			ErrorStyle.Render("✗"), result.ExitCode)
	default:
		fmt.Fprintf(os.Stderr, "%s Tests failed (exit code %s)\n", ErrorStyle.Render("✗"), result.ExitCode)
	}

	// Propagate the exact code to the shell.
	return &ExitError{Code: result.ExitCode}
}
