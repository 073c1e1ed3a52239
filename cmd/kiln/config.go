// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"kiln-cli/internal/config"
)

// configCmd manages the kiln configuration file.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage kiln configuration",
	Long: `Manage kiln configuration.

Configuration is stored in:
  - Linux: ~/.config/kiln/config.cue
  - macOS: ~/Library/Application Support/kiln/config.cue
  - Windows: %APPDATA%\kiln\config.cue`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func init() {
	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfig()
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfigPath()
		},
	})
}

func showConfig() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	fmt.Println(TitleStyle.Render("Current configuration:"))
	fmt.Printf("  container_engine:    %s\n", cfg.ContainerEngine)
	fmt.Printf("  build.force_rebuild: %t\n", cfg.Build.ForceRebuild)
	if cfg.Build.CacheDir != "" {
		fmt.Printf("  build.cache_dir:     %s\n", cfg.Build.CacheDir)
	}
	fmt.Printf("  ui.verbose:          %t\n", cfg.UI.Verbose)
	fmt.Printf("  ui.color_scheme:     %s\n", cfg.UI.ColorScheme)

	path, err := config.ConfigFilePath()
	if err == nil {
		fmt.Println()
		if _, statErr := os.Stat(path); statErr == nil {
			fmt.Println(SubtitleStyle.Render("Loaded from: " + path))
		} else {
			fmt.Println(SubtitleStyle.Render("No config file; showing defaults (" + path + ")"))
		}
	}
	return nil
}

func showConfigPath() error {
	path, err := config.ConfigFilePath()
	if err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}
